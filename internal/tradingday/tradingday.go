// Package tradingday answers whether the Korean exchange trades on a
// given date, so scheduled runs can bail out before hitting the network
// on weekends and holidays.
package tradingday

import (
	"log/slog"
	"time"

	"github.com/scmhub/calendar"

	"krxflow/internal/domain"
)

// krxMIC is the ISO 10383 market identifier of the Korea Exchange.
const krxMIC = "xkrx"

// Checker wraps the exchange calendar. When the calendar cannot be
// loaded it degrades to a weekday check rather than blocking runs.
type Checker struct {
	cal      *calendar.Calendar
	fallback bool
	logger   *slog.Logger
}

// NewChecker loads the KRX calendar.
func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	cal := calendar.GetCalendar(krxMIC)
	if cal == nil {
		logger.Warn("exchange calendar unavailable, falling back to weekday check",
			slog.String("mic", krxMIC))
		return &Checker{fallback: true, logger: logger}
	}
	return &Checker{cal: cal, logger: logger}
}

// IsTradingDay reports whether the exchange trades on the date.
func (c *Checker) IsTradingDay(d domain.Date) bool {
	t := d.Time()
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}
