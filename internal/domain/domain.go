// Package domain holds the core types shared by the daily net-flow
// pipeline: markets, investor classes, categories, ranked rows and
// ledger rows, plus the date and numeric helpers the report engines
// depend on.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Market identifies one stock exchange board.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// KoreanName returns the market name used in report file names.
func (m Market) KoreanName() string {
	switch m {
	case MarketKOSPI:
		return "코스피"
	case MarketKOSDAQ:
		return "코스닥"
	default:
		return string(m)
	}
}

// InvestorClass identifies one investor aggregation tracked by the exchange.
type InvestorClass string

const (
	InvestorForeigner    InvestorClass = "foreigner"
	InvestorInstitutions InvestorClass = "institutions"
)

// KoreanName returns the investor class name used in report file names.
func (i InvestorClass) KoreanName() string {
	switch i {
	case InvestorForeigner:
		return "외국인"
	case InvestorInstitutions:
		return "기관"
	default:
		return string(i)
	}
}

// Category is one (market, investor-class) pair. Each category maps to
// one raw dataset per day and one ledger destination.
type Category struct {
	Market   Market
	Investor InvestorClass
}

// Key returns the canonical context/map key, e.g. "KOSPI_foreigner".
func (c Category) Key() string {
	return fmt.Sprintf("%s_%s", c.Market, c.Investor)
}

// KoreanName returns the combined name used in file names, e.g. "코스피외국인".
func (c Category) KoreanName() string {
	return c.Market.KoreanName() + c.Investor.KoreanName()
}

func (c Category) String() string { return c.Key() }

// AllCategories returns every tracked category in fetch order.
func AllCategories() []Category {
	return []Category{
		{MarketKOSPI, InvestorInstitutions},
		{MarketKOSPI, InvestorForeigner},
		{MarketKOSDAQ, InvestorInstitutions},
		{MarketKOSDAQ, InvestorForeigner},
	}
}

// ReportOrder returns the categories in the fixed order used by the
// ranking snapshot layout and the watchlist export.
func ReportOrder() []Category {
	return []Category{
		{MarketKOSPI, InvestorForeigner},
		{MarketKOSDAQ, InvestorForeigner},
		{MarketKOSPI, InvestorInstitutions},
		{MarketKOSDAQ, InvestorInstitutions},
	}
}

// AllMarkets returns the tracked markets in report order.
func AllMarkets() []Market {
	return []Market{MarketKOSPI, MarketKOSDAQ}
}

// RankedRow is one (symbol, value) entry of a per-day leaderboard.
// Code carries the exchange symbol code when the source table had one.
type RankedRow struct {
	Symbol string
	Code   string
	Value  float64
}

// CategoryDataset is the standardized top-N table for one category on
// one date. Rows are sorted by value descending, ties keeping source
// order. An empty dataset is a valid result (non-trading day).
type CategoryDataset struct {
	Category Category
	Date     Date
	Rows     []RankedRow
}

// Empty reports whether the dataset holds no rows.
func (d *CategoryDataset) Empty() bool {
	return d == nil || len(d.Rows) == 0
}

// TopSymbols returns the symbol names of the first n rows.
func (d *CategoryDataset) TopSymbols(n int) []string {
	if d == nil {
		return nil
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := make([]string, 0, n)
	for _, r := range d.Rows[:n] {
		out = append(out, r.Symbol)
	}
	return out
}

// LedgerRow is the atomic unit appended to a category ledger.
type LedgerRow struct {
	Date   int // YYYYMMDD
	Symbol string
	Value  float64
}

var koreanWeekdays = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// Date is one calendar date in the exchange's local calendar.
type Date struct {
	t time.Time
}

// ParseDate parses a YYYYMMDD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYYMMDD): %w", s, err)
	}
	return Date{t: t}, nil
}

// DateOf builds a Date from a time.Time, truncating the clock.
func DateOf(t time.Time) Date {
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date.
func Today() Date { return DateOf(time.Now()) }

// String returns the YYYYMMDD form.
func (d Date) String() string { return d.t.Format("20060102") }

// Int returns the YYYYMMDD integer used in ledger raw rows.
func (d Date) Int() int {
	n, _ := strconv.Atoi(d.String())
	return n
}

// SheetKey returns the MMDD sheet name for per-day sheets.
func (d Date) SheetKey() string { return d.t.Format("0102") }

// MonthSheet returns the upper-case month abbreviation used as the
// ledger raw sheet name, e.g. "OCT".
func (d Date) MonthSheet() string {
	return strings.ToUpper(d.t.Format("Jan"))
}

// Year returns the calendar year.
func (d Date) Year() int { return d.t.Year() }

// Month returns the calendar month number.
func (d Date) Month() int { return int(d.t.Month()) }

// Day returns the day of month.
func (d Date) Day() int { return d.t.Day() }

// KoreanWeekday returns the single-character weekday label, e.g. "금".
func (d Date) KoreanWeekday() string {
	return koreanWeekdays[int(d.t.Weekday())]
}

// Time returns the underlying time at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// ParseValue coerces a spreadsheet cell into a number. Everything except
// digits, sign and decimal point is stripped first (thousands separators,
// currency marks, stray whitespace); anything still unparsable becomes 0
// so a single garbled cell cannot abort a recomputation.
func ParseValue(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.':
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// IsNumeric reports whether the cell parses as a number after comma
// stripping. Empty cells are not numeric.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
