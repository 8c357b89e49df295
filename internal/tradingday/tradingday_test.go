package tradingday

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krxflow/internal/domain"
)

func date(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestIsTradingDay(t *testing.T) {
	c := NewChecker(nil)

	// Weekends never trade regardless of calendar availability.
	assert.False(t, c.IsTradingDay(date(t, "20251018"))) // Saturday
	assert.False(t, c.IsTradingDay(date(t, "20251019"))) // Sunday

	// An ordinary mid-week day trades.
	assert.True(t, c.IsTradingDay(date(t, "20251014"))) // Tuesday
}

func TestFallbackChecker(t *testing.T) {
	c := &Checker{fallback: true}

	assert.True(t, c.IsTradingDay(date(t, "20251013")))  // Monday
	assert.False(t, c.IsTradingDay(date(t, "20251011"))) // Saturday
}
