package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20251014")
	require.NoError(t, err)
	assert.Equal(t, "20251014", d.String())
	assert.Equal(t, 20251014, d.Int())
	assert.Equal(t, "1014", d.SheetKey())
	assert.Equal(t, "OCT", d.MonthSheet())
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 10, d.Month())
	assert.Equal(t, 14, d.Day())
	assert.Equal(t, "화", d.KoreanWeekday())

	_, err = ParseDate("2025-10-14")
	assert.Error(t, err)
	_, err = ParseDate("20251332")
	assert.Error(t, err)
}

func TestCategoryNames(t *testing.T) {
	cat := Category{Market: MarketKOSPI, Investor: InvestorForeigner}
	assert.Equal(t, "KOSPI_foreigner", cat.Key())
	assert.Equal(t, "코스피외국인", cat.KoreanName())

	cat = Category{Market: MarketKOSDAQ, Investor: InvestorInstitutions}
	assert.Equal(t, "KOSDAQ_institutions", cat.Key())
	assert.Equal(t, "코스닥기관", cat.KoreanName())
}

func TestCategoryOrders(t *testing.T) {
	assert.Len(t, AllCategories(), 4)

	keys := make([]string, 0, 4)
	for _, c := range ReportOrder() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{
		"KOSPI_foreigner",
		"KOSDAQ_foreigner",
		"KOSPI_institutions",
		"KOSDAQ_institutions",
	}, keys)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,500", 1500},
		{"-2,000", -2000},
		{"+300", 300},
		{"12.5", 12.5},
		{"  1 234 ", 1234},
		{"원화 500", 500},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseValue(tt.in), "input %q", tt.in)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("1,500"))
	assert.True(t, IsNumeric("-3.2"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("  "))
	assert.False(t, IsNumeric("삼성전자"))
}

func TestDatasetHelpers(t *testing.T) {
	var nilDS *CategoryDataset
	assert.True(t, nilDS.Empty())
	assert.Nil(t, nilDS.TopSymbols(5))

	ds := &CategoryDataset{Rows: []RankedRow{
		{Symbol: "A", Value: 3},
		{Symbol: "B", Value: 2},
		{Symbol: "C", Value: 1},
	}}
	assert.False(t, ds.Empty())
	assert.Equal(t, []string{"A", "B"}, ds.TopSymbols(2))
	assert.Equal(t, []string{"A", "B", "C"}, ds.TopSymbols(10))
}
