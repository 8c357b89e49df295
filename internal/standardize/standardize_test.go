package standardize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"krxflow/internal/domain"
)

func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func testCategory() domain.Category {
	return domain.Category{Market: domain.MarketKOSPI, Investor: domain.InvestorForeigner}
}

func testDate(t *testing.T) domain.Date {
	t.Helper()
	d, err := domain.ParseDate("20251014")
	require.NoError(t, err)
	return d
}

func TestStandardizeKeywordColumn(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목코드", "종목명", "거래대금_순매수"},
		{"005930", "삼성전자", "1,500"},
		{"000660", "SK하이닉스", "900"},
		{"035420", "NAVER", "-200"},
	})

	s := New(20, nil)
	ds, err := s.Standardize(raw, testCategory(), testDate(t))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, "삼성전자", ds.Rows[0].Symbol)
	assert.Equal(t, "005930", ds.Rows[0].Code)
	assert.Equal(t, 1500.0, ds.Rows[0].Value)
	assert.Equal(t, -200.0, ds.Rows[2].Value)
}

func TestStandardizeTieBreakKeepsSourceOrder(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목명", "거래대금_순매수"},
		{"A", "100"},
		{"B", "900"},
		{"C", "900"},
		{"D", "500"},
	})

	s := New(2, nil)
	ds, err := s.Standardize(raw, testCategory(), testDate(t))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "B", ds.Rows[0].Symbol)
	assert.Equal(t, 900.0, ds.Rows[0].Value)
	assert.Equal(t, "C", ds.Rows[1].Symbol)
	assert.Equal(t, 900.0, ds.Rows[1].Value)
}

func TestStandardizeFallbackNumericColumn(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목명", "비고", "금액"},
		{"삼성전자", "메모", "300"},
		{"NAVER", "", "700"},
	})

	s := New(20, nil)
	ds, err := s.Standardize(raw, testCategory(), testDate(t))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "NAVER", ds.Rows[0].Symbol)
	assert.Equal(t, 700.0, ds.Rows[0].Value)
}

func TestStandardizeNoValueColumn(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목명", "비고"},
		{"삼성전자", "메모"},
	})

	s := New(20, nil)
	_, err := s.Standardize(raw, testCategory(), testDate(t))
	assert.ErrorIs(t, err, ErrMissingValueColumn)
}

func TestStandardizeMissingSymbolColumn(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"이름", "거래대금_순매수"},
		{"삼성전자", "100"},
	})

	s := New(20, nil)
	_, err := s.Standardize(raw, testCategory(), testDate(t))
	var mce *MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Contains(t, mce.Columns, SymbolHeader)
}

func TestStandardizeEmptyPayload(t *testing.T) {
	s := New(20, nil)

	ds, err := s.Standardize(nil, testCategory(), testDate(t))
	require.NoError(t, err)
	assert.True(t, ds.Empty())

	ds, err = s.Standardize([]byte("not a workbook"), testCategory(), testDate(t))
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestStandardizeHeaderOnly(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목명", "거래대금_순매수"},
	})

	s := New(20, nil)
	ds, err := s.Standardize(raw, testCategory(), testDate(t))
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestStandardizeTopNCut(t *testing.T) {
	raw := buildXLSX(t, [][]interface{}{
		{"종목명", "거래대금_순매수"},
		{"A", "1"},
		{"B", "5"},
		{"C", "3"},
		{"D", "4"},
		{"E", "2"},
	})

	s := New(3, nil)
	ds, err := s.Standardize(raw, testCategory(), testDate(t))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, []string{"B", "D", "C"}, ds.TopSymbols(3))
}
