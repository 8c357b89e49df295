package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krxflow/internal/domain"
	"krxflow/internal/storage"
)

func date(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func dataset(cat domain.Category, d domain.Date, rows ...domain.RankedRow) *domain.CategoryDataset {
	return &domain.CategoryDataset{Category: cat, Date: d, Rows: rows}
}

func kospiFrn() domain.Category {
	return domain.Category{Market: domain.MarketKOSPI, Investor: domain.InvestorForeigner}
}

func TestFilePath(t *testing.T) {
	e := NewEngine(storage.NewLocalStore(t.TempDir(), nil), "순매수도", 0, nil)
	got := e.FilePath(kospiFrn(), date(t, "20251014"))
	assert.Equal(t, "순매수도/코스피외국인순매수도(2025).xlsx", got)
}

func TestUpdateCreatesWorkbookAndPivot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 0, nil)
	cat := kospiFrn()
	d := date(t, "20251014")

	ds := dataset(cat, d,
		domain.RankedRow{Symbol: "삼성전자", Value: 1500},
		domain.RankedRow{Symbol: "NAVER", Value: -200},
	)
	ranked, err := e.Update(ctx, cat, ds, d)
	require.NoError(t, err)
	assert.Equal(t, []domain.RankedRow{
		{Symbol: "삼성전자", Value: 1500},
		{Symbol: "NAVER", Value: -200},
	}, ranked)

	f, found, err := storage.OpenWorkbook(ctx, store, e.FilePath(cat, d))
	require.NoError(t, err)
	require.True(t, found)
	defer f.Close()

	// Raw sheet: blank row, header on row 2, data from row 3.
	rows, err := f.GetRows("OCT")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, []string{"일자", "종목", "금액"}, rows[1])
	assert.Equal(t, "20251014", rows[2][0])
	assert.Equal(t, "삼성전자", rows[2][1])

	// Pivot sheet exists, named by day, data from row 5.
	idx, err := f.GetSheetIndex("1014")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)

	prows, err := f.GetRows("1014")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(prows), 5)
	assert.Equal(t, "20251014", prows[2][1])
	assert.Equal(t, "종목", prows[3][0])
	assert.Equal(t, "삼성전자", prows[4][0])
}

func TestUpdateSecondDayAddsColumnAndReordersByTotal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 0, nil)
	cat := kospiFrn()
	d1 := date(t, "20251014")
	d2 := date(t, "20251015")

	_, err := e.Update(ctx, cat, dataset(cat, d1,
		domain.RankedRow{Symbol: "A", Value: 100},
		domain.RankedRow{Symbol: "B", Value: 300},
	), d1)
	require.NoError(t, err)
	ranked, err := e.Update(ctx, cat, dataset(cat, d2,
		domain.RankedRow{Symbol: "A", Value: 500},
		domain.RankedRow{Symbol: "C", Value: 50},
	), d2)
	require.NoError(t, err)

	// Returned ranking is the new day's column in running-total order;
	// B has no value on day two and is left out.
	assert.Equal(t, []domain.RankedRow{
		{Symbol: "A", Value: 500},
		{Symbol: "C", Value: 50},
	}, ranked)

	f, found, err := storage.OpenWorkbook(ctx, store, e.FilePath(cat, d2))
	require.NoError(t, err)
	require.True(t, found)
	defer f.Close()

	rows, err := f.GetRows("1015")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)

	// Header: dates ascending then running total.
	assert.Equal(t, "20251014", rows[2][1])
	assert.Equal(t, "20251015", rows[2][2])
	assert.Equal(t, "총계", rows[2][3])

	// A totals 600, B 300, C 50.
	assert.Equal(t, "A", rows[4][0])
	assert.Equal(t, "600", rows[4][3])
	assert.Equal(t, "B", rows[5][0])
	assert.Equal(t, "C", rows[6][0])

	// Day-one pivot still present.
	idx, err := f.GetSheetIndex("1014")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
}

func TestUpdateDuplicateDateSkipsAppendButRecomputes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 0, nil)
	cat := kospiFrn()
	d := date(t, "20251014")

	ds := dataset(cat, d, domain.RankedRow{Symbol: "A", Value: 100})
	_, err := e.Update(ctx, cat, ds, d)
	require.NoError(t, err)
	ranked, err := e.Update(ctx, cat, ds, d)
	require.NoError(t, err)
	// The rerun still reports the recomputed ranking.
	assert.Equal(t, []domain.RankedRow{{Symbol: "A", Value: 100}}, ranked)

	f, found, err := storage.OpenWorkbook(ctx, store, e.FilePath(cat, d))
	require.NoError(t, err)
	require.True(t, found)
	defer f.Close()

	rows, err := f.GetRows("OCT")
	require.NoError(t, err)
	// Blank row + header + exactly one data row: the rerun added nothing.
	assert.Len(t, rows, 3)

	prows, err := f.GetRows("1014")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(prows), 5)
	assert.Equal(t, "A", prows[4][0])
	assert.Equal(t, "100", prows[4][1])
}

func TestAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 0, nil)
	cat := kospiFrn()
	d := date(t, "20251014")

	done, _, err := e.AlreadyProcessed(ctx, cat, d)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = e.Update(ctx, cat, dataset(cat, d,
		domain.RankedRow{Symbol: "A", Value: 100},
		domain.RankedRow{Symbol: "B", Value: 900},
	), d)
	require.NoError(t, err)

	done, rows, err := e.AlreadyProcessed(ctx, cat, d)
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, rows, 2)
	// Stored order is by running total descending.
	assert.Equal(t, "B", rows[0].Symbol)
	assert.Equal(t, 900.0, rows[0].Value)
	assert.Equal(t, "A", rows[1].Symbol)

	// A different day is not processed yet.
	done, _, err = e.AlreadyProcessed(ctx, cat, date(t, "20251015"))
	require.NoError(t, err)
	assert.False(t, done)
}

func TestUpdateEmptyDatasetWithoutExistingLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 0, nil)
	cat := kospiFrn()
	d := date(t, "20251014")

	ranked, err := e.Update(ctx, cat, dataset(cat, d), d)
	require.NoError(t, err)
	assert.Nil(t, ranked)

	ok, err := store.Exists(ctx, e.FilePath(cat, d))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRankingCappedAtTopN(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStore(t.TempDir(), nil)
	e := NewEngine(store, "ledgers", 2, nil)
	cat := kospiFrn()
	d := date(t, "20251014")

	ranked, err := e.Update(ctx, cat, dataset(cat, d,
		domain.RankedRow{Symbol: "A", Value: 100},
		domain.RankedRow{Symbol: "B", Value: 900},
		domain.RankedRow{Symbol: "C", Value: 500},
	), d)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "B", ranked[0].Symbol)
	assert.Equal(t, "C", ranked[1].Symbol)

	done, stored, err := e.AlreadyProcessed(ctx, cat, d)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, ranked, stored)
}

func TestComputePivotOrdering(t *testing.T) {
	dates, pivot := computePivot([]domain.LedgerRow{
		{Date: 20251015, Symbol: "B", Value: 50},
		{Date: 20251014, Symbol: "A", Value: 100},
		{Date: 20251014, Symbol: "B", Value: 100},
		{Date: 20251015, Symbol: "A", Value: 50},
	})

	assert.Equal(t, []int{20251014, 20251015}, dates)
	require.Len(t, pivot, 2)
	// Equal totals fall back to symbol order.
	assert.Equal(t, "A", pivot[0].symbol)
	assert.Equal(t, 150.0, pivot[0].total)
	assert.Equal(t, "B", pivot[1].symbol)
}
