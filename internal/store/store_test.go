package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(ticker, date string, open, high, low, close float64) *model.PriceRecord {
	return &model.PriceRecord{
		Ticker: ticker, Date: date,
		Open: open, High: high, Low: low, Close: close,
		Volume: 1000, Source: "yahoo",
	}
}

func TestStore_Holdings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetHolding(ctx, "MSFT", "Microsoft", 5, 300))
	require.NoError(t, s.SetHolding(ctx, "AAPL", "Apple", 10, 150))
	require.NoError(t, s.SetHolding(ctx, "GOOG", "Alphabet", 0, 0)) // watched, not held

	tickers, err := s.HeldTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers, "zero-quantity rows are excluded, order alphabetic")

	// Upsert replaces the position.
	require.NoError(t, s.SetHolding(ctx, "AAPL", "Apple", 0, 150))
	tickers, err = s.HeldTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, tickers)

	require.NoError(t, s.RemoveHolding(ctx, "MSFT"))
	tickers, err = s.HeldTickers(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickers)
}

func TestStore_UpsertDailyPriceWidensRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	today := model.DateOf(time.Now())

	require.NoError(t, s.UpsertDailyPrice(ctx, rec("AAPL", today, 150, 152, 149, 151)))
	// Later the same day: lower low, same high, new close.
	require.NoError(t, s.UpsertDailyPrice(ctx, rec("AAPL", today, 151, 151.5, 148, 150)))

	records, err := s.History(ctx, "AAPL", 1)
	require.NoError(t, err)
	require.Len(t, records, 1, "same day upserts into one row")

	got := records[0]
	assert.Equal(t, 150.0, got.Close, "close tracks the latest price")
	assert.Equal(t, 152.0, got.High, "high only widens")
	assert.Equal(t, 148.0, got.Low, "low only widens")
	assert.Equal(t, 150.0, got.Open, "open keeps the first write")
}

func TestStore_InsertDailyBarNeverOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertDailyBar(ctx, rec("AAPL", "2025-05-01", 149, 151, 148, 150))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertDailyBar(ctx, rec("AAPL", "2025-05-01", 1, 1, 1, 1))
	require.NoError(t, err)
	assert.False(t, inserted, "existing row must be left alone")

	records, err := s.History(ctx, "AAPL", 365)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 150.0, records[0].Close)
}

func TestStore_HistoryAscendingAndWindowed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, daysAgo := range []int{10, 1, 5} {
		date := model.DateOf(now.AddDate(0, 0, -daysAgo))
		_, err := s.InsertDailyBar(ctx, rec("AAPL", date, 100, 101, 99, 100+float64(daysAgo)))
		require.NoError(t, err)
	}
	_, err := s.InsertDailyBar(ctx, rec("MSFT", model.DateOf(now), 300, 301, 299, 300))
	require.NoError(t, err)

	records, err := s.History(ctx, "AAPL", 7)
	require.NoError(t, err)
	require.Len(t, records, 2, "the 10-day-old row falls outside the window")
	assert.True(t, records[0].Date < records[1].Date, "ascending by date")
	assert.Equal(t, 105.0, records[0].Close)
	assert.Equal(t, 101.0, records[1].Close)
}

func TestStore_Stats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	total, tickers, last, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, tickers)
	assert.Nil(t, last, "empty history has no last collection")

	_, err = s.InsertDailyBar(ctx, rec("AAPL", "2025-05-01", 1, 1, 1, 1))
	require.NoError(t, err)
	_, err = s.InsertDailyBar(ctx, rec("AAPL", "2025-05-02", 1, 1, 1, 1))
	require.NoError(t, err)
	_, err = s.InsertDailyBar(ctx, rec("MSFT", "2025-05-01", 1, 1, 1, 1))
	require.NoError(t, err)

	total, tickers, last, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, tickers)
	require.NotNil(t, last)
	assert.WithinDuration(t, time.Now(), *last, time.Minute)
}

func TestStore_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetHolding(context.Background(), "AAPL", "Apple", 1, 1))
	require.NoError(t, s1.Close())

	// Reopening migrates on top of the existing schema and keeps data.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	tickers, err := s2.HeldTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers)
}
