package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/model"
)

type fakeHistorian struct {
	bars   []model.OHLCV
	source string
}

func (f *fakeHistorian) GetHistoricalWithSource(ctx context.Context, ticker, period, interval string) ([]model.OHLCV, string) {
	return f.bars, f.source
}

type fakeBarStore struct {
	mu      sync.Mutex
	tickers []string
	rows    map[string]model.PriceRecord // keyed ticker_date
}

func (f *fakeBarStore) HeldTickers(ctx context.Context) ([]string, error) {
	return f.tickers, nil
}

func (f *fakeBarStore) InsertDailyBar(ctx context.Context, rec *model.PriceRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[string]model.PriceRecord)
	}
	key := rec.Ticker + "_" + rec.Date
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	f.rows[key] = *rec
	return true, nil
}

func bar(daysAgo int, close float64) model.OHLCV {
	return model.OHLCV{
		Time:  time.Now().AddDate(0, 0, -daysAgo),
		Open:  close - 1,
		High:  close + 1,
		Low:   close - 2,
		Close: close,
	}
}

func TestScheduler_BackfillInsertsMissingDays(t *testing.T) {
	h := &fakeHistorian{bars: []model.OHLCV{bar(2, 150), bar(1, 151)}, source: "yahoo"}
	st := &fakeBarStore{tickers: []string{"AAPL"}}
	s := New(context.Background(), h, st, "1mo")

	s.RunBackfillNow()

	require.Len(t, st.rows, 2)
	rec := st.rows["AAPL_"+model.DateOf(time.Now().AddDate(0, 0, -1))]
	assert.Equal(t, 151.0, rec.Close)
	assert.Equal(t, "yahoo", rec.Source)
}

func TestScheduler_BackfillSkipsToday(t *testing.T) {
	h := &fakeHistorian{bars: []model.OHLCV{bar(1, 150), bar(0, 152)}, source: "yahoo"}
	st := &fakeBarStore{tickers: []string{"AAPL"}}
	s := New(context.Background(), h, st, "1mo")

	s.RunBackfillNow()

	require.Len(t, st.rows, 1, "today's unfinished bar is not backfilled")
	_, ok := st.rows["AAPL_"+model.DateOf(time.Now())]
	assert.False(t, ok)
}

func TestScheduler_BackfillIsIdempotent(t *testing.T) {
	h := &fakeHistorian{bars: []model.OHLCV{bar(1, 150)}, source: "yahoo"}
	st := &fakeBarStore{tickers: []string{"AAPL"}}
	s := New(context.Background(), h, st, "1mo")

	s.RunBackfillNow()
	h.bars = []model.OHLCV{bar(1, 999)} // vendor revises; row stays
	s.RunBackfillNow()

	require.Len(t, st.rows, 1)
	rec := st.rows["AAPL_"+model.DateOf(time.Now().AddDate(0, 0, -1))]
	assert.Equal(t, 150.0, rec.Close)
}

func TestScheduler_RegisterRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), &fakeHistorian{}, &fakeBarStore{}, "1mo")
	assert.Error(t, s.Register("not a cron spec"))
	assert.NoError(t, s.Register("0 30 5 * * 2-6"))
}

func TestScheduler_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &fakeHistorian{bars: []model.OHLCV{bar(1, 150)}, source: "yahoo"}
	st := &fakeBarStore{tickers: []string{"AAPL", "MSFT"}}
	s := New(ctx, h, st, "1mo")

	s.RunBackfillNow()
	assert.Empty(t, st.rows)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(context.Background(), &fakeHistorian{}, &fakeBarStore{}, "1mo")
	require.NoError(t, s.Register("0 0 0 1 1 *"))
	s.Start()
	s.Stop() // waits for any running job
}
