package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"stockwatch/internal/model"
)

// Historian is the slice of the market data manager the backfill uses.
type Historian interface {
	GetHistoricalWithSource(ctx context.Context, ticker, period, interval string) ([]model.OHLCV, string)
}

// BarStore provides the universe and the gap-filling insert.
type BarStore interface {
	HeldTickers(ctx context.Context) ([]string, error)
	InsertDailyBar(ctx context.Context, rec *model.PriceRecord) (bool, error)
}

// Scheduler runs the daily history backfill: completed daily bars from
// the vendors fill any calendar days the hourly collector missed while
// the process was down. Existing rows are never overwritten.
type Scheduler struct {
	cron    *cron.Cron
	history Historian
	bars    BarStore
	period  string
	ctx     context.Context
}

// New creates a Scheduler. period is the trailing window requested from
// vendors on each run (e.g. "1mo").
func New(ctx context.Context, history Historian, bars BarStore, period string) *Scheduler {
	if period == "" {
		period = "1mo"
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		bars:    bars,
		period:  period,
		ctx:     ctx,
	}
}

// Register adds the backfill job under the given 6-field cron spec.
func (s *Scheduler) Register(backfillCron string) error {
	if _, err := s.cron.AddFunc(backfillCron, s.backfillTask); err != nil {
		return fmt.Errorf("register backfill task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunBackfillNow executes the backfill immediately (manual trigger).
func (s *Scheduler) RunBackfillNow() {
	s.backfillTask()
}

func (s *Scheduler) backfillTask() {
	log.Println("[INFO] running history backfill")
	tickers, err := s.bars.HeldTickers(s.ctx)
	if err != nil {
		log.Printf("[ERROR] backfill universe: %v", err)
		return
	}
	if len(tickers) == 0 {
		log.Println("[INFO] no holdings to backfill")
		return
	}

	today := model.DateOf(time.Now())
	inserted := 0
	for _, ticker := range tickers {
		if s.ctx.Err() != nil {
			return
		}
		bars, source := s.history.GetHistoricalWithSource(s.ctx, ticker, s.period, "1d")
		if len(bars) == 0 {
			log.Printf("[WARN] no historical bars for %s", ticker)
			continue
		}
		for _, bar := range bars {
			date := model.DateOf(bar.Time)
			if date == today {
				// Today's bar is still moving; leave it to the collector.
				continue
			}
			added, err := s.bars.InsertDailyBar(s.ctx, &model.PriceRecord{
				Ticker: ticker,
				Date:   date,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: bar.Volume,
				Source: source,
			})
			if err != nil {
				log.Printf("[ERROR] backfill %s %s: %v", ticker, date, err)
				continue
			}
			if added {
				inserted++
			}
		}
	}
	log.Printf("[INFO] backfill done, %d bars inserted", inserted)
}
