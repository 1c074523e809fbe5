package collector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stockwatch/internal/model"
)

// Default timings for the recurring collection loop.
const (
	DefaultInterval = time.Hour
	DefaultCooldown = time.Minute
)

// Quoter is the slice of the market data manager the collector uses.
type Quoter interface {
	GetQuote(ctx context.Context, ticker string, preferRealtime bool) *model.Quote
}

// Storage provides the ticker universe and the price history sink.
type Storage interface {
	HeldTickers(ctx context.Context) ([]string, error)
	UpsertDailyPrice(ctx context.Context, rec *model.PriceRecord) error
	History(ctx context.Context, ticker string, days int) ([]model.PriceRecord, error)
	Stats(ctx context.Context) (total, tickers int, last *time.Time, err error)
}

// Collector periodically snapshots current prices for all held tickers
// into the price history, one record per ticker per calendar day. It is
// either Stopped or Running; Start and Stop transition between the two
// and are safe to call from any goroutine.
type Collector struct {
	quotes   Quoter
	storage  Storage
	interval time.Duration
	cooldown time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped Collector. Non-positive interval or cooldown
// take the defaults.
func New(quotes Quoter, storage Storage, interval, cooldown time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Collector{
		quotes:   quotes,
		storage:  storage,
		interval: interval,
		cooldown: cooldown,
	}
}

// Start launches the recurring collection loop: one pass immediately,
// then one per interval until Stop. Calling Start on a running
// collector is a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		log.Println("[INFO] price collector already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)

	log.Printf("[INFO] price collector started (interval: %s)", c.interval)
}

// Stop cancels the loop and waits until the in-flight pass has observed
// the cancellation; no history writes happen after Stop returns. The
// collector counts as stopped the moment Stop commits, so a concurrent
// Start begins a fresh session instead of no-opping.
// Calling Stop on a stopped collector is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	<-done
	log.Println("[INFO] price collector stopped")
}

func (c *Collector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := c.runPass(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[ERROR] collection pass: %v", err)
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := c.runPass(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[ERROR] collection pass: %v", err)
				// One bad cycle must not kill the loop; back off
				// briefly, then resume the normal schedule.
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.cooldown):
				}
			}
			timer.Reset(c.interval)
		}
	}
}

// runPass shields the loop from a panicking pass.
func (c *Collector) runPass(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panic: %v", r)
		}
	}()
	return c.CollectPrices(ctx)
}

// CollectPrices fetches a realtime-preferred quote for every held
// ticker and upserts one daily record per success. Individual ticker
// failures are logged and skipped; the pass continues to the end.
func (c *Collector) CollectPrices(ctx context.Context) error {
	tickers, err := c.storage.HeldTickers(ctx)
	if err != nil {
		return fmt.Errorf("load ticker universe: %w", err)
	}
	if len(tickers) == 0 {
		log.Println("[INFO] no holdings to collect prices for")
		return nil
	}

	log.Printf("[INFO] collecting prices for %d tickers: %v", len(tickers), tickers)
	collected := 0
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quote := c.quotes.GetQuote(ctx, ticker, true)
		if quote == nil {
			log.Printf("[WARN] no quote data for %s", ticker)
			continue
		}
		if err := c.savePrice(ctx, quote); err != nil {
			log.Printf("[ERROR] save price for %s: %v", ticker, err)
			continue
		}
		collected++
	}
	log.Printf("[INFO] collected %d/%d prices", collected, len(tickers))
	return nil
}

func (c *Collector) savePrice(ctx context.Context, quote *model.Quote) error {
	high := quote.High
	if high == 0 {
		high = quote.CurrentPrice
	}
	low := quote.Low
	if low == 0 {
		low = quote.CurrentPrice
	}
	open := quote.Open
	if open == 0 {
		open = quote.CurrentPrice
	}
	return c.storage.UpsertDailyPrice(ctx, &model.PriceRecord{
		Ticker: quote.Ticker,
		Date:   model.DateOf(time.Now()),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  quote.CurrentPrice,
		Volume: quote.Volume,
		Source: quote.Source,
	})
}

// CollectSingle collects one ticker on demand and reports whether a
// quote was obtained and persisted.
func (c *Collector) CollectSingle(ctx context.Context, ticker string) bool {
	quote := c.quotes.GetQuote(ctx, ticker, true)
	if quote == nil {
		return false
	}
	if err := c.savePrice(ctx, quote); err != nil {
		log.Printf("[ERROR] save price for %s: %v", ticker, err)
		return false
	}
	return true
}

// GetHistory returns the persisted records for ticker over the trailing
// days, ascending by date.
func (c *Collector) GetHistory(ctx context.Context, ticker string, days int) ([]model.PriceRecord, error) {
	return c.storage.History(ctx, ticker, days)
}

// GetStats summarizes the persisted history and the loop state.
func (c *Collector) GetStats(ctx context.Context) (*model.CollectorStats, error) {
	total, tickers, last, err := c.storage.Stats(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	return &model.CollectorStats{
		TotalRecords:    total,
		UniqueTickers:   tickers,
		LastCollection:  last,
		Running:         running,
		IntervalSeconds: c.interval.Seconds(),
	}, nil
}
