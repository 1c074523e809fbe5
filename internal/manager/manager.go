package manager

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockwatch/internal/model"
	"stockwatch/internal/provider"
)

// Default cache TTLs. Quotes go stale fast, fundamentals barely move.
const (
	DefaultQuoteTTL      = 60 * time.Second
	DefaultInfoTTL       = time.Hour
	DefaultHistoricalTTL = 5 * time.Minute
)

// Options tunes the manager's cache TTLs. Zero fields take defaults.
type Options struct {
	QuoteTTL      time.Duration
	InfoTTL       time.Duration
	HistoricalTTL time.Duration
}

// Manager fronts an ordered chain of providers with per-category TTL
// caches. On a cache miss it tries providers strictly in priority order
// and caches the first success together with its provenance. A total
// miss across every provider is an expected steady state, reported as a
// nil/empty result rather than an error.
type Manager struct {
	providers []provider.Provider

	quotes     *ttlCache[*model.Quote]
	info       *ttlCache[*model.Info]
	historical *ttlCache[[]model.OHLCV]
}

// New builds a Manager. Providers are ordered by ascending priority;
// ties keep their registration order.
func New(opts Options, providers ...provider.Provider) *Manager {
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = DefaultQuoteTTL
	}
	if opts.InfoTTL <= 0 {
		opts.InfoTTL = DefaultInfoTTL
	}
	if opts.HistoricalTTL <= 0 {
		opts.HistoricalTTL = DefaultHistoricalTTL
	}

	ordered := make([]provider.Provider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	m := &Manager{
		providers:  ordered,
		quotes:     newTTLCache[*model.Quote](opts.QuoteTTL),
		info:       newTTLCache[*model.Info](opts.InfoTTL),
		historical: newTTLCache[[]model.OHLCV](opts.HistoricalTTL),
	}
	log.Printf("[INFO] market data manager initialized with %d providers", len(ordered))
	return m
}

// GetQuote returns the freshest quote available for ticker, or nil when
// no provider can serve it. With preferRealtime the cached value is
// bypassed for the read (but refreshed by the result) and realtime
// vendors are tried before the delayed baseline.
func (m *Manager) GetQuote(ctx context.Context, ticker string, preferRealtime bool) *model.Quote {
	ticker = strings.ToUpper(ticker)

	if !preferRealtime {
		if q, _, ok := m.quotes.get(ticker); ok {
			log.Printf("[DEBUG] quote cache hit for %s", ticker)
			return q
		}
	}

	order := m.providers
	if preferRealtime {
		order = realtimeFirst(m.providers)
	}
	for _, p := range order {
		if !p.Available() {
			continue
		}
		if q := p.GetQuote(ctx, ticker); q != nil {
			m.quotes.put(ticker, q, p.Name())
			log.Printf("[DEBUG] quote for %s from %s", ticker, p.Name())
			return q
		}
	}

	log.Printf("[ERROR] all providers failed for quote %s", ticker)
	return nil
}

// realtimeFirst moves the delayed baseline vendor to the back while
// keeping the relative order of realtime vendors.
func realtimeFirst(providers []provider.Provider) []provider.Provider {
	out := make([]provider.Provider, len(providers))
	copy(out, providers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Realtime() && !out[j].Realtime()
	})
	return out
}

// GetInfo returns fundamentals for ticker, or nil when no provider can
// serve it. Info is not realtime-sensitive, so there is no reordering.
func (m *Manager) GetInfo(ctx context.Context, ticker string) *model.Info {
	ticker = strings.ToUpper(ticker)

	if info, _, ok := m.info.get(ticker); ok {
		log.Printf("[DEBUG] info cache hit for %s", ticker)
		return info
	}
	for _, p := range m.providers {
		if !p.Available() {
			continue
		}
		if info := p.GetInfo(ctx, ticker); info != nil {
			m.info.put(ticker, info, p.Name())
			log.Printf("[DEBUG] info for %s from %s", ticker, p.Name())
			return info
		}
	}

	log.Printf("[ERROR] all providers failed for info %s", ticker)
	return nil
}

// GetHistorical returns bars sorted ascending by time; empty on total
// failure, never nil-vs-present ambiguity for callers that range.
func (m *Manager) GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV {
	bars, _ := m.GetHistoricalWithSource(ctx, ticker, period, interval)
	return bars
}

// GetHistoricalWithSource is GetHistorical plus the vendor that produced
// the bars, for callers that persist provenance.
func (m *Manager) GetHistoricalWithSource(ctx context.Context, ticker, period, interval string) ([]model.OHLCV, string) {
	ticker = strings.ToUpper(ticker)
	key := historicalKey(ticker, period, interval)

	if bars, source, ok := m.historical.get(key); ok {
		log.Printf("[DEBUG] historical cache hit for %s", key)
		return bars, source
	}
	for _, p := range m.providers {
		if !p.Available() {
			continue
		}
		if bars := p.GetHistorical(ctx, ticker, period, interval); len(bars) > 0 {
			m.historical.put(key, bars, p.Name())
			log.Printf("[DEBUG] historical for %s from %s", key, p.Name())
			return bars, p.Name()
		}
	}

	log.Printf("[ERROR] all providers failed for historical %s", key)
	return nil, ""
}

func historicalKey(ticker, period, interval string) string {
	return fmt.Sprintf("%s_%s_%s", ticker, period, interval)
}

// Search returns the first provider's non-empty match list. Results are
// not cached.
func (m *Manager) Search(ctx context.Context, query string) []model.SearchResult {
	for _, p := range m.providers {
		if !p.Available() {
			continue
		}
		if results := p.Search(ctx, query); len(results) > 0 {
			return results
		}
	}
	return nil
}

// GetMultipleQuotes fetches quotes for all tickers concurrently.
// Tickers that could not be served are absent from the result map; the
// output may be smaller than the input.
func (m *Manager) GetMultipleQuotes(ctx context.Context, tickers []string) map[string]*model.Quote {
	quotes := make(map[string]*model.Quote, len(tickers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			if q := m.GetQuote(gctx, ticker, false); q != nil {
				mu.Lock()
				quotes[strings.ToUpper(ticker)] = q
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return quotes
}

// GetQuoteWithInfo fetches quote and fundamentals together and flattens
// them into one response map for serving layers.
func (m *Manager) GetQuoteWithInfo(ctx context.Context, ticker string) map[string]any {
	ticker = strings.ToUpper(ticker)

	var quote *model.Quote
	var info *model.Info
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { quote = m.GetQuote(gctx, ticker, false); return nil })
	g.Go(func() error { info = m.GetInfo(gctx, ticker); return nil })
	_ = g.Wait()

	result := map[string]any{"ticker": ticker}
	if quote != nil {
		result["currentPrice"] = quote.CurrentPrice
		result["previousClose"] = quote.PreviousClose
		result["open"] = quote.Open
		result["high"] = quote.High
		result["low"] = quote.Low
		result["volume"] = quote.Volume
		result["change"] = quote.Change
		result["changePercent"] = quote.ChangePercent
		result["timestamp"] = quote.Timestamp.Format(time.RFC3339)
		result["priceSource"] = quote.Source
	}
	if info != nil {
		result["name"] = info.Name
		result["sector"] = info.Sector
		result["industry"] = info.Industry
		result["marketCap"] = info.MarketCap
		result["peRatio"] = info.PERatio
		result["eps"] = info.EPS
		result["dividendYield"] = info.DividendYield
		result["fiftyTwoWeekHigh"] = info.FiftyTwoWeekHigh
		result["fiftyTwoWeekLow"] = info.FiftyTwoWeekLow
		result["avgVolume"] = info.AvgVolume
		result["description"] = info.Description
	}
	return result
}

// ClearCache drops cached entries for one ticker across all three
// caches, or everything when ticker is empty. Historical entries match
// by key prefix.
func (m *Manager) ClearCache(ticker string) {
	if ticker == "" {
		m.quotes.clear()
		m.info.clear()
		m.historical.clear()
		return
	}
	ticker = strings.ToUpper(ticker)
	m.quotes.delete(ticker)
	m.info.delete(ticker)
	m.historical.deletePrefix(ticker + "_")
}

// GetProviderStatus snapshots every provider in priority order.
func (m *Manager) GetProviderStatus() []model.ProviderStatus {
	statuses := make([]model.ProviderStatus, 0, len(m.providers))
	for _, p := range m.providers {
		statuses = append(statuses, p.Status())
	}
	return statuses
}
