package provider

import (
	"context"

	"stockwatch/internal/model"
)

// Provider is a single market-data vendor normalized to the common
// model shapes. Operations never return vendor errors to the caller:
// HTTP failures, malformed payloads, and exhausted quotas all surface
// as a nil or empty result, with the cause recorded internally and
// visible through Status().
type Provider interface {
	// Name identifies the vendor in logs and provenance fields.
	Name() string
	// Priority orders providers in the fallback chain (lower = preferred).
	Priority() int
	// Realtime reports whether the vendor serves live prices. The one
	// delayed baseline vendor returns false and is deprioritized when a
	// caller asks for realtime-preferred quotes.
	Realtime() bool
	// Available is false permanently when the vendor was constructed
	// without a required credential.
	Available() bool

	GetQuote(ctx context.Context, ticker string) *model.Quote
	GetInfo(ctx context.Context, ticker string) *model.Info
	GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV
	Search(ctx context.Context, query string) []model.SearchResult

	Status() model.ProviderStatus
}

// periodDays maps a request period to a trailing day count, shared by
// vendors that take explicit date ranges.
var periodDays = map[string]int{
	"1d": 1, "5d": 5, "1mo": 30, "3mo": 90,
	"6mo": 180, "1y": 365, "2y": 730, "5y": 1825,
}

func daysForPeriod(period string) int {
	if d, ok := periodDays[period]; ok {
		return d
	}
	return 365
}
