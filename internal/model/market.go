package model

import "time"

// Quote is a point-in-time price snapshot for a single ticker.
// It is recreated on every successful fetch and never mutated.
type Quote struct {
	Ticker        string    `json:"ticker"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
}

// Info holds slow-moving fundamentals for a ticker. Far more stable than
// quotes, so the manager caches it much longer.
type Info struct {
	Ticker           string  `json:"ticker"`
	Name             string  `json:"name"`
	Sector           string  `json:"sector,omitempty"`
	Industry         string  `json:"industry,omitempty"`
	MarketCap        float64 `json:"marketCap,omitempty"`
	PERatio          float64 `json:"peRatio,omitempty"`
	EPS              float64 `json:"eps,omitempty"`
	DividendYield    float64 `json:"dividendYield,omitempty"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow,omitempty"`
	AvgVolume        int64   `json:"avgVolume,omitempty"`
	Description      string  `json:"description,omitempty"`
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SearchResult is one match from a symbol search.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
}

// ProviderStatus is a point-in-time view of a vendor's health and quota.
// Recomputed from the provider's counters on demand, never persisted.
type ProviderStatus struct {
	Name              string     `json:"name"`
	Available         bool       `json:"available"`
	RequestsRemaining *int       `json:"requestsRemaining"` // nil means unlimited
	ResetTime         *time.Time `json:"resetTime,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
}
