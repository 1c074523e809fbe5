package provider

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockwatch/internal/model"
)

// Finnhub serves realtime quotes on a 60-requests-per-minute free tier.
type Finnhub struct {
	apiKey    string
	client    *http.Client
	baseURL   string
	available bool
	m         *meter
}

// NewFinnhub creates the Finnhub provider. Without an API key the
// provider is constructed permanently unavailable.
func NewFinnhub(apiKey, proxyURL string, timeout time.Duration) *Finnhub {
	if apiKey == "" {
		log.Println("[WARN] finnhub API key not provided, provider disabled")
	}
	return &Finnhub{
		apiKey:    apiKey,
		client:    newHTTPClient(proxyURL, timeout),
		baseURL:   "https://finnhub.io/api/v1",
		available: apiKey != "",
		m:         newMeter(60, 0),
	}
}

func (f *Finnhub) Name() string    { return "finnhub" }
func (f *Finnhub) Priority() int   { return 2 }
func (f *Finnhub) Realtime() bool  { return true }
func (f *Finnhub) Available() bool { return f.available }

func (f *Finnhub) Status() model.ProviderStatus {
	left, reset := f.m.remaining()
	return model.ProviderStatus{
		Name:              f.Name(),
		Available:         f.available && (left == nil || *left > 0),
		RequestsRemaining: left,
		ResetTime:         reset,
		LastError:         f.m.lastError(),
	}
}

func (f *Finnhub) GetQuote(ctx context.Context, ticker string) *model.Quote {
	if !f.available || !f.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", f.baseURL, url.QueryEscape(ticker), f.apiKey)

	var data struct {
		Current   float64 `json:"c"`
		Change    float64 `json:"d"`
		ChangePct float64 `json:"dp"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Open      float64 `json:"o"`
		PrevClose float64 `json:"pc"`
	}
	if err := getJSON(ctx, f.client, u, nil, &data); err != nil {
		log.Printf("[WARN] finnhub quote %s: %v", ticker, err)
		f.m.fail(err)
		return nil
	}
	// Finnhub answers unknown tickers with an all-zero quote.
	if data.Current == 0 {
		return nil
	}
	f.m.record()

	prevClose := data.PrevClose
	if prevClose == 0 {
		prevClose = data.Current
	}
	return &model.Quote{
		Ticker:        ticker,
		CurrentPrice:  data.Current,
		PreviousClose: prevClose,
		Open:          data.Open,
		High:          data.High,
		Low:           data.Low,
		Volume:        0, // not in the quote endpoint
		Change:        data.Change,
		ChangePercent: data.ChangePct,
		Timestamp:     time.Now().UTC(),
		Source:        f.Name(),
	}
}

func (f *Finnhub) GetInfo(ctx context.Context, ticker string) *model.Info {
	if !f.available || !f.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := fmt.Sprintf("%s/stock/profile2?symbol=%s&token=%s", f.baseURL, url.QueryEscape(ticker), f.apiKey)

	var data struct {
		Name            string  `json:"name"`
		FinnhubIndustry string  `json:"finnhubIndustry"`
		MarketCap       float64 `json:"marketCapitalization"` // millions
	}
	if err := getJSON(ctx, f.client, u, nil, &data); err != nil {
		log.Printf("[WARN] finnhub info %s: %v", ticker, err)
		f.m.fail(err)
		return nil
	}
	if data.Name == "" {
		return nil
	}
	f.m.record()

	return &model.Info{
		Ticker:    ticker,
		Name:      data.Name,
		Sector:    data.FinnhubIndustry,
		Industry:  data.FinnhubIndustry,
		MarketCap: data.MarketCap * 1_000_000,
	}
}

// finnhubResolutions maps request intervals to candle resolutions.
var finnhubResolutions = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"60m": "60", "1h": "60", "1d": "D", "1wk": "W", "1mo": "M",
}

func (f *Finnhub) GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV {
	if !f.available || !f.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)

	end := time.Now()
	start := end.AddDate(0, 0, -daysForPeriod(period))
	resolution, ok := finnhubResolutions[interval]
	if !ok {
		resolution = "D"
	}
	u := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=%s&from=%d&to=%d&token=%s",
		f.baseURL, url.QueryEscape(ticker), resolution, start.Unix(), end.Unix(), f.apiKey)

	var data struct {
		Status string    `json:"s"`
		Times  []int64   `json:"t"`
		Opens  []float64 `json:"o"`
		Highs  []float64 `json:"h"`
		Lows   []float64 `json:"l"`
		Closes []float64 `json:"c"`
		Vols   []float64 `json:"v"`
	}
	if err := getJSON(ctx, f.client, u, nil, &data); err != nil {
		log.Printf("[WARN] finnhub historical %s: %v", ticker, err)
		f.m.fail(err)
		return nil
	}
	if data.Status != "ok" || len(data.Times) == 0 {
		return nil
	}
	n := len(data.Times)
	if len(data.Opens) < n || len(data.Highs) < n || len(data.Lows) < n ||
		len(data.Closes) < n || len(data.Vols) < n {
		log.Printf("[WARN] finnhub historical %s: candle arrays shorter than timestamps", ticker)
		return nil
	}
	f.m.record()

	bars := make([]model.OHLCV, 0, len(data.Times))
	for i, ts := range data.Times {
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   data.Opens[i],
			High:   data.Highs[i],
			Low:    data.Lows[i],
			Close:  data.Closes[i],
			Volume: int64(data.Vols[i]),
		})
	}
	return bars
}

func (f *Finnhub) Search(ctx context.Context, query string) []model.SearchResult {
	if !f.available || !f.m.allow() {
		return nil
	}
	u := fmt.Sprintf("%s/search?q=%s&token=%s", f.baseURL, url.QueryEscape(query), f.apiKey)

	var data struct {
		Result []struct {
			Symbol        string `json:"symbol"`
			Description   string `json:"description"`
			Type          string `json:"type"`
			DisplaySymbol string `json:"displaySymbol"`
		} `json:"result"`
	}
	if err := getJSON(ctx, f.client, u, nil, &data); err != nil {
		log.Printf("[WARN] finnhub search %q: %v", query, err)
		f.m.fail(err)
		return nil
	}
	f.m.record()

	n := len(data.Result)
	if n > 10 {
		n = 10
	}
	out := make([]model.SearchResult, 0, n)
	for _, item := range data.Result[:n] {
		out = append(out, model.SearchResult{
			Symbol:   item.Symbol,
			Name:     item.Description,
			Type:     item.Type,
			Exchange: item.DisplaySymbol,
		})
	}
	return out
}
