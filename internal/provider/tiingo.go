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

// Tiingo serves realtime IEX quotes on a 1000-requests-per-day free
// tier. No symbol search endpoint.
type Tiingo struct {
	apiKey    string
	client    *http.Client
	baseURL   string
	available bool
	m         *meter
}

// NewTiingo creates the Tiingo provider. Without an API key the provider
// is constructed permanently unavailable.
func NewTiingo(apiKey, proxyURL string, timeout time.Duration) *Tiingo {
	if apiKey == "" {
		log.Println("[WARN] tiingo API key not provided, provider disabled")
	}
	return &Tiingo{
		apiKey:    apiKey,
		client:    newHTTPClient(proxyURL, timeout),
		baseURL:   "https://api.tiingo.com",
		available: apiKey != "",
		m:         newMeter(0, 1000),
	}
}

func (t *Tiingo) Name() string    { return "tiingo" }
func (t *Tiingo) Priority() int   { return 3 }
func (t *Tiingo) Realtime() bool  { return true }
func (t *Tiingo) Available() bool { return t.available }

func (t *Tiingo) headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Token " + t.apiKey,
	}
}

func (t *Tiingo) Status() model.ProviderStatus {
	left, reset := t.m.remaining()
	return model.ProviderStatus{
		Name:              t.Name(),
		Available:         t.available && (left == nil || *left > 0),
		RequestsRemaining: left,
		ResetTime:         reset,
		LastError:         t.m.lastError(),
	}
}

func (t *Tiingo) GetQuote(ctx context.Context, ticker string) *model.Quote {
	if !t.available || !t.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := fmt.Sprintf("%s/iex/%s", t.baseURL, url.PathEscape(ticker))

	var data []struct {
		Last      float64 `json:"last"`
		TngoLast  float64 `json:"tngoLast"`
		PrevClose float64 `json:"prevClose"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Volume    int64   `json:"volume"`
	}
	if err := getJSON(ctx, t.client, u, t.headers(), &data); err != nil {
		log.Printf("[WARN] tiingo quote %s: %v", ticker, err)
		t.m.fail(err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	t.m.record()

	item := data[0]
	current := item.Last
	if current == 0 {
		current = item.TngoLast
	}
	if current == 0 {
		return nil
	}
	prevClose := item.PrevClose
	if prevClose == 0 {
		prevClose = current
	}
	change := current - prevClose
	var changePct float64
	if prevClose != 0 {
		changePct = change / prevClose * 100
	}
	return &model.Quote{
		Ticker:        ticker,
		CurrentPrice:  current,
		PreviousClose: prevClose,
		Open:          item.Open,
		High:          item.High,
		Low:           item.Low,
		Volume:        item.Volume,
		Change:        change,
		ChangePercent: changePct,
		Timestamp:     time.Now().UTC(),
		Source:        t.Name(),
	}
}

func (t *Tiingo) GetInfo(ctx context.Context, ticker string) *model.Info {
	if !t.available || !t.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := fmt.Sprintf("%s/tiingo/daily/%s", t.baseURL, url.PathEscape(ticker))

	var data struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := getJSON(ctx, t.client, u, t.headers(), &data); err != nil {
		log.Printf("[WARN] tiingo info %s: %v", ticker, err)
		t.m.fail(err)
		return nil
	}
	if data.Name == "" {
		return nil
	}
	t.m.record()

	return &model.Info{
		Ticker:      ticker,
		Name:        data.Name,
		Description: data.Description,
	}
}

// tiingoFreqs maps request intervals to Tiingo resample frequencies.
var tiingoFreqs = map[string]string{
	"1d": "daily", "1wk": "weekly", "1mo": "monthly",
}

func (t *Tiingo) GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV {
	if !t.available || !t.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)

	end := time.Now()
	start := end.AddDate(0, 0, -daysForPeriod(period))
	freq, ok := tiingoFreqs[interval]
	if !ok {
		freq = "daily"
	}
	u := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&resampleFreq=%s",
		t.baseURL, url.PathEscape(ticker),
		start.Format("2006-01-02"), end.Format("2006-01-02"), freq)

	var data []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	}
	if err := getJSON(ctx, t.client, u, t.headers(), &data); err != nil {
		log.Printf("[WARN] tiingo historical %s: %v", ticker, err)
		t.m.fail(err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	t.m.record()

	bars := make([]model.OHLCV, 0, len(data))
	for _, item := range data {
		ts, err := time.Parse(time.RFC3339, item.Date)
		if err != nil {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   ts,
			Open:   item.Open,
			High:   item.High,
			Low:    item.Low,
			Close:  item.Close,
			Volume: item.Volume,
		})
	}
	return bars
}

// Search is unsupported by Tiingo.
func (t *Tiingo) Search(ctx context.Context, query string) []model.SearchResult {
	return nil
}
