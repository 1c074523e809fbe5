package provider

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockwatch/internal/model"
)

// AlphaVantage serves realtime quotes and fundamentals under the
// strictest free-tier quota (5 per minute, 25 per day), so it sits at
// the bottom of the fallback chain.
type AlphaVantage struct {
	apiKey    string
	client    *http.Client
	baseURL   string
	available bool
	m         *meter
}

// NewAlphaVantage creates the Alpha Vantage provider. Without an API
// key the provider is constructed permanently unavailable.
func NewAlphaVantage(apiKey, proxyURL string, timeout time.Duration) *AlphaVantage {
	if apiKey == "" {
		log.Println("[WARN] alphavantage API key not provided, provider disabled")
	}
	return &AlphaVantage{
		apiKey:    apiKey,
		client:    newHTTPClient(proxyURL, timeout),
		baseURL:   "https://www.alphavantage.co/query",
		available: apiKey != "",
		m:         newMeter(5, 25),
	}
}

func (a *AlphaVantage) Name() string    { return "alphavantage" }
func (a *AlphaVantage) Priority() int   { return 4 }
func (a *AlphaVantage) Realtime() bool  { return true }
func (a *AlphaVantage) Available() bool { return a.available }

func (a *AlphaVantage) Status() model.ProviderStatus {
	left, reset := a.m.remaining()
	return model.ProviderStatus{
		Name:              a.Name(),
		Available:         a.available && (left == nil || *left > 0),
		RequestsRemaining: left,
		ResetTime:         reset,
		LastError:         a.m.lastError(),
	}
}

func (a *AlphaVantage) query(params url.Values) string {
	params.Set("apikey", a.apiKey)
	return a.baseURL + "?" + params.Encode()
}

// parseFloat tolerates Alpha Vantage's string numbers, "None" included.
func parseFloat(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (a *AlphaVantage) GetQuote(ctx context.Context, ticker string) *model.Quote {
	if !a.available || !a.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := a.query(url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {ticker}})

	var data struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := getJSON(ctx, a.client, u, nil, &data); err != nil {
		log.Printf("[WARN] alphavantage quote %s: %v", ticker, err)
		a.m.fail(err)
		return nil
	}
	q := data.GlobalQuote
	if len(q) == 0 || q["05. price"] == "" {
		return nil
	}
	a.m.record()

	current := parseFloat(q["05. price"])
	prevClose := parseFloat(q["08. previous close"])
	if prevClose == 0 {
		prevClose = current
	}
	return &model.Quote{
		Ticker:        ticker,
		CurrentPrice:  current,
		PreviousClose: prevClose,
		Open:          parseFloat(q["02. open"]),
		High:          parseFloat(q["03. high"]),
		Low:           parseFloat(q["04. low"]),
		Volume:        int64(parseFloat(q["06. volume"])),
		Change:        parseFloat(q["09. change"]),
		ChangePercent: parseFloat(q["10. change percent"]),
		Timestamp:     time.Now().UTC(),
		Source:        a.Name(),
	}
}

func (a *AlphaVantage) GetInfo(ctx context.Context, ticker string) *model.Info {
	if !a.available || !a.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	u := a.query(url.Values{"function": {"OVERVIEW"}, "symbol": {ticker}})

	var data struct {
		Symbol           string `json:"Symbol"`
		Name             string `json:"Name"`
		Sector           string `json:"Sector"`
		Industry         string `json:"Industry"`
		MarketCap        string `json:"MarketCapitalization"`
		PERatio          string `json:"PERatio"`
		EPS              string `json:"EPS"`
		DividendYield    string `json:"DividendYield"`
		FiftyTwoWeekHigh string `json:"52WeekHigh"`
		FiftyTwoWeekLow  string `json:"52WeekLow"`
		Description      string `json:"Description"`
	}
	if err := getJSON(ctx, a.client, u, nil, &data); err != nil {
		log.Printf("[WARN] alphavantage info %s: %v", ticker, err)
		a.m.fail(err)
		return nil
	}
	if data.Symbol == "" {
		return nil
	}
	a.m.record()

	name := data.Name
	if name == "" {
		name = ticker
	}
	return &model.Info{
		Ticker:           ticker,
		Name:             name,
		Sector:           data.Sector,
		Industry:         data.Industry,
		MarketCap:        parseFloat(data.MarketCap),
		PERatio:          parseFloat(data.PERatio),
		EPS:              parseFloat(data.EPS),
		DividendYield:    parseFloat(data.DividendYield),
		FiftyTwoWeekHigh: parseFloat(data.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  parseFloat(data.FiftyTwoWeekLow),
		Description:      data.Description,
	}
}

// periodBars caps the bar count returned per period (trading days).
var periodBars = map[string]int{
	"1d": 1, "5d": 5, "1mo": 22, "3mo": 66,
	"6mo": 132, "1y": 252, "2y": 504, "5y": 1260,
}

func (a *AlphaVantage) GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV {
	if !a.available || !a.m.allow() {
		return nil
	}
	ticker = strings.ToUpper(ticker)

	params := url.Values{"symbol": {ticker}}
	switch interval {
	case "1m", "5m", "15m", "30m", "60m", "1h":
		params.Set("function", "TIME_SERIES_INTRADAY")
		iv := strings.Replace(interval, "1h", "60m", 1)
		params.Set("interval", strings.Replace(iv, "m", "min", 1))
	default:
		params.Set("function", "TIME_SERIES_DAILY")
	}
	switch period {
	case "2y", "5y", "10y", "max":
		params.Set("outputsize", "full")
	default:
		params.Set("outputsize", "compact")
	}

	var data map[string]any
	if err := getJSON(ctx, a.client, a.query(params), nil, &data); err != nil {
		log.Printf("[WARN] alphavantage historical %s: %v", ticker, err)
		a.m.fail(err)
		return nil
	}

	// The time series lives under a key like "Time Series (Daily)".
	var series map[string]any
	for key, v := range data {
		if strings.Contains(key, "Time Series") {
			series, _ = v.(map[string]any)
			break
		}
	}
	if len(series) == 0 {
		return nil
	}
	a.m.record()

	bars := make([]model.OHLCV, 0, len(series))
	for dateStr, v := range series {
		values, ok := v.(map[string]any)
		if !ok {
			continue
		}
		var ts time.Time
		var err error
		if strings.Contains(dateStr, " ") {
			ts, err = time.Parse("2006-01-02 15:04:05", dateStr)
		} else {
			ts, err = time.Parse("2006-01-02", dateStr)
		}
		if err != nil {
			continue
		}
		field := func(k string) float64 {
			s, _ := values[k].(string)
			return parseFloat(s)
		}
		bars = append(bars, model.OHLCV{
			Time:   ts,
			Open:   field("1. open"),
			High:   field("2. high"),
			Low:    field("3. low"),
			Close:  field("4. close"),
			Volume: int64(field("5. volume")),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	max, ok := periodBars[period]
	if !ok {
		max = 252
	}
	if len(bars) > max {
		bars = bars[len(bars)-max:]
	}
	return bars
}

func (a *AlphaVantage) Search(ctx context.Context, query string) []model.SearchResult {
	if !a.available || !a.m.allow() {
		return nil
	}
	u := a.query(url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {query}})

	var data struct {
		BestMatches []map[string]string `json:"bestMatches"`
	}
	if err := getJSON(ctx, a.client, u, nil, &data); err != nil {
		log.Printf("[WARN] alphavantage search %q: %v", query, err)
		a.m.fail(err)
		return nil
	}
	if len(data.BestMatches) == 0 {
		return nil
	}
	a.m.record()

	n := len(data.BestMatches)
	if n > 10 {
		n = 10
	}
	out := make([]model.SearchResult, 0, n)
	for _, item := range data.BestMatches[:n] {
		out = append(out, model.SearchResult{
			Symbol:   item["1. symbol"],
			Name:     item["2. name"],
			Type:     item["3. type"],
			Exchange: item["4. region"],
		})
	}
	return out
}
