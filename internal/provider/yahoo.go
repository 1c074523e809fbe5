package provider

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stockwatch/internal/model"
)

// Yahoo serves quotes, fundamentals, history, and search from the Yahoo
// Finance public endpoints. Free and uncapped, but prices run about 15
// minutes behind, so it is the non-realtime baseline of the chain.
type Yahoo struct {
	client  *http.Client
	baseURL string
	m       *meter
}

// NewYahoo creates the Yahoo provider. No credential is required.
func NewYahoo(proxyURL string, timeout time.Duration) *Yahoo {
	return &Yahoo{
		client:  newHTTPClient(proxyURL, timeout),
		baseURL: "https://query1.finance.yahoo.com",
		m:       newMeter(0, 0),
	}
}

func (y *Yahoo) Name() string    { return "yahoo" }
func (y *Yahoo) Priority() int   { return 1 }
func (y *Yahoo) Realtime() bool  { return false }
func (y *Yahoo) Available() bool { return true }

func (y *Yahoo) Status() model.ProviderStatus {
	left, reset := y.m.remaining()
	return model.ProviderStatus{
		Name:              y.Name(),
		Available:         true,
		RequestsRemaining: left,
		ResetTime:         reset,
		LastError:         y.m.lastError(),
	}
}

// yahooChart is the response shape of the v8 chart API. Price arrays
// arrive untyped because Yahoo emits nulls for holiday bars.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []any `json:"open"`
					High   []any `json:"high"`
					Low    []any `json:"low"`
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (y *Yahoo) fetchChart(ctx context.Context, ticker, interval, rng string) (*yahooChart, []model.OHLCV, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(ticker), interval, rng)

	var chart yahooChart
	if err := getJSON(ctx, y.client, u, nil, &chart); err != nil {
		return nil, nil, err
	}
	if chart.Chart.Error != nil {
		return nil, nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	// Price arrays must cover every timestamp; a truncated payload is
	// malformed, not partially usable.
	for _, arr := range [][]any{quote.Open, quote.High, quote.Low, quote.Close, quote.Volume} {
		if len(arr) < len(result.Timestamp) {
			return nil, nil, fmt.Errorf("yahoo: price arrays shorter than timestamps")
		}
	}
	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bar (holiday etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: int64(toFloat(quote.Volume[i])),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return &chart, bars, nil
}

func (y *Yahoo) GetQuote(ctx context.Context, ticker string) *model.Quote {
	ticker = strings.ToUpper(ticker)
	chart, bars, err := y.fetchChart(ctx, ticker, "1d", "5d")
	if err != nil {
		log.Printf("[WARN] yahoo quote %s: %v", ticker, err)
		y.m.fail(err)
		return nil
	}
	if len(bars) == 0 {
		return nil
	}
	y.m.record()

	last := bars[len(bars)-1]
	current := last.Close
	if p := chart.Chart.Result[0].Meta.RegularMarketPrice; p > 0 {
		current = p
	}
	prevClose := chart.Chart.Result[0].Meta.ChartPreviousClose
	if prevClose == 0 && len(bars) > 1 {
		prevClose = bars[len(bars)-2].Close
	}
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
		Open:          last.Open,
		High:          last.High,
		Low:           last.Low,
		Volume:        last.Volume,
		Change:        change,
		ChangePercent: changePct,
		Timestamp:     time.Now().UTC(),
		Source:        y.Name(),
	}
}

// yahooSummary is a subset of the v10 quoteSummary response.
type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
				MarketCap struct {
					Raw float64 `json:"raw"`
				} `json:"marketCap"`
			} `json:"price"`
			SummaryProfile struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"summaryProfile"`
			SummaryDetail struct {
				TrailingPE       rawValue `json:"trailingPE"`
				DividendYield    rawValue `json:"dividendYield"`
				FiftyTwoWeekHigh rawValue `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  rawValue `json:"fiftyTwoWeekLow"`
				AverageVolume    rawValue `json:"averageVolume"`
			} `json:"summaryDetail"`
			KeyStatistics struct {
				TrailingEps rawValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

type rawValue struct {
	Raw float64 `json:"raw"`
}

func (y *Yahoo) GetInfo(ctx context.Context, ticker string) *model.Info {
	ticker = strings.ToUpper(ticker)
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,summaryProfile,summaryDetail,defaultKeyStatistics",
		y.baseURL, url.PathEscape(ticker))

	var sum yahooSummary
	if err := getJSON(ctx, y.client, u, nil, &sum); err != nil {
		log.Printf("[WARN] yahoo info %s: %v", ticker, err)
		y.m.fail(err)
		return nil
	}
	if len(sum.QuoteSummary.Result) == 0 {
		return nil
	}
	y.m.record()

	r := sum.QuoteSummary.Result[0]
	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}
	if name == "" {
		name = ticker
	}
	return &model.Info{
		Ticker:           ticker,
		Name:             name,
		Sector:           r.SummaryProfile.Sector,
		Industry:         r.SummaryProfile.Industry,
		MarketCap:        r.Price.MarketCap.Raw,
		PERatio:          r.SummaryDetail.TrailingPE.Raw,
		EPS:              r.KeyStatistics.TrailingEps.Raw,
		DividendYield:    r.SummaryDetail.DividendYield.Raw,
		FiftyTwoWeekHigh: r.SummaryDetail.FiftyTwoWeekHigh.Raw,
		FiftyTwoWeekLow:  r.SummaryDetail.FiftyTwoWeekLow.Raw,
		AvgVolume:        int64(r.SummaryDetail.AverageVolume.Raw),
		Description:      r.SummaryProfile.LongBusinessSummary,
	}
}

// yahooRanges maps request periods onto chart API range tags.
var yahooRanges = map[string]string{
	"1d": "1d", "5d": "5d", "1mo": "1mo", "3mo": "3mo",
	"6mo": "6mo", "1y": "1y", "2y": "2y", "5y": "5y",
}

func (y *Yahoo) GetHistorical(ctx context.Context, ticker, period, interval string) []model.OHLCV {
	ticker = strings.ToUpper(ticker)
	rng, ok := yahooRanges[period]
	if !ok {
		rng = "1y"
	}
	if interval == "" {
		interval = "1d"
	}
	_, bars, err := y.fetchChart(ctx, ticker, interval, rng)
	if err != nil {
		log.Printf("[WARN] yahoo historical %s: %v", ticker, err)
		y.m.fail(err)
		return nil
	}
	y.m.record()
	return bars
}

type yahooSearch struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

func (y *Yahoo) Search(ctx context.Context, query string) []model.SearchResult {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		y.baseURL, url.QueryEscape(query))

	var res yahooSearch
	if err := getJSON(ctx, y.client, u, nil, &res); err != nil {
		log.Printf("[WARN] yahoo search %q: %v", query, err)
		y.m.fail(err)
		return nil
	}
	y.m.record()

	out := make([]model.SearchResult, 0, len(res.Quotes))
	for _, q := range res.Quotes {
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		out = append(out, model.SearchResult{
			Symbol:   q.Symbol,
			Name:     name,
			Type:     q.QuoteType,
			Exchange: q.Exchange,
		})
	}
	return out
}
