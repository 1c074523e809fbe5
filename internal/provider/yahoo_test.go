package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	y := NewYahoo("", 5*time.Second)
	y.baseURL = srv.URL
	return y
}

const yahooChartBody = `{
  "chart": {
    "result": [{
      "meta": {"regularMarketPrice": 152.5, "chartPreviousClose": 150.0},
      "timestamp": [1717200000, 1717286400, 1717372800],
      "indicators": {"quote": [{
        "open":   [149.0, null, 151.0],
        "high":   [151.0, null, 153.0],
        "low":    [148.5, null, 150.5],
        "close":  [150.0, null, 152.0],
        "volume": [1000, null, 2000]
      }]}
    }],
    "error": null
  }
}`

func TestYahoo_GetQuote(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		fmt.Fprint(w, yahooChartBody)
	})

	q := y.GetQuote(context.Background(), "aapl")
	require.NotNil(t, q)
	assert.Equal(t, "AAPL", q.Ticker)
	assert.Equal(t, 152.5, q.CurrentPrice) // meta price wins over last close
	assert.Equal(t, 150.0, q.PreviousClose)
	assert.Equal(t, "yahoo", q.Source)
	assert.InDelta(t, 2.5, q.Change, 1e-9)
	assert.InDelta(t, 2.5/150.0*100, q.ChangePercent, 1e-9)
}

func TestYahoo_GetHistoricalSkipsNullBars(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yahooChartBody)
	})

	bars := y.GetHistorical(context.Background(), "AAPL", "1mo", "1d")
	require.Len(t, bars, 2, "the holiday bar must be dropped")
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, 150.0, bars[0].Close)
	assert.Equal(t, 152.0, bars[1].Close)
	assert.Equal(t, int64(2000), bars[1].Volume)
}

func TestYahoo_TruncatedPriceArraysAreMalformed(t *testing.T) {
	// More timestamps than price entries must surface as an absent
	// result, never as a panic.
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"meta":{"regularMarketPrice":152.5,"chartPreviousClose":150.0},
			"timestamp":[1717200000,1717286400,1717372800],
			"indicators":{"quote":[{
				"open":[149.0],"high":[151.0],"low":[148.5],"close":[150.0],"volume":[1000]
			}]}
		}],"error":null}}`)
	})

	assert.Nil(t, y.GetQuote(context.Background(), "AAPL"))
	assert.Nil(t, y.GetHistorical(context.Background(), "AAPL", "1mo", "1d"))
	assert.Contains(t, y.Status().LastError, "shorter than timestamps")
}

func TestYahoo_GetQuoteAPIError(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})

	q := y.GetQuote(context.Background(), "NOPE")
	assert.Nil(t, q)
	assert.Contains(t, y.Status().LastError, "No data found")
}

func TestYahoo_GetQuoteVendorDown(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})

	assert.Nil(t, y.GetQuote(context.Background(), "AAPL"))
	assert.True(t, y.Available(), "yahoo stays available, only the call failed")
}

func TestYahoo_GetInfo(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteSummary":{"result":[{
			"price":{"longName":"Apple Inc.","marketCap":{"raw":3.0e12}},
			"summaryProfile":{"sector":"Technology","industry":"Consumer Electronics"},
			"summaryDetail":{"trailingPE":{"raw":29.5},"fiftyTwoWeekHigh":{"raw":199.6},"fiftyTwoWeekLow":{"raw":143.9},"averageVolume":{"raw":58000000}},
			"defaultKeyStatistics":{"trailingEps":{"raw":6.42}}
		}]}}`)
	})

	info := y.GetInfo(context.Background(), "AAPL")
	require.NotNil(t, info)
	assert.Equal(t, "Apple Inc.", info.Name)
	assert.Equal(t, "Technology", info.Sector)
	assert.Equal(t, 29.5, info.PERatio)
	assert.Equal(t, 6.42, info.EPS)
	assert.Equal(t, int64(58000000), info.AvgVolume)
}

func TestYahoo_Search(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "apple", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","quoteType":"EQUITY","exchange":"NMS"},
			{"symbol":"APLE","longname":"Apple Hospitality REIT","quoteType":"EQUITY","exchange":"NYQ"}
		]}`)
	})

	results := y.Search(context.Background(), "apple")
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "Apple Inc.", results[0].Name)
	assert.Equal(t, "Apple Hospitality REIT", results[1].Name)
}
