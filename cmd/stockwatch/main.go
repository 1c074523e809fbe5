package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stockwatch/internal/collector"
	"stockwatch/internal/config"
	"stockwatch/internal/manager"
	"stockwatch/internal/provider"
	"stockwatch/internal/store"
)

// stockwatch is a one-shot CLI over the aggregation layer: look up a
// quote, fundamentals, history, or symbol search; check provider
// quotas; manage holdings; trigger a single collection.
func main() {
	var (
		quoteTicker   = flag.String("quote", "", "print a quote for the given ticker")
		infoTicker    = flag.String("info", "", "print fundamentals for the given ticker")
		histTicker    = flag.String("history", "", "print historical bars for the given ticker")
		period        = flag.String("period", "1y", "history period (1d 5d 1mo 3mo 6mo 1y 2y 5y)")
		interval      = flag.String("interval", "1d", "history bar interval")
		searchQuery   = flag.String("search", "", "search symbols")
		status        = flag.Bool("status", false, "print provider status")
		collectTicker = flag.String("collect", "", "collect and persist one ticker now")
		holdTicker    = flag.String("hold", "", "set a holding for the given ticker")
		holdQty       = flag.Float64("qty", 0, "quantity for -hold")
		stats         = flag.Bool("stats", false, "print collection stats")
		realtime      = flag.Bool("realtime", false, "prefer realtime vendors for -quote")
		configPath    = flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
		timeoutSec    = flag.Int("timeout", 30, "overall timeout in seconds")
	)
	flag.Parse()
	log.SetFlags(0)

	path := *configPath
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	httpTimeout := time.Duration(cfg.Providers.RequestTimeoutSec) * time.Second
	mgr := manager.New(manager.Options{
		QuoteTTL:      time.Duration(cfg.Cache.QuoteTTLSec) * time.Second,
		InfoTTL:       time.Duration(cfg.Cache.InfoTTLSec) * time.Second,
		HistoricalTTL: time.Duration(cfg.Cache.HistoricalTTLSec) * time.Second,
	},
		provider.NewYahoo(cfg.Proxy, httpTimeout),
		provider.NewFinnhub(cfg.Providers.FinnhubKey, cfg.Proxy, httpTimeout),
		provider.NewTiingo(cfg.Providers.TiingoKey, cfg.Proxy, httpTimeout),
		provider.NewAlphaVantage(cfg.Providers.AlphaVantageKey, cfg.Proxy, httpTimeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
	defer cancel()

	switch {
	case *quoteTicker != "":
		quote := mgr.GetQuote(ctx, *quoteTicker, *realtime)
		if quote == nil {
			log.Fatalf("no quote available for %s", *quoteTicker)
		}
		printJSON(quote)

	case *infoTicker != "":
		printJSON(mgr.GetQuoteWithInfo(ctx, *infoTicker))

	case *histTicker != "":
		bars := mgr.GetHistorical(ctx, *histTicker, *period, *interval)
		if len(bars) == 0 {
			log.Fatalf("no historical data for %s", *histTicker)
		}
		printJSON(bars)

	case *searchQuery != "":
		results := mgr.Search(ctx, *searchQuery)
		if len(results) == 0 {
			log.Fatalf("no matches for %q", *searchQuery)
		}
		printJSON(results)

	case *status:
		printJSON(mgr.GetProviderStatus())

	case *holdTicker != "":
		ticker := strings.ToUpper(*holdTicker)
		st := openStore(cfg.Database.SQLitePath)
		defer st.Close()
		if err := st.SetHolding(ctx, ticker, "", *holdQty, 0); err != nil {
			log.Fatalf("set holding: %v", err)
		}
		fmt.Printf("holding %s set to %.2f\n", ticker, *holdQty)

	case *collectTicker != "":
		ticker := strings.ToUpper(*collectTicker)
		st := openStore(cfg.Database.SQLitePath)
		defer st.Close()
		col := collector.New(mgr, st, 0, 0)
		if !col.CollectSingle(ctx, ticker) {
			log.Fatalf("could not collect %s", ticker)
		}
		records, err := col.GetHistory(ctx, ticker, 1)
		if err != nil {
			log.Fatalf("history: %v", err)
		}
		printJSON(records)

	case *stats:
		st := openStore(cfg.Database.SQLitePath)
		defer st.Close()
		col := collector.New(mgr, st, 0, 0)
		cs, err := col.GetStats(ctx)
		if err != nil {
			log.Fatalf("stats: %v", err)
		}
		printJSON(cs)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openStore(path string) *store.Store {
	st, err := store.Open(path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	return st
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
