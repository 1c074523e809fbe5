package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/internal/collector"
	"stockwatch/internal/config"
	"stockwatch/internal/manager"
	"stockwatch/internal/provider"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] stockwatchd starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Open store
	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	// Init providers and manager
	timeout := time.Duration(cfg.Providers.RequestTimeoutSec) * time.Second
	mgr := manager.New(manager.Options{
		QuoteTTL:      time.Duration(cfg.Cache.QuoteTTLSec) * time.Second,
		InfoTTL:       time.Duration(cfg.Cache.InfoTTLSec) * time.Second,
		HistoricalTTL: time.Duration(cfg.Cache.HistoricalTTLSec) * time.Second,
	},
		provider.NewYahoo(cfg.Proxy, timeout),
		provider.NewFinnhub(cfg.Providers.FinnhubKey, cfg.Proxy, timeout),
		provider.NewTiingo(cfg.Providers.TiingoKey, cfg.Proxy, timeout),
		provider.NewAlphaVantage(cfg.Providers.AlphaVantageKey, cfg.Proxy, timeout),
	)
	for _, ps := range mgr.GetProviderStatus() {
		log.Printf("[INFO] provider %s available=%t", ps.Name, ps.Available)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start price collector
	col := collector.New(mgr, st,
		time.Duration(cfg.Collector.IntervalSec)*time.Second,
		time.Duration(cfg.Collector.CooldownSec)*time.Second)
	col.Start()
	defer col.Stop()

	// Start backfill scheduler
	sched := scheduler.New(ctx, mgr, st, cfg.Schedule.BackfillPeriod)
	if err := sched.Register(cfg.Schedule.BackfillCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: backfill immediately on start
	if os.Getenv("BACKFILL_ON_START") == "true" {
		log.Println("[INFO] BACKFILL_ON_START enabled, executing backfill now")
		go sched.RunBackfillNow()
	}

	log.Println("[INFO] stockwatchd is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
}
