package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tkuroda/mail-digest/internal/config"
	"github.com/tkuroda/mail-digest/internal/mailbox"
	"github.com/tkuroda/mail-digest/internal/retry"
	"github.com/tkuroda/mail-digest/internal/runner"
	"github.com/tkuroda/mail-digest/internal/store"
	"github.com/tkuroda/mail-digest/internal/summarize"
	"github.com/tkuroda/mail-digest/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	fetcher := mailbox.NewClient(
		cfg.Mailbox.Host,
		cfg.Mailbox.Port,
		cfg.Mailbox.Username,
		cfg.Mailbox.Password,
		cfg.Mailbox.Folder,
		cfg.Mailbox.Lookback(),
		cfg.Mailbox.BodyLimit,
	)

	generator := summarize.NewClient(
		cfg.Summarizer.BaseURL,
		cfg.Summarizer.APIKey,
		cfg.Summarizer.Model,
		cfg.Summarizer.Temperature,
		cfg.Summarizer.MaxTokens,
		cfg.Summarizer.Timeout(),
		retry.Config{MaxRetries: cfg.Pipeline.MaxRetries, BaseDelay: time.Second},
	)

	parser := summarize.NewParser(cfg.Pipeline.SummaryLimit)

	r := runner.New(fetcher, generator, parser, st,
		cfg.Pipeline.BatchSize, cfg.Pipeline.Pace(), cfg.Pipeline.PromptBodyLimit)

	// Single-run mode: run the pipeline once and exit.
	if *once {
		log.Println("Running digest (once mode)...")
		if _, err := r.Run(context.Background()); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Println("Done")
		return
	}

	// At most one run may be in flight; the cron schedule and the manual
	// web trigger share this guard.
	var running atomic.Bool
	trigger := func() bool {
		if !running.CompareAndSwap(false, true) {
			return false
		}
		go func() {
			defer running.Store(false)
			if _, err := r.Run(context.Background()); err != nil {
				log.Printf("Run failed: %v", err)
			}
		}()
		return true
	}

	srv := web.NewServer(cfg.Web.Addr, st, trigger)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}

	if cfg.RunOnStart {
		log.Println("Running initial digest...")
		trigger()
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		log.Println("Cron triggered, running digest...")
		if !trigger() {
			log.Println("Skipping scheduled run: previous run still in progress")
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Printf("Scheduled digest with cron expression: %s", cfg.Schedule)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	c.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
