package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DHTSpectra/internal/ai"
	"DHTSpectra/internal/alerter"
	"DHTSpectra/internal/api"
	"DHTSpectra/internal/capture"
	"DHTSpectra/internal/config"
	"DHTSpectra/internal/export"
	"DHTSpectra/internal/model"
	"DHTSpectra/internal/notification"
	"DHTSpectra/internal/observability"
	"DHTSpectra/internal/scheduler"
	"DHTSpectra/internal/store"
	"DHTSpectra/internal/sysinfo"
	"DHTSpectra/internal/tracker"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	log.Println("Starting ds-monitor...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Open the metric store
	st, err := store.Open(cfg.Store.Path, cfg.Store.MaxRows)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.Store.Path, err)
	}
	defer st.Close()

	// 3. Resolve local addresses for traffic direction classification
	localIPs := cfg.Capture.LocalIPs
	if len(localIPs) == 0 {
		localIPs, err = sysinfo.LocalAddrs(cfg.Capture.Interface)
		if err != nil {
			log.Printf("Could not enumerate local addresses: %v", err)
		}
	}
	log.Printf("Classifying direction against local addresses: %v", localIPs)

	// 4. Build the capture and sampling pipeline
	capturer, err := capture.New(cfg.Capture, localIPs)
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}
	sampler := sysinfo.NewSampler()
	tr, err := tracker.New(cfg.Tracker)
	if err != nil {
		log.Fatalf("Failed to create node tracker: %v", err)
	}
	metrics := observability.New()

	// 5. Optional NATS export of every stored record
	var sinks []model.Sink
	if cfg.Export.NATS.Enabled {
		publisher, err := export.NewNATSPublisher(cfg.Export.NATS)
		if err != nil {
			log.Fatalf("Failed to connect NATS publisher: %v", err)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Printf("NATS export enabled at %s", cfg.Export.NATS.URL)
	}

	// 6. Optional AI analyzer, shared by the API and the alerter
	var analyzer *ai.Analyzer
	if cfg.AI.APIKey != "" {
		analyzer, err = ai.NewAnalyzer(&cfg.AI)
		if err != nil {
			log.Printf("AI analysis disabled: %v", err)
		}
	}

	sched, err := scheduler.New(cfg, st, sampler, capturer, tr, sinks, metrics)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	interval, _ := time.ParseDuration(cfg.Scheduler.Interval)

	// 7. Optional alerter over the configured notifiers
	if cfg.Alerter.Enabled {
		var notifiers []model.Notifier
		if cfg.Alerter.SMTP.Host != "" {
			notifiers = append(notifiers, notification.NewEmailNotifier(cfg.Alerter.SMTP))
		}
		if cfg.Alerter.Telegram.Token != "" {
			notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Alerter.Telegram))
		}
		if len(notifiers) == 0 {
			log.Println("Alerter enabled but no notifier configured; skipping alerter.")
		} else {
			alertAnalyzer := analyzer
			if !cfg.Alerter.AIAnalysis {
				alertAnalyzer = nil
			}
			al, err := alerter.NewAlerter(&cfg.Alerter, st, notification.NewMultiNotifier(notifiers...),
				alertAnalyzer, interval)
			if err != nil {
				log.Fatalf("Failed to create alerter: %v", err)
			}
			go al.Start()
			defer al.Stop()
			log.Println("Alerter started.")
		}
	}

	// 8. HTTP API and dashboard
	apiServer, err := api.NewServer(cfg, st, tr, analyzer, metrics)
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}
	httpServer := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: apiServer.Router(),
	}
	go func() {
		log.Printf("API server starting on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", httpServer.Addr, err)
		}
	}()

	// 9. Run the scheduler until a shutdown signal or a fatal store error
	ctx, cancel := context.WithCancel(context.Background())
	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Shutdown signal received, stopping...")
		cancel()
		<-schedErr
	case err := <-schedErr:
		cancel()
		if err != nil {
			log.Fatalf("Scheduler stopped: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
}
