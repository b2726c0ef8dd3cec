package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/auth"
	"github.com/last-emo-boy/uptime-monitor/pkg/config"
	"github.com/last-emo-boy/uptime-monitor/pkg/database"
	"github.com/last-emo-boy/uptime-monitor/pkg/httpapi"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/incident"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/notify"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/orchestrator"
)

func main() {
	log.Println("🔍 Starting uptime monitor probe engine...")
	startedAt := time.Now()

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	log.Printf("📋 Environment: %s", environment)

	db, err := database.NewDB(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkRepo := monitor.NewCheckRepository(db)
	cache, err := monitor.NewMonitorCache(checkRepo, monitor.DefaultRefreshConfig())
	if err != nil {
		log.Fatalf("❌ Failed to initialize monitor cache: %v", err)
	}

	resultsSink := monitor.NewClickHouseHTTPSink(cfg.Monitor.ClickHouseURL, cfg.Monitor.ClickHouseUser, cfg.Monitor.ClickHousePassword)
	resultsWriter := monitor.NewBatchedWriter(ctx, resultsSink, cfg.Monitor.ResultsTable, monitor.ProbeResultChannelCapacity, monitor.ProbeResultBatchSize)
	incidentsWriter := monitor.NewBatchedWriter(ctx, resultsSink, cfg.Monitor.IncidentsTable, monitor.IncidentChannelCapacity, monitor.IncidentBatchSize)
	alertHistoryWriter := monitor.NewBatchedWriter(ctx, resultsSink, cfg.Monitor.AlertHistoryTable, monitor.AlertHistoryChannelCapacity, monitor.AlertHistoryBatchSize)

	incidentStore := incident.NewStore(cfg.Monitor.ClickHouseURL, cfg.Monitor.IncidentsTable, incidentsWriter)

	var emailService *notify.EmailService
	if cfg.Email.Enabled {
		emailService = notify.NewEmailService(notify.EmailConfig{
			SMTPHost:      cfg.Email.SMTPHost,
			SMTPPort:      cfg.Email.SMTPPort,
			SMTPUser:      cfg.Email.SMTPUser,
			SMTPPassword:  cfg.Email.SMTPPassword,
			FromAddress:   cfg.Email.FromAddress,
			FromName:      "Uptime Monitor",
			DevMode:       cfg.Email.DevMode,
			DevRecipients: cfg.Email.DevRecipients,
		})
		log.Println("📧 email alerts enabled")
	} else {
		log.Println("📧 email alerts disabled")
	}

	var pushClient *notify.PushClient
	if cfg.Push.Enabled {
		pushClient = notify.NewPushClient(cfg.Push.APIURL, cfg.Push.AppToken)
		log.Println("📲 push alerts enabled")
	} else {
		log.Println("📲 push alerts disabled")
	}

	dispatcher := notify.NewDispatcher(emailService, pushClient, alertHistoryWriter, cfg.Monitor.PublicBaseURL)

	orch := orchestrator.New(dispatcher, incidentStore)
	// Must complete before any runner starts, or an ongoing incident could
	// be reopened under a new incident id.
	if err := orch.WarmFromStore(ctx); err != nil {
		log.Fatalf("❌ Failed to warm incident orchestrator from store: %v", err)
	}

	guard := monitor.NewGuard(cfg.Monitor.DevMode, cfg.Monitor.DNSResolver)
	httpProbe := monitor.NewHTTPProbe(guard)
	tlsProbe := monitor.NewTLSProbe(guard)
	backoff := monitor.NewBackoffController()
	httpRateLimiter := monitor.DefaultDomainRateLimiter()
	tlsRateLimiter := monitor.NewDomainRateLimiter(20, time.Hour)

	httpRunner := monitor.NewHTTPRunner(cache, httpProbe, resultsWriter, backoff, httpRateLimiter, orch)
	tlsRunner := monitor.NewTLSRunner(cache, tlsProbe, resultsWriter, tlsRateLimiter, orch, cfg.Monitor.SSLWarnDays)

	go cache.Run(ctx)
	go httpRunner.Run(ctx)
	go tlsRunner.Run(ctx)

	authSvc, err := auth.NewAuth(&cfg.Console)
	if err != nil {
		log.Fatalf("❌ Failed to initialize auth: %v", err)
	}

	port := cfg.Probe.Port
	if port == 0 {
		port = 8085
	}
	server := httpapi.NewServer(httpapi.Deps{
		Cache:        cache,
		Orchestrator: orch,
		Auth:         authSvc,
		Port:         port,
		StartedAt:    startedAt,
	})

	go func() {
		log.Printf("🚀 Probe control API listening on port %d", port)
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start control API: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down probe engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Control API forced to shutdown: %v", err)
	}

	log.Println("✅ Probe engine shutdown complete")
}
