package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amparo/internal/accounts"
	accountshandler "amparo/internal/accounts/handler"
	"amparo/internal/approval"
	approvalhandler "amparo/internal/approval/handler"
	approvalmetrics "amparo/internal/approval/metrics"
	"amparo/internal/auditquery"
	"amparo/internal/pii"
	"amparo/internal/platform/config"
	"amparo/internal/platform/httpserver"
	"amparo/internal/platform/kafka"
	"amparo/internal/platform/logger"
	"amparo/internal/platform/middleware"
	"amparo/internal/platform/postgres"
	"amparo/internal/records"
	recordshandler "amparo/internal/records/handler"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/audit/relay"
	auditpostgres "amparo/pkg/platform/audit/store/postgres"
	"amparo/pkg/platform/tx"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	codec, err := pii.NewCodec(cfg.PII, log, pii.NewMetrics())
	if err != nil {
		log.Error("pii codec setup failed", "error", err)
		os.Exit(1)
	}

	registry := pii.NewFieldRegistry()
	registry.Register(records.EntityPerson, records.PersonPIIFields...)
	registry.Register(records.EntityFamily, records.FamilyPIIFields...)

	auditStore := auditpostgres.New(db)
	trail := audit.NewTrail(auditStore, registry, cfg.Audit.LogPIIAccess, log)
	runner := tx.NewSQLRunner(db)

	recordsService := records.NewService(records.NewPostgresStore(db), codec, trail, runner, log)
	approvalService := approval.NewService(approval.NewPostgresStore(db), trail, runner,
		cfg.ApprovalValidity, log, approvalmetrics.New())
	accountsService := accounts.NewService(accounts.NewPostgresStore(db), trail, runner, log)

	// The outbox relay mirrors committed audit entries to Kafka. The server
	// runs fine without brokers configured; entries then stay in the outbox.
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := kafka.New(cfg.KafkaBrokers)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()

		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.AuditTopic); err != nil {
			log.Error("kafka topic setup failed", "topic", cfg.AuditTopic, "error", err)
			os.Exit(1)
		}

		go func() {
			if err := relay.New(db, kafkaClient, cfg.AuditTopic, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	// Hourly sweep of approvals whose validity window elapsed.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := approvalService.ExpireApproved(ctx); err != nil {
					log.Error("approval expiry sweep failed", "error", err)
				}
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSigningKey, log))
		recordshandler.New(recordsService, log).Register(r)
		approvalhandler.New(approvalService, log).Register(r)
		auditquery.New(trail, log).Register(r)
		accountshandler.New(accountsService, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	go func() {
		log.Info("amparo server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
