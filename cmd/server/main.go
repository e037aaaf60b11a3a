package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"grocerystock/internal/auth"
	"grocerystock/internal/config"
	"grocerystock/internal/db"
	"grocerystock/internal/events"
	httpapi "grocerystock/internal/http"
	"grocerystock/internal/logger"
	"grocerystock/internal/mail"
	"grocerystock/internal/metrics"
	"grocerystock/internal/notify"
	"grocerystock/internal/repository"
	"grocerystock/internal/scheduler"
	"grocerystock/internal/service"

	"go.uber.org/zap"
)

const devSigningKey = "development-only-signing-key"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptionsFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	repo := repository.New(pool)
	m := metrics.NewRegistry(cfg.Metrics.Namespace)

	var mailer mail.Mailer = mail.NewDiscard(log)
	if cfg.Mail.SendGridAPIKey != "" {
		mailer = mail.NewSendGridClient(cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName, log)
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, log)
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Warn("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kafka
	}

	notifier := notify.New(repo, mailer, publisher, m, log)
	svc := service.New(repo, notifier, m, log, service.Options{
		ExpectedDeliveryDays: cfg.Reorder.ExpectedDeliveryDays,
		SuppressDuplicates:   cfg.Reorder.SuppressDuplicates,
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, svc, log)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		svc.SetReorderTrigger(sched)
		sched.Start()
	}

	signingKey := cfg.JWT.SigningKey
	if signingKey == "" {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
		signingKey = devSigningKey
	}
	verifier := auth.NewVerifier(signingKey)

	handler := httpapi.NewHandler(svc, repo, log)
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           httpapi.NewRouter(handler, verifier, m, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			log.Error("force close failed", zap.Error(closeErr))
		}
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler stop", zap.Error(err))
		}
	}
	log.Info("stopped")
	return nil
}
