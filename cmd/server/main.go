// Package main wires the placement service: configuration, storage, the
// result cache, lifecycle events, the worker pool and the HTTP surface.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qplace/internal/auth"
	authhandler "qplace/internal/auth/handler"
	"qplace/internal/placement/events"
	placementhandler "qplace/internal/placement/handler"
	"qplace/internal/placement/ports"
	"qplace/internal/placement/service"
	"qplace/internal/placement/store/memory"
	placementpg "qplace/internal/placement/store/postgres"
	"qplace/internal/placement/store/rediscache"
	"qplace/internal/placement/worker"
	"qplace/internal/platform/config"
	"qplace/internal/platform/httpserver"
	"qplace/internal/platform/kafka"
	"qplace/internal/platform/logger"
	"qplace/internal/platform/metrics"
	"qplace/internal/platform/postgres"
	"qplace/internal/platform/redis"
	"qplace/internal/scheduler"
	"qplace/pkg/platform/tx"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var jobs ports.JobStore
	var svcOpts []service.Option
	if db != nil {
		store := placementpg.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		jobs = store
		svcOpts = append(svcOpts, service.WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return tx.Run(ctx, db, fn)
		}))
		log.Info("job store ready", "backend", "postgres")
	} else {
		jobs = memory.New()
		log.Warn("no postgres configured, jobs are lost on restart", "backend", "memory")
	}

	if redisClient != nil {
		svcOpts = append(svcOpts, service.WithCache(rediscache.New(redisClient.Client)))
		log.Info("result cache ready", "ttl", config.ResultCacheTTL)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			return err
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer producer.Close()

		publisher, err := events.NewPublisher(producer, cfg.Kafka.Topic,
			events.WithMetrics(m), events.WithLogger(log))
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithEvents(publisher))
		log.Info("event publisher ready", "topic", cfg.Kafka.Topic)
	}

	var sched scheduler.Scheduler = scheduler.Static{}
	if cfg.Scheduler.URL != "" {
		client, err := scheduler.NewClient(cfg.Scheduler, log)
		if err != nil {
			return err
		}
		sched = client
		log.Info("pulse scheduler ready", "url", cfg.Scheduler.URL)
	}

	svcOpts = append(svcOpts,
		service.WithScheduler(sched),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithDefaults(service.Defaults{
			Strategy: cfg.Placement.Strategy,
			Trials:   cfg.Placement.Trials,
			DtInner:  cfg.Placement.DtInner,
			DtInter:  cfg.Placement.DtInter,
		}),
		service.WithCacheTTL(config.ResultCacheTTL),
	)
	svc, err := service.New(jobs, svcOpts...)
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(svc, svc.Queue(), cfg.Placement.Workers, log)
	if err != nil {
		return err
	}
	pool.Start(ctx)

	secretHash := cfg.Auth.ClientSecretHash
	if secretHash == "" {
		// Development fallback; production must set QPLACE_AUTH_CLIENT_SECRET_HASH.
		secretHash, err = auth.HashSecret("qplace-dev-secret")
		if err != nil {
			return err
		}
		log.Warn("no client secret hash configured, using development credentials")
	}
	tokens := auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.ClientID, secretHash, cfg.Auth.TokenTTL)
	validator := auth.NewValidatorAdapter(tokens)

	router := chi.NewRouter()
	router.Get("/healthz", handleHealthz)
	router.Get("/readyz", handleReadyz(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/v1", func(r chi.Router) {
		authhandler.New(tokens, log, m).Register(r)
		placementhandler.New(svc, log, m, validator).Register(r)
	})

	srv := httpserver.New(cfg.HTTP.Addr, router)
	err = httpserver.Run(ctx, srv, log, cfg.HTTP.ShutdownTimeout)

	// The server is down; let in-flight jobs notice the cancelled context
	// and drain before the stores close.
	stop()
	pool.Wait()
	log.Info("shutdown complete")
	return err
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports ready only when every configured backend answers.
func handleReadyz(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := postgres.Health(ctx, db); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"postgres unavailable"}`))
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"redis unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
