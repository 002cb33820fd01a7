package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"example.com/runlog/internal/api"
	"example.com/runlog/internal/auth"
	"example.com/runlog/internal/config"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/observability"
	"example.com/runlog/internal/outbox"
	"example.com/runlog/internal/persistence/filecache"
	httptransport "example.com/runlog/internal/transport/http"
)

const dlqBatchSize = 50

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close()

	opts := []domain.Option{
		domain.WithLocation(cfg.Location),
		domain.WithRetentionCutoff(cfg.RetentionCutoff),
	}
	if cfg.CacheDir != "" {
		opts = append(opts, domain.WithLocalCache(filecache.New(cfg.CacheDir)))
	}
	service := domain.NewService(backend.store, opts...)

	var dispatcher *outbox.Dispatcher
	if backend.pool != nil && len(cfg.KafkaBrokers) > 0 {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(backend.pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	} else {
		log.Printf("outbox dispatcher disabled (driver=%s, brokers=%d)", cfg.StoreDriver, len(cfg.KafkaBrokers))
	}

	scheduler := cron.New(cron.WithLocation(cfg.Location))
	if !cfg.RetentionCutoff.IsZero() {
		if _, err := scheduler.AddFunc(cfg.RetentionSchedule, func() {
			dropped, err := service.ApplyRetention(ctx)
			if err != nil {
				log.Printf("retention sweep failed: %v", err)
				return
			}
			observability.RecordRetention(dropped)
			if dropped > 0 {
				log.Printf("retention sweep dropped %d entries before %s", dropped, cfg.RetentionCutoff)
			}
		}); err != nil {
			log.Fatalf("RETENTION_SCHEDULE: %v", err)
		}
	}
	if dispatcher != nil {
		manager := outbox.NewDLQManager(backend.pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)
		if _, err := scheduler.AddFunc(cfg.DLQSchedule, func() {
			processed, err := manager.RunOnce(ctx, dlqBatchSize)
			if err != nil {
				log.Printf("dlq manager error: %v", err)
			} else if processed > 0 {
				log.Printf("dlq manager processed %d entries", processed)
			}
		}); err != nil {
			log.Fatalf("DLQ_SCHEDULE: %v", err)
		}
	}
	scheduler.Start()

	handlerOpts := []api.Option{
		api.WithHighlights(cfg.Highlights),
		api.WithGoals(api.Goals{
			StartWeight:       cfg.StartWeight,
			TargetWeight:      cfg.TargetWeight,
			MonthlyWeightLoss: cfg.MonthlyWeightLoss,
			DistanceGoalKm:    cfg.DistanceGoalKm,
		}),
	}
	if cfg.HasCountdown() {
		handlerOpts = append(handlerOpts, api.WithCountdown(cfg.CountdownStart, cfg.CountdownEnd))
	}
	handler := api.NewHandler(service, handlerOpts...)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.Middleware{
		DataKey: cfg.DataAPISecret,
		Require: cfg.RequireDataKey,
		Skipper: auth.DefaultSkipper,
	}
	if cfg.JWTSecret != "" {
		authMiddleware.Token = &auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	}

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux, requestID, requestLogger, cors, authMiddleware.Wrap),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("runlog api listening on %s (store=%s, zone=%s)", cfg.HTTPAddress, cfg.StoreDriver, cfg.Location)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	<-scheduler.Stop().Done()

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

const requestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s (%s)", r.Method, r.URL.Path, r.Header.Get(requestIDHeader), time.Since(start).Round(time.Millisecond))
	})
}

// cors allows the browser client to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match, "+auth.DataKeyHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "ETag, X-Runlog-Stale, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
