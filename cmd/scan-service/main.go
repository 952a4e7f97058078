package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entrypass/scan-service/internal/config"
	"entrypass/scan-service/internal/httpapi"
	"entrypass/scan-service/internal/manifest"
	"entrypass/scan-service/internal/reconcile"
	"entrypass/scan-service/internal/store/postgres"
	"entrypass/scan-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("scan-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool, postgres.Options{
		OpTimeout: cfg.StoreTimeout,
	})
	manifests := manifest.NewBuilder(store, manifest.Options{
		TTL: cfg.ManifestTTL,
	})
	reconciler := reconcile.New(store, reconcile.Config{
		MaxBatch: cfg.SyncMaxBatch,
	})
	handler := httpapi.NewHandler(store, manifests, reconciler)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		DevicePerMinute: cfg.DeviceRateLimitPerMinute,
		DeviceBurst:     cfg.DeviceRateLimitBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(httpapi.AuthMiddleware(store, handler.Routes()))), "scan-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("scan-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	go func() {
		if cfg.ManifestSweepInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.ManifestSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if dropped := manifests.SweepExpired(); dropped > 0 {
				log.Printf("manifest sweep evicted %d snapshots", dropped)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
