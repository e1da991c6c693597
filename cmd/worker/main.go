package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gateattend/internal/app"
	"gateattend/internal/config"
	"gateattend/internal/logging"
	"gateattend/internal/metrics"
	"gateattend/internal/notify"
	"gateattend/internal/store"
)

// Worker consumes notification jobs queued by the api and scanner processes
// and writes the notifications.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue only works inside one process")
	}

	repo, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("store connect failed", zap.Error(err))
	}
	defer repo.Close()

	rdb := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn("redis not reachable yet, will keep polling", zap.String("addr", cfg.RedisAddr))
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "off" {
		m = metrics.New(prometheus.DefaultRegisterer)
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	q := app.NewQueue(cfg, rdb, log)
	d := notify.NewDispatcher(repo, cfg.Location, log, m)

	log.Info("worker started, waiting for jobs", zap.String("queue", cfg.QueueKey))
	if err := notify.Run(ctx, q, d, log); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// serveMetrics exposes the worker's collectors for scraping.
func serveMetrics(addr string, log *zap.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
