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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gateattend/internal/app"
	"gateattend/internal/attendance"
	"gateattend/internal/config"
	"gateattend/internal/handler"
	"gateattend/internal/httpmiddleware"
	"gateattend/internal/logging"
	"gateattend/internal/metrics"
	"gateattend/internal/notify"
	"gateattend/internal/scan"
	"gateattend/internal/schedule"
	"gateattend/internal/store"
	"gateattend/internal/student"
)

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

	// Set Gin mode based on environment
	if logging.IsProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	var rdb *store.Redis
	if app.NeedsRedis(cfg) {
		rdb = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		if !rdb.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	schedules := schedule.NewResolver(log)
	schedules.Load(ctx, repo)

	var notifier notify.Notifier
	if cfg.QueueBackend == "redis" && rdb != nil {
		notifier = notify.NewPublisher(app.NewQueue(cfg, rdb, log), log)
	} else {
		// No external worker: dispatch in process.
		notifier = notify.NewDispatcher(repo, cfg.Location, log, m)
	}

	proc := scan.NewProcessor(scan.Config{StationID: "api", Direction: cfg.StationDirection}, scan.Deps{
		Filter:    app.NewFilter(cfg, rdb, log),
		Students:  student.NewResolver(repo),
		Schedules: schedules,
		Recorder:  attendance.NewService(repo, cfg.Location, log),
		Live:      repo,
		Notifier:  notifier,
		Metrics:   m,
		Log:       log,
	})
	defer proc.Wait()

	if cfg.StationEnrollKey == "" {
		log.Warn("STATION_ENROLL_KEY not set, any client can register a station")
	}
	h := handler.New(proc, repo, schedules, cfg.Location, handler.AuthConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.AccessTTL,
		EnrollKey:  cfg.StationEnrollKey,
	}, log)
	h.AddHealthCheck("store", repo.Ping)
	if rdb != nil {
		h.AddHealthCheck("redis", func(ctx context.Context) error {
			if !rdb.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		})
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r, httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
