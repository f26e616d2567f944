package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/middleware/ratelimit/policy"
)

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cfg config
	kctx := kong.Parse(&cfg,
		kong.Name("gateway"),
		kong.Description("Reverse proxy that admits or rejects API requests per endpoint policy."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(cfg.validate())

	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	var file *policy.File
	if cfg.PolicyFile != "" {
		if file, err = policy.LoadFile(cfg.PolicyFile); err != nil {
			return err
		}
	}
	reg, err := file.Registry()
	if err != nil {
		return err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "proxy error", "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := infra.NewPrometheusStats(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	stats := domain.MultiStats{prom}
	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fixed := infra.NewFixedWindow()
	fixed.StartJanitor(ctx, cfg.JanitorEvery)

	sliding := infra.NewSlidingWindow(
		infra.WithSweepThreshold(cfg.SweepThreshold),
		infra.WithSweepHook(func(name string, removed int) {
			prom.ObserveSweep(name, removed)
			logger.Debug("sliding window sweep", "policy", name, "removed", removed)
		}),
	)

	extractor := ratelimit.RequestExtractor{
		TrustXForwardedFor: cfg.TrustXFF,
		IdentityHeader:     cfg.IdentityHeader,
	}
	exempt := []string{cfg.HealthPath}
	if file != nil {
		exempt = append(exempt, file.Exempt...)
	}

	admission := ratelimit.NewAdmission(ratelimit.AdmissionOptions{
		Policies:    reg,
		Fixed:       fixed,
		Sliding:     sliding,
		Stats:       stats,
		Logger:      logger,
		ExemptPaths: exempt,
		Extractor:   extractor,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Logger:         logger,
	}))

	if cfg.ShieldRPS > 0 {
		shield := infra.NewBucketStore(cfg.ShieldRPS, cfg.ShieldBurst)
		shield.StartJanitor(ctx, cfg.JanitorEvery)
		r.Use(ratelimit.ShieldMiddleware(ratelimit.ShieldOptions{
			Store:               shield,
			Stats:               stats,
			Logger:              logger,
			TrustXForwardedFor:  cfg.TrustXFF,
			AddRateLimitHeaders: true,
			ExemptPaths:         exempt,
		}))
	}

	r.Get(cfg.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
	}

	routes := file.RoutesOrDefault()
	if cfg.RateEnabled {
		if err := admission.Mount(r, routes, proxy, cfg.FallbackPolicies...); err != nil {
			return err
		}
	}
	r.NotFound(proxy.ServeHTTP)
	r.MethodNotAllowed(proxy.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.ListenAddr, "upstream", target.String())
	logger.Info("policies", "enabled", cfg.RateEnabled, "count", len(reg.Names()), "routes", len(routes),
		"file", cfg.PolicyFile, "sweepThreshold", cfg.SweepThreshold, "trustXFF", cfg.TrustXFF, "identityHeader", cfg.IdentityHeader)
	logger.Info("shield", "rps", cfg.ShieldRPS, "burst", cfg.ShieldBurst)
	logger.Info("rate-stats", "enabled", cfg.Stats.Enabled, "redisAddr", cfg.Stats.RedisAddr, "bucket", cfg.Stats.Bucket,
		"ttl", cfg.Stats.TTL, "trackKeys", cfg.Stats.TrackKeys)
	logger.Info("concurrency", "max", cfg.ConcurrencyMax, "acquireTimeout", cfg.ConcurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
