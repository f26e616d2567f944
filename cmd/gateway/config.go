package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// config é preenchido pelo kong: flag, depois variável de ambiente, depois default.
type config struct {
	ListenAddr  string `name:"listen-addr" env:"LISTEN_ADDR" default:":8080" help:"Address the gateway listens on."`
	UpstreamURL string `name:"upstream-url" env:"UPSTREAM_URL" help:"Upstream API base URL (required)."`

	PolicyFile       string   `name:"policy-file" env:"POLICY_FILE" type:"path" help:"YAML file with policy overrides and the route table."`
	RateEnabled      bool     `name:"rate-enabled" env:"RATE_ENABLED" default:"true" negatable:"" help:"Enforce admission policies."`
	HealthPath       string   `name:"health-path" env:"HEALTH_PATH" default:"/health" help:"Liveness path, never rate limited."`
	FallbackPolicies []string `name:"fallback-policies" env:"FALLBACK_POLICIES" default:"general" help:"Policies for methods a route does not list."`
	TrustXFF         bool     `name:"trust-xff" env:"TRUST_XFF" help:"Use the first X-Forwarded-For entry as client address."`
	IdentityHeader   string   `name:"identity-header" env:"IDENTITY_HEADER" help:"Header carrying the authenticated caller (set by the auth proxy)."`
	SweepThreshold   int      `name:"sweep-threshold" env:"SWEEP_THRESHOLD" default:"10000" help:"Tracked keys per sliding-window policy before a sweep runs."`

	JanitorEvery time.Duration `name:"janitor-every" env:"JANITOR_EVERY" default:"1m" help:"Fixed-window and shield cleanup interval (0 disables)."`

	ShieldRPS   float64 `name:"shield-rps" env:"SHIELD_RPS" default:"0" help:"Per-address token bucket rate in front of all policies (0 disables)."`
	ShieldBurst int     `name:"shield-burst" env:"SHIELD_BURST" default:"20" help:"Per-address token bucket burst."`

	ConcurrencyMax     int           `name:"concurrency-max" env:"CONCURRENCY_MAX" default:"100" help:"Max in-flight requests (0 disables)."`
	ConcurrencyTimeout time.Duration `name:"concurrency-timeout" env:"CONCURRENCY_TIMEOUT" default:"0s" help:"How long a request waits for a slot."`

	MetricsPath string `name:"metrics-path" env:"METRICS_PATH" default:"/metrics" help:"Prometheus endpoint (empty disables)."`

	Stats statsConfig `embed:"" prefix:"rate-stats-" envprefix:"RATE_STATS_"`

	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log format."`
}

type statsConfig struct {
	Enabled       bool          `name:"enabled" env:"ENABLED" help:"Record decisions in Redis."`
	RedisAddr     string        `name:"redis-addr" env:"REDIS_ADDR" help:"Redis address."`
	RedisPassword string        `name:"redis-password" env:"REDIS_PASSWORD" help:"Redis password."`
	RedisDB       int           `name:"redis-db" env:"REDIS_DB" default:"0" help:"Redis DB."`
	Prefix        string        `name:"prefix" env:"PREFIX" default:"ratelimit:stats" help:"Key prefix."`
	TTL           time.Duration `name:"ttl" env:"TTL" default:"24h" help:"TTL of per-minute and per-key series."`
	Bucket        string        `name:"bucket" env:"BUCKET" default:"minute" enum:"minute,none" help:"Time series bucket."`
	TrackKeys     bool          `name:"track-keys" env:"TRACK_KEYS" help:"Also count per quota key (high cardinality)."`
}

func (c config) validate() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL %q", c.UpstreamURL)
	}
	if !strings.HasPrefix(c.HealthPath, "/") {
		return errors.New("HEALTH_PATH must start with /")
	}
	if c.SweepThreshold <= 0 {
		return errors.New("SWEEP_THRESHOLD must be > 0")
	}
	if c.ShieldRPS < 0 {
		return errors.New("SHIELD_RPS must be >= 0")
	}
	if c.ShieldRPS > 0 && c.ShieldBurst <= 0 {
		return errors.New("SHIELD_BURST must be > 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

// loadDotEnv carrega .env.local e .env se existirem. Não sobrescreve o ambiente.
func loadDotEnv() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
