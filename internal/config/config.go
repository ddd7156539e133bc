// Package config reads the service configuration from the environment.
//
// Example env:
// PORT=8080
// BACKEND_URL=https://api.example.com
// APP_SECRET=change-me
// GOOGLE_CLIENT_ID=123.apps.googleusercontent.com
// PROXY_RATE_LIMIT=50
// DB_URL=postgres://backoffice@db/backoffice
// SCYLLA_HOSTS=scylla-1,scylla-2
// MONITOR_INTERVAL=5m
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"backoffice/internal/operators"
)

type Config struct {
	Port         string
	BackendURL   string
	APIBaseURL   string
	HealthPath   string
	AppSecret    string
	SessionTTL   time.Duration
	CookieSecure bool
	GoogleClient string
	ProxyPrefix  string
	ProxyTimeout time.Duration
	ProxyRate    int
	ProxyBurst   int
	StatsTTL     time.Duration
	DBURL        string
	Scylla       operators.ClusterConfig
	MetricsToken string
	Monitor      MonitorConfig
	LogLevel     string
	BuildVersion string
}

// MonitorConfig drives the background channel monitor. Interval zero turns
// it off.
type MonitorConfig struct {
	Interval   time.Duration
	Concurrent int
	Token      string
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	backend := strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/")
	cfg := Config{
		Port:         envDefault("PORT", "8080"),
		BackendURL:   backend,
		APIBaseURL:   strings.TrimRight(envDefault("API_BASE_URL", backend), "/"),
		HealthPath:   envDefault("BACKEND_HEALTH_PATH", "/health"),
		AppSecret:    os.Getenv("APP_SECRET"),
		SessionTTL:   envDuration("SESSION_TTL", 12*time.Hour),
		CookieSecure: parseBool(os.Getenv("COOKIE_SECURE"), false),
		GoogleClient: os.Getenv("GOOGLE_CLIENT_ID"),
		ProxyPrefix:  envDefault("PROXY_PREFIX", "/proxy-stream"),
		ProxyTimeout: envDuration("PROXY_TIMEOUT", 30*time.Second),
		ProxyRate:    envDefaultInt("PROXY_RATE_LIMIT", 0),
		ProxyBurst:   envDefaultInt("PROXY_RATE_BURST", 0),
		StatsTTL:     envDuration("STATS_TTL", 30*time.Second),
		DBURL:        os.Getenv("DB_URL"),
		Scylla: operators.ClusterConfig{
			Hosts:       splitCSV(os.Getenv("SCYLLA_HOSTS")),
			Port:        envDefaultInt("SCYLLA_PORT", 9042),
			Keyspace:    envDefault("SCYLLA_KEYSPACE", "backoffice"),
			Consistency: envDefault("SCYLLA_CONSISTENCY", "QUORUM"),
			Replication: envDefaultInt("SCYLLA_RF", 3),
		},
		MetricsToken: os.Getenv("METRICS_TOKEN"),
		Monitor: MonitorConfig{
			Interval:   envDuration("MONITOR_INTERVAL", 0),
			Concurrent: envDefaultInt("MONITOR_CONCURRENCY", 4),
			Token:      os.Getenv("MONITOR_TOKEN"),
		},
		LogLevel:     envDefault("LOG_LEVEL", "info"),
		BuildVersion: envDefault("BUILD_VERSION", "dev"),
	}
	if !strings.HasPrefix(cfg.ProxyPrefix, "/") {
		cfg.ProxyPrefix = "/" + cfg.ProxyPrefix
	}
	if cfg.BackendURL == "" {
		return cfg, errors.New("BACKEND_URL is required")
	}
	if cfg.AppSecret == "" {
		return cfg, errors.New("APP_SECRET is required")
	}
	return cfg, nil
}

// ProxyLimiter returns nil when PROXY_RATE_LIMIT is unset or zero.
func (c Config) ProxyLimiter() *rate.Limiter {
	if c.ProxyRate <= 0 {
		return nil
	}
	burst := c.ProxyBurst
	if burst <= 0 {
		burst = c.ProxyRate
	}
	return rate.NewLimiter(rate.Limit(c.ProxyRate), burst)
}

func (c Config) MonitorEnabled() bool {
	return c.Monitor.Interval > 0
}

func (c Config) ScyllaEnabled() bool {
	return len(c.Scylla.Hosts) > 0
}

func envDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func envDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
