package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type config struct {
	listenAddr  string
	upstreamURL string
	production  bool
	appURL      string
	logLevel    string

	prelaunch    bool
	waitlistPath string

	rateEnabled        bool
	rateStore          string
	rateRedisAddr      string
	rateRedisPassword  string
	rateRedisDB        int
	rateRedisPrefix    string
	rateSweepEvery     time.Duration
	pathGroupDepth     int
	rateKeyHeader      string
	trustProxyHeaders  bool
	trustedProxies     []string
	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool

	authTokenURL      string
	authAPIKey        string
	authClientID      string
	authAccessCookie  string
	authRefreshCookie string
	authCookieDomain  string
	authTimeout       time.Duration

	extraCORSOrigins []string
}

// loadDotEnv carrega .env quando existir; ausência não é erro.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("production", false)
	v.SetDefault("log_level", "info")

	v.SetDefault("prelaunch_enabled", false)
	v.SetDefault("waitlist_path", "/waitlist")

	v.SetDefault("rate_enabled", true)
	v.SetDefault("rate_store", "memory")
	v.SetDefault("rate_redis_db", 0)
	v.SetDefault("rate_redis_prefix", "gate:rl:")
	v.SetDefault("rate_sweep_every", time.Minute)
	v.SetDefault("path_group_depth", 2)
	v.SetDefault("trust_proxy_headers", true)
	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", time.Duration(0))

	v.SetDefault("rate_stats_enabled", false)
	v.SetDefault("rate_stats_redis_db", 0)
	v.SetDefault("rate_stats_prefix", "gate:stats")
	v.SetDefault("rate_stats_ttl", 24*time.Hour)
	v.SetDefault("rate_stats_bucket", "minute")
	v.SetDefault("rate_stats_track_keys", false)

	v.SetDefault("auth_access_cookie", "sb-access-token")
	v.SetDefault("auth_refresh_cookie", "sb-refresh-token")
	v.SetDefault("auth_timeout", 5*time.Second)
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{}
	cfg.listenAddr = v.GetString("listen_addr")
	cfg.upstreamURL = strings.TrimSpace(v.GetString("upstream_url"))
	cfg.production = v.GetBool("production") || strings.EqualFold(v.GetString("app_env"), "production")
	cfg.appURL = strings.TrimRight(strings.TrimSpace(v.GetString("public_app_url")), "/")
	cfg.logLevel = strings.ToLower(v.GetString("log_level"))

	cfg.prelaunch = v.GetBool("prelaunch_enabled")
	cfg.waitlistPath = v.GetString("waitlist_path")

	cfg.rateEnabled = v.GetBool("rate_enabled")
	cfg.rateStore = strings.ToLower(v.GetString("rate_store"))
	cfg.rateRedisAddr = v.GetString("rate_redis_addr")
	cfg.rateRedisPassword = v.GetString("rate_redis_password")
	cfg.rateRedisDB = v.GetInt("rate_redis_db")
	cfg.rateRedisPrefix = v.GetString("rate_redis_prefix")
	cfg.rateSweepEvery = v.GetDuration("rate_sweep_every")
	cfg.pathGroupDepth = v.GetInt("path_group_depth")
	cfg.rateKeyHeader = v.GetString("rate_key_header")
	cfg.trustProxyHeaders = v.GetBool("trust_proxy_headers")
	cfg.trustedProxies = splitList(v.GetString("trusted_proxies"))
	cfg.concurrencyMax = v.GetInt("concurrency_max")
	cfg.concurrencyTimeout = v.GetDuration("concurrency_timeout")

	cfg.rateStatsEnabled = v.GetBool("rate_stats_enabled")
	cfg.rateStatsRedisAddr = v.GetString("rate_stats_redis_addr")
	cfg.rateStatsRedisPassword = v.GetString("rate_stats_redis_password")
	cfg.rateStatsRedisDB = v.GetInt("rate_stats_redis_db")
	cfg.rateStatsPrefix = v.GetString("rate_stats_prefix")
	cfg.rateStatsTTL = v.GetDuration("rate_stats_ttl")
	cfg.rateStatsBucket = v.GetString("rate_stats_bucket")
	cfg.rateStatsTrackKeys = v.GetBool("rate_stats_track_keys")

	cfg.authTokenURL = strings.TrimSpace(v.GetString("auth_token_url"))
	cfg.authAPIKey = v.GetString("auth_api_key")
	cfg.authClientID = v.GetString("auth_client_id")
	cfg.authAccessCookie = v.GetString("auth_access_cookie")
	cfg.authRefreshCookie = v.GetString("auth_refresh_cookie")
	cfg.authCookieDomain = v.GetString("auth_cookie_domain")
	cfg.authTimeout = v.GetDuration("auth_timeout")

	cfg.extraCORSOrigins = splitList(v.GetString("extra_cors_origins"))

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	switch cfg.rateStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.rateRedisAddr) == "" {
			return config{}, errors.New("RATE_REDIS_ADDR is required when RATE_STORE=redis")
		}
	default:
		return config{}, fmt.Errorf("RATE_STORE must be memory or redis, got %q", cfg.rateStore)
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if !strings.HasPrefix(cfg.waitlistPath, "/") {
		return config{}, errors.New("WAITLIST_PATH must start with /")
	}
	if cfg.pathGroupDepth <= 0 {
		return config{}, errors.New("PATH_GROUP_DEPTH must be > 0")
	}
	if cfg.rateSweepEvery < 0 {
		return config{}, errors.New("RATE_SWEEP_EVERY must be >= 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
