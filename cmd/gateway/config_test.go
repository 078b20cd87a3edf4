package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:3000")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.listenAddr)
	require.False(t, cfg.production)
	require.False(t, cfg.prelaunch)
	require.Equal(t, "/waitlist", cfg.waitlistPath)
	require.True(t, cfg.rateEnabled)
	require.Equal(t, "memory", cfg.rateStore)
	require.Equal(t, time.Minute, cfg.rateSweepEvery)
	require.Equal(t, 2, cfg.pathGroupDepth)
	require.True(t, cfg.trustProxyHeaders)
	require.Equal(t, 100, cfg.concurrencyMax)
	require.Equal(t, "sb-access-token", cfg.authAccessCookie)
	require.Equal(t, "gate:stats", cfg.rateStatsPrefix)
}

func TestReadConfig_FromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://app:3000")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PUBLIC_APP_URL", "https://jobs.example.com/")
	t.Setenv("PRELAUNCH_ENABLED", "true")
	t.Setenv("RATE_STORE", "redis")
	t.Setenv("RATE_REDIS_ADDR", "redis:6379")
	t.Setenv("RATE_SWEEP_EVERY", "30s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.0.0/16")
	t.Setenv("EXTRA_CORS_ORIGINS", "https://admin.example.com")
	t.Setenv("AUTH_TOKEN_URL", "https://auth.example.com/token")
	t.Setenv("AUTH_TIMEOUT", "2s")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	require.True(t, cfg.production)
	require.Equal(t, "https://jobs.example.com", cfg.appURL)
	require.True(t, cfg.prelaunch)
	require.Equal(t, "redis", cfg.rateStore)
	require.Equal(t, 30*time.Second, cfg.rateSweepEvery)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.trustedProxies)
	require.Equal(t, []string{"https://admin.example.com"}, cfg.extraCORSOrigins)
	require.Equal(t, "https://auth.example.com/token", cfg.authTokenURL)
	require.Equal(t, 2*time.Second, cfg.authTimeout)
}

func TestReadConfig_ProductionFlag(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://app:3000")
	t.Setenv("PRODUCTION", "true")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	require.True(t, cfg.production)
}

func TestReadConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing upstream", map[string]string{}},
		{"unknown store", map[string]string{"RATE_STORE": "etcd"}},
		{"redis without addr", map[string]string{"RATE_STORE": "redis"}},
		{"stats without addr", map[string]string{"RATE_STATS_ENABLED": "true"}},
		{"relative waitlist", map[string]string{"WAITLIST_PATH": "waitlist"}},
		{"zero depth", map[string]string{"PATH_GROUP_DEPTH": "0"}},
		{"negative concurrency", map[string]string{"CONCURRENCY_MAX": "-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name != "missing upstream" {
				t.Setenv("UPSTREAM_URL", "http://app:3000")
			} else {
				t.Setenv("UPSTREAM_URL", "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := readConfig(newViper())
			require.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "gate.env")
	require.NoError(t, os.WriteFile(path, []byte("GATE_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("GATE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("GATE_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("GATE_TEST_DOTENV"))
}

func TestSplitList(t *testing.T) {
	require.Nil(t, splitList(""))
	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}

func TestNewRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	upstream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r := newRouter(reg, upstream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/_gate/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/_gate/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger("bogus")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
