package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobboard-gate/middleware/cors"
	"jobboard-gate/middleware/gate"
	"jobboard-gate/middleware/ratelimit"
	"jobboard-gate/middleware/ratelimit/domain"
	"jobboard-gate/middleware/ratelimit/infra"
	"jobboard-gate/middleware/route"
	"jobboard-gate/middleware/secure"
	"jobboard-gate/middleware/session"
)

func main() {
	if err := loadDotEnv(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg, err := readConfig(newViper())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var limiter *ratelimit.Limiter
	if cfg.rateEnabled {
		store, closeStore := buildStore(ctx, cfg, reg, logger)
		defer closeStore()

		stats, closeStats := buildStats(ctx, cfg, reg, logger)
		defer closeStats()

		nets, err := ratelimit.ParseCIDRs(cfg.trustedProxies)
		if err != nil {
			logger.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
		}
		limiter = ratelimit.NewLimiter(ratelimit.Options{
			Store: store,
			Stats: stats,
			KeyFn: ratelimit.ClientIPFunc(ratelimit.ClientIPOptions{
				KeyHeader:         cfg.rateKeyHeader,
				TrustProxyHeaders: cfg.trustProxyHeaders,
				TrustedProxies:    nets,
			}),
			PathGroupDepth: cfg.pathGroupDepth,
			Logger:         logger,
		})
	}

	var refresher session.Refresher = session.Nop{}
	if cfg.authTokenURL != "" {
		tr, err := session.NewTokenRefresher(session.TokenOptions{
			TokenURL:      cfg.authTokenURL,
			ClientID:      cfg.authClientID,
			APIKey:        cfg.authAPIKey,
			AccessCookie:  cfg.authAccessCookie,
			RefreshCookie: cfg.authRefreshCookie,
			CookieDomain:  cfg.authCookieDomain,
			Secure:        cfg.production,
			Timeout:       cfg.authTimeout,
		})
		if err != nil {
			logger.Fatal("session refresher", zap.Error(err))
		}
		refresher = tr
	}

	g := gate.New(gate.Options{
		Classifier: route.New(route.Options{Prelaunch: cfg.prelaunch, WaitlistPath: cfg.waitlistPath}),
		Limiter:    limiter,
		Refresher:  refresher,
		Headers:    secure.New(secure.Options{Production: cfg.production, AppURL: cfg.appURL}),
		CORS:       cors.New(cors.Options{AppURL: cfg.appURL, Extra: cfg.extraCORSOrigins}),
		Logger:     logger,
	})

	var pool domain.SlotPool
	if cfg.concurrencyMax > 0 {
		pool = infra.NewChanPool(cfg.concurrencyMax)
	}
	conc := ratelimit.NewConcurrencyService(ratelimit.ConcurrencyOptions{
		Pool:           pool,
		AcquireTimeout: cfg.concurrencyTimeout,
	})
	if conc != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "gate_concurrency_in_flight",
				Help: "Requests holding an upstream slot.",
			}, func() float64 { return float64(conc.InFlight()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "gate_concurrency_rejected_total",
				Help: "Requests rejected for lack of an upstream slot.",
			}, func() float64 { return float64(conc.Rejected()) }),
		)
	}

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(conc, http.StatusServiceUnavailable)(h)
	h = g.Middleware(h)
	h = gate.Recovery(logger)(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           newRouter(reg, h),
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

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.Stringer("upstream", target),
		zap.Bool("production", cfg.production),
		zap.Bool("prelaunch", cfg.prelaunch))
	logger.Info("rate",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.String("store", cfg.rateStore),
		zap.Int("pathGroupDepth", cfg.pathGroupDepth),
		zap.Bool("trustProxyHeaders", cfg.trustProxyHeaders),
		zap.Strings("trustedProxies", cfg.trustedProxies))
	logger.Info("session", zap.Bool("refresh", cfg.authTokenURL != ""), zap.Duration("timeout", cfg.authTimeout))
	logger.Info("concurrency", zap.Int("max", cfg.concurrencyMax), zap.Duration("acquireTimeout", cfg.concurrencyTimeout))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// newRouter expõe health e métricas do próprio gate; o resto vai para h.
func newRouter(reg *prometheus.Registry, h http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/_gate/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/_gate/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Handle("/*", h)
	return r
}

func buildStore(ctx context.Context, cfg config, reg prometheus.Registerer, logger *zap.Logger) (domain.WindowStore, func()) {
	if cfg.rateStore == "redis" {
		rdb := mustRedis(ctx, cfg.rateRedisAddr, cfg.rateRedisPassword, cfg.rateRedisDB, logger)
		return infra.NewRedisStore(rdb, cfg.rateRedisPrefix), func() { _ = rdb.Close() }
	}

	store := infra.NewMemoryStore(infra.WithSweepEvery(cfg.rateSweepEvery))
	store.StartJanitor(ctx)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gate_ratelimit_records",
		Help: "Rate limit windows held in memory.",
	}, func() float64 { return float64(store.Len()) }))
	return store, func() {}
}

func buildStats(ctx context.Context, cfg config, reg prometheus.Registerer, logger *zap.Logger) (domain.StatsStore, func()) {
	prom, err := infra.NewPromStatsStore(reg)
	if err != nil {
		logger.Fatal("register rate limit metrics", zap.Error(err))
	}
	if !cfg.rateStatsEnabled {
		return prom, func() {}
	}

	rdb := mustRedis(ctx, cfg.rateStatsRedisAddr, cfg.rateStatsRedisPassword, cfg.rateStatsRedisDB, logger)
	redisStats := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.rateStatsPrefix),
		infra.WithStatsTTL(cfg.rateStatsTTL),
		infra.WithStatsBucket(cfg.rateStatsBucket),
		infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
	)
	return infra.MultiStats{prom, redisStats}, func() { _ = rdb.Close() }
}

func mustRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("redis ping error", zap.String("addr", addr), zap.Error(err))
	}
	return rdb
}
