package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Upstream de exemplo para rodar o gate localmente: responde como o app de vagas
// e mostra se o cookie de sessão chegou.
func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := ":3000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example upstream listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

type echo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Session bool   `json:"session"`
	Client  string `json:"client,omitempty"`
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/waitlist", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("join the waitlist\n"))
	})
	r.HandleFunc("/*", writeEcho)
	return r
}

func writeEcho(w http.ResponseWriter, r *http.Request) {
	_, err := r.Cookie("sb-access-token")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(echo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Session: err == nil,
		Client:  r.Header.Get("X-Forwarded-For"),
	})
}
