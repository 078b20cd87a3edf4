package ratelimit

import (
	"net/http"
	"time"

	"jobboard-gate/middleware/ratelimit/application"
	"jobboard-gate/middleware/ratelimit/domain"
)

type ConcurrencyOptions struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// NewConcurrencyService monta o serviço a partir das opções; nil quando não há pool.
func NewConcurrencyService(opts ConcurrencyOptions) *application.ConcurrencyService {
	if opts.Pool == nil {
		return nil
	}
	return &application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}
}

// ConcurrencyMiddleware segura requisições acima da capacidade do upstream.
// Com svc nil vira passthrough.
func ConcurrencyMiddleware(svc *application.ConcurrencyService, rejectStatus int) func(next http.Handler) http.Handler {
	if svc == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if rejectStatus == 0 {
		rejectStatus = http.StatusServiceUnavailable
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				writeBusy(w, rejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

const busyBody = `{"error":"Server busy. Please try again later."}` + "\n"

func writeBusy(w http.ResponseWriter, status int) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(busyBody))
}
