// health/health.go
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Check tests one dependency and returns nil when it is healthy.
type Check func(ctx context.Context) error

// Response is the JSON body of the health endpoint.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DefaultTimeout bounds each check when Handler is given a zero timeout.
const DefaultTimeout = 2 * time.Second

// Handler runs checks concurrently, each under its own timeout, and answers
// 200 {"status":"ok"} or 503 {"status":"error"} with per-check results.
// With no checks it is a plain liveness check.
func Handler(checks map[string]Check, timeout time.Duration, logger *zap.Logger) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]string, len(checks))
			failed  bool
		)
		for name, check := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				msg := "ok"
				if check != nil {
					ctx, cancel := context.WithTimeout(r.Context(), timeout)
					err := check(ctx)
					cancel()
					if err != nil {
						msg = "error: " + err.Error()
						logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
					}
				}
				mu.Lock()
				results[name] = msg
				if msg != "ok" {
					failed = true
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if failed {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Checks: results})
	})
}

// Mount attaches GET /health to r.
func Mount(r chi.Router, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, "/health", Handler(checks, 0, logger))
}
