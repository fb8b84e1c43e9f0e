package host

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/ports"
)

// Middleware executes exec on the first request the server receives.
// Concurrent requests are not held back while it runs. If the execution fails,
// the request that triggered it answers 500; the failure is not retried until
// the process restarts.
func Middleware(exec ports.Executor, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	once := &Once{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The upgrade must not be cut short by the client going away.
			ctx := context.WithoutCancel(r.Context())

			ran, err := once.Do(ctx, exec.Execute)
			if ran {
				if err != nil {
					logger.Error("Upgrade failed", "err", err)
					http.Error(w, "upgrade failed", http.StatusInternalServerError)
					return
				}
				logger.Info("Upgrade completed")
			}
			next.ServeHTTP(w, r)
		})
	}
}
