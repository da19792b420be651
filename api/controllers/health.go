package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/asthahub/storefront-backend/api/responses"
	"github.com/asthahub/storefront-backend/pkg/config"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
)

const envHeader = "X-AsthaHub-Env"

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every wired dependency with a short deadline. A nil
// pinger counts as not configured and is skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{}
		ready := true
		for name, dep := range deps {
			if dep == nil {
				status[name] = "not configured"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				status[name] = err.Error()
				ready = false
				if logg != nil {
					logCtx := logg.WithField(ctx, "dependency", name)
					logg.Error(logCtx, "readiness ping failed", err)
				}
				continue
			}
			status[name] = "ok"
		}

		if !ready {
			responses.WriteError(ctx, nil, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": status})
	}
}
