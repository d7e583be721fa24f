package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/pkg/config"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

const readyCheckTimeout = 3 * time.Second

// Pinger is the health surface a dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady verifies the dependencies this service cannot run without.
func HealthReady(logg *logger.Logger, redisP, journalP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]Pinger{
			"redis":   redisP,
			"journal": journalP,
		}
		status := map[string]string{}
		healthy := true
		for name, pinger := range checks {
			if pinger == nil {
				status[name] = "skipped"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				status[name] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "readiness check failed: "+name, err)
				}
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, status)
	}
}
