package controllers

import (
	"net/http"

	"github.com/lehaiminh/chainpos-backend/api/responses"
	"github.com/lehaiminh/chainpos-backend/pkg/config"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
)

// ReadinessCheck is a named probe against a backing dependency.
type ReadinessCheck struct {
	Name string
	Ping func(r *http.Request) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChainPOS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChainPOS-Env", cfg.App.Env)
		for _, check := range checks {
			if check.Ping == nil {
				continue
			}
			if err := check.Ping(r); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
