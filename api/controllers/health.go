package controllers

import (
	"context"
	"net/http"

	"github.com/packrescue/packrescue-backend/api/responses"
	"github.com/packrescue/packrescue-backend/pkg/config"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

// Pinger is the connectivity probe exposed by backing stores.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackRescue-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every backing store answers a ping.
// Nil pingers are skipped so the cron worker can reuse the handler without
// a database.
func HealthReady(cfg *config.Config, logg *logger.Logger, stores map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackRescue-Env", cfg.App.Env)

		for name, store := range stores {
			if store == nil {
				continue
			}
			if err := store.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
