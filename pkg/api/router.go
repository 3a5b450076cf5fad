package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/store"
	"github.com/deptrack/deptrack/pkg/sync"
)

// NewRouter creates a chi router with the sync API routes, mounted by the
// server under /api/deptrack/v1alpha1.
func NewRouter(db *gorm.DB, coordinator *sync.Coordinator) chi.Router {
	teams := store.NewTeamStore(db)
	configs := store.NewManifestConfigStore(db)
	history := store.NewHistoryStore(db)
	drifts := store.NewDriftStore(db)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/teams/{teamId}", func(r chi.Router) {
		r.Post("/sync", triggerSyncHandler(coordinator))
		r.Get("/sync/status", syncStatusHandler(coordinator, configs))
		r.Get("/sync/history", listHistoryHandler(history))
		r.Get("/sync/history/{runId}", getHistoryHandler(history))

		r.Get("/drift", listDriftHandler(drifts))
		r.Post("/drift/{flagId}:resolve", resolveDriftHandler(drifts))

		r.Put("/manifest-config", putManifestConfigHandler(teams, configs))
	})

	return r
}
