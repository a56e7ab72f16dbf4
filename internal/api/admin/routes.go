package admin

import (
	"database/sql"
	"net/http"
)

// RegisterRoutes registers all admin API endpoints on the mux. onReset, when
// non-nil, runs after a successful reset.
func RegisterRoutes(mux *http.ServeMux, db *sql.DB, withSamples bool, onReset func()) {
	h := &Handler{db: db, samples: withSamples, onReset: onReset}

	mux.HandleFunc("POST /_dealerhub/reset", h.Reset)
	mux.HandleFunc("GET /_dealerhub/requests", h.Requests)
	mux.HandleFunc("POST /_dealerhub/seed", h.SeedData)
}
