package records

import (
	"net/http"

	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/store"
)

// RegisterRoutes adds the generic collection endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, m *metrics.Collector) {
	h := &Handler{store: s, metrics: m}

	mux.HandleFunc("GET /api/{collection}", h.List)
	mux.HandleFunc("POST /api/{collection}", h.Create)
	mux.HandleFunc("GET /api/{collection}/{id}", h.Get)
	mux.HandleFunc("PATCH /api/{collection}/{id}", h.Update)
	mux.HandleFunc("PUT /api/{collection}/{id}", h.Replace)
	mux.HandleFunc("DELETE /api/{collection}/{id}", h.Archive)
}
