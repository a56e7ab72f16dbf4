package collections

import (
	"net/http"

	"github.com/johnwards/dealerhub/internal/store"
)

// RegisterRoutes registers the collection catalogue endpoints.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("GET /api/collections", h.List)
	mux.HandleFunc("GET /api/collections/{name}", h.Get)
}
