package collections

import (
	"net/http"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/store"
)

// Handler serves the collection catalogue.
type Handler struct {
	store *store.Store
}

// List handles GET /api/collections.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cols, err := h.store.Collections.List(r.Context())
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}
	api.WriteList(w, cols, len(cols))
}

// Get handles GET /api/collections/{name}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Collections.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, c)
}
