package exports

import (
	"net/http"
	"time"

	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/store"
)

// RegisterRoutes adds the export endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, m *metrics.Collector) {
	h := &Handler{store: s, metrics: m, now: time.Now}

	mux.HandleFunc("GET /api/audit-logs/export", h.AuditLogs)
	mux.HandleFunc("GET /api/exports/{id}", h.Get)
}
