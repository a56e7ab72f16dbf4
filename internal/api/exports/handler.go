package exports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/api/records"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/screens"
	"github.com/johnwards/dealerhub/internal/store"
	"github.com/johnwards/dealerhub/internal/view"
)

// Handler handles server-side export requests.
type Handler struct {
	store   *store.Store
	metrics *metrics.Collector
	now     func() time.Time
}

// statusResponse represents an export task.
type statusResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Status      string            `json:"status"`
	Format      string            `json:"format"`
	Collection  string            `json:"collection"`
	Filters     map[string]string `json:"filters,omitempty"`
	RecordCount int               `json:"recordCount"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

// AuditLogs handles GET /api/audit-logs/export. It accepts format (csv,
// excel or pdf), the audit-log screen's criteria (q, from and to as plain
// dates, action, userId) and any other list parameters of the collection,
// and responds with the file as an attachment.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID := api.CorrelationID(ctx)
	cfg := screens.AuditLogs()

	q := r.URL.Query()
	name := q.Get("format")
	if name == "" {
		name = string(view.FormatCSV)
	}
	f, err := view.ParseFormat(name)
	if err == nil && !f.ServerSide() {
		err = &view.ValidationError{Field: "format", Message: fmt.Sprintf("Unsupported export format %q", name)}
	}
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(view.Message(err), corrID, nil))
		return
	}

	c, err := h.store.Collections.Get(ctx, cfg.Collection)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	filters := make(map[string]string, len(q))
	for k := range q {
		if k != "format" {
			filters[k] = q.Get(k)
		}
	}

	crit, rest := criteriaOf(cfg, q)
	if _, _, err := crit.Window(); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(view.Message(err), corrID, nil))
		return
	}
	lr := r.Clone(ctx)
	lr.URL.RawQuery = rest.Encode()
	opts, err := records.ParseListOpts(lr, c)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), corrID, nil))
		return
	}

	exp, err := h.store.Exports.Create(ctx, cfg.Name, string(f), cfg.Collection, filters)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	d, count, err := h.render(r, cfg, f, opts, crit)
	h.metrics.RecordExport("api", string(f), err)
	if err != nil {
		if ferr := h.store.Exports.Fail(ctx, exp.ID); ferr != nil {
			slog.Error("mark export failed", "id", exp.ID, "error", ferr)
		}
		api.WriteStoreError(w, r, err)
		return
	}

	if err := h.store.Exports.Complete(ctx, exp.ID, d.Body, count); err != nil {
		api.WriteStoreError(w, r, err)
		return
	}
	details := fmt.Sprintf("Exported %d audit log entries as %s", count, f)
	if err := h.store.Records.Audit(ctx, store.ActionExport, cfg.Collection, exp.ID, details); err != nil {
		slog.Error("audit export", "id", exp.ID, "error", err)
	}

	w.Header().Set("X-Export-Id", exp.ID)
	d.ServeHTTP(w, r)
}

// criteriaOf splits the query into the criteria the audit-log screen
// applies to its rendered rows and the remaining list parameters. Search,
// date range and the screen's filters match the way the table does, so an
// export holds exactly the rows shown for the same query.
func criteriaOf(cfg *view.Config, q url.Values) (view.Criteria, url.Values) {
	rest := url.Values{}
	for k, vals := range q {
		rest[k] = vals
	}
	rest.Del("format")

	crit := view.Criteria{
		Search: rest.Get("q"),
		From:   strings.TrimSpace(rest.Get("from")),
		To:     strings.TrimSpace(rest.Get("to")),
	}
	rest.Del("q")
	rest.Del("from")
	rest.Del("to")

	for _, fd := range cfg.Filters {
		if vals, ok := rest[fd.Key]; ok {
			if crit.Fields == nil {
				crit.Fields = make(map[string][]string)
			}
			crit.Fields[fd.Key] = vals
			rest.Del(fd.Key)
		}
	}
	return crit, rest
}

// render lists the entries, oldest first, renders them with the audit-log
// screen's columns and keeps the rows matching crit.
func (h *Handler) render(r *http.Request, cfg *view.Config, f view.Format, opts domain.ListOpts, crit view.Criteria) (*view.Download, int, error) {
	ctx := r.Context()
	entries, _, err := h.store.Records.List(ctx, cfg.Collection, opts)
	if err != nil {
		return nil, 0, err
	}

	refs := view.Refs{}
	for _, l := range cfg.Lookups {
		rel, _, err := h.store.Records.List(ctx, l.Collection, domain.ListOpts{})
		if err != nil {
			return nil, 0, fmt.Errorf("list %s: %w", l.Collection, err)
		}
		refs[l.Name] = view.BuildMap(rel, view.ByField(l.Field))
	}

	now := h.now()
	rows := view.Filter(view.BuildRows(cfg, entries, refs, now), crit)
	d, err := view.Export(f, cfg.Name, view.TableOf(cfg, rows), now)
	if err != nil {
		return nil, 0, err
	}
	return d, len(rows), nil
}

// Get handles GET /api/exports/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.Exports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, api.NewNotFoundError("Export task not found", api.CorrelationID(r.Context())))
			return
		}
		api.WriteStoreError(w, r, err)
		return
	}

	api.WriteData(w, http.StatusOK, statusResponse{
		ID:          exp.ID,
		Name:        exp.Name,
		Status:      exp.State,
		Format:      exp.Format,
		Collection:  exp.Collection,
		Filters:     exp.Filters,
		RecordCount: exp.RecordCount,
		CreatedAt:   exp.CreatedAt,
		UpdatedAt:   exp.UpdatedAt,
	})
}
