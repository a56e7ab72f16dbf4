package records

import (
	"bytes"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/store"
)

// Handler handles dealer API record requests.
type Handler struct {
	store   *store.Store
	metrics *metrics.Collector
}

// reservedParams are list query parameters that are not field filters.
var reservedParams = []string{"limit", "offset", "q", "from", "to", "archived"}

// List handles GET /api/{collection}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	corrID := api.CorrelationID(r.Context())

	c, err := h.store.Collections.Get(r.Context(), collection)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	opts, err := ParseListOpts(r, c)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), corrID, nil))
		return
	}

	items, total, err := h.store.Records.List(r.Context(), collection, opts)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	api.WriteList(w, items, total)
}

// Get handles GET /api/{collection}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Records.Get(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, rec)
}

// Create handles POST /api/{collection}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	rec, err := h.store.Records.Create(r.Context(), collection, fields)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.metrics.RecordMutation(collection, store.ActionCreate)
	api.WriteData(w, http.StatusCreated, rec)
}

// Update handles PATCH /api/{collection}/{id}, merging the given fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Replace handles PUT /api/{collection}/{id}, replacing every mutable field.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, replace bool) {
	collection := r.PathValue("collection")

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	rec, err := h.store.Records.Update(r.Context(), collection, r.PathValue("id"), fields, replace)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.metrics.RecordMutation(collection, store.ActionUpdate)
	api.WriteData(w, http.StatusOK, rec)
}

// Archive handles DELETE /api/{collection}/{id}.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	if err := h.store.Records.Archive(r.Context(), collection, r.PathValue("id")); err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.metrics.RecordMutation(collection, store.ActionDelete)
	w.WriteHeader(http.StatusNoContent)
}

// decodeFields reads a JSON object body, keeping numbers exact.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	corrID := api.CorrelationID(r.Context())

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Unable to read request body", corrID, nil))
		return nil, false
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return nil, false
	}
	return fields, true
}

// ParseListOpts turns list query parameters into store options. Unreserved
// parameters are equality filters on fields; a repeated parameter becomes an
// IN filter. from and to bound createdAt by whole days in the display time
// zone.
func ParseListOpts(r *http.Request, c *domain.Collection) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{
		Query:    strings.TrimSpace(q.Get("q")),
		Archived: q.Get("archived") == "true",
	}

	for _, f := range c.Fields {
		opts.SearchFields = append(opts.SearchFields, f.Name)
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, &store.ValidationError{Field: "limit", Message: "limit must be a non-negative integer"}
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, &store.ValidationError{Field: "offset", Message: "offset must be a non-negative integer"}
		}
		opts.Offset = n
	}

	for _, b := range []struct {
		param, op string
		end       bool
	}{{"from", domain.OpGTE, false}, {"to", domain.OpLTE, true}} {
		v := strings.TrimSpace(q.Get(b.param))
		if v == "" {
			continue
		}
		t, ok := dayBound(v, b.end)
		if !ok {
			return opts, &store.ValidationError{Field: b.param, Message: b.param + " must be a date"}
		}
		opts.Filters = append(opts.Filters, domain.Filter{
			Field: domain.KeyCreatedAt, Operator: b.op,
			Values: []string{t.UTC().Format("2006-01-02T15:04:05.000Z")},
		})
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if slices.Contains(reservedParams, k) {
			continue
		}
		values := slices.DeleteFunc(slices.Clone(q[k]), func(s string) bool { return s == "" })
		switch len(values) {
		case 0:
			continue
		case 1:
			opts.Filters = append(opts.Filters, domain.Filter{Field: k, Operator: domain.OpEQ, Values: values})
		default:
			opts.Filters = append(opts.Filters, domain.Filter{Field: k, Operator: domain.OpIN, Values: values})
		}
	}

	return opts, nil
}

// dayBound parses a from/to value. A plain date names a whole day in the
// display time zone; to covers it up to its last millisecond.
func dayBound(v string, end bool) (time.Time, bool) {
	if t, err := time.ParseInLocation(time.DateOnly, v, format.Location); err == nil {
		if end {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		return t, true
	}
	return domain.ParseTime(v)
}
