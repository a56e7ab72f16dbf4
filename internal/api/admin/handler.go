package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/database"
	"github.com/johnwards/dealerhub/internal/seed"
)

const (
	defaultRequestLimit = 100
	maxRequestLimit     = 1000
)

// Handler serves the admin API at /_dealerhub/.
type Handler struct {
	db      *sql.DB
	samples bool
	onReset func()
}

type statusResponse struct {
	Status string `json:"status"`
}

// Reset clears every data table, seeds again and drops live console state.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := ResetData(r.Context(), h.db, h.samples); err != nil {
		h.fail(w, r, "reset", err)
		return
	}
	if h.onReset != nil {
		h.onReset()
	}
	api.WriteData(w, http.StatusOK, statusResponse{Status: "reset"})
}

// SeedData seeds without clearing first. Existing samples are left alone.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := seed.Seed(r.Context(), h.db, h.samples); err != nil {
		h.fail(w, r, "seed", err)
		return
	}
	api.WriteData(w, http.StatusOK, statusResponse{Status: "seeded"})
}

type requestLogEntry struct {
	ID            int64  `json:"id"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	StatusCode    int    `json:"statusCode"`
	RequestBody   string `json:"requestBody,omitempty"`
	ResponseBody  string `json:"responseBody,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	CorrelationID string `json:"correlationId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

type requestPage struct {
	Items []requestLogEntry `json:"items"`
	Total int               `json:"total"`
	After string            `json:"after,omitempty"`
}

// Requests lists logged requests newest first. Query parameters method,
// status and path (a prefix) narrow the log; after continues from a
// previous page's cursor.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultRequestLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRequestLimit {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				fmt.Sprintf("limit must be between 1 and %d", maxRequestLimit), api.CorrelationID(r.Context()), nil))
			return
		}
		limit = n
	}

	var (
		where []string
		args  []any
	)
	if v := q.Get("method"); v != "" {
		where = append(where, "method = ?")
		args = append(args, strings.ToUpper(v))
	}
	if v := q.Get("status"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				"status must be a number", api.CorrelationID(r.Context()), nil))
			return
		}
		where = append(where, "status_code = ?")
		args = append(args, code)
	}
	if v := q.Get("path"); v != "" {
		where = append(where, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(v)+"%")
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := h.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM request_log"+filter, args...).Scan(&total); err != nil {
		h.fail(w, r, "count request log", err)
		return
	}

	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				"after must be a request id", api.CorrelationID(r.Context()), nil))
			return
		}
		where = append(where, "id < ?")
		args = append(args, after)
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := h.db.QueryContext(r.Context(),
		`SELECT id, method, path, status_code, COALESCE(request_body,''), COALESCE(response_body,''),
		 COALESCE(duration_ms,0), COALESCE(correlation_id,''), created_at
		 FROM request_log`+filter+` ORDER BY id DESC LIMIT ?`, append(args, limit+1)...)
	if err != nil {
		h.fail(w, r, "query request log", err)
		return
	}
	defer func() { _ = rows.Close() }()

	page := requestPage{Items: make([]requestLogEntry, 0, limit), Total: total}
	for rows.Next() {
		var e requestLogEntry
		if err := rows.Scan(&e.ID, &e.Method, &e.Path, &e.StatusCode,
			&e.RequestBody, &e.ResponseBody, &e.DurationMs, &e.CorrelationID, &e.CreatedAt); err != nil {
			h.fail(w, r, "scan request log", err)
			return
		}
		page.Items = append(page.Items, e)
	}
	if err := rows.Err(); err != nil {
		h.fail(w, r, "read request log", err)
		return
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.After = strconv.FormatInt(page.Items[limit-1].ID, 10)
	}
	api.WriteData(w, http.StatusOK, page)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	api.WriteError(w, http.StatusInternalServerError,
		api.NewInternalError(fmt.Sprintf("%s: %s", op, err), api.CorrelationID(r.Context())))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ResetData clears all data tables and re-seeds.
func ResetData(ctx context.Context, db *sql.DB, withSamples bool) error {
	if err := database.Truncate(ctx, db); err != nil {
		return err
	}
	return seed.Seed(ctx, db, withSamples)
}
