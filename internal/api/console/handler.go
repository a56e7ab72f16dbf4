// Package console serves the managed collection screens over HTTP. Each
// browser session owns one live screen per entity; requests drive it and
// get back its view-model.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/screens"
	"github.com/johnwards/dealerhub/internal/store"
	"github.com/johnwards/dealerhub/internal/view"
)

// Handler handles console requests.
type Handler struct {
	sessions  *Sessions
	newScreen func(*view.Config) *view.Screen
	metrics   *metrics.Collector
}

type screenInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	ReadOnly bool   `json:"readOnly"`
}

// Screens handles GET /console/screens.
func (h *Handler) Screens(w http.ResponseWriter, _ *http.Request) {
	all := screens.All()
	out := make([]screenInfo, len(all))
	for i, c := range all {
		out[i] = screenInfo{Name: c.Name, Title: c.Title, ReadOnly: c.ReadOnly}
	}
	api.WriteList(w, out, len(out))
}

// View handles GET /console/{screen}. Query parameters search, from, to,
// the screen's filter keys, pageSize and page update the screen first.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	if err := applyQuery(s, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, s.View())
}

// applyQuery sets the criteria and paging named in the query. Parameters
// that are absent leave the current state alone.
func applyQuery(s *view.Screen, r *http.Request) error {
	q := r.URL.Query()
	c := s.Criteria()

	if q.Has("search") {
		c.Search = q.Get("search")
	}
	if q.Has("from") {
		c.From = q.Get("from")
	}
	if q.Has("to") {
		c.To = q.Get("to")
	}
	for _, f := range s.Config().Filters {
		if !q.Has(f.Key) {
			continue
		}
		if c.Fields == nil {
			c.Fields = make(map[string][]string)
		}
		c.Fields[f.Key] = q[f.Key]
	}
	if err := s.SetCriteria(c); err != nil {
		return err
	}

	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &view.ValidationError{Field: "pageSize", Message: "pageSize must be a number"}
		}
		if err := s.SetPageSize(n); err != nil {
			return err
		}
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &view.ValidationError{Field: "page", Message: "page must be a number"}
		}
		s.GoTo(n)
	}
	return nil
}

// Refresh handles POST /console/{screen}/refresh. A failed reload keeps
// the previous records and reports the failure in the view's alert.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	_ = s.Load(h.ctx(r))
	api.WriteData(w, http.StatusOK, s.View())
}

// Export handles GET /console/{screen}/export?format=.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	f, err := view.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := s.Export(h.ctx(r), f)
	h.metrics.RecordExport("console", string(f), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d.ServeHTTP(w, r)
}

type modalRequest struct {
	Mode string `json:"mode"`
	ID   any    `json:"id"`
}

// OpenModal handles POST /console/{screen}/modal.
func (h *Handler) OpenModal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	var req modalRequest
	if !decode(w, r, &req) {
		return
	}

	id := domain.Stringify(req.ID)
	mode, known := view.ParseModalState(req.Mode)
	var err error
	switch {
	case !known:
		err = &view.ValidationError{Field: "mode", Message: fmt.Sprintf("Unknown modal mode %q", req.Mode)}
	case mode == view.ModalCreate:
		err = s.OpenCreate()
	case mode == view.ModalEdit:
		err = s.OpenEdit(h.ctx(r), id)
	case mode == view.ModalView:
		err = s.OpenView(h.ctx(r), id)
	case mode == view.ModalDelete:
		err = s.OpenDelete(id)
	}
	h.respond(w, r, s, err)
}

type submitRequest struct {
	Fields map[string]any `json:"fields"`
}

// Submit handles POST /console/{screen}/modal/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, s, s.Submit(h.ctx(r), req.Fields))
}

// Confirm handles POST /console/{screen}/modal/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s, s.ConfirmDelete(h.ctx(r)))
}

// CloseModal handles DELETE /console/{screen}/modal.
func (h *Handler) CloseModal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	s.CloseModal()
	api.WriteData(w, http.StatusOK, s.View())
}

// RunAction handles POST /console/{screen}/records/{id}/actions/{action}.
// Actions change a record's status and need ?confirm=true.
func (h *Handler) RunAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"
	h.respond(w, r, s, s.RunAction(h.ctx(r), r.PathValue("id"), r.PathValue("action"), confirmed))
}

// DismissAlert handles DELETE /console/{screen}/alert.
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screen(w, r)
	if !ok {
		return
	}
	s.DismissAlert()
	api.WriteData(w, http.StatusOK, s.View())
}

// screen resolves the session's screen named in the path, loading it on
// first use.
func (h *Handler) screen(w http.ResponseWriter, r *http.Request) (*view.Screen, bool) {
	corrID := api.CorrelationID(r.Context())
	cfg, ok := screens.ByName(r.PathValue("screen"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("Screen %q not found", r.PathValue("screen")), corrID))
		return nil, false
	}

	sess := h.sessions.acquire(w, r)
	h.metrics.SetConsoleSessions(h.sessions.Len())
	s, created := sess.screen(cfg, h.newScreen)
	if s == nil {
		api.WriteError(w, http.StatusConflict, api.NewConflictError("Session has expired", corrID))
		return nil, false
	}
	if created {
		_ = s.Load(h.ctx(r))
	}
	return s, true
}

// ctx attributes the screen's API requests to the acting user.
func (h *Handler) ctx(r *http.Request) context.Context {
	return client.WithUser(r.Context(), store.ActorFrom(r.Context()))
}

// respond writes the view after a screen operation, or the error it
// returned.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *view.Screen, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, s.View())
}

// writeError maps a screen error onto a status code. The message is the
// one the screen shows in its alert.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	corrID := api.CorrelationID(r.Context())
	msg := view.Message(err)

	var (
		validation *view.ValidationError
		apiErr     *client.APIError
		transport  *client.TransportError
	)
	switch {
	case errors.As(err, &validation):
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(msg, corrID, []api.ErrorDetail{
			{Message: msg, Code: "INVALID_FIELD", In: validation.Field},
		}))
	case errors.Is(err, view.ErrUnknownAction), errors.Is(err, view.ErrUnknownRecord):
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(msg, corrID))
	case errors.Is(err, view.ErrReadOnly):
		api.WriteError(w, http.StatusMethodNotAllowed, &api.Error{
			Status: "error", Message: msg, CorrelationID: corrID, Category: api.CategoryReadOnly,
		})
	case errors.Is(err, view.ErrBusy), errors.Is(err, view.ErrModalState),
		errors.Is(err, view.ErrConfirmationRequired), errors.Is(err, view.ErrTransitionNotAllowed):
		api.WriteError(w, http.StatusConflict, api.NewConflictError(msg, corrID))
	case errors.As(err, &apiErr), errors.As(err, &transport):
		api.WriteError(w, http.StatusBadGateway, &api.Error{
			Status: "error", Message: msg, CorrelationID: corrID, Category: api.CategoryUpstream,
		})
	default:
		api.WriteError(w, http.StatusInternalServerError, api.NewInternalError(msg, corrID))
	}
}

// decode reads a JSON body, keeping numbers exact.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Unable to read request body", api.CorrelationID(r.Context()), nil))
		return false
	}
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return false
	}
	return true
}
