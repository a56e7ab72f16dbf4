package view

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
)

// Empty-state messages.
const (
	EmptyNoRecords = "No records found."
	EmptyNoMatches = "No records match your search."
)

// Alert kinds.
const (
	AlertSuccess = "success"
	AlertDanger  = "danger"
)

// Alert is the transient banner of a screen.
type Alert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Options tunes a Screen.
type Options struct {
	// AlertTTL is how long an alert stays up. Zero keeps it until dismissed.
	AlertTTL time.Duration
	PageSize int
	Now      func() time.Time
	Logger   *slog.Logger
}

// Screen is one live managed collection view. It is safe for concurrent
// use; network calls are made without holding its lock, and results that
// arrive after a newer load or after Close are discarded.
type Screen struct {
	cfg  *Config
	src  Source
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	loadSeq  uint64
	dataGen  uint64
	loading  bool
	loaded   bool
	records  []domain.Record
	refs     Refs
	criteria Criteria
	page     int
	pageSize int
	memo     rowMemo

	alert      *Alert
	alertSeq   uint64
	alertTimer *time.Timer

	modal    Modal
	modalSeq uint64
	busy     bool
}

type rowMemo struct {
	valid    bool
	gen      uint64
	day      string
	key      string
	all      []Row
	filtered []Row
}

// NewScreen creates a screen for cfg reading from src. Nothing is fetched
// until Load.
func NewScreen(cfg *Config, src Source, opts Options) *Screen {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Screen{
		cfg:      cfg,
		src:      src,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		records:  []domain.Record{},
		page:     1,
		pageSize: opts.PageSize,
		modal:    Modal{State: ModalClosed},
	}
}

// Config returns the screen's configuration.
func (s *Screen) Config() *Config {
	return s.cfg
}

// Close cancels in-flight requests. Later results are dropped.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.alertTimer != nil {
		s.alertTimer.Stop()
	}
}

// requestCtx derives a context from the caller's that also ends when the
// screen is closed.
func (s *Screen) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// Load fetches the primary and reference collections. On failure the
// previously loaded records are kept and the error is shown as an alert.
func (s *Screen) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	s.loadSeq++
	seq := s.loadSeq
	s.loading = true
	s.mu.Unlock()

	rctx, done := s.requestCtx(ctx)
	defer done()

	res, err := Fetch(rctx, s.src, s.cfg.Collection, s.cfg.References)
	if err == nil {
		for _, l := range s.cfg.Lookups {
			ids := make([]string, 0, len(res.Records))
			for _, rec := range res.Records {
				ids = append(ids, rec.String(l.Key))
			}
			res.Refs[l.Name] = Lookup(rctx, s.src, l.Collection, ids, l.Field, l.Placeholder)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.loadSeq {
		return err
	}
	s.loading = false

	if err != nil {
		s.opts.Logger.Warn("load screen", "screen", s.cfg.Name, "error", err)
		s.setAlertLocked(AlertDanger, fmt.Sprintf("Failed to load %s: %s", s.cfg.Title, Message(err)))
		return err
	}

	s.records = res.Records
	s.refs = res.Refs
	s.loaded = true
	s.dataGen++
	return nil
}

// Loading reports whether a load is in flight.
func (s *Screen) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Criteria returns the active criteria.
func (s *Screen) Criteria() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// SetCriteria replaces the search and filter state. Any change returns the
// screen to page 1.
func (s *Screen) SetCriteria(c Criteria) error {
	if _, _, err := c.Window(); err != nil {
		s.mu.Lock()
		s.setAlertLocked(AlertDanger, Message(err))
		s.mu.Unlock()
		return err
	}
	if s.cfg.DateField == "" {
		c.From, c.To = "", ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Key() != s.criteria.Key() {
		s.page = 1
	}
	s.criteria = c
	return nil
}

// SetSearch changes the search term.
func (s *Screen) SetSearch(term string) error {
	c := s.Criteria()
	c.Search = term
	return s.SetCriteria(c)
}

// SetFilter changes the selected values of one filter. No values clears it.
func (s *Screen) SetFilter(key string, values ...string) error {
	c := s.Criteria()
	fields := maps.Clone(c.Fields)
	if fields == nil {
		fields = make(map[string][]string)
	}
	fields[key] = values
	c.Fields = fields
	return s.SetCriteria(c)
}

// SetPageSize changes the page size and returns to page 1.
func (s *Screen) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return &ValidationError{Field: "pageSize", Message: fmt.Sprintf("Page size %d is not offered", n)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
	s.page = 1
	return nil
}

// GoTo moves to page p. A page outside [1, total pages] is ignored and
// GoTo reports false.
func (s *Screen) GoTo(p int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := TotalPages(len(s.rowsLocked()), s.pageSize)
	if p < 1 || p > total {
		return false
	}
	s.page = p
	return true
}

// Rows returns the filtered, unpaginated rows.
func (s *Screen) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rowsLocked())
}

func (s *Screen) rowsLocked() []Row {
	now := s.opts.Now()
	day := now.In(format.Location).Format(time.DateOnly)
	key := s.criteria.Key()

	m := &s.memo
	if !m.valid || m.gen != s.dataGen || m.day != day {
		m.all = BuildRows(s.cfg, s.records, s.refs, now)
		m.valid, m.gen, m.day, m.key = true, s.dataGen, day, ""
		m.filtered = nil
	}
	if m.filtered == nil || m.key != key {
		m.filtered = Filter(m.all, s.criteria)
		m.key = key
	}
	return m.filtered
}

// DismissAlert clears the alert.
func (s *Screen) DismissAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertSeq++
	s.alert = nil
}

func (s *Screen) setAlertLocked(kind, msg string) {
	if s.closed {
		return
	}
	s.alertSeq++
	seq := s.alertSeq
	s.alert = &Alert{Kind: kind, Message: msg}

	if s.alertTimer != nil {
		s.alertTimer.Stop()
	}
	if s.opts.AlertTTL > 0 {
		s.alertTimer = time.AfterFunc(s.opts.AlertTTL, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.alertSeq == seq {
				s.alert = nil
			}
		})
	}
}

// Export renders the filtered rows in format f. Screens with a server
// export delegate csv, excel and pdf to it with the same criteria and reload
// afterwards. Failures are also shown as an alert.
func (s *Screen) Export(ctx context.Context, f Format) (*Download, error) {
	s.mu.Lock()
	rows := s.rowsLocked()
	crit := s.criteria
	s.mu.Unlock()

	var (
		d   *Download
		err error
	)
	if s.cfg.ServerExport != "" && f.ServerSide() {
		d, err = s.serverExport(ctx, f, crit)
		if err == nil {
			// The server records the export; show it.
			_ = s.Load(ctx)
		}
	} else {
		d, err = Export(f, s.cfg.Name, TableOf(s.cfg, rows), s.opts.Now())
	}

	if err != nil {
		s.opts.Logger.Warn("export screen", "screen", s.cfg.Name, "format", f, "error", err)
		s.mu.Lock()
		s.setAlertLocked(AlertDanger, "Export failed: "+Message(err))
		s.mu.Unlock()
		return nil, err
	}
	return d, nil
}

func (s *Screen) serverExport(ctx context.Context, f Format, c Criteria) (*Download, error) {
	q := url.Values{"format": {string(f)}}
	if c.Search != "" {
		q.Set("q", c.Search)
	}
	if c.From != "" {
		q.Set("from", c.From)
	}
	if c.To != "" {
		q.Set("to", c.To)
	}
	for k, vals := range c.Fields {
		for _, v := range selected(vals) {
			q.Add(k, v)
		}
	}

	rctx, done := s.requestCtx(ctx)
	defer done()

	file, err := s.src.Download(rctx, s.cfg.ServerExport, q)
	if err != nil {
		return nil, err
	}
	d := &Download{Filename: file.Filename, ContentType: file.ContentType, Body: file.Body}
	if d.Filename == "" {
		d.Filename = fmt.Sprintf("%s-%s.%s", s.cfg.Name, s.opts.Now().In(format.Location).Format("20060102"), extension(f))
	}
	return d, nil
}

func extension(f Format) string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

func (s *Screen) findLocked(id string) (domain.Record, bool) {
	for _, rec := range s.records {
		if rec.ID() == id {
			return rec, true
		}
	}
	return nil, false
}

// OpenCreate opens the create form with default values.
func (s *Screen) OpenCreate() error {
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalSeq++
	s.modal = Modal{State: ModalCreate, Values: Defaults(s.cfg, s.opts.Now())}
	return nil
}

// OpenEdit opens the edit form for id, re-reading the record first when the
// screen fetches detail.
func (s *Screen) OpenEdit(ctx context.Context, id string) error {
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	return s.openRecord(ctx, ModalEdit, id)
}

// OpenView opens the read-only detail of id.
func (s *Screen) OpenView(ctx context.Context, id string) error {
	return s.openRecord(ctx, ModalView, id)
}

func (s *Screen) openRecord(ctx context.Context, state ModalState, id string) error {
	s.mu.Lock()
	rec, ok := s.findLocked(id)
	if !ok && !s.cfg.FetchDetail {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", s.cfg.singular(), id, ErrUnknownRecord)
	}
	s.modalSeq++
	seq := s.modalSeq
	s.modal = Modal{State: state, RecordID: id, Record: rec, Loading: s.cfg.FetchDetail}
	if ok {
		s.modal.Values = formValues(s.cfg.Form, rec)
	}
	s.mu.Unlock()

	if !s.cfg.FetchDetail {
		return nil
	}

	rctx, done := s.requestCtx(ctx)
	defer done()
	fresh, err := s.src.Get(rctx, s.cfg.Collection, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.modalSeq != seq {
		return err
	}
	s.modal.Loading = false
	if err != nil {
		s.modal.Error = Message(err)
		return err
	}
	s.modal.Record = fresh
	s.modal.Values = formValues(s.cfg.Form, fresh)
	return nil
}

// OpenDelete asks for confirmation before deleting id.
func (s *Screen) OpenDelete(id string) error {
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.findLocked(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", s.cfg.singular(), id, ErrUnknownRecord)
	}
	s.modalSeq++
	s.modal = Modal{State: ModalDelete, RecordID: id, Record: rec}
	return nil
}

// CloseModal closes any open modal without side effects.
func (s *Screen) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalSeq++
	s.modal = Modal{State: ModalClosed}
}

// Modal returns a copy of the modal state.
func (s *Screen) Modal() Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal.clone()
}

// Submit validates values against the form and saves them: POST from the
// create modal, PATCH or PUT from the edit modal. On success the modal
// closes and the list is refetched; on failure it stays open with the error.
func (s *Screen) Submit(ctx context.Context, values map[string]any) error {
	s.mu.Lock()
	state := s.modal.State
	if state != ModalCreate && state != ModalEdit {
		s.mu.Unlock()
		return ErrModalState
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}

	merged := maps.Clone(s.modal.Values)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	maps.Copy(merged, values)
	s.modal.Values = merged

	err := Validate(s.cfg.Form, merged)
	if err == nil && s.cfg.Validate != nil {
		err = s.cfg.Validate(merged)
	}
	if err != nil {
		s.modal.Error = Message(err)
		s.setAlertLocked(AlertDanger, Message(err))
		s.mu.Unlock()
		return err
	}

	editing := state == ModalEdit
	id := s.modal.RecordID
	body := payload(s.cfg.Form, merged, editing)
	if !editing {
		for k, v := range s.cfg.Defaults {
			if _, ok := body[k]; !ok && !hasField(s.cfg.Form, k) {
				body[k] = v
			}
		}
	}
	if s.cfg.Derive != nil {
		maps.Copy(body, s.cfg.Derive(merged))
	}
	seq := s.modalSeq
	s.busy = true
	s.modal.Saving = true
	s.modal.Error = ""
	s.mu.Unlock()

	rctx, done := s.requestCtx(ctx)
	if editing {
		_, err = s.src.Update(rctx, s.cfg.Collection, id, s.cfg.updateMethod(), body)
	} else {
		_, err = s.src.Create(rctx, s.cfg.Collection, body)
	}
	done()

	verb := "created"
	if editing {
		verb = "updated"
	}
	return s.finishMutation(ctx, seq, true, err, fmt.Sprintf("%s %s successfully", s.cfg.singular(), verb))
}

// ConfirmDelete deletes the record of the open delete modal.
func (s *Screen) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if s.modal.State != ModalDelete {
		s.mu.Unlock()
		return ErrConfirmationRequired
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	id := s.modal.RecordID
	seq := s.modalSeq
	s.busy = true
	s.modal.Saving = true
	s.modal.Error = ""
	s.mu.Unlock()

	rctx, done := s.requestCtx(ctx)
	err := s.src.Delete(rctx, s.cfg.Collection, id)
	done()

	return s.finishMutation(ctx, seq, true, err, s.cfg.singular()+" deleted successfully")
}

// RunAction applies a status transition to id. The record's current status
// must be one the action starts from, and the caller must have confirmed.
func (s *Screen) RunAction(ctx context.Context, id, name string, confirmed bool) error {
	a, ok := s.cfg.action(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	rec, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", s.cfg.singular(), id, ErrUnknownRecord)
	}
	now := s.opts.Now()
	status := s.cfg.status(rec, now)
	if !a.allowed(status) {
		s.setAlertLocked(AlertDanger, fmt.Sprintf("%s is not available for status %s", a.Label, status))
		s.mu.Unlock()
		return fmt.Errorf("%s from %q: %w", a.Name, status, ErrTransitionNotAllowed)
	}
	if !confirmed {
		s.mu.Unlock()
		return ErrConfirmationRequired
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	fields := map[string]any{a.field(): a.To}
	if a.Set != nil {
		maps.Copy(fields, a.Set(now))
	}

	rctx, done := s.requestCtx(ctx)
	_, err := s.src.Update(rctx, s.cfg.Collection, id, http.MethodPatch, fields)
	done()

	return s.finishMutation(ctx, 0, false, err, fmt.Sprintf("%s: %s #%s", a.Label, s.cfg.singular(), id))
}

// finishMutation records the outcome of a mutation. A success closes the
// modal it came from, if fromModal, and refetches; a failure leaves the
// modal open.
func (s *Screen) finishMutation(ctx context.Context, seq uint64, fromModal bool, err error, success string) error {
	s.mu.Lock()
	s.busy = false
	if s.closed {
		s.mu.Unlock()
		return cmp.Or(err, context.Canceled)
	}
	current := fromModal && s.modalSeq == seq
	if current {
		s.modal.Saving = false
	}

	if err != nil {
		s.opts.Logger.Warn("mutate screen", "screen", s.cfg.Name, "error", err)
		if current && s.modal.open() {
			s.modal.Error = Message(err)
		}
		s.setAlertLocked(AlertDanger, Message(err))
		s.mu.Unlock()
		return err
	}

	if current && s.modal.open() {
		s.modalSeq++
		s.modal = Modal{State: ModalClosed}
	}
	s.setAlertLocked(AlertSuccess, success)
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.opts.Logger.Warn("refetch after mutation", "screen", s.cfg.Name, "error", err)
	}
	return nil
}
