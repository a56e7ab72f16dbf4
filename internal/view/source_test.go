package view_test

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/view"
)

type update struct {
	ID     string
	Method string
	Fields map[string]any
}

// fakeSource is an in-memory dealer API.
type fakeSource struct {
	mu      sync.Mutex
	lists   map[string][]domain.Record
	listErr map[string]error
	getErr  map[string]error // by "collection/id"
	mutErr  error
	nextID  int

	created []map[string]any
	updates []update
	deleted []string

	file          *client.File
	downloadErr   error
	downloadPath  string
	downloadQuery url.Values

	// listHook runs before every List; an error fails the call.
	listHook   func(ctx context.Context, collection string) error
	updateHook func(ctx context.Context) error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		lists:   make(map[string][]domain.Record),
		listErr: make(map[string]error),
		getErr:  make(map[string]error),
		nextID:  100,
	}
}

func (f *fakeSource) set(collection string, recs ...domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[collection] = recs
}

func (f *fakeSource) List(ctx context.Context, collection string, _ url.Values) ([]domain.Record, error) {
	if f.listHook != nil {
		if err := f.listHook(ctx, collection); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[collection]; err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(f.lists[collection]))
	for _, r := range f.lists[collection] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeSource) Get(_ context.Context, collection, id string) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[collection+"/"+id]; err != nil {
		return nil, err
	}
	for _, r := range f.lists[collection] {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, &client.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeSource) Create(_ context.Context, collection string, fields map[string]any) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, fields)
	if f.mutErr != nil {
		return nil, f.mutErr
	}
	f.nextID++
	rec := domain.Record(maps.Clone(fields))
	rec[domain.KeyID] = fmt.Sprint(f.nextID)
	f.lists[collection] = append(f.lists[collection], rec)
	return rec.Clone(), nil
}

func (f *fakeSource) Update(ctx context.Context, collection, id, method string, fields map[string]any) (domain.Record, error) {
	if f.updateHook != nil {
		if err := f.updateHook(ctx); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{ID: id, Method: method, Fields: fields})
	if f.mutErr != nil {
		return nil, f.mutErr
	}
	for _, r := range f.lists[collection] {
		if r.ID() == id {
			maps.Copy(r, fields)
			return r.Clone(), nil
		}
	}
	return nil, &client.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeSource) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.mutErr != nil {
		return f.mutErr
	}
	f.lists[collection] = slices.DeleteFunc(f.lists[collection], func(r domain.Record) bool { return r.ID() == id })
	return nil
}

func (f *fakeSource) Download(_ context.Context, path string, query url.Values) (*client.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadPath = path
	f.downloadQuery = query
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.file, nil
}

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func paymentsConfig() *view.Config {
	return &view.Config{
		Name:       "payments",
		Title:      "Payments",
		Singular:   "Payment",
		Collection: "payments",
		References: []view.Reference{{Name: "dealers", Collection: "dealers", Field: "name"}},
		Columns: []view.Column{
			view.ID("ID"),
			view.Ref("dealerId", "Dealer", "dealers", "N/A"),
			view.Money("amount", "Amount"),
			view.Text("method", "Method"),
			view.Date("paidAt", "Paid At"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Pending", "Completed", "Failed", "Cancelled"),
			view.FieldFilter("method", "Method", true),
		},
		DateField: domain.KeyCreatedAt,
		Badge:     view.Badges(map[string]string{"Pending": "warning", "Completed": "success"}),
		Form: []view.FormField{
			{Name: "dealerId", Label: "Dealer", Type: view.InputSelect, Required: true, OptionsRef: "dealers", Immutable: true},
			{Name: "amount", Label: "Amount", Type: view.InputNumber, Required: true, Min: view.Bound(1)},
			{Name: "method", Label: "Method", Type: view.InputSelect, Required: true, Options: []string{"Cash", "BankTransfer", "Card", "Installment"}},
		},
		Actions: []view.Action{{
			Name: "mark-paid", Label: "Mark Paid", To: "Completed", From: []string{"Pending"},
			Set: func(now time.Time) map[string]any {
				return map[string]any{"paidAt": now.UTC().Format(time.RFC3339)}
			},
		}},
	}
}

func seededSource() *fakeSource {
	src := newFakeSource()
	src.set("dealers",
		domain.Record{"id": "d1", "name": "VinEV Hà Nội"},
		domain.Record{"id": "d2", "name": "VinEV Sài Gòn"},
	)
	src.set("payments",
		domain.Record{"id": "p1", "dealerId": "d1", "amount": 1500000, "method": "Cash", "status": "Pending", "createdAt": "2026-10-01T03:00:00Z"},
		domain.Record{"id": "p2", "dealerId": "d2", "amount": 2000000, "method": "Card", "status": "Completed", "createdAt": "2026-10-05T03:00:00Z", "paidAt": "2026-10-05T03:00:00Z"},
		domain.Record{"id": "p3", "dealerId": "X", "amount": 500000, "method": "Cash", "status": "Mystery", "createdAt": "2026-10-10T03:00:00Z"},
	)
	return src
}

func newScreen(cfg *view.Config, src view.Source) *view.Screen {
	return view.NewScreen(cfg, src, view.Options{Now: func() time.Time { return fixedNow }})
}
