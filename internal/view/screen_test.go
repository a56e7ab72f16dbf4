package view_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/view"
)

func loadedScreen(t *testing.T, cfg *view.Config, src *fakeSource) *view.Screen {
	t.Helper()
	s := newScreen(cfg, src)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestScreenEmptyStates(t *testing.T) {
	s := loadedScreen(t, paymentsConfig(), newFakeSource())

	vm := s.View()
	assert.Empty(t, vm.Page.Items)
	assert.Equal(t, view.EmptyNoRecords, vm.Empty)

	require.NoError(t, s.SetSearch("abc"))
	vm = s.View()
	assert.Empty(t, vm.Page.Items)
	assert.Equal(t, view.EmptyNoMatches, vm.Empty)

	require.NoError(t, s.SetSearch(""))
	assert.Equal(t, view.EmptyNoRecords, s.View().Empty)
}

func TestScreenViewModel(t *testing.T) {
	s := loadedScreen(t, paymentsConfig(), seededSource())

	vm := s.View()
	assert.Equal(t, "Payments", vm.Title)
	assert.Equal(t, 3, vm.Page.Total)
	assert.Empty(t, vm.Empty)
	assert.Equal(t, view.PageSizes, vm.PageSizes)
	assert.True(t, vm.DateRange)

	require.Len(t, vm.Filters, 2)
	assert.Equal(t, []view.Option{
		{Value: "Pending", Label: "Pending"}, {Value: "Completed", Label: "Completed"},
		{Value: "Failed", Label: "Failed"}, {Value: "Cancelled", Label: "Cancelled"},
	}, vm.Filters[0].Options)
	assert.Equal(t, []view.Option{{Value: "Card", Label: "Card"}, {Value: "Cash", Label: "Cash"}}, vm.Filters[1].Options)

	assert.Equal(t, []view.StatusCount{
		{Status: "Pending", Badge: "warning", Count: 1},
		{Status: "Completed", Badge: "success", Count: 1},
		{Status: "Mystery", Badge: view.BadgeNeutral, Count: 1},
	}, vm.Summary)

	require.Len(t, vm.Form, 3)
	assert.Equal(t, []view.Option{{Value: "d1", Label: "VinEV Hà Nội"}, {Value: "d2", Label: "VinEV Sài Gòn"}}, vm.Form[0].Choices)
	assert.False(t, vm.Form[0].Disabled)
}

func TestScreenLoadFailureKeepsPreviousRecords(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)

	src.listErr["payments"] = &client.APIError{StatusCode: 500, Message: "Database unavailable"}
	err := s.Load(context.Background())
	require.Error(t, err)

	vm := s.View()
	assert.Equal(t, 3, vm.Page.Total)
	require.NotNil(t, vm.Alert)
	assert.Equal(t, view.AlertDanger, vm.Alert.Kind)
	assert.Equal(t, "Failed to load Payments: Database unavailable", vm.Alert.Message)
	assert.False(t, vm.Loading)
}

func TestScreenFirstLoadFailureIsEmpty(t *testing.T) {
	src := seededSource()
	src.listErr["payments"] = &client.TransportError{Op: "GET /api/payments", Err: errors.New("connection refused")}

	s := newScreen(paymentsConfig(), src)
	defer s.Close()
	require.Error(t, s.Load(context.Background()))

	vm := s.View()
	assert.Equal(t, 0, vm.Page.Total)
	assert.Equal(t, view.EmptyNoRecords, vm.Empty)
	assert.Equal(t, "Failed to load Payments: Network error: connection refused", vm.Alert.Message)
}

func TestScreenCloseDiscardsLateResults(t *testing.T) {
	src := seededSource()
	entered := make(chan struct{}, 2)
	src.listHook = func(ctx context.Context, _ string) error {
		entered <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	s := newScreen(paymentsConfig(), src)
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()

	<-entered
	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("load did not return after Close")
	}
	vm := s.View()
	assert.Equal(t, 0, vm.Page.Total)
	assert.Nil(t, vm.Alert)
	assert.ErrorIs(t, s.Load(context.Background()), context.Canceled)
}

func TestScreenCriteriaAndPaging(t *testing.T) {
	src := newFakeSource()
	for i := 1; i <= 12; i++ {
		method := "Cash"
		if i%2 == 0 {
			method = "Card"
		}
		src.lists["payments"] = append(src.lists["payments"], domain.Record{
			"id": fmt.Sprint(i), "amount": i * 1000, "method": method, "status": "Pending",
		})
	}
	s := loadedScreen(t, paymentsConfig(), src)

	require.NoError(t, s.SetPageSize(5))
	assert.True(t, s.GoTo(3))
	vm := s.View()
	assert.Equal(t, 3, vm.Page.Page)
	assert.Len(t, vm.Page.Items, 2)
	assert.Equal(t, 11, vm.Page.StartIndex)
	assert.Equal(t, 12, vm.Page.EndIndex)

	assert.False(t, s.GoTo(4), "out of range page is a no-op")
	assert.False(t, s.GoTo(0))
	assert.Equal(t, 3, s.View().Page.Page)

	require.NoError(t, s.SetFilter("method", "Cash"))
	assert.Equal(t, 1, s.View().Page.Page, "changing a filter resets to page 1")
	assert.Equal(t, 6, s.View().Page.Total)

	assert.True(t, s.GoTo(2))
	require.NoError(t, s.SetFilter("method", "Cash"))
	assert.Equal(t, 2, s.View().Page.Page, "re-applying the same filter keeps the page")

	require.NoError(t, s.SetPageSize(10))
	assert.Equal(t, 1, s.View().Page.Page, "changing the page size resets to page 1")

	var vErr *view.ValidationError
	require.ErrorAs(t, s.SetPageSize(7), &vErr)

	require.ErrorAs(t, s.SetCriteria(view.Criteria{From: "2026-10-02", To: "2026-10-01"}), &vErr)
	assert.Equal(t, 6, s.View().Page.Total, "invalid criteria are not applied")
}

func TestScreenExportMatchesDisplay(t *testing.T) {
	s := loadedScreen(t, paymentsConfig(), seededSource())
	require.NoError(t, s.SetFilter("method", "Cash"))
	require.NoError(t, s.SetPageSize(5))

	d, err := s.Export(context.Background(), view.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "payments-20261018.csv", d.Filename)

	recs, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(d.Body, []byte("\xef\xbb\xbf")))).ReadAll()
	require.NoError(t, err)

	vm := s.View()
	require.Len(t, recs, 1+vm.Page.Total)
	for i, col := range vm.Columns {
		assert.Equal(t, col.Label, recs[0][i])
	}
	for i, row := range s.Rows() {
		assert.Equal(t, row.Cells, recs[i+1])
	}
	assert.Equal(t, "#p1", recs[1][0])
	assert.Equal(t, "#p3", recs[2][0])
}

func TestScreenServerExport(t *testing.T) {
	src := seededSource()
	src.file = &client.File{Filename: "audit-logs-20261018.csv", ContentType: "text/csv", Body: []byte("x")}
	cfg := paymentsConfig()
	cfg.ServerExport = "audit-logs/export"

	s := loadedScreen(t, cfg, src)
	var reloads atomic.Int32
	src.listHook = func(_ context.Context, collection string) error {
		if collection == cfg.Collection {
			reloads.Add(1)
		}
		return nil
	}
	require.NoError(t, s.SetCriteria(view.Criteria{
		Search: "an", From: "2026-10-01", To: "2026-10-18",
		Fields: map[string][]string{"method": {"Cash", "Card"}},
	}))

	d, err := s.Export(context.Background(), view.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "audit-logs-20261018.csv", d.Filename)
	assert.Equal(t, "audit-logs/export", src.downloadPath)
	assert.Equal(t, "csv", src.downloadQuery.Get("format"))
	assert.Equal(t, "an", src.downloadQuery.Get("q"))
	assert.Equal(t, "2026-10-01", src.downloadQuery.Get("from"))
	assert.Equal(t, []string{"Cash", "Card"}, src.downloadQuery["method"])
	assert.Equal(t, int32(1), reloads.Load(), "the screen reloads after a server export")

	src.downloadPath = ""
	d, err = s.Export(context.Background(), view.FormatCopy)
	require.NoError(t, err)
	assert.Empty(t, src.downloadPath, "copy is rendered locally")
	assert.Equal(t, int32(1), reloads.Load())
	assert.Equal(t, "payments-20261018.txt", d.Filename)
}

func TestScreenExportFailureRaisesAlert(t *testing.T) {
	src := seededSource()
	src.downloadErr = &client.APIError{StatusCode: 500, Message: "Export service down"}
	cfg := paymentsConfig()
	cfg.ServerExport = "payments/export"

	s := loadedScreen(t, cfg, src)
	_, err := s.Export(context.Background(), view.FormatPDF)
	require.Error(t, err)

	vm := s.View()
	assert.Equal(t, "Export failed: Export service down", vm.Alert.Message)
	assert.Equal(t, 3, vm.Page.Total, "the screen keeps working")
}

func TestScreenStatusTransitionGuard(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	ctx := context.Background()

	err := s.RunAction(ctx, "p2", "mark-paid", true)
	require.ErrorIs(t, err, view.ErrTransitionNotAllowed)
	err = s.RunAction(ctx, "p3", "mark-paid", true)
	require.ErrorIs(t, err, view.ErrTransitionNotAllowed)
	assert.Empty(t, src.updates, "no request for a disallowed transition")
	assert.Equal(t, "Mark Paid is not available for status Mystery", s.View().Alert.Message)

	require.ErrorIs(t, s.RunAction(ctx, "p1", "mark-paid", false), view.ErrConfirmationRequired)
	assert.Empty(t, src.updates)

	require.ErrorIs(t, s.RunAction(ctx, "p1", "refund", true), view.ErrUnknownAction)
	require.ErrorIs(t, s.RunAction(ctx, "p9", "mark-paid", true), view.ErrUnknownRecord)

	require.NoError(t, s.RunAction(ctx, "p1", "mark-paid", true))
	require.Len(t, src.updates, 1)
	assert.Equal(t, http.MethodPatch, src.updates[0].Method)
	assert.Equal(t, map[string]any{"status": "Completed", "paidAt": "2026-10-18T09:00:00Z"}, src.updates[0].Fields)

	vm := s.View()
	assert.Equal(t, "Mark Paid: Payment #p1", vm.Alert.Message)
	assert.Equal(t, "Completed", vm.Page.Items[0].Status, "list is refetched after the action")
	assert.Empty(t, vm.Page.Items[0].Actions)
}

func TestScreenMutationsAreSerialised(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)

	entered := make(chan struct{})
	release := make(chan struct{})
	src.updateHook = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.RunAction(context.Background(), "p1", "mark-paid", true) }()
	<-entered

	require.NoError(t, s.OpenCreate())
	assert.ErrorIs(t, s.Submit(context.Background(), map[string]any{"dealerId": "d1", "amount": "5", "method": "Cash"}), view.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestScreenCreateValidatesBeforeRequest(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	ctx := context.Background()

	require.NoError(t, s.OpenCreate())

	tests := []struct {
		values map[string]any
		want   string
	}{
		{map[string]any{}, "Dealer is required"},
		{map[string]any{"dealerId": "d1", "amount": "abc", "method": "Cash"}, "Amount must be a number"},
		{map[string]any{"dealerId": "d1", "amount": "0", "method": "Cash"}, "Amount must be at least 1"},
		{map[string]any{"dealerId": "d1", "amount": "10", "method": "Bitcoin"}, "Method must be one of Cash, BankTransfer, Card, Installment"},
	}
	for _, tt := range tests {
		err := s.Submit(ctx, tt.values)
		var vErr *view.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, tt.want, vErr.Message)

		m := s.Modal()
		assert.Equal(t, view.ModalCreate, m.State)
		assert.Equal(t, tt.want, m.Error)
	}
	assert.Empty(t, src.created, "validation failures never reach the API")
}

func TestScreenCreate(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	ctx := context.Background()

	require.NoError(t, s.OpenCreate())
	require.NoError(t, s.Submit(ctx, map[string]any{"dealerId": "d1", "amount": "2500000", "method": "Card"}))

	require.Len(t, src.created, 1)
	assert.Equal(t, map[string]any{"dealerId": "d1", "amount": json.Number("2500000"), "method": "Card"}, src.created[0])

	vm := s.View()
	assert.Equal(t, view.ModalClosed, vm.Modal.State)
	assert.Equal(t, view.AlertSuccess, vm.Alert.Kind)
	assert.Equal(t, "Payment created successfully", vm.Alert.Message)
	assert.Equal(t, 4, vm.Page.Total, "list is refetched after create")
}

func TestScreenCreateFailureStaysOpen(t *testing.T) {
	src := seededSource()
	src.mutErr = &client.APIError{StatusCode: 400, Message: "Dealer is suspended"}
	s := loadedScreen(t, paymentsConfig(), src)

	require.NoError(t, s.OpenCreate())
	err := s.Submit(context.Background(), map[string]any{"dealerId": "d1", "amount": "10", "method": "Cash"})
	require.Error(t, err)

	vm := s.View()
	assert.Equal(t, view.ModalCreate, vm.Modal.State)
	assert.Equal(t, "Dealer is suspended", vm.Modal.Error)
	assert.False(t, vm.Modal.Saving)
	assert.Equal(t, "Dealer is suspended", vm.Alert.Message)
	assert.Equal(t, "10", vm.Modal.Values["amount"], "entered values are kept")
}

func TestScreenEditNeverSendsImmutableFields(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	ctx := context.Background()

	require.NoError(t, s.OpenEdit(ctx, "p1"))
	vm := s.View()
	assert.Equal(t, view.ModalEdit, vm.Modal.State)
	assert.Equal(t, 1500000, vm.Modal.Values["amount"])
	assert.True(t, vm.Form[0].Disabled, "dealer is disabled when editing")

	require.NoError(t, s.Submit(ctx, map[string]any{"amount": "1600000", "dealerId": "d2"}))
	require.Len(t, src.updates, 1)
	assert.Equal(t, "p1", src.updates[0].ID)
	assert.Equal(t, http.MethodPatch, src.updates[0].Method)
	assert.NotContains(t, src.updates[0].Fields, "dealerId")
	assert.Equal(t, json.Number("1600000"), src.updates[0].Fields["amount"])
	assert.Equal(t, "Payment updated successfully", s.View().Alert.Message)
}

func TestScreenEditUsesConfiguredMethod(t *testing.T) {
	src := seededSource()
	cfg := paymentsConfig()
	cfg.UpdateMethod = http.MethodPut
	s := loadedScreen(t, cfg, src)

	require.NoError(t, s.OpenEdit(context.Background(), "p2"))
	require.NoError(t, s.Submit(context.Background(), nil))
	require.Len(t, src.updates, 1)
	assert.Equal(t, http.MethodPut, src.updates[0].Method)
}

func TestScreenViewFetchesDetail(t *testing.T) {
	src := seededSource()
	cfg := paymentsConfig()
	cfg.FetchDetail = true
	s := loadedScreen(t, cfg, src)

	src.lists["payments"][0]["note"] = "fresh"
	require.NoError(t, s.OpenView(context.Background(), "p1"))
	m := s.Modal()
	assert.Equal(t, view.ModalView, m.State)
	assert.False(t, m.Loading)
	assert.Equal(t, "fresh", m.Record.String("note"))

	src.getErr["payments/p2"] = &client.TransportError{Op: "GET /api/payments/p2", Err: errors.New("connection refused")}
	require.Error(t, s.OpenView(context.Background(), "p2"))
	m = s.Modal()
	assert.Equal(t, view.ModalView, m.State, "a failed detail fetch keeps the modal open")
	assert.False(t, m.Loading)
	assert.Equal(t, "Network error: connection refused", m.Error)
}

func TestScreenOneModalAtATime(t *testing.T) {
	s := loadedScreen(t, paymentsConfig(), seededSource())

	require.NoError(t, s.OpenCreate())
	require.NoError(t, s.OpenView(context.Background(), "p2"))
	m := s.Modal()
	assert.Equal(t, view.ModalView, m.State)
	assert.Equal(t, "p2", m.RecordID)

	assert.ErrorIs(t, s.Submit(context.Background(), nil), view.ErrModalState)
}

func TestScreenDelete(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	ctx := context.Background()

	require.ErrorIs(t, s.ConfirmDelete(ctx), view.ErrConfirmationRequired)

	require.NoError(t, s.OpenDelete("p1"))
	s.CloseModal()
	require.ErrorIs(t, s.ConfirmDelete(ctx), view.ErrConfirmationRequired)
	assert.Empty(t, src.deleted, "cancelling has no side effects")
	assert.Equal(t, 3, s.View().Page.Total)

	require.NoError(t, s.OpenDelete("p1"))
	require.NoError(t, s.ConfirmDelete(ctx))
	assert.Equal(t, []string{"p1"}, src.deleted)

	vm := s.View()
	assert.Equal(t, view.ModalClosed, vm.Modal.State)
	assert.Equal(t, 2, vm.Page.Total)
	assert.Equal(t, "Payment deleted successfully", vm.Alert.Message)

	require.ErrorIs(t, s.OpenDelete("p1"), view.ErrUnknownRecord)
}

func TestScreenDeleteFailureKeepsRow(t *testing.T) {
	src := seededSource()
	s := loadedScreen(t, paymentsConfig(), src)
	src.mutErr = &client.APIError{StatusCode: 409, Message: "Payment is referenced by an order"}

	require.NoError(t, s.OpenDelete("p2"))
	require.Error(t, s.ConfirmDelete(context.Background()))

	vm := s.View()
	assert.Equal(t, view.ModalDelete, vm.Modal.State)
	assert.Equal(t, "Payment is referenced by an order", vm.Modal.Error)
	assert.Equal(t, 3, vm.Page.Total)
}

func TestScreenReadOnly(t *testing.T) {
	cfg := paymentsConfig()
	cfg.ReadOnly = true
	s := loadedScreen(t, cfg, seededSource())

	assert.ErrorIs(t, s.OpenCreate(), view.ErrReadOnly)
	assert.ErrorIs(t, s.OpenEdit(context.Background(), "p1"), view.ErrReadOnly)
	assert.ErrorIs(t, s.OpenDelete("p1"), view.ErrReadOnly)
	assert.ErrorIs(t, s.RunAction(context.Background(), "p1", "mark-paid", true), view.ErrReadOnly)
	assert.NoError(t, s.OpenView(context.Background(), "p1"))
	assert.Empty(t, s.View().Form)
}

func TestScreenAlertExpires(t *testing.T) {
	s := view.NewScreen(paymentsConfig(), seededSource(), view.Options{AlertTTL: 20 * time.Millisecond})
	defer s.Close()

	require.NoError(t, s.OpenCreate())
	require.Error(t, s.Submit(context.Background(), map[string]any{}))
	require.NotNil(t, s.View().Alert)

	assert.Eventually(t, func() bool { return s.View().Alert == nil }, time.Second, 5*time.Millisecond)
}

func TestScreenLookupsResolvePerID(t *testing.T) {
	src := newFakeSource()
	src.set("users", domain.Record{"id": "1", "fullName": "Nguyễn Văn An"})
	src.set("audit-logs",
		domain.Record{"id": "a1", "userId": "1", "action": "CREATE"},
		domain.Record{"id": "a2", "userId": "2", "action": "DELETE"},
	)
	src.getErr["users/2"] = &client.APIError{StatusCode: 500, Message: "boom"}

	cfg := &view.Config{
		Name: "audit-logs", Title: "Audit Logs", Collection: "audit-logs", ReadOnly: true,
		Lookups: []view.LookupRef{{Name: "users", Collection: "users", Key: "userId", Field: "fullName", Placeholder: "Unknown user"}},
		Columns: []view.Column{view.Ref("userId", "User", "users", "Unknown user"), view.Text("action", "Action")},
	}
	s := loadedScreen(t, cfg, src)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Nguyễn Văn An", rows[0].Cells[0])
	assert.Equal(t, "Unknown user", rows[1].Cells[0])
}
