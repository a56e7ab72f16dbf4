package exports_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/api/exports"
	"github.com/johnwards/dealerhub/internal/api/records"
	"github.com/johnwards/dealerhub/internal/database"
	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/seed"
	"github.com/johnwards/dealerhub/internal/store"
	"github.com/johnwards/dealerhub/internal/testhelpers"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := seed.Seed(ctx, db, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := store.New(db)
	m := metrics.New("test")
	mux := http.NewServeMux()
	exports.RegisterRoutes(mux, s, m)
	records.RegisterRoutes(mux, s, m)

	srv := httptest.NewServer(api.Chain(mux, api.RequestID(), api.Actor()))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-Id", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readCSV(t *testing.T, resp *http.Response) [][]string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body, ok := bytes.CutPrefix(body, []byte("\xef\xbb\xbf"))
	if !ok {
		t.Fatal("expected a UTF-8 BOM")
	}
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestAuditLogExportCSV(t *testing.T) {
	srv := setupServer(t)

	resp := get(t, srv.URL+"/api/audit-logs/export?format=csv&entityType=dealers")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename=audit-logs-") || !strings.HasSuffix(cd, ".csv") {
		t.Errorf("unexpected content disposition %q", cd)
	}

	rows := readCSV(t, resp)
	want := []string{"Time", "User", "Action", "Entity", "Entity ID", "Details"}
	if strings.Join(rows[0], "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if len(rows) != 4 {
		t.Fatalf("expected 3 dealer entries, got %d", len(rows)-1)
	}
	for _, row := range rows[1:] {
		if row[1] != "Nguyễn Văn An" {
			t.Errorf("expected user name to be resolved, got %q", row[1])
		}
		if row[2] != "CREATE" || row[3] != "dealers" {
			t.Errorf("unexpected entry %v", row)
		}
	}
}

func TestAuditLogExportSearchesDisplayedCells(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, rows [][]string)
	}{
		{"user name", "q=Nguy%E1%BB%85n", func(t *testing.T, rows [][]string) {
			if len(rows) < 3 {
				t.Fatalf("expected entries by the admin, got %d", len(rows))
			}
			for _, row := range rows {
				if !strings.Contains(strings.ToLower(strings.Join(row, " ")), "nguyễn") {
					t.Errorf("row does not mention the search: %v", row)
				}
			}
		}},
		{"placeholder", "q=unknown+user", func(t *testing.T, rows [][]string) {
			if len(rows) == 0 {
				t.Fatal("expected the seed entry without a known user")
			}
			for _, row := range rows {
				if row[1] != "Unknown user" {
					t.Errorf("expected the placeholder, got %v", row)
				}
			}
		}},
		{"display date", "from=2020-01-01", func(t *testing.T, rows [][]string) {
			if len(rows) == 0 {
				t.Fatal("expected entries after 2020")
			}
		}},
		{"old window", "from=2020-01-01&to=2020-12-31", func(t *testing.T, rows [][]string) {
			if len(rows) != 0 {
				t.Errorf("expected no entries in 2020, got %d", len(rows))
			}
		}},
		{"user filter", "userId=1&action=CREATE", func(t *testing.T, rows [][]string) {
			if len(rows) == 0 {
				t.Fatal("expected entries by the admin")
			}
			for _, row := range rows {
				if row[1] != "Nguyễn Văn An" || row[2] != "CREATE" {
					t.Errorf("unexpected entry %v", row)
				}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv.URL+"/api/audit-logs/export?format=csv&"+tt.query)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			tt.check(t, readCSV(t, resp)[1:])
		})
	}
}

func TestAuditLogExportIsRecorded(t *testing.T) {
	srv := setupServer(t)

	resp := get(t, srv.URL+"/api/audit-logs/export?format=excel&action=DELETE")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Error("expected an xlsx archive")
	}
	id := resp.Header.Get("X-Export-Id")
	if id == "" {
		t.Fatal("expected X-Export-Id header")
	}

	resp = get(t, srv.URL+"/api/exports/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Status      string            `json:"status"`
			Format      string            `json:"format"`
			Collection  string            `json:"collection"`
			Filters     map[string]string `json:"filters"`
			RecordCount int               `json:"recordCount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data.Status != store.ExportComplete {
		t.Errorf("expected a complete export, got %+v", env)
	}
	if env.Data.Format != "excel" || env.Data.Collection != "audit-logs" {
		t.Errorf("unexpected export %+v", env.Data)
	}
	if env.Data.Filters["action"] != "DELETE" {
		t.Errorf("expected filters to be kept, got %v", env.Data.Filters)
	}
	if env.Data.RecordCount != 0 {
		t.Errorf("expected no DELETE entries, got %d", env.Data.RecordCount)
	}

	// The export itself is audited.
	resp = get(t, srv.URL+"/api/audit-logs/export?action=EXPORT")
	rows := readCSV(t, resp)
	if len(rows) != 2 {
		t.Fatalf("expected one EXPORT entry, got %d", len(rows)-1)
	}
	if rows[1][1] != "Nguyễn Văn An" || rows[1][4] != id {
		t.Errorf("unexpected export entry %v", rows[1])
	}
}

func TestAuditLogExportRejectsClientFormats(t *testing.T) {
	srv := setupServer(t)

	for _, f := range []string{"print", "copy", "docx"} {
		resp := get(t, srv.URL+"/api/audit-logs/export?format="+f)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("format %s: expected 400, got %d", f, resp.StatusCode)
		}
	}
}

func TestAuditLogExportRejectsBadDates(t *testing.T) {
	srv := setupServer(t)

	resp := get(t, srv.URL+"/api/audit-logs/export?format=pdf&from=yesterday")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetExportNotFound(t *testing.T) {
	srv := setupServer(t)

	resp := get(t, srv.URL+"/api/exports/999")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
