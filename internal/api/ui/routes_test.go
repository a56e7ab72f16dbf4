package ui_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnwards/dealerhub/internal/api/ui"
)

func TestUIServesIndex(t *testing.T) {
	mux := http.NewServeMux()
	ui.RegisterRoutes(mux)

	for _, path := range []string{"/_ui/", "/_ui/index.html", "/_ui/dealers"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: unexpected content type %q", path, ct)
		}
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "<title>DealerHub</title>") {
			t.Errorf("%s: expected the console page", path)
		}
	}
}
