package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/dealerhub/internal/api"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	data := map[string]string{"key": "value"}

	api.WriteJSON(rec, http.StatusOK, data)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var result map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("key = %q, want %q", result["key"], "value")
	}
}

func TestWriteJSONStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteJSON(rec, http.StatusCreated, map[string]int{"id": 1})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestWriteList(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteList(rec, []map[string]string{{"id": "1"}, {"id": "2"}}, 5)

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Items []map[string]string `json:"items"`
			Total int                 `json:"total"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Error("success = false, want true")
	}
	if len(result.Data.Items) != 2 || result.Data.Items[1]["id"] != "2" {
		t.Errorf("items = %v", result.Data.Items)
	}
	if result.Data.Total != 5 {
		t.Errorf("total = %d, want 5", result.Data.Total)
	}
}

func TestWriteListEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteList[string](rec, nil, 0)

	if got := rec.Body.String(); got != "{\"success\":true,\"data\":{\"items\":[],\"total\":0}}\n" {
		t.Errorf("body = %q", got)
	}
}
