package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// Envelope is the success response shape of the dealer API.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListData is the data payload of a list response.
type ListData struct {
	Items []any `json:"items"`
	Total int   `json:"total"`
}

// WriteData writes v wrapped in a success envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Envelope{Success: true, Data: v})
}

// WriteList writes items as {success, data: {items, total}}. total is the
// number of matches before limit and offset were applied.
func WriteList[T any](w http.ResponseWriter, items []T, total int) {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	WriteData(w, http.StatusOK, ListData{Items: out, Total: total})
}
