package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/johnwards/dealerhub/internal/domain"
)

func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrapList extracts the record array from any of the envelope shapes the
// dealer API has used, in priority order:
//
//	{data: {data: {items: [...]}}}
//	{data: {items: [...]}}
//	{items: [...]}
//	{data: [...]}
//	[...]
//
// Anything else is an empty list.
func unwrapList(body []byte) ([]domain.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []domain.Record{}, nil
	}
	v, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	candidates := []any{
		dig(v, "data", "data", "items"),
		dig(v, "data", "items"),
		dig(v, "items"),
		dig(v, "data"),
		v,
	}
	for _, c := range candidates {
		if arr, ok := c.([]any); ok {
			return toRecords(arr), nil
		}
	}
	return []domain.Record{}, nil
}

// unwrapRecord extracts one record from {data: {...}} or a bare object.
func unwrapRecord(body []byte) (domain.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Record{}, nil
	}
	v, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode record: unexpected %T", v)
	}
	if data, ok := obj["data"].(map[string]any); ok {
		if _, isEnvelope := obj["success"]; isEnvelope || len(obj) == 1 {
			obj = data
		}
	}
	return normalize(obj), nil
}

// serverMessage returns the message of an error body, if it has one.
func serverMessage(body []byte) string {
	v, err := decode(body)
	if err != nil {
		return ""
	}
	if msg, ok := dig(v, "message").(string); ok {
		return msg
	}
	if msg, ok := dig(v, "error").(string); ok {
		return msg
	}
	return ""
}

// envelopeFailure reports a 2xx body of the form {success: false, message}.
func envelopeFailure(body []byte) (bool, string) {
	v, err := decode(body)
	if err != nil {
		return false, ""
	}
	if success, ok := dig(v, "success").(bool); ok && !success {
		msg, _ := dig(v, "message").(string)
		return true, msg
	}
	return false, ""
}

func dig(v any, path ...string) any {
	for _, key := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func toRecords(arr []any) []domain.Record {
	out := make([]domain.Record, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, normalize(obj))
		}
	}
	return out
}

// normalize makes ids strings whatever JSON type the server used.
func normalize(obj map[string]any) domain.Record {
	rec := domain.Record(obj)
	if rec.Has(domain.KeyID) {
		rec[domain.KeyID] = rec.ID()
	}
	return rec
}
