package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record or collection does not exist.
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a unique constraint is violated.
var ErrConflict = fmt.Errorf("conflict")

// ErrReadOnly is returned when mutating a read-only collection.
var ErrReadOnly = fmt.Errorf("collection is read-only")

// now returns the current UTC time formatted as an RFC 3339 timestamp with
// millisecond precision.
func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// likeEscaper escapes LIKE wildcards for patterns declaring ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns a LIKE pattern matching s, lower-cased, as a
// literal substring.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type actorKey struct{}

// WithActor returns a context carrying the id of the user performing a
// mutation. It is recorded on audit log entries.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user id stored by WithActor, or "" if none.
func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok {
		return id
	}
	return ""
}

// Value kinds stored alongside record values so JSON types round-trip.
const (
	kindString = "string"
	kindNumber = "number"
	kindBool   = "bool"
	kindNull   = "null"
	kindJSON   = "json"
)

// encodeValue flattens a JSON value into a (kind, text) pair. Text forms of
// strings, numbers and booleans are stored verbatim so they can be filtered
// with plain SQL comparisons.
func encodeValue(v any) (kind, text string, err error) {
	switch t := v.(type) {
	case nil:
		return kindNull, "", nil
	case string:
		return kindString, t, nil
	case json.Number:
		return kindNumber, t.String(), nil
	case float64, float32, int, int64, int32:
		return kindNumber, fmt.Sprint(t), nil
	case bool:
		if t {
			return kindBool, "true", nil
		}
		return kindBool, "false", nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", "", fmt.Errorf("encode value: %w", err)
		}
		return kindJSON, string(b), nil
	}
}

func decodeValue(kind, text string) any {
	switch kind {
	case kindNull:
		return nil
	case kindNumber:
		return json.Number(text)
	case kindBool:
		return text == "true"
	case kindJSON:
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return text
		}
		return v
	default:
		return text
	}
}
