package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one entity of a collection as it travels over the wire: an id,
// domain fields, optional status and timestamps, and foreign-key ids.
type Record map[string]any

// Well-known record keys.
const (
	KeyID        = "id"
	KeyStatus    = "status"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// ID returns the record id as a string. Numeric ids are formatted without a
// fractional part.
func (r Record) ID() string {
	return r.String(KeyID)
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the value at key rendered as a string. Missing and nil
// values yield "".
func (r Record) String(key string) string {
	return Stringify(r[key])
}

// Float returns the numeric value at key. ok is false when the value is
// missing or not numeric.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Decimal returns the value at key as an exact decimal, used for money.
func (r Record) Decimal(key string) (decimal.Decimal, bool) {
	switch v := r[key].(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

// Time parses the value at key as a timestamp. Both RFC 3339 datetimes and
// plain dates (2006-01-02) are accepted.
func (r Record) Time(key string) (time.Time, bool) {
	return ParseTime(r.String(key))
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stringify renders a JSON-ish value as display text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses s using the layouts records carry.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
