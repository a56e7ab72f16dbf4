package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/johnwards/dealerhub/internal/domain"
)

// ValidationError reports input the record store refuses to persist.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// reservedKeys are maintained by the store and ignored on input.
var reservedKeys = []string{domain.KeyID, domain.KeyCreatedAt, domain.KeyUpdatedAt}

// sanitize drops reserved keys from user input.
func sanitize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if slices.Contains(reservedKeys, k) {
			continue
		}
		out[k] = v
	}
	return out
}

// validateCreate checks a full record against the collection's field
// definitions. Unknown fields are allowed.
func validateCreate(c *domain.Collection, fields map[string]any) error {
	for _, f := range c.Fields {
		v, ok := fields[f.Name]
		if f.Required && (!ok || isBlank(v)) {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s is required", f.Label)}
		}
		if ok {
			if err := validateValue(f, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateUpdate checks a partial update. Immutable fields may be resent
// unchanged but never modified. When replace is set the update must also
// satisfy required fields.
func validateUpdate(c *domain.Collection, existing domain.Record, fields map[string]any, replace bool) error {
	for _, f := range c.Fields {
		v, ok := fields[f.Name]
		if f.Immutable && ok && domain.Stringify(v) != existing.String(f.Name) {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s cannot be changed", f.Label)}
		}
		if replace && f.Required && !f.Immutable && (!ok || isBlank(v)) {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s is required", f.Label)}
		}
		if !replace && f.Required && ok && isBlank(v) {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s is required", f.Label)}
		}
		if ok {
			if err := validateValue(f, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateValue(f domain.FieldDef, v any) error {
	if isBlank(v) {
		return nil
	}
	s := domain.Stringify(v)
	switch f.Type {
	case domain.FieldNumber:
		if _, err := decimal.NewFromString(strings.TrimSpace(s)); err != nil {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("Value %q is not valid for %s", s, f.Label)}
		}
	case domain.FieldDate, domain.FieldDateTime:
		if _, ok := domain.ParseTime(s); !ok {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("Value %q is not a valid date for %s", s, f.Label)}
		}
	case domain.FieldEnum:
		if len(f.Options) > 0 && !slices.Contains(f.Options, s) {
			return &ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf("Value %q is not valid for %s; allowed: %s", s, f.Label, strings.Join(f.Options, ", ")),
			}
		}
	}
	return nil
}

// normalizeNumbers stores number fields sent as text as numbers, so
// "87.125" is kept as a value rather than a display string. It runs after
// validation.
func normalizeNumbers(c *domain.Collection, fields map[string]any) {
	for _, f := range c.Fields {
		if f.Type != domain.FieldNumber {
			continue
		}
		s, ok := fields[f.Name].(string)
		if !ok || isBlank(s) {
			continue
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			fields[f.Name] = json.Number(d.String())
		}
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
