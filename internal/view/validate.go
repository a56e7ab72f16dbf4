package view

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
)

// Validate checks values against the form: required fields, numbers and
// their bounds, option membership and date ordering. It stops at the first
// failure, in form order.
func Validate(form []FormField, values map[string]any) error {
	for _, f := range form {
		v, present := values[f.Name]
		s := strings.TrimSpace(domain.Stringify(v))
		if !present || v == nil || s == "" {
			if f.Required {
				return &ValidationError{Field: f.Name, Message: f.Label + " is required"}
			}
			continue
		}

		switch f.Type {
		case InputNumber:
			d, err := decimal.NewFromString(s)
			if err != nil {
				return &ValidationError{Field: f.Name, Message: f.Label + " must be a number"}
			}
			if f.Min != nil && d.LessThan(decimal.NewFromFloat(*f.Min)) {
				return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s must be at least %s", f.Label, bound(*f.Min))}
			}
			if f.Max != nil && d.GreaterThan(decimal.NewFromFloat(*f.Max)) {
				return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s must be at most %s", f.Label, bound(*f.Max))}
			}
		case InputDate:
			t, ok := domain.ParseTime(s)
			if !ok {
				return &ValidationError{Field: f.Name, Message: f.Label + " must be a date"}
			}
			if f.After != "" {
				if other, ok := domain.ParseTime(domain.Stringify(values[f.After])); ok && t.Before(other) {
					return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s must not be before %s", f.Label, labelOf(form, f.After))}
				}
			}
		case InputSelect:
			if len(f.Options) > 0 && !slices.Contains(f.Options, s) {
				return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s must be one of %s", f.Label, strings.Join(f.Options, ", "))}
			}
		}
	}
	return nil
}

// Defaults returns the initial values of a create form. Required dates
// default to today in the display time zone.
func Defaults(cfg *Config, now time.Time) map[string]any {
	out := make(map[string]any, len(cfg.Form))
	for _, f := range cfg.Form {
		out[f.Name] = ""
	}
	for k, v := range cfg.Defaults {
		out[k] = v
	}
	for _, f := range cfg.Form {
		if f.Type == InputDate && f.Required && out[f.Name] == "" {
			out[f.Name] = now.In(format.Location).Format(time.DateOnly)
		}
	}
	return out
}

// formValues keeps the form's fields of rec, for pre-populating the edit form.
func formValues(form []FormField, rec domain.Record) map[string]any {
	out := make(map[string]any, len(form))
	for _, f := range form {
		v := rec[f.Name]
		if f.Type == InputDate {
			if t, ok := format.ParseDisplayDate(rec.String(f.Name)); ok {
				v = t.Format(time.DateOnly)
			}
		}
		if v == nil {
			v = ""
		}
		out[f.Name] = v
	}
	return out
}

// payload keeps the values the form declares, dropping immutable fields
// when editing and blank optional ones.
func payload(form []FormField, values map[string]any, editing bool) map[string]any {
	out := make(map[string]any, len(form))
	for _, f := range form {
		if editing && f.Immutable {
			continue
		}
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(domain.Stringify(v))
		if s == "" {
			continue
		}
		if f.Type == InputNumber {
			if d, err := decimal.NewFromString(s); err == nil {
				out[f.Name] = json.Number(d.String())
				continue
			}
		}
		out[f.Name] = v
	}
	return out
}

func hasField(form []FormField, name string) bool {
	return slices.ContainsFunc(form, func(f FormField) bool { return f.Name == name })
}

func labelOf(form []FormField, name string) string {
	for _, f := range form {
		if f.Name == name {
			return f.Label
		}
	}
	return name
}

func bound(v float64) string {
	return decimal.NewFromFloat(v).String()
}
