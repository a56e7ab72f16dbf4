package view

import (
	"net/http"
	"time"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
)

// Config declares one entity screen.
type Config struct {
	// Name is the screen key used in console URLs.
	Name  string
	Title string
	// Singular labels alerts, e.g. "Payment created successfully".
	Singular   string
	Collection string

	References []Reference
	Lookups    []LookupRef

	Columns []Column
	Filters []FilterDef
	// Search lists the column keys matched by the search box. Empty means
	// every column.
	Search []string
	// DateField is the timestamp the date range bounds. Empty disables the
	// date range.
	DateField string

	// Status derives a record's status. Nil reads the status field.
	Status func(rec domain.Record, now time.Time) string
	// Badge maps a status to a badge variant. Nil renders every status with
	// the neutral variant.
	Badge func(status string) string

	Form []FormField
	// Defaults pre-fill the create form. Keys outside the form are sent
	// with every create.
	Defaults map[string]any
	// Validate runs after the per-field checks.
	Validate func(values map[string]any) error
	// Derive computes extra fields sent with a valid submission.
	Derive func(values map[string]any) map[string]any
	// FetchDetail re-reads a record by id before the edit and view modals
	// show it.
	FetchDetail bool
	// UpdateMethod is PATCH (default) or PUT.
	UpdateMethod string
	ReadOnly     bool

	Actions []Action

	// ServerExport, when set, is the API path that produces csv, excel and
	// pdf exports for this screen.
	ServerExport string
}

func (c *Config) updateMethod() string {
	if c.UpdateMethod == "" {
		return http.MethodPatch
	}
	return c.UpdateMethod
}

func (c *Config) singular() string {
	if c.Singular != "" {
		return c.Singular
	}
	return "Record"
}

func (c *Config) status(rec domain.Record, now time.Time) string {
	if c.Status != nil {
		return c.Status(rec, now)
	}
	return rec.String(domain.KeyStatus)
}

func (c *Config) badge(status string) string {
	if c.Badge != nil {
		return c.Badge(status)
	}
	return BadgeNeutral
}

func (c *Config) action(name string) (Action, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// BadgeNeutral is the variant for statuses a screen does not know.
const BadgeNeutral = "secondary"

// Badges returns a Badge func backed by a fixed table.
func Badges(variants map[string]string) func(string) string {
	return func(status string) string {
		if v, ok := variants[status]; ok {
			return v
		}
		return BadgeNeutral
	}
}

// Env is what a column sees while rendering one record.
type Env struct {
	Refs   Refs
	Now    time.Time
	status func(domain.Record) string
}

// Status returns the derived status of rec.
func (e Env) Status(rec domain.Record) string {
	if e.status == nil {
		return rec.String(domain.KeyStatus)
	}
	return e.status(rec)
}

// Column is one table column. The same cell text is used by the table, the
// search box and every export format.
type Column struct {
	Key   string
	Label string
	Value func(rec domain.Record, env Env) string
}

// Text renders a field as is.
func Text(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		if s := r.String(key); s != "" {
			return s
		}
		return format.NotAvailable
	}}
}

// ID renders the record id as "#id".
func ID(label string) Column {
	return Column{Key: domain.KeyID, Label: label, Value: func(r domain.Record, _ Env) string {
		return "#" + r.ID()
	}}
}

// Ref renders a foreign key as the referenced record's name.
func Ref(key, label, refName, fallback string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, env Env) string {
		return env.Refs.Lookup(refName, r.String(key), fallback)
	}}
}

// Money renders an amount in dong.
func Money(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		return format.Currency(r[key])
	}}
}

// Number renders a grouped number.
func Number(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		return format.Number(r[key])
	}}
}

// Percent renders a rate.
func Percent(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		return format.Percent(r[key])
	}}
}

// Date renders a date as dd/mm/yyyy.
func Date(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		return format.Date(r[key])
	}}
}

// DateTime renders a timestamp as dd/mm/yyyy hh:mm.
func DateTime(key, label string) Column {
	return Column{Key: key, Label: label, Value: func(r domain.Record, _ Env) string {
		return format.DateTime(r[key])
	}}
}

// StatusColumn renders the derived status.
func StatusColumn(label string) Column {
	return Column{Key: domain.KeyStatus, Label: label, Value: func(r domain.Record, env Env) string {
		if s := env.Status(r); s != "" {
			return s
		}
		return format.NotAvailable
	}}
}

// FilterDef is one filter control.
type FilterDef struct {
	Key   string
	Label string
	// Multi allows several selected values, matched with OR.
	Multi bool
	// Value extracts the compared value. Nil reads the field named Key.
	Value func(rec domain.Record, env Env) string
	// Options fixes the offered values. Empty offers the distinct values of
	// the loaded records.
	Options []string
	// OptionsRef labels the offered values with names from a reference.
	OptionsRef string
}

func (f FilterDef) value(rec domain.Record, env Env) string {
	if f.Value != nil {
		return f.Value(rec, env)
	}
	return rec.String(f.Key)
}

// FieldFilter filters on a raw field.
func FieldFilter(key, label string, multi bool) FilterDef {
	return FilterDef{Key: key, Label: label, Multi: multi}
}

// StatusFilter filters on the derived status.
func StatusFilter(label string, options ...string) FilterDef {
	return FilterDef{
		Key: domain.KeyStatus, Label: label, Options: options,
		Value: func(r domain.Record, env Env) string { return env.Status(r) },
	}
}

// Form field input types.
const (
	InputText     = "text"
	InputTextArea = "textarea"
	InputNumber   = "number"
	InputDate     = "date"
	InputSelect   = "select"
)

// FormField is one input of the create/edit form.
type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Options  []string `json:"options,omitempty"`
	// OptionsRef offers the ids of a reference collection.
	OptionsRef string `json:"optionsRef,omitempty"`
	// Immutable fields are shown disabled when editing and never sent.
	Immutable bool `json:"immutable"`
	// After names a date field this one may not precede.
	After string `json:"after,omitempty"`
}

// Bound returns a pointer to v, for FormField.Min and Max.
func Bound(v float64) *float64 { return &v }

// Action is a single-field status transition offered on a row.
type Action struct {
	Name  string
	Label string
	// Field is patched to To. Empty means the status field.
	Field string
	To    string
	// From lists the statuses the action is offered from.
	From []string
	// Set adds fields to the patch, e.g. a payment timestamp.
	Set func(now time.Time) map[string]any
}

func (a Action) allowed(status string) bool {
	for _, s := range a.From {
		if s == status {
			return true
		}
	}
	return false
}

func (a Action) field() string {
	if a.Field == "" {
		return domain.KeyStatus
	}
	return a.Field
}
