package view

import (
	"slices"
	"strings"
	"time"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
)

// Row is a record rendered for display. Cells line up with Config.Columns.
type Row struct {
	ID      string        `json:"id"`
	Record  domain.Record `json:"record"`
	Status  string        `json:"status,omitempty"`
	Badge   string        `json:"badge,omitempty"`
	Cells   []string      `json:"cells"`
	Actions []string      `json:"actions,omitempty"`

	// Values holds the compared value of each filter, by filter key.
	Values map[string]string `json:"-"`
	// Search holds the strings the search box matches against.
	Search []string `json:"-"`
	// Time is the value of Config.DateField; zero when absent.
	Time time.Time `json:"-"`
}

// BuildRows renders records with cfg at time now.
func BuildRows(cfg *Config, records []domain.Record, refs Refs, now time.Time) []Row {
	env := Env{Refs: refs, Now: now}
	env.status = func(r domain.Record) string { return cfg.status(r, now) }

	searchCols := make([]bool, len(cfg.Columns))
	for i, col := range cfg.Columns {
		searchCols[i] = len(cfg.Search) == 0 || slices.Contains(cfg.Search, col.Key)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{
			ID:     rec.ID(),
			Record: rec,
			Status: env.Status(rec),
			Cells:  make([]string, len(cfg.Columns)),
			Values: make(map[string]string, len(cfg.Filters)),
			Search: []string{rec.ID()},
		}
		row.Badge = cfg.badge(row.Status)

		for i, col := range cfg.Columns {
			row.Cells[i] = col.Value(rec, env)
			if searchCols[i] {
				row.Search = append(row.Search, row.Cells[i])
			}
		}
		for _, f := range cfg.Filters {
			row.Values[f.Key] = f.value(rec, env)
		}
		if cfg.DateField != "" {
			if t, ok := format.ParseDisplayDate(rec.String(cfg.DateField)); ok {
				row.Time = t
			}
		}
		for _, a := range cfg.Actions {
			if a.allowed(row.Status) {
				row.Actions = append(row.Actions, a.Name)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Criteria is the active search and filter state of a screen.
type Criteria struct {
	Search string `json:"search"`
	// Fields holds the selected values per filter key. An empty list, or a
	// list of empty strings, does not constrain.
	Fields map[string][]string `json:"fields,omitempty"`
	// From and To bound Config.DateField by whole days, as 2006-01-02.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Active reports whether any criterion constrains the result.
func (c Criteria) Active() bool {
	if strings.TrimSpace(c.Search) != "" || c.From != "" || c.To != "" {
		return true
	}
	for _, vals := range c.Fields {
		if len(selected(vals)) > 0 {
			return true
		}
	}
	return false
}

// Key is a canonical encoding of the criteria, equal for equal criteria.
func (c Criteria) Key() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(c.Search)))
	b.WriteString("\x00")
	b.WriteString(c.From)
	b.WriteString("\x00")
	b.WriteString(c.To)

	keys := make([]string, 0, len(c.Fields))
	for k, vals := range c.Fields {
		if len(selected(vals)) > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		vals := selected(c.Fields[k])
		slices.Sort(vals)
		b.WriteString("\x00")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(vals, "\x01"))
	}
	return b.String()
}

// Window returns the inclusive bounds of the date range in the display time
// zone. A zero bound is open.
func (c Criteria) Window() (from, to time.Time, err error) {
	if c.From != "" {
		from, err = time.ParseInLocation(time.DateOnly, c.From, format.Location)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Field: "from", Message: "From date is invalid"}
		}
	}
	if c.To != "" {
		to, err = time.ParseInLocation(time.DateOnly, c.To, format.Location)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Field: "to", Message: "To date is invalid"}
		}
		to = to.Add(24*time.Hour - time.Millisecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "to", Message: "To date must not be before From date"}
	}
	return from, to, nil
}

// Filter returns the rows matching every criterion, in their original
// order. The search term matches any search string; filters combine with
// AND, and the values of one filter with OR. An invalid date range does not
// constrain.
func Filter(rows []Row, c Criteria) []Row {
	term := strings.ToLower(strings.TrimSpace(c.Search))
	from, to, err := c.Window()
	if err != nil {
		from, to = time.Time{}, time.Time{}
	}

	fields := make(map[string][]string, len(c.Fields))
	for k, vals := range c.Fields {
		if sel := selected(vals); len(sel) > 0 {
			fields[k] = sel
		}
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if term != "" && !matchesSearch(row, term) {
			continue
		}
		if !matchesFields(row, fields) {
			continue
		}
		if !from.IsZero() && (row.Time.IsZero() || row.Time.Before(from)) {
			continue
		}
		if !to.IsZero() && (row.Time.IsZero() || row.Time.After(to)) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesSearch(row Row, term string) bool {
	for _, s := range row.Search {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func matchesFields(row Row, fields map[string][]string) bool {
	for k, vals := range fields {
		if !slices.Contains(vals, row.Values[k]) {
			return false
		}
	}
	return true
}

func selected(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
