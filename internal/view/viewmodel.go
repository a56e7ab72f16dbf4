package view

import (
	"cmp"
	"slices"

	"github.com/johnwards/dealerhub/internal/domain"
)

// ViewModel is everything a client needs to draw a screen.
type ViewModel struct {
	Name      string         `json:"name"`
	Title     string         `json:"title"`
	Loading   bool           `json:"loading"`
	ReadOnly  bool           `json:"readOnly"`
	Columns   []ColumnHeader `json:"columns"`
	Page      Page[Row]      `json:"page"`
	PageSizes []int          `json:"pageSizes"`
	Criteria  Criteria       `json:"criteria"`
	Filters   []FilterView   `json:"filters"`
	DateRange bool           `json:"dateRange"`
	Summary   []StatusCount  `json:"summary,omitempty"`
	// Empty is the message shown in place of an empty table.
	Empty   string       `json:"empty,omitempty"`
	Alert   *Alert       `json:"alert,omitempty"`
	Modal   Modal        `json:"modal"`
	Form    []FormInput  `json:"form,omitempty"`
	Actions []ActionView `json:"actions,omitempty"`
	Exports []Format     `json:"exports"`
}

// ColumnHeader names one table column.
type ColumnHeader struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Option is one choice of a filter or select input.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterView is one filter control with its choices.
type FilterView struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Multi    bool     `json:"multi"`
	Options  []Option `json:"options"`
	Selected []string `json:"selected,omitempty"`
}

// StatusCount is one stat card.
type StatusCount struct {
	Status string `json:"status"`
	Badge  string `json:"badge"`
	Count  int    `json:"count"`
}

// FormInput is a form field with its resolved choices.
type FormInput struct {
	FormField
	Choices  []Option `json:"choices,omitempty"`
	Disabled bool     `json:"disabled"`
}

// ActionView is a row action button.
type ActionView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// View renders the current page of the screen.
func (s *Screen) View() ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rowsLocked()
	all := s.memo.all
	page := Paginate(rows, s.pageSize, s.page)
	s.page = page.Page

	vm := ViewModel{
		Name:      s.cfg.Name,
		Title:     s.cfg.Title,
		Loading:   s.loading,
		ReadOnly:  s.cfg.ReadOnly,
		Page:      page,
		PageSizes: PageSizes,
		Criteria:  s.criteria,
		DateRange: s.cfg.DateField != "",
		Summary:   s.summary(rows),
		Modal:     s.modal.clone(),
		Exports:   Formats,
	}
	if s.alert != nil {
		a := *s.alert
		vm.Alert = &a
	}
	if len(rows) == 0 && !(s.loading && !s.loaded) {
		vm.Empty = EmptyNoRecords
		if s.criteria.Active() {
			vm.Empty = EmptyNoMatches
		}
	}

	for _, col := range s.cfg.Columns {
		vm.Columns = append(vm.Columns, ColumnHeader{Key: col.Key, Label: col.Label})
	}
	for _, f := range s.cfg.Filters {
		vm.Filters = append(vm.Filters, FilterView{
			Key:      f.Key,
			Label:    f.Label,
			Multi:    f.Multi,
			Options:  s.filterOptions(f, all),
			Selected: selected(s.criteria.Fields[f.Key]),
		})
	}
	for _, a := range s.cfg.Actions {
		vm.Actions = append(vm.Actions, ActionView{Name: a.Name, Label: a.Label})
	}
	if !s.cfg.ReadOnly {
		editing := s.modal.State == ModalEdit
		for _, f := range s.cfg.Form {
			in := FormInput{FormField: f, Disabled: editing && f.Immutable}
			if f.OptionsRef != "" {
				in.Choices = refChoices(s.refs[f.OptionsRef])
			}
			vm.Form = append(vm.Form, in)
		}
	}
	return vm
}

func (s *Screen) filterOptions(f FilterDef, all []Row) []Option {
	values := f.Options
	if len(values) == 0 {
		seen := make(map[string]bool)
		for _, row := range all {
			if v := row.Values[f.Key]; v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		slices.Sort(values)
	}

	out := make([]Option, 0, len(values))
	for _, v := range values {
		label := v
		if f.OptionsRef != "" {
			label = s.refs.Lookup(f.OptionsRef, v, v)
		}
		out = append(out, Option{Value: v, Label: label})
	}
	return out
}

// summary counts rows per status: the status filter's order first, then
// any other status alphabetically.
func (s *Screen) summary(rows []Row) []StatusCount {
	counts := make(map[string]int)
	for _, row := range rows {
		if row.Status != "" {
			counts[row.Status]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	var order []string
	for _, f := range s.cfg.Filters {
		if f.Key == domain.KeyStatus {
			order = slices.Clone(f.Options)
		}
	}
	var rest []string
	for status := range counts {
		if !slices.Contains(order, status) {
			rest = append(rest, status)
		}
	}
	slices.Sort(rest)

	var out []StatusCount
	for _, status := range append(order, rest...) {
		if n := counts[status]; n > 0 {
			out = append(out, StatusCount{Status: status, Badge: s.cfg.badge(status), Count: n})
		}
	}
	return out
}

func refChoices(m RefMap) []Option {
	out := make([]Option, 0, len(m))
	for id, name := range m {
		out = append(out, Option{Value: id, Label: name})
	}
	slices.SortFunc(out, func(a, b Option) int {
		return cmp.Or(cmp.Compare(a.Label, b.Label), cmp.Compare(a.Value, b.Value))
	})
	return out
}
