package view_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/view"
)

func ids(rows []view.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func seededRows(t *testing.T) []view.Row {
	t.Helper()
	refs := view.Refs{"dealers": view.RefMap{"d1": "VinEV Hà Nội", "d2": "VinEV Sài Gòn"}}
	src := seededSource()
	return view.BuildRows(paymentsConfig(), src.lists["payments"], refs, fixedNow)
}

func TestBuildRowsRendersCells(t *testing.T) {
	rows := seededRows(t)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"#p1", "VinEV Hà Nội", "1.500.000 ₫", "Cash", "N/A", "Pending"}, rows[0].Cells)
	assert.Equal(t, "warning", rows[0].Badge)
	assert.Equal(t, []string{"mark-paid"}, rows[0].Actions)
	assert.Empty(t, rows[1].Actions)
}

func TestBuildRowsResolverMiss(t *testing.T) {
	rows := seededRows(t)
	assert.Equal(t, "N/A", rows[2].Cells[1], "unknown dealer degrades to a placeholder")
	assert.Equal(t, view.BadgeNeutral, rows[2].Badge, "unknown status gets the neutral badge")
}

func TestFilterSearch(t *testing.T) {
	rows := seededRows(t)

	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"p1", "p2", "p3"}},
		{"hà nội", []string{"p1"}},
		{"SÀI", []string{"p2"}},
		{"#p3", []string{"p3"}},
		{"2.000.000", []string{"p2"}},
		{"cash", []string{"p1", "p3"}},
		{"05/10/2026", []string{"p2"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := view.Filter(rows, view.Criteria{Search: tt.search})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterFields(t *testing.T) {
	rows := seededRows(t)

	got := view.Filter(rows, view.Criteria{Fields: map[string][]string{"status": {""}}})
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(got), "empty value does not constrain")

	got = view.Filter(rows, view.Criteria{Fields: map[string][]string{"method": {"Cash", "Card"}}})
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(got), "values of one filter are ORed")

	got = view.Filter(rows, view.Criteria{Fields: map[string][]string{"method": {"Cash"}, "status": {"Pending"}}})
	assert.Equal(t, []string{"p1"}, ids(got), "filters are ANDed")

	got = view.Filter(rows, view.Criteria{Search: "sài", Fields: map[string][]string{"method": {"Cash"}}})
	assert.Empty(t, got, "search is ANDed with filters")
}

func TestFilterDateWindowIsInclusive(t *testing.T) {
	cfg := &view.Config{
		Columns:   []view.Column{view.ID("ID")},
		DateField: domain.KeyCreatedAt,
	}
	records := []domain.Record{
		{"id": "before", "createdAt": "2026-09-30T16:59:59.999Z"},
		{"id": "start", "createdAt": "2026-09-30T17:00:00.000Z"}, // 00:00 ICT on 1 Oct
		{"id": "end", "createdAt": "2026-10-01T16:59:59.999Z"},   // 23:59:59.999 ICT
		{"id": "after", "createdAt": "2026-10-01T17:00:00.000Z"},
		{"id": "undated"},
	}
	rows := view.BuildRows(cfg, records, nil, fixedNow)

	got := view.Filter(rows, view.Criteria{From: "2026-10-01", To: "2026-10-01"})
	assert.Equal(t, []string{"start", "end"}, ids(got))

	got = view.Filter(rows, view.Criteria{From: "2026-10-01"})
	assert.Equal(t, []string{"start", "end", "after"}, ids(got))

	got = view.Filter(rows, view.Criteria{To: "2026-09-30"})
	assert.Equal(t, []string{"before"}, ids(got))
}

func TestCriteriaWindowRejectsBadRanges(t *testing.T) {
	_, _, err := view.Criteria{From: "01/10/2026"}.Window()
	var vErr *view.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "from", vErr.Field)

	_, _, err = view.Criteria{From: "2026-10-02", To: "2026-10-01"}.Window()
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "To date must not be before From date", vErr.Message)
}

func TestCriteriaKeyIsCanonical(t *testing.T) {
	a := view.Criteria{Search: " Cash ", Fields: map[string][]string{"method": {"Card", "Cash"}, "status": {""}}}
	b := view.Criteria{Search: "cash", Fields: map[string][]string{"method": {"Cash", "Card"}}}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), view.Criteria{}.Key())

	assert.False(t, view.Criteria{Fields: map[string][]string{"status": {"", " "}}}.Active())
	assert.True(t, a.Active())
}

// Adding criteria never adds matches: filter(R, F1 ∪ F2) ⊆ filter(R, F1) ∩ filter(R, F2).
func TestFilterConjunction(t *testing.T) {
	cfg := &view.Config{
		Columns: []view.Column{view.ID("ID"), view.Text("region", "Region"), view.StatusColumn("Status")},
		Filters: []view.FilterDef{
			view.FieldFilter("region", "Region", true),
			view.StatusFilter("Status"),
		},
		DateField: domain.KeyCreatedAt,
	}
	regions := []string{"North", "South", "Central"}
	statuses := []string{"Active", "Inactive", "Suspended", ""}
	var records []domain.Record
	for i := range 40 {
		records = append(records, domain.Record{
			"id":        fmt.Sprint(i),
			"region":    regions[i%len(regions)],
			"status":    statuses[i%len(statuses)],
			"createdAt": fmt.Sprintf("2026-10-%02dT05:00:00Z", 1+i%20),
		})
	}
	rows := view.BuildRows(cfg, records, nil, fixedNow)

	criteria := []view.Criteria{
		{},
		{Search: "north"},
		{Search: "1"},
		{Fields: map[string][]string{"region": {"South", "Central"}}},
		{Fields: map[string][]string{"status": {"Active"}}},
		{From: "2026-10-05"},
		{To: "2026-10-12"},
	}
	union := func(a, b view.Criteria) view.Criteria {
		out := view.Criteria{Search: a.Search, From: a.From, To: a.To, Fields: map[string][]string{}}
		if out.Search == "" {
			out.Search = b.Search
		}
		if out.From == "" {
			out.From = b.From
		}
		if out.To == "" {
			out.To = b.To
		}
		for _, src := range []view.Criteria{a, b} {
			for k, v := range src.Fields {
				out.Fields[k] = v
			}
		}
		return out
	}

	for i, f1 := range criteria {
		for j, f2 := range criteria {
			if f1.Search != "" && f2.Search != "" && i != j {
				continue // one search box
			}
			both := view.Filter(rows, union(f1, f2))
			left := toSet(view.Filter(rows, f1))
			right := toSet(view.Filter(rows, f2))
			for _, r := range both {
				assert.True(t, left[r.ID] && right[r.ID], "criteria %d+%d admitted %s", i, j, r.ID)
			}
		}
	}
}

func toSet(rows []view.Row) map[string]bool {
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.ID] = true
	}
	return out
}
