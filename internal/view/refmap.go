package view

import "github.com/johnwards/dealerhub/internal/domain"

// RefMap maps record ids to display names.
type RefMap map[string]string

// Refs holds one RefMap per reference name.
type Refs map[string]RefMap

// NameFunc derives the display name of a record.
type NameFunc func(domain.Record) string

// ByField names a record by one of its fields.
func ByField(field string) NameFunc {
	return func(r domain.Record) string { return r.String(field) }
}

// BuildMap indexes records by id. Records without a name are shown by id.
func BuildMap(records []domain.Record, name NameFunc) RefMap {
	m := make(RefMap, len(records))
	for _, r := range records {
		id := r.ID()
		if id == "" {
			continue
		}
		if n := name(r); n != "" {
			m[id] = n
		} else {
			m[id] = id
		}
	}
	return m
}

// Lookup returns the name for id, or fallback on a miss. A nil map misses.
func (m RefMap) Lookup(id, fallback string) string {
	if n, ok := m[id]; ok && id != "" {
		return n
	}
	return fallback
}

// Lookup returns the name for id in the named map, or fallback.
func (r Refs) Lookup(name, id, fallback string) string {
	return r[name].Lookup(id, fallback)
}
