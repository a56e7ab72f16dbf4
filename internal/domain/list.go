package domain

// Filter operators supported by the record store.
const (
	OpEQ       = "EQ"
	OpIN       = "IN"
	OpGTE      = "GTE"
	OpLTE      = "LTE"
	OpContains = "CONTAINS"
)

// Filter is a single field predicate. Filters in a ListOpts are AND-combined.
type Filter struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Values   []string `json:"values,omitempty"`
}

// ListOpts holds the parameters for listing records.
type ListOpts struct {
	Filters []Filter
	// Query is matched as a case-insensitive substring against SearchFields.
	Query        string
	SearchFields []string
	Limit        int
	Offset       int
	Archived     bool
}
