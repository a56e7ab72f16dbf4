package view

// PageSizes are the page sizes a screen offers.
var PageSizes = []int{5, 10, 25, 50, 100}

// DefaultPageSize is used when a screen is given none.
const DefaultPageSize = 10

// Page is one slice of a filtered result.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
	// StartIndex and EndIndex are the 1-based positions of the first and
	// last item shown, both 0 when there are none.
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// TotalPages returns max(1, ceil(n/pageSize)).
func TotalPages(n, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// Paginate returns page of items, clamping page into [1, TotalPages].
func Paginate[T any](items []T, pageSize, page int) Page[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := TotalPages(len(items), pageSize)
	page = min(max(page, 1), total)

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))

	p := Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: total,
		Total:      len(items),
	}
	if end > start {
		p.StartIndex = start + 1
		p.EndIndex = end
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}
