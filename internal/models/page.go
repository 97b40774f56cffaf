package models

// Page wraps one page of an ordered listing. Page numbers are 1-based;
// NextPage and PrevPage are nil when no further/previous page exists, which
// is how views decide whether to render navigation links. An out-of-range
// page yields an empty Items slice, not an error.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	NextPage *int  `json:"next_page,omitempty"`
	PrevPage *int  `json:"prev_page,omitempty"`
}

// NewPage builds the pagination envelope for the given slice and totals.
func NewPage[T any](items []T, page, perPage int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}
	if int64(page*perPage) < total {
		next := page + 1
		p.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		p.PrevPage = &prev
	}
	return p
}
