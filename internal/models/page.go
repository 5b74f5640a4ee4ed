package models

// Page is a window of results. len(Results) never exceeds Limit.
type Page[T any] struct {
	Results []T  `json:"results"`
	Total   *int `json:"total,omitempty"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
}

// NewPage builds a [Page], truncating results to limit. A nil total means the provider did not report one.
func NewPage[T any](results []T, total *int, limit, offset int) *Page[T] {
	if limit < 0 {
		limit = 0
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []T{}
	}
	return &Page[T]{Results: results, Total: total, Limit: limit, Offset: offset}
}
