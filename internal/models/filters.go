package models

import "strings"

// SearchFilters is a bag of optional bounds applied to result lists after retrieval.
//
// Values an entity does not carry (no genres, no release date, no tempo) are
// treated as unknown and never exclude it. Popularity is always known.
type SearchFilters struct {
	MinPopularity *int   `json:"min_popularity,omitempty"`
	MaxPopularity *int   `json:"max_popularity,omitempty"`
	Genre         string `json:"genre,omitempty"`
	MinYear       *int   `json:"min_year,omitempty"`
	MaxYear       *int   `json:"max_year,omitempty"`
	MinTempo      *int   `json:"min_tempo,omitempty"`
	MaxTempo      *int   `json:"max_tempo,omitempty"`
}

// Attributes are the filterable facets of an entity. Zero Year and Tempo mean unknown.
type Attributes struct {
	Popularity int
	Genres     []string
	Year       int
	Tempo      float64
}

// Filterable is implemented by entities that [SearchFilters] can evaluate.
type Filterable interface {
	FilterAttributes() Attributes
}

// IsZero reports whether no bound is set.
func (f *SearchFilters) IsZero() bool {
	return f == nil || (f.MinPopularity == nil && f.MaxPopularity == nil && f.Genre == "" &&
		f.MinYear == nil && f.MaxYear == nil && f.MinTempo == nil && f.MaxTempo == nil)
}

// Match reports whether item satisfies every set bound.
func (f *SearchFilters) Match(item Filterable) bool {
	if f.IsZero() {
		return true
	}

	a := item.FilterAttributes()
	if f.MinPopularity != nil && a.Popularity < *f.MinPopularity {
		return false
	}
	if f.MaxPopularity != nil && a.Popularity > *f.MaxPopularity {
		return false
	}
	if f.Genre != "" && len(a.Genres) > 0 && !hasGenre(a.Genres, f.Genre) {
		return false
	}
	if a.Year != 0 {
		if f.MinYear != nil && a.Year < *f.MinYear {
			return false
		}
		if f.MaxYear != nil && a.Year > *f.MaxYear {
			return false
		}
	}
	if a.Tempo != 0 {
		if f.MinTempo != nil && a.Tempo < float64(*f.MinTempo) {
			return false
		}
		if f.MaxTempo != nil && a.Tempo > float64(*f.MaxTempo) {
			return false
		}
	}
	return true
}

// Filter returns the items of in that match f, in their original order.
// The input slice is not modified.
func Filter[T Filterable](in []T, f *SearchFilters) []T {
	if f.IsZero() {
		return in
	}
	out := make([]T, 0, len(in))
	for _, item := range in {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

func hasGenre(genres []string, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, g := range genres {
		if strings.Contains(strings.ToLower(g), want) {
			return true
		}
	}
	return false
}

func (s Song) FilterAttributes() Attributes {
	return Attributes{Popularity: s.Popularity, Genres: s.Genres, Year: year(s.ReleaseDate), Tempo: s.Tempo}
}

func (a Artist) FilterAttributes() Attributes {
	return Attributes{Popularity: a.Popularity, Genres: a.Genres}
}

func (a Album) FilterAttributes() Attributes {
	return Attributes{Popularity: a.Popularity, Genres: a.Genres, Year: year(a.ReleaseDate)}
}
