package models

// Facts are supplementary, best-effort data about an entity from the enrichment provider.
type Facts struct {
	PlayCount     *int64       `json:"play_count,omitempty"`
	ListenerCount *int64       `json:"listener_count,omitempty"`
	Description   string       `json:"description,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Similar       []SimilarRef `json:"similar,omitempty"`
	MatchScore    *float64     `json:"match_score,omitempty"`
}

// IsEmpty reports whether f carries no usable data.
func (f *Facts) IsEmpty() bool {
	return f == nil || (f.PlayCount == nil && f.ListenerCount == nil && f.Description == "" &&
		len(f.Tags) == 0 && len(f.Similar) == 0 && f.MatchScore == nil)
}

// SimilarRef is a lightweight reference to a related song, artist or album.
//
// Artist is empty for artist references.
type SimilarRef struct {
	Name      string  `json:"name"`
	Artist    string  `json:"artist,omitempty"`
	MBID      string  `json:"mbid,omitempty"`
	URL       string  `json:"url,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Match     float64 `json:"match,omitempty"`
	PlayCount *int64  `json:"play_count,omitempty"`
	Listeners *int64  `json:"listeners,omitempty"`
}
