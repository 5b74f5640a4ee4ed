package models

import (
	"strings"
	"time"
)

// Release date precisions reported by the primary provider.
const (
	PrecisionDay   = "day"
	PrecisionMonth = "month"
	PrecisionYear  = "year"
)

// ArtistRef is the primary relationship of a song or album.
type ArtistRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// AlbumRef identifies the album a song belongs to.
type AlbumRef struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// Song is a canonical track.
type Song struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Artist               ArtistRef  `json:"artist"`
	Album                AlbumRef   `json:"album"`
	URL                  string     `json:"url,omitempty"`
	ImageURL             string     `json:"image_url,omitempty"`
	PreviewURL           string     `json:"preview_url,omitempty"`
	DurationMS           int        `json:"duration_ms,omitempty"`
	Popularity           int        `json:"popularity"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ReleaseDatePrecision string     `json:"release_date_precision,omitempty"`
	Explicit             bool       `json:"explicit"`
	Genres               []string   `json:"genres"`
	// Tempo in BPM, zero when unknown. Audio features are not fetched, so it is always zero today.
	Tempo                float64    `json:"tempo,omitempty"`

	MBID          string   `json:"mbid,omitempty"`
	PlayCount     *int64   `json:"play_count,omitempty"`
	ListenerCount *int64   `json:"listener_count,omitempty"`
	Description   string   `json:"description,omitempty"`
	MatchScore    *float64 `json:"match_score,omitempty"`
}

// Artist is a canonical artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Images     []string `json:"images,omitempty"`
	Genres     []string `json:"genres"`
	Followers  int      `json:"followers"`
	Popularity int      `json:"popularity"`

	MBID           string   `json:"mbid,omitempty"`
	PlayCount      *int64   `json:"play_count,omitempty"`
	ListenerCount  *int64   `json:"listener_count,omitempty"`
	Description    string   `json:"description,omitempty"`
	MatchScore     *float64 `json:"match_score,omitempty"`
	TopTracks      []Song   `json:"top_tracks,omitempty"`
	TopAlbums      []Album  `json:"top_albums,omitempty"`
	SimilarArtists []Artist `json:"similar_artists,omitempty"`
}

// Album is a canonical album.
type Album struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Artist               ArtistRef  `json:"artist"`
	URL                  string     `json:"url,omitempty"`
	ImageURL             string     `json:"image_url,omitempty"`
	Popularity           int        `json:"popularity"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ReleaseDatePrecision string     `json:"release_date_precision,omitempty"`
	TotalTracks          int        `json:"total_tracks,omitempty"`
	Genres               []string   `json:"genres"`

	MBID          string `json:"mbid,omitempty"`
	PlayCount     *int64 `json:"play_count,omitempty"`
	ListenerCount *int64 `json:"listener_count,omitempty"`
	Description   string `json:"description,omitempty"`
	Tracks        []Song `json:"tracks,omitempty"`
}

// TopStats is a user's personal listening summary.
type TopStats struct {
	Tracks  []Song   `json:"tracks"`
	Artists []Artist `json:"artists"`
}

// ParseReleaseDate parses a provider release date according to its precision.
// Unparseable values yield nil.
func ParseReleaseDate(value, precision string) *time.Time {
	if value == "" {
		return nil
	}

	layout := "2006-01-02"
	switch precision {
	case PrecisionYear:
		layout = "2006"
	case PrecisionMonth:
		layout = "2006-01"
	case PrecisionDay:
	default:
		switch len(value) {
		case 4:
			layout = "2006"
		case 7:
			layout = "2006-01"
		}
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &t
}

// MergeGenres appends tags not already present in genres, comparing case-insensitively.
// The order of genres is kept and new tags follow in their given order.
func MergeGenres(genres, tags []string) []string {
	seen := make(map[string]struct{}, len(genres)+len(tags))
	out := make([]string, 0, len(genres)+len(tags))
	for _, g := range genres {
		key := strings.ToLower(strings.TrimSpace(g))
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	for _, t := range tags {
		key := strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(t))
	}
	return out
}

func year(t *time.Time) int {
	if t == nil {
		return 0
	}
	return t.Year()
}
