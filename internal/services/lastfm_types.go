// Last.fm API response types based on https://www.last.fm/api
//
// Last.fm's JSON is a direct translation of its XML responses: numbers are
// usually strings, single-element lists collapse to objects and empty lists
// become "". The flex types below absorb those differences.
package services

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexInt decodes 123, "123" and "" alike. Unparseable values are treated as absent.
type flexInt struct {
	Value int64
	Valid bool
}

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		n.Value, n.Valid = v, true
	}
	return nil
}

// Ptr returns nil when the count was absent.
func (n flexInt) Ptr() *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// flexFloat decodes 0.5 and "0.5" alike.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		f.Value, f.Valid = v, true
	}
	return nil
}

func (f flexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// flexList decodes an array, a single object or an empty string into a slice.
type flexList[T any] []T

func (l *flexList[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '"' || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}

	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var item T
	if err := json.Unmarshal(b, &item); err != nil {
		return err
	}
	*l = flexList[T]{item}
	return nil
}

// lastfmArtistField is an artist given either as a bare name or as an object.
type lastfmArtistField struct {
	Name string
	MBID string
	URL  string
}

func (a *lastfmArtistField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.Name)
	}

	var obj struct {
		Name string `json:"name"`
		Text string `json:"#text"`
		MBID string `json:"mbid"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.Name, a.MBID, a.URL = obj.Name, obj.MBID, obj.URL
	if a.Name == "" {
		a.Name = obj.Text
	}
	return nil
}

type lastfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type lastfmTag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type lastfmTags struct {
	Tag flexList[lastfmTag] `json:"tag"`
}

// lastfmTagField tolerates tags given as "" instead of an object.
type lastfmTagField struct {
	lastfmTags
}

func (t *lastfmTagField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	return json.Unmarshal(b, &t.lastfmTags)
}

type lastfmWiki struct {
	Published string `json:"published"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
}

type lastfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

type lastfmTrack struct {
	Name      string                `json:"name"`
	MBID      string                `json:"mbid"`
	URL       string                `json:"url"`
	Duration  flexInt               `json:"duration"`
	Listeners flexInt               `json:"listeners"`
	PlayCount flexInt               `json:"playcount"`
	Match     flexFloat             `json:"match"`
	Artist    lastfmArtistField     `json:"artist"`
	Image     flexList[lastfmImage] `json:"image"`
	Album     *struct {
		Title string                `json:"title"`
		MBID  string                `json:"mbid"`
		URL   string                `json:"url"`
		Image flexList[lastfmImage] `json:"image"`
	} `json:"album"`
	TopTags lastfmTagField `json:"toptags"`
	Wiki    *lastfmWiki    `json:"wiki"`
}

type lastfmArtist struct {
	Name      string                `json:"name"`
	MBID      string                `json:"mbid"`
	URL       string                `json:"url"`
	Match     flexFloat             `json:"match"`
	Listeners flexInt               `json:"listeners"`
	PlayCount flexInt               `json:"playcount"`
	Image     flexList[lastfmImage] `json:"image"`
	Stats     *struct {
		Listeners flexInt `json:"listeners"`
		PlayCount flexInt `json:"playcount"`
	} `json:"stats"`
	Similar *struct {
		Artist flexList[lastfmArtist] `json:"artist"`
	} `json:"similar"`
	Tags lastfmTagField `json:"tags"`
	Bio  *lastfmWiki    `json:"bio"`
}

type lastfmAlbum struct {
	Name      string                `json:"name"`
	Artist    lastfmArtistField     `json:"artist"`
	MBID      string                `json:"mbid"`
	URL       string                `json:"url"`
	Listeners flexInt               `json:"listeners"`
	PlayCount flexInt               `json:"playcount"`
	Image     flexList[lastfmImage] `json:"image"`
	Tags      lastfmTagField        `json:"tags"`
	Wiki      *lastfmWiki           `json:"wiki"`
}

type lastfmTrackInfoResponse struct {
	Track *lastfmTrack `json:"track"`
}

type lastfmArtistInfoResponse struct {
	Artist *lastfmArtist `json:"artist"`
}

type lastfmAlbumInfoResponse struct {
	Album *lastfmAlbum `json:"album"`
}

type lastfmSimilarTracksResponse struct {
	SimilarTracks struct {
		Track flexList[lastfmTrack] `json:"track"`
	} `json:"similartracks"`
}

type lastfmSimilarArtistsResponse struct {
	SimilarArtists struct {
		Artist flexList[lastfmArtist] `json:"artist"`
	} `json:"similarartists"`
}

type lastfmGeoTopTracksResponse struct {
	Tracks struct {
		Track flexList[lastfmTrack] `json:"track"`
	} `json:"tracks"`
}

type lastfmArtistTopTracksResponse struct {
	TopTracks struct {
		Track flexList[lastfmTrack] `json:"track"`
	} `json:"toptracks"`
}

type lastfmArtistTopAlbumsResponse struct {
	TopAlbums struct {
		Album flexList[lastfmAlbum] `json:"album"`
	} `json:"topalbums"`
}
