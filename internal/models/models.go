// package models defines the data model for sphere
package models

import (
	"time"
)

// Model defines the base interface for persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Kind names a catalog entity type.
type Kind string

const (
	KindSong   Kind = "song"
	KindArtist Kind = "artist"
	KindAlbum  Kind = "album"
)

// ParseKind accepts singular or plural entity names.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "song", "songs", "track", "tracks":
		return KindSong, true
	case "artist", "artists":
		return KindArtist, true
	case "album", "albums":
		return KindAlbum, true
	}
	return "", false
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
