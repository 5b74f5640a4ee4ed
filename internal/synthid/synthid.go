// Package synthid builds and reads synthetic entity identifiers for items the
// primary provider has no native id for.
//
// An id is the normalized title and artist joined by [Separator]:
//
//	Encode("Karma Police", "Radiohead") == "karma-police--radiohead"
//
// The scheme is lossy. Case, punctuation around dashes and repeated spaces are
// not recoverable, and distinct titles may collide. Decoded values are only fit
// for re-querying a provider, never for display as original metadata.
package synthid

import "strings"

// Separator joins the two halves of a synthetic id.
const Separator = "--"

// Encode derives a synthetic id from title and artist. It never fails.
func Encode(title, artist string) string {
	return slug(title) + Separator + slug(artist)
}

// EncodeArtist derives a synthetic id for an artist. The second half is empty.
func EncodeArtist(name string) string {
	return Encode(name, "")
}

// Decode recovers an approximate title and artist from id, splitting on the
// first [Separator]. ok is false when id is not synthetic.
func Decode(id string) (title, artist string, ok bool) {
	head, tail, found := strings.Cut(id, Separator)
	if !found {
		return "", "", false
	}
	return unslug(head), unslug(tail), true
}

// IsSynthetic reports whether id was produced by [Encode].
func IsSynthetic(id string) bool {
	return strings.Contains(id, Separator)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func unslug(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "-", " "))
}
