// Package services implements the provider clients used by the enrichment pipeline.
//
// # Spotify
//
// [SpotifyService] is the primary catalog. It never holds a token itself: every call
// takes the optional user id and asks its [TokenProvider] for one. Catalog reads use
// PublicToken, which degrades to anonymous access; the user's own top tracks and
// artists use UserToken and fail with [shared.ErrAuthRequired] when no account is linked.
//
// Synthetic ids (see package synthid) passed to GetSong, GetArtist or GetAlbum are
// resolved through a field-filtered search, taking the top hit.
//
// # Last.fm
//
// [LastFMService] supplies play counts, tags, descriptions and similarity lists.
// It authenticates with an API key only and is throttled by a token bucket.
// Its responses are loosely typed; see lastfm_types.go for the decoding rules.
//
// # Error Handling
//
// Both clients return [*APIError], which unwraps to one of:
//   - [shared.ErrNotFound] : the entity does not exist (HTTP 404, Last.fm error 6)
//   - [shared.ErrProviderUnavailable] : rate limits, 5xx and transport failures
//   - [shared.ErrMalformedResponse] : the body could not be decoded
//
// Context cancellation is returned as the context's own error.
package services
