// Last.fm enrichment client
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"golang.org/x/time/rate"
)

const (
	lastfmBaseURL  = "https://ws.audioscrobbler.com/2.0/"
	lastfmProvider = "lastfm"

	// lastfmNotFound is the API's "invalid parameters" code, returned for unknown tracks, artists and albums.
	lastfmNotFound = 6

	// lastfmPlaceholder identifies the grey star image served when no artwork exists.
	lastfmPlaceholder = "2a96cbd8b46e442fc41c2b86b821562f"
)

// readMoreLink matches the attribution anchor appended to every bio and wiki summary.
var readMoreLink = regexp.MustCompile(`\s*<a [^>]*>Read more on Last\.fm</a>\.?`)

// LastFMOptions configures a [LastFMService].
type LastFMOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	// RequestsPerSecond bounds outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Logger            *log.Logger
}

// LastFMService is the secondary enrichment client. It needs only an API key.
type LastFMService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewLastFMService creates an enrichment client.
func NewLastFMService(opts LastFMOptions) (*LastFMService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: lastfm api key is required", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = lastfmBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	return &LastFMService{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		logger:     shared.WithLogger(opts.Logger, "component", lastfmProvider),
	}, nil
}

// Name returns the provider name.
func (s *LastFMService) Name() string {
	return "Last.fm"
}

// TrackFacts returns play counts, tags and the wiki summary of a track.
func (s *LastFMService) TrackFacts(ctx context.Context, title, artist string) (*models.Facts, error) {
	var resp lastfmTrackInfoResponse
	err := s.call(ctx, "track.getInfo", url.Values{"track": {title}, "artist": {artist}, "autocorrect": {"1"}}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Track == nil {
		return nil, s.notFound("track %q by %q", title, artist)
	}

	t := resp.Track
	facts := &models.Facts{
		PlayCount:     t.PlayCount.Ptr(),
		ListenerCount: t.Listeners.Ptr(),
		Tags:          tagNames(t.TopTags.Tag),
	}
	if t.Wiki != nil {
		facts.Description = cleanSummary(t.Wiki.Summary)
	}
	return facts, nil
}

// ArtistFacts returns listener counts, tags, the bio summary and the similar artists embedded in artist.getinfo.
func (s *LastFMService) ArtistFacts(ctx context.Context, name string) (*models.Facts, error) {
	var resp lastfmArtistInfoResponse
	if err := s.call(ctx, "artist.getinfo", url.Values{"artist": {name}, "autocorrect": {"1"}}, &resp); err != nil {
		return nil, err
	}
	if resp.Artist == nil {
		return nil, s.notFound("artist %q", name)
	}

	a := resp.Artist
	facts := &models.Facts{Tags: tagNames(a.Tags.Tag)}
	if a.Stats != nil {
		facts.PlayCount = a.Stats.PlayCount.Ptr()
		facts.ListenerCount = a.Stats.Listeners.Ptr()
	}
	if a.Bio != nil {
		facts.Description = cleanSummary(a.Bio.Summary)
	}
	if a.Similar != nil {
		for _, sim := range a.Similar.Artist {
			facts.Similar = append(facts.Similar, artistToRef(sim))
		}
	}
	return facts, nil
}

// AlbumFacts returns play counts, tags and the wiki summary of an album.
func (s *LastFMService) AlbumFacts(ctx context.Context, title, artist string) (*models.Facts, error) {
	var resp lastfmAlbumInfoResponse
	err := s.call(ctx, "album.getinfo", url.Values{"album": {title}, "artist": {artist}, "autocorrect": {"1"}}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Album == nil {
		return nil, s.notFound("album %q by %q", title, artist)
	}

	a := resp.Album
	facts := &models.Facts{
		PlayCount:     a.PlayCount.Ptr(),
		ListenerCount: a.Listeners.Ptr(),
		Tags:          tagNames(a.Tags.Tag),
	}
	if a.Wiki != nil {
		facts.Description = cleanSummary(a.Wiki.Summary)
	}
	return facts, nil
}

// SimilarTracks returns tracks similar to title by artist, most similar first.
func (s *LastFMService) SimilarTracks(ctx context.Context, title, artist string, limit int) ([]models.SimilarRef, error) {
	var resp lastfmSimilarTracksResponse
	params := url.Values{"track": {title}, "artist": {artist}, "autocorrect": {"1"}, "limit": {strconv.Itoa(clampLimit(limit))}}
	if err := s.call(ctx, "track.getSimilar", params, &resp); err != nil {
		return nil, err
	}
	return mapRefs(resp.SimilarTracks.Track, trackToRef), nil
}

// SimilarArtists returns artists similar to name, most similar first.
func (s *LastFMService) SimilarArtists(ctx context.Context, name string, limit int) ([]models.SimilarRef, error) {
	var resp lastfmSimilarArtistsResponse
	params := url.Values{"artist": {name}, "autocorrect": {"1"}, "limit": {strconv.Itoa(clampLimit(limit))}}
	if err := s.call(ctx, "artist.getsimilar", params, &resp); err != nil {
		return nil, err
	}
	return mapRefs(resp.SimilarArtists.Artist, artistToRef), nil
}

// ArtistTopTracks returns an artist's most played tracks.
func (s *LastFMService) ArtistTopTracks(ctx context.Context, name string, limit int) ([]models.SimilarRef, error) {
	var resp lastfmArtistTopTracksResponse
	params := url.Values{"artist": {name}, "autocorrect": {"1"}, "limit": {strconv.Itoa(clampLimit(limit))}}
	if err := s.call(ctx, "artist.gettoptracks", params, &resp); err != nil {
		return nil, err
	}
	return mapRefs(resp.TopTracks.Track, trackToRef), nil
}

// ArtistTopAlbums returns an artist's most played albums.
func (s *LastFMService) ArtistTopAlbums(ctx context.Context, name string, limit int) ([]models.SimilarRef, error) {
	var resp lastfmArtistTopAlbumsResponse
	params := url.Values{"artist": {name}, "autocorrect": {"1"}, "limit": {strconv.Itoa(clampLimit(limit))}}
	if err := s.call(ctx, "artist.gettopalbums", params, &resp); err != nil {
		return nil, err
	}
	return mapRefs(resp.TopAlbums.Album, albumToRef), nil
}

// TopTracksByCountry returns the chart for an ISO 3166-1 country name.
func (s *LastFMService) TopTracksByCountry(ctx context.Context, country string, limit int) ([]models.SimilarRef, error) {
	var resp lastfmGeoTopTracksResponse
	params := url.Values{"country": {country}, "limit": {strconv.Itoa(clampLimit(limit))}}
	if err := s.call(ctx, "geo.gettoptracks", params, &resp); err != nil {
		return nil, err
	}
	return mapRefs(resp.Tracks.Track, trackToRef), nil
}

// call performs one API method and decodes the body into result.
// Last.fm reports failures in the body, sometimes with a 200 status.
func (s *LastFMService) call(ctx context.Context, method string, params url.Values, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Provider: lastfmProvider, Err: shared.ErrProviderUnavailable, Message: err.Error()}
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("method", method)
	q.Set("api_key", s.apiKey)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, lastfmProvider, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if resp.StatusCode >= 300 {
			return &APIError{Provider: lastfmProvider, Status: resp.StatusCode, Err: classifyStatus(resp.StatusCode), RetryAfter: retryAfter(resp.Header)}
		}
		return &APIError{Provider: lastfmProvider, Status: resp.StatusCode, Err: shared.ErrMalformedResponse, Message: err.Error()}
	}

	s.logger.Debug("request", "method", method, "status", resp.StatusCode)

	var apiErr lastfmError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != 0 {
		kind := shared.ErrProviderUnavailable
		if apiErr.Code == lastfmNotFound {
			kind = shared.ErrNotFound
		}
		return &APIError{Provider: lastfmProvider, Status: resp.StatusCode, Err: kind, Message: apiErr.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Provider: lastfmProvider, Status: resp.StatusCode, Err: classifyStatus(resp.StatusCode), RetryAfter: retryAfter(resp.Header)}
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return &APIError{Provider: lastfmProvider, Status: resp.StatusCode, Err: shared.ErrMalformedResponse, Message: err.Error()}
	}
	return nil
}

func (s *LastFMService) notFound(format string, args ...any) error {
	return &APIError{Provider: lastfmProvider, Err: shared.ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func mapRefs[T any](items []T, fn func(T) models.SimilarRef) []models.SimilarRef {
	refs := make([]models.SimilarRef, 0, len(items))
	for _, item := range items {
		ref := fn(item)
		if strings.TrimSpace(ref.Name) == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func trackToRef(t lastfmTrack) models.SimilarRef {
	return models.SimilarRef{
		Name:      t.Name,
		Artist:    t.Artist.Name,
		MBID:      t.MBID,
		URL:       t.URL,
		ImageURL:  largestImage(t.Image),
		Match:     t.Match.Value,
		PlayCount: t.PlayCount.Ptr(),
		Listeners: t.Listeners.Ptr(),
	}
}

func artistToRef(a lastfmArtist) models.SimilarRef {
	return models.SimilarRef{
		Name:      a.Name,
		MBID:      a.MBID,
		URL:       a.URL,
		ImageURL:  largestImage(a.Image),
		Match:     a.Match.Value,
		PlayCount: a.PlayCount.Ptr(),
		Listeners: a.Listeners.Ptr(),
	}
}

func albumToRef(a lastfmAlbum) models.SimilarRef {
	return models.SimilarRef{
		Name:      a.Name,
		Artist:    a.Artist.Name,
		MBID:      a.MBID,
		URL:       a.URL,
		ImageURL:  largestImage(a.Image),
		PlayCount: a.PlayCount.Ptr(),
		Listeners: a.Listeners.Ptr(),
	}
}

var imageSizes = map[string]int{"small": 1, "medium": 2, "large": 3, "extralarge": 4, "mega": 5}

// largestImage picks the biggest real image, skipping empty urls and the placeholder.
func largestImage(images []lastfmImage) string {
	var best string
	bestRank := -1
	for _, img := range images {
		if img.URL == "" || strings.Contains(img.URL, lastfmPlaceholder) {
			continue
		}
		if rank := imageSizes[img.Size]; rank > bestRank {
			best, bestRank = img.URL, rank
		}
	}
	return best
}

func tagNames(tags []lastfmTag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if name := strings.TrimSpace(t.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func cleanSummary(s string) string {
	return strings.TrimSpace(readMoreLink.ReplaceAllString(s, ""))
}
