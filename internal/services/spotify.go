// Spotify Web API catalog client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/desertthunder/sphere/internal/synthid"
)

const (
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyProvider = "spotify"

	unknownTrack  = "Unknown Track"
	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"

	minImageHeight = 300
)

type followers struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track. Album tracks omit album, popularity and images.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        *SpotifyAlbum   `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   string          `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyArtist represents a Spotify artist. Artists nested in tracks carry only id, name and urls.
type SpotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Genres       []string       `json:"genres"`
	Images       []SpotifyImage `json:"images"`
	Followers    followers      `json:"followers"`
	Popularity   int            `json:"popularity"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID                   string                       `json:"id"`
	Name                 string                       `json:"name"`
	Artists              []SpotifyArtist              `json:"artists"`
	ReleaseDate          string                       `json:"release_date"`
	ReleaseDatePrecision string                       `json:"release_date_precision"`
	TotalTracks          int                          `json:"total_tracks"`
	Images               []SpotifyImage               `json:"images"`
	Genres               []string                     `json:"genres"`
	Popularity           int                          `json:"popularity"`
	ExternalURLs         externalURLs                 `json:"external_urls"`
	Tracks               *SpotifyPaging[SpotifyTrack] `json:"tracks"`
}

// SpotifyPaging is the envelope of every paginated Spotify response.
type SpotifyPaging[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifySearchResponse struct {
	Tracks  *SpotifyPaging[SpotifyTrack]  `json:"tracks"`
	Artists *SpotifyPaging[SpotifyArtist] `json:"artists"`
	Albums  *SpotifyPaging[SpotifyAlbum]  `json:"albums"`
}

type spotifyErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	Tokens     TokenProvider
	HTTPClient *http.Client
	BaseURL    string // defaults to the public Web API
	Market     string // ISO 3166-1 country for track relinking, optional
	Logger     *log.Logger
}

// SpotifyService is the primary catalog client. Every call takes the optional
// user id explicitly and obtains its token from the [TokenProvider].
type SpotifyService struct {
	tokens     TokenProvider
	httpClient *http.Client
	baseURL    string
	market     string
	logger     *log.Logger
}

// NewSpotifyService creates a catalog client.
func NewSpotifyService(opts SpotifyOptions) (*SpotifyService, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: spotify requires a token provider", shared.ErrMissingCredentials)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		market:     opts.Market,
		logger:     shared.WithLogger(opts.Logger, "component", spotifyProvider),
	}, nil
}

// Name returns the provider name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SearchSongs searches the catalog for tracks.
func (s *SpotifyService) SearchSongs(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Song], error) {
	resp, err := s.search(ctx, userID, "track", query, limit, offset)
	if err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return models.NewPage[models.Song](nil, nil, clampLimit(limit), offset), nil
	}
	return pageOf(resp.Tracks, toSong), nil
}

// SearchArtists searches the catalog for artists.
func (s *SpotifyService) SearchArtists(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Artist], error) {
	resp, err := s.search(ctx, userID, "artist", query, limit, offset)
	if err != nil {
		return nil, err
	}
	if resp.Artists == nil {
		return models.NewPage[models.Artist](nil, nil, clampLimit(limit), offset), nil
	}
	return pageOf(resp.Artists, toArtist), nil
}

// SearchAlbums searches the catalog for albums.
func (s *SpotifyService) SearchAlbums(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Album], error) {
	resp, err := s.search(ctx, userID, "album", query, limit, offset)
	if err != nil {
		return nil, err
	}
	if resp.Albums == nil {
		return models.NewPage[models.Album](nil, nil, clampLimit(limit), offset), nil
	}
	return pageOf(resp.Albums, toAlbum), nil
}

// GetSong looks up a track by native id, or resolves a synthetic id through search.
func (s *SpotifyService) GetSong(ctx context.Context, userID, id string) (*models.Song, error) {
	if title, artist, ok := synthid.Decode(id); ok {
		return s.FindSong(ctx, userID, title, artist)
	}

	var track SpotifyTrack
	if err := s.get(ctx, userID, "/tracks/"+url.PathEscape(id), s.marketQuery(), &track); err != nil {
		return nil, err
	}
	song := toSong(track)
	return &song, nil
}

// GetArtist looks up an artist by native id, or resolves a synthetic id through search.
func (s *SpotifyService) GetArtist(ctx context.Context, userID, id string) (*models.Artist, error) {
	if name, _, ok := synthid.Decode(id); ok {
		return s.FindArtist(ctx, userID, name)
	}

	var artist SpotifyArtist
	if err := s.get(ctx, userID, "/artists/"+url.PathEscape(id), nil, &artist); err != nil {
		return nil, err
	}
	a := toArtist(artist)
	return &a, nil
}

// GetAlbum looks up an album with its first page of tracks, or resolves a synthetic id through search.
func (s *SpotifyService) GetAlbum(ctx context.Context, userID, id string) (*models.Album, error) {
	if title, artist, ok := synthid.Decode(id); ok {
		return s.FindAlbum(ctx, userID, title, artist)
	}

	var album SpotifyAlbum
	if err := s.get(ctx, userID, "/albums/"+url.PathEscape(id), s.marketQuery(), &album); err != nil {
		return nil, err
	}
	a := toAlbum(album)
	return &a, nil
}

// GetAlbumTracks returns a page of an album's track list in album order.
func (s *SpotifyService) GetAlbumTracks(ctx context.Context, userID, albumID string, limit, offset int) (*models.Page[models.Song], error) {
	q := s.marketQuery()
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	q.Set("offset", strconv.Itoa(max(offset, 0)))

	var paging SpotifyPaging[SpotifyTrack]
	if err := s.get(ctx, userID, "/albums/"+url.PathEscape(albumID)+"/tracks", q, &paging); err != nil {
		return nil, err
	}

	page := pageOf(&paging, toSong)
	for i := range page.Results {
		page.Results[i].Album.ID = albumID
	}
	return page, nil
}

// FindSong returns the top search hit for title and artist, or [shared.ErrNotFound].
func (s *SpotifyService) FindSong(ctx context.Context, userID, title, artist string) (*models.Song, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: empty title", shared.ErrNotFound)
	}

	page, err := s.SearchSongs(ctx, userID, fieldQuery("track", title, "artist", artist), 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("%w: no track matching %q by %q", shared.ErrNotFound, title, artist)
	}
	return &page.Results[0], nil
}

// FindArtist returns the top search hit for name, or [shared.ErrNotFound].
func (s *SpotifyService) FindArtist(ctx context.Context, userID, name string) (*models.Artist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty artist name", shared.ErrNotFound)
	}

	page, err := s.SearchArtists(ctx, userID, fieldQuery("artist", name, "", ""), 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("%w: no artist matching %q", shared.ErrNotFound, name)
	}
	return &page.Results[0], nil
}

// FindAlbum returns the top search hit for title and artist, or [shared.ErrNotFound].
func (s *SpotifyService) FindAlbum(ctx context.Context, userID, title, artist string) (*models.Album, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: empty album title", shared.ErrNotFound)
	}

	page, err := s.SearchAlbums(ctx, userID, fieldQuery("album", title, "artist", artist), 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("%w: no album matching %q by %q", shared.ErrNotFound, title, artist)
	}
	return &page.Results[0], nil
}

// TopTracks returns the user's most played tracks. Requires a linked account.
func (s *SpotifyService) TopTracks(ctx context.Context, userID string, limit int) ([]models.Song, error) {
	token, err := s.tokens.UserToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var paging SpotifyPaging[SpotifyTrack]
	if err := s.doRequest(ctx, token, "/me/top/tracks", topQuery(limit), &paging); err != nil {
		return nil, err
	}
	return pageOf(&paging, toSong).Results, nil
}

// TopArtists returns the user's most played artists. Requires a linked account.
func (s *SpotifyService) TopArtists(ctx context.Context, userID string, limit int) ([]models.Artist, error) {
	token, err := s.tokens.UserToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var paging SpotifyPaging[SpotifyArtist]
	if err := s.doRequest(ctx, token, "/me/top/artists", topQuery(limit), &paging); err != nil {
		return nil, err
	}
	return pageOf(&paging, toArtist).Results, nil
}

// CurrentUser fetches the profile that owns accessToken.
func (s *SpotifyService) CurrentUser(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, accessToken, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SpotifyService) search(ctx context.Context, userID, kind, query string, limit, offset int) (*spotifySearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidQuery)
	}

	q := s.marketQuery()
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	q.Set("offset", strconv.Itoa(max(offset, 0)))

	var resp spotifySearchResponse
	if err := s.get(ctx, userID, "/search", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// get performs a catalog read with the user's public token.
func (s *SpotifyService) get(ctx context.Context, userID, endpoint string, query url.Values, result any) error {
	token, err := s.tokens.PublicToken(ctx, userID)
	if err != nil {
		return err
	}
	return s.doRequest(ctx, token, endpoint, query, result)
}

func (s *SpotifyService) doRequest(ctx context.Context, token, endpoint string, query url.Values, result any) error {
	reqURL := s.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, spotifyProvider, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("request", "endpoint", endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Provider:   spotifyProvider,
			Status:     resp.StatusCode,
			Err:        classifyStatus(resp.StatusCode),
			RetryAfter: retryAfter(resp.Header),
		}
		var body spotifyErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Provider: spotifyProvider, Status: resp.StatusCode, Err: shared.ErrMalformedResponse, Message: err.Error()}
	}
	return nil
}

func (s *SpotifyService) marketQuery() url.Values {
	q := url.Values{}
	if s.market != "" {
		q.Set("market", s.market)
	}
	return q
}

func topQuery(limit int) url.Values {
	return url.Values{
		"limit":      {strconv.Itoa(clampLimit(limit))},
		"time_range": {"medium_term"},
	}
}

// fieldQuery builds a field-filtered search such as track:"Creep" artist:"Radiohead".
func fieldQuery(field, value, relField, relValue string) string {
	q := fmt.Sprintf("%s:%q", field, strings.TrimSpace(value))
	if relField != "" && strings.TrimSpace(relValue) != "" {
		q += fmt.Sprintf(" %s:%q", relField, strings.TrimSpace(relValue))
	}
	return q
}

func pageOf[S, T any](p *SpotifyPaging[S], mapFn func(S) T) *models.Page[T] {
	results := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		results = append(results, mapFn(item))
	}

	limit := p.Limit
	if limit < len(results) {
		limit = len(results)
	}
	total := p.Total
	return models.NewPage(results, &total, limit, p.Offset)
}

// pickImage returns the largest image at least minImageHeight tall, else the first one.
func pickImage(images []SpotifyImage) string {
	best := -1
	for i, img := range images {
		if img.Height >= minImageHeight && (best < 0 || img.Height > images[best].Height) {
			best = i
		}
	}
	if best >= 0 {
		return images[best].URL
	}
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}

func artistRef(artists []SpotifyArtist) models.ArtistRef {
	if len(artists) == 0 {
		return models.ArtistRef{Name: unknownArtist}
	}
	a := artists[0]
	return models.ArtistRef{ID: a.ID, Name: orDefault(a.Name, unknownArtist), URL: a.ExternalURLs.Spotify}
}

func toSong(t SpotifyTrack) models.Song {
	song := models.Song{
		ID:         t.ID,
		Title:      orDefault(t.Name, unknownTrack),
		Artist:     artistRef(t.Artists),
		URL:        t.ExternalURLs.Spotify,
		PreviewURL: t.PreviewURL,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
		Explicit:   t.Explicit,
		Genres:     []string{},
	}
	if t.Album != nil {
		song.Album = models.AlbumRef{ID: t.Album.ID, Title: t.Album.Name}
		song.ImageURL = pickImage(t.Album.Images)
		song.ReleaseDate = models.ParseReleaseDate(t.Album.ReleaseDate, t.Album.ReleaseDatePrecision)
		song.ReleaseDatePrecision = t.Album.ReleaseDatePrecision
	}
	return song
}

func toArtist(a SpotifyArtist) models.Artist {
	images := make([]string, 0, len(a.Images))
	for _, img := range a.Images {
		if img.Height >= minImageHeight {
			images = append(images, img.URL)
		}
	}

	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}

	return models.Artist{
		ID:         a.ID,
		Name:       orDefault(a.Name, unknownArtist),
		URL:        a.ExternalURLs.Spotify,
		ImageURL:   pickImage(a.Images),
		Images:     images,
		Genres:     genres,
		Followers:  a.Followers.Total,
		Popularity: a.Popularity,
	}
}

func toAlbum(a SpotifyAlbum) models.Album {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}

	album := models.Album{
		ID:                   a.ID,
		Title:                orDefault(a.Name, unknownAlbum),
		Artist:               artistRef(a.Artists),
		URL:                  a.ExternalURLs.Spotify,
		ImageURL:             pickImage(a.Images),
		Popularity:           a.Popularity,
		ReleaseDate:          models.ParseReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision),
		ReleaseDatePrecision: a.ReleaseDatePrecision,
		TotalTracks:          a.TotalTracks,
		Genres:               genres,
	}

	if a.Tracks != nil {
		for _, t := range a.Tracks.Items {
			song := toSong(t)
			song.Album = models.AlbumRef{ID: album.ID, Title: album.Title}
			song.ImageURL = album.ImageURL
			song.ReleaseDate = album.ReleaseDate
			song.ReleaseDatePrecision = album.ReleaseDatePrecision
			album.Tracks = append(album.Tracks, song)
		}
	}
	return album
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
