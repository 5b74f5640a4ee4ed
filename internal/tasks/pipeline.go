package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/desertthunder/sphere/internal/synthid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestTimeout = 4 * time.Second
	DefaultSimilarLimit   = 20
	DefaultWorkers        = 4
)

// Catalog is the primary provider. Its entities are authoritative.
type Catalog interface {
	SearchSongs(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Song], error)
	SearchArtists(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Artist], error)
	SearchAlbums(ctx context.Context, userID, query string, limit, offset int) (*models.Page[models.Album], error)

	GetSong(ctx context.Context, userID, id string) (*models.Song, error)
	GetArtist(ctx context.Context, userID, id string) (*models.Artist, error)
	GetAlbum(ctx context.Context, userID, id string) (*models.Album, error)
	GetAlbumTracks(ctx context.Context, userID, albumID string, limit, offset int) (*models.Page[models.Song], error)

	FindSong(ctx context.Context, userID, title, artist string) (*models.Song, error)
	FindArtist(ctx context.Context, userID, name string) (*models.Artist, error)
	FindAlbum(ctx context.Context, userID, title, artist string) (*models.Album, error)

	TopTracks(ctx context.Context, userID string, limit int) ([]models.Song, error)
	TopArtists(ctx context.Context, userID string, limit int) ([]models.Artist, error)
}

// Enricher is the secondary provider. Every failure it returns is recoverable.
type Enricher interface {
	TrackFacts(ctx context.Context, title, artist string) (*models.Facts, error)
	ArtistFacts(ctx context.Context, name string) (*models.Facts, error)
	AlbumFacts(ctx context.Context, title, artist string) (*models.Facts, error)

	SimilarTracks(ctx context.Context, title, artist string, limit int) ([]models.SimilarRef, error)
	SimilarArtists(ctx context.Context, name string, limit int) ([]models.SimilarRef, error)
	ArtistTopTracks(ctx context.Context, name string, limit int) ([]models.SimilarRef, error)
	ArtistTopAlbums(ctx context.Context, name string, limit int) ([]models.SimilarRef, error)
	TopTracksByCountry(ctx context.Context, country string, limit int) ([]models.SimilarRef, error)
}

// Options configures a [Pipeline].
type Options struct {
	Catalog  Catalog
	Enricher Enricher // optional; without it every entity is returned unenriched

	RequestTimeout time.Duration // per outbound call
	SimilarLimit   int           // related items fetched for details
	Workers        int           // concurrent cross-enrichment lookups
	Logger         *log.Logger
}

// Pipeline answers catalog queries by combining the primary and secondary providers.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	catalog  Catalog
	enricher Enricher
	timeout  time.Duration
	similar  int
	workers  int
	logger   *log.Logger
}

// Query carries the caller's input for list-shaped operations.
type Query struct {
	UserID  string // optional external user id
	Text    string
	Limit   int
	Offset  int
	Filters *models.SearchFilters
}

// Entity holds exactly one resolved song, artist or album.
type Entity struct {
	Kind   models.Kind    `json:"kind"`
	Song   *models.Song   `json:"song,omitempty"`
	Artist *models.Artist `json:"artist,omitempty"`
	Album  *models.Album  `json:"album,omitempty"`
}

// NewPipeline creates a [Pipeline].
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: pipeline requires a catalog", shared.ErrInvalidConfig)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = DefaultSimilarLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Pipeline{
		catalog:  opts.Catalog,
		enricher: opts.Enricher,
		timeout:  opts.RequestTimeout,
		similar:  opts.SimilarLimit,
		workers:  opts.Workers,
		logger:   shared.WithLogger(opts.Logger, "component", "pipeline"),
	}, nil
}

// SearchSongs searches the catalog and filters the page. Total is the provider's unfiltered count.
func (p *Pipeline) SearchSongs(ctx context.Context, q Query) (*models.Page[models.Song], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	page, err := within(ctx, p.timeout, func(ctx context.Context) (*models.Page[models.Song], error) {
		return p.catalog.SearchSongs(ctx, q.UserID, q.Text, q.Limit, q.Offset)
	})
	if err != nil {
		return nil, err
	}
	return filterPage(page, q.Filters), nil
}

// SearchArtists searches the catalog and filters the page.
func (p *Pipeline) SearchArtists(ctx context.Context, q Query) (*models.Page[models.Artist], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	page, err := within(ctx, p.timeout, func(ctx context.Context) (*models.Page[models.Artist], error) {
		return p.catalog.SearchArtists(ctx, q.UserID, q.Text, q.Limit, q.Offset)
	})
	if err != nil {
		return nil, err
	}
	return filterPage(page, q.Filters), nil
}

// SearchAlbums searches the catalog and filters the page.
func (p *Pipeline) SearchAlbums(ctx context.Context, q Query) (*models.Page[models.Album], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	page, err := within(ctx, p.timeout, func(ctx context.Context) (*models.Page[models.Album], error) {
		return p.catalog.SearchAlbums(ctx, q.UserID, q.Text, q.Limit, q.Offset)
	})
	if err != nil {
		return nil, err
	}
	return filterPage(page, q.Filters), nil
}

// GetEntityByID resolves a native or synthetic id without enrichment.
func (p *Pipeline) GetEntityByID(ctx context.Context, userID string, kind models.Kind, id string) (*Entity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", shared.ErrInvalidArgument)
	}

	entity := &Entity{Kind: kind}
	var err error
	switch kind {
	case models.KindSong:
		entity.Song, err = resolve(ctx, p, kind, id, func(ctx context.Context) (*models.Song, error) {
			return p.catalog.GetSong(ctx, userID, id)
		})
	case models.KindArtist:
		entity.Artist, err = resolve(ctx, p, kind, id, func(ctx context.Context) (*models.Artist, error) {
			return p.catalog.GetArtist(ctx, userID, id)
		})
	case models.KindAlbum:
		entity.Album, err = resolve(ctx, p, kind, id, func(ctx context.Context) (*models.Album, error) {
			return p.catalog.GetAlbum(ctx, userID, id)
		})
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidArgument, kind)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetAlbumTracks returns an album's tracks in album order.
func (p *Pipeline) GetAlbumTracks(ctx context.Context, q Query) (*models.Page[models.Song], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	page, err := within(ctx, p.timeout, func(ctx context.Context) (*models.Page[models.Song], error) {
		return p.catalog.GetAlbumTracks(ctx, q.UserID, q.Text, q.Limit, q.Offset)
	})
	if err != nil {
		return nil, err
	}
	return filterPage(page, q.Filters), nil
}

// GetTopStats returns the user's own top tracks and artists. It requires a linked account
// and fails with [shared.ErrAuthRequired] otherwise.
func (p *Pipeline) GetTopStats(ctx context.Context, userID string, limit int) (*models.TopStats, error) {
	if userID == "" {
		return nil, shared.ErrAuthRequired
	}

	stats := &models.TopStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tracks, err := within(gctx, p.timeout, func(ctx context.Context) ([]models.Song, error) {
			return p.catalog.TopTracks(ctx, userID, limit)
		})
		stats.Tracks = tracks
		return err
	})
	g.Go(func() error {
		artists, err := within(gctx, p.timeout, func(ctx context.Context) ([]models.Artist, error) {
			return p.catalog.TopArtists(ctx, userID, limit)
		})
		stats.Artists = artists
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func validateText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: empty query", shared.ErrInvalidQuery)
	}
	return nil
}

// within runs fn with its own deadline derived from ctx.
func within[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// resolve runs the catalog lookup that starts every entity request. Failures are
// returned to the caller and logged with whether id was a fallback id.
func resolve[T any](ctx context.Context, p *Pipeline, kind models.Kind, id string, lookup func(context.Context) (*T, error)) (*T, error) {
	v, err := within(ctx, p.timeout, lookup)
	if err != nil {
		p.logger.Debug("catalog lookup failed", "stage", StageResolve, "kind", kind, "id", id,
			"synthetic", synthid.IsSynthetic(id), "error", err)
		return nil, err
	}
	return v, nil
}

func filterPage[T models.Filterable](page *models.Page[T], f *models.SearchFilters) *models.Page[T] {
	if f.IsZero() {
		return page
	}
	return models.NewPage(models.Filter(page.Results, f), page.Total, page.Limit, page.Offset)
}

// softFail logs a recoverable enrichment failure.
func (p *Pipeline) softFail(stage Stage, err error, kv ...any) {
	if err == nil {
		return
	}
	p.logger.Warn("enrichment failed", append([]any{"stage", stage, "error", err}, kv...)...)
}
