package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/desertthunder/sphere/internal/synthid"
	"golang.org/x/sync/errgroup"
)

// songByArtist splits on the last " by ", so "Stand by Me by Ben E. King" keeps its title.
var songByArtist = regexp.MustCompile(`(?i)^(.*)\s+by\s+(.*)$`)

// ParseSongQuery splits "TITLE by ARTIST". ok is false when either half is empty.
func ParseSongQuery(q string) (title, artist string, ok bool) {
	m := songByArtist.FindStringSubmatch(strings.TrimSpace(q))
	if m == nil {
		return "", "", false
	}
	title, artist = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	return title, artist, title != "" && artist != ""
}

// GetSimilarSongs lists songs similar to a "TITLE by ARTIST" query.
//
// Items come from the enricher with synthetic ids and are backfilled from the catalog.
// Enrichment failures yield an empty page; Total counts the filtered results.
func (p *Pipeline) GetSimilarSongs(ctx context.Context, q Query) (*models.Page[models.Song], error) {
	title, artist, ok := ParseSongQuery(q.Text)
	if !ok {
		return nil, fmt.Errorf("%w: expected \"<song> by <artist>\", got %q", shared.ErrInvalidQuery, q.Text)
	}

	limit, offset := pageBounds(q)
	refs := p.fetchRefs(ctx, StageSimilar, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
		return e.SimilarTracks(ctx, title, artist, offset+limit)
	}, "title", title, "artist", artist)

	songs := songsFromRefs(window(refs, offset, limit))
	p.crossEnrichSongs(ctx, q.UserID, songs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return derivedPage(songs, q.Filters, limit, offset), nil
}

// GetSimilarArtists lists artists similar to the named one.
func (p *Pipeline) GetSimilarArtists(ctx context.Context, q Query) (*models.Page[models.Artist], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(q.Text)

	limit, offset := pageBounds(q)
	refs := p.fetchRefs(ctx, StageSimilar, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
		return e.SimilarArtists(ctx, name, offset+limit)
	}, "artist", name)

	artists := artistsFromRefs(window(refs, offset, limit))
	p.crossEnrichArtists(ctx, q.UserID, artists)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return derivedPage(artists, q.Filters, limit, offset), nil
}

// TopSongsByCountry lists the enricher's chart for a country, backfilled from the catalog.
func (p *Pipeline) TopSongsByCountry(ctx context.Context, q Query) (*models.Page[models.Song], error) {
	if err := validateText(q.Text); err != nil {
		return nil, err
	}
	country := strings.TrimSpace(q.Text)

	limit, offset := pageBounds(q)
	refs := p.fetchRefs(ctx, StageCharts, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
		return e.TopTracksByCountry(ctx, country, offset+limit)
	}, "country", country)

	songs := songsFromRefs(window(refs, offset, limit))
	p.crossEnrichSongs(ctx, q.UserID, songs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return derivedPage(songs, q.Filters, limit, offset), nil
}

func pageBounds(q Query) (limit, offset int) {
	limit, offset = q.Limit, max(q.Offset, 0)
	switch {
	case limit <= 0:
		limit = DefaultSimilarLimit
	case limit > 50:
		limit = 50
	}
	return limit, offset
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func derivedPage[T models.Filterable](items []T, f *models.SearchFilters, limit, offset int) *models.Page[T] {
	items = models.Filter(items, f)
	total := len(items)
	return models.NewPage(items, &total, limit, offset)
}

func songsFromRefs(refs []models.SimilarRef) []models.Song {
	songs := make([]models.Song, 0, len(refs))
	for _, r := range refs {
		songs = append(songs, models.Song{
			ID:            synthid.Encode(r.Name, r.Artist),
			Title:         r.Name,
			Artist:        models.ArtistRef{Name: r.Artist},
			URL:           r.URL,
			ImageURL:      r.ImageURL,
			Genres:        []string{},
			MBID:          r.MBID,
			PlayCount:     r.PlayCount,
			ListenerCount: r.Listeners,
			MatchScore:    matchScore(r),
		})
	}
	return songs
}

func artistsFromRefs(refs []models.SimilarRef) []models.Artist {
	artists := make([]models.Artist, 0, len(refs))
	for _, r := range refs {
		artists = append(artists, models.Artist{
			ID:            synthid.EncodeArtist(r.Name),
			Name:          r.Name,
			URL:           r.URL,
			ImageURL:      r.ImageURL,
			Genres:        []string{},
			MBID:          r.MBID,
			PlayCount:     r.PlayCount,
			ListenerCount: r.Listeners,
			MatchScore:    matchScore(r),
		})
	}
	return artists
}

// albumsFromRefs maps album references, defaulting their artist to fallbackArtist.
func albumsFromRefs(refs []models.SimilarRef, fallbackArtist string) []models.Album {
	albums := make([]models.Album, 0, len(refs))
	for _, r := range refs {
		artist := r.Artist
		if artist == "" {
			artist = fallbackArtist
		}
		albums = append(albums, models.Album{
			ID:            synthid.Encode(r.Name, artist),
			Title:         r.Name,
			Artist:        models.ArtistRef{Name: artist},
			URL:           r.URL,
			ImageURL:      r.ImageURL,
			Genres:        []string{},
			MBID:          r.MBID,
			PlayCount:     r.PlayCount,
			ListenerCount: r.Listeners,
		})
	}
	return albums
}

func matchScore(r models.SimilarRef) *float64 {
	if r.Match <= 0 {
		return nil
	}
	return models.Ptr(r.Match)
}

// crossEnrich runs lookup for every item that needs it, at most p.workers at a time.
// Each item is written only by its own goroutine; failures leave the item as it was.
func crossEnrich[T any](ctx context.Context, p *Pipeline, items []T, needs func(*T) bool, lookup func(context.Context, *T) error) {
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i := range items {
		item := &items[i]
		if !needs(item) {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			if err := lookup(cctx, item); err != nil && ctx.Err() == nil {
				p.logger.Debug("cross-enrichment miss", "stage", StageCrossEnrich, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (p *Pipeline) crossEnrichSongs(ctx context.Context, userID string, songs []models.Song) {
	crossEnrich(ctx, p, songs,
		func(s *models.Song) bool { return s.ImageURL == "" || s.Popularity == 0 },
		func(ctx context.Context, s *models.Song) error {
			found, err := p.catalog.FindSong(ctx, userID, s.Title, s.Artist.Name)
			if err != nil {
				return err
			}
			if s.ImageURL == "" {
				s.ImageURL = found.ImageURL
			}
			if s.Popularity == 0 {
				s.Popularity = found.Popularity
			}
			return nil
		})
}

func (p *Pipeline) crossEnrichArtists(ctx context.Context, userID string, artists []models.Artist) {
	crossEnrich(ctx, p, artists,
		func(a *models.Artist) bool { return a.ImageURL == "" || a.Popularity == 0 },
		func(ctx context.Context, a *models.Artist) error {
			found, err := p.catalog.FindArtist(ctx, userID, a.Name)
			if err != nil {
				return err
			}
			if a.ImageURL == "" {
				a.ImageURL = found.ImageURL
			}
			if a.Popularity == 0 {
				a.Popularity = found.Popularity
			}
			return nil
		})
}

func (p *Pipeline) crossEnrichAlbums(ctx context.Context, userID string, albums []models.Album) {
	crossEnrich(ctx, p, albums,
		func(a *models.Album) bool { return a.ImageURL == "" || a.Popularity == 0 },
		func(ctx context.Context, a *models.Album) error {
			found, err := p.catalog.FindAlbum(ctx, userID, a.Title, a.Artist.Name)
			if err != nil {
				return err
			}
			if a.ImageURL == "" {
				a.ImageURL = found.ImageURL
			}
			if a.Popularity == 0 {
				a.Popularity = found.Popularity
			}
			return nil
		})
}
