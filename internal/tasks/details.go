package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"golang.org/x/sync/errgroup"
)

// GetSongDetails resolves a song and merges its supplementary facts.
//
// Only the catalog lookup can fail the call. If ctx is cancelled while enrichment is
// in flight the partial result is dropped and ctx's error returned.
func (p *Pipeline) GetSongDetails(ctx context.Context, userID, id string) (*models.Song, FactsResult, error) {
	song, err := resolve(ctx, p, models.KindSong, id, func(ctx context.Context) (*models.Song, error) {
		return p.catalog.GetSong(ctx, userID, id)
	})
	if err != nil {
		return nil, FactsResult{}, err
	}

	facts := p.fetchFacts(ctx, func(ctx context.Context, e Enricher) (*models.Facts, error) {
		return e.TrackFacts(ctx, song.Title, song.Artist.Name)
	})
	if err := ctx.Err(); err != nil {
		return nil, FactsResult{}, err
	}

	p.logFacts(facts, "song", song.ID)
	enriched := *song
	if facts.Status == FactsOK {
		mergeSong(&enriched, facts.Facts)
	}
	return &enriched, facts, nil
}

// GetAlbumDetails resolves an album with its tracks and merges its supplementary facts.
func (p *Pipeline) GetAlbumDetails(ctx context.Context, userID, id string) (*models.Album, FactsResult, error) {
	album, err := resolve(ctx, p, models.KindAlbum, id, func(ctx context.Context) (*models.Album, error) {
		return p.catalog.GetAlbum(ctx, userID, id)
	})
	if err != nil {
		return nil, FactsResult{}, err
	}

	facts := p.fetchFacts(ctx, func(ctx context.Context, e Enricher) (*models.Facts, error) {
		return e.AlbumFacts(ctx, album.Title, album.Artist.Name)
	})
	if err := ctx.Err(); err != nil {
		return nil, FactsResult{}, err
	}

	p.logFacts(facts, "album", album.ID)
	enriched := *album
	if facts.Status == FactsOK {
		mergeAlbum(&enriched, facts.Facts)
	}
	return &enriched, facts, nil
}

// GetArtistDetails resolves an artist and fans out for facts, top tracks, top albums
// and similar artists. The related lists are cross-enriched from the catalog.
func (p *Pipeline) GetArtistDetails(ctx context.Context, userID, id string) (*models.Artist, FactsResult, error) {
	artist, err := resolve(ctx, p, models.KindArtist, id, func(ctx context.Context) (*models.Artist, error) {
		return p.catalog.GetArtist(ctx, userID, id)
	})
	if err != nil {
		return nil, FactsResult{}, err
	}

	name := artist.Name
	var (
		facts                      FactsResult
		topTracks, topAlbums, sims []models.SimilarRef
	)

	// Branches never return errors; each absorbs its own failure.
	var g errgroup.Group
	g.Go(func() error {
		facts = p.fetchFacts(ctx, func(ctx context.Context, e Enricher) (*models.Facts, error) {
			return e.ArtistFacts(ctx, name)
		})
		return nil
	})
	g.Go(func() error {
		topTracks = p.fetchRefs(ctx, StageTopTracks, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
			return e.ArtistTopTracks(ctx, name, p.similar)
		}, "artist", name)
		return nil
	})
	g.Go(func() error {
		topAlbums = p.fetchRefs(ctx, StageTopAlbums, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
			return e.ArtistTopAlbums(ctx, name, p.similar)
		}, "artist", name)
		return nil
	})
	g.Go(func() error {
		sims = p.fetchRefs(ctx, StageSimilar, func(ctx context.Context, e Enricher) ([]models.SimilarRef, error) {
			return e.SimilarArtists(ctx, name, p.similar)
		}, "artist", name)
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, FactsResult{}, err
	}

	p.logFacts(facts, "artist", artist.ID)
	enriched := *artist
	if facts.Status == FactsOK {
		mergeArtist(&enriched, facts.Facts)
		if len(sims) == 0 {
			sims = facts.Facts.Similar
		}
	}

	enriched.TopTracks = songsFromRefs(topTracks)
	enriched.TopAlbums = albumsFromRefs(topAlbums, name)
	enriched.SimilarArtists = artistsFromRefs(sims)

	var cg errgroup.Group
	cg.Go(func() error { p.crossEnrichSongs(ctx, userID, enriched.TopTracks); return nil })
	cg.Go(func() error { p.crossEnrichAlbums(ctx, userID, enriched.TopAlbums); return nil })
	cg.Go(func() error { p.crossEnrichArtists(ctx, userID, enriched.SimilarArtists); return nil })
	cg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, FactsResult{}, err
	}
	return &enriched, facts, nil
}

// GetEntityDetails dispatches to the details operation for kind.
func (p *Pipeline) GetEntityDetails(ctx context.Context, userID string, kind models.Kind, id string) (*Entity, FactsResult, error) {
	entity := &Entity{Kind: kind}
	var (
		facts FactsResult
		err   error
	)
	switch kind {
	case models.KindSong:
		entity.Song, facts, err = p.GetSongDetails(ctx, userID, id)
	case models.KindArtist:
		entity.Artist, facts, err = p.GetArtistDetails(ctx, userID, id)
	case models.KindAlbum:
		entity.Album, facts, err = p.GetAlbumDetails(ctx, userID, id)
	default:
		return nil, FactsResult{}, fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidArgument, kind)
	}
	if err != nil {
		return nil, FactsResult{}, err
	}
	return entity, facts, nil
}
