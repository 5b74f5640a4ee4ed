package tasks

import (
	"context"
	"errors"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
)

// FactsResult is the outcome of one supplementary lookup.
type FactsResult struct {
	Status FactsStatus
	Facts  *models.Facts // set only when Status is FactsOK
	Err    error         // cause of FactsFailed, or the provider's not-found error for FactsEmpty
}

func newFactsResult(facts *models.Facts, err error) FactsResult {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return FactsResult{Status: FactsEmpty, Err: err}
	case err != nil:
		return FactsResult{Status: FactsFailed, Err: err}
	case facts.IsEmpty():
		return FactsResult{Status: FactsEmpty}
	}
	return FactsResult{Status: FactsOK, Facts: facts}
}

// fetchFacts runs lookup against the enricher with its own deadline.
func (p *Pipeline) fetchFacts(ctx context.Context, lookup func(context.Context, Enricher) (*models.Facts, error)) FactsResult {
	if p.enricher == nil {
		return FactsResult{Status: FactsEmpty}
	}

	facts, err := within(ctx, p.timeout, func(ctx context.Context) (*models.Facts, error) {
		return lookup(ctx, p.enricher)
	})
	return newFactsResult(facts, err)
}

// fetchRefs runs a list lookup against the enricher, absorbing failures into an empty list.
func (p *Pipeline) fetchRefs(ctx context.Context, stage Stage, lookup func(context.Context, Enricher) ([]models.SimilarRef, error), kv ...any) []models.SimilarRef {
	if p.enricher == nil {
		return nil
	}

	refs, err := within(ctx, p.timeout, func(ctx context.Context) ([]models.SimilarRef, error) {
		return lookup(ctx, p.enricher)
	})
	if err != nil {
		if ctx.Err() == nil {
			p.softFail(stage, err, kv...)
		}
		return nil
	}
	return refs
}

func (p *Pipeline) logFacts(result FactsResult, kv ...any) {
	switch result.Status {
	case FactsFailed:
		p.softFail(StageFacts, result.Err, kv...)
	case FactsEmpty:
		p.logger.Debug("no supplementary facts", kv...)
	}
}

// mergeSong copies facts onto fields the song does not already carry.
func mergeSong(s *models.Song, f *models.Facts) {
	if s.PlayCount == nil {
		s.PlayCount = f.PlayCount
	}
	if s.ListenerCount == nil {
		s.ListenerCount = f.ListenerCount
	}
	if s.Description == "" {
		s.Description = f.Description
	}
	if s.MatchScore == nil {
		s.MatchScore = f.MatchScore
	}
	s.Genres = models.MergeGenres(s.Genres, f.Tags)
}

func mergeArtist(a *models.Artist, f *models.Facts) {
	if a.PlayCount == nil {
		a.PlayCount = f.PlayCount
	}
	if a.ListenerCount == nil {
		a.ListenerCount = f.ListenerCount
	}
	if a.Description == "" {
		a.Description = f.Description
	}
	if a.MatchScore == nil {
		a.MatchScore = f.MatchScore
	}
	a.Genres = models.MergeGenres(a.Genres, f.Tags)
}

func mergeAlbum(a *models.Album, f *models.Facts) {
	if a.PlayCount == nil {
		a.PlayCount = f.PlayCount
	}
	if a.ListenerCount == nil {
		a.ListenerCount = f.ListenerCount
	}
	if a.Description == "" {
		a.Description = f.Description
	}
	a.Genres = models.MergeGenres(a.Genres, f.Tags)
}
