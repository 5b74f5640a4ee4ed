package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/sphere/internal/formatter"
	"github.com/urfave/cli/v3"
)

// SimilarSongs lists songs similar to a "TITLE by ARTIST" query.
func (r *Runner) SimilarSongs(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "query")
	page, err := r.pipeline.GetSimilarSongs(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderSongs(r.output, f, fmt.Sprintf("Similar to %s", q.Text), page)
}

// SimilarArtists lists artists similar to the named one.
func (r *Runner) SimilarArtists(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "query")
	page, err := r.pipeline.GetSimilarArtists(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderArtists(r.output, f, fmt.Sprintf("Artists like %s", q.Text), page)
}

// Charts lists the most played songs in a country.
func (r *Runner) Charts(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "country")
	page, err := r.pipeline.TopSongsByCountry(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderSongs(r.output, f, fmt.Sprintf("Top songs in %s", q.Text), page)
}

// Stats shows the linked user's top tracks and artists.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	stats, err := r.pipeline.GetTopStats(ctx, cmd.String("user"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return formatter.RenderTopStats(r.output, f, stats)
}
