package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/sphere/internal/formatter"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/urfave/cli/v3"
)

// SearchSongs searches the catalog for songs.
func (r *Runner) SearchSongs(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "query")
	page, err := r.pipeline.SearchSongs(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderSongs(r.output, f, fmt.Sprintf("Songs matching %q", q.Text), page)
}

// SearchArtists searches the catalog for artists.
func (r *Runner) SearchArtists(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "query")
	page, err := r.pipeline.SearchArtists(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderArtists(r.output, f, fmt.Sprintf("Artists matching %q", q.Text), page)
}

// SearchAlbums searches the catalog for albums.
func (r *Runner) SearchAlbums(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "query")
	page, err := r.pipeline.SearchAlbums(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderAlbums(r.output, f, fmt.Sprintf("Albums matching %q", q.Text), page)
}

func entityArgs(cmd *cli.Command) (models.Kind, string, error) {
	kind, ok := models.ParseKind(strings.ToLower(cmd.StringArg("kind")))
	if !ok {
		return "", "", fmt.Errorf("%w: kind must be song, artist or album, got %q", shared.ErrInvalidArgument, cmd.StringArg("kind"))
	}
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", "", fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	return kind, id, nil
}

// Get fetches an entity from the catalog without enrichment.
func (r *Runner) Get(ctx context.Context, cmd *cli.Command) error {
	kind, id, err := entityArgs(cmd)
	if err != nil {
		return err
	}
	f, err := format(cmd)
	if err != nil {
		return err
	}

	entity, err := r.pipeline.GetEntityByID(ctx, cmd.String("user"), kind, id)
	if err != nil {
		return err
	}

	switch kind {
	case models.KindArtist:
		return formatter.RenderArtist(r.output, f, entity.Artist, "")
	case models.KindAlbum:
		return formatter.RenderAlbum(r.output, f, entity.Album, "")
	}
	return formatter.RenderSong(r.output, f, entity.Song, "")
}

// Details fetches an entity and merges its Last.fm facts and related items.
func (r *Runner) Details(ctx context.Context, cmd *cli.Command) error {
	kind, id, err := entityArgs(cmd)
	if err != nil {
		return err
	}
	f, err := format(cmd)
	if err != nil {
		return err
	}

	entity, facts, err := r.pipeline.GetEntityDetails(ctx, cmd.String("user"), kind, id)
	if err != nil {
		return err
	}

	note := factsNote(facts)
	switch kind {
	case models.KindArtist:
		return formatter.RenderArtist(r.output, f, entity.Artist, note)
	case models.KindAlbum:
		return formatter.RenderAlbum(r.output, f, entity.Album, note)
	}
	return formatter.RenderSong(r.output, f, entity.Song, note)
}

// AlbumTracks lists an album's tracks in order.
func (r *Runner) AlbumTracks(ctx context.Context, cmd *cli.Command) error {
	f, err := format(cmd)
	if err != nil {
		return err
	}
	q := query(cmd, "album")
	page, err := r.pipeline.GetAlbumTracks(ctx, q)
	if err != nil {
		return err
	}
	return formatter.RenderSongs(r.output, f, "Tracks", page)
}
