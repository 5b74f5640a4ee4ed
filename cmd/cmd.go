// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Spotify user id of a linked account",
		Sources: cli.EnvVars("SPHERE_USER"),
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown, csv or json",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON (same as --format json)",
		},
	}
}

func pageFlags(limit int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of results (1-50)",
			Value:   limit,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of results to skip",
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "min-popularity", Usage: "Minimum popularity (0-100)"},
		&cli.IntFlag{Name: "max-popularity", Usage: "Maximum popularity (0-100)"},
		&cli.StringFlag{Name: "genre", Usage: "Keep results tagged with this genre"},
		&cli.IntFlag{Name: "min-year", Usage: "Earliest release year"},
		&cli.IntFlag{Name: "max-year", Usage: "Latest release year"},
		&cli.IntFlag{Name: "min-tempo", Usage: "Minimum tempo in BPM; no provider reports tempo yet, so every result passes"},
		&cli.IntFlag{Name: "max-tempo", Usage: "Maximum tempo in BPM; no provider reports tempo yet, so every result passes"},
	}
}

func listFlags(limit int) []cli.Flag {
	flags := append([]cli.Flag{userFlag()}, pageFlags(limit)...)
	flags = append(flags, filterFlags()...)
	return append(flags, outputFlags()...)
}

func entityFlags() []cli.Flag {
	return append([]cli.Flag{userFlag()}, outputFlags()...)
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if needed, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recently applied migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles account linking
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Manage linked Spotify accounts",
		Before: r.Bootstrap,
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Link a Spotify account through the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: defaultLinkTimeout,
					},
				},
				Action: r.AuthLink,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential state for a user",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:  "list",
				Usage: "List linked accounts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Only accounts with this email"},
				},
				Action: r.AuthList,
			},
		},
	}
}

// searchCommand searches the catalog
func searchCommand(r *Runner) *cli.Command {
	sub := func(name, usage string, action cli.ActionFunc) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
			Flags:     listFlags(20),
			Action:    action,
		}
	}

	return &cli.Command{
		Name:   "search",
		Usage:  "Search the Spotify catalog",
		Before: r.Bootstrap,
		Commands: []*cli.Command{
			sub("songs", "Search for songs", r.SearchSongs),
			sub("artists", "Search for artists", r.SearchArtists),
			sub("albums", "Search for albums", r.SearchAlbums),
		},
	}
}

func kindArguments() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "kind", UsageText: "song, artist or album"},
		&cli.StringArg{Name: "id", UsageText: "Spotify id or a fallback id such as creep--radiohead"},
	}
}

// getCommand fetches a single entity without enrichment
func getCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a song, artist or album by id",
		Before:    r.Bootstrap,
		Arguments: kindArguments(),
		Flags:     entityFlags(),
		Action:    r.Get,
	}
}

// detailsCommand fetches a single entity with Last.fm enrichment
func detailsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "details",
		Usage:     "Fetch a song, artist or album with play counts, tags and related items",
		Before:    r.Bootstrap,
		Arguments: kindArguments(),
		Flags:     entityFlags(),
		Action:    r.Details,
	}
}

// similarCommand lists related songs or artists
func similarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "similar",
		Usage:  "Find similar songs or artists",
		Before: r.Bootstrap,
		Commands: []*cli.Command{
			{
				Name:      "songs",
				Usage:     `Songs similar to "TITLE by ARTIST"`,
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     listFlags(20),
				Action:    r.SimilarSongs,
			},
			{
				Name:      "artists",
				Usage:     "Artists similar to NAME",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     listFlags(20),
				Action:    r.SimilarArtists,
			},
		},
	}
}

// tracksCommand lists an album's tracks
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tracks",
		Usage:     "List the tracks of an album",
		Before:    r.Bootstrap,
		Arguments: []cli.Argument{&cli.StringArg{Name: "album"}},
		Flags:     append(append([]cli.Flag{userFlag()}, pageFlags(50)...), outputFlags()...),
		Action:    r.AlbumTracks,
	}
}

// chartsCommand lists the top songs in a country
func chartsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "charts",
		Usage:     "Top songs in a country (name as Last.fm knows it, e.g. \"united kingdom\")",
		Before:    r.Bootstrap,
		Arguments: []cli.Argument{&cli.StringArg{Name: "country"}},
		Flags:     listFlags(20),
		Action:    r.Charts,
	}
}

// statsCommand shows a linked user's top tracks and artists
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show your top tracks and artists (requires a linked account)",
		Before: r.Bootstrap,
		Flags: append([]cli.Flag{
			userFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Items per list", Value: 10},
		}, outputFlags()...),
		Action: r.Stats,
	}
}
