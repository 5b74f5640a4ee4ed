package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/auth"
	"github.com/desertthunder/sphere/internal/formatter"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/repositories"
	"github.com/desertthunder/sphere/internal/services"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/desertthunder/sphere/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	users      *repositories.UserRepository
	manager    *auth.Manager
	spotify    *services.SpotifyService
	pipeline   *tasks.Pipeline
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Dependencies left nil are built from the configuration by [Runner.Bootstrap].
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Users      *repositories.UserRepository
	Manager    *auth.Manager
	Spotify    *services.SpotifyService
	Pipeline   *tasks.Pipeline
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Clock      func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		users:      opts.Users,
		manager:    opts.Manager,
		spotify:    opts.Spotify,
		pipeline:   opts.Pipeline,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Clock,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, getCommand, detailsCommand,
		similarCommand, tracksCommand, chartsCommand, statsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Bootstrap loads configuration and wires the store, token manager, providers and pipeline.
// Dependencies supplied through [RunnerOpts] are kept.
func (r *Runner) Bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.pipeline != nil {
		return ctx, nil
	}

	if err := shared.LoadEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	config, err := shared.ResolveConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config

	if err := shared.SetLogLevel(r.logger, config.Log.Level); err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}

	r.db, err = shared.OpenDatabase(config.Database)
	if err != nil {
		return ctx, err
	}
	r.users = repositories.NewUserRepository(r.db)

	spotifyCfg := config.Credentials.Spotify
	r.manager, err = auth.NewManager(auth.Options{
		ClientID:     spotifyCfg.ClientID,
		ClientSecret: spotifyCfg.ClientSecret,
		RedirectURL:  spotifyCfg.RedirectURI,
		Store:        r.users,
		HTTPClient:   r.httpClient,
		Margin:       config.Enrichment.TokenMargin.Duration,
		Logger:       r.logger,
	})
	if err != nil {
		return ctx, err
	}

	r.spotify, err = services.NewSpotifyService(services.SpotifyOptions{
		Tokens:     r.manager,
		HTTPClient: r.httpClient,
		Market:     spotifyCfg.Market,
		Logger:     r.logger,
	})
	if err != nil {
		return ctx, err
	}

	lastfmCfg := config.Credentials.LastFM
	lastfm, err := services.NewLastFMService(services.LastFMOptions{
		APIKey:            lastfmCfg.APIKey,
		BaseURL:           lastfmCfg.BaseURL,
		HTTPClient:        r.httpClient,
		RequestsPerSecond: config.Providers.LastFMRate,
		Burst:             config.Providers.LastFMBurst,
		Logger:            r.logger,
	})
	if err != nil {
		return ctx, err
	}

	r.pipeline, err = tasks.NewPipeline(tasks.Options{
		Catalog:        r.spotify,
		Enricher:       lastfm,
		RequestTimeout: config.Providers.RequestTimeout.Duration,
		SimilarLimit:   config.Enrichment.SimilarLimit,
		Workers:        config.Enrichment.CrossEnrichWorkers,
		Logger:         r.logger,
	})
	if err != nil {
		return ctx, err
	}

	r.logger.Debug("runner ready", "database", config.Database.Path)
	return ctx, nil
}

// Close releases the database handle opened by [Runner.Bootstrap].
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// format resolves --json and --format into an output [formatter.Format].
func format(cmd *cli.Command) (formatter.Format, error) {
	if cmd.Bool("json") {
		return formatter.FormatJSON, nil
	}
	return formatter.ParseFormat(cmd.String("format"))
}

// query builds a pipeline [tasks.Query] from the command's argument and flags.
func query(cmd *cli.Command, arg string) tasks.Query {
	return tasks.Query{
		UserID:  cmd.String("user"),
		Text:    cmd.StringArg(arg),
		Limit:   int(cmd.Int("limit")),
		Offset:  int(cmd.Int("offset")),
		Filters: filters(cmd),
	}
}

// filters returns nil when no filter flag is set.
func filters(cmd *cli.Command) *models.SearchFilters {
	f := &models.SearchFilters{Genre: cmd.String("genre")}
	bounds := map[string]**int{
		"min-popularity": &f.MinPopularity,
		"max-popularity": &f.MaxPopularity,
		"min-year":       &f.MinYear,
		"max-year":       &f.MaxYear,
		"min-tempo":      &f.MinTempo,
		"max-tempo":      &f.MaxTempo,
	}
	for name, field := range bounds {
		if cmd.IsSet(name) {
			*field = models.Ptr(int(cmd.Int(name)))
		}
	}
	if f.IsZero() {
		return nil
	}
	return f
}

// factsNote describes a missing or failed enrichment for human-readable output.
func factsNote(facts tasks.FactsResult) string {
	switch facts.Status {
	case tasks.FactsFailed:
		return "Last.fm data unavailable right now"
	case tasks.FactsEmpty:
		return "No Last.fm data for this entry"
	}
	return ""
}

// friendlyError rewrites errors users can act on. Others pass through unchanged.
func friendlyError(err error) error {
	switch {
	case errors.Is(err, shared.ErrAuthRequired):
		return fmt.Errorf("this command needs a linked account, run `sphere auth link` first: %w", err)
	case errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("nothing matched that id or name: %w", err)
	case errors.Is(err, shared.ErrInvalidQuery):
		return fmt.Errorf("check the query and try again: %w", err)
	case errors.Is(err, shared.ErrProviderUnavailable):
		return fmt.Errorf("a music provider is unavailable, try again shortly: %w", err)
	}
	return err
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
