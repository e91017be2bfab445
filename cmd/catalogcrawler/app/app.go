package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	cerrors "cloudeng.io/errors"
	"cloudeng.io/logging/ctxlog"
	"github.com/urfave/cli"

	"catalogcrawler/crawler"
	"catalogcrawler/internal/config"
	"catalogcrawler/internal/events"
	"catalogcrawler/internal/limiter"
	"catalogcrawler/internal/mirror"
	"catalogcrawler/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Run executes the CLI and writes the run summary as JSON to stdout.
// Logs go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, client *http.Client, clock limiter.Timer) error {
	app := cli.NewApp()
	app.Name = "catalogcrawler"
	app.Usage = "crawl a category-organized download site into a JSON catalog"
	app.UsageText = "catalogcrawler [global options]"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration file",
		},
		cli.StringFlag{
			Name:  "catalog",
			Usage: "catalog JSON file to merge into",
			Value: "source.json",
		},
		cli.StringFlag{
			Name:  "rejects",
			Usage: "JSON log of rejected entries",
			Value: "invalid_games.json",
		},
		cli.IntFlag{
			Name:  "max-items",
			Usage: "stop after this many processed items (0 = no limit)",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Usage: "global number of concurrent requests",
			Value: crawler.DefaultConcurrency,
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: crawler.DefaultTimeout,
		},
		cli.DurationFlag{
			Name:  "delay",
			Usage: "minimum spacing between requests (example: 200ms, 1s)",
		},
		cli.StringFlag{
			Name:  "user-agent",
			Usage: "custom user agent",
		},
		cli.StringSliceFlag{
			Name:  "category",
			Usage: "category root URL, repeatable; replaces the configured categories",
		},
		cli.BoolFlag{
			Name:  "skip-validation",
			Usage: "do not re-validate download links",
		},
		cli.BoolFlag{
			Name:  "checkpoint",
			Usage: "save the catalog after each category",
		},
		cli.StringFlag{
			Name:  "sqlite",
			Usage: "mirror the final catalog into this SQLite database",
		},
		cli.StringFlag{
			Name:  "listen",
			Usage: "serve /health, /catalog and /events on this address during the run",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "log-json",
			Usage: "write logs as JSON",
		},
		cli.BoolFlag{
			Name:  "dump-config",
			Usage: "print the effective configuration as YAML and exit",
		},
	}
	app.Action = func(c *cli.Context) error {
		logCtx, err := withLogger(ctx, stderr, c.String("log-level"), c.Bool("log-json"))
		if err != nil {
			return err
		}

		cfg, err := loadConfig(logCtx, c)
		if err != nil {
			return err
		}

		if c.Bool("dump-config") {
			data, err := cfg.Dump()
			if err != nil {
				return err
			}

			_, err = stdout.Write(data)

			return err
		}

		summary, err := run(logCtx, c, cfg, client, clock)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(stdout, "%s\n", data)

		return err
	}

	return app.Run(args)
}

func withLogger(ctx context.Context, w io.Writer, level string, asJSON bool) (context.Context, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return ctxlog.NewJSONLogger(ctx, w, opts), nil
	}

	return ctxlog.Context(ctx, slog.New(slog.NewTextHandler(w, opts))), nil
}

func loadConfig(ctx context.Context, c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx, c.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if categories := c.StringSlice("category"); len(categories) > 0 {
		cfg.Categories = categories
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	return cfg, nil
}

func run(ctx context.Context, c *cli.Context, cfg config.Config, client *http.Client, clock limiter.Timer) (crawler.Summary, error) {
	var (
		sink events.Sink = events.Log{}
		hub  *events.Hub
	)

	if c.String("listen") != "" {
		hub = events.NewHub()
		sink = events.Multi{events.Log{}, hub}
	}

	crawl, err := crawler.New(ctx, optionsFromCLI(c, cfg, client, clock, sink))
	if err != nil {
		return crawler.Summary{}, err
	}

	var errs cerrors.M

	if hub != nil {
		srv, err := server.Start(ctx, c.String("listen"), server.NewRouter(ctx, crawl.RunID(), crawl.Store(), hub), hub)
		if err != nil {
			return crawler.Summary{}, err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				ctxlog.Logger(ctx).Warn("operator server shutdown", "error", err)
			}
		}()
	}

	summary, err := crawl.Run(ctx)
	if err != nil {
		return summary, err
	}

	if path := c.String("sqlite"); path != "" {
		errs.Append(mirror.Sync(ctx, path, crawl.RunID(), crawl.Store().Entries(), clock.Now()))
	}

	return summary, errs.Err()
}

func optionsFromCLI(
	c *cli.Context,
	cfg config.Config,
	client *http.Client,
	clock limiter.Timer,
	sink events.Sink,
) crawler.Options {
	return crawler.Options{
		Name:           cfg.Name,
		Categories:     cfg.Categories,
		CatalogPath:    c.String("catalog"),
		RejectsPath:    c.String("rejects"),
		MaxItems:       c.Int("max-items"),
		Concurrency:    c.Int("concurrency"),
		Timeout:        c.Duration("timeout"),
		Delay:          c.Duration("delay"),
		UserAgent:      c.String("user-agent"),
		Headers:        cfg.Headers,
		Hosts:          cfg.Hosts,
		Signatures:     cfg.Signatures,
		IgnoredTitles:  cfg.IgnoredTitles,
		Selectors:      cfg.Selectors,
		SkipValidation: c.Bool("skip-validation"),
		Checkpoint:     c.Bool("checkpoint"),
		HTTPClient:     client,
		Clock:          clock,
		Sink:           sink,
	}
}
