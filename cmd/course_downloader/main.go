package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/config"
	"github.com/italolelis/course_downloader/internal/course"
	"github.com/italolelis/course_downloader/internal/downloader"
	"github.com/italolelis/course_downloader/internal/logctx"
	"github.com/italolelis/course_downloader/internal/notifier"
	"github.com/italolelis/course_downloader/internal/report"
	"github.com/italolelis/course_downloader/internal/resolver"
	"github.com/italolelis/course_downloader/internal/storage/sqlite"
	"github.com/italolelis/course_downloader/internal/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

const catalogTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	courseFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "course", Aliases: []string{"c"}, Usage: "course name", Required: true}
	}
	selectionFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "download a single module by id"},
			&cli.StringFlag{Name: "clip", Usage: "download a single clip by id"},
		}
	}
	transferFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory (overrides OUTPUT_DIR)"},
			&cli.DurationFlag{Name: "timeout", Usage: "per request download timeout (overrides DOWNLOAD_TIMEOUT)"},
			&cli.IntFlag{Name: "parallel", Aliases: []string{"p"}, Usage: "clips downloaded at once (overrides MAX_PARALLEL)"},
		}
	}

	return &cli.App{
		Name:    "course_downloader",
		Usage:   "download course videos from ranked delivery sources",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "download",
				Usage: "download a course, one of its modules or a single clip",
				Flags: append(append([]cli.Flag{courseFlag()}, selectionFlags()...), transferFlags()...),
				Action: func(c *cli.Context) error {
					if c.IsSet("module") && c.IsSet("clip") {
						return errors.New("--module and --clip cannot be used together")
					}

					return runCommand(c, func(ctx context.Context, d *course.Downloader) error {
						var (
							summary course.Summary
							err     error
						)

						switch {
						case c.IsSet("clip"):
							summary, err = d.DownloadClip(ctx, c.String("course"), c.String("clip"))
						case c.IsSet("module"):
							summary, err = d.DownloadModule(ctx, c.String("course"), c.String("module"))
						default:
							summary, err = d.DownloadCourse(ctx, c.String("course"))
						}

						logctx.LoggerFromContext(ctx).InfoContext(ctx, "run finished", "summary", summary.String())

						return err
					})
				},
			},
			{
				Name:  "list",
				Usage: "print the modules and clips of a course",
				Flags: append([]cli.Flag{courseFlag()}, selectionFlags()...),
				Action: func(c *cli.Context) error {
					if c.IsSet("module") || c.IsSet("clip") {
						return errors.New("list cannot be used with --clip or --module")
					}

					return runCommand(c, func(ctx context.Context, d *course.Downloader) error {
						return d.List(ctx, c.String("course"))
					})
				},
			},
			{
				Name:  "retry-failed",
				Usage: "download again every clip of a course that failed in an earlier run",
				Flags: append([]cli.Flag{courseFlag()}, transferFlags()...),
				Action: func(c *cli.Context) error {
					return runCommand(c, func(ctx context.Context, d *course.Downloader) error {
						summary, err := d.RetryFailed(ctx, c.String("course"))
						if errors.Is(err, course.ErrNothingFailed) {
							logctx.LoggerFromContext(ctx).InfoContext(ctx, "nothing to retry", "course", c.String("course"))

							return nil
						}

						logctx.LoggerFromContext(ctx).InfoContext(ctx, "run finished", "summary", summary.String())

						return err
					})
				},
			},
		},
	}
}

// runCommand loads the configuration, wires every dependency and hands a ready Downloader to fn.
func runCommand(c *cli.Context, fn func(ctx context.Context, d *course.Downloader) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = logctx.WithRunID(logctx.WithLogger(ctx, logger), runID)

	logger.InfoContext(ctx, "course downloader starting...", "command", c.Command.Name, "log_level", cfg.LogLevel)

	return run(ctx, cfg, runID, fn)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("out") {
		cfg.OutputDir = c.String("out")
	}

	if c.IsSet("timeout") {
		cfg.DownloadTimeout = c.Duration("timeout")
	}

	if c.IsSet("parallel") {
		cfg.MaxParallel = c.Int("parallel")
	}
}

func run(ctx context.Context, cfg *config.Config, runID string, fn func(ctx context.Context, d *course.Downloader) error) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to shutdown telemetry", "err", err)
		}
	}()

	if cfg.MetricsAddress != "" {
		stopServer := startMetricsServer(ctx, cfg, tel)
		defer stopServer()
	}

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		logger.ErrorContext(ctx, "DB error", "err", err)

		return err
	}
	defer database.Close()

	repo := sqlite.NewInstrumentedDownloadRepository(database, tel)

	// =========================================================================
	// Start Clients
	catalogClient := catalog.NewInstrumentedClient(
		catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogToken, newHTTPClient(catalogTimeout)),
		tel,
	)

	var opts []downloader.Option
	if cfg.ProgressBar && cfg.MaxParallel == 1 {
		opts = append(opts, downloader.WithProgressBar(os.Stderr))
	}

	fetcher := downloader.NewInstrumentedDownloader(
		downloader.NewHTTPDownloader(newHTTPClient(cfg.DownloadTimeout), tel, opts...),
		tel,
	)

	// =========================================================================
	// Start Reporting
	console := report.NewConsole(os.Stdout, !cfg.NoColor)
	notif := buildNotifier(cfg)
	sink := report.Multi{console, report.Log{}, report.Span{}, report.Notify{Notifier: notif}}

	d := course.NewDownloader(
		catalogClient,
		resolver.New(fetcher, sink, tel),
		repo,
		console,
		notif,
		tel,
		course.Options{
			OutputDir:       cfg.OutputDir,
			MaxParallel:     cfg.MaxParallel,
			RunID:           runID,
			ClaimTTL:        cfg.ClaimTTL,
			StalePartialAge: cfg.StalePartialAge,
		},
	)

	logger.InfoContext(ctx, "ready",
		"output_dir", cfg.OutputDir,
		"max_parallel", cfg.MaxParallel,
		"download_timeout", cfg.DownloadTimeout.String(),
	)

	return fn(ctx, d)
}

// newLogger builds the process logger. Records go to stderr and, when LOG_FILE is set, are
// also appended to that file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	handler := newHandler(os.Stderr, cfg.LogFormat, opts)
	closeLog := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
		closeLog = func() { _ = f.Close() }
	}

	return slog.New(logctx.NewTraceHandler(handler)), closeLog, nil
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}

	return slog.NewJSONHandler(w, opts)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.DiscordWebhookURL == "" {
		return notifier.Nop{}
	}

	return notifier.NewDiscordNotifier(cfg.DiscordWebhookURL, newHTTPClient(cfg.Web.WriteTimeout))
}

// startMetricsServer serves /metrics and /healthz until the returned function is called.
func startMetricsServer(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) func() {
	logger := logctx.LoggerFromContext(ctx)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID, telemetry.HTTPLogging, telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Method(http.MethodGet, "/metrics", tel.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.MetricsAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.InfoContext(ctx, "Initializing metrics server", "host", cfg.MetricsAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server error", "err", err)
		}
	}()

	return func() {
		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				logger.ErrorContext(ctx, "could not stop server", "err", err)
			}
		}
	}
}
