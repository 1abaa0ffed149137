package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-openlibrary-books/catalog"
	"github.com/aluiziolira/go-openlibrary-books/config"
	"github.com/aluiziolira/go-openlibrary-books/export"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
	"github.com/aluiziolira/go-openlibrary-books/models"
	"github.com/aluiziolira/go-openlibrary-books/openlibrary"
	"github.com/aluiziolira/go-openlibrary-books/parser"
	"github.com/aluiziolira/go-openlibrary-books/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newApp builds the command tree. clientOpts are applied to every Open
// Library client the commands create.
func newApp(clientOpts ...openlibrary.Option) *cli.App {
	defaults := config.DefaultConfig()
	r := &runner{clientOpts: clientOpts}
	return &cli.App{
		Name:    "books",
		Usage:   "Browse Open Library books by subject",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"BOOKS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Open Library host",
				Value:   defaults.BaseURL,
				EnvVars: []string{"BOOKS_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "subject",
				Usage:   "Subject to list",
				Value:   defaults.Subject,
				EnvVars: []string{"BOOKS_SUBJECT"},
			},
			&cli.IntFlag{
				Name:    "limit",
				Usage:   "Number of books to fetch",
				Value:   defaults.PageSize,
				EnvVars: []string{"BOOKS_LIMIT"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Per-request timeout",
				Value:   defaults.Timeout,
				EnvVars: []string{"BOOKS_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Usage:   "Retries for transient failures",
				Value:   defaults.MaxRetries,
				EnvVars: []string{"BOOKS_MAX_RETRIES"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"BOOKS_VERBOSE"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Prometheus metrics listen address (e.g. :9090)",
				EnvVars: []string{"BOOKS_METRICS_ADDR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the first page of books for the subject",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Refresh the list once after the initial load",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text, csv, json, or dual",
						Value: defaults.OutputFormat,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file for csv, json and dual formats",
					},
				},
				Action: r.listBooks,
			},
			{
				Name:      "show",
				Usage:     "Show the details of a work",
				ArgsUsage: "WORK_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title shown while the detail loads",
					},
					&cli.StringSliceFlag{
						Name:  "author",
						Usage: "Author shown while the detail loads (repeatable)",
					},
					&cli.IntFlag{
						Name:  "cover-id",
						Usage: "Cover id shown while the detail loads",
					},
					&cli.IntFlag{
						Name:  "year",
						Usage: "First publish year shown while the detail loads",
					},
				},
				Action: r.showBook,
			},
			{
				Name:      "cover",
				Usage:     "Print the cover image URL for a cover id",
				ArgsUsage: "COVER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "size",
						Usage: "Cover size: S, M or L",
						Value: string(parser.CoverMedium),
					},
				},
				Action: printCover,
			},
		},
	}
}

type runner struct {
	clientOpts []openlibrary.Option
}

// session bundles what every command needs.
type session struct {
	cfg     *config.Config
	service *catalog.Service
	metrics *metrics.Metrics
	covers  parser.CoverResolver
	logger  *slog.Logger

	metricsServer *http.Server
}

func (r *runner) openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	m := metrics.NewMetrics()
	opts := append([]openlibrary.Option{openlibrary.WithMetrics(m)}, r.clientOpts...)
	client, err := openlibrary.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising client: %w", err)
	}
	service, err := catalog.NewService(cfg, client, m)
	if err != nil {
		return nil, fmt.Errorf("initialising catalog: %w", err)
	}

	s := &session{
		cfg:     cfg,
		service: service,
		metrics: m,
		covers:  parser.CoverResolver{BaseURL: cfg.CoverBaseURL},
		logger:  logger,
	}
	s.startMetricsServer()
	return s, nil
}

func (s *session) queryOptions() []query.Option {
	return []query.Option{query.WithMetrics(s.metrics), query.WithLogger(s.logger)}
}

func (s *session) startMetricsServer() {
	if s.cfg.MetricsAddr == "" {
		return
	}
	s.metricsServer = &http.Server{
		Addr:    s.cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", s.cfg.MetricsAddr))
}

func (s *session) close() {
	if s.metricsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

// loadConfig reads the optional config file and lets flags and BOOKS_*
// variables override it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("subject") {
		cfg.Subject = c.String("subject")
	}
	if c.IsSet("limit") {
		cfg.PageSize = c.Int("limit")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("format") {
		cfg.OutputFormat = strings.ToLower(c.String("format"))
	}
	if c.IsSet("output") {
		cfg.OutputFile = c.String("output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (r *runner) listBooks(c *cli.Context) error {
	s, err := r.openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	slog.Debug("loading books",
		slog.String("subject", s.cfg.Subject),
		slog.Int("limit", s.cfg.PageSize),
	)

	list := query.NewBookList(c.Context, s.service, s.queryOptions()...)
	defer list.Close()
	list.Wait()

	if c.Bool("refresh") {
		list.Refresh()
		list.Wait()
	}
	if err := c.Context.Err(); err != nil {
		return err
	}

	state := list.State()
	if state.Err != nil && len(state.Books) == 0 {
		return state.Err
	}

	if s.cfg.OutputFormat == "text" {
		printBooks(c.App.Writer, state.Books, s.covers)
	} else if err := exportBooks(s, state.Books); err != nil {
		return err
	}

	if state.Err != nil {
		printErrorLine(c.App.ErrWriter, state.Err.Message)
	}
	return nil
}

func exportBooks(s *session, books []models.BookSummary) (err error) {
	books, skipped := parser.DedupeSummaries(books)
	if len(skipped) > 0 {
		slog.Warn("skipped records", slog.Any("reasons", skipped))
	}

	writer, err := export.New(s.cfg.OutputFormat, s.cfg.OutputFile, s.covers)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close writer: %w", closeErr)
		}
	}()

	if err := writer.Write(books); err != nil {
		return err
	}
	if len(books) > 0 {
		if err := writer.Validate(); err != nil {
			return fmt.Errorf("output validation failed: %w", err)
		}
	}

	slog.Info("books exported",
		slog.Int("count", len(books)),
		slog.String("format", s.cfg.OutputFormat),
		slog.String("output", s.cfg.OutputFile),
	)
	return nil
}

func (r *runner) showBook(c *cli.Context) error {
	workID := parser.NormalizeWorkID(strings.TrimSpace(c.Args().First()))
	if workID == "" {
		return fmt.Errorf("show requires a WORK_ID argument")
	}

	s, err := r.openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	detail := query.NewBookDetail(c.Context, s.service, workID, seedFromFlags(c, workID), s.queryOptions()...)
	defer detail.Close()
	detail.Wait()
	if err := c.Context.Err(); err != nil {
		return err
	}

	state := detail.State()
	if state.Book == nil {
		if state.Err != nil {
			return state.Err
		}
		return fmt.Errorf("no details for %s", workID)
	}

	printDetail(c.App.Writer, *state.Book, s.covers)
	if state.Err != nil {
		printErrorLine(c.App.ErrWriter, state.Err.Message)
	}
	return nil
}

func seedFromFlags(c *cli.Context, workID models.WorkID) *models.BookSummary {
	if !c.IsSet("title") {
		return nil
	}
	seed := &models.BookSummary{
		ID:          workID,
		Title:       c.String("title"),
		Authors:     c.StringSlice("author"),
		SubjectTags: []string{},
	}
	if seed.Authors == nil {
		seed.Authors = []string{}
	}
	if c.IsSet("cover-id") {
		cover := c.Int("cover-id")
		seed.CoverID = &cover
	}
	if c.IsSet("year") {
		year := c.Int("year")
		seed.FirstPublishYear = &year
	}
	return seed
}

func printCover(c *cli.Context) error {
	raw := strings.TrimSpace(c.Args().First())
	if raw == "" {
		return fmt.Errorf("cover requires a COVER_ID argument")
	}
	coverID, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid cover id %q: %w", raw, err)
	}
	size, err := parser.ParseCoverSize(c.String("size"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	coverURL, ok := parser.CoverResolver{BaseURL: cfg.CoverBaseURL}.URL(&coverID, size)
	if !ok {
		return fmt.Errorf("cover id %d has no image", coverID)
	}
	fmt.Fprintln(c.App.Writer, coverURL)
	return nil
}

func printBooks(w io.Writer, books []models.BookSummary, covers parser.CoverResolver) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	for i, book := range books {
		fmt.Fprintf(w, "%2d. %s\n", i+1, book.Title)
		if len(book.Authors) > 0 {
			fmt.Fprintf(w, "    by %s\n", strings.Join(book.Authors, ", "))
		}
		if book.FirstPublishYear != nil {
			fmt.Fprintf(w, "    first published %d\n", *book.FirstPublishYear)
		}
		if coverURL, ok := covers.URL(book.CoverID, parser.CoverMedium); ok {
			fmt.Fprintf(w, "    cover %s\n", coverURL)
		}
		fmt.Fprintf(w, "    id %s\n", book.ID)
	}
}

func printDetail(w io.Writer, book models.BookDetail, covers parser.CoverResolver) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, book.Title)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "  ID:         %s\n", book.ID)
	if len(book.Authors) > 0 {
		fmt.Fprintf(w, "  Authors:    %s\n", strings.Join(book.Authors, ", "))
	}
	if book.FirstPublishYear != nil {
		fmt.Fprintf(w, "  Published:  %d\n", *book.FirstPublishYear)
	}
	if coverURL, ok := covers.URL(book.CoverID, parser.CoverLarge); ok {
		fmt.Fprintf(w, "  Cover:      %s\n", coverURL)
	}
	if len(book.SubjectTags) > 0 {
		fmt.Fprintf(w, "  Subjects:   %s\n", strings.Join(book.SubjectTags, ", "))
	}
	if book.Description != nil {
		fmt.Fprintf(w, "\n%s\n", *book.Description)
	}
	if book.Excerpt != nil {
		fmt.Fprintf(w, "\n  \"%s\"\n", *book.Excerpt)
	}
}

func printErrorLine(w io.Writer, message string) {
	fmt.Fprintf(w, "! %s\n", message)
}

// newLogger writes to stderr; stdout carries command output.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
