// Package harvest runs one end-to-end harvest: it acquires a browser
// session, filters the screener by region, walks every results page and
// streams unique rows into an output sink as each page is read.
package harvest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/diagnostics"
	"github.com/jmylchreest/screenharvest/internal/extractor"
	"github.com/jmylchreest/screenharvest/internal/logger"
	"github.com/jmylchreest/screenharvest/internal/output"
	"github.com/jmylchreest/screenharvest/internal/record"
	"github.com/jmylchreest/screenharvest/internal/screener"
)

// Session is the scoped browser resource a run acquires and releases.
type Session interface {
	Driver() browser.Driver
	Close() error
}

// Launcher acquires a Session.
type Launcher func(ctx context.Context) (Session, error)

// Screener is the page object a run drives.
type Screener interface {
	Open(ctx context.Context) error
	ApplyRegion(ctx context.Context, region string) error
	Pages(ctx context.Context, maxPages int) iter.Seq2[screener.PageContent, error]
	StopReason() screener.StopReason
}

// PageFactory builds the Screener over a session's driver.
type PageFactory func(drv browser.Driver, opts screener.Options) Screener

// Parser turns page markup into rows.
type Parser interface {
	Parse(markup string) ([]record.Row, error)
}

// Config holds service configuration.
type Config struct {
	Browser        browser.Options
	Screener       screener.Options
	DiagnosticsDir string // empty disables captures
}

// Request describes one run.
type Request struct {
	Region   string
	Dest     string
	MaxPages int // <= 0 means screener.DefaultMaxPages
}

// Result reports a finished run. It is returned alongside errors too, so
// callers can report partial progress.
type Result struct {
	RunID string
	Dest  string
	Stats *Stats
}

// Service orchestrates harvest runs.
type Service struct {
	config   Config
	appender output.Appender
	launch   Launcher
	newPage  PageFactory
	parser   Parser
}

// Option configures a Service.
type Option func(*Service)

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Service) { s.launch = l }
}

// WithPageFactory replaces the screener page constructor.
func WithPageFactory(f PageFactory) Option {
	return func(s *Service) { s.newPage = f }
}

// WithParser replaces the row extractor.
func WithParser(p Parser) Option {
	return func(s *Service) { s.parser = p }
}

// New creates a Service writing through appender.
func New(cfg Config, appender output.Appender, opts ...Option) *Service {
	s := &Service{
		config:   cfg,
		appender: appender,
		parser:   extractor.New(),
		newPage: func(drv browser.Driver, o screener.Options) Screener {
			return screener.NewPage(drv, o)
		},
	}
	s.launch = func(ctx context.Context) (Session, error) {
		return browser.Launch(ctx, s.config.Browser)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one harvest. The session is released exactly once whatever
// happens.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	stats := newStats()
	res := Result{RunID: uuid.NewString(), Dest: req.Dest, Stats: stats}
	defer func() { stats.Elapsed = time.Since(start) }()

	log := logger.With("run_id", res.RunID)
	log.Info("harvest starting", "region", req.Region, "dest", req.Dest, "max_pages", req.MaxPages)

	sess, err := s.launch(ctx)
	if err != nil {
		return res, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser close failed", "error", cerr)
		}
	}()

	opts := s.config.Screener
	opts.Events = stats
	if s.config.DiagnosticsDir != "" {
		opts.Diagnostics = diagnostics.New(s.config.DiagnosticsDir, res.RunID)
	}
	page := s.newPage(sess.Driver(), opts)

	if err := page.Open(ctx); err != nil {
		return res, fmt.Errorf("open screener: %w", err)
	}
	if err := page.ApplyRegion(ctx, req.Region); err != nil {
		return res, fmt.Errorf("apply region %q: %w", req.Region, err)
	}

	dedup := NewDeduplicator()
	err = s.drain(ctx, page, req, dedup, stats, log)
	stats.StopReason = page.StopReason()
	stats.Unique = dedup.Seen()
	stats.Duplicates = dedup.Duplicates()
	stats.EmptyKeys = dedup.EmptyKeys()
	if err != nil {
		return res, err
	}

	log.Info("harvest complete",
		"pages", stats.Pages,
		"unique", stats.Unique,
		"duplicates", stats.Duplicates,
		"stop", stats.StopReason,
		"warnings", stats.WarningCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// drain appends each page's new rows as soon as the page is read.
func (s *Service) drain(ctx context.Context, page Screener, req Request, dedup *Deduplicator, stats *Stats, log *slog.Logger) error {
	for content, err := range page.Pages(ctx, req.MaxPages) {
		if err != nil {
			return fmt.Errorf("page %d: %w", stats.Pages+1, err)
		}
		stats.Pages++

		rows, err := s.parser.Parse(content.Markup)
		if err != nil {
			return fmt.Errorf("parse page %d: %w", content.Number, err)
		}
		stats.RowsParsed += len(rows)

		fresh := dedup.Merge(rows)
		log.Debug("page parsed", "page", content.Number, "rows", len(rows), "new", len(fresh))
		if len(fresh) == 0 {
			continue
		}
		if err := s.appender.AppendRows(fresh, req.Dest); err != nil {
			return fmt.Errorf("append page %d: %w", content.Number, err)
		}
		stats.Appends++
		log.Info("page harvested", "page", content.Number, "new", len(fresh), "total", dedup.Seen())
	}
	return nil
}
