// Package screener synchronizes with the equity screener UI: it applies a
// region filter through the filter popover and walks the results pages,
// waiting for every re-render to settle before content is read.
package screener

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
)

// Options configures a Page.
type Options struct {
	URL         string
	Locators    Locators
	Timeouts    Timeouts
	PageDelay   time.Duration
	Resolvers   []LabelResolver
	Diagnostics DiagnosticSink
	Events      Events
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{
		URL:      DefaultURL,
		Locators: DefaultLocators(),
		Timeouts: DefaultTimeouts(),
	}
}

// Page is the screener page object. It is not safe for concurrent use; one
// Page drives one browser tab.
type Page struct {
	drv      browser.Driver
	url      string
	loc      Locators
	timeouts Timeouts
	diag     DiagnosticSink
	events   Events

	Dialogs *DialogController
	Filter  *FilterMutator
	Sync    *PageSynchronizer
	Pager   *PaginationHarvester
}

// NewPage wires the screener components over drv.
func NewPage(drv browser.Driver, opts Options) *Page {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Locators == (Locators{}) {
		opts.Locators = DefaultLocators()
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = nopDiagnostics{}
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	sync := NewPageSynchronizer(drv, opts.Locators, opts.Timeouts, opts.Events)
	return &Page{
		drv:      drv,
		url:      opts.URL,
		loc:      opts.Locators,
		timeouts: opts.Timeouts,
		diag:     opts.Diagnostics,
		events:   opts.Events,
		Dialogs:  NewDialogController(drv, opts.Locators, opts.Timeouts, opts.Diagnostics, opts.Events),
		Filter:   NewFilterMutator(drv, opts.Locators, opts.Timeouts, opts.Resolvers...),
		Sync:     sync,
		Pager:    NewPaginationHarvester(drv, opts.Locators, sync, opts.PageDelay),
	}
}

// Open navigates to the screener, accepts a consent prompt if one shows up
// and waits for results.
func (p *Page) Open(ctx context.Context) error {
	logger.Info("opening screener", "url", p.url)
	if err := p.drv.Navigate(ctx, p.url); err != nil {
		return err
	}
	if err := p.acceptConsent(ctx); err != nil {
		return err
	}
	state, err := p.Sync.WaitReady(ctx)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	logger.Debug("screener ready", "state", state)
	return nil
}

func (p *Page) acceptConsent(ctx context.Context) error {
	var btn browser.Handle
	err := poll(ctx, p.timeouts.Poll, p.timeouts.Consent, func(ctx context.Context) (bool, error) {
		h, err := browser.FindFirst(ctx, p.drv, p.loc.CookieAccept)
		btn = h
		return !h.IsZero(), err
	})
	switch {
	case isTimeout(err):
		return nil
	case err != nil:
		return err
	}
	logger.Info("accepting consent prompt")
	if err := browser.SafeClick(ctx, p.drv, btn); err != nil {
		logger.Debug("consent click failed", "error", err)
	}
	return nil
}

// ApplyRegion filters the results to a single region and waits for the
// table to reflect it.
func (p *Page) ApplyRegion(ctx context.Context, region string) error {
	logger.Info("applying region filter", "region", region)

	before, err := p.Sync.Detector().Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	logger.Debug("table before filter", "has_body", !before.Root.IsZero(), "has_rows", !before.FirstRow.IsZero())

	trigger, err := p.findTrigger(ctx)
	if err != nil {
		return err
	}
	browser.ScrollIntoView(ctx, p.drv, trigger)

	dlg, err := p.Dialogs.Open(ctx, trigger)
	if err != nil {
		return err
	}

	if checked, err := p.Filter.CheckedLabels(ctx, dlg); err == nil {
		logger.Debug("checked before", "options", checked)
	}
	if err := p.Filter.SetSingleSelection(ctx, dlg, region); err != nil {
		return err
	}
	if checked, err := p.Filter.CheckedLabels(ctx, dlg); err == nil {
		logger.Debug("checked after", "options", checked)
	}

	applied, err := p.Filter.ApplyIfEnabled(ctx, dlg)
	if err != nil {
		return err
	}
	if err := p.Dialogs.WaitClosed(ctx, dlg); err != nil {
		return err
	}

	if applied {
		outcome, err := p.Sync.AwaitRefresh(ctx, before)
		if err != nil {
			return fmt.Errorf("%s: %w", TriggerFilterApplied, err)
		}
		p.events.Refreshed(TriggerFilterApplied, outcome)
	} else {
		logger.Warn("filter not applied, apply control stayed disabled",
			"warning", WarnApplyDisabled, "region", region)
		p.events.Warning(WarnApplyDisabled)
		if _, err := p.Sync.WaitReady(ctx); err != nil {
			return err
		}
	}

	if sig, err := p.Sync.Detector().Signature(ctx); err == nil {
		logger.Debug("signature after filter", "signature", truncate(sig, 200))
	}
	return nil
}

func (p *Page) findTrigger(ctx context.Context) (browser.Handle, error) {
	var trigger browser.Handle
	start := time.Now()
	err := poll(ctx, p.timeouts.Poll, p.timeouts.Ready, func(ctx context.Context) (bool, error) {
		h, err := browser.FindFirst(ctx, p.drv, p.loc.RegionTrigger)
		trigger = h
		return !h.IsZero(), err
	})
	if err == nil {
		return trigger, nil
	}
	if !isTimeout(err) {
		return browser.Handle{}, err
	}
	setupErr := &SetupTimeoutError{
		Phase:   "region-trigger",
		Intent:  p.loc.RegionTrigger.Name,
		Elapsed: time.Since(start),
		Err:     fmt.Errorf("%w: %w", ErrTriggerNotFound, err),
	}
	logger.Error("filter trigger not found",
		"phase", setupErr.Phase, "intent", setupErr.Intent, "elapsed", setupErr.Elapsed)
	p.diag.Capture(ctx, p.drv, setupErr.Phase, setupErr)
	return browser.Handle{}, setupErr
}

// Pages yields the markup of every results page. See
// PaginationHarvester.Pages.
func (p *Page) Pages(ctx context.Context, maxPages int) iter.Seq2[PageContent, error] {
	return p.Pager.Pages(ctx, maxPages)
}

// StopReason reports why the last page sequence ended.
func (p *Page) StopReason() StopReason {
	return p.Pager.StopReason()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
