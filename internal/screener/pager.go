package screener

import (
	"context"
	"iter"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
)

// DefaultMaxPages caps pagination when no limit is given.
const DefaultMaxPages = 100_000

// StopReason explains why a page sequence ended.
type StopReason string

const (
	StopNone         StopReason = ""
	StopNextAbsent   StopReason = "next-absent"
	StopNextDisabled StopReason = "next-disabled"
	StopMaxPages     StopReason = "max-pages"
	StopConsumer     StopReason = "consumer-stopped"
	StopError        StopReason = "error"
)

// PageContent is the table markup of one results page.
type PageContent struct {
	Number int
	Markup string
}

// PaginationHarvester walks the results pages from the first one.
type PaginationHarvester struct {
	drv     browser.Driver
	loc     Locators
	sync    *PageSynchronizer
	limiter *rate.Limiter
	stop    StopReason
}

// NewPaginationHarvester returns a harvester. A positive delay spaces page
// advances at least that far apart.
func NewPaginationHarvester(drv browser.Driver, loc Locators, sync *PageSynchronizer, delay time.Duration) *PaginationHarvester {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &PaginationHarvester{
		drv:     drv,
		loc:     loc,
		sync:    sync,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// StopReason reports why the last sequence ended.
func (p *PaginationHarvester) StopReason() StopReason { return p.stop }

// Pages yields the table markup of every page, starting from the first.
// Each call starts a fresh traversal. The sequence ends normally when the
// next control is absent or disabled, or after maxPages pages (<= 0 means
// DefaultMaxPages). An error is yielded once and ends the sequence.
func (p *PaginationHarvester) Pages(ctx context.Context, maxPages int) iter.Seq2[PageContent, error] {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return func(yield func(PageContent, error) bool) {
		p.stop = StopNone
		fail := func(err error) {
			p.stop = StopError
			yield(PageContent{}, err)
		}

		if _, err := p.sync.WaitReady(ctx); err != nil {
			fail(err)
			return
		}
		if err := p.GotoFirstPage(ctx); err != nil {
			fail(err)
			return
		}

		for page := 1; ; page++ {
			state, err := p.sync.WaitReady(ctx)
			if err != nil {
				fail(err)
				return
			}
			markup, err := p.content(ctx)
			if err != nil {
				fail(err)
				return
			}
			logger.Debug("page ready", "page", page, "state", state, "bytes", len(markup))
			if !yield(PageContent{Number: page, Markup: markup}, nil) {
				p.stop = StopConsumer
				return
			}

			if page >= maxPages {
				logger.Warn("page limit reached", "max_pages", maxPages)
				p.stop = StopMaxPages
				return
			}

			next, reason, err := p.nextControl(ctx)
			if err != nil {
				fail(err)
				return
			}
			if reason != StopNone {
				logger.Debug("pagination finished", "page", page, "reason", reason)
				p.stop = reason
				return
			}

			if err := p.limiter.Wait(ctx); err != nil {
				fail(err)
				return
			}
			_, err = p.sync.Transition(ctx, TriggerPageAdvanced, func(ctx context.Context) error {
				browser.ScrollIntoView(ctx, p.drv, next)
				return browser.SafeClick(ctx, p.drv, next)
			})
			if err != nil {
				fail(err)
				return
			}
		}
	}
}

// nextControl returns the usable next control, or the reason there is none.
func (p *PaginationHarvester) nextControl(ctx context.Context) (browser.Handle, StopReason, error) {
	next, err := browser.FindFirst(ctx, p.drv, p.loc.NextPage)
	if err != nil {
		return browser.Handle{}, StopNone, err
	}
	if next.IsZero() {
		return browser.Handle{}, StopNextAbsent, nil
	}
	disabled, err := IsDisabled(ctx, p.drv, next)
	if err != nil {
		return browser.Handle{}, StopNone, err
	}
	v, fresh := disabled.Get()
	switch {
	case !fresh:
		return browser.Handle{}, StopNextAbsent, nil
	case v:
		return browser.Handle{}, StopNextDisabled, nil
	}
	return next, StopNone, nil
}

// GotoFirstPage clicks the first-page control when it is present and
// enabled.
func (p *PaginationHarvester) GotoFirstPage(ctx context.Context) error {
	first, err := browser.FindFirst(ctx, p.drv, p.loc.FirstPage)
	if err != nil || first.IsZero() {
		return err
	}
	disabled, err := IsDisabled(ctx, p.drv, first)
	if err != nil {
		return err
	}
	if v, fresh := disabled.Get(); !fresh || v {
		logger.Debug("already on first page")
		return nil
	}
	logger.Debug("going to first page")
	_, err = p.sync.Transition(ctx, TriggerFirstPage, func(ctx context.Context) error {
		browser.ScrollIntoView(ctx, p.drv, first)
		return browser.SafeClick(ctx, p.drv, first)
	})
	return err
}

// content returns the table's markup, or the whole page when there is no
// table (e.g. an empty-state view).
func (p *PaginationHarvester) content(ctx context.Context) (string, error) {
	table, err := browser.FindFirst(ctx, p.drv, p.loc.Table)
	if err != nil {
		return "", err
	}
	if !table.IsZero() {
		html, err := p.drv.OuterHTML(ctx, table)
		if err != nil {
			return "", err
		}
		if v, ok := html.Get(); ok {
			return v, nil
		}
	}
	return p.drv.Markup(ctx)
}
