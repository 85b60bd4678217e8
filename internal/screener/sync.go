package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
)

// RefreshOutcome names the detection tier that observed a table refresh.
type RefreshOutcome int

const (
	RefreshUndetected RefreshOutcome = iota
	RefreshByHash
	RefreshByRootStale
	RefreshByRowStale
	RefreshBySignature
)

func (o RefreshOutcome) String() string {
	switch o {
	case RefreshByHash:
		return "hash"
	case RefreshByRootStale:
		return "root-stale"
	case RefreshByRowStale:
		return "row-stale"
	case RefreshBySignature:
		return "signature"
	default:
		return "undetected"
	}
}

// Trigger is the kind of action that refreshes the results table.
type Trigger string

const (
	TriggerFilterApplied Trigger = "filter-applied"
	TriggerPageAdvanced  Trigger = "page-advanced"
	TriggerFirstPage     Trigger = "first-page"
)

// ResultState is the settled state of the results region.
type ResultState int

const (
	ResultsPopulated ResultState = iota + 1
	ResultsEmpty
)

func (s ResultState) String() string {
	switch s {
	case ResultsPopulated:
		return "populated"
	case ResultsEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// PageSynchronizer waits for the results table to settle after an action.
type PageSynchronizer struct {
	drv      browser.Driver
	det      *ChangeDetector
	loc      Locators
	timeouts Timeouts
	events   Events
}

// NewPageSynchronizer returns a synchronizer. events may be nil.
func NewPageSynchronizer(drv browser.Driver, loc Locators, timeouts Timeouts, events Events) *PageSynchronizer {
	if events == nil {
		events = nopEvents{}
	}
	return &PageSynchronizer{
		drv:      drv,
		det:      NewChangeDetector(drv, loc),
		loc:      loc,
		timeouts: timeouts,
		events:   events,
	}
}

// Detector returns the change detector used for baselines.
func (s *PageSynchronizer) Detector() *ChangeDetector { return s.det }

// Transition snapshots the table, runs action and waits for the refresh.
func (s *PageSynchronizer) Transition(ctx context.Context, trigger Trigger, action func(context.Context) error) (RefreshOutcome, error) {
	before, err := s.det.Snapshot(ctx)
	if err != nil {
		return RefreshUndetected, fmt.Errorf("%s: snapshot: %w", trigger, err)
	}
	if err := action(ctx); err != nil {
		return RefreshUndetected, fmt.Errorf("%s: %w", trigger, err)
	}
	outcome, err := s.AwaitRefresh(ctx, before)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", trigger, err)
	}
	s.events.Refreshed(trigger, outcome)
	logger.Debug("transition complete", "trigger", trigger, "detected_by", outcome)
	return outcome, nil
}

// AwaitRefresh detects that the table changed relative to before, trying
// content hash, body staleness, first-row staleness and signature in that
// order. Undetected change is logged and tolerated. It always finishes with
// WaitReady, whose failure is the only fatal outcome.
func (s *PageSynchronizer) AwaitRefresh(ctx context.Context, before TableSnapshot) (RefreshOutcome, error) {
	outcome, err := s.detect(ctx, before)
	if err != nil {
		return outcome, err
	}
	if outcome == RefreshUndetected {
		logger.Warn("no refresh detected, continuing",
			"warning", WarnRefreshAmbiguous,
			"phase", "refresh",
			"intent", s.loc.TableBody.Name)
		s.events.Warning(WarnRefreshAmbiguous)
	}
	if _, err := s.WaitReady(ctx); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *PageSynchronizer) detect(ctx context.Context, before TableSnapshot) (RefreshOutcome, error) {
	type tier struct {
		outcome RefreshOutcome
		enabled bool
		timeout time.Duration
		cond    func(context.Context) (bool, error)
	}
	tiers := []tier{
		{RefreshByHash, before.ContentHash != "", s.timeouts.FastPath, func(ctx context.Context) (bool, error) {
			return s.det.HasChanged(ctx, before)
		}},
		{RefreshByRootStale, !before.Root.IsZero(), s.timeouts.Staleness, func(ctx context.Context) (bool, error) {
			return s.gone(ctx, before.Root)
		}},
		{RefreshByRowStale, !before.FirstRow.IsZero(), s.timeouts.Staleness, func(ctx context.Context) (bool, error) {
			return s.gone(ctx, before.FirstRow)
		}},
		{RefreshBySignature, true, s.timeouts.Signature, func(ctx context.Context) (bool, error) {
			sig, err := s.det.Signature(ctx)
			return sig != before.Signature, err
		}},
	}

	for _, t := range tiers {
		if !t.enabled {
			continue
		}
		start := time.Now()
		err := poll(ctx, s.timeouts.Poll, t.timeout, t.cond)
		if err == nil {
			logger.Debug("refresh detected", "detected_by", t.outcome, "elapsed", time.Since(start))
			return t.outcome, nil
		}
		if !isTimeout(err) {
			return RefreshUndetected, err
		}
		logger.Debug("refresh tier timed out", "tier", t.outcome, "elapsed", time.Since(start))
	}
	return RefreshUndetected, nil
}

func (s *PageSynchronizer) gone(ctx context.Context, h browser.Handle) (bool, error) {
	ok, err := s.drv.Connected(ctx, h)
	return !ok, err
}

// WaitReady waits until the results region shows at least one row or an
// explicit empty-state indicator.
func (s *PageSynchronizer) WaitReady(ctx context.Context) (ResultState, error) {
	var state ResultState
	start := time.Now()
	err := poll(ctx, s.timeouts.Poll, s.timeouts.Ready, func(ctx context.Context) (bool, error) {
		rows, err := browser.FindAll(ctx, s.drv, s.loc.TableRows)
		if err != nil {
			return false, err
		}
		if len(rows) > 0 {
			state = ResultsPopulated
			return true, nil
		}
		empty, err := browser.FindAll(ctx, s.drv, s.loc.EmptyState)
		if err != nil {
			return false, err
		}
		if len(empty) > 0 {
			state = ResultsEmpty
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if isTimeout(err) {
			logger.Error("results never settled",
				"phase", "results-ready",
				"intent", s.loc.TableRows.Name,
				"elapsed", time.Since(start))
			return 0, fmt.Errorf("%w: %w", ErrResultsNotReady, err)
		}
		return 0, err
	}
	return state, nil
}
