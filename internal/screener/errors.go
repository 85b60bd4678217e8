package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/screenharvest/internal/browser"
)

var (
	// ErrWaitTimeout is wrapped by every bounded wait that ran out of time.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrDialogNotFound means no ready filter dialog appeared after the
	// trigger was clicked.
	ErrDialogNotFound = errors.New("filter dialog not found")

	// ErrTriggerNotFound means the filter trigger button never appeared.
	ErrTriggerNotFound = errors.New("filter trigger not found")

	// ErrResultsNotReady means the results region stayed neither populated
	// nor explicitly empty.
	ErrResultsNotReady = errors.New("results neither populated nor empty")
)

// SetupTimeoutError is a fatal failure while preparing the filter.
type SetupTimeoutError struct {
	Phase   string // e.g. "dialog-open", "filter-select"
	Intent  string // locator or option being waited for
	Elapsed time.Duration
	Err     error
}

func (e *SetupTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s not ready after %s: %v", e.Phase, e.Intent, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *SetupTimeoutError) Unwrap() error { return e.Err }

// TargetOptionNotFoundError means the requested filter value is not in the
// option list.
type TargetOptionNotFoundError struct {
	Target    string
	Available []string
}

func (e *TargetOptionNotFoundError) Error() string {
	return fmt.Sprintf("filter option %q not found (available: %s)", e.Target, strings.Join(e.Available, ", "))
}

// SelectionMismatchError means the UI did not end up with exactly the
// target option checked.
type SelectionMismatchError struct {
	Target  string
	Checked []string
}

func (e *SelectionMismatchError) Error() string {
	return fmt.Sprintf("expected only %q checked, got [%s]", e.Target, strings.Join(e.Checked, ", "))
}

// Warning identifies a non-fatal anomaly.
type Warning string

const (
	WarnRefreshAmbiguous   Warning = "refresh-ambiguous"
	WarnDialogCloseTimeout Warning = "dialog-close-timeout"
	WarnApplyDisabled      Warning = "apply-disabled"
)

// Events receives warnings and refresh outcomes. Implementations must be
// cheap; they run inline with the UI protocol.
type Events interface {
	Warning(w Warning)
	Refreshed(trigger Trigger, outcome RefreshOutcome)
}

type nopEvents struct{}

func (nopEvents) Warning(Warning)                   {}
func (nopEvents) Refreshed(Trigger, RefreshOutcome) {}

// DiagnosticSink captures page state on fatal setup failures.
type DiagnosticSink interface {
	Capture(ctx context.Context, drv browser.Driver, phase string, cause error)
}

type nopDiagnostics struct{}

func (nopDiagnostics) Capture(context.Context, browser.Driver, string, error) {}

func isTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}
