package screener

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
)

// DialogInstance is an opened filter popover.
type DialogInstance struct {
	Handle browser.Handle
	ID     string
}

// DialogController opens filter popovers and waits for them to close.
type DialogController struct {
	drv      browser.Driver
	loc      Locators
	timeouts Timeouts
	diag     DiagnosticSink
	events   Events
}

// NewDialogController returns a controller. diag and events may be nil.
func NewDialogController(drv browser.Driver, loc Locators, timeouts Timeouts, diag DiagnosticSink, events Events) *DialogController {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	if events == nil {
		events = nopEvents{}
	}
	return &DialogController{drv: drv, loc: loc, timeouts: timeouts, diag: diag, events: events}
}

// Open clicks trigger and returns the dialog that became visible and ready.
// Dialogs that were not visible before the click are preferred.
func (c *DialogController) Open(ctx context.Context, trigger browser.Handle) (DialogInstance, error) {
	baseline, err := c.visible(ctx)
	if err != nil {
		return DialogInstance{}, err
	}
	logger.Debug("opening dialog", "visible_before", len(baseline))

	if err := browser.SafeClick(ctx, c.drv, trigger); err != nil {
		return DialogInstance{}, fmt.Errorf("click dialog trigger: %w", err)
	}

	start := time.Now()
	var found browser.Handle
	err = poll(ctx, c.timeouts.Poll, c.timeouts.DialogOpen, func(ctx context.Context) (bool, error) {
		open, err := c.visible(ctx)
		if err != nil {
			return false, err
		}
		// Newly opened dialogs first, then any that were already visible.
		slices.SortStableFunc(open, func(a, b browser.Handle) int {
			return boolRank(slices.Contains(baseline, a)) - boolRank(slices.Contains(baseline, b))
		})
		for _, h := range open {
			ready, err := c.isReady(ctx, h)
			if err != nil {
				return false, err
			}
			if ready {
				found = h
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		if !isTimeout(err) {
			return DialogInstance{}, err
		}
		setupErr := &SetupTimeoutError{
			Phase:   "dialog-open",
			Intent:  c.loc.Dialogs.Name,
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("%w: %w", ErrDialogNotFound, err),
		}
		logger.Error("dialog did not open",
			"phase", setupErr.Phase,
			"intent", setupErr.Intent,
			"selector", c.loc.Dialogs.String(),
			"elapsed", setupErr.Elapsed)
		c.diag.Capture(ctx, c.drv, setupErr.Phase, setupErr)
		return DialogInstance{}, setupErr
	}

	dlg := DialogInstance{Handle: found}
	if id, err := c.drv.Attribute(ctx, found, "id"); err == nil {
		dlg.ID = id.Or(browser.Attr{}).Value
	}
	logger.Debug("dialog open", "id", dlg.ID, "elapsed", time.Since(start))
	return dlg, nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WaitClosed waits until dlg is hidden or gone. A timeout is logged and
// reported as a warning, not an error.
func (c *DialogController) WaitClosed(ctx context.Context, dlg DialogInstance) error {
	start := time.Now()
	err := poll(ctx, c.timeouts.Poll, c.timeouts.DialogClose, func(ctx context.Context) (bool, error) {
		return c.isClosed(ctx, dlg.Handle)
	})
	switch {
	case err == nil:
		logger.Debug("dialog closed", "id", dlg.ID, "elapsed", time.Since(start))
		return nil
	case isTimeout(err):
		logger.Warn("dialog did not confirm closure, continuing",
			"warning", WarnDialogCloseTimeout,
			"phase", "dialog-close",
			"intent", c.loc.Dialogs.Name,
			"id", dlg.ID,
			"elapsed", time.Since(start))
		c.events.Warning(WarnDialogCloseTimeout)
		return nil
	default:
		return err
	}
}

// visible lists dialog containers that are currently shown.
func (c *DialogController) visible(ctx context.Context) ([]browser.Handle, error) {
	all, err := browser.FindAll(ctx, c.drv, c.loc.Dialogs)
	if err != nil {
		return nil, err
	}
	var out []browser.Handle
	for _, h := range all {
		ok, err := c.isVisible(ctx, h)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (c *DialogController) isVisible(ctx context.Context, h browser.Handle) (bool, error) {
	hidden, err := c.drv.Attribute(ctx, h, "aria-hidden")
	if err != nil {
		return false, err
	}
	class, err := c.drv.Attribute(ctx, h, "class")
	if err != nil {
		return false, err
	}
	hv, ok1 := hidden.Get()
	cv, ok2 := class.Get()
	if !ok1 || !ok2 {
		return false, nil
	}
	return strings.ToLower(hv.Value) == "false" && !strings.Contains(cv.Value, "tw-hidden"), nil
}

func (c *DialogController) isReady(ctx context.Context, h browser.Handle) (bool, error) {
	apply, err := c.drv.Find(ctx, h, c.loc.DialogApply)
	if err != nil {
		return false, err
	}
	opts, err := c.drv.Find(ctx, h, c.loc.DialogOptions)
	if err != nil {
		return false, err
	}
	a, ok1 := apply.Get()
	o, ok2 := opts.Get()
	return ok1 && ok2 && len(a) > 0 && len(o) > 0, nil
}

func (c *DialogController) isClosed(ctx context.Context, h browser.Handle) (bool, error) {
	hidden, err := c.drv.Attribute(ctx, h, "aria-hidden")
	if err != nil {
		return false, err
	}
	hv, ok := hidden.Get()
	if !ok {
		return true, nil
	}
	if strings.ToLower(hv.Value) == "true" {
		return true, nil
	}
	class, err := c.drv.Attribute(ctx, h, "class")
	if err != nil {
		return false, err
	}
	cv, ok := class.Get()
	return !ok || strings.Contains(cv.Value, "tw-hidden"), nil
}
