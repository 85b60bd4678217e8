package browser

import (
	"context"
	"errors"

	"github.com/jmylchreest/screenharvest/internal/logger"
)

// SafeClick clicks h like a user would and falls back to a script-level
// click when an overlay intercepts the click or the handle went stale
// mid-click.
func SafeClick(ctx context.Context, d Driver, h Handle) error {
	err := d.Click(ctx, h)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrClickIntercepted) && !errors.Is(err, ErrStaleHandle) {
		return err
	}
	logger.Debug("user click failed, retrying via script", "handle", h.String(), "error", err)
	return d.ScriptClick(ctx, h)
}

// ScrollIntoView centers h in the viewport. Failures are ignored; a click
// that still misses falls back through SafeClick.
func ScrollIntoView(ctx context.Context, d Driver, h Handle) {
	if err := d.ScrollIntoView(ctx, h); err != nil {
		logger.Debug("scroll into view failed", "handle", h.String(), "error", err)
	}
}
