package screener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
)

// FilterOption is one checklist entry of a dialog.
type FilterOption struct {
	Label   string
	Checked bool

	label browser.Handle
}

func (o FilterOption) matches(label browser.Handle, norm string) bool {
	return o.label == label || normalize(o.Label) == norm
}

// FilterMutator drives a dialog checklist to a single selection.
type FilterMutator struct {
	drv       browser.Driver
	loc       Locators
	timeouts  Timeouts
	resolvers []LabelResolver
}

// NewFilterMutator returns a mutator. With no resolvers, DefaultResolvers
// is used.
func NewFilterMutator(drv browser.Driver, loc Locators, timeouts Timeouts, resolvers ...LabelResolver) *FilterMutator {
	if len(resolvers) == 0 {
		resolvers = DefaultResolvers(loc)
	}
	return &FilterMutator{drv: drv, loc: loc, timeouts: timeouts, resolvers: resolvers}
}

// Options reads every option of dlg. Options that vanish mid-read are
// skipped.
func (m *FilterMutator) Options(ctx context.Context, dlg DialogInstance) ([]FilterOption, error) {
	res, err := m.drv.Find(ctx, dlg.Handle, m.loc.DialogOptions)
	if err != nil {
		return nil, err
	}
	labels, _ := res.Get()
	out := make([]FilterOption, 0, len(labels))
	for _, l := range labels {
		opt, ok, err := m.readOption(ctx, l)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, opt)
		}
	}
	return out, nil
}

func (m *FilterMutator) readOption(ctx context.Context, label browser.Handle) (FilterOption, bool, error) {
	name, err := optionName(ctx, m.drv, m.loc, label)
	if err != nil {
		return FilterOption{}, false, err
	}
	boxes, err := m.drv.Find(ctx, label, m.loc.OptionCheckbox)
	if err != nil {
		return FilterOption{}, false, err
	}
	hs, ok := boxes.Get()
	if !ok || len(hs) == 0 {
		return FilterOption{}, false, nil
	}
	checked, err := m.drv.Checked(ctx, hs[0])
	if err != nil {
		return FilterOption{}, false, err
	}
	v, ok := checked.Get()
	if !ok {
		return FilterOption{}, false, nil
	}
	return FilterOption{Label: name, Checked: v, label: label}, true, nil
}

// CheckedLabels returns the names of the checked options.
func (m *FilterMutator) CheckedLabels(ctx context.Context, dlg DialogInstance) ([]string, error) {
	opts, err := m.checked(ctx, dlg)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out, nil
}

func (m *FilterMutator) checked(ctx context.Context, dlg DialogInstance) ([]FilterOption, error) {
	opts, err := m.Options(ctx, dlg)
	if err != nil {
		return nil, err
	}
	var out []FilterOption
	for _, o := range opts {
		if o.Checked {
			out = append(out, o)
		}
	}
	return out, nil
}

// resolve runs the resolver chain.
func (m *FilterMutator) resolve(ctx context.Context, dlg DialogInstance, target string) (browser.Handle, error) {
	for _, r := range m.resolvers {
		h, err := r.Resolve(ctx, m.drv, dlg.Handle, target)
		if err != nil {
			return browser.Handle{}, err
		}
		if !h.IsZero() {
			return h, nil
		}
	}
	return browser.Handle{}, nil
}

// SetSingleSelection leaves exactly the option matching target checked.
// Matching is case-insensitive on the trimmed label. Nothing is clicked when
// the target is absent.
func (m *FilterMutator) SetSingleSelection(ctx context.Context, dlg DialogInstance, target string) error {
	norm := normalize(target)
	logger.Debug("selecting single filter option", "target", norm)

	targetLabel, err := m.resolve(ctx, dlg, norm)
	if err != nil {
		return err
	}
	if targetLabel.IsZero() {
		opts, err := m.Options(ctx, dlg)
		if err != nil {
			return err
		}
		available := make([]string, 0, len(opts))
		for _, o := range opts {
			available = append(available, o.Label)
		}
		return &TargetOptionNotFoundError{Target: target, Available: available}
	}

	for attempt := 1; ; attempt++ {
		if err := m.uncheckOthers(ctx, dlg, targetLabel, norm); err != nil {
			return err
		}
		if err := m.checkTarget(ctx, dlg, norm); err != nil {
			return err
		}

		// Clicks may be rejected and options re-rendered; re-read.
		if targetLabel, err = m.resolve(ctx, dlg, norm); err != nil {
			return err
		}
		checked, err := m.checked(ctx, dlg)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(checked))
		for _, o := range checked {
			names = append(names, o.Label)
		}
		if len(checked) == 1 && checked[0].matches(targetLabel, norm) {
			logger.Debug("filter selection settled", "checked", names, "attempt", attempt)
			return nil
		}
		if attempt == 2 {
			logger.Error("filter selection did not settle", "phase", "filter-select", "target", norm, "checked", names)
			return &SelectionMismatchError{Target: target, Checked: names}
		}
		logger.Debug("filter selection not settled, retrying", "checked", names, "attempt", attempt)
	}
}

// uncheckOthers clicks every checked non-target option once. Each option's
// state is read fresh right before deciding.
func (m *FilterMutator) uncheckOthers(ctx context.Context, dlg DialogInstance, targetLabel browser.Handle, norm string) error {
	res, err := m.drv.Find(ctx, dlg.Handle, m.loc.DialogOptions)
	if err != nil {
		return err
	}
	labels, _ := res.Get()
	for _, l := range labels {
		if l == targetLabel {
			continue
		}
		opt, ok, err := m.readOption(ctx, l)
		if err != nil {
			return err
		}
		if !ok || opt.matches(targetLabel, norm) || !opt.Checked {
			continue
		}
		logger.Debug("unchecking filter option", "option", opt.Label)
		if err := browser.SafeClick(ctx, m.drv, l); err != nil {
			return fmt.Errorf("uncheck %q: %w", opt.Label, err)
		}
	}
	return nil
}

// checkTarget clicks the target if needed and waits for it to read checked.
func (m *FilterMutator) checkTarget(ctx context.Context, dlg DialogInstance, norm string) error {
	isChecked := func(ctx context.Context) (bool, error) {
		h, err := m.resolve(ctx, dlg, norm)
		if err != nil || h.IsZero() {
			return false, err
		}
		opt, ok, err := m.readOption(ctx, h)
		return ok && opt.Checked, err
	}

	done, err := isChecked(ctx)
	if err != nil || done {
		return err
	}

	h, err := m.resolve(ctx, dlg, norm)
	if err != nil {
		return err
	}
	logger.Debug("checking filter option", "option", norm)
	if err := browser.SafeClick(ctx, m.drv, h); err != nil {
		return fmt.Errorf("check %q: %w", norm, err)
	}

	start := time.Now()
	if err := poll(ctx, m.timeouts.Poll, m.timeouts.OptionChecked, isChecked); err != nil {
		if !isTimeout(err) {
			return err
		}
		setupErr := &SetupTimeoutError{Phase: "filter-select", Intent: norm, Elapsed: time.Since(start), Err: err}
		logger.Error("filter option never read checked",
			"phase", setupErr.Phase, "intent", setupErr.Intent, "elapsed", setupErr.Elapsed)
		return setupErr
	}
	return nil
}

// ApplyIfEnabled clicks the dialog's apply control once it is enabled. It
// returns false, without clicking, when the control stays disabled or is
// missing.
func (m *FilterMutator) ApplyIfEnabled(ctx context.Context, dlg DialogInstance) (bool, error) {
	res, err := m.drv.Find(ctx, dlg.Handle, m.loc.DialogApply)
	if err != nil {
		return false, err
	}
	hs, ok := res.Get()
	if !ok || len(hs) == 0 {
		logger.Warn("apply control not found", "intent", m.loc.DialogApply.Name)
		return false, nil
	}
	apply := hs[0]

	start := time.Now()
	err = poll(ctx, m.timeouts.Poll, m.timeouts.ApplyEnabled, func(ctx context.Context) (bool, error) {
		disabled, err := IsDisabled(ctx, m.drv, apply)
		if err != nil {
			return false, err
		}
		v, fresh := disabled.Get()
		return fresh && !v, nil
	})
	if err != nil {
		if isTimeout(err) {
			logger.Warn("apply control stayed disabled",
				"phase", "filter-apply", "intent", m.loc.DialogApply.Name, "elapsed", time.Since(start))
			return false, nil
		}
		return false, err
	}

	if err := browser.SafeClick(ctx, m.drv, apply); err != nil {
		return false, fmt.Errorf("click apply: %w", err)
	}
	logger.Debug("apply clicked", "elapsed", time.Since(start))
	return true, nil
}

// IsDisabled reports whether a control is disabled by attribute, ARIA state
// or a "disabled" class.
func IsDisabled(ctx context.Context, drv browser.Driver, h browser.Handle) (browser.Read[bool], error) {
	for _, name := range []string{"disabled", "aria-disabled", "class"} {
		a, err := drv.Attribute(ctx, h, name)
		if err != nil {
			return browser.Read[bool]{}, err
		}
		v, ok := a.Get()
		if !ok {
			return browser.Stale[bool](), nil
		}
		switch name {
		case "disabled":
			if v.Present {
				return browser.Fresh(true), nil
			}
		case "aria-disabled":
			if v.Value == "true" {
				return browser.Fresh(true), nil
			}
		case "class":
			if strings.Contains(strings.ToLower(v.Value), "disabled") {
				return browser.Fresh(true), nil
			}
		}
	}
	return browser.Fresh(false), nil
}
