package screener

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/browser/browsertest"
)

func openDialogSite(opts ...option) (*browsertest.Driver, *site) {
	s := &site{pages: [][]string{{"AAA"}}, options: opts, dialogVisible: true}
	return s.driver(), s
}

func newMutator(d browser.Driver) *FilterMutator {
	return NewFilterMutator(d, DefaultLocators(), fastTimeouts())
}

// --- SetSingleSelection Tests ---

func TestSetSingleSelection(t *testing.T) {
	tests := []struct {
		name    string
		options []option
		target  string
	}{
		{"none checked", []option{{name: "United States"}, {name: "Europe"}, {name: "Asia"}}, "Europe"},
		{"target already only", []option{{name: "United States"}, {name: "Europe", checked: true}}, "europe"},
		{"one other checked", []option{{name: "United States", checked: true}, {name: "Europe"}}, "  EUROPE "},
		{"many checked", []option{
			{name: "United States", checked: true},
			{name: "Europe", checked: true},
			{name: "Asia", checked: true},
			{name: "Africa", checked: true},
		}, "Europe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, _ := openDialogSite(tt.options...)
			m := newMutator(d)
			dlg := dialogOf(t, d)

			if err := m.SetSingleSelection(ctx, dlg, tt.target); err != nil {
				t.Fatalf("SetSingleSelection() error = %v", err)
			}
			got, err := m.CheckedLabels(ctx, dlg)
			if err != nil {
				t.Fatalf("CheckedLabels() error = %v", err)
			}
			if diff := cmp.Diff([]string{"Europe"}, got); diff != "" {
				t.Errorf("checked mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetSingleSelection_OneClickPerMismatchedOption(t *testing.T) {
	d, _ := openDialogSite(
		option{name: "United States", checked: true},
		option{name: "Europe"},
		option{name: "Asia", checked: true},
		option{name: "Africa"},
	)
	m := newMutator(d)

	if err := m.SetSingleSelection(context.Background(), dialogOf(t, d), "Europe"); err != nil {
		t.Fatalf("SetSingleSelection() error = %v", err)
	}

	var got []string
	for _, c := range d.Clicks() {
		got = append(got, c.Text)
	}
	want := []string{"United States", "Asia", "Europe"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clicks mismatch (-want +got):\n%s", diff)
	}
}

func TestSetSingleSelection_TargetAbsent(t *testing.T) {
	d, _ := openDialogSite(
		option{name: "United States", checked: true},
		option{name: "Europe"},
	)
	m := newMutator(d)

	err := m.SetSingleSelection(context.Background(), dialogOf(t, d), "Atlantis")

	var notFound *TargetOptionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("SetSingleSelection() error = %v, want TargetOptionNotFoundError", err)
	}
	if notFound.Target != "Atlantis" {
		t.Errorf("Target = %q, want Atlantis", notFound.Target)
	}
	if diff := cmp.Diff([]string{"United States", "Europe"}, notFound.Available); diff != "" {
		t.Errorf("Available mismatch (-want +got):\n%s", diff)
	}
	if n := len(d.Clicks()); n != 0 {
		t.Errorf("clicks = %d, want none", n)
	}
}

func TestSetSingleSelection_ByAccessibleLabel(t *testing.T) {
	ctx := context.Background()
	d, _ := openDialogSite(
		option{name: "US", aria: "United States", checked: true},
		option{name: "LatAm", aria: "Latin America"},
	)
	m := newMutator(d)
	dlg := dialogOf(t, d)

	if err := m.SetSingleSelection(ctx, dlg, "latin america"); err != nil {
		t.Fatalf("SetSingleSelection() error = %v", err)
	}
	got, _ := m.CheckedLabels(ctx, dlg)
	if diff := cmp.Diff([]string{"LatAm"}, got); diff != "" {
		t.Errorf("checked mismatch (-want +got):\n%s", diff)
	}
}

func TestSetSingleSelection_RejectedUncheck(t *testing.T) {
	d, _ := openDialogSite(
		option{name: "United States", checked: true, disabled: true},
		option{name: "Europe"},
	)
	m := newMutator(d)

	err := m.SetSingleSelection(context.Background(), dialogOf(t, d), "Europe")

	var mismatch *SelectionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("SetSingleSelection() error = %v, want SelectionMismatchError", err)
	}
	if diff := cmp.Diff([]string{"United States", "Europe"}, mismatch.Checked); diff != "" {
		t.Errorf("Checked mismatch (-want +got):\n%s", diff)
	}
}

func TestSetSingleSelection_TargetNeverChecks(t *testing.T) {
	d, _ := openDialogSite(
		option{name: "United States", checked: true},
		option{name: "Europe", disabled: true},
	)
	m := newMutator(d)

	err := m.SetSingleSelection(context.Background(), dialogOf(t, d), "Europe")

	var setupErr *SetupTimeoutError
	if !errors.As(err, &setupErr) || setupErr.Phase != "filter-select" {
		t.Fatalf("SetSingleSelection() error = %v, want SetupTimeoutError{Phase: filter-select}", err)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Error("error should wrap ErrWaitTimeout")
	}
}

// --- ApplyIfEnabled Tests ---

func TestApplyIfEnabled_Enabled(t *testing.T) {
	d, _ := openDialogSite(option{name: "Europe"})
	m := newMutator(d)

	ok, err := m.ApplyIfEnabled(context.Background(), dialogOf(t, d))
	if err != nil || !ok {
		t.Fatalf("ApplyIfEnabled() = %v, %v; want true, nil", ok, err)
	}
	if n := clicksOn(d, isApply); n != 1 {
		t.Errorf("apply clicks = %d, want 1", n)
	}
}

func TestApplyIfEnabled_StaysDisabled(t *testing.T) {
	s := &site{pages: [][]string{{"AAA"}}, options: []option{{name: "Europe"}}, dialogVisible: true, applyDisabled: true}
	d := s.driver()
	m := newMutator(d)

	ok, err := m.ApplyIfEnabled(context.Background(), dialogOf(t, d))
	if err != nil || ok {
		t.Fatalf("ApplyIfEnabled() = %v, %v; want false, nil", ok, err)
	}
	if n := len(d.Clicks()); n != 0 {
		t.Errorf("clicks = %d, want none", n)
	}
}

func TestApplyIfEnabled_BecomesEnabled(t *testing.T) {
	s := &site{pages: [][]string{{"AAA"}}, options: []option{{name: "Europe"}}, dialogVisible: true, applyDisabled: true}
	d := s.driver()
	d.After(5, func(dom *browsertest.DOM) {
		dom.RemoveAttr(dom.QueryOne(`button[aria-label="Apply"]`), "disabled")
	})
	m := newMutator(d)

	ok, err := m.ApplyIfEnabled(context.Background(), dialogOf(t, d))
	if err != nil || !ok {
		t.Fatalf("ApplyIfEnabled() = %v, %v; want true, nil", ok, err)
	}
}

func TestApplyIfEnabled_Missing(t *testing.T) {
	d := browsertest.New(`<html><body><div id="dlg-region" class="dialog-container menu-surface-dialog" aria-hidden="false"></div></body></html>`)
	m := newMutator(d)

	ok, err := m.ApplyIfEnabled(context.Background(), dialogOf(t, d))
	if err != nil || ok {
		t.Errorf("ApplyIfEnabled() = %v, %v; want false, nil", ok, err)
	}
}

// --- IsDisabled Tests ---

func TestIsDisabled(t *testing.T) {
	tests := []struct {
		markup string
		want   bool
	}{
		{`<button id="b">Next</button>`, false},
		{`<button id="b" disabled>Next</button>`, true},
		{`<button id="b" aria-disabled="true">Next</button>`, true},
		{`<button id="b" aria-disabled="false">Next</button>`, false},
		{`<button id="b" class="pager Btn--Disabled">Next</button>`, true},
	}

	for _, tt := range tests {
		d := browsertest.New(tt.markup)
		h, _ := browser.FindFirst(context.Background(), d, browser.Selector{Kind: browser.CSS, Expr: "#b"})
		res, err := IsDisabled(context.Background(), d, h)
		if err != nil {
			t.Fatalf("IsDisabled(%s) error = %v", tt.markup, err)
		}
		if got, _ := res.Get(); got != tt.want {
			t.Errorf("IsDisabled(%s) = %v, want %v", tt.markup, got, tt.want)
		}
	}
}

func TestIsDisabled_Stale(t *testing.T) {
	d := browsertest.New(`<button id="b">Next</button>`)
	h, _ := browser.FindFirst(context.Background(), d, browser.Selector{Kind: browser.CSS, Expr: "#b"})
	d.SetMarkup(`<p></p>`)

	res, err := IsDisabled(context.Background(), d, h)
	if err != nil || !res.IsStale() {
		t.Errorf("IsDisabled on stale handle = %v, %v; want stale", res, err)
	}
}
