package screener

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/screenharvest/internal/browser/browsertest"
)

func threePages() *site {
	return &site{pages: [][]string{{"AAA", "BBB"}, {"CCC", "DDD"}, {"EEE"}}}
}

func harvester(d *browsertest.Driver) *PaginationHarvester {
	loc := DefaultLocators()
	return NewPaginationHarvester(d, loc, NewPageSynchronizer(d, loc, fastTimeouts(), nil), 0)
}

// collect drains a page sequence and returns the first column of every row.
func collect(t *testing.T, p *PaginationHarvester, maxPages int) ([]string, []int) {
	t.Helper()
	var syms []string
	var pages []int
	for page, err := range p.Pages(context.Background(), maxPages) {
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		pages = append(pages, page.Number)
		for _, chunk := range strings.Split(page.Markup, "<tr><td>")[1:] {
			syms = append(syms, chunk[:strings.Index(chunk, "<")])
		}
	}
	return syms, pages
}

// --- Pages Tests ---

func TestPages_AllPages(t *testing.T) {
	d := threePages().driver()
	p := harvester(d)

	syms, pages := collect(t, p, 0)

	if diff := cmp.Diff([]string{"AAA", "BBB", "CCC", "DDD", "EEE"}, syms); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, pages); diff != "" {
		t.Errorf("page numbers mismatch (-want +got):\n%s", diff)
	}
	if p.StopReason() != StopNextDisabled {
		t.Errorf("StopReason() = %q, want %q", p.StopReason(), StopNextDisabled)
	}
	if n := clicksOn(d, isNext); n != 2 {
		t.Errorf("next clicks = %d, want 2", n)
	}
	if n := clicksOn(d, isFirst); n != 0 {
		t.Errorf("first clicks = %d, want 0 on the first page", n)
	}
}

func TestPages_RewindsToFirstPage(t *testing.T) {
	s := threePages()
	s.current = 1
	d := s.driver()

	syms, _ := collect(t, harvester(d), 0)

	if len(syms) != 5 || syms[0] != "AAA" {
		t.Errorf("rows = %v, want all five starting at AAA", syms)
	}
	if n := clicksOn(d, isFirst); n != 1 {
		t.Errorf("first clicks = %d, want 1", n)
	}
}

func TestPages_Idempotent(t *testing.T) {
	d := threePages().driver()
	p := harvester(d)

	first, _ := collect(t, p, 0)
	second, _ := collect(t, p, 0)

	if len(first) != len(second) {
		t.Errorf("second traversal saw %d rows, first saw %d", len(second), len(first))
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("traversals differ (-first +second):\n%s", diff)
	}
}

func TestPages_NextAbsent(t *testing.T) {
	s := &site{pages: [][]string{{"AAA"}}, noPager: true}
	p := harvester(s.driver())

	syms, pages := collect(t, p, 0)

	if len(pages) != 1 || len(syms) != 1 {
		t.Errorf("pages = %v rows = %v, want the single page", pages, syms)
	}
	if p.StopReason() != StopNextAbsent {
		t.Errorf("StopReason() = %q, want %q", p.StopReason(), StopNextAbsent)
	}
}

func TestPages_NextDisabledByClass(t *testing.T) {
	d := browsertest.New(`<html><body><table>` + tbodyHTML([]string{"AAA"}) + `</table>
<button data-testid="next-page-button" class="pager-btn is-disabled">Next</button></body></html>`)
	p := harvester(d)

	_, pages := collect(t, p, 0)

	if len(pages) != 1 || p.StopReason() != StopNextDisabled {
		t.Errorf("pages = %v, stop = %q; want one page ending at next-disabled", pages, p.StopReason())
	}
	if len(d.Clicks()) != 0 {
		t.Error("a disabled next control must not be clicked")
	}
}

func TestPages_MaxPages(t *testing.T) {
	d := threePages().driver()
	p := harvester(d)

	_, pages := collect(t, p, 2)

	if diff := cmp.Diff([]int{1, 2}, pages); diff != "" {
		t.Errorf("page numbers mismatch (-want +got):\n%s", diff)
	}
	if p.StopReason() != StopMaxPages {
		t.Errorf("StopReason() = %q, want %q", p.StopReason(), StopMaxPages)
	}
	if n := clicksOn(d, isNext); n != 1 {
		t.Errorf("next clicks = %d, want 1", n)
	}
}

func TestPages_ConsumerStops(t *testing.T) {
	d := threePages().driver()
	p := harvester(d)

	for range p.Pages(context.Background(), 0) {
		break
	}

	if p.StopReason() != StopConsumer {
		t.Errorf("StopReason() = %q, want %q", p.StopReason(), StopConsumer)
	}
	if n := clicksOn(d, isNext); n != 0 {
		t.Errorf("next clicks = %d, want 0", n)
	}
}

func TestPages_EmptyResults(t *testing.T) {
	d := browsertest.New(`<html><body><table><tbody></tbody></table><p>No results</p></body></html>`)
	p := harvester(d)

	_, pages := collect(t, p, 0)

	if len(pages) != 1 || p.StopReason() != StopNextAbsent {
		t.Errorf("pages = %v, stop = %q; want one empty page", pages, p.StopReason())
	}
}

func TestPages_NotReadyYieldsError(t *testing.T) {
	d := browsertest.New(`<html><body><table><tbody></tbody></table></body></html>`)
	p := harvester(d)

	var errs []error
	for page, err := range p.Pages(context.Background(), 0) {
		if err == nil {
			t.Fatalf("unexpected page %d", page.Number)
		}
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrResultsNotReady) {
		t.Errorf("errors = %v, want one ErrResultsNotReady", errs)
	}
	if p.StopReason() != StopError {
		t.Errorf("StopReason() = %q, want %q", p.StopReason(), StopError)
	}
}

func TestPages_MarkupFallsBackToPage(t *testing.T) {
	d := browsertest.New(`<html><body><div class="empty">No matching results</div></body></html>`)
	p := harvester(d)

	for page, err := range p.Pages(context.Background(), 0) {
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		if !strings.Contains(page.Markup, "No matching results") {
			t.Errorf("markup = %q, want the full page", page.Markup)
		}
	}
}
