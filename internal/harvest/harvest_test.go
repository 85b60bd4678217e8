package harvest

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/browser/browsertest"
	"github.com/jmylchreest/screenharvest/internal/record"
	"github.com/jmylchreest/screenharvest/internal/screener"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Fakes ---

type fakeSession struct {
	drv    browser.Driver
	closed int
}

func (s *fakeSession) Driver() browser.Driver { return s.drv }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakePage struct {
	opts     screener.Options
	openErr  error
	applyErr error
	pages    []string
	pageErr  error // yielded after pages
	region   string
	stop     screener.StopReason
}

func (p *fakePage) Open(context.Context) error { return p.openErr }

func (p *fakePage) ApplyRegion(_ context.Context, region string) error {
	p.region = region
	if p.opts.Events != nil {
		p.opts.Events.Refreshed(screener.TriggerFilterApplied, screener.RefreshByHash)
		p.opts.Events.Warning(screener.WarnDialogCloseTimeout)
	}
	return p.applyErr
}

func (p *fakePage) Pages(context.Context, int) iter.Seq2[screener.PageContent, error] {
	return func(yield func(screener.PageContent, error) bool) {
		for i, markup := range p.pages {
			if !yield(screener.PageContent{Number: i + 1, Markup: markup}, nil) {
				p.stop = screener.StopConsumer
				return
			}
		}
		if p.pageErr != nil {
			p.stop = screener.StopError
			yield(screener.PageContent{}, p.pageErr)
			return
		}
		p.stop = screener.StopNextAbsent
	}
}

func (p *fakePage) StopReason() screener.StopReason { return p.stop }

// mapParser returns canned rows keyed by markup.
type mapParser map[string][]record.Row

func (m mapParser) Parse(markup string) ([]record.Row, error) {
	rows, ok := m[markup]
	if !ok {
		return nil, errors.New("unexpected markup " + markup)
	}
	return rows, nil
}

type appendCall struct {
	Rows []record.Row
	Dest string
}

type fakeAppender struct {
	calls []appendCall
	err   error
}

func (a *fakeAppender) AppendRows(rows []record.Row, dest string) error {
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, appendCall{Rows: append([]record.Row(nil), rows...), Dest: dest})
	return nil
}

func (a *fakeAppender) Close() error { return nil }

func row(symbol string) record.Row {
	return record.Row{Symbol: symbol, Name: symbol + " Corp", Price: "1.00"}
}

var twoPages = mapParser{
	"page1": {row("AAA"), row("BBB")},
	"page2": {row("BBB"), row("CCC")},
}

func newService(t *testing.T, sess *fakeSession, page *fakePage, app *fakeAppender, parser Parser) *Service {
	t.Helper()
	return New(Config{}, app,
		WithLauncher(func(context.Context) (Session, error) { return sess, nil }),
		WithPageFactory(func(drv browser.Driver, opts screener.Options) Screener {
			page.opts = opts
			return page
		}),
		WithParser(parser),
	)
}

// --- Deduplicator Tests ---

func TestDeduplicator_FirstSeenOrder(t *testing.T) {
	d := NewDeduplicator()

	first := d.Merge([]record.Row{row("AAA"), row("BBB")})
	second := d.Merge([]record.Row{row("BBB"), row("CCC")})

	if diff := cmp.Diff([]record.Row{row("AAA"), row("BBB")}, first); diff != "" {
		t.Errorf("first batch mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]record.Row{row("CCC")}, second); diff != "" {
		t.Errorf("second batch mismatch (-want +got):\n%s", diff)
	}
	if d.Seen() != 3 {
		t.Errorf("Seen() = %d, want 3", d.Seen())
	}
	if d.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", d.Duplicates())
	}
}

func TestDeduplicator_EmptyKeys(t *testing.T) {
	d := NewDeduplicator()

	got := d.Merge([]record.Row{
		{Symbol: "", Name: "blank"},
		{Symbol: "   ", Name: "spaces"},
		row("AAA"),
		{Symbol: "\t", Name: "tab"},
	})

	if diff := cmp.Diff([]record.Row{row("AAA")}, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
	if d.Seen() != 1 {
		t.Errorf("Seen() = %d, want 1 (empty keys must not be marked)", d.Seen())
	}
	if d.EmptyKeys() != 3 {
		t.Errorf("EmptyKeys() = %d, want 3", d.EmptyKeys())
	}
}

func TestDeduplicator_KeyIsTrimmed(t *testing.T) {
	d := NewDeduplicator()

	d.Merge([]record.Row{{Symbol: "AAA"}})
	got := d.Merge([]record.Row{{Symbol: " AAA "}, {Symbol: "aaa"}})

	if len(got) != 1 || got[0].Symbol != "aaa" {
		t.Errorf("expected only the case-distinct symbol, got %+v", got)
	}
}

// --- Service Tests ---

func TestRun_StreamsUniqueRowsPerPage(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{pages: []string{"page1", "page2"}}
	app := &fakeAppender{}

	res, err := newService(t, sess, page, app, twoPages).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []appendCall{
		{Rows: []record.Row{row("AAA"), row("BBB")}, Dest: "out.csv"},
		{Rows: []record.Row{row("CCC")}, Dest: "out.csv"},
	}
	if diff := cmp.Diff(want, app.calls); diff != "" {
		t.Errorf("append calls mismatch (-want +got):\n%s", diff)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
	if page.region != "Brazil" {
		t.Errorf("region = %q, want Brazil", page.region)
	}

	s := res.Stats
	if s.Pages != 2 || s.RowsParsed != 4 || s.Unique != 3 || s.Duplicates != 1 || s.Appends != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.StopReason != screener.StopNextAbsent {
		t.Errorf("StopReason = %q, want %q", s.StopReason, screener.StopNextAbsent)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRun_EventsCountedInStats(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{pages: []string{"page1"}}

	res, err := newService(t, sess, page, &fakeAppender{}, twoPages).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff(map[string]int{"hash": 1}, res.Stats.Refreshes); diff != "" {
		t.Errorf("refreshes mismatch (-want +got):\n%s", diff)
	}
	if res.Stats.WarningCount() != 1 || res.Stats.Warnings[screener.WarnDialogCloseTimeout] != 1 {
		t.Errorf("unexpected warnings %+v", res.Stats.Warnings)
	}
}

func TestRun_PageWithoutNewRowsSkipsAppend(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{pages: []string{"page1", "again"}}
	parser := mapParser{
		"page1": {row("AAA")},
		"again": {row("AAA"), {Symbol: " "}},
	}
	app := &fakeAppender{}

	res, err := newService(t, sess, page, app, parser).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(app.calls) != 1 {
		t.Errorf("expected 1 append, got %d", len(app.calls))
	}
	if res.Stats.EmptyKeys != 1 {
		t.Errorf("EmptyKeys = %d, want 1", res.Stats.EmptyKeys)
	}
}

func TestRun_SetupFailureReleasesSession(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{openErr: errors.New("boom")}
	app := &fakeAppender{}

	_, err := newService(t, sess, page, app, twoPages).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected boom error, got %v", err)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
	if len(app.calls) != 0 {
		t.Errorf("expected no appends, got %d", len(app.calls))
	}
}

func TestRun_FilterFailureKeepsTypedError(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{applyErr: &screener.TargetOptionNotFoundError{Target: "Atlantis"}}

	_, err := newService(t, sess, page, &fakeAppender{}, twoPages).Run(context.Background(), Request{Region: "Atlantis", Dest: "out.csv"})

	var notFound *screener.TargetOptionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TargetOptionNotFoundError, got %v", err)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	launchErr := errors.New("no chrome")
	s := New(Config{}, &fakeAppender{},
		WithLauncher(func(context.Context) (Session, error) { return nil, launchErr }),
	)

	_, err := s.Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if !errors.Is(err, launchErr) {
		t.Errorf("expected launch error, got %v", err)
	}
}

func TestRun_PaginationErrorKeepsEarlierPages(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{pages: []string{"page1"}, pageErr: screener.ErrResultsNotReady}
	app := &fakeAppender{}

	res, err := newService(t, sess, page, app, twoPages).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if !errors.Is(err, screener.ErrResultsNotReady) {
		t.Fatalf("expected ErrResultsNotReady, got %v", err)
	}
	if len(app.calls) != 1 {
		t.Errorf("expected the first page to be appended, got %d appends", len(app.calls))
	}
	if res.Stats.Unique != 2 || res.Stats.StopReason != screener.StopError {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
}

func TestRun_AppendFailureStopsRun(t *testing.T) {
	sess := &fakeSession{}
	page := &fakePage{pages: []string{"page1", "page2"}}
	app := &fakeAppender{err: errors.New("disk full")}

	res, err := newService(t, sess, page, app, twoPages).Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if res.Stats.Pages != 1 {
		t.Errorf("Pages = %d, want 1", res.Stats.Pages)
	}
	if page.StopReason() != screener.StopConsumer {
		t.Errorf("StopReason = %q, want %q", page.StopReason(), screener.StopConsumer)
	}
}

func TestRun_DiagnosticsWired(t *testing.T) {
	sess := &fakeSession{drv: browsertest.New(`<html><body></body></html>`)}
	page := &fakePage{pages: []string{"page1"}}

	s := New(Config{DiagnosticsDir: t.TempDir()}, &fakeAppender{},
		WithLauncher(func(context.Context) (Session, error) { return sess, nil }),
		WithPageFactory(func(drv browser.Driver, opts screener.Options) Screener {
			page.opts = opts
			return page
		}),
		WithParser(twoPages),
	)
	if _, err := s.Run(context.Background(), Request{Region: "Brazil", Dest: "out.csv"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if page.opts.Diagnostics == nil {
		t.Error("expected a diagnostics sink")
	}
	if page.opts.Events == nil {
		t.Error("expected events to be wired")
	}
}

var _ screener.Events = (*Stats)(nil)
