// Package browsertest provides an in-memory browser.Driver over a parsed
// HTML document. Tests script page behavior with click hooks and delayed
// mutations.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/screenharvest/internal/browser"
)

// ClickEvent records one click that reached the document.
type ClickEvent struct {
	Node   *html.Node
	Text   string
	Script bool
}

type clickHook struct {
	match func(*html.Node) bool
	fn    func(*DOM, *html.Node)
}

type scheduled struct {
	at int
	fn func(*DOM)
}

// Driver is a fake browser.Driver. Every call counts as one tick; mutations
// scheduled with After run once their tick is reached.
type Driver struct {
	mu sync.Mutex

	doc    *html.Node
	refs   map[string]*html.Node
	byNode map[*html.Node]string
	seq    int

	ticks     int
	pending   []scheduled
	hooks     []clickHook
	intercept func(*html.Node) bool
	failures  map[string]error

	clicks      []ClickEvent
	intercepted int
	navigations []string
	screenshots []string
}

var _ browser.Driver = (*Driver)(nil)

// New parses markup into a fake document.
func New(markup string) *Driver {
	d := &Driver{
		refs:     make(map[string]*html.Node),
		byNode:   make(map[*html.Node]string),
		failures: make(map[string]error),
	}
	d.doc = mustParse(markup)
	return d
}

func mustParse(markup string) *html.Node {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: parse markup: %v", err))
	}
	return doc
}

// SetMarkup replaces the whole document. Every existing handle goes stale.
func (d *Driver) SetMarkup(markup string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = mustParse(markup)
}

// Mutate runs fn against the document.
func (d *Driver) Mutate(fn func(*DOM)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&DOM{root: d.doc})
}

// After schedules fn to run once ticks more driver calls have been made.
func (d *Driver) After(ticks int, fn func(*DOM)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, scheduled{at: d.ticks + ticks, fn: fn})
}

// OnClick registers fn to run after any click on a node matching match.
func (d *Driver) OnClick(match func(*html.Node) bool, fn func(*DOM, *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, clickHook{match: match, fn: fn})
}

// Intercept makes user-level clicks on matching nodes fail with
// browser.ErrClickIntercepted. Script clicks are unaffected.
func (d *Driver) Intercept(match func(*html.Node) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intercept = match
}

// Fail makes every call of the named operation (e.g. "Navigate",
// "Screenshot") return err. A nil err clears the failure.
func (d *Driver) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Clicks returns every click that reached the document.
func (d *Driver) Clicks() []ClickEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ClickEvent(nil), d.clicks...)
}

// Intercepted returns how many user clicks were intercepted.
func (d *Driver) Intercepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intercepted
}

// Navigations returns the visited URLs.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Screenshots returns the paths screenshots were written to.
func (d *Driver) Screenshots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.screenshots...)
}

// Ticks returns the number of driver calls made so far.
func (d *Driver) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// HandleOf returns the handle for n, as Find would.
func (d *Driver) HandleOf(n *html.Node) browser.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handleLocked(n)
}

// tick advances the clock, runs due mutations and reports an injected
// failure for op. Callers hold mu.
func (d *Driver) tick(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.ticks++
	var keep []scheduled
	var due []scheduled
	for _, s := range d.pending {
		if s.at <= d.ticks {
			due = append(due, s)
		} else {
			keep = append(keep, s)
		}
	}
	d.pending = keep
	for _, s := range due {
		s.fn(&DOM{root: d.doc})
	}
	return d.failures[op]
}

func (d *Driver) handleLocked(n *html.Node) browser.Handle {
	if ref, ok := d.byNode[n]; ok {
		return browser.NewHandle(ref)
	}
	d.seq++
	ref := fmt.Sprintf("n%d", d.seq)
	d.byNode[n] = ref
	d.refs[ref] = n
	return browser.NewHandle(ref)
}

// resolve returns the live node behind h, or nil when h is stale.
func (d *Driver) resolve(h browser.Handle) *html.Node {
	n, ok := d.refs[h.Ref()]
	if !ok {
		return nil
	}
	for p := n; p != nil; p = p.Parent {
		if p == d.doc {
			return n
		}
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Navigate"); err != nil {
		return err
	}
	d.navigations = append(d.navigations, url)
	return nil
}

func (d *Driver) Find(ctx context.Context, root browser.Handle, sel browser.Selector) (browser.Read[[]browser.Handle], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Find"); err != nil {
		return browser.Read[[]browser.Handle]{}, err
	}

	scope := d.doc
	if !root.IsZero() {
		scope = d.resolve(root)
		if scope == nil {
			return browser.Stale[[]browser.Handle](), nil
		}
	}

	var nodes []*html.Node
	switch sel.Kind {
	case browser.XPath:
		found, err := htmlquery.QueryAll(scope, sel.Expr)
		if err != nil {
			return browser.Read[[]browser.Handle]{}, fmt.Errorf("find %s: %w", sel.Name, err)
		}
		nodes = found
	default:
		nodes = goquery.NewDocumentFromNode(scope).Find(sel.Expr).Nodes
	}

	hs := make([]browser.Handle, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			hs = append(hs, d.handleLocked(n))
		}
	}
	return browser.Fresh(hs), nil
}

func (d *Driver) Click(ctx context.Context, h browser.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Click"); err != nil {
		return err
	}
	n := d.resolve(h)
	if n == nil {
		return fmt.Errorf("click %s: %w", h, browser.ErrStaleHandle)
	}
	if d.intercept != nil && d.intercept(n) {
		d.intercepted++
		return fmt.Errorf("click %s: %w", h, browser.ErrClickIntercepted)
	}
	d.clickLocked(n, false)
	return nil
}

func (d *Driver) ScriptClick(ctx context.Context, h browser.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "ScriptClick"); err != nil {
		return err
	}
	n := d.resolve(h)
	if n == nil {
		return fmt.Errorf("script click %s: %w", h, browser.ErrStaleHandle)
	}
	d.clickLocked(n, true)
	return nil
}

// clickLocked applies the default action (checkbox toggling) and runs hooks.
// Disabled elements swallow the click.
func (d *Driver) clickLocked(n *html.Node, script bool) {
	d.clicks = append(d.clicks, ClickEvent{Node: n, Text: textOf(n), Script: script})
	if _, disabled := attr(n, "disabled"); disabled {
		return
	}
	if n.Data == "label" || isCheckbox(n) {
		if cb := findCheckbox(n); cb != nil {
			if _, disabled := attr(cb, "disabled"); !disabled {
				_, checked := attr(cb, "checked")
				(&DOM{}).SetChecked(cb, !checked)
			}
		}
	}
	dom := &DOM{root: d.doc}
	for _, hk := range d.hooks {
		if hk.match(n) {
			hk.fn(dom, n)
		}
	}
}

func (d *Driver) ScrollIntoView(ctx context.Context, h browser.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "ScrollIntoView"); err != nil {
		return err
	}
	if d.resolve(h) == nil {
		return browser.ErrStaleHandle
	}
	return nil
}

func (d *Driver) Attribute(ctx context.Context, h browser.Handle, name string) (browser.Read[browser.Attr], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Attribute"); err != nil {
		return browser.Read[browser.Attr]{}, err
	}
	n := d.resolve(h)
	if n == nil {
		return browser.Stale[browser.Attr](), nil
	}
	v, ok := attr(n, name)
	return browser.Fresh(browser.Attr{Value: v, Present: ok}), nil
}

func (d *Driver) Text(ctx context.Context, h browser.Handle) (browser.Read[string], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Text"); err != nil {
		return browser.Read[string]{}, err
	}
	n := d.resolve(h)
	if n == nil {
		return browser.Stale[string](), nil
	}
	return browser.Fresh(textOf(n)), nil
}

func (d *Driver) OuterHTML(ctx context.Context, h browser.Handle) (browser.Read[string], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "OuterHTML"); err != nil {
		return browser.Read[string]{}, err
	}
	n := d.resolve(h)
	if n == nil {
		return browser.Stale[string](), nil
	}
	return browser.Fresh(render(n)), nil
}

func (d *Driver) Checked(ctx context.Context, h browser.Handle) (browser.Read[bool], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Checked"); err != nil {
		return browser.Read[bool]{}, err
	}
	n := d.resolve(h)
	if n == nil {
		return browser.Stale[bool](), nil
	}
	_, checked := attr(n, "checked")
	return browser.Fresh(checked), nil
}

func (d *Driver) Connected(ctx context.Context, h browser.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Connected"); err != nil {
		return false, err
	}
	return d.resolve(h) != nil, nil
}

// Screenshot writes a placeholder image so callers can assert on files.
func (d *Driver) Screenshot(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Screenshot"); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("\x89PNG browsertest"), 0o644); err != nil {
		return err
	}
	d.screenshots = append(d.screenshots, path)
	return nil
}

func (d *Driver) Markup(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tick(ctx, "Markup"); err != nil {
		return "", err
	}
	return render(d.doc), nil
}
