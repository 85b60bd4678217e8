package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeDriver implements Driver over a chromedp tab.
type ChromeDriver struct {
	ctx       context.Context // tab context, owned by Session
	opTimeout time.Duration
}

var _ Driver = (*ChromeDriver)(nil)

// run executes actions on the tab, bounded by timeout and by ctx.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (d *ChromeDriver) eval(ctx context.Context, body string, args map[string]any, out any) error {
	return d.run(ctx, d.opTimeout, chromedp.Evaluate(buildScript(body, args), out))
}

type staleValue[T any] struct {
	Stale bool `json:"stale"`
	Value T    `json:"value"`
}

func (s staleValue[T]) read() Read[T] {
	if s.Stale {
		return Stale[T]()
	}
	return Fresh(s.Value)
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, d.opTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) Find(ctx context.Context, root Handle, sel Selector) (Read[[]Handle], error) {
	var res struct {
		Stale bool     `json:"stale"`
		Refs  []string `json:"refs"`
	}
	err := d.eval(ctx, findScript, map[string]any{
		"ref":  root.ref,
		"kind": string(sel.Kind),
		"expr": sel.Expr,
	}, &res)
	if err != nil {
		return Read[[]Handle]{}, fmt.Errorf("find %s (%s): %w", sel.Name, sel, err)
	}
	if res.Stale {
		return Stale[[]Handle](), nil
	}
	hs := make([]Handle, 0, len(res.Refs))
	for _, r := range res.Refs {
		hs = append(hs, NewHandle(r))
	}
	return Fresh(hs), nil
}

func (d *ChromeDriver) Click(ctx context.Context, h Handle) error {
	var hit struct {
		Stale   bool    `json:"stale"`
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		Hit     bool    `json:"hit"`
		Blocker string  `json:"blocker"`
	}
	if err := d.eval(ctx, hitTestScript, map[string]any{"ref": h.ref}, &hit); err != nil {
		return fmt.Errorf("click %s: %w", h, err)
	}
	if hit.Stale {
		return fmt.Errorf("click %s: %w", h, ErrStaleHandle)
	}
	if !hit.Hit {
		return fmt.Errorf("click %s (covered by %s): %w", h, hit.Blocker, ErrClickIntercepted)
	}
	if err := d.run(ctx, d.opTimeout, chromedp.MouseClickXY(hit.X, hit.Y)); err != nil {
		return fmt.Errorf("click %s: %w", h, err)
	}
	return nil
}

func (d *ChromeDriver) ScriptClick(ctx context.Context, h Handle) error {
	var ok bool
	if err := d.eval(ctx, scriptClickScript, map[string]any{"ref": h.ref}, &ok); err != nil {
		return fmt.Errorf("script click %s: %w", h, err)
	}
	if !ok {
		return fmt.Errorf("script click %s: %w", h, ErrStaleHandle)
	}
	return nil
}

func (d *ChromeDriver) ScrollIntoView(ctx context.Context, h Handle) error {
	var ok bool
	if err := d.eval(ctx, scrollScript, map[string]any{"ref": h.ref}, &ok); err != nil {
		return fmt.Errorf("scroll %s: %w", h, err)
	}
	if !ok {
		return ErrStaleHandle
	}
	return nil
}

func (d *ChromeDriver) Attribute(ctx context.Context, h Handle, name string) (Read[Attr], error) {
	var res struct {
		Stale   bool   `json:"stale"`
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := d.eval(ctx, attributeScript, map[string]any{"ref": h.ref, "name": name}, &res); err != nil {
		return Read[Attr]{}, fmt.Errorf("attribute %q of %s: %w", name, h, err)
	}
	if res.Stale {
		return Stale[Attr](), nil
	}
	return Fresh(Attr{Value: res.Value, Present: res.Present}), nil
}

func (d *ChromeDriver) Text(ctx context.Context, h Handle) (Read[string], error) {
	var res staleValue[string]
	if err := d.eval(ctx, textScript, map[string]any{"ref": h.ref}, &res); err != nil {
		return Read[string]{}, fmt.Errorf("text of %s: %w", h, err)
	}
	return res.read(), nil
}

func (d *ChromeDriver) OuterHTML(ctx context.Context, h Handle) (Read[string], error) {
	var res staleValue[string]
	if err := d.eval(ctx, outerHTMLScript, map[string]any{"ref": h.ref}, &res); err != nil {
		return Read[string]{}, fmt.Errorf("outer html of %s: %w", h, err)
	}
	return res.read(), nil
}

func (d *ChromeDriver) Checked(ctx context.Context, h Handle) (Read[bool], error) {
	var res staleValue[bool]
	if err := d.eval(ctx, checkedScript, map[string]any{"ref": h.ref}, &res); err != nil {
		return Read[bool]{}, fmt.Errorf("checked state of %s: %w", h, err)
	}
	return res.read(), nil
}

func (d *ChromeDriver) Connected(ctx context.Context, h Handle) (bool, error) {
	if h.IsZero() {
		return false, nil
	}
	var ok bool
	if err := d.eval(ctx, connectedScript, map[string]any{"ref": h.ref}, &ok); err != nil {
		return false, fmt.Errorf("connected state of %s: %w", h, err)
	}
	return ok, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, d.opTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

func (d *ChromeDriver) Markup(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, d.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page markup: %w", err)
	}
	return html, nil
}
