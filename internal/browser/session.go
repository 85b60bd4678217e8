package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/screenharvest/internal/logger"
)

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures the browser session.
type Options struct {
	Headless     bool
	Stealth      bool
	ChromePath   string // empty = FindChromePath
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// OpTimeout bounds every single driver operation.
	OpTimeout time.Duration
	// StartTimeout bounds the browser launch.
	StartTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		UserAgent:    defaultUserAgent,
		WindowWidth:  1920,
		WindowHeight: 1080,
		OpTimeout:    30 * time.Second,
		StartTimeout: 60 * time.Second,
	}
}

// Session owns one browser process and tab. Close is safe to call more than
// once; the browser is released exactly once.
type Session struct {
	driver      *ChromeDriver
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	closeOnce   sync.Once
}

// Launch starts Chrome and opens a tab.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	if opts.OpTimeout == 0 {
		opts.OpTimeout = def.OpTimeout
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = def.StartTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.Stealth {
		allocOpts = append(allocOpts, stealthAllocatorOptions()...)
	}
	chromePath := opts.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromePath))
	}

	// The browser must outlive ctx-scoped calls; it is torn down by Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	s := &Session{
		driver:      &ChromeDriver{ctx: tabCtx, opTimeout: opts.OpTimeout},
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}

	// The first Run allocates the browser and must use the tab context
	// itself; a derived timeout context would tear the browser down with it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-time.After(opts.StartTimeout):
		_ = s.Close()
		return nil, fmt.Errorf("failed to start browser: timed out after %s", opts.StartTimeout)
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}

	if opts.Stealth {
		if err := s.driver.run(ctx, opts.OpTimeout, injectStealthScript()); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to inject stealth script: %w", err)
		}
	}

	logger.Debug("browser session started",
		"headless", opts.Headless,
		"stealth", opts.Stealth,
		"chrome", chromePath,
		"op_timeout", opts.OpTimeout)

	return s, nil
}

// Driver returns the session's driver.
func (s *Session) Driver() Driver {
	return s.driver
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		logger.Debug("browser session closed")
	})
	return nil
}
