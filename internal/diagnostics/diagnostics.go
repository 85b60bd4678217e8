// Package diagnostics captures page state when a harvest fails during
// setup: a screenshot, the page markup and a YAML manifest describing the
// failure.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
	"github.com/jmylchreest/screenharvest/internal/screener"
)

// Manifest describes one capture.
type Manifest struct {
	RunID      string    `yaml:"run_id"`
	Phase      string    `yaml:"phase"`
	Intent     string    `yaml:"intent,omitempty"`
	Elapsed    string    `yaml:"elapsed,omitempty"`
	Error      string    `yaml:"error"`
	Screenshot string    `yaml:"screenshot,omitempty"`
	Markup     string    `yaml:"markup,omitempty"`
	CapturedAt time.Time `yaml:"captured_at"`
}

// Sink writes captures into a directory. Failures while capturing are
// logged and never returned; the original error is what matters.
type Sink struct {
	dir   string
	runID string
	now   func() time.Time

	mu        sync.Mutex
	seq       int
	manifests []string
}

// New creates a sink writing into dir. Files are prefixed with runID.
func New(dir, runID string) *Sink {
	return &Sink{dir: dir, runID: runID, now: time.Now}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Capture implements screener.DiagnosticSink.
func (s *Sink) Capture(ctx context.Context, drv browser.Driver, phase string, cause error) {
	s.mu.Lock()
	s.seq++
	base := fmt.Sprintf("%s-%02d-%s", s.runID, s.seq, unsafeChars.ReplaceAllString(phase, "_"))
	s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		logger.Warn("diagnostics directory unavailable", "dir", s.dir, "error", err)
		return
	}

	m := Manifest{
		RunID:      s.runID,
		Phase:      phase,
		CapturedAt: s.now().UTC(),
	}
	if cause != nil {
		m.Error = cause.Error()
	}
	var ste *screener.SetupTimeoutError
	if errors.As(cause, &ste) {
		m.Intent = ste.Intent
		m.Elapsed = ste.Elapsed.Round(time.Millisecond).String()
	}

	shot := filepath.Join(s.dir, base+".png")
	if err := drv.Screenshot(ctx, shot); err != nil {
		logger.Warn("diagnostic screenshot failed", "phase", phase, "error", err)
	} else {
		m.Screenshot = filepath.Base(shot)
	}

	if html, err := drv.Markup(ctx); err != nil {
		logger.Warn("diagnostic markup failed", "phase", phase, "error", err)
	} else {
		path := filepath.Join(s.dir, base+".html")
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			logger.Warn("diagnostic markup write failed", "path", path, "error", err)
		} else {
			m.Markup = filepath.Base(path)
		}
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		logger.Warn("diagnostic manifest encode failed", "error", err)
		return
	}
	manifest := filepath.Join(s.dir, base+".yaml")
	if err := os.WriteFile(manifest, data, 0o644); err != nil {
		logger.Warn("diagnostic manifest write failed", "path", manifest, "error", err)
		return
	}

	s.mu.Lock()
	s.manifests = append(s.manifests, manifest)
	s.mu.Unlock()
	logger.Info("diagnostics captured", "phase", phase, "manifest", manifest)
}

// Manifests returns the manifest paths written so far.
func (s *Sink) Manifests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.manifests...)
}
