// Package browser wraps the automation session the harvester drives.
//
// Element references are opaque Handles. A Handle may outlive the node it
// pointed at; every read through the Driver reports that case as a Stale
// outcome instead of an error, so callers can treat a vanished node as a
// state change.
package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrStaleHandle is returned by actions (not reads) on a handle whose
	// node has left the document.
	ErrStaleHandle = errors.New("stale element handle")

	// ErrClickIntercepted reports that a user-level click would land on a
	// different element, usually an overlay.
	ErrClickIntercepted = errors.New("click intercepted")
)

// Handle is an opaque reference to a DOM element.
type Handle struct {
	ref string
}

// NewHandle wraps a driver-specific reference.
func NewHandle(ref string) Handle {
	return Handle{ref: ref}
}

// Ref returns the driver-specific reference.
func (h Handle) Ref() string { return h.ref }

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool { return h.ref == "" }

func (h Handle) String() string {
	if h.ref == "" {
		return "<none>"
	}
	return h.ref
}

// SelectorKind identifies the query language of a Selector.
type SelectorKind string

const (
	CSS   SelectorKind = "css"
	XPath SelectorKind = "xpath"
)

// Selector is a named element query. Name is used in logs and diagnostics.
type Selector struct {
	Name string
	Kind SelectorKind
	Expr string
}

// ParseSelector builds a selector from "css:..." or "xpath:..." notation.
// Without a prefix, expressions starting with '/', './' or '(' are XPath.
func ParseSelector(name, s string) Selector {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "css:"):
		return Selector{Name: name, Kind: CSS, Expr: strings.TrimSpace(s[len("css:"):])}
	case strings.HasPrefix(s, "xpath:"):
		return Selector{Name: name, Kind: XPath, Expr: strings.TrimSpace(s[len("xpath:"):])}
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "("):
		return Selector{Name: name, Kind: XPath, Expr: s}
	default:
		return Selector{Name: name, Kind: CSS, Expr: s}
	}
}

func (s Selector) String() string {
	return string(s.Kind) + ":" + s.Expr
}

// Read is the outcome of reading through a Handle: either a fresh value or
// Stale when the node is no longer part of the document.
type Read[T any] struct {
	value T
	stale bool
}

// Fresh wraps a value read from a live node.
func Fresh[T any](v T) Read[T] {
	return Read[T]{value: v}
}

// Stale reports that the node is gone.
func Stale[T any]() Read[T] {
	return Read[T]{stale: true}
}

// Get returns the value and true when fresh.
func (r Read[T]) Get() (T, bool) {
	return r.value, !r.stale
}

// IsStale reports whether the node was gone.
func (r Read[T]) IsStale() bool { return r.stale }

// Or returns the value when fresh and def otherwise.
func (r Read[T]) Or(def T) T {
	if r.stale {
		return def
	}
	return r.value
}

// Attr is an attribute read. Present distinguishes an empty value from a
// missing attribute (e.g. disabled="").
type Attr struct {
	Value   string
	Present bool
}

// Driver is the automation surface the screener core consumes.
//
// Find with a zero root searches the whole document. Finding inside a stale
// root returns a Stale outcome.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, root Handle, sel Selector) (Read[[]Handle], error)

	// Click performs a user-level click and returns ErrClickIntercepted when
	// another element would receive it.
	Click(ctx context.Context, h Handle) error
	// ScriptClick dispatches the click from script, bypassing hit testing.
	ScriptClick(ctx context.Context, h Handle) error
	ScrollIntoView(ctx context.Context, h Handle) error

	Attribute(ctx context.Context, h Handle, name string) (Read[Attr], error)
	Text(ctx context.Context, h Handle) (Read[string], error)
	OuterHTML(ctx context.Context, h Handle) (Read[string], error)
	Checked(ctx context.Context, h Handle) (Read[bool], error)
	Connected(ctx context.Context, h Handle) (bool, error)

	Screenshot(ctx context.Context, path string) error
	Markup(ctx context.Context) (string, error)
}

// FindAll searches the whole document. Document-level searches cannot be
// stale, so the outcome is unwrapped.
func FindAll(ctx context.Context, d Driver, sel Selector) ([]Handle, error) {
	res, err := d.Find(ctx, Handle{}, sel)
	if err != nil {
		return nil, err
	}
	hs, _ := res.Get()
	return hs, nil
}

// FindFirst returns the first document-level match or a zero Handle.
func FindFirst(ctx context.Context, d Driver, sel Selector) (Handle, error) {
	hs, err := FindAll(ctx, d, sel)
	if err != nil || len(hs) == 0 {
		return Handle{}, err
	}
	return hs[0], nil
}
