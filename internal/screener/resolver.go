package screener

import (
	"context"
	"strings"

	"github.com/jmylchreest/screenharvest/internal/browser"
)

// LabelResolver finds the option label matching a normalized target inside
// a dialog. Resolvers only read; a zero Handle means no match.
type LabelResolver interface {
	Resolve(ctx context.Context, drv browser.Driver, dialog browser.Handle, target string) (browser.Handle, error)
}

// TextResolver matches the option's visible name.
type TextResolver struct {
	Loc Locators
}

func (r TextResolver) Resolve(ctx context.Context, drv browser.Driver, dialog browser.Handle, target string) (browser.Handle, error) {
	labels, err := drv.Find(ctx, dialog, r.Loc.DialogOptions)
	if err != nil {
		return browser.Handle{}, err
	}
	hs, _ := labels.Get()
	for _, l := range hs {
		name, err := optionName(ctx, drv, r.Loc, l)
		if err != nil {
			return browser.Handle{}, err
		}
		if normalize(name) == target {
			return l, nil
		}
	}
	return browser.Handle{}, nil
}

// AttributeResolver matches the option's aria-label or title attribute.
type AttributeResolver struct {
	Loc   Locators
	Attrs []string
}

func (r AttributeResolver) Resolve(ctx context.Context, drv browser.Driver, dialog browser.Handle, target string) (browser.Handle, error) {
	attrs := r.Attrs
	if len(attrs) == 0 {
		attrs = []string{"aria-label", "title"}
	}
	labels, err := drv.Find(ctx, dialog, r.Loc.DialogOptions)
	if err != nil {
		return browser.Handle{}, err
	}
	hs, _ := labels.Get()
	for _, name := range attrs {
		for _, l := range hs {
			a, err := drv.Attribute(ctx, l, name)
			if err != nil {
				return browser.Handle{}, err
			}
			if v, ok := a.Get(); ok && v.Present && normalize(v.Value) == target {
				return l, nil
			}
		}
	}
	return browser.Handle{}, nil
}

// DefaultResolvers returns the text resolver followed by the attribute
// resolver.
func DefaultResolvers(loc Locators) []LabelResolver {
	return []LabelResolver{TextResolver{Loc: loc}, AttributeResolver{Loc: loc}}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// optionName reads the option's name element, falling back to the label's
// own text. A stale label yields "".
func optionName(ctx context.Context, drv browser.Driver, loc Locators, label browser.Handle) (string, error) {
	res, err := drv.Find(ctx, label, loc.OptionName)
	if err != nil {
		return "", err
	}
	target := label
	if hs, ok := res.Get(); ok && len(hs) > 0 {
		target = hs[0]
	}
	txt, err := drv.Text(ctx, target)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(txt.Or("")), nil
}
