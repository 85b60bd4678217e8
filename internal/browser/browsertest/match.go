package browsertest

import (
	"strings"

	"golang.org/x/net/html"
)

// Matcher selects nodes for OnClick and Intercept.
type Matcher = func(*html.Node) bool

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

// AttrIs matches elements whose attribute key equals val.
func AttrIs(key, val string) Matcher {
	return func(n *html.Node) bool {
		v, ok := attr(n, key)
		return ok && v == val
	}
}

// TextIs matches elements whose collapsed text equals s.
func TextIs(s string) Matcher {
	return func(n *html.Node) bool {
		return textOf(n) == s
	}
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// Any matches every node.
func Any(*html.Node) bool { return true }

// AttrOf returns an attribute value of n.
func AttrOf(n *html.Node, key string) (string, bool) {
	return attr(n, key)
}

// TextOf returns the collapsed text of n.
func TextOf(n *html.Node) string {
	return textOf(n)
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	v, _ := attr(n, "class")
	for _, f := range strings.Fields(v) {
		if f == c {
			return true
		}
	}
	return false
}
