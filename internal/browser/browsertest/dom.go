package browsertest

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOM gives mutation callbacks direct access to the fake document. It is
// only valid inside Driver.Mutate, OnClick and After callbacks.
type DOM struct {
	root *html.Node
}

// Root returns the document node.
func (d *DOM) Root() *html.Node { return d.root }

// Query returns every element matching a CSS selector.
func (d *DOM) Query(css string) []*html.Node {
	return goquery.NewDocumentFromNode(d.root).Find(css).Nodes
}

// QueryOne returns the first element matching a CSS selector, or nil.
func (d *DOM) QueryOne(css string) *html.Node {
	nodes := d.Query(css)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// XPath returns every element matching an XPath expression.
func (d *DOM) XPath(expr string) []*html.Node {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil
	}
	return nodes
}

// SetAttr sets an attribute, replacing any existing value.
func (d *DOM) SetAttr(n *html.Node, key, val string) {
	setAttr(n, key, val)
}

// RemoveAttr deletes an attribute if present.
func (d *DOM) RemoveAttr(n *html.Node, key string) {
	removeAttr(n, key)
}

// SetChecked toggles the checked attribute of a checkbox.
func (d *DOM) SetChecked(n *html.Node, checked bool) {
	if checked {
		setAttr(n, "checked", "")
	} else {
		removeAttr(n, "checked")
	}
}

// Detach removes n from the tree. Handles to n and its subtree go stale.
func (d *DOM) Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Replace swaps n for freshly parsed markup. Handles to the old subtree go
// stale.
func (d *DOM) Replace(n *html.Node, markup string) {
	if n == nil || n.Parent == nil {
		return
	}
	for _, c := range parseFragment(n.Parent, markup) {
		n.Parent.InsertBefore(c, n)
	}
	n.Parent.RemoveChild(n)
}

// SetInner replaces the children of n with freshly parsed markup.
func (d *DOM) SetInner(n *html.Node, markup string) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range parseFragment(n, markup) {
		n.AppendChild(c)
	}
}

func parseFragment(context *html.Node, markup string) []*html.Node {
	if context.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil
	}
	return nodes
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// textOf approximates innerText: text nodes joined by single spaces, so
// table cells read as "AAA Apple 1.00".
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

func isCheckbox(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != "input" {
		return false
	}
	typ, _ := attr(n, "type")
	return strings.EqualFold(typ, "checkbox")
}

func findCheckbox(n *html.Node) *html.Node {
	if isCheckbox(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if cb := findCheckbox(c); cb != nil {
			return cb
		}
	}
	return nil
}
