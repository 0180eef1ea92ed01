package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a single element node inside a Document.
type Element struct {
	sel  *goquery.Selection
	node *html.Node
}

func newElement(sel *goquery.Selection) *Element {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	n := sel.Get(0)
	if n.Type != html.ElementNode {
		return nil
	}
	return &Element{sel: sel.First(), node: n}
}

// Node exposes the underlying html node.
func (e *Element) Node() *html.Node { return e.node }

// Selection exposes the goquery selection for callers that need it.
func (e *Element) Selection() *goquery.Selection { return e.sel }

// Tag is the lowercase tag name.
func (e *Element) Tag() string {
	return strings.ToLower(e.node.Data)
}

// Attr returns an attribute value as-is.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// AttrTrimmed returns the trimmed attribute value, or "" when absent.
func (e *Element) AttrTrimmed(name string) string {
	val, exists := e.sel.Attr(name)
	if exists {
		return strings.TrimSpace(val)
	}
	return ""
}

func (e *Element) HasAttr(name string) bool {
	_, ok := e.sel.Attr(name)
	return ok
}

func (e *Element) ID() string { return e.AttrTrimmed("id") }

// InputType is the lowercase type attribute of input elements.
func (e *Element) InputType() string {
	return strings.ToLower(e.AttrTrimmed("type"))
}

// Checked reports the checked state, preferring the live property captured
// by the browser backend over the markup attribute.
func (e *Element) Checked() bool {
	if v, ok := e.sel.Attr(AttrChecked); ok {
		return v == "true"
	}
	return e.HasAttr("checked")
}

// Selected is Checked for option elements.
func (e *Element) Selected() bool {
	if v, ok := e.sel.Attr(AttrSelected); ok {
		return v == "true"
	}
	return e.HasAttr("selected")
}

// Parent returns the parent element, or nil at the root.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return &Element{sel: e.sel.Parent(), node: p}
		}
	}
	return nil
}

// Find returns the descendants matching selector in document order.
func (e *Element) Find(selector string) []*Element {
	var out []*Element
	e.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if el := newElement(s); el != nil {
			out = append(out, el)
		}
	})
	return out
}

// OuterHTML returns the element markup truncated to max bytes (0 = no limit).
func (e *Element) OuterHTML(max int) string {
	out, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return ""
	}
	if max > 0 && len(out) > max {
		return out[:max]
	}
	return out
}

var nonRenderedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "table": true, "section": true,
	"article": true, "header": true, "footer": true, "nav": true, "aside": true,
	"form": true, "fieldset": true, "option": true,
}

// Text approximates rendered text: script/style content is skipped, block
// boundaries become spaces and whitespace runs are collapsed.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if nonRenderedTags[tag] {
				return
			}
			if blockTags[tag] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return CollapseSpace(b.String())
}

// OwnText is the collapsed text of direct text-node children only.
func (e *Element) OwnText() string {
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return CollapseSpace(b.String())
}

// CollapseSpace trims s and folds whitespace runs into single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
