package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CSSPath builds a structural locator for e. The walk stops at the first
// ancestor carrying an id; same-tag siblings are disambiguated with
// :nth-child.
func (e *Element) CSSPath() string {
	var parts []string
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		name := strings.ToLower(n.Data)
		if name == "html" {
			break
		}
		if id := nodeAttr(n, "id"); id != "" {
			parts = append(parts, name+"#"+id)
			break
		}
		if n.Parent != nil {
			if idx, sameTag := childPosition(n); sameTag > 1 {
				name += fmt.Sprintf(":nth-child(%d)", idx)
			}
		}
		parts = append(parts, name)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// childPosition returns the 1-based index of n among its parent's element
// children and how many of those children share n's tag.
func childPosition(n *html.Node) (idx, sameTag int) {
	pos := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		pos++
		if c == n {
			idx = pos
		}
		if c.Data == n.Data {
			sameTag++
		}
	}
	return idx, sameTag
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
