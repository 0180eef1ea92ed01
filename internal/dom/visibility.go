package dom

import (
	"strconv"
	"strings"
)

// Style is a parsed inline style declaration list.
type Style map[string]string

func parseStyle(s string) Style {
	out := Style{}
	for _, decl := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.ToLower(strings.TrimSpace(value))
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		if name != "" {
			out[name] = value
		}
	}
	return out
}

// InlineStyle returns the element's parsed style attribute.
func (e *Element) InlineStyle() Style {
	return parseStyle(e.AttrTrimmed("style"))
}

func (e *Element) displayNone() bool {
	if e.HasAttr("hidden") {
		return true
	}
	if e.Tag() == "input" && e.InputType() == "hidden" {
		return true
	}
	return e.InlineStyle()["display"] == "none"
}

// visibilityHidden resolves the inherited visibility property: the nearest
// element that sets it wins.
func (e *Element) visibilityHidden() bool {
	for cur := e; cur != nil; cur = cur.Parent() {
		switch cur.InlineStyle()["visibility"] {
		case "hidden", "collapse":
			return true
		case "visible":
			return false
		}
	}
	return false
}

// Opacity is the element's own opacity (1 when unspecified).
func (e *Element) Opacity() float64 {
	raw, ok := e.sel.Attr(AttrOpacity)
	if !ok {
		raw, ok = e.InlineStyle()["opacity"]
	}
	if !ok {
		return 1
	}
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 1
		}
		return v / 100
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}
	return v
}

// StyleHidden reports display:none on the element itself or an inherited
// visibility:hidden.
func (e *Element) StyleHidden() bool {
	if v, ok := e.sel.Attr(AttrHidden); ok {
		return v == "true"
	}
	return e.displayNone() || e.visibilityHidden()
}

// Visible reports whether the element would be rendered: not hidden by
// itself or an ancestor and not fully transparent.
func (e *Element) Visible() bool {
	if v, ok := e.sel.Attr(AttrVisible); ok {
		return v == "true"
	}
	if nonRenderedTags[e.Tag()] {
		return false
	}
	if e.StyleHidden() || e.Opacity() == 0 {
		return false
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if nonRenderedTags[p.Tag()] || p.displayNone() || p.Opacity() == 0 {
			return false
		}
	}
	return true
}
