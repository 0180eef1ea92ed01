// Package dom wraps parsed page snapshots with the element queries the
// detectors need: rendered text, visibility, form state and CSS paths.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Attributes written by the browser backend's annotation script. When they
// are present they override anything inferred from inline markup.
const (
	AttrVisible  = "data-darkscan-visible"
	AttrHidden   = "data-darkscan-hidden"
	AttrOpacity  = "data-darkscan-opacity"
	AttrChecked  = "data-darkscan-checked"
	AttrSelected = "data-darkscan-selected"
)

// Document is an immutable snapshot of a page's DOM.
type Document struct {
	doc     *goquery.Document
	url     string
	takenAt time.Time
}

// Parse reads HTML from r.
func Parse(r io.Reader, url string) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: gq, url: url, takenAt: time.Now().UTC()}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, url string) (*Document, error) {
	return Parse(strings.NewReader(markup), url)
}

// ParseBytes is Parse for a fetched body.
func ParseBytes(body []byte, url string) (*Document, error) {
	return Parse(bytes.NewReader(body), url)
}

func (d *Document) URL() string        { return d.url }
func (d *Document) TakenAt() time.Time { return d.takenAt }

// Select returns the elements matching a CSS selector in document order.
func (d *Document) Select(selector string) []*Element {
	var out []*Element
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if el := newElement(s); el != nil {
			out = append(out, el)
		}
	})
	return out
}

// Elements returns every element in document order.
func (d *Document) Elements() []*Element {
	return d.Select("*")
}

// Title is the document title, trimmed.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}
