package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/raysh454/darkscan/internal/model"
)

const defaultWidth = 100

// printer renders patterns for humans, with color and width fitting only
// when writing to a terminal.
type printer struct {
	w     io.Writer
	color bool
	width int
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w, width: defaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.color = os.Getenv("NO_COLOR") == ""
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 40 {
			p.width = width
		}
	}
	return p
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (p *printer) fit(s string, indent int) string {
	s = strings.Join(strings.Fields(s), " ")
	limit := p.width - indent
	if limit < 20 {
		limit = 20
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func (p *printer) patterns(url string, ps []model.Pattern) {
	if len(ps) == 0 {
		fmt.Fprintf(p.w, "%s %s\n", p.paint("32", "✓"), "No dark patterns detected on "+url)
		return
	}
	fmt.Fprintf(p.w, "%s %d dark pattern(s) on %s\n\n", p.paint("31", "⚠"), len(ps), url)
	for i, pt := range ps {
		p.pattern(i+1, pt)
	}
}

func (p *printer) pattern(n int, pt model.Pattern) {
	mark := ""
	if pt.Verified {
		mark = " " + p.paint("32", "verified")
	}
	fmt.Fprintf(p.w, "%2d. %s %s %s%s\n", n, pt.Icon,
		p.paint("1", string(pt.Category)),
		p.paint("2", fmt.Sprintf("(%.0f%%)", pt.Confidence*100)), mark)
	fmt.Fprintf(p.w, "    %q\n", p.fit(pt.Snippet, 6))
	if pt.Details != "" {
		fmt.Fprintf(p.w, "    %s\n", p.fit(pt.Details, 4))
	}
	fmt.Fprintln(p.w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
