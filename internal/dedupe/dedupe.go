// Package dedupe collapses overlapping detections into one pattern per
// logical finding.
package dedupe

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raysh454/darkscan/internal/model"
)

// NormalizedLen bounds normalized snippets.
const NormalizedLen = 200

// MinLen is the shortest normalized snippet worth keeping.
const MinLen = 3

// Normalize lowercases s, strips non-word characters, collapses whitespace
// and truncates to NormalizedLen characters.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return truncate(b.String(), NormalizedLen)
}

// Better reports whether a should be preferred over b: verified first, then
// confidence.
func Better(a, b model.Pattern) bool {
	if a.Verified != b.Verified {
		return a.Verified
	}
	return a.Confidence > b.Confidence
}

type kept struct {
	norm    string
	pattern model.Pattern
}

// Merge resolves the union of all proposals of one scan pass. Patterns are
// ordered longest normalized snippet first, then by confidence. A pattern
// whose normalized text contains, or is contained in, a kept entry's text is
// the same finding; the longer one survives and equal lengths fall back to
// Better. Patterns with fewer than MinLen normalized characters are dropped.
func Merge(patterns []model.Pattern) []model.Pattern {
	items := make([]kept, 0, len(patterns))
	for _, p := range patterns {
		n := Normalize(p.Snippet)
		if utf8.RuneCountInString(n) < MinLen {
			continue
		}
		items = append(items, kept{norm: n, pattern: p})
	}
	sort.SliceStable(items, func(i, j int) bool {
		li, lj := len(items[i].norm), len(items[j].norm)
		if li != lj {
			return li > lj
		}
		return items[i].pattern.Confidence > items[j].pattern.Confidence
	})

	var out []kept
	exact := make(map[string]int)
	for _, it := range items {
		if idx, ok := exact[it.norm]; ok {
			if Better(it.pattern, out[idx].pattern) {
				out[idx].pattern = it.pattern
			}
			continue
		}

		idx := overlapping(out, it.norm)
		if idx < 0 {
			exact[it.norm] = len(out)
			out = append(out, it)
			continue
		}
		cur := out[idx]
		switch {
		case len(it.norm) > len(cur.norm):
			delete(exact, cur.norm)
			exact[it.norm] = idx
			out[idx] = it
		case len(it.norm) == len(cur.norm) && Better(it.pattern, cur.pattern):
			out[idx].pattern = it.pattern
		}
	}

	result := make([]model.Pattern, len(out))
	for i, k := range out {
		result[i] = k.pattern
	}
	return result
}

func overlapping(list []kept, norm string) int {
	for i, k := range list {
		if strings.Contains(k.norm, norm) || strings.Contains(norm, k.norm) {
			return i
		}
	}
	return -1
}

// CollapseByCategory keeps one pattern per (category, lowercase snippet
// prefix of n characters), the one with the higher confidence. Order of
// first appearance is preserved.
func CollapseByCategory(patterns []model.Pattern, n int) []model.Pattern {
	index := make(map[string]int, len(patterns))
	out := make([]model.Pattern, 0, len(patterns))
	for _, p := range patterns {
		key := string(p.Category) + "|" + truncate(strings.ToLower(p.Snippet), n)
		if i, ok := index[key]; ok {
			if p.Confidence > out[i].Confidence {
				out[i] = p
			}
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}

// PreDedupe keeps the highest-confidence pattern per normalized snippet.
func PreDedupe(patterns []model.Pattern) []model.Pattern {
	index := make(map[string]int, len(patterns))
	out := make([]model.Pattern, 0, len(patterns))
	for _, p := range patterns {
		key := strings.Join(strings.Fields(strings.ToLower(p.Snippet)), " ")
		key = truncate(key, NormalizedLen)
		if i, ok := index[key]; ok {
			if p.Confidence > out[i].Confidence {
				out[i] = p
			}
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}

// DiffKey identifies a finding across monitoring snapshots.
func DiffKey(p model.Pattern) string {
	return string(p.Category) + "-" + truncate(strings.ToLower(strings.TrimSpace(p.Snippet)), NormalizedLen)
}

// NewSince returns the patterns of current whose DiffKey does not appear in
// baseline. Duplicates within current are reported once.
func NewSince(baseline, current []model.Pattern) []model.Pattern {
	seen := make(map[string]bool, len(baseline)+len(current))
	for _, p := range baseline {
		seen[DiffKey(p)] = true
	}
	var out []model.Pattern
	for _, p := range current {
		k := DiffKey(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
