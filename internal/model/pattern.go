package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies the detector that produced a pattern.
type Source string

const (
	SourceHeuristic    Source = "heuristic"
	SourceUIState      Source = "ui-state"
	SourceClassifier   Source = "classifier"
	SourceDOMRule      Source = "dom-rule"
	SourceNLP          Source = "nlp"
	SourceVerification Source = "verification"
)

// Match is one suspicious-text hit recorded on a DOM candidate.
type Match struct {
	Category string `json:"category"`
	Text     string `json:"match"`
}

// Meta is the provenance bag of a pattern.
type Meta struct {
	Source Source `json:"source"`

	// DOMRule is set for structurally derived patterns (e.g.
	// "auto-ticked-checkbox", "suspicious-countdown").
	DOMRule string `json:"domRule,omitempty"`

	// PatternType is the rule family for non DOM-rule patterns.
	PatternType string `json:"patternType,omitempty"`

	// Rule is the keyword or regex identifier that fired.
	Rule string `json:"rule,omitempty"`

	Matches []Match `json:"matches,omitempty"`

	// Attributes carries element attributes some detail texts need
	// (name/value of hidden inputs).
	Attributes map[string]string `json:"attributes,omitempty"`

	VerificationScore float64 `json:"verificationScore,omitempty"`
	VerifiedBy        string  `json:"verifiedBy,omitempty"`
}

// Pattern is a detected dark-pattern instance.
type Pattern struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"`
	Snippet    string    `json:"snippet"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details"`
	Selector   string    `json:"selector,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	Color      string    `json:"color,omitempty"`
	Verified   bool      `json:"verified"`
	Meta       Meta      `json:"meta"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsDOMRule reports whether p came from the structural DOM-rule layer.
func (p Pattern) IsDOMRule() bool {
	return p.Meta.DOMRule != "" || p.Meta.Source == SourceDOMRule
}

// Clone returns a copy that shares no slices or maps with p.
func (p Pattern) Clone() Pattern {
	out := p
	if p.Meta.Matches != nil {
		out.Meta.Matches = append([]Match(nil), p.Meta.Matches...)
	}
	if p.Meta.Attributes != nil {
		out.Meta.Attributes = make(map[string]string, len(p.Meta.Attributes))
		for k, v := range p.Meta.Attributes {
			out.Meta.Attributes[k] = v
		}
	}
	return out
}

// ClonePatterns deep-copies a pattern list.
func ClonePatterns(in []Pattern) []Pattern {
	if in == nil {
		return nil
	}
	out := make([]Pattern, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/raysh454/darkscan/patterns"))

// StableID derives a deterministic identifier from the evidence behind a
// pattern so re-detections of the same evidence keep their id.
func StableID(prefix string, parts ...string) string {
	return prefix + "-" + uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x00"))).String()
}
