// Package rules implements the local rule matcher: a keyword pass, a
// UI-state pass and a scored classification pass over one extracted
// element, behind shared carve-outs.
package rules

import (
	"fmt"
	"time"

	"github.com/raysh454/darkscan/internal/dedupe"
	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
)

// CollapseLen is the snippet prefix used to collapse proposals of one
// category.
const CollapseLen = 150

// Pass is one independent detection technique.
type Pass interface {
	Name() string
	Evaluate(ext extractor.Extraction) []model.Pattern
}

// Config holds matcher settings.
type Config struct {
	// Threshold is the minimum classifier score, overridden per scan by the
	// user's confidence threshold setting.
	Threshold float64 `mapstructure:"threshold"`
}

func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Matcher runs every pass over an extraction.
type Matcher struct {
	passes []Pass
	logger logging.Logger
	now    func() time.Time
}

// NewMatcher returns a matcher running the heuristic, structural and
// classifier passes.
func NewMatcher(cfg Config, logger logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Matcher{
		passes: []Pass{Heuristic{}, Structural{}, Classifier{Threshold: cfg.Threshold}},
		logger: logger.With(logging.Field{Key: "component", Value: "rules"}),
		now:    time.Now,
	}
}

// Passes returns the passes in evaluation order.
func (m *Matcher) Passes() []Pass { return m.passes }

// Match evaluates ext with every pass. Carve-outs are checked first and
// short-circuit all passes. Proposals of one element are collapsed per
// category keeping the highest confidence.
func (m *Matcher) Match(ext extractor.Extraction) []model.Pattern {
	if name := Exemption(ext.Snippet, ""); name != "" {
		m.logger.Debug("carve-out applied",
			logging.Field{Key: "carve_out", Value: name},
			logging.Field{Key: "selector", Value: ext.Selector})
		return nil
	}

	var out []model.Pattern
	for _, pass := range m.passes {
		out = append(out, m.evaluate(pass, ext)...)
	}
	if len(out) == 0 {
		return nil
	}

	ts := m.now()
	for i := range out {
		if out[i].Timestamp.IsZero() {
			out[i].Timestamp = ts
		}
		info := out[i].Category.Info()
		out[i].Icon, out[i].Color = info.Icon, info.Color
	}
	return dedupe.CollapseByCategory(out, CollapseLen)
}

// evaluate runs one pass, turning a panic on an unexpected element shape
// into an empty contribution.
func (m *Matcher) evaluate(pass Pass, ext extractor.Extraction) (out []model.Pattern) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("rule pass failed",
				logging.Field{Key: "pass", Value: pass.Name()},
				logging.Field{Key: "selector", Value: ext.Selector},
				logging.Field{Key: "error", Value: fmt.Sprint(r)})
			out = nil
		}
	}()
	return pass.Evaluate(ext)
}
