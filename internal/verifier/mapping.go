package verifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/rules"
)

const (
	ScoreExact     = 100.0
	ScoreSubstring = 80.0
	ScoreOverlap   = 60.0

	// MatchThreshold is the lowest score that maps a verified answer onto an
	// original pattern.
	MatchThreshold = 50.0

	// VerifiedFloor is the minimum confidence of a verified pattern.
	VerifiedFloor = 0.8

	newPatternConfidence = 0.85
	verifierName         = "relay"
)

func normalizeForMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MatchScore rates how well a verified text corresponds to an original
// snippet: 100 for equal normalized text, 80 for containment either way,
// otherwise the shared-word ratio scaled to 60.
func MatchScore(original, verified string) float64 {
	o, v := normalizeForMatch(original), normalizeForMatch(verified)
	if o == "" || v == "" {
		return 0
	}
	if o == v {
		return ScoreExact
	}
	if strings.Contains(o, v) || strings.Contains(v, o) {
		return ScoreSubstring
	}

	ow, vw := wordSet(o), wordSet(v)
	larger := math.Max(float64(len(ow)), float64(len(vw)))
	if larger == 0 {
		return 0
	}
	common := 0
	for w := range vw {
		if ow[w] {
			common++
		}
	}
	return float64(common) / larger * ScoreOverlap
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) > 2 {
			set[w] = true
		}
	}
	return set
}

// MapVerified folds verifier answers back onto the originals. Each answer
// updates the best-scoring unused original at or above MatchThreshold, or
// becomes a new pattern. Rejections and transparent free-trial disclosures
// are dropped.
func MapVerified(originals []model.Pattern, answers []relay.Verified, now time.Time) []model.Pattern {
	used := make([]bool, len(originals))
	var out []model.Pattern

	for _, v := range answers {
		if v.Rejected || normalizeForMatch(v.Text) == "" {
			continue
		}
		category, known := model.ParseCategory(v.Category)
		if known && category == model.NotDarkPattern {
			continue
		}
		explanation := v.Explanation
		if explanation == "" {
			explanation = v.Reason
		}
		if rules.IsTransparentFreeTrial(v.Text, explanation) {
			continue
		}

		best, bestScore := -1, 0.0
		for i, p := range originals {
			if used[i] {
				continue
			}
			if s := MatchScore(p.Snippet, v.Text); s > bestScore {
				best, bestScore = i, s
			}
		}

		if best >= 0 && bestScore >= MatchThreshold {
			used[best] = true
			out = append(out, applyVerified(originals[best], v, category, known, explanation, bestScore))
			continue
		}
		out = append(out, synthesize(v, category, known, now))
	}
	return out
}

func applyVerified(orig model.Pattern, v relay.Verified, category model.Category, known bool, explanation string, score float64) model.Pattern {
	p := orig.Clone()
	if known {
		p.Category = category
	}
	if explanation != "" {
		p.Reason = explanation
	}
	if t := strings.TrimSpace(v.Text); t != "" {
		p.Snippet = t
	}
	p.Confidence = math.Max(math.Max(v.Confidence, orig.Confidence), VerifiedFloor)
	p.Verified = true
	info := p.Category.Info()
	p.Icon, p.Color = info.Icon, info.Color
	p.Meta.VerificationScore = score
	p.Meta.VerifiedBy = verifierName
	return p
}

func synthesize(v relay.Verified, category model.Category, known bool, now time.Time) model.Pattern {
	if !known {
		category = model.Misdirection
	}
	confidence := v.Confidence
	if confidence == 0 {
		confidence = newPatternConfidence
	}
	reason := v.Explanation
	if reason == "" {
		reason = fmt.Sprintf("Detected %s pattern", category.Lower())
	}
	text := strings.TrimSpace(v.Text)
	info := category.Info()
	return model.Pattern{
		ID:         model.StableID("verified", normalizeForMatch(text), string(category)),
		Category:   category,
		Confidence: confidence,
		Snippet:    text,
		Reason:     reason,
		Icon:       info.Icon,
		Color:      info.Color,
		Verified:   true,
		Timestamp:  now,
		Meta: model.Meta{
			Source:     model.SourceVerification,
			VerifiedBy: verifierName,
		},
	}
}
