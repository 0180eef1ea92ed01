package verifier

import (
	"context"
	"strings"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
)

// DatasetItems labels patterns as positive samples. Patterns without a
// category or with snippets shorter than three characters are skipped.
func DatasetItems(patterns []model.Pattern) []relay.DatasetItem {
	var out []relay.DatasetItem
	for _, p := range patterns {
		text := strings.TrimSpace(p.Snippet)
		if len([]rune(text)) < 3 || p.Category == "" || p.Category == model.NotDarkPattern {
			continue
		}
		confidence := p.Confidence
		if confidence == 0 {
			confidence = 0.5
		}
		out = append(out, relay.DatasetItem{
			Text:       text,
			Category:   string(p.Category),
			Label:      1,
			Confidence: confidence,
		})
	}
	return out
}

// UpdateDataset submits patterns as training samples. Errors are logged
// and swallowed.
func (v *Verifier) UpdateDataset(ctx context.Context, patterns []model.Pattern) {
	if v.relay == nil {
		return
	}
	items := DatasetItems(patterns)
	if len(items) == 0 {
		return
	}
	res, err := v.relay.UpdateDataset(ctx, items)
	if err != nil {
		v.logger.Warn("dataset update failed",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	v.logger.Info("dataset updated",
		logging.Field{Key: "added", Value: res.Added},
		logging.Field{Key: "skipped", Value: res.Skipped})
}
