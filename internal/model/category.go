package model

import "strings"

// Category is one of the fixed dark-pattern classes.
type Category string

const (
	ForcedAction   Category = "Forced Action"
	Misdirection   Category = "Misdirection"
	Urgency        Category = "Urgency"
	Scarcity       Category = "Scarcity"
	SocialProof    Category = "Social Proof"
	Obstruction    Category = "Obstruction"
	Sneaking       Category = "Sneaking"
	NotDarkPattern Category = "Not Dark Pattern"
)

// CategoryInfo is presentation metadata shipped with each pattern.
type CategoryInfo struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Categories lists the detectable categories in a stable order.
var Categories = []Category{
	ForcedAction, Misdirection, Urgency, Scarcity, SocialProof, Obstruction, Sneaking,
}

var categoryInfo = map[Category]CategoryInfo{
	ForcedAction: {Icon: "🚫", Color: "#f97316"},
	Misdirection: {Icon: "🔄", Color: "#f59e0b"},
	Urgency:      {Icon: "⏰", Color: "#ef4444"},
	Scarcity:     {Icon: "📦", Color: "#4a90e2"},
	SocialProof:  {Icon: "👥", Color: "#6366f1"},
	Obstruction:  {Icon: "🚧", Color: "#a3a3a3"},
	Sneaking:     {Icon: "👁️", Color: "#a855f7"},
}

// Info returns icon and color for c, with a neutral default for unknown
// categories.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return CategoryInfo{Icon: "⚠️", Color: "#fbbf24"}
}

// Known reports whether c is one of the detectable categories.
func (c Category) Known() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Lower is the lowercase label used in templated text.
func (c Category) Lower() string {
	return strings.ToLower(string(c))
}

// ParseCategory maps loose labels such as "forced_action" or "social-proof"
// onto a known category.
func ParseCategory(s string) (Category, bool) {
	direct := Category(strings.TrimSpace(s))
	if direct == NotDarkPattern {
		return direct, true
	}
	if direct.Known() {
		return direct, true
	}

	formatted := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(string(direct)))
	words := strings.Fields(formatted)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	titled := Category(strings.Join(words, " "))
	if titled.Known() || titled == NotDarkPattern {
		return titled, true
	}
	return "", false
}
