package tracker

import (
	"regexp"
	"strings"

	"github.com/raysh454/darkscan/internal/model"
)

// ScanTags is the tag set the sweep and the mutation path evaluate.
var ScanTags = []string{
	"input", "select", "textarea", "option",
	"button", "a", "p", "span", "div", "li",
	"label", "h1", "h2", "h3", "h4", "h5", "h6",
}

// ScanSelector joins ScanTags into one selector.
var ScanSelector = strings.Join(ScanTags, ",")

var scanTagSet = func() map[string]bool {
	out := make(map[string]bool, len(ScanTags))
	for _, t := range ScanTags {
		out[t] = true
	}
	return out
}()

// Suspicious-text groups.
const (
	GroupScarcityUrgency  = "scarcity_urgency"
	GroupObstruction      = "obstruction"
	GroupSubscriptionTrap = "subscription_trap"
	GroupDeceptiveOptOut  = "deceptive_opt_out"
	GroupHiddenCost       = "hidden_cost"
	GroupPressure         = "pressure_language"
	GroupCountdown        = "countdown"
	GroupSocialProof      = "social_proof"
)

// Structural flags.
const (
	TypeAutoTickedCheckbox  = "auto-ticked-checkbox"
	TypeAutoSelectedRadio   = "auto-selected-radio"
	TypeAutoSelectedOption  = "auto-selected-option"
	TypeHiddenActiveControl = "hidden-active-control"
	TypeHiddenInputField    = "hidden-input-field"
)

// SuspiciousGroup is one row of the suspicious-text table. The first
// matching pattern of a group is recorded.
type SuspiciousGroup struct {
	Name     string
	Patterns []*regexp.Regexp
}

func phrases(list ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(list))
	for i, p := range list {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// SuspiciousGroups is evaluated in order.
var SuspiciousGroups = []SuspiciousGroup{
	{GroupScarcityUrgency, phrases(
		"limited offer", "limited time", "hurry", "ends soon", "deal ends",
		"last chance", "while supplies last", `only \d+ left`, `only \d+ items`,
		`only \d+ remaining`, `only \d+ available`, "few remaining", "limited stock",
		"low stock", "almost gone", "running out", "exclusive", "rare", "last one",
		"last few", "limited quantity", "limited supply", "only a few",
	)},
	{GroupObstruction, phrases(
		"call to cancel", "phone only", "contact support", "must call", "requires call",
		"call us to", "phone us to", "contact us to cancel", "dial", "phone number required",
		"call customer service", "difficult to cancel", "hard to cancel", "cannot cancel online",
		"no online cancellation", "must contact", "requires contact", "call only",
		"phone only cancellation", "unsubscribe by phone",
	)},
	{GroupSubscriptionTrap, phrases(
		"auto-renew", "free trial", "you will be charged", "subscription",
	)},
	{GroupDeceptiveOptOut, phrases(
		"no, i don't want", "skip savings", "reject offer", "decline deal",
		"no thanks", "i like working harder", "working harder instead of smarter",
		"opt in by default", "by not checking", "agree to be opted in",
		"not checking the box", "by default", "automatically opted in",
	)},
	{GroupHiddenCost, phrases(
		"service fee", "processing fee", "added at checkout", "convenience fee",
	)},
	{GroupPressure, phrases(
		"exclusive", "selected for you", "sign up now", "act fast", "don’t miss out", "don't miss out",
	)},
	{GroupCountdown, phrases(
		"offer ends in", "expires in", `\d{1,2}:\d{2}(:\d{2})?`,
	)},
	{GroupSocialProof, phrases(
		"purchased", "from.*purchased", "just purchased", "recently purchased",
		"minutes ago", "hours ago", "days ago", `\d+ (users?|people|customers?) (are|have|viewing|purchased)`,
		"bought", "just bought", "recently bought", "customers?.*purchased", "people.*purchased",
	)},
}

// fallbackMatches add a group match when the group table found nothing.
var fallbackMatches = []struct {
	Group   string
	Pattern *regexp.Regexp
}{
	{GroupScarcityUrgency, regexp.MustCompile(`(?i)only \d+ left|only \d+ remaining|few remaining|limited stock|low stock|almost gone|exclusive|rare|last one|only a few`)},
	{GroupObstruction, regexp.MustCompile(`(?i)call to cancel|phone only|contact support|must call|difficult to cancel|hard to cancel|cannot cancel online|no online cancellation`)},
	{GroupSubscriptionTrap, regexp.MustCompile(`(?i)opt.*in.*by.*default|by.*not.*checking.*agree|not.*checking.*box.*agree|automatically.*opted.*in|by.*default.*opt`)},
	{GroupDeceptiveOptOut, regexp.MustCompile(`(?i)no thanks.*like.*working.*harder|working.*harder.*instead.*smarter|i.*like.*working.*harder`)},
}

var (
	labelOptIn         = regexp.MustCompile(`(?i)by.*not.*checking.*agree|not.*checking.*box.*agree|opt.*in.*by.*default|agree.*to.*be.*opted`)
	manipulativeHidden = regexp.MustCompile(`(?i)no thanks.*like.*working|working.*harder|opt.*in.*default|by.*not.*checking`)
	suspiciousField    = regexp.MustCompile(`(?i)marketing|consent|subscription|renewal|sharing|data|auto|opt|agree`)

	optInSnippet     = regexp.MustCompile(`(?i)opt.*in.*default|by.*not.*checking`)
	fakePurchaseText = regexp.MustCompile(`(?i)from.*purchased|purchased.*ago|just purchased|recently purchased`)
)

// LanguageLabels are option/radio texts that belong to language pickers.
var LanguageLabels = []string{
	"english", "en", "eng",
	"spanish", "español", "es",
	"french", "français", "fr",
	"german", "deutsch", "de",
	"italian", "italiano", "it",
	"portuguese", "português", "pt",
	"hindi", "中文", "japanese", "日本語", "korean", "한국어",
	"arabic", "العربية", "russian", "русский",
	"language", "choose language", "select language",
}

var languageWord = regexp.MustCompile(`language\s*(?:selection|selector|menu)?`)

// IsLikelyLanguageSelector reports whether snippet looks like an entry of a
// language picker.
func IsLikelyLanguageSelector(snippet string) bool {
	text := strings.ToLower(strings.TrimSpace(snippet))
	if text == "" {
		return false
	}
	short := len([]rune(text)) <= 20
	for _, label := range LanguageLabels {
		if text == label || (short && strings.Contains(text, label)) {
			return true
		}
	}
	return languageWord.MatchString(text)
}

// RuleMeta is the canonical record a rule type maps to.
type RuleMeta struct {
	Category   model.Category
	Confidence float64
	Reason     string
	Icon       string
	Color      string
	Details    func(c Candidate) string
}

func matchDetails(group, withMatch, without string) func(Candidate) string {
	return func(c Candidate) string {
		if m, ok := c.match(group); ok {
			return strings.NewReplacer("{match}", m.Text, "{snippet}", c.Snippet).Replace(withMatch)
		}
		return strings.NewReplacer("{snippet}", c.Snippet).Replace(without)
	}
}

// RuleMetadata maps structural flags and "suspicious-<group>" types to their
// canonical records.
var RuleMetadata = map[string]RuleMeta{
	TypeAutoTickedCheckbox: {
		Category: model.Sneaking, Confidence: 0.9,
		Reason: "Form checkbox is pre-selected by default", Icon: "☑️", Color: "#a855f7",
		Details: func(c Candidate) string {
			loc := c.Selector
			if loc == "" {
				loc = "this location"
			}
			return "The checkbox at " + loc + " is checked automatically before user consent."
		},
	},
	TypeAutoSelectedRadio: {
		Category: model.Misdirection, Confidence: 0.85,
		Reason: "Radio option is auto-selected", Icon: "🔘", Color: "#f59e0b",
		Details: func(Candidate) string {
			return "A radio button is pre-selected, steering users toward a particular choice."
		},
	},
	TypeAutoSelectedOption: {
		Category: model.Misdirection, Confidence: 0.8,
		Reason: "Dropdown option is pre-selected", Icon: "🔽", Color: "#f59e0b",
		Details: func(Candidate) string {
			return "A dropdown option is selected in advance, potentially nudging the user."
		},
	},
	TypeHiddenActiveControl: {
		Category: model.Sneaking, Confidence: 0.8,
		Reason: "Active form control hidden from view", Icon: "🙈", Color: "#a855f7",
		Details: func(Candidate) string {
			return "A checked/selected form element is hidden, which can submit choices the user never sees."
		},
	},
	TypeHiddenInputField: {
		Category: model.Sneaking, Confidence: 0.85,
		Reason: "Hidden input field detected", Icon: "👁️", Color: "#8b5cf6",
		Details: func(c Candidate) string {
			if name := c.Attributes["name"]; name != "" {
				return `Hidden input field "` + name + `" with value "` + c.Attributes["value"] + `" is being submitted without user knowledge.`
			}
			return "A hidden input field is being submitted without the user's knowledge or consent."
		},
	},
	"suspicious-" + GroupScarcityUrgency: {
		Category: model.Urgency, Confidence: 0.75,
		Reason: "Urgency/scarcity language detected", Icon: "⏰", Color: "#ef4444",
		Details: matchDetails(GroupScarcityUrgency,
			`Detected urgency/scarcity language "{match}" within "{snippet}".`,
			`Detected urgency/scarcity phrasing within "{snippet}".`),
	},
	"suspicious-" + GroupSubscriptionTrap: {
		Category: model.Sneaking, Confidence: 0.85,
		Reason: "Recurring billing, auto-renew, or opt-in-by-default terms detected", Icon: "🔄", Color: "#a855f7",
		Details: func(c Candidate) string {
			m, ok := c.match(GroupSubscriptionTrap)
			switch {
			case ok && optInSnippet.MatchString(c.Snippet):
				return `Found opt-in-by-default language "` + m.Text + `" which automatically enrolls users without clear consent.`
			case ok:
				return `Found subscription/auto-renew language "` + m.Text + `" which can hide ongoing costs.`
			default:
				return "Found subscription/auto-renew language suggesting ongoing charges."
			}
		},
	},
	"suspicious-" + GroupSocialProof: {
		Category: model.SocialProof, Confidence: 0.88,
		Reason: "Social proof notification detected (fake purchase notifications)", Icon: "👥", Color: "#3b82f6",
		Details: func(c Candidate) string {
			m, ok := c.match(GroupSocialProof)
			switch {
			case ok && fakePurchaseText.MatchString(c.Snippet):
				return `Fake social proof notification detected: "` + c.Snippet + `". These popups often show fake purchase notifications to create false urgency.`
			case ok:
				return `Social proof pattern detected: "` + m.Text + `" within "` + c.Snippet + `".`
			default:
				return `Social proof pattern detected in "` + c.Snippet + `" - may be a fake notification to influence purchasing decisions.`
			}
		},
	},
	"suspicious-" + GroupDeceptiveOptOut: {
		Category: model.Misdirection, Confidence: 0.73,
		Reason: "Opt-out copy is manipulative", Icon: "🔄", Color: "#f59e0b",
		Details: matchDetails(GroupDeceptiveOptOut,
			`Opt-out language "{match}" may shame or confuse the user.`,
			"Opt-out language may confuse the user or guilt them into acceptance."),
	},
	"suspicious-" + GroupHiddenCost: {
		Category: model.Sneaking, Confidence: 0.72,
		Reason: "Possible hidden fees detected", Icon: "💸", Color: "#a855f7",
		Details: matchDetails(GroupHiddenCost,
			`Detected text "{match}" that hints at hidden fees.`,
			"Detected text that hints at hidden or unexpected fees."),
	},
	"suspicious-" + GroupPressure: {
		Category: model.ForcedAction, Confidence: 0.7,
		Reason: "High-pressure language identified", Icon: "⚠️", Color: "#f97316",
		Details: matchDetails(GroupPressure,
			`High-pressure language "{match}" encourages rushed decisions.`,
			"High-pressure language encourages rushed decision-making."),
	},
	"suspicious-" + GroupCountdown: {
		Category: model.Urgency, Confidence: 0.76,
		Reason: "Countdown or expiry messaging detected", Icon: "⏳", Color: "#ef4444",
		Details: matchDetails(GroupCountdown,
			`Countdown or expiry message "{match}" creates artificial urgency.`,
			"Countdown or expiry messaging can pressure users with artificial urgency."),
	},
	"suspicious-" + GroupObstruction: {
		Category: model.Obstruction, Confidence: 0.75,
		Reason: "Obstruction pattern detected", Icon: "🚧", Color: "#a3a3a3",
		Details: matchDetails(GroupObstruction,
			`Detected obstruction language "{match}" which makes cancellation or opt-out difficult.`,
			"Detected obstruction pattern that makes it difficult for users to cancel or opt-out."),
	},
}
