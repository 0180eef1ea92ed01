package rules

import (
	"regexp"
	"unicode/utf8"

	"github.com/raysh454/darkscan/internal/model"
)

// Keywords drives the heuristic pass: a case-insensitive substring hit on
// any keyword proposes the category.
var Keywords = []struct {
	Category model.Category
	Words    []string
}{
	{model.ForcedAction, []string{
		"must", "required", "mandatory", "obligatory", "forced to", "no choice", "have to",
		"need to", "cannot proceed", "must create", "must sign up", "must register",
	}},
	{model.Misdirection, []string{
		"no thanks", "skip", "decline", "reject", "don't want", "rather not", "not interested",
		"maybe later", "opt out", "unsubscribe",
	}},
	{model.Urgency, []string{
		"hurry", "limited time", "ends soon", "act fast", "don't miss", "expires", "ending today",
		"last chance", "hurry up", "time running out", "expires in", "deal ends",
	}},
	{model.Scarcity, []string{
		"only", "left", "few remaining", "limited", "exclusive", "rare", "last one", "almost gone",
		"running out", "low stock", "limited stock", "only a few",
	}},
	{model.SocialProof, []string{
		"users", "people", "customers", "viewing", "purchased", "popular", "bought", "joined",
		"signed up", "others", "viewers", "shoppers", "members",
	}},
	{model.Obstruction, []string{
		"call", "contact", "phone", "support", "difficult", "complicated", "cancel", "unsubscribe",
		"requires", "must call", "call to cancel", "phone only", "contact support", "speak to",
		"talk to",
	}},
	{model.Sneaking, []string{
		"auto-renew", "subscription", "recurring", "billing", "hidden", "auto-renewal",
		"automatically", "will be charged", "continues", "renews", "pre-selected", "pre-checked",
	}},
}

// ScoredRule is one row of the scored classification table.
type ScoredRule struct {
	Name     string
	Category model.Category
	Score    float64
	Match    func(text string) bool
}

func re(pattern string) func(string) bool {
	compiled := regexp.MustCompile(pattern)
	return compiled.MatchString
}

var (
	purchasedAgo   = regexp.MustCompile(`(?i)purchased.*\d+\s+(?:minutes?|hours?|days?)\s+ago`)
	purchaseSource = regexp.MustCompile(`(?i)from\s+[A-Z]|just\s+purchased|recently\s+purchased`)
)

// ScoredRules drives the classification pass. Rows for the same category
// combine by maximum.
var ScoredRules = []ScoredRule{
	{"countdown", model.Urgency, 0.95, re(`(?i)\d{1,2}:\d{2}(:\d{2})?|countdown`)},
	{"urgency-phrase", model.Urgency, 0.85, re(`(?i)hurry|limited time|ends soon|offer ends|deal ends|ends in \d+|act fast|last chance|don't miss|don’t miss|expires in|ending today|time running out`)},

	{"stock-count", model.Scarcity, 0.9, re(`(?i)only \d+ left|just \d+ remaining|\d+ in stock|only \d+ remaining|only \d+ available|only \d+ items left|only \d+ left in stock`)},
	{"scarcity-phrase", model.Scarcity, 0.85, re(`(?i)only a few|few remaining|limited availability|limited stock|low stock|almost gone|running out|exclusive|rare|last one|last few|limited quantity|limited supply`)},

	{"crowd-count", model.SocialProof, 0.85, re(`(?i)\d+ (users?|people|customers?) (are|have|viewing|purchased)`)},
	{"named-purchase", model.SocialProof, 0.9, re(`(?i)(?:^|\s)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+from\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+purchased|([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+purchased\s+[^.]+\s+\d+\s+(?:minutes?|hours?|days?)\s+ago|purchased\s+[^.]+\s+\d+\s+(?:minutes?|hours?|days?)\s+ago`)},
	{"recent-purchase", model.SocialProof, 0.88, func(text string) bool {
		return purchasedAgo.MatchString(text) && (utf8.RuneCountInString(text) < 200 || purchaseSource.MatchString(text))
	}},

	{"subscription", model.Sneaking, 0.8, re(`(?i)auto.?renew|recurring|subscription|billing`)},

	{"forced", model.ForcedAction, 0.9, re(`(?i)must|required|mandatory|no choice|forced|have to|need to|cannot proceed|must create|must sign|must register`)},

	{"opt-out", model.Misdirection, 0.85, re(`(?i)no thanks|skip|decline|reject|don't want|rather not|not interested|maybe later|opt out`)},

	{"cancel-by-contact", model.Obstruction, 0.88, re(`(?i)call to cancel|phone only|contact support|speak to|talk to|must call|requires call|call us to|phone us to|contact us to cancel|dial|phone number required|call customer service`)},
	{"cancel-barrier", model.Obstruction, 0.85, re(`(?i)difficult to cancel|hard to cancel|cannot cancel online|no online cancellation|must contact|requires contact|call only|phone only cancellation|unsubscribe by phone`)},
}

// Carve-out vocabulary.
var (
	regulatoryDisclosure = regexp.MustCompile(`(?i)mandatory.*disclosures?`)

	institutionalTerms = compileAll(
		`academic.*calendar`, `campus.*events`, `nirf.*ranking`, `\bfaculty\b`, `scholarships`,
		`feedback`, `disclosures`, `achievements`, `openings`, `student.*corner`, `corner`,
		`downloads`, `depository`, `development.*goal`, `naac`, `iqac`, `hill`,
	)
	institutionalVocabulary = regexp.MustCompile(`(?i)academic|calendar|campus|events|ranking|report|careers|faculty|scholarships|feedback|disclosures|achievements|openings|corner|downloads|centre|depository|development|goal`)

	travelRequirement = regexp.MustCompile(`(?i)mandatory.*travel.*update|travel.*update.*mandatory|required.*for.*travel|contact.*for.*travel.*update|mobile.*for.*travel|mobile.*number.*mandatory.*travel`)
	travelMandatory   = regexp.MustCompile(`(?i)mandatory.*travel`)
	travelAccess      = regexp.MustCompile(`(?i)flyer.*must.*have.*access|must.*have.*access.*mobile`)
	travelPassenger   = regexp.MustCompile(`(?i)flyer|passenger|traveler`)
	travelContact     = regexp.MustCompile(`(?i)mobile|phone|contact`)

	freeTrial              = regexp.MustCompile(`(?i)free trial`)
	transparencyIndicators = compileAll(
		`you will be charged`, `until you cancel`, `see full offer terms`, `terms and conditions`,
		`full terms`, `will be notified`, `prior to.*expiration`, `eligible`, `offer is`,
		`valid payment information`, `date of enrollment`, `subscription.*free`, `enrollment`,
		`day.*free trial|free trial.*day`,
	)
)

// Structural pass vocabulary.
var suspiciousHiddenField = regexp.MustCompile(`(?i)marketing|consent|subscription|renewal|sharing|data|auto|opt|agree`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func countMatches(res []*regexp.Regexp, s string) int {
	n := 0
	for _, r := range res {
		if r.MatchString(s) {
			n++
		}
	}
	return n
}
