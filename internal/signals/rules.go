package signals

import (
	"regexp"
	"strconv"
)

// #region vocabulary

// nounSignals maps surface nouns to the signal they report on.
var nounSignals = map[string]string{
	"energy":        "energy",
	"focus":         "focus",
	"concentration": "focus",
	"sleep":         "sleep",
	"stress":        "stress",
	"mood":          "mood",
	"gut":           "gut",
	"digestion":     "gut",
	"muscle":        "muscle",
	"muscles":       "muscle",
	"immune":        "immune",
	"immunity":      "immune",
	"anxiety":       "anxiety",
	"hunger":        "hunger",
	"appetite":      "hunger",
	"bloat":         "bloat",
	"bloating":      "bloat",
	"headache":      "headache",
	"headaches":     "headache",
	"cramp":         "cramp",
	"cramps":        "cramp",
	"cramping":      "cramp",
}

// burdenSignals are signals where "more" means things got worse.
var burdenSignals = map[string]bool{
	"stress":   true,
	"anxiety":  true,
	"hunger":   true,
	"bloat":    true,
	"headache": true,
	"cramp":    true,
}

// positiveAdjectives describe a good state; a comparative raising them is improvement.
var positiveAdjectives = map[string]string{
	"energetic": "energy",
	"energized": "energy",
	"focused":   "focus",
	"alert":     "focus",
	"sharp":     "focus",
	"rested":    "sleep",
	"refreshed": "sleep",
	"calm":      "stress",
	"relaxed":   "stress",
	"happy":     "mood",
	"cheerful":  "mood",
	"positive":  "mood",
	"strong":    "muscle",
}

// negativeAdjectives describe a bad state; on their own they report decline.
var negativeAdjectives = map[string]string{
	"tired":       "energy",
	"exhausted":   "energy",
	"fatigued":    "energy",
	"drained":     "energy",
	"sluggish":    "energy",
	"stressed":    "stress",
	"overwhelmed": "stress",
	"anxious":     "anxiety",
	"nervous":     "anxiety",
	"bloated":     "bloat",
	"foggy":       "focus",
	"distracted":  "focus",
	"sore":        "muscle",
	"sick":        "immune",
	"nauseous":    "gut",
	"hungry":      "hunger",
	"starving":    "hunger",
	"crampy":      "cramp",
	"groggy":      "sleep",
	"sad":         "mood",
	"depressed":   "mood",
	"irritable":   "mood",
}

const (
	nounAlt = `energy|focus|concentration|sleep|stress|mood|gut|digestion|muscles?|immune|immunity|anxiety|hunger|appetite|bloat|bloating|headaches?|cramps?|cramping`
	linkAlt = `is|are|was|were|has|have|had|got|gets|gotten|getting|went|goes|gone|going|go|been|feels?|felt|seems?|seemed|became|becomes?|much|way|so|really|definitely|slightly|somewhat|even|a\s+lot|a\s+bit`

	improvedAlt = `improved|improving|better|great|good|amazing|up|higher|increased|rising`
	worsenedAlt = `worse|worsened|worsening|bad|terrible|awful|horrible|poor|down|lower|decreased|dropped|dropping`
)

// directional words flip meaning for burden signals: "stress is up" is a decline.
var directional = map[string]bool{
	"up": true, "higher": true, "increased": true, "rising": true,
	"down": true, "lower": true, "decreased": true, "dropped": true, "dropping": true,
}

// #endregion vocabulary

// #region phrase-table

type phrase struct {
	signal   string
	strength float64
}

// The phrase tables enumerate every qualifier + word pair the comparative
// rules understand. positivePhrases holds raising qualifiers on good-state
// words; negativePhrases holds negations and comparatives on bad-state words.
var positivePhrases, negativePhrases = buildPhraseTables()

func buildPhraseTables() (pos, neg map[string]phrase) {
	pos = make(map[string]phrase)
	neg = make(map[string]phrase)
	for word, sig := range positiveAdjectives {
		for _, q := range []string{"more", "better"} {
			pos[q+" "+word] = phrase{sig, 1}
		}
		for _, q := range []string{"less", "not", "no longer"} {
			neg[q+" "+word] = phrase{sig, -1}
		}
	}
	for word, sig := range negativeAdjectives {
		neg["more "+word] = phrase{sig, -1}
		for _, q := range []string{"less", "not", "no longer"} {
			neg[q+" "+word] = phrase{sig, 1}
		}
	}
	for word, sig := range nounSignals {
		if burdenSignals[sig] {
			neg["more "+word] = phrase{sig, -1}
			neg["less "+word] = phrase{sig, 1}
			continue
		}
		pos["more "+word] = phrase{sig, 1}
		neg["less "+word] = phrase{sig, -1}
	}
	return pos, neg
}

// #endregion phrase-table

// #region rules

// Rule is one extraction pattern. Produce receives the submatches of each
// match and returns the signal it implies, or false to ignore the match.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Produce func(m []string) (Signal, bool)
}

var (
	explicitRe = regexp.MustCompile(`\b(` + nounAlt + `)\b\s*(?:[:=]\s*([+-]?)|([+-]))\s*(\d+(?:\.\d+)?)\b`)

	improvedRe       = regexp.MustCompile(`\b(` + nounAlt + `)\b(?:\s+(?:` + linkAlt + `))*\s+(` + improvedAlt + `)\b`)
	improvedPrefixRe = regexp.MustCompile(`\b(improved|better)\s+(` + nounAlt + `)\b`)
	worsenedRe       = regexp.MustCompile(`\b(` + nounAlt + `)\b(?:\s+(?:` + linkAlt + `))*\s+(` + worsenedAlt + `)\b`)
	worsenedPrefixRe = regexp.MustCompile(`\b(worse|poor|bad|terrible|awful)\s+(` + nounAlt + `)\b`)

	// A leading negator puts the phrase outside the table: "not less tired" yields nothing.
	comparativeRe = regexp.MustCompile(`\b(?:(not|never|no|hardly|barely)\s+)?(more|less|better|not|no\s+longer)\s+([a-z]+)\b`)

	standaloneRe = regexp.MustCompile(`\b(?:(more|less|better|worse|not|never|hardly|barely|no\s+longer)\s+(?:(?:feeling|feel|as|so|very|too|that)\s+)?)?(` + adjectiveAlt() + `)\b`)
)

func adjectiveAlt() string {
	alt := ""
	for _, w := range sortedKeys(negativeAdjectives) {
		if alt != "" {
			alt += "|"
		}
		alt += w
	}
	return alt
}

// DefaultRules returns the built-in rule set in evaluation order. Later rules
// overwrite earlier ones for the same signal.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "explicit", Pattern: explicitRe, Produce: produceExplicit},
		{Name: "improved", Pattern: improvedRe, Produce: producePhrasing(1)},
		{Name: "improved_prefix", Pattern: improvedPrefixRe, Produce: producePrefix(1)},
		{Name: "worsened", Pattern: worsenedRe, Produce: producePhrasing(-1)},
		{Name: "worsened_prefix", Pattern: worsenedPrefixRe, Produce: producePrefix(-1)},
		{Name: "comparative_positive", Pattern: comparativeRe, Produce: produceComparative(positivePhrases)},
		{Name: "comparative_negative", Pattern: comparativeRe, Produce: produceComparative(negativePhrases)},
		{Name: "standalone", Pattern: standaloneRe, Produce: produceStandalone},
	}
}

func produceExplicit(m []string) (Signal, bool) {
	sig, ok := nounSignals[m[1]]
	if !ok {
		return Signal{}, false
	}
	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Signal{}, false
	}
	if m[2] == "-" || m[3] == "-" {
		v = -v
	}
	return Signal{Name: sig, Strength: v}, true
}

func producePhrasing(sign float64) func([]string) (Signal, bool) {
	return func(m []string) (Signal, bool) {
		sig, ok := nounSignals[m[1]]
		if !ok {
			return Signal{}, false
		}
		s := sign
		if directional[m[2]] && burdenSignals[sig] {
			s = -s
		}
		return Signal{Name: sig, Strength: s}, true
	}
}

func producePrefix(sign float64) func([]string) (Signal, bool) {
	return func(m []string) (Signal, bool) {
		sig, ok := nounSignals[m[2]]
		if !ok {
			return Signal{}, false
		}
		return Signal{Name: sig, Strength: sign}, true
	}
}

func produceComparative(table map[string]phrase) func([]string) (Signal, bool) {
	return func(m []string) (Signal, bool) {
		if m[1] != "" {
			return Signal{}, false
		}
		p, ok := table[collapseSpace(m[2])+" "+m[3]]
		if !ok {
			return Signal{}, false
		}
		return Signal{Name: p.signal, Strength: p.strength}, true
	}
}

func produceStandalone(m []string) (Signal, bool) {
	if m[1] != "" {
		return Signal{}, false
	}
	sig, ok := negativeAdjectives[m[2]]
	if !ok {
		return Signal{}, false
	}
	return Signal{Name: sig, Strength: -1}, true
}

// #endregion rules
