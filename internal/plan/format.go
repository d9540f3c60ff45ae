package plan

import (
	"fmt"
	"strings"

	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
)

const (
	rule       = "--------------------------------------"
	maxListed  = 10
	maxSkipped = 4
)

// Priority tiers by score.
const (
	TierHigh     = "HIGH"
	TierModerate = "MODERATE"
	TierLow      = "LOW"
)

// Tier labels a priority score.
func Tier(score float64) string {
	switch {
	case score >= 0.60:
		return TierHigh
	case score >= 0.40:
		return TierModerate
	default:
		return TierLow
	}
}

// FormatBlock renders the top of ranked, the constraint-filtered protocols,
// the daily nutrient targets and the constraint summary as one text block.
func FormatBlock(ranked []rank.Ranked, nutrients []profile.Target, res Result) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("PROTOCOL PRIORITY SCORES:\n")
	for i, r := range ranked {
		if i == maxListed {
			break
		}
		fmt.Fprintf(&b, "  %2d. %-34s %.3f  %s\n", i+1, r.Protocol, r.Score, Tier(r.Score))
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "\nCONSTRAINT-FILTERED (%d protocols):\n", len(res.Skipped))
		for i, s := range res.Skipped {
			if i == maxSkipped {
				break
			}
			fmt.Fprintf(&b, "  - %s: %s\n", s.Protocol, s.Reason)
		}
	}

	b.WriteString(rule + "\n")
	b.WriteString("DAILY NUTRIENT TARGETS:\n")
	for _, t := range nutrients {
		name, unit := splitUnit(t.Nutrient)
		fmt.Fprintf(&b, "  - %-24s %.1f%s\n", name, t.Amount, unit)
	}

	b.WriteString(rule + "\n")
	b.WriteString(Summary(res))
	return b.String()
}

// Summary renders the active constraints.
func Summary(res Result) string {
	c := res.Constraints
	var b strings.Builder
	b.WriteString("ACTIVE CONSTRAINTS:\n")
	fmt.Fprintf(&b, "  Time available:    %dmin [%s]\n", c.TimeMinutes, res.TimeTier)
	fmt.Fprintf(&b, "  Daily budget:      $%.0f/day [%s]\n", c.BudgetDaily, res.BudgetTier)
	fmt.Fprintf(&b, "  Kitchen level:     %s\n", c.Kitchen)
	fmt.Fprintf(&b, "  Mental energy:     %d/10\n", c.MentalEnergy)
	if len(c.Restrictions) > 0 {
		fmt.Fprintf(&b, "  Restrictions:      %s\n", strings.Join(c.Restrictions, ", "))
	}
	if len(c.Allergies) > 0 {
		fmt.Fprintf(&b, "  Allergies:         %s\n", strings.Join(c.Allergies, ", "))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "  Skipped protocols: %d (constraint conflicts)\n", len(res.Skipped))
	}
	return b.String()
}

// splitUnit turns "vitamin_b12_ug" into ("vitamin b12", "µg").
func splitUnit(key string) (string, string) {
	for suffix, unit := range map[string]string{"_ug": "µg", "_mg": "mg", "_g": "g"} {
		if strings.HasSuffix(key, suffix) {
			return strings.ReplaceAll(strings.TrimSuffix(key, suffix), "_", " "), unit
		}
	}
	return strings.ReplaceAll(key, "_", " "), ""
}
