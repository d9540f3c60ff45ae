// Package plan filters a ranked protocol list through a student's practical
// constraints and renders the context block handed to the coaching model.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
)

// #region constraints

// Constraints are the real-world limits a plan has to fit.
type Constraints struct {
	TimeMinutes  int      `json:"time_minutes"`
	BudgetDaily  float64  `json:"budget_daily"`
	Kitchen      string   `json:"kitchen"`
	Restrictions []string `json:"restrictions,omitempty"`
	Allergies    []string `json:"allergies,omitempty"`
	MentalEnergy int      `json:"mental_energy"`
}

var kitchenTiers = map[string]int{
	"none":           0,
	"microwave":      1,
	"dorm microwave": 1,
	"shared":         2,
	"shared kitchen": 2,
	"full":           3,
	"full kitchen":   3,
}

var budgets = map[string]float64{
	"low":      8,
	"medium":   15,
	"flexible": 30,
}

var (
	earlyWakeRe  = regexp.MustCompile(`\b[67]am\b`)
	earlyClassRe = regexp.MustCompile(`\b[89]am\b`)
	allergySepRe = regexp.MustCompile(`[,;/]`)
)

// BuildConstraints reads constraints from the questionnaire.
func BuildConstraints(p profile.Profile) Constraints {
	c := Constraints{
		TimeMinutes: 30,
		BudgetDaily: 15,
		Kitchen:     strings.ToLower(strings.TrimSpace(p.CookingAccess)),
	}
	if v, ok := budgets[strings.ToLower(strings.TrimSpace(p.Budget))]; ok {
		c.BudgetDaily = v
	}
	if c.Kitchen == "" {
		c.Kitchen = "shared kitchen"
	}

	switch diet := strings.ToLower(strings.TrimSpace(p.DietType)); diet {
	case "vegan", "vegetarian", "halal", "kosher":
		c.Restrictions = []string{diet}
	}

	switch raw := strings.ToLower(strings.TrimSpace(p.Allergies)); raw {
	case "", "none", "no", "n/a":
	default:
		for _, a := range allergySepRe.Split(raw, -1) {
			if a = strings.TrimSpace(a); a != "" {
				c.Allergies = append(c.Allergies, a)
			}
		}
	}

	if earlyWakeRe.MatchString(strings.ToLower(p.SleepSchedule)) {
		c.TimeMinutes = 15
	}
	if earlyClassRe.MatchString(strings.ToLower(p.ClassSchedule)) {
		c.TimeMinutes = max(10, c.TimeMinutes-10)
	}

	stress, energy := levelOr5(p.StressLevel), levelOr5(p.EnergyLevel)
	c.MentalEnergy = min(10, max(1, 10-max(0, stress-5)-max(0, 5-energy)))
	return c
}

// KitchenTier ranks kitchen access from 0 (none) to 3 (full). Unknown
// descriptions read as a shared kitchen.
func (c Constraints) KitchenTier() int {
	if t, ok := kitchenTiers[c.Kitchen]; ok {
		return t
	}
	return 2
}

// Restricted reports whether diet is among the restrictions.
func (c Constraints) Restricted(diet string) bool {
	for _, r := range c.Restrictions {
		if r == diet {
			return true
		}
	}
	return false
}

func levelOr5(v int) int {
	if v < 1 || v > 10 {
		return profile.DefaultLevel
	}
	return v
}

// #endregion constraints

// #region solve

// Skip is a protocol dropped by a constraint.
type Skip struct {
	Protocol string `json:"protocol"`
	Reason   string `json:"reason"`
}

// Result is the constrained plan.
type Result struct {
	Feasible     []rank.Ranked `json:"feasible"`
	Skipped      []Skip        `json:"skipped,omitempty"`
	TimeTier     string        `json:"time_tier"`
	BudgetTier   string        `json:"budget_tier"`
	MaxProtocols int           `json:"max_protocols"`
	Constraints  Constraints   `json:"constraints"`
}

var (
	needsCooking      = map[string]bool{"recovery_protocol": true, "muscle_protocol": true, "performance_protocol": true}
	veganIncompatible = map[string]bool{"collagen_protocol": true}
)

// Solve walks ranked in order and keeps what fits. Low mental energy caps
// the number of protocols by rank position; vegans lose collagen; no kitchen
// drops protocols that need cooking.
func Solve(ranked []rank.Ranked, c Constraints) Result {
	res := Result{
		TimeTier:     timeTier(c.TimeMinutes),
		BudgetTier:   budgetTier(c.BudgetDaily),
		MaxProtocols: maxProtocols(c.MentalEnergy),
		Constraints:  c,
	}
	vegan := c.Restricted("vegan")
	noKitchen := c.KitchenTier() == 0

	for i, r := range ranked {
		switch {
		case i >= res.MaxProtocols:
			res.Skipped = append(res.Skipped, Skip{r.Protocol,
				fmt.Sprintf("mental energy cap (%d/10, max %d)", c.MentalEnergy, res.MaxProtocols)})
		case vegan && veganIncompatible[r.Protocol]:
			res.Skipped = append(res.Skipped, Skip{r.Protocol, "dietary restriction: vegan"})
		case noKitchen && needsCooking[r.Protocol]:
			res.Skipped = append(res.Skipped, Skip{r.Protocol, "no kitchen, requires cooking equipment"})
		default:
			res.Feasible = append(res.Feasible, r)
		}
	}
	return res
}

func timeTier(minutes int) string {
	switch {
	case minutes <= 10:
		return "urgent"
	case minutes <= 20:
		return "tight"
	case minutes <= 40:
		return "moderate"
	default:
		return "comfortable"
	}
}

func budgetTier(daily float64) string {
	switch {
	case daily <= 8:
		return "bare"
	case daily <= 12:
		return "tight"
	case daily <= 20:
		return "moderate"
	default:
		return "flexible"
	}
}

func maxProtocols(mentalEnergy int) int {
	switch {
	case mentalEnergy >= 7:
		return 10
	case mentalEnergy >= 4:
		return 7
	default:
		return 4
	}
}

// #endregion solve
