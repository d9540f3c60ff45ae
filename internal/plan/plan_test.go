package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
)

func TestBuildConstraintsDefaults(t *testing.T) {
	c := BuildConstraints(profile.Profile{})
	assert.Equal(t, Constraints{
		TimeMinutes:  30,
		BudgetDaily:  15,
		Kitchen:      "shared kitchen",
		MentalEnergy: 10,
	}, c)
	assert.Equal(t, 2, c.KitchenTier())
}

func TestBuildConstraints(t *testing.T) {
	c := BuildConstraints(profile.Profile{
		SleepSchedule: "12am-7am",
		ClassSchedule: "Mon/Wed 8am lecture",
		Budget:        "Low",
		CookingAccess: "Dorm Microwave",
		DietType:      "Vegan",
		Allergies:     "Peanuts; shellfish / ",
		StressLevel:   9,
		EnergyLevel:   2,
	})
	assert.Equal(t, 10, c.TimeMinutes)
	assert.Equal(t, 8.0, c.BudgetDaily)
	assert.Equal(t, "dorm microwave", c.Kitchen)
	assert.Equal(t, 1, c.KitchenTier())
	assert.Equal(t, []string{"vegan"}, c.Restrictions)
	assert.Equal(t, []string{"peanuts", "shellfish"}, c.Allergies)
	assert.Equal(t, 3, c.MentalEnergy)
}

func TestBuildConstraintsIgnoresOtherDiets(t *testing.T) {
	c := BuildConstraints(profile.Profile{DietType: "omnivore", Allergies: "N/A", Budget: "lots"})
	assert.Empty(t, c.Restrictions)
	assert.Empty(t, c.Allergies)
	assert.Equal(t, 15.0, c.BudgetDaily)
}

func TestMentalEnergyFloor(t *testing.T) {
	c := BuildConstraints(profile.Profile{StressLevel: 10, EnergyLevel: 1})
	assert.Equal(t, 1, c.MentalEnergy)
}

func ranked(ids ...string) []rank.Ranked {
	out := make([]rank.Ranked, len(ids))
	for i, id := range ids {
		out[i] = rank.Ranked{Protocol: id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestSolveMentalEnergyCap(t *testing.T) {
	list := ranked("a", "b", "c", "d", "e", "f")
	res := Solve(list, Constraints{MentalEnergy: 2, Kitchen: "full"})

	assert.Equal(t, 4, res.MaxProtocols)
	require.Len(t, res.Feasible, 4)
	assert.Equal(t, "d", res.Feasible[3].Protocol)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "e", res.Skipped[0].Protocol)
	assert.Contains(t, res.Skipped[0].Reason, "mental energy cap")
}

func TestSolveDietAndKitchen(t *testing.T) {
	list := ranked("sleep_protocol", "collagen_protocol", "muscle_protocol", "gut_protocol")

	res := Solve(list, Constraints{MentalEnergy: 8, Kitchen: "none", Restrictions: []string{"vegan"}})
	var kept []string
	for _, r := range res.Feasible {
		kept = append(kept, r.Protocol)
	}
	assert.Equal(t, []string{"sleep_protocol", "gut_protocol"}, kept)
	assert.Equal(t, []Skip{
		{"collagen_protocol", "dietary restriction: vegan"},
		{"muscle_protocol", "no kitchen, requires cooking equipment"},
	}, res.Skipped)

	res = Solve(list, Constraints{MentalEnergy: 8, Kitchen: "full kitchen"})
	assert.Len(t, res.Feasible, 4)
	assert.Empty(t, res.Skipped)
}

func TestTiers(t *testing.T) {
	assert.Equal(t, "urgent", timeTier(10))
	assert.Equal(t, "tight", timeTier(15))
	assert.Equal(t, "moderate", timeTier(30))
	assert.Equal(t, "comfortable", timeTier(60))

	assert.Equal(t, "bare", budgetTier(8))
	assert.Equal(t, "tight", budgetTier(12))
	assert.Equal(t, "moderate", budgetTier(15))
	assert.Equal(t, "flexible", budgetTier(30))

	assert.Equal(t, TierHigh, Tier(0.6))
	assert.Equal(t, TierModerate, Tier(0.45))
	assert.Equal(t, TierLow, Tier(0.1))
}

func TestFormatBlock(t *testing.T) {
	list := ranked("sleep_protocol", "collagen_protocol", "gut_protocol")
	c := Constraints{TimeMinutes: 15, BudgetDaily: 8, Kitchen: "none", MentalEnergy: 5,
		Restrictions: []string{"vegan"}, Allergies: []string{"peanuts"}}
	res := Solve(list, c)
	block := FormatBlock(list, []profile.Target{
		{Nutrient: "fiber_g", Amount: 19},
		{Nutrient: "vitamin_b12_ug", Amount: 2.4},
	}, res)

	for _, want := range []string{
		"PROTOCOL PRIORITY SCORES:",
		"   1. sleep_protocol",
		"1.000  HIGH",
		"CONSTRAINT-FILTERED (1 protocols):",
		"  - collagen_protocol: dietary restriction: vegan",
		"fiber",
		"19.0g",
		"2.4µg",
		"Time available:    15min [tight]",
		"Daily budget:      $8/day [bare]",
		"Restrictions:      vegan",
		"Allergies:         peanuts",
		"Skipped protocols: 1 (constraint conflicts)",
	} {
		assert.Contains(t, block, want)
	}
	assert.True(t, strings.Index(block, "PROTOCOL PRIORITY") < strings.Index(block, "ACTIVE CONSTRAINTS"))
}

func TestFormatBlockListsTopTen(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	block := FormatBlock(ranked(ids...), nil, Result{})
	assert.Contains(t, block, "10. j")
	assert.NotContains(t, block, "11. k")
	assert.NotContains(t, block, "CONSTRAINT-FILTERED")
}
