package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	if c.Len() != 30 {
		t.Fatalf("expected 30 protocols, got %d", c.Len())
	}
	for _, p := range c.Protocols() {
		if p.Baseline < 0.40 || p.Baseline > 0.90 {
			t.Errorf("%s baseline %.2f outside documented range", p.ID, p.Baseline)
		}
	}
	if w, ok := c.Baseline("energy_protocol"); !ok || w != 0.80 {
		t.Fatalf("energy_protocol baseline = %v, %v", w, ok)
	}
	if w, ok := c.Baseline("sleep_protocol"); !ok || w != 0.90 {
		t.Fatalf("sleep_protocol baseline = %v, %v", w, ok)
	}
}

func TestBaselinesIsCopy(t *testing.T) {
	c := Default()
	b := c.Baselines()
	b["energy_protocol"] = 0.11
	delete(b, "sleep_protocol")

	if w, _ := c.Baseline("energy_protocol"); w != 0.80 {
		t.Fatalf("catalog mutated through Baselines(): %v", w)
	}
	if diff := cmp.Diff(len(c.Protocols()), len(c.Baselines())); diff != "" {
		t.Fatalf("baseline map incomplete (-want +got):\n%s", diff)
	}
}

func TestRoutes(t *testing.T) {
	c := Default()
	got := c.Route("energy")
	want := []string{"energy_protocol", "b_complex_protocol", "electrolyte_protocol"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("energy route mismatch (-want +got):\n%s", diff)
	}
	if r := c.Route("telepathy"); r != nil {
		t.Fatalf("expected nil route for unknown signal, got %v", r)
	}

	got[0] = "mutated"
	if c.Route("energy")[0] != "energy_protocol" {
		t.Fatal("Route returned shared slice")
	}
}

func TestGoalAlignment(t *testing.T) {
	c := Default()

	if g := c.NormalizeGoal("  Lose Weight "); g != "fat loss" {
		t.Fatalf("NormalizeGoal = %q", g)
	}
	if g := c.NormalizeGoal("improve energy"); g != "improve energy" {
		t.Fatalf("unknown goal should pass through, got %q", g)
	}

	v, ok := c.GoalAlignment("muscle gain", "muscle_protocol")
	if !ok || v != 1.00 {
		t.Fatalf("muscle gain/muscle = %v, %v", v, ok)
	}
	v, ok = c.GoalAlignment("muscle gain", "vision_protocol")
	if !ok || v != 0.55 {
		t.Fatalf("muscle gain default = %v, %v", v, ok)
	}
	if _, ok := c.GoalAlignment("world peace", "sleep_protocol"); ok {
		t.Fatal("expected unknown goal to report !ok")
	}
}

func TestConflicts(t *testing.T) {
	c := Default()
	if !c.Conflicts("muscle_protocol", "fat_loss_protocol") {
		t.Fatal("expected fat loss / muscle conflict in either order")
	}
	if c.Conflicts("muscle_protocol", "muscle_protocol") {
		t.Fatal("protocol cannot conflict with itself")
	}
	if c.Conflicts("sleep_protocol", "gut_protocol") {
		t.Fatal("unexpected conflict")
	}
}

func TestNutrientTargetsSorted(t *testing.T) {
	c := Default()
	got := c.NutrientTargets("sleep_protocol")
	want := []NutrientTarget{
		{Nutrient: "calcium_mg", Amount: 1000},
		{Nutrient: "magnesium_mg", Amount: 420},
		{Nutrient: "tryptophan_mg", Amount: 350},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("nutrient targets (-want +got):\n%s", diff)
	}
	if len(c.NutrientTargets("vision_protocol")) != 0 {
		t.Fatal("vision_protocol has no nutrient targets")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", `version: 1`},
		{"bad yaml", `protocols: [`},
		{"out of range", "protocols:\n  - {id: a, baseline: 1.5}\n"},
		{"below floor", "protocols:\n  - {id: a, baseline: 0.05}\n"},
		{"duplicate", "protocols:\n  - {id: a, baseline: 0.5}\n  - {id: a, baseline: 0.6}\n"},
		{"unknown route target", "protocols:\n  - {id: a, baseline: 0.5}\nroutes:\n  - {signal: s, protocols: [b]}\n"},
		{"bad conflict", "protocols:\n  - {id: a, baseline: 0.5}\nconflicts:\n  - [a]\n"},
		{"alias to unknown goal", "protocols:\n  - {id: a, baseline: 0.5}\ngoal_aliases:\n  x: nope\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClampAndBounds(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.05, MinWeight},
		{0.10, 0.10},
		{0.55, 0.55},
		{1.00, 1.00},
		{1.03, MaxWeight},
	}
	for _, tc := range cases {
		if got := Clamp(tc.in); got != tc.want {
			t.Errorf("Clamp(%v) = %v, want %v", tc.in, got, tc.want)
		}
		if !InBounds(Clamp(tc.in)) {
			t.Errorf("Clamp(%v) out of bounds", tc.in)
		}
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("blood_sugar_protocol"); got != "blood sugar" {
		t.Fatalf("Topic = %q", got)
	}
}
