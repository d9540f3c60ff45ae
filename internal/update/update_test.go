package update

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

func baseline() state.Weights {
	return state.Weights(catalog.Default().Baselines())
}

func approx(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

func TestApplyEnergyScenario(t *testing.T) {
	old := baseline()
	res := Apply(old, signals.NewSet(signals.Signal{Name: "energy", Strength: 2}), catalog.Default(), DefaultConfig())

	if res.Decision.Action != "commit" {
		t.Fatalf("expected commit, got %s", res.Decision.Action)
	}
	want := map[string]float64{
		"energy_protocol":      0.85,
		"b_complex_protocol":   0.70,
		"electrolyte_protocol": 0.70,
	}
	for p, w := range want {
		if !approx(res.Weights[p], w) {
			t.Errorf("%s = %v, want %v", p, res.Weights[p], w)
		}
	}
	if !approx(res.Weights["sleep_protocol"], 0.90) {
		t.Fatalf("unrouted protocol changed: %v", res.Weights["sleep_protocol"])
	}
	if old["energy_protocol"] != 0.80 {
		t.Fatal("Apply mutated its input")
	}
	if len(res.Metrics.Deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %+v", res.Metrics.Deltas)
	}
}

func TestApplySleepScenario(t *testing.T) {
	res := Apply(baseline(), signals.NewSet(signals.Signal{Name: "sleep", Strength: -1}), catalog.Default(), DefaultConfig())
	if !approx(res.Weights["sleep_protocol"], 0.95) {
		t.Fatalf("sleep_protocol = %v, want 0.95", res.Weights["sleep_protocol"])
	}
}

func TestBoostAsymmetry(t *testing.T) {
	for _, s := range []float64{0.5, 1, 2, 3.7} {
		up, ok1 := Boost(s, 0.05)
		down, ok2 := Boost(-s, 0.05)
		if !ok1 || !ok2 {
			t.Fatalf("Boost(%v) not applied", s)
		}
		if math.Abs(down-2*up) > 1e-12 {
			t.Errorf("Boost(-%v) = %v, want 2 * %v", s, down, up)
		}
	}
	for _, s := range []float64{0, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, ok := Boost(s, 0.05); ok {
			t.Errorf("Boost(%v) should be skipped", s)
		}
	}
}

func TestApplySmallStrengthsKeepAsymmetry(t *testing.T) {
	sleep := func(s float64) float64 {
		res := Apply(baseline(), signals.NewSet(signals.Signal{Name: "sleep", Strength: s}), catalog.Default(), DefaultConfig())
		return res.Weights["sleep_protocol"]
	}
	up := sleep(0.002) - 0.90
	down := sleep(-0.002) - 0.90
	if !approx(up, 0.00005) {
		t.Fatalf("+0.002 moved sleep by %v, want 0.00005", up)
	}
	if !approx(down, 2*up) {
		t.Fatalf("-0.002 moved sleep by %v, want twice %v", down, up)
	}
}

func TestApplyRepeatedSmallFeedbackFollowsFormula(t *testing.T) {
	w := baseline()
	set := signals.NewSet(signals.Signal{Name: "sleep", Strength: 0.003})
	for i := 0; i < 100; i++ {
		w = Apply(w, set, catalog.Default(), DefaultConfig()).Weights
	}
	// 0.90 + 100 * 0.05 * 0.5 * 0.003
	if !approx(w["sleep_protocol"], 0.9075) {
		t.Fatalf("sleep_protocol = %v, want 0.9075", w["sleep_protocol"])
	}
}

func TestApplyClampsAtCeilingAndFloor(t *testing.T) {
	old := baseline()
	old["sleep_protocol"] = 0.98
	res := Apply(old, signals.NewSet(signals.Signal{Name: "sleep", Strength: -1}), catalog.Default(), DefaultConfig())
	if !approx(res.Weights["sleep_protocol"], catalog.MaxWeight) {
		t.Fatalf("expected clamp to 1.00, got %v", res.Weights["sleep_protocol"])
	}
	if res.Metrics.Clamped != 1 {
		t.Fatalf("expected 1 clamp, got %d", res.Metrics.Clamped)
	}

	old = baseline()
	old["sleep_protocol"] = 1.00
	res = Apply(old, signals.NewSet(signals.Signal{Name: "sleep", Strength: -50}), catalog.Default(), Config{LearningRate: 1})
	if !approx(res.Weights["sleep_protocol"], catalog.MaxWeight) {
		t.Fatalf("expected 1.00, got %v", res.Weights["sleep_protocol"])
	}
	if res.Decision.Action != "no_op" {
		t.Fatalf("saturated weight should be a no_op, got %s", res.Decision.Action)
	}
}

func TestApplyNeverLeavesBounds(t *testing.T) {
	strengths := []float64{-100, -3, -1, -0.2, 0.2, 1, 3, 100}
	w := baseline()
	for i := 0; i < 200; i++ {
		s := strengths[i%len(strengths)]
		set := signals.NewSet(
			signals.Signal{Name: "energy", Strength: s},
			signals.Signal{Name: "stress", Strength: -s},
			signals.Signal{Name: "gut", Strength: s},
		)
		w = Apply(w, set, catalog.Default(), Config{LearningRate: 0.3}).Weights
		for p, v := range w {
			if !catalog.InBounds(v) {
				t.Fatalf("step %d: %s = %v out of bounds", i, p, v)
			}
		}
	}
}

func TestApplyIgnoresUnknownAndEmpty(t *testing.T) {
	old := baseline()

	res := Apply(old, signals.Set{}, catalog.Default(), DefaultConfig())
	if res.Decision.Action != "no_op" || res.Decision.Reason != "no signals" {
		t.Fatalf("empty set: %+v", res.Decision)
	}

	res = Apply(old, signals.NewSet(signals.Signal{Name: "telepathy", Strength: 1}), catalog.Default(), DefaultConfig())
	if res.Decision.Action != "no_op" {
		t.Fatalf("unknown signal: %+v", res.Decision)
	}
	if diff := cmp.Diff(old, res.Weights); diff != "" {
		t.Fatalf("weights changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"telepathy"}, res.Metrics.Ignored); diff != "" {
		t.Fatalf("ignored (-want +got):\n%s", diff)
	}
}

func TestApplySequentialOverlap(t *testing.T) {
	// gut_protocol is routed by both stress and anxiety; both steps land on it.
	set := signals.NewSet(
		signals.Signal{Name: "stress", Strength: -1},
		signals.Signal{Name: "anxiety", Strength: -1},
	)
	res := Apply(baseline(), set, catalog.Default(), DefaultConfig())
	if !approx(res.Weights["gut_protocol"], 0.80) {
		t.Fatalf("gut_protocol = %v, want 0.80", res.Weights["gut_protocol"])
	}
	if !approx(res.Weights["stress_protocol"], 0.95) {
		t.Fatalf("stress_protocol = %v, want 0.95", res.Weights["stress_protocol"])
	}
}

func TestApplyDeterministic(t *testing.T) {
	set := signals.NewSet(signals.Signal{Name: "focus", Strength: 1}, signals.Signal{Name: "mood", Strength: -2})
	r1 := Apply(baseline(), set, catalog.Default(), DefaultConfig())
	r2 := Apply(baseline(), set, catalog.Default(), DefaultConfig())
	if diff := cmp.Diff(r1.Weights, r2.Weights); diff != "" {
		t.Fatalf("non-deterministic (-r1 +r2):\n%s", diff)
	}
}
