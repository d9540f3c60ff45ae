package eval

import (
	"math"
	"strings"
	"testing"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/state"
)

func metric(r Result, name string) Metric {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	return Metric{}
}

func TestBaselinePasses(t *testing.T) {
	h := NewHarness(DefaultConfig(), nil)
	r := h.Run(state.Weights(catalog.Default().Baselines()))
	if !r.Passed {
		t.Fatalf("baseline should pass: %s", r.Reason)
	}
	if metric(r, "max_abs_drift").Value != 0 {
		t.Fatalf("expected zero drift, got %v", metric(r, "max_abs_drift").Value)
	}
	if len(r.Drift) != catalog.Default().Len() {
		t.Fatalf("expected drift for every protocol, got %d", len(r.Drift))
	}
}

func TestDriftSortedAndFlagged(t *testing.T) {
	h := NewHarness(DefaultConfig(), nil)
	w := state.Weights(catalog.Default().Baselines())
	w["energy_protocol"] = 0.85
	w["skin_protocol"] = 0.80

	r := h.Run(w)
	if !r.Passed {
		t.Fatalf("drift alone must not fail: %s", r.Reason)
	}
	if r.Drift[0].Protocol != "skin_protocol" || !r.Drift[0].Flagged {
		t.Fatalf("expected flagged skin_protocol first, got %+v", r.Drift[0])
	}
	if math.Abs(r.Drift[0].Effective-0.3*0.4) > 1e-9 {
		t.Fatalf("effective drift = %v", r.Drift[0].Effective)
	}
	if r.Drift[1].Protocol != "energy_protocol" || r.Drift[1].Flagged {
		t.Fatalf("expected unflagged energy_protocol second, got %+v", r.Drift[1])
	}
	if metric(r, "flagged_protocols").Value != 1 {
		t.Fatalf("expected one flagged protocol")
	}
}

func TestInvalidMapsFail(t *testing.T) {
	h := NewHarness(DefaultConfig(), nil)

	w := state.Weights(catalog.Default().Baselines())
	delete(w, "sleep_protocol")
	w["nap_protocol"] = 0.5
	r := h.Run(w)
	if r.Passed {
		t.Fatal("incomplete map should fail")
	}
	if metric(r, "missing_protocols").Value != 1 || metric(r, "unknown_protocols").Value != 1 {
		t.Fatalf("unexpected completeness metrics: %+v", r.Metrics)
	}

	w = state.Weights(catalog.Default().Baselines())
	w["sleep_protocol"] = 1.5
	w["gut_protocol"] = math.NaN()
	r = h.Run(w)
	if r.Passed || metric(r, "bound_violations").Value != 2 {
		t.Fatalf("expected 2 bound violations, got %+v", r)
	}
}

func TestMaxDriftCap(t *testing.T) {
	w := state.Weights(catalog.Default().Baselines())
	w["skin_protocol"] = 0.60

	if r := NewHarness(DefaultConfig(), nil).Run(w); !r.Passed {
		t.Fatalf("drift should not fail without a cap: %s", r.Reason)
	}
	r := NewHarness(Config{DriftWarn: 0.30, MaxDrift: 0.15}, nil).Run(w)
	if r.Passed {
		t.Fatal("expected drift cap failure")
	}
	if !strings.Contains(r.Reason, "skin_protocol") {
		t.Fatalf("reason should name the protocol: %s", r.Reason)
	}
	if r := NewHarness(Config{DriftWarn: 0.30, MaxDrift: 0.20}, nil).Run(w); !r.Passed {
		t.Fatalf("drift at the cap should pass: %s", r.Reason)
	}
}
