// Package eval reports how far a user's learned weights have drifted from the
// catalog baselines and whether the map still satisfies its invariants.
package eval

import (
	"fmt"
	"math"
	"sort"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region eval-harness
// Harness validates weight maps against a catalog.
type Harness struct {
	config  Config
	catalog *catalog.Catalog
}

// NewHarness creates a harness. A nil catalog selects catalog.Default().
func NewHarness(config Config, cat *catalog.Catalog) *Harness {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Harness{config: config, catalog: cat}
}

// Run checks completeness and bounds, then reports drift sorted by magnitude.
func (h *Harness) Run(w state.Weights) Result {
	var metrics []Metric
	var failReasons []string

	// 1. Completeness
	missing := 0
	for _, p := range h.catalog.Protocols() {
		if _, ok := w[p.ID]; !ok {
			missing++
		}
	}
	unknown := 0
	for id := range w {
		if _, ok := h.catalog.Baseline(id); !ok {
			unknown++
		}
	}
	completePass := missing == 0 && unknown == 0
	metrics = append(metrics, Metric{Name: "missing_protocols", Value: float64(missing), Pass: missing == 0})
	metrics = append(metrics, Metric{Name: "unknown_protocols", Value: float64(unknown), Pass: unknown == 0})
	if !completePass {
		failReasons = append(failReasons, fmt.Sprintf("%d missing, %d unknown protocols", missing, unknown))
	}

	// 2. Bounds
	violations := 0
	for _, v := range w {
		if !catalog.InBounds(v) {
			violations++
		}
	}
	metrics = append(metrics, Metric{Name: "bound_violations", Value: float64(violations), Pass: violations == 0})
	if violations > 0 {
		failReasons = append(failReasons, fmt.Sprintf("%d weights outside [%.2f, %.2f]", violations, catalog.MinWeight, catalog.MaxWeight))
	}

	// 3. Drift: flagged is informational, MaxDrift is a hard cap
	drift := h.drift(w)
	var sumAbs, maxAbs float64
	flagged := 0
	for _, d := range drift {
		sumAbs += math.Abs(d.Delta)
		maxAbs = math.Max(maxAbs, math.Abs(d.Delta))
		if d.Flagged {
			flagged++
		}
	}
	mean := 0.0
	if len(drift) > 0 {
		mean = sumAbs / float64(len(drift))
	}
	metrics = append(metrics,
		Metric{Name: "mean_abs_drift", Value: mean, Pass: true},
		Metric{Name: "max_abs_drift", Value: maxAbs, Pass: maxAbs <= h.config.DriftWarn},
		Metric{Name: "max_effective_drift", Value: rank.LearnedShare * maxAbs, Pass: true},
		Metric{Name: "flagged_protocols", Value: float64(flagged), Pass: flagged == 0},
	)
	if h.config.MaxDrift > 0 && maxAbs > h.config.MaxDrift+1e-9 {
		failReasons = append(failReasons, fmt.Sprintf("%s drifted %.4f, cap %.4f", drift[0].Protocol, maxAbs, h.config.MaxDrift))
	}

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Drift:   drift,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
// drift lists catalog protocols present in w, largest move first, ties in
// catalog order.
func (h *Harness) drift(w state.Weights) []Drift {
	var out []Drift
	for _, p := range h.catalog.Protocols() {
		v, ok := w[p.ID]
		if !ok {
			continue
		}
		delta := v - p.Baseline
		out = append(out, Drift{
			Protocol:  p.ID,
			Baseline:  p.Baseline,
			Learned:   v,
			Delta:     delta,
			Effective: rank.LearnedShare * delta,
			Flagged:   math.Abs(delta) > h.config.DriftWarn,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Delta) > math.Abs(out[j].Delta)
	})
	return out
}

// #endregion helpers
