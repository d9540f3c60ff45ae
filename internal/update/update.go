// Package update applies the bounded online-learning rule to per-user weight
// maps and persists the outcome.
package update

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region boost
// Boost returns the weight change one signal of the given strength applies to
// each routed protocol. Decline moves weights twice as fast as improvement.
// Zero or non-finite strength reports false.
func Boost(strength, lr float64) (float64, bool) {
	switch {
	case math.IsNaN(strength) || math.IsInf(strength, 0) || strength == 0:
		return 0, false
	case strength > 0:
		return lr * 0.5 * strength, true
	default:
		return lr * -strength, true
	}
}
// #endregion boost

// #region apply
// Apply is a pure function computing the next weights from old and a signal
// set. Signals are applied sequentially in set order, each result clamped to
// the weight bounds at full precision. old is never mutated.
func Apply(old state.Weights, set signals.Set, router Router, cfg Config) Result {
	start := time.Now()
	next := old.Clone()
	if next == nil {
		next = state.Weights{}
	}
	metrics := Metrics{LearningRate: cfg.LearningRate}

	for _, sig := range set.All() {
		targets := router.Route(sig.Name)
		boost, ok := Boost(sig.Strength, cfg.LearningRate)
		if len(targets) == 0 || !ok {
			metrics.Ignored = append(metrics.Ignored, sig.Name)
			continue
		}
		metrics.Applied = append(metrics.Applied, sig.Name)
		for _, p := range targets {
			w, present := next[p]
			if !present {
				continue
			}
			raw := w + boost
			if raw < catalog.MinWeight || raw > catalog.MaxWeight {
				metrics.Clamped++
			}
			next[p] = catalog.Clamp(raw)
		}
	}

	for _, p := range changedProtocols(old, next) {
		d := ProtocolDelta{Protocol: p, From: old[p], To: next[p]}
		metrics.Deltas = append(metrics.Deltas, d)
		metrics.MaxDelta = math.Max(metrics.MaxDelta, math.Abs(d.To-d.From))
	}
	metrics.UpdateTimeUs = time.Since(start).Microseconds()

	decision := Decision{Action: "no_op", Reason: "no weight change"}
	switch {
	case set.Len() == 0:
		decision.Reason = "no signals"
	case len(metrics.Deltas) > 0:
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("signals applied: %v, protocols changed: %d", metrics.Applied, len(metrics.Deltas)),
		}
	case len(metrics.Applied) == 0:
		decision.Reason = fmt.Sprintf("no routable signals: %v", metrics.Ignored)
	}

	return Result{Weights: next, Decision: decision, Metrics: metrics}
}
// #endregion apply

// #region helpers
// changedProtocols lists protocols whose weight differs, sorted.
func changedProtocols(old, next state.Weights) []string {
	var out []string
	for p, w := range next {
		if old[p] != w {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
// #endregion helpers
