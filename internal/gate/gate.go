// Package gate guards the weight store: a proposed map is committed only if it
// is complete, finite and inside the weight bounds.
package gate

import (
	"fmt"
	"math"
	"sort"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region gate
// Gate evaluates whether a proposed weight map may be committed.
type Gate struct {
	config  Config
	catalog *catalog.Catalog
}

// NewGate creates a gate. A nil catalog selects catalog.Default().
func NewGate(config Config, cat *catalog.Catalog) *Gate {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Gate{config: config, catalog: cat}
}

// Evaluate checks hard vetoes first, then scores stability.
func (g *Gate) Evaluate(old, proposed state.Weights) Decision {
	var vetoes []VetoSignal

	if len(proposed) != g.catalog.Len() {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoIncomplete,
			Reason: fmt.Sprintf("%d protocols, want %d", len(proposed), g.catalog.Len()),
		})
	}

	for _, id := range sortedIDs(proposed) {
		w := proposed[id]
		if _, ok := g.catalog.Baseline(id); !ok {
			vetoes = append(vetoes, VetoSignal{Type: VetoUnknown, Protocol: id, Reason: "unknown protocol " + id})
			continue
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			vetoes = append(vetoes, VetoSignal{Type: VetoNonFinite, Protocol: id, Reason: fmt.Sprintf("%s is %v", id, w)})
			continue
		}
		if !catalog.InBounds(w) {
			vetoes = append(vetoes, VetoSignal{
				Type:     VetoBounds,
				Protocol: id,
				Reason:   fmt.Sprintf("%s = %.4f outside [%.2f, %.2f]", id, w, catalog.MinWeight, catalog.MaxWeight),
			})
			continue
		}
		if prev, ok := old[id]; ok && g.config.MaxStep > 0 && math.Abs(w-prev) > g.config.MaxStep+1e-9 {
			vetoes = append(vetoes, VetoSignal{
				Type:     VetoStep,
				Protocol: id,
				Reason:   fmt.Sprintf("%s moved %.4f, cap %.4f", id, math.Abs(w-prev), g.config.MaxStep),
			})
		}
	}

	if len(vetoes) > 0 {
		return Decision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	score := softScore(old, proposed)
	return Decision{
		Action:    "commit",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", score),
		SoftScore: score,
	}
}

// #endregion gate

// #region helpers
// softScore is 1 for an unchanged map and falls with the largest single move
// and the share of protocols touched.
func softScore(old, proposed state.Weights) float64 {
	if len(proposed) == 0 {
		return 0
	}
	var maxDelta float64
	changed := 0
	for id, w := range proposed {
		d := math.Abs(w - old[id])
		if d > 0 {
			changed++
		}
		if d > maxDelta {
			maxDelta = d
		}
	}
	span := catalog.MaxWeight - catalog.MinWeight
	stability := 1 - math.Min(maxDelta/span, 1)
	focus := 1 - float64(changed)/float64(len(proposed))
	return 0.5*stability + 0.5*focus
}

func sortedIDs(w state.Weights) []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// #endregion helpers
