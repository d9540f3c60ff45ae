// Package rank orders active protocols by severity, blended weight and goal
// alignment.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/campusfuel/healthos-engine/internal/catalog"
)

// Blend shares are fixed: baseline priors dominate learned weights.
const (
	BaselineShare = 0.70
	LearnedShare  = 0.30
)

// Alignment values used outside the goal tables.
const (
	UnknownGoalAlignment = 0.50
	NoGoalAlignment      = 0.65
	TopicGoalAlignment   = 1.00
)

// #region types

// UserState is the caller-supplied context for ranking.
type UserState struct {
	Goals []string
}

// Ranked is one scored protocol.
type Ranked struct {
	Protocol  string  `json:"protocol"`
	Score     float64 `json:"score"`
	Severity  float64 `json:"severity"`
	Blended   float64 `json:"blended"`
	Alignment float64 `json:"alignment"`
	Penalized bool    `json:"penalized,omitempty"`
}

// Options tune ranking beyond the fixed formula.
type Options struct {
	// ConflictPenalty multiplies the score of a protocol ranked below one it
	// conflicts with. 0 disables suppression.
	ConflictPenalty float64
}

// #endregion types

// #region ranker

// Ranker scores protocols against a catalog.
type Ranker struct {
	catalog *catalog.Catalog
	opts    Options
}

// NewRanker builds a ranker. A nil catalog selects catalog.Default().
func NewRanker(cat *catalog.Catalog, opts Options) *Ranker {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Ranker{catalog: cat, opts: opts}
}

// Rank scores every active protocol with positive finite severity and returns
// them by descending score, ties broken by catalog order. learned may be nil
// or partial; missing entries fall back to the baseline.
func (r *Ranker) Rank(active map[string]float64, us UserState, learned map[string]float64) []Ranked {
	goals := r.normalizeGoals(us.Goals)
	out := make([]Ranked, 0, len(active))
	for id, sev := range active {
		base, ok := r.catalog.Baseline(id)
		if !ok || sev <= 0 || math.IsNaN(sev) || math.IsInf(sev, 0) {
			continue
		}
		blended := Blend(base, learned, id)
		align := r.alignment(goals, id)
		out = append(out, Ranked{
			Protocol:  id,
			Score:     sev * blended * align,
			Severity:  sev,
			Blended:   blended,
			Alignment: align,
		})
	}
	r.sort(out)

	if r.opts.ConflictPenalty > 0 {
		r.suppressConflicts(out)
		r.sort(out)
	}
	return out
}

// Alignment returns the goal alignment of one protocol.
func (r *Ranker) Alignment(goals []string, protocol string) float64 {
	return r.alignment(r.normalizeGoals(goals), protocol)
}

// Blend mixes a baseline with a learned weight, falling back to the baseline
// when id has no learned entry.
func Blend(baseline float64, learned map[string]float64, id string) float64 {
	l, ok := learned[id]
	if !ok {
		l = baseline
	}
	return BaselineShare*baseline + LearnedShare*l
}

// #endregion ranker

// #region alignment

func (r *Ranker) normalizeGoals(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		if n := r.catalog.NormalizeGoal(g); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (r *Ranker) alignment(goals []string, protocol string) float64 {
	if len(goals) == 0 {
		return NoGoalAlignment
	}
	topic := catalog.Topic(protocol)
	best := 0.0
	for _, g := range goals {
		v, ok := r.catalog.GoalAlignment(g, protocol)
		if !ok {
			v = UnknownGoalAlignment
		}
		if containsWord(g, topic) {
			v = TopicGoalAlignment
		}
		best = math.Max(best, v)
	}
	return best
}

// containsWord reports whether phrase appears in text on word boundaries.
func containsWord(text, phrase string) bool {
	words := strings.Fields(text)
	want := strings.Fields(phrase)
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j, w := range want {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// #endregion alignment

// #region ordering

func (r *Ranker) sort(list []Ranked) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		pi, _ := r.catalog.Position(list[i].Protocol)
		pj, _ := r.catalog.Position(list[j].Protocol)
		return pi < pj
	})
}

// suppressConflicts penalises each protocol that conflicts with a protocol
// ranked above it. Penalties are decided on the unpenalised order.
func (r *Ranker) suppressConflicts(list []Ranked) {
	penalize := make([]bool, len(list))
	for i := range list {
		for j := 0; j < i; j++ {
			if r.catalog.Conflicts(list[i].Protocol, list[j].Protocol) {
				penalize[i] = true
				break
			}
		}
	}
	for i, p := range penalize {
		if p {
			list[i].Score *= r.opts.ConflictPenalty
			list[i].Penalized = true
		}
	}
}

// #endregion ordering
