// Package replay re-runs recorded feedback through the learning pipeline in
// memory, so changes to extraction or update rules can be checked against
// known sessions.
package replay

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/eval"
	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// #region types
// Turn is a single recorded feedback message.
type Turn struct {
	TurnID string
	Text   string
}

// Config bundles update, gate, and eval configs for a replay run.
type Config struct {
	Update update.Config
	Gate   gate.Config
	Eval   eval.Config
}

// DefaultConfig returns the production settings for all three stages.
func DefaultConfig() Config {
	return Config{
		Update: update.DefaultConfig(),
		Gate:   gate.DefaultConfig(),
		Eval:   eval.DefaultConfig(),
	}
}

// Result captures the outcome of replaying one turn through the pipeline.
type Result struct {
	TurnID  string
	Action  string // "commit" | "gate_reject" | "eval_rollback" | "no_op"
	Reason  string
	Signals signals.Set

	// Update stage
	UpdateDecision update.Decision
	UpdateMetrics  update.Metrics

	// Gate stage (nil if update was no_op)
	GateDecision *gate.Decision

	// Eval stage (nil if gate rejected or update was no_op)
	EvalResult *eval.Result

	// Weights in effect after this turn
	Weights state.Weights
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns    int
	Commits       int
	GateRejects   int
	EvalRollbacks int
	NoOps         int
	FinalWeights  state.Weights
}

// #endregion types

// #region replay
// Replay runs each turn through extract, update, gate and eval, advancing
// the weights only on commit. It never touches storage.
func Replay(start state.Weights, turns []Turn, config Config, cat *catalog.Catalog, ex *signals.Extractor) []Result {
	if cat == nil {
		cat = catalog.Default()
	}
	if ex == nil {
		ex = signals.NewExtractor(nil)
	}
	current := start.Clone()
	results := make([]Result, 0, len(turns))

	gateInst := gate.NewGate(config.Gate, cat)
	evalInst := eval.NewHarness(config.Eval, cat)

	for _, turn := range turns {
		set := ex.Extract(turn.Text)

		// 1. Update
		upd := update.Apply(current, set, cat, config.Update)
		r := Result{
			TurnID:         turn.TurnID,
			Signals:        set,
			UpdateDecision: upd.Decision,
			UpdateMetrics:  upd.Metrics,
			Weights:        current,
		}

		// 2. No-op check
		if upd.Decision.Action == "no_op" {
			r.Action, r.Reason = "no_op", upd.Decision.Reason
			results = append(results, r)
			continue
		}

		// 3. Gate
		gd := gateInst.Evaluate(current, upd.Weights)
		r.GateDecision = &gd
		if gd.Vetoed {
			r.Action, r.Reason = "gate_reject", gd.Reason
			results = append(results, r)
			continue
		}

		// 4. Eval
		er := evalInst.Run(upd.Weights)
		r.EvalResult = &er
		if !er.Passed {
			r.Action, r.Reason = "eval_rollback", er.Reason
			results = append(results, r)
			continue
		}

		// 5. Commit
		current = upd.Weights
		r.Action, r.Reason, r.Weights = "commit", gd.Reason, current
		results = append(results, r)
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, final state.Weights) Summary {
	s := Summary{
		TotalTurns:   len(results),
		FinalWeights: final,
	}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "gate_reject":
			s.GateRejects++
		case "eval_rollback":
			s.EvalRollbacks++
		case "no_op":
			s.NoOps++
		}
	}
	return s
}

// #endregion replay

// #region run-fixture
// Tolerance is the per-protocol slack allowed when comparing final weights.
const Tolerance = 1e-9

// Report is the outcome of running a fixture.
type Report struct {
	Results  []Result
	Summary  Summary
	Failures []string
}

// Passed reports whether the fixture matched every expectation.
func (r Report) Passed() bool { return len(r.Failures) == 0 }

// Run replays a fixture and checks its expectations.
func Run(f *Fixture, cat *catalog.Catalog, ex *signals.Extractor) Report {
	if cat == nil {
		cat = catalog.Default()
	}
	start := cat.Baselines()
	for id, v := range f.StartWeights {
		start[id] = v
	}

	results := Replay(start, f.ToTurns(), f.Config.ToConfig(), cat, ex)
	final := state.Weights(start)
	if n := len(results); n > 0 {
		final = results[n-1].Weights
	}
	rep := Report{Results: results, Summary: Summarize(results, final)}

	for i, t := range f.Turns {
		got := results[i]
		if t.ExpectedAction != "" && got.Action != t.ExpectedAction {
			rep.Failures = append(rep.Failures,
				fmt.Sprintf("%s: action %s, want %s (%s)", t.TurnID, got.Action, t.ExpectedAction, got.Reason))
		}
		if t.ExpectedSignals != nil {
			if diff := cmp.Diff(t.ExpectedSignals.All(), got.Signals.All(), cmpopts.EquateEmpty()); diff != "" {
				rep.Failures = append(rep.Failures, fmt.Sprintf("%s: signals (-want +got):\n%s", t.TurnID, diff))
			}
		}
	}

	if len(f.ExpectedFinal) > 0 {
		want := make(map[string]float64, len(f.ExpectedFinal))
		got := make(map[string]float64, len(f.ExpectedFinal))
		for id, v := range f.ExpectedFinal {
			want[id] = v
			got[id] = final[id]
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, Tolerance)); diff != "" {
			rep.Failures = append(rep.Failures, fmt.Sprintf("final weights (-want +got):\n%s", diff))
		}
	}
	return rep
}

// #endregion run-fixture
