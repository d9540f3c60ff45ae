package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/campusfuel/healthos-engine/internal/eval"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description   string             `json:"description"`
	UserID        string             `json:"user_id"`
	Config        FixtureConfig      `json:"config"`
	StartWeights  map[string]float64 `json:"start_weights,omitempty"` // empty starts from baselines
	Turns         []FixtureTurn      `json:"turns"`
	ExpectedFinal map[string]float64 `json:"expected_final,omitempty"` // checked protocols only
}

// FixtureTurn is one recorded feedback message.
type FixtureTurn struct {
	TurnID          string       `json:"turn_id"`
	Text            string       `json:"text"`
	ExpectedSignals *signals.Set `json:"expected_signals,omitempty"`
	ExpectedAction  string       `json:"expected_action,omitempty"`
}

// FixtureConfig bundles all sub-configs for a replay run.
type FixtureConfig struct {
	LearningRate float64 `json:"learning_rate"`
	MaxStep      float64 `json:"max_step,omitempty"`
	DriftWarn    float64 `json:"drift_warn,omitempty"`
	MaxDrift     float64 `json:"max_drift,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(f *Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToConfig converts a FixtureConfig to a domain Config. Zero values select
// the defaults.
func (fc FixtureConfig) ToConfig() Config {
	c := DefaultConfig()
	if fc.LearningRate != 0 {
		c.Update.LearningRate = fc.LearningRate
	}
	c.Gate.MaxStep = fc.MaxStep
	if fc.DriftWarn != 0 {
		c.Eval.DriftWarn = fc.DriftWarn
	}
	c.Eval.MaxDrift = fc.MaxDrift
	return c
}

// ToTurns converts fixture turns to domain turns.
func (f *Fixture) ToTurns() []Turn {
	out := make([]Turn, len(f.Turns))
	for i, t := range f.Turns {
		out[i] = Turn{TurnID: t.TurnID, Text: t.Text}
	}
	return out
}

// #endregion fixture-loader

// #region export

// Export builds a fixture from a user's journal. Entries are taken in order;
// each becomes a turn whose expected signals and action are what was
// recorded at the time. start is the map the first entry was applied to and
// final, if non-nil, becomes the expected end state.
func Export(userID string, start, final state.Weights, entries []state.FeedbackEntry, lr float64) (*Fixture, error) {
	if lr == 0 {
		lr = update.DefaultLearningRate
	}
	f := &Fixture{
		Description:   fmt.Sprintf("exported journal for %s (%d turns)", userID, len(entries)),
		UserID:        userID,
		Config:        FixtureConfig{LearningRate: lr, DriftWarn: eval.DefaultConfig().DriftWarn},
		StartWeights:  start,
		ExpectedFinal: final,
	}
	for i, e := range entries {
		if e.UserID != userID {
			continue
		}
		turn := FixtureTurn{
			TurnID:         fmt.Sprintf("turn-%d", i+1),
			Text:           e.Text,
			ExpectedAction: e.Decision,
		}
		if e.Decision == "reject" {
			turn.ExpectedAction = "gate_reject"
		}
		if e.SignalsJSON != "" {
			var set signals.Set
			if err := json.Unmarshal([]byte(e.SignalsJSON), &set); err != nil {
				return nil, fmt.Errorf("export %s: turn %d: %w", userID, i+1, err)
			}
			turn.ExpectedSignals = &set
		}
		f.Turns = append(f.Turns, turn)
	}
	if len(f.Turns) == 0 {
		return nil, fmt.Errorf("export %s: no journal entries", userID)
	}
	return f, nil
}

// #endregion export
