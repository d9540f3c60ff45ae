package update

import (
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// DefaultLearningRate is used when no rate is configured.
const DefaultLearningRate = 0.05

// #region router
// Router maps a signal name to the protocols it influences. *catalog.Catalog
// satisfies it.
type Router interface {
	Route(signal string) []string
}
// #endregion router

// #region decision
// Decision records what the updater decided.
type Decision struct {
	Action string `json:"action"` // "commit" | "reject" | "no_op"
	Reason string `json:"reason"`
}
// #endregion decision

// #region metrics
// ProtocolDelta is the change applied to one protocol.
type ProtocolDelta struct {
	Protocol string  `json:"protocol"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
}

// Metrics captures telemetry from an update cycle.
type Metrics struct {
	LearningRate float64         `json:"learning_rate"`
	Applied      []string        `json:"applied,omitempty"`
	Ignored      []string        `json:"ignored,omitempty"`
	Deltas       []ProtocolDelta `json:"deltas,omitempty"`
	MaxDelta     float64         `json:"max_delta"`
	Clamped      int             `json:"clamped"`
	UpdateTimeUs int64           `json:"update_time_us"`
}
// #endregion metrics

// #region config
// Config holds learning parameters.
type Config struct {
	LearningRate float64
}

// DefaultConfig returns the production learning parameters.
func DefaultConfig() Config {
	return Config{LearningRate: DefaultLearningRate}
}
// #endregion config

// #region request
// Request is one feedback event for one user.
type Request struct {
	UserID       string
	Signals      signals.Set
	Text         string  // original feedback, journaled only
	LearningRate float64 // 0 selects the updater's configured rate
}
// #endregion request

// #region result
// Result bundles everything an update returns.
type Result struct {
	Weights   state.Weights
	Decision  Decision
	Metrics   Metrics
	VersionID string
}
// #endregion result
