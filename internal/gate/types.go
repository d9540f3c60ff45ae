package gate

import "errors"

// ErrInvariant reports a proposed weight map that must never be persisted.
var ErrInvariant = errors.New("weight invariant violated")

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoIncomplete VetoType = "incomplete"
	VetoUnknown    VetoType = "unknown_protocol"
	VetoNonFinite  VetoType = "non_finite"
	VetoBounds     VetoType = "out_of_bounds"
	VetoStep       VetoType = "step_too_large"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type     VetoType
	Protocol string
	Reason   string
}

// #endregion veto-signal

// #region gate-config
// Config holds gate thresholds.
type Config struct {
	MaxStep float64 // largest per-protocol change in one update; 0 disables
}

// DefaultConfig returns the gate used by the engine.
func DefaultConfig() Config {
	return Config{}
}

// #endregion gate-config

// #region gate-decision
// Decision is the output of the gate evaluation.
type Decision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal
	SoftScore   float64 // 0-1 stability score, logged only
}

// Err returns nil for a commit, or an error wrapping ErrInvariant.
func (d Decision) Err() error {
	if !d.Vetoed {
		return nil
	}
	return &VetoError{Decision: d}
}

// VetoError carries the rejected decision.
type VetoError struct {
	Decision Decision
}

func (e *VetoError) Error() string { return "gate: " + e.Decision.Reason }

func (e *VetoError) Unwrap() error { return ErrInvariant }

// #endregion gate-decision
