package eval

// #region eval-config
// Config holds thresholds for weight-map validation.
type Config struct {
	DriftWarn float64 // informational: learned drift beyond this is flagged, never failed
	MaxDrift  float64 // hard cap on |learned - baseline|; 0 disables
}

// DefaultConfig returns the thresholds used by the inspect command.
func DefaultConfig() Config {
	return Config{DriftWarn: 0.30}
}

// #endregion eval-config

// #region eval-metric
// Metric captures a single validation check result.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region drift
// Drift describes how far one protocol has moved from its baseline.
// Effective is the drift the ranker sees after blending.
type Drift struct {
	Protocol  string  `json:"protocol"`
	Baseline  float64 `json:"baseline"`
	Learned   float64 `json:"learned"`
	Delta     float64 `json:"delta"`
	Effective float64 `json:"effective"`
	Flagged   bool    `json:"flagged,omitempty"`
}

// #endregion drift

// #region eval-result
// Result is the output of a validation run.
type Result struct {
	Passed  bool     `json:"passed"`
	Metrics []Metric `json:"metrics"`
	Drift   []Drift  `json:"drift"`
	Reason  string   `json:"reason"`
}

// #endregion eval-result
