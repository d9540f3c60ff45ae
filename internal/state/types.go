package state

import "time"

// #region weights
// Weights maps protocol id to learned weight. A valid map names every catalog
// protocol with a value in [catalog.MinWeight, catalog.MaxWeight].
type Weights map[string]float64

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	if w == nil {
		return nil
	}
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
// #endregion weights

// #region version
// Version is one persisted snapshot of a user's weights.
type Version struct {
	VersionID   string
	UserID      string
	ParentID    string
	Weights     Weights
	CreatedAt   time.Time
	MetricsJSON string
	Active      bool
}
// #endregion version

// #region feedback-entry
// FeedbackEntry is one row of the feedback journal.
type FeedbackEntry struct {
	UserID      string
	VersionID   string
	Text        string
	SignalsJSON string
	Decision    string // "commit" | "reject" | "no_op"
	Reason      string
	CreatedAt   time.Time
}
// #endregion feedback-entry
