package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// ErrLearningRate reports a learning rate outside (0, 1].
var ErrLearningRate = errors.New("learning rate must be in (0, 1]")

// #region save-error
// SaveError reports that the new weights were computed but not persisted.
// Weights holds the unsaved map so callers can retry.
type SaveError struct {
	UserID  string
	Weights state.Weights
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("update %s: save: %v", e.UserID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
// #endregion save-error

// #region journal
// Journal records every feedback decision.
type Journal interface {
	Record(ctx context.Context, e state.FeedbackEntry) error
}
// #endregion journal

// #region updater
// Updater runs load, apply, gate, commit and journal for one user at a time.
// Updates to the same user are serialised; different users never contend.
type Updater struct {
	store   *state.Store
	router  Router
	gate    *gate.Gate
	journal Journal
	config  Config
	locks   *keyedMutex
	logger  *zap.Logger
}

// Option configures an Updater.
type Option func(*Updater)

// WithConfig sets learning parameters.
func WithConfig(c Config) Option { return func(u *Updater) { u.config = c } }

// WithGate replaces the default invariant gate.
func WithGate(g *gate.Gate) Option { return func(u *Updater) { u.gate = g } }

// WithJournal records decisions to j.
func WithJournal(j Journal) Option { return func(u *Updater) { u.journal = j } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(u *Updater) { u.logger = l } }

// NewUpdater builds an updater routing through the store's catalog.
func NewUpdater(store *state.Store, opts ...Option) *Updater {
	u := &Updater{
		store:  store,
		router: store.Catalog(),
		config: DefaultConfig(),
		locks:  newKeyedMutex(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.gate == nil {
		u.gate = gate.NewGate(gate.DefaultConfig(), store.Catalog())
	}
	return u
}

// Config returns the updater's learning parameters.
func (u *Updater) Config() Config { return u.config }
// #endregion updater

// #region update
// Update applies set to the user's weights with the configured learning rate
// and returns the weights now in effect.
func (u *Updater) Update(ctx context.Context, userID string, set signals.Set) (state.Weights, error) {
	res, err := u.Submit(ctx, Request{UserID: userID, Signals: set})
	return res.Weights, err
}

// UpdateWithRate is Update with an explicit learning rate.
func (u *Updater) UpdateWithRate(ctx context.Context, userID string, set signals.Set, lr float64) (state.Weights, error) {
	if !validRate(lr) {
		return nil, fmt.Errorf("update %s: %w: %v", userID, ErrLearningRate, lr)
	}
	res, err := u.Submit(ctx, Request{UserID: userID, Signals: set, LearningRate: lr})
	return res.Weights, err
}

// Submit runs one feedback event through the full pipeline. An empty set or
// one that changes nothing is a no_op and nothing is persisted.
func (u *Updater) Submit(ctx context.Context, req Request) (Result, error) {
	cfg := u.config
	if req.LearningRate != 0 {
		cfg.LearningRate = req.LearningRate
	}
	if !validRate(cfg.LearningRate) {
		return Result{}, fmt.Errorf("update %s: %w: %v", req.UserID, ErrLearningRate, cfg.LearningRate)
	}

	unlock := u.locks.Lock(req.UserID)
	defer unlock()

	old, err := u.store.Load(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", req.UserID, err)
	}

	res := Apply(old, req.Signals, u.router, cfg)
	if res.Decision.Action == "no_op" {
		res.Weights = old
		u.record(ctx, req, res)
		return res, nil
	}

	gd := u.gate.Evaluate(old, res.Weights)
	if gd.Vetoed {
		res.Decision = Decision{Action: "reject", Reason: gd.Reason}
		u.record(ctx, req, res)
		u.logger.Error("update vetoed", zap.String("user_id", req.UserID), zap.String("reason", gd.Reason))
		res.Weights = old
		return res, fmt.Errorf("update %s: %w", req.UserID, gd.Err())
	}

	metricsJSON, _ := json.Marshal(res.Metrics)
	versionID, err := u.store.Commit(ctx, req.UserID, res.Weights, string(metricsJSON))
	if err != nil {
		res.Decision = Decision{Action: "reject", Reason: "save failed: " + err.Error()}
		u.record(ctx, req, res)
		return res, &SaveError{UserID: req.UserID, Weights: res.Weights, Err: err}
	}
	res.VersionID = versionID
	u.record(ctx, req, res)

	u.logger.Info("weights committed",
		zap.String("user_id", req.UserID),
		zap.String("version_id", versionID),
		zap.Strings("signals", res.Metrics.Applied),
		zap.Int("changed", len(res.Metrics.Deltas)),
		zap.Float64("max_delta", res.Metrics.MaxDelta),
		zap.Float64("soft_score", gd.SoftScore),
	)
	return res, nil
}
// #endregion update

// #region helpers
func (u *Updater) record(ctx context.Context, req Request, res Result) {
	if u.journal == nil {
		return
	}
	sigJSON, _ := json.Marshal(req.Signals)
	err := u.journal.Record(ctx, state.FeedbackEntry{
		UserID:      req.UserID,
		VersionID:   res.VersionID,
		Text:        req.Text,
		SignalsJSON: string(sigJSON),
		Decision:    res.Decision.Action,
		Reason:      res.Decision.Reason,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		u.logger.Warn("journal write failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
}

func validRate(lr float64) bool {
	return !math.IsNaN(lr) && lr > 0 && lr <= 1
}
// #endregion helpers
