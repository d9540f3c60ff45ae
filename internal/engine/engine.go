// Package engine wires extraction, learning, ranking and planning into the
// operations callers use.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/plan"
	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// DefaultBatchConcurrency bounds the users processed in parallel by ApplyBatch.
const DefaultBatchConcurrency = 8

// #region types

// Config collects the tunables of every stage.
type Config struct {
	Learning         update.Config
	Gate             gate.Config
	Ranking          rank.Options
	BatchConcurrency int
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Learning:         update.DefaultConfig(),
		Gate:             gate.DefaultConfig(),
		BatchConcurrency: DefaultBatchConcurrency,
	}
}

// Outcome is the result of one feedback event.
type Outcome struct {
	UserID    string          `json:"user_id"`
	Text      string          `json:"text,omitempty"`
	Signals   signals.Set     `json:"signals"`
	Decision  update.Decision `json:"decision"`
	Weights   state.Weights   `json:"weights"`
	VersionID string          `json:"version_id,omitempty"`
	Metrics   update.Metrics  `json:"metrics"`
	Err       error           `json:"-"`
}

// FeedbackEvent is one entry of a batch.
type FeedbackEvent struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Recommendation is the full plan for one user.
type Recommendation struct {
	State     profile.State      `json:"state"`
	Active    map[string]float64 `json:"active"`
	Ranked    []rank.Ranked      `json:"ranked"`
	Plan      plan.Result        `json:"plan"`
	Nutrients []profile.Target   `json:"nutrients"`
	Block     string             `json:"block"`
}

// #endregion types

// #region engine

// Engine is safe for concurrent use.
type Engine struct {
	catalog   *catalog.Catalog
	store     *state.Store
	extractor *signals.Extractor
	updater   *update.Updater
	ranker    *rank.Ranker
	batch     int
	logger    *zap.Logger
}

// New builds an engine over store. journal may be nil.
func New(store *state.Store, cfg Config, journal update.Journal, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cat := store.Catalog()
	opts := []update.Option{
		update.WithConfig(cfg.Learning),
		update.WithGate(gate.NewGate(cfg.Gate, cat)),
		update.WithLogger(logger.Named("update")),
	}
	if journal != nil {
		opts = append(opts, update.WithJournal(journal))
	}
	batch := cfg.BatchConcurrency
	if batch <= 0 {
		batch = DefaultBatchConcurrency
	}
	return &Engine{
		catalog:   cat,
		store:     store,
		extractor: signals.NewExtractor(logger.Named("signals")),
		updater:   update.NewUpdater(store, opts...),
		ranker:    rank.NewRanker(cat, cfg.Ranking),
		batch:     batch,
		logger:    logger,
	}
}

// Catalog returns the protocol catalog in use.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Store returns the weight store.
func (e *Engine) Store() *state.Store { return e.store }

// Extract reads feedback signals from text.
func (e *Engine) Extract(text string) signals.Set { return e.extractor.Extract(text) }

// Weights returns the user's current learned weights.
func (e *Engine) Weights(ctx context.Context, userID string) (state.Weights, error) {
	return e.store.Load(ctx, userID)
}

// #endregion engine

// #region feedback

// SubmitFeedback extracts signals from text and applies them to the user's
// weights. The returned outcome is populated even when err is non-nil.
func (e *Engine) SubmitFeedback(ctx context.Context, userID, text string) (Outcome, error) {
	return e.submit(ctx, userID, text, 0)
}

// SubmitFeedbackWithRate is SubmitFeedback with an explicit learning rate.
func (e *Engine) SubmitFeedbackWithRate(ctx context.Context, userID, text string, lr float64) (Outcome, error) {
	if lr == 0 {
		return Outcome{}, fmt.Errorf("submit %s: %w: %v", userID, update.ErrLearningRate, lr)
	}
	return e.submit(ctx, userID, text, lr)
}

func (e *Engine) submit(ctx context.Context, userID, text string, lr float64) (Outcome, error) {
	set := e.extractor.Extract(text)
	res, err := e.updater.Submit(ctx, update.Request{
		UserID:       userID,
		Signals:      set,
		Text:         text,
		LearningRate: lr,
	})
	out := Outcome{
		UserID:    userID,
		Text:      text,
		Signals:   set,
		Decision:  res.Decision,
		Weights:   res.Weights,
		VersionID: res.VersionID,
		Metrics:   res.Metrics,
		Err:       err,
	}
	return out, err
}

// ApplyBatch submits events with bounded parallelism across users. Events
// for the same user run in their input order. Outcomes are returned in input
// order; per-event failures are joined into the error and kept on each
// Outcome.
func (e *Engine) ApplyBatch(ctx context.Context, events []FeedbackEvent) ([]Outcome, error) {
	byUser := make(map[string][]int)
	var users []string
	for i, ev := range events {
		if _, ok := byUser[ev.UserID]; !ok {
			users = append(users, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], i)
	}

	out := make([]Outcome, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batch)
	for _, u := range users {
		idx := byUser[u]
		g.Go(func() error {
			for _, i := range idx {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i], _ = e.SubmitFeedback(gctx, events[i].UserID, events[i].Text)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("apply batch: %w", err)
	}

	var errs []error
	for _, o := range out {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	if len(errs) > 0 {
		e.logger.Warn("batch finished with failures", zap.Int("events", len(events)), zap.Int("failed", len(errs)))
	}
	return out, errors.Join(errs...)
}

// #endregion feedback

// #region ranking

// Rank orders the active protocols using the user's learned weights.
func (e *Engine) Rank(ctx context.Context, userID string, active map[string]float64, us rank.UserState) ([]rank.Ranked, error) {
	learned, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rank %s: %w", userID, err)
	}
	return e.ranker.Rank(active, us, learned), nil
}

// Recommend analyses a questionnaire, ranks the resulting protocols with the
// user's learned weights and fits them to the user's constraints.
func (e *Engine) Recommend(ctx context.Context, userID string, p profile.Profile) (Recommendation, error) {
	st := profile.Analyze(p, e.catalog)
	active := profile.MapToProtocols(st)
	ranked, err := e.Rank(ctx, userID, active, rank.UserState{Goals: st.Goals})
	if err != nil {
		return Recommendation{}, err
	}
	res := plan.Solve(ranked, plan.BuildConstraints(p))
	nutrients := profile.NutrientTargets(active, e.catalog)

	e.logger.Debug("recommendation built",
		zap.String("user_id", userID),
		zap.Int("active", len(active)),
		zap.Int("feasible", len(res.Feasible)),
		zap.Strings("flags", st.Flags),
	)
	return Recommendation{
		State:     st,
		Active:    active,
		Ranked:    ranked,
		Plan:      res,
		Nutrients: nutrients,
		Block:     plan.FormatBlock(ranked, nutrients, res),
	}, nil
}

// #endregion ranking
