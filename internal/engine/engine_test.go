package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/logging"
	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMemoryEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return New(state.NewStore(state.NewMemoryBackend(), nil), cfg, nil, nil)
}

func TestSubmitFeedbackCommits(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t, DefaultConfig())

	out, err := e.SubmitFeedback(ctx, "alice", "energy +2")
	require.NoError(t, err)
	assert.Equal(t, "commit", out.Decision.Action)
	assert.InDelta(t, 0.85, out.Weights["energy_protocol"], 1e-9)
	assert.NotEmpty(t, out.VersionID)

	w, err := e.Weights(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, w["energy_protocol"], 1e-9)
	assert.InDelta(t, 0.70, w["b_complex_protocol"], 1e-9)
}

func TestSubmitFeedbackNoSignals(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t, DefaultConfig())

	out, err := e.SubmitFeedback(ctx, "alice", "the weather is nice")
	require.NoError(t, err)
	assert.Equal(t, "no_op", out.Decision.Action)
	assert.Equal(t, 0, out.Signals.Len())
	assert.InDelta(t, 0.90, out.Weights["sleep_protocol"], 1e-9)
}

func TestSubmitFeedbackWithRate(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t, DefaultConfig())

	out, err := e.SubmitFeedbackWithRate(ctx, "alice", "sleep -1", 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1.00, out.Weights["sleep_protocol"])

	_, err = e.SubmitFeedbackWithRate(ctx, "alice", "sleep -1", 0)
	assert.ErrorIs(t, err, update.ErrLearningRate)
	_, err = e.SubmitFeedbackWithRate(ctx, "alice", "sleep -1", 1.5)
	assert.ErrorIs(t, err, update.ErrLearningRate)
}

func TestSubmitFeedbackVetoed(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Gate = gate.Config{MaxStep: 0.01}
	e := newMemoryEngine(t, cfg)

	out, err := e.SubmitFeedback(ctx, "alice", "energy +2")
	require.ErrorIs(t, err, gate.ErrInvariant)
	assert.Equal(t, "reject", out.Decision.Action)
	assert.InDelta(t, 0.80, out.Weights["energy_protocol"], 1e-9)

	w, _ := e.Weights(ctx, "alice")
	assert.InDelta(t, 0.80, w["energy_protocol"], 1e-9)
}

func TestApplyBatchOrdersPerUser(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.BatchConcurrency = 3
	e := newMemoryEngine(t, cfg)

	var events []FeedbackEvent
	for i := 0; i < 5; i++ {
		for _, u := range []string{"u1", "u2", "u3", "u4"} {
			events = append(events, FeedbackEvent{UserID: u, Text: "sleep +2"})
		}
	}
	out, err := e.ApplyBatch(ctx, events)
	require.NoError(t, err)
	require.Len(t, out, len(events))

	for i, o := range out {
		assert.Equal(t, events[i].UserID, o.UserID)
	}
	// 0.90 -> 0.95 -> 1.00, then clamped no-ops.
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		w, err := e.Weights(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, 1.00, w["sleep_protocol"], u)
	}
	assert.Equal(t, "commit", out[0].Decision.Action)
	assert.Equal(t, "no_op", out[len(out)-1].Decision.Action)
}

func TestApplyBatchJoinsFailures(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Gate = gate.Config{MaxStep: 0.01}
	e := newMemoryEngine(t, cfg)

	out, err := e.ApplyBatch(ctx, []FeedbackEvent{
		{UserID: "a", Text: "energy +2"},
		{UserID: "b", Text: "nothing to see"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gate.ErrInvariant))
	assert.Error(t, out[0].Err)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, "no_op", out[1].Decision.Action)
}

func TestApplyBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newMemoryEngine(t, DefaultConfig())

	_, err := e.ApplyBatch(ctx, []FeedbackEvent{{UserID: "a", Text: "sleep +1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankUsesLearnedWeights(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t, DefaultConfig())
	active := map[string]float64{"energy_protocol": 0.8, "mood_protocol": 0.8}

	before, err := e.Rank(ctx, "alice", active, rank.UserState{})
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, "energy_protocol", before[0].Protocol)

	for i := 0; i < 10; i++ {
		_, err := e.SubmitFeedback(ctx, "alice", "mood +3")
		require.NoError(t, err)
	}
	after, err := e.Rank(ctx, "alice", active, rank.UserState{})
	require.NoError(t, err)
	assert.Equal(t, "mood_protocol", after[0].Protocol)
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t, DefaultConfig())

	rec, err := e.Recommend(ctx, "alice", profile.Profile{
		SleepSchedule: "2am-6am",
		Goal:          "lose weight",
		StressLevel:   8,
		EnergyLevel:   3,
		DietType:      "vegan",
		CookingAccess: "none",
		Budget:        "low",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fat loss"}, rec.State.Goals)
	assert.Contains(t, rec.Active, "sleep_protocol")
	assert.Len(t, rec.Ranked, len(rec.Active))
	assert.NotEmpty(t, rec.Nutrients)
	assert.LessOrEqual(t, len(rec.Plan.Feasible), rec.Plan.MaxProtocols)
	assert.Equal(t, "bare", rec.Plan.BudgetTier)
	for i := 1; i < len(rec.Ranked); i++ {
		assert.GreaterOrEqual(t, rec.Ranked[i-1].Score, rec.Ranked[i].Score)
	}
	assert.Contains(t, rec.Block, "PROTOCOL PRIORITY SCORES:")
	assert.Contains(t, rec.Block, "ACTIVE CONSTRAINTS:")
}

func TestEngineOverSQLiteWithJournal(t *testing.T) {
	ctx := context.Background()
	b, err := state.NewSQLiteBackend(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	j := logging.NewJournal(b.DB())
	e := New(state.NewStore(b, nil), DefaultConfig(), j, nil)

	for i := 0; i < 3; i++ {
		_, err := e.SubmitFeedback(ctx, "alice", fmt.Sprintf("focus +%d", i+1))
		require.NoError(t, err)
	}
	_, err = e.SubmitFeedback(ctx, "alice", "hello")
	require.NoError(t, err)

	versions, err := b.ListVersions(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	counts, err := j.Counts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"commit": 3, "no_op": 1}, counts)
}
