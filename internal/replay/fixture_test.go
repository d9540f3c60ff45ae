package replay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region fixture-tests

// TestFixtures runs every fixture in testdata and checks its expectations.
// Changes to extraction or learning rules that alter recorded behaviour
// show up here first.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			f, err := LoadFixture(p)
			require.NoError(t, err)

			rep := Run(f, nil, nil)
			require.Len(t, rep.Results, len(f.Turns))
			for _, msg := range rep.Failures {
				t.Error(msg)
			}
		})
	}
}

func TestEnergySessionSummary(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "energy_session.json"))
	require.NoError(t, err)

	rep := Run(f, nil, nil)
	assert.True(t, rep.Passed())
	assert.Equal(t, 6, rep.Summary.TotalTurns)
	assert.Equal(t, 4, rep.Summary.Commits)
	assert.Equal(t, 2, rep.Summary.NoOps)
	assert.Equal(t, 1.00, rep.Summary.FinalWeights["sleep_protocol"])
}

func TestRunReportsMismatches(t *testing.T) {
	want := signals.NewSet(signals.Signal{Name: "sleep", Strength: 1})
	f := &Fixture{
		Turns: []FixtureTurn{
			{TurnID: "t1", Text: "energy +2", ExpectedAction: "no_op", ExpectedSignals: &want},
		},
		ExpectedFinal: map[string]float64{"energy_protocol": 0.99},
	}
	rep := Run(f, nil, nil)
	assert.False(t, rep.Passed())
	assert.Len(t, rep.Failures, 3)
}

func TestLoadFixtureErrors(t *testing.T) {
	_, err := LoadFixture(filepath.Join("testdata", "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, WriteFixture(&Fixture{UserID: "x"}, bad))
	f, err := LoadFixture(bad)
	require.NoError(t, err)
	assert.Equal(t, "x", f.UserID)
}

func TestExportRoundTrip(t *testing.T) {
	entries := []state.FeedbackEntry{
		{UserID: "alice", Text: "energy +2", SignalsJSON: `{"energy":2}`, Decision: "commit"},
		{UserID: "alice", Text: "hi", SignalsJSON: `{}`, Decision: "no_op"},
		{UserID: "bob", Text: "sleep -1", SignalsJSON: `{"sleep":-1}`, Decision: "commit"},
		{UserID: "alice", Text: "sleep -1", SignalsJSON: `{"sleep":-1}`, Decision: "commit"},
	}
	final := map[string]float64{"energy_protocol": 0.85, "sleep_protocol": 0.95}

	f, err := Export("alice", nil, final, entries, 0.05)
	require.NoError(t, err)
	require.Len(t, f.Turns, 3)
	assert.Equal(t, "energy +2", f.Turns[0].Text)
	assert.Equal(t, "no_op", f.Turns[1].ExpectedAction)

	path := filepath.Join(t.TempDir(), "alice.json")
	require.NoError(t, WriteFixture(f, path))
	loaded, err := LoadFixture(path)
	require.NoError(t, err)

	rep := Run(loaded, nil, nil)
	assert.Empty(t, rep.Failures)
}

func TestExportErrors(t *testing.T) {
	_, err := Export("alice", nil, nil, nil, 0)
	assert.Error(t, err)

	_, err = Export("alice", nil, nil, []state.FeedbackEntry{
		{UserID: "alice", Text: "x", SignalsJSON: `[1,2]`, Decision: "commit"},
	}, 0)
	assert.Error(t, err)
}

// #endregion fixture-tests
