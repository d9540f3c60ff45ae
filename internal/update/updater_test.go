package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/campusfuel/healthos-engine/internal/catalog"
	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memJournal struct {
	mu      sync.Mutex
	entries []state.FeedbackEntry
}

func (j *memJournal) Record(_ context.Context, e state.FeedbackEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

type flakyBackend struct {
	*state.MemoryBackend
	failPut bool
}

func (f *flakyBackend) Put(ctx context.Context, userID string, w state.Weights, m string) (string, error) {
	if f.failPut {
		return "", errors.New("write refused")
	}
	return f.MemoryBackend.Put(ctx, userID, w, m)
}

func newTestUpdater(opts ...Option) (*Updater, *state.Store) {
	store := state.NewStore(state.NewMemoryBackend(), nil)
	return NewUpdater(store, opts...), store
}

func TestUpdatePersistsAndReturnsWeights(t *testing.T) {
	ctx := context.Background()
	j := &memJournal{}
	u, store := newTestUpdater(WithJournal(j))

	got, err := u.Update(ctx, "alice", signals.NewSet(signals.Signal{Name: "energy", Strength: 2}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !approx(got["energy_protocol"], 0.85) {
		t.Fatalf("energy_protocol = %v", got["energy_protocol"])
	}
	loaded, _ := store.Load(ctx, "alice")
	if !approx(loaded["energy_protocol"], 0.85) {
		t.Fatalf("not persisted: %v", loaded["energy_protocol"])
	}
	if len(j.entries) != 1 || j.entries[0].Decision != "commit" || j.entries[0].VersionID == "" {
		t.Fatalf("unexpected journal: %+v", j.entries)
	}
}

func TestUpdateEmptySetSkipsPersist(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: state.NewMemoryBackend(), failPut: true}
	j := &memJournal{}
	u := NewUpdater(state.NewStore(backend, nil), WithJournal(j))

	got, err := u.Update(ctx, "alice", signals.Set{})
	if err != nil {
		t.Fatalf("empty update should not touch storage: %v", err)
	}
	if !approx(got["sleep_protocol"], 0.90) {
		t.Fatalf("expected baseline, got %v", got["sleep_protocol"])
	}
	if j.entries[0].Decision != "no_op" {
		t.Fatalf("expected no_op journal entry, got %+v", j.entries[0])
	}
}

func TestUpdateSaveErrorCarriesWeights(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: state.NewMemoryBackend(), failPut: true}
	u := NewUpdater(state.NewStore(backend, nil))

	_, err := u.Update(ctx, "alice", signals.NewSet(signals.Signal{Name: "sleep", Strength: -1}))
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SaveError, got %v", err)
	}
	if !errors.Is(err, state.ErrStorage) {
		t.Fatalf("expected ErrStorage in chain, got %v", err)
	}
	if !approx(se.Weights["sleep_protocol"], 0.95) {
		t.Fatalf("unsaved weights missing: %v", se.Weights["sleep_protocol"])
	}
}

func TestUpdateWithRateValidates(t *testing.T) {
	u, _ := newTestUpdater()
	set := signals.NewSet(signals.Signal{Name: "sleep", Strength: -1})
	for _, lr := range []float64{-0.1, 1.5} {
		if _, err := u.UpdateWithRate(context.Background(), "alice", set, lr); !errors.Is(err, ErrLearningRate) {
			t.Errorf("lr %v: expected ErrLearningRate, got %v", lr, err)
		}
	}
	got, err := u.UpdateWithRate(context.Background(), "alice", set, 0.1)
	if err != nil {
		t.Fatalf("UpdateWithRate: %v", err)
	}
	if !approx(got["sleep_protocol"], 1.00) {
		t.Fatalf("sleep_protocol = %v, want 1.00", got["sleep_protocol"])
	}
}

func TestUpdateGateVeto(t *testing.T) {
	// A step cap below one boost forces the gate to reject.
	u, store := newTestUpdater(WithGate(gate.NewGate(gate.Config{MaxStep: 0.01}, nil)))
	ctx := context.Background()

	got, err := u.Update(ctx, "alice", signals.NewSet(signals.Signal{Name: "sleep", Strength: -1}))
	if !errors.Is(err, gate.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if !approx(got["sleep_protocol"], 0.90) {
		t.Fatalf("expected unchanged weights, got %v", got["sleep_protocol"])
	}
	loaded, _ := store.Load(ctx, "alice")
	if !approx(loaded["sleep_protocol"], 0.90) {
		t.Fatal("vetoed weights were persisted")
	}
}

func TestConcurrentSameUserNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	u, store := newTestUpdater(WithConfig(Config{LearningRate: 0.01}))
	set := signals.NewSet(signals.Signal{Name: "sleep", Strength: -1})

	// 0.90 + 8 * 0.01 = 0.98, below the ceiling so every step is visible.
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := u.Update(ctx, "alice", set); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Load(ctx, "alice")
	if !approx(got["sleep_protocol"], 0.98) {
		t.Fatalf("lost update: sleep_protocol = %v, want 0.98", got["sleep_protocol"])
	}
	if u.locks.size() != 0 {
		t.Fatalf("lock table not drained: %d", u.locks.size())
	}
}

func TestConcurrentUsersIndependent(t *testing.T) {
	ctx := context.Background()
	u, store := newTestUpdater()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u.Update(ctx, fmt.Sprintf("user-%d", i), signals.NewSet(signals.Signal{Name: "energy", Strength: 2}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		w, _ := store.Load(ctx, fmt.Sprintf("user-%d", i))
		if !approx(w["energy_protocol"], 0.85) {
			t.Fatalf("user-%d energy_protocol = %v", i, w["energy_protocol"])
		}
	}
	if base, _ := catalog.Default().Baseline("energy_protocol"); base != 0.80 {
		t.Fatalf("catalog baseline changed: %v", base)
	}
}
