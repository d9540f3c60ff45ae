// Package state persists per-user protocol weight maps behind a small
// key-value backend contract.
package state

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/campusfuel/healthos-engine/internal/catalog"
)

// #region backend
// Backend is the key-value contract a weight store needs: fetch the current
// record for a user and replace it. Put returns the id of the new record.
type Backend interface {
	Get(ctx context.Context, userID string) (Weights, bool, error)
	Put(ctx context.Context, userID string, w Weights, metricsJSON string) (string, error)
}
// #endregion backend

// #region store-struct
// Store loads and saves complete, bounded weight maps.
type Store struct {
	backend Backend
	catalog *catalog.Catalog
}

// NewStore wraps a backend. A nil catalog selects catalog.Default().
func NewStore(backend Backend, cat *catalog.Catalog) *Store {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Store{backend: backend, catalog: cat}
}

// Catalog returns the catalog the store validates against.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }
// #endregion store-struct

// #region load
// Load returns the user's weights, or a fresh copy of the baselines when the
// user has no record. Records written under an older catalog are completed
// from baselines and unknown protocols are dropped.
func (s *Store) Load(ctx context.Context, userID string) (Weights, error) {
	w, ok, err := s.backend.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return nil, fmt.Errorf("load %s: %w", userID, err)
		}
		return nil, fmt.Errorf("load %s: %w: %w", userID, ErrStorage, err)
	}
	if !ok {
		return Weights(s.catalog.Baselines()), nil
	}
	out := make(Weights, s.catalog.Len())
	for _, p := range s.catalog.Protocols() {
		v, present := w[p.ID]
		if !present {
			out[p.ID] = p.Baseline
			continue
		}
		if !catalog.InBounds(v) {
			return nil, fmt.Errorf("load %s: %w: %s = %v", userID, ErrCorrupt, p.ID, v)
		}
		out[p.ID] = v
	}
	return out, nil
}
// #endregion load

// #region save
// Save validates w and replaces the user's record.
func (s *Store) Save(ctx context.Context, userID string, w Weights) error {
	_, err := s.Commit(ctx, userID, w, "")
	return err
}

// Commit is Save with attached metrics; it returns the new version id.
func (s *Store) Commit(ctx context.Context, userID string, w Weights, metricsJSON string) (string, error) {
	if err := Validate(s.catalog, w); err != nil {
		return "", fmt.Errorf("save %s: %w", userID, err)
	}
	id, err := s.backend.Put(ctx, userID, w.Clone(), metricsJSON)
	if err != nil {
		return "", fmt.Errorf("save %s: %w: %w", userID, ErrStorage, err)
	}
	return id, nil
}
// #endregion save

// #region validate
// Validate reports whether w is complete for cat, names no unknown protocol,
// and holds only finite in-bound values.
func Validate(cat *catalog.Catalog, w Weights) error {
	if len(w) != cat.Len() {
		return fmt.Errorf("%w: %d entries, want %d", ErrInvalidWeights, len(w), cat.Len())
	}
	for id, v := range w {
		if _, ok := cat.Baseline(id); !ok {
			return fmt.Errorf("%w: unknown protocol %q", ErrInvalidWeights, id)
		}
		if math.IsInf(v, 0) || !catalog.InBounds(v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidWeights, id, v)
		}
	}
	return nil
}
// #endregion validate
