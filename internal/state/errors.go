package state

import "errors"

var (
	// ErrStorage reports a failure of the backing store.
	ErrStorage = errors.New("weight storage failure")
	// ErrCorrupt reports a persisted record that cannot be used as a weight map.
	ErrCorrupt = errors.New("corrupt weight record")
	// ErrInvalidWeights reports a map rejected before saving.
	ErrInvalidWeights = errors.New("invalid weight map")
	// ErrVersionNotFound reports an unknown version id.
	ErrVersionNotFound = errors.New("version not found")
)
