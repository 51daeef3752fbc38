package store

import "errors"

// Sentinel errors returned by store, graph, and journal operations.
// Mutating operations return these synchronously and never partially apply.
var (
	// ErrNotFound means a referenced issue ID does not exist.
	ErrNotFound = errors.New("issue not found")

	// ErrAlreadyExists means an issue with the given ID already exists.
	ErrAlreadyExists = errors.New("issue already exists")

	// ErrInvalidParent means a parent reference is missing or nesting
	// would exceed the maximum hierarchy depth.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrInvalidEdge means an edge violates a construction precondition
	// (self-edge, unknown type, or missing endpoint).
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrCycle means adding a blocks-type edge would make the blocks
	// subgraph cyclic.
	ErrCycle = errors.New("dependency would create a cycle")

	// ErrLockTimeout means another writer held the append lock beyond
	// the bound. Retryable.
	ErrLockTimeout = errors.New("could not acquire log lock")
)

// WarningKind classifies non-fatal problems surfaced alongside results.
type WarningKind string

const (
	// WarnCorruptRecord marks a log line that failed to parse and was
	// skipped during replay.
	WarnCorruptRecord WarningKind = "corrupt_record"

	// WarnMergeConflict marks an id collision or structural cycle
	// introduced by reconciliation. Always surfaced, never silently
	// resolved by discarding data.
	WarnMergeConflict WarningKind = "merge_conflict"
)

// Warning is a recoverable problem reported with an otherwise successful
// result (rebuild, merge, doctor).
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return string(w.Kind) + ": " + w.Message
}
