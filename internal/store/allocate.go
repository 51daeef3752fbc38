package store

import (
	"errors"
	"fmt"

	"braid/internal/idgen"
)

// MaxIDRetries is the maximum number of random ID generation attempts
// before giving up. AdaptiveLength keeps per-attempt collision
// probability at or below 25%, so 20 consecutive collisions is ~1e-12.
const MaxIDRetries = 20

// AllocateID produces an ID for a new issue against the current state.
//
// With no parent, it returns a prefix + random base36 token whose length
// adapts to the number of existing issues. With a parent, it returns
// parentID.nextIndex; the index is the successor of the highest child
// index currently in the state, so deleted children are never reused.
// Concurrent replicas MAY allocate the same child index independently;
// the merge reconciler detects and renames on merge.
//
// Fails with ErrInvalidParent when the parent does not exist or nesting
// would exceed maxDepth.
func (s *State) AllocateID(prefix, parentID string, maxDepth int) (string, error) {
	if parentID != "" {
		if _, ok := s.Issues[parentID]; !ok {
			return "", fmt.Errorf("parent %s does not exist: %w", parentID, ErrInvalidParent)
		}
		if err := idgen.CheckDepth(parentID, maxDepth); err != nil {
			if errors.Is(err, idgen.ErrMaxDepthExceeded) {
				return "", fmt.Errorf("%v: %w", err, ErrInvalidParent)
			}
			return "", err
		}
		// maxSeq remembers every id the log has ever carried, so indexes
		// of deleted children are not handed out again.
		next := 1
		for id := range s.maxSeq {
			if p, index, ok := idgen.SplitChild(id); ok && p == parentID && index >= next {
				next = index + 1
			}
		}
		return idgen.Child(parentID, next), nil
	}

	length := idgen.AdaptiveLength(len(s.Issues))
	for attempt := 0; attempt < MaxIDRetries; attempt++ {
		id, err := idgen.Random(prefix, length)
		if err != nil {
			return "", err
		}
		if _, seen := s.maxSeq[id]; !seen {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique ID: %d retries exhausted at length %d", MaxIDRetries, length)
}
