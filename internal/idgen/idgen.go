// Package idgen implements ID generation and parsing for braid issue IDs.
//
// Top-level IDs are a namespace prefix plus random base36 characters
// ("br-a3f8"), sized adaptively so concurrent offline replicas are
// unlikely to collide. Hierarchical child IDs use dot notation with a
// sequential index per parent: "br-a3f8.1", "br-a3f8.1.2".
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	// MinLength is the minimum number of base36 characters in a generated ID.
	MinLength = 4
	// MaxLength is the maximum number of base36 characters in a generated ID.
	MaxLength = 8
	// MaxCollisionProbability is the threshold above which the adaptive
	// length is increased. Based on the birthday paradox formula.
	MaxCollisionProbability = 0.25
)

// DefaultMaxDepth is the maximum number of dot-notation levels allowed in
// hierarchical child IDs (e.g. br-a3f8.1.2.3 = depth 3).
const DefaultMaxDepth = 3

// Random generates a random ID with the given prefix and length, using
// crypto/rand for the base36 suffix. Returns an error if length is
// outside [MinLength, MaxLength].
func Random(prefix string, length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("idgen: length %d out of range [%d, %d]", length, MinLength, MaxLength)
	}

	mod := new(big.Int).Exp(big.NewInt(36), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, mod)
	if err != nil {
		return "", fmt.Errorf("idgen: crypto/rand: %w", err)
	}

	return prefix + pad36(n, length), nil
}

// Deterministic derives an ID from issue content rather than randomness,
// so two replicas repairing the same collision arrive at the same
// replacement ID. The reconciler uses this when renaming the later
// participant of an id collision.
func Deterministic(prefix, title, actor string, createdAt time.Time, nonce, length int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", title, actor, createdAt.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))

	// ceil(length * 5 / 8) bytes gives enough entropy for `length`
	// base36 digits (~5.17 bits each).
	numBytes := (length*5 + 7) / 8

	n := new(big.Int).SetBytes(hash[:numBytes])
	mod := new(big.Int).Exp(big.NewInt(36), big.NewInt(int64(length)), nil)
	n.Mod(n, mod)

	return prefix + pad36(n, length)
}

// pad36 encodes n as base36, left-padded with zeros to length characters.
func pad36(n *big.Int, length int) string {
	encoded := n.Text(36)
	for len(encoded) < length {
		encoded = "0" + encoded
	}
	return encoded
}

// AdaptiveLength calculates the minimum ID length needed for the given
// number of existing issues, using the birthday paradox collision formula
//
//	P(collision) ≈ 1 - e^(-n²/2N)
//
// where n = existingCount and N = 36^length. Starting from MinLength, the
// length is incremented until the probability falls below
// MaxCollisionProbability, up to MaxLength.
func AdaptiveLength(existingCount int) int {
	for length := MinLength; length <= MaxLength; length++ {
		namespace := math.Pow(36, float64(length))
		n := float64(existingCount)
		probability := 1 - math.Exp(-(n*n)/(2*namespace))
		if probability < MaxCollisionProbability {
			return length
		}
	}
	return MaxLength
}

// NormalizePrefix ensures a namespace prefix ends with exactly one dash.
func NormalizePrefix(prefix string) string {
	return strings.TrimRight(prefix, "-") + "-"
}

// IsHierarchical reports whether id is a hierarchical child ID: it
// contains a dot and the suffix after the last dot is purely numeric
// ("br-a3f8.1" is hierarchical, "my.project-abc" is not).
func IsHierarchical(id string) bool {
	dot := strings.LastIndex(id, ".")
	if dot < 0 || dot == len(id)-1 {
		return false
	}
	for _, r := range id[dot+1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Depth returns the nesting depth of an ID by counting dots. A root ID
// like "br-a3f8" has depth 0; "br-a3f8.1" has depth 1.
func Depth(id string) int {
	return strings.Count(id, ".")
}

// Child returns the composite child ID for a parent and child index.
func Child(parentID string, index int) string {
	return fmt.Sprintf("%s.%d", parentID, index)
}

// SplitChild splits a hierarchical ID into its immediate parent and child
// index. Returns ("", 0, false) if the ID is not hierarchical.
func SplitChild(id string) (parentID string, index int, ok bool) {
	if !IsHierarchical(id) {
		return "", 0, false
	}
	dot := strings.LastIndex(id, ".")
	index, _ = strconv.Atoi(id[dot+1:])
	return id[:dot], index, true
}

// Root returns the root portion of a (possibly hierarchical) ID:
// everything before the first dot, or the ID unchanged.
func Root(id string) string {
	if dot := strings.Index(id, "."); dot >= 0 {
		return id[:dot]
	}
	return id
}

// ErrMaxDepthExceeded is returned when an operation would exceed the
// maximum hierarchy depth for child IDs.
var ErrMaxDepthExceeded = errors.New("maximum hierarchy depth exceeded")

// CheckDepth verifies that adding a child under parentID stays within
// maxDepth. With maxDepth=3, a parent "br-x.1.2.3" (depth 3) is rejected
// because a child would be at depth 4.
func CheckDepth(parentID string, maxDepth int) error {
	depth := Depth(parentID)
	if depth >= maxDepth {
		return fmt.Errorf("cannot add child to %s (depth %d): maximum hierarchy depth is %d: %w",
			parentID, depth, maxDepth, ErrMaxDepthExceeded)
	}
	return nil
}
