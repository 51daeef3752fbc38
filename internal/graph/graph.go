// Package graph provides stateless structural queries over the issue
// edge set: cycle prevention, readiness computation, tree rendering, and
// whole-graph cycle scans. All functions take a *store.State and hold no
// state of their own.
package graph

import (
	"fmt"
	"sort"

	"braid/internal/store"
)

// CheckEdge validates an edge before it is appended to the log:
// both endpoints must exist, self-edges and unknown types are rejected as
// ErrInvalidEdge, and a blocks-type edge that would make the blocks
// subgraph cyclic is rejected as ErrCycle. The check has no side effects,
// so a rejected call leaves graph state untouched.
func CheckEdge(state *store.State, e store.Edge) error {
	if !store.ValidEdgeTypes[e.Type] {
		return fmt.Errorf("unknown edge type %q: %w", e.Type, store.ErrInvalidEdge)
	}
	if e.DependentID == e.DependencyID {
		return fmt.Errorf("%s cannot depend on itself: %w", e.DependentID, store.ErrInvalidEdge)
	}
	if _, ok := state.Issues[e.DependentID]; !ok {
		return fmt.Errorf("%s: %w", e.DependentID, store.ErrNotFound)
	}
	if _, ok := state.Issues[e.DependencyID]; !ok {
		return fmt.Errorf("%s: %w", e.DependencyID, store.ErrNotFound)
	}
	if e.Type == store.EdgeBlocks && reachable(state, e.DependencyID, e.DependentID) {
		return fmt.Errorf("%s -> %s: %w", e.DependentID, e.DependencyID, store.ErrCycle)
	}
	return nil
}

// reachable reports whether `to` can be reached from `from` by following
// blocks-type dependency edges.
func reachable(state *store.State, from, to string) bool {
	adj := blocksAdjacency(state)
	visited := make(map[string]bool)
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == to {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		queue = append(queue, adj[current]...)
	}
	return false
}

// blocksAdjacency maps each dependent to the issues it waits on via
// blocks-type edges.
func blocksAdjacency(state *store.State) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range state.Edges {
		if e.Type == store.EdgeBlocks {
			adj[e.DependentID] = append(adj[e.DependentID], e.DependencyID)
		}
	}
	return adj
}

// IsReady reports whether an issue can be worked on: it is not closed and
// no blocks-type dependency of it remains open. Dependencies that no
// longer exist (deleted, compacted away with their edges) do not block.
func IsReady(state *store.State, issue *store.Issue) bool {
	if issue.Status == store.StatusClosed {
		return false
	}
	blocks := store.EdgeBlocks
	for _, depID := range issue.DependencyIDs(&blocks) {
		dep, ok := state.Issues[depID]
		if ok && dep.Status != store.StatusClosed {
			return false
		}
	}
	return true
}

// ComputeReady returns all ready issues matching the filter, ordered by
// priority ascending then creation time ascending, with ID as the final
// tie-break so repeated calls are reproducible.
func ComputeReady(state *store.State, filter *store.ListFilter) []*store.Issue {
	var ready []*store.Issue
	for _, issue := range state.Issues {
		if !filter.Matches(issue) {
			continue
		}
		if IsReady(state, issue) {
			ready = append(ready, issue)
		}
	}
	sortByPriority(ready)
	return ready
}

// ComputeBlocked returns all non-closed issues with at least one open
// blocks-type dependency, in the same deterministic order as ComputeReady.
func ComputeBlocked(state *store.State, filter *store.ListFilter) []*store.Issue {
	var blocked []*store.Issue
	for _, issue := range state.Issues {
		if issue.Status == store.StatusClosed || !filter.Matches(issue) {
			continue
		}
		if !IsReady(state, issue) {
			blocked = append(blocked, issue)
		}
	}
	sortByPriority(blocked)
	return blocked
}

// OpenBlockers returns the ids of the open blocks-type dependencies of an
// issue, sorted.
func OpenBlockers(state *store.State, issue *store.Issue) []string {
	var blockers []string
	blocks := store.EdgeBlocks
	for _, depID := range issue.DependencyIDs(&blocks) {
		if dep, ok := state.Issues[depID]; ok && dep.Status != store.StatusClosed {
			blockers = append(blockers, depID)
		}
	}
	sort.Strings(blockers)
	return blockers
}

func sortByPriority(issues []*store.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Node is one entry in a rendered dependency tree.
type Node struct {
	Issue    *store.Issue
	EdgeType store.EdgeType // type of the edge that led here ("" at the root)
	Children []*Node        // hierarchy children and dependencies, in that order
	Repeat   bool           // true when this issue already appeared above (traversal stops here)
}

// Tree renders the transitive dependency and child structure below an
// issue. Only the blocks subgraph is guaranteed acyclic; related and
// discovered-from edges may cycle, so traversal tracks a visited set and
// marks repeats instead of recursing forever.
func Tree(state *store.State, id string) (*Node, error) {
	root, err := state.Get(id)
	if err != nil {
		return nil, err
	}
	visited := make(map[string]bool)
	return buildNode(state, root, "", visited), nil
}

func buildNode(state *store.State, issue *store.Issue, via store.EdgeType, visited map[string]bool) *Node {
	node := &Node{Issue: issue, EdgeType: via}
	if visited[issue.ID] {
		node.Repeat = true
		return node
	}
	visited[issue.ID] = true

	// Hierarchy children first, in id order.
	var childIDs []string
	for id, candidate := range state.Issues {
		if candidate.ParentID == issue.ID {
			childIDs = append(childIDs, id)
		}
	}
	sort.Strings(childIDs)
	for _, childID := range childIDs {
		node.Children = append(node.Children, buildNode(state, state.Issues[childID], "", visited))
	}

	// Then dependencies, already sorted by the state finalizer.
	for _, e := range issue.Dependencies {
		dep, ok := state.Issues[e.DependencyID]
		if !ok {
			continue
		}
		node.Children = append(node.Children, buildNode(state, dep, e.Type, visited))
	}
	return node
}

// DetectCycles scans the whole blocks subgraph and returns every cycle as
// a path of issue ids ending where it began. Used as an integrity check
// after merge, where two replicas may each have added a blocks edge that
// only together form a cycle.
func DetectCycles(state *store.State) [][]string {
	adj := blocksAdjacency(state)

	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	color := make(map[string]int)
	var cycles [][]string
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = inStack
		stack = append(stack, id)
		deps := append([]string(nil), adj[id]...)
		sort.Strings(deps)
		for _, next := range deps {
			switch color[next] {
			case unvisited:
				visit(next)
			case inStack:
				// Found a back edge; slice the cycle out of the stack.
				start := len(stack) - 1
				for start >= 0 && stack[start] != next {
					start--
				}
				cycle := append([]string(nil), stack[start:]...)
				cycle = append(cycle, next)
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = done
	}

	for _, id := range ids {
		if color[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}
