// Package store defines the issue data model for braid and the
// deterministic replay that folds an event log into queryable state.
// Persistence of the log itself lives in internal/journal.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the current state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// ValidStatuses is the set of statuses users can set directly.
var ValidStatuses = []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusClosed}

// ParseStatus converts a string to a Status value.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusOpen, nil
	case "in_progress", "in-progress":
		return StatusInProgress, nil
	case "blocked":
		return StatusBlocked, nil
	case "closed":
		return StatusClosed, nil
	default:
		return StatusOpen, fmt.Errorf("unknown status %q", s)
	}
}

// Priority represents the urgency of an issue (0=critical .. 4=backlog).
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityMedium   Priority = 2
	PriorityLow      Priority = 3
	PriorityBacklog  Priority = 4
)

// Display returns the priority in P0-P4 format for human-readable output.
func (p Priority) Display() string {
	return fmt.Sprintf("P%d", p)
}

// MarshalJSON writes priority as an integer.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}

// UnmarshalJSON reads priority from an integer or a legacy word-form string
// ("critical", "high", "medium", "low", "backlog") for backward compatibility
// with logs written before the int conversion.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Priority(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be int or string, got %s", string(data))
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts a string to a Priority value.
// Accepts numeric ("0"-"4"), P-format ("P0"-"P4"), or word forms
// ("critical", "high", "medium", "low", "backlog").
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "p0", "critical":
		return PriorityCritical, nil
	case "1", "p1", "high":
		return PriorityHigh, nil
	case "2", "p2", "medium", "":
		return PriorityMedium, nil
	case "3", "p3", "low":
		return PriorityLow, nil
	case "4", "p4", "backlog":
		return PriorityBacklog, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q", s)
	}
}

// IssueType represents the category of an issue.
type IssueType string

const (
	TypeTask    IssueType = "task"
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// ParseIssueType converts a string to an IssueType value.
func ParseIssueType(s string) (IssueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "task", "":
		return TypeTask, nil
	case "bug":
		return TypeBug, nil
	case "feature":
		return TypeFeature, nil
	case "epic":
		return TypeEpic, nil
	case "chore":
		return TypeChore, nil
	default:
		return TypeTask, fmt.Errorf("unknown type %q: must be one of task, bug, feature, epic, chore", s)
	}
}

// EdgeType represents the type of relationship between two issues.
type EdgeType string

const (
	EdgeBlocks         EdgeType = "blocks"
	EdgeDiscoveredFrom EdgeType = "discovered-from"
	EdgeRelated        EdgeType = "related"
)

// ValidEdgeTypes is the set of all valid edge types.
var ValidEdgeTypes = map[EdgeType]bool{
	EdgeBlocks:         true,
	EdgeDiscoveredFrom: true,
	EdgeRelated:        true,
}

// ParseEdgeType converts a string to an EdgeType value.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return EdgeBlocks, nil
	}
	if !ValidEdgeTypes[t] {
		return "", fmt.Errorf("unknown dependency type %q: must be one of blocks, discovered-from, related", s)
	}
	return t, nil
}

// Edge is a directed relation between two issues: the dependent waits on
// (or was discovered from, or relates to) the dependency.
type Edge struct {
	DependentID  string   `json:"dependent_id"`
	DependencyID string   `json:"dependency_id"`
	Type         EdgeType `json:"type"`
}

// Comment represents a comment on an issue.
type Comment struct {
	ID        int       `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue represents a unit of trackable work.
//
// Dependencies and Dependents are derived views populated from the edge set
// during replay; they are never written to the log on the Issue record
// itself (edges travel as their own events).
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Type        IssueType `json:"type"`

	// ParentID points at the parent for hierarchical decomposition.
	// Immutable after creation; the ID itself carries the hierarchy
	// (e.g. "br-a3f8.2" is the second child of "br-a3f8").
	ParentID string `json:"parent_id,omitempty"`

	Assignee    string   `json:"assignee,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	ExternalRef string   `json:"external_ref,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`

	Comments []Comment `json:"comments,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	CloseReason string `json:"close_reason,omitempty"`

	// Derived edge views (see package comment).
	Dependencies []Edge `json:"dependencies,omitempty"`
	Dependents   []Edge `json:"dependents,omitempty"`
}

// HasLabel reports whether the issue carries the given label.
func (issue *Issue) HasLabel(label string) bool {
	for _, l := range issue.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// DependencyIDs returns the dependency-side IDs, optionally filtered by edge type.
func (issue *Issue) DependencyIDs(filterType *EdgeType) []string {
	var ids []string
	for _, e := range issue.Dependencies {
		if filterType == nil || e.Type == *filterType {
			ids = append(ids, e.DependencyID)
		}
	}
	return ids
}

// DependentIDs returns the dependent-side IDs, optionally filtered by edge type.
func (issue *Issue) DependentIDs(filterType *EdgeType) []string {
	var ids []string
	for _, e := range issue.Dependents {
		if filterType == nil || e.Type == *filterType {
			ids = append(ids, e.DependentID)
		}
	}
	return ids
}

// ListFilter specifies criteria for listing issues.
type ListFilter struct {
	Status    *Status    // nil means any
	Priority  *Priority  // nil means any
	Type      *IssueType // nil means any
	Assignee  *string    // nil means any
	LabelsAll []string   // issues must have all these labels
	LabelsAny []string   // issues must have at least one of these labels
	TitleText string     // case-insensitive substring match on title
}

// Matches reports whether the issue satisfies every filter criterion.
// A nil filter matches everything.
func (f *ListFilter) Matches(issue *Issue) bool {
	if f == nil {
		return true
	}
	if f.Status != nil && issue.Status != *f.Status {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	if f.Type != nil && issue.Type != *f.Type {
		return false
	}
	if f.Assignee != nil && issue.Assignee != *f.Assignee {
		return false
	}
	for _, label := range f.LabelsAll {
		if !issue.HasLabel(label) {
			return false
		}
	}
	if len(f.LabelsAny) > 0 {
		found := false
		for _, label := range f.LabelsAny {
			if issue.HasLabel(label) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TitleText != "" && !strings.Contains(strings.ToLower(issue.Title), strings.ToLower(f.TitleText)) {
		return false
	}
	return true
}
