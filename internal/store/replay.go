package store

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// State is the in-memory result of replaying an event log: every live
// issue plus the full edge set. It is an explicit value handed to graph
// and query operations, never ambient global state.
type State struct {
	Issues map[string]*Issue
	Edges  []Edge

	// maxSeq tracks the highest sequence number seen per issue, so new
	// local events extend the per-issue causal order.
	maxSeq map[string]int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Issues: make(map[string]*Issue),
		maxSeq: make(map[string]int),
	}
}

// NextSeq returns the next per-issue sequence number for a new local event.
func (s *State) NextSeq(issueID string) int {
	return s.maxSeq[issueID] + 1
}

// Get returns the issue with the given ID, or ErrNotFound.
func (s *State) Get(id string) (*Issue, error) {
	issue, ok := s.Issues[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return issue, nil
}

// HasEdge reports whether the exact edge (both endpoints and type) exists.
func (s *State) HasEdge(e Edge) bool {
	for _, have := range s.Edges {
		if have == e {
			return true
		}
	}
	return false
}

// List returns all issues matching the filter, sorted by ID for stable,
// diffable output. A nil filter returns every issue.
func (s *State) List(filter *ListFilter) []*Issue {
	var issues []*Issue
	for _, issue := range s.Issues {
		if filter.Matches(issue) {
			issues = append(issues, issue)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues
}

// SortEvents orders events deterministically: per-issue causal order is
// timestamp, ties broken by the local sequence number, then actor, then
// UID. The same total order is used across issues so replay is
// reproducible regardless of how logs were concatenated.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.IssueID != b.IssueID {
			return a.IssueID < b.IssueID
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if a.Actor != b.Actor {
			return a.Actor < b.Actor
		}
		return a.UID < b.UID
	})
}

// Replay folds events into a fresh State. It is deterministic and
// idempotent: the same event set always produces the same state, and
// independent events commute because of the total order applied first.
// Problems that can be recovered locally (events against missing issues,
// duplicate creates that escaped merge renaming, unknown patch fields)
// are reported as warnings, not errors.
func Replay(events []Event) (*State, []Warning) {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	SortEvents(sorted)

	state := NewState()
	var warnings []Warning

	for i := range sorted {
		if w := state.apply(&sorted[i]); w != nil {
			warnings = append(warnings, *w)
		}
	}

	state.finalize()
	return state, warnings
}

// apply mutates the state with one event. Returns a warning for
// recoverable problems, nil otherwise.
func (s *State) apply(e *Event) *Warning {
	if e.Seq > s.maxSeq[e.IssueID] {
		s.maxSeq[e.IssueID] = e.Seq
	}

	switch e.Kind {
	case EventCreate, EventSummary:
		if e.Issue == nil {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("%s event %s has no issue payload", e.Kind, e.Key())}
		}
		if _, exists := s.Issues[e.IssueID]; exists {
			// Two replicas created the same id independently and the
			// reconciler has not renamed one yet. Keep the earlier
			// event (we apply in timestamp order) and surface it.
			return &Warning{Kind: WarnMergeConflict, Message: fmt.Sprintf("duplicate create for %s by %s; keeping earlier issue", e.IssueID, e.Actor)}
		}
		issue := *e.Issue
		issue.ID = e.IssueID
		if issue.Status == "" {
			issue.Status = StatusOpen
		}
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = e.Time
		}
		issue.UpdatedAt = e.Time
		if issue.CreatedBy == "" {
			issue.CreatedBy = e.Actor
		}
		// Snapshot edges from summary records re-enter the edge set;
		// live edges always travel as dep events.
		for _, edge := range issue.Dependencies {
			if !s.HasEdge(edge) {
				s.Edges = append(s.Edges, edge)
			}
		}
		for _, edge := range issue.Dependents {
			if !s.HasEdge(edge) {
				s.Edges = append(s.Edges, edge)
			}
		}
		issue.Dependencies = nil
		issue.Dependents = nil
		s.Issues[e.IssueID] = &issue
		return nil

	case EventUpdate:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("update for unknown issue %s (%s)", e.IssueID, e.Key())}
		}
		var warn *Warning
		for field, value := range e.Fields {
			if err := applyField(issue, field, value); err != nil {
				warn = &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("update %s: %v", e.Key(), err)}
			}
		}
		issue.UpdatedAt = e.Time
		return warn

	case EventClose:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("close for unknown issue %s", e.IssueID)}
		}
		issue.Status = StatusClosed
		t := e.Time
		issue.ClosedAt = &t
		issue.CloseReason = e.Reason
		issue.UpdatedAt = e.Time
		return nil

	case EventReopen:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("reopen for unknown issue %s", e.IssueID)}
		}
		issue.Status = StatusOpen
		issue.ClosedAt = nil
		issue.CloseReason = ""
		issue.UpdatedAt = e.Time
		return nil

	case EventDelete:
		if _, ok := s.Issues[e.IssueID]; !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("delete for unknown issue %s", e.IssueID)}
		}
		delete(s.Issues, e.IssueID)
		s.removeEdgesTouching(e.IssueID)
		return nil

	case EventDepAdd:
		if e.Edge == nil {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("dep-add %s has no edge payload", e.Key())}
		}
		if !s.HasEdge(*e.Edge) {
			s.Edges = append(s.Edges, *e.Edge)
		}
		s.touch(e.Edge.DependentID, e.Time)
		s.touch(e.Edge.DependencyID, e.Time)
		return nil

	case EventDepRemove:
		if e.Edge == nil {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("dep-remove %s has no edge payload", e.Key())}
		}
		// Idempotent: removing an absent edge is not an error.
		filtered := s.Edges[:0]
		for _, edge := range s.Edges {
			if !(edge.DependentID == e.Edge.DependentID && edge.DependencyID == e.Edge.DependencyID) {
				filtered = append(filtered, edge)
			}
		}
		s.Edges = filtered
		s.touch(e.Edge.DependentID, e.Time)
		s.touch(e.Edge.DependencyID, e.Time)
		return nil

	case EventLabelAdd:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("label-add for unknown issue %s", e.IssueID)}
		}
		if !issue.HasLabel(e.Label) {
			issue.Labels = append(issue.Labels, e.Label)
			sort.Strings(issue.Labels)
		}
		issue.UpdatedAt = e.Time
		return nil

	case EventLabelRemove:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("label-remove for unknown issue %s", e.IssueID)}
		}
		filtered := issue.Labels[:0]
		for _, l := range issue.Labels {
			if l != e.Label {
				filtered = append(filtered, l)
			}
		}
		issue.Labels = filtered
		issue.UpdatedAt = e.Time
		return nil

	case EventComment:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("comment for unknown issue %s", e.IssueID)}
		}
		if e.Comment == nil {
			return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("comment %s has no payload", e.Key())}
		}
		c := *e.Comment
		if c.ID == 0 {
			maxID := 0
			for _, have := range issue.Comments {
				if have.ID > maxID {
					maxID = have.ID
				}
			}
			c.ID = maxID + 1
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = e.Time
		}
		issue.Comments = append(issue.Comments, c)
		issue.UpdatedAt = e.Time
		return nil

	case EventRename:
		issue, ok := s.Issues[e.IssueID]
		if !ok {
			// The issue was deleted after the rename was written;
			// nothing left to move.
			return nil
		}
		delete(s.Issues, e.IssueID)
		issue.ID = e.NewID
		if issue.ExternalRef == "" {
			issue.ExternalRef = "renamed-from:" + e.IssueID
		}
		issue.UpdatedAt = e.Time
		s.Issues[e.NewID] = issue
		for i := range s.Edges {
			if s.Edges[i].DependentID == e.IssueID {
				s.Edges[i].DependentID = e.NewID
			}
			if s.Edges[i].DependencyID == e.IssueID {
				s.Edges[i].DependencyID = e.NewID
			}
		}
		return nil

	default:
		return &Warning{Kind: WarnCorruptRecord, Message: fmt.Sprintf("unknown event kind %q (%s)", e.Kind, e.Key())}
	}
}

// touch bumps UpdatedAt on an issue if it exists.
func (s *State) touch(id string, t time.Time) {
	if issue, ok := s.Issues[id]; ok {
		issue.UpdatedAt = t
	}
}

func (s *State) removeEdgesTouching(id string) {
	filtered := s.Edges[:0]
	for _, edge := range s.Edges {
		if edge.DependentID != id && edge.DependencyID != id {
			filtered = append(filtered, edge)
		}
	}
	s.Edges = filtered
}

// finalize sorts the edge set and rebuilds the derived per-issue
// Dependencies/Dependents views.
func (s *State) finalize() {
	sort.Slice(s.Edges, func(i, j int) bool {
		a, b := s.Edges[i], s.Edges[j]
		if a.DependentID != b.DependentID {
			return a.DependentID < b.DependentID
		}
		if a.DependencyID != b.DependencyID {
			return a.DependencyID < b.DependencyID
		}
		return a.Type < b.Type
	})

	for _, issue := range s.Issues {
		issue.Dependencies = nil
		issue.Dependents = nil
	}
	for _, edge := range s.Edges {
		if issue, ok := s.Issues[edge.DependentID]; ok {
			issue.Dependencies = append(issue.Dependencies, edge)
		}
		if issue, ok := s.Issues[edge.DependencyID]; ok {
			issue.Dependents = append(issue.Dependents, edge)
		}
	}
}

// ValidateFields applies an update patch to a copy of the issue and
// reports the first invalid field. Writers call this before appending
// so a bad patch fails the command instead of warning on every later
// replay.
func ValidateFields(issue *Issue, fields map[string]any) error {
	scratch := *issue
	for field, value := range fields {
		if err := applyField(&scratch, field, value); err != nil {
			return err
		}
	}
	return nil
}

// applyField sets one field of an issue from an update patch value.
// JSON decoding hands numbers back as float64, so numeric fields accept
// both forms.
func applyField(issue *Issue, field string, value any) error {
	if !UpdatableFields[field] {
		return fmt.Errorf("unknown field %q", field)
	}

	str := func() (string, error) {
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("field %q: expected string, got %T", field, value)
		}
		return s, nil
	}

	switch field {
	case "title":
		s, err := str()
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("title cannot be empty")
		}
		issue.Title = s
	case "description":
		s, err := str()
		if err != nil {
			return err
		}
		issue.Description = s
	case "status":
		s, err := str()
		if err != nil {
			return err
		}
		status, err := ParseStatus(s)
		if err != nil {
			return err
		}
		issue.Status = status
		if status != StatusClosed {
			issue.ClosedAt = nil
		}
	case "priority":
		switch v := value.(type) {
		case float64:
			issue.Priority = Priority(int(v))
		case int:
			issue.Priority = Priority(v)
		case string:
			p, err := ParsePriority(v)
			if err != nil {
				return err
			}
			issue.Priority = p
		default:
			return fmt.Errorf("field priority: expected number or string, got %T", value)
		}
	case "type":
		s, err := str()
		if err != nil {
			return err
		}
		t, err := ParseIssueType(s)
		if err != nil {
			return err
		}
		issue.Type = t
	case "assignee":
		s, err := str()
		if err != nil {
			return err
		}
		issue.Assignee = s
	case "external_ref":
		s, err := str()
		if err != nil {
			return err
		}
		issue.ExternalRef = s
	}
	return nil
}
