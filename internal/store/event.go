package store

import (
	"fmt"
	"time"
)

// EventKind identifies what a log event does to an issue.
type EventKind string

const (
	EventCreate      EventKind = "create"
	EventUpdate      EventKind = "update"
	EventClose       EventKind = "close"
	EventReopen      EventKind = "reopen"
	EventDelete      EventKind = "delete"
	EventDepAdd      EventKind = "dep-add"
	EventDepRemove   EventKind = "dep-remove"
	EventLabelAdd    EventKind = "label-add"
	EventLabelRemove EventKind = "label-remove"
	EventComment     EventKind = "comment"

	// EventRename records a deterministic id rename performed by the
	// merge reconciler after an id collision. Kept in the log for audit.
	EventRename EventKind = "rename"

	// EventSummary is a compacted record standing in for the full event
	// history of an old closed issue. Carries a final snapshot.
	EventSummary EventKind = "summary"
)

// Event is one line of the append-only issue log.
//
// (IssueID, Seq, Actor) is the unique event key used by the merge
// reconciler to union divergent logs; UID is a globally unique identifier
// carried for audit. Seq is a per-issue monotonic sequence local to the
// replica that produced the event.
type Event struct {
	UID     string    `json:"uid"`
	IssueID string    `json:"issue_id"`
	Seq     int       `json:"seq"`
	Actor   string    `json:"actor"`
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`

	// Payload fields; which one is set depends on Kind.
	Issue   *Issue         `json:"issue,omitempty"`   // create, summary
	Fields  map[string]any `json:"fields,omitempty"`  // update (sparse patch)
	Edge    *Edge          `json:"edge,omitempty"`    // dep-add, dep-remove
	Label   string         `json:"label,omitempty"`   // label-add, label-remove
	Comment *Comment       `json:"comment,omitempty"` // comment
	NewID   string         `json:"new_id,omitempty"`  // rename
	Reason  string         `json:"reason,omitempty"`  // close, delete
}

// Key returns the unique event key (issue id + sequence number + actor).
func (e *Event) Key() string {
	return fmt.Sprintf("%s#%d@%s", e.IssueID, e.Seq, e.Actor)
}

// UpdatableFields lists the field names an update patch may carry.
// ParentID is deliberately absent: it is immutable after creation.
var UpdatableFields = map[string]bool{
	"title":        true,
	"description":  true,
	"status":       true,
	"priority":     true,
	"type":         true,
	"assignee":     true,
	"external_ref": true,
}
