package cmd

import (
	"time"

	"braid/internal/store"
)

// IssueJSON is the JSON output format used by create, show, and list.
type IssueJSON struct {
	Assignee        string        `json:"assignee,omitempty"`
	CloseReason     string        `json:"close_reason,omitempty"`
	ClosedAt        string        `json:"closed_at,omitempty"`
	Comments        []CommentJSON `json:"comments,omitempty"`
	CreatedAt       string        `json:"created_at"`
	CreatedBy       string        `json:"created_by,omitempty"`
	Dependencies    []DepJSON     `json:"dependencies,omitempty"`
	DependencyCount int           `json:"dependency_count"`
	Dependents      []DepJSON     `json:"dependents,omitempty"`
	DependentCount  int           `json:"dependent_count"`
	Description     string        `json:"description,omitempty"`
	ExternalRef     string        `json:"external_ref,omitempty"`
	ID              string        `json:"id"`
	IssueType       string        `json:"issue_type"`
	Labels          []string      `json:"labels,omitempty"`
	Parent          string        `json:"parent,omitempty"`
	Priority        int           `json:"priority"`
	Status          string        `json:"status"`
	Title           string        `json:"title"`
	UpdatedAt       string        `json:"updated_at"`
}

// DepJSON is one edge in JSON output.
type DepJSON struct {
	DependsOnID string `json:"depends_on_id"`
	IssueID     string `json:"issue_id"`
	Type        string `json:"type"`
}

// CommentJSON is the JSON output format for comments.
type CommentJSON struct {
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	ID        int    `json:"id"`
	IssueID   string `json:"issue_id"`
	Text      string `json:"text"`
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.999999999-07:00")
}

// ToIssueJSON converts a store.Issue to its JSON output form. When
// withDetail is false the edge and comment arrays are omitted, leaving
// only the counts (used by list).
func ToIssueJSON(issue *store.Issue, withDetail bool) IssueJSON {
	out := IssueJSON{
		Assignee:        issue.Assignee,
		CreatedAt:       formatTime(issue.CreatedAt),
		CreatedBy:       issue.CreatedBy,
		DependencyCount: len(issue.Dependencies),
		DependentCount:  len(issue.Dependents),
		Description:     issue.Description,
		ExternalRef:     issue.ExternalRef,
		ID:              issue.ID,
		IssueType:       string(issue.Type),
		Labels:          issue.Labels,
		Parent:          issue.ParentID,
		Priority:        int(issue.Priority),
		Status:          string(issue.Status),
		Title:           issue.Title,
		UpdatedAt:       formatTime(issue.UpdatedAt),
	}
	if issue.CloseReason != "" {
		out.CloseReason = issue.CloseReason
	}
	if issue.ClosedAt != nil {
		out.ClosedAt = formatTime(*issue.ClosedAt)
	}
	if !withDetail {
		return out
	}

	for _, e := range issue.Dependencies {
		out.Dependencies = append(out.Dependencies, DepJSON{
			DependsOnID: e.DependencyID,
			IssueID:     e.DependentID,
			Type:        string(e.Type),
		})
	}
	for _, e := range issue.Dependents {
		out.Dependents = append(out.Dependents, DepJSON{
			DependsOnID: e.DependencyID,
			IssueID:     e.DependentID,
			Type:        string(e.Type),
		})
	}
	for _, c := range issue.Comments {
		out.Comments = append(out.Comments, CommentJSON{
			Author:    c.Author,
			CreatedAt: formatTime(c.CreatedAt),
			ID:        c.ID,
			IssueID:   issue.ID,
			Text:      c.Text,
		})
	}
	return out
}
