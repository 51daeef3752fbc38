// Package cache maintains a derived SQLite index of the append log so
// list and filter queries don't replay the whole log every time. The log
// is the source of truth; the cache is always rebuildable from it and
// carries the log's content hash so staleness is detected by comparison,
// not by timestamps.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"braid/internal/graph"
	"braid/internal/store"
)

// FileName is the cache database file inside the workspace directory.
const FileName = "cache.db"

// timeLayout is RFC 3339 with a fixed-width fractional second so the
// TEXT time columns sort chronologically. RFC3339Nano strips trailing
// zeros, which breaks lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	status       TEXT NOT NULL,
	priority     INTEGER NOT NULL,
	issue_type   TEXT NOT NULL,
	parent_id    TEXT NOT NULL DEFAULT '',
	assignee     TEXT NOT NULL DEFAULT '',
	labels       TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	closed_at    TEXT,
	ready        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS edges (
	dependent_id  TEXT NOT NULL,
	dependency_id TEXT NOT NULL,
	edge_type     TEXT NOT NULL,
	PRIMARY KEY (dependent_id, dependency_id, edge_type)
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_status   ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_parent   ON issues(parent_id);
CREATE INDEX IF NOT EXISTS idx_issues_assignee ON issues(assignee);
`

// Cache wraps the SQLite handle for one workspace.
type Cache struct {
	db *sqlx.DB
}

// Open opens or creates the cache database and applies the schema and
// WAL pragmas.
func Open(ctx context.Context, path string) (*Cache, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", pragma, err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Fresh reports whether the cache was built from a log with the given
// content hash. A missing hash row means the cache was never built.
func (c *Cache) Fresh(ctx context.Context, logHash string) (bool, error) {
	var stored string
	err := c.db.GetContext(ctx, &stored, `SELECT value FROM meta WHERE key = 'log_hash'`)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cache meta: %w", err)
	}
	return stored == logHash, nil
}

// Rebuild replaces the cache contents with a projection of the replayed
// state, in one transaction. Rebuilding from the same log is idempotent:
// the resulting rows are identical regardless of how stale the previous
// contents were.
func (c *Cache) Rebuild(ctx context.Context, state *store.State, logHash string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cache rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"issues", "edges", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	insertIssue := `INSERT INTO issues
		(id, title, status, priority, issue_type, parent_id, assignee, labels, created_at, updated_at, closed_at, ready)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, issue := range state.List(nil) {
		var closedAt any
		if issue.ClosedAt != nil {
			closedAt = issue.ClosedAt.UTC().Format(timeLayout)
		}
		ready := 0
		if graph.IsReady(state, issue) {
			ready = 1
		}
		_, err := tx.ExecContext(ctx, insertIssue,
			issue.ID, issue.Title, string(issue.Status), int(issue.Priority), string(issue.Type),
			issue.ParentID, issue.Assignee, strings.Join(issue.Labels, ","),
			issue.CreatedAt.UTC().Format(timeLayout),
			issue.UpdatedAt.UTC().Format(timeLayout),
			closedAt, ready)
		if err != nil {
			return fmt.Errorf("inserting issue %s: %w", issue.ID, err)
		}
	}

	insertEdge := `INSERT OR IGNORE INTO edges (dependent_id, dependency_id, edge_type) VALUES (?, ?, ?)`
	for _, e := range state.Edges {
		if _, err := tx.ExecContext(ctx, insertEdge, e.DependentID, e.DependencyID, string(e.Type)); err != nil {
			return fmt.Errorf("inserting edge %s -> %s: %w", e.DependentID, e.DependencyID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('log_hash', ?), ('built_at', ?)`,
		logHash, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("writing cache meta: %w", err)
	}
	return tx.Commit()
}

// Row is the flat projection of an issue held in the cache.
type Row struct {
	ID        string  `db:"id"`
	Title     string  `db:"title"`
	Status    string  `db:"status"`
	Priority  int     `db:"priority"`
	IssueType string  `db:"issue_type"`
	ParentID  string  `db:"parent_id"`
	Assignee  string  `db:"assignee"`
	Labels    string  `db:"labels"`
	CreatedAt string  `db:"created_at"`
	UpdatedAt string  `db:"updated_at"`
	ClosedAt  *string `db:"closed_at"`
	Ready     int     `db:"ready"`
}

// Query runs a filtered listing against the cache. Plain listings come
// back in id order, matching an uncached replay; ready and blocked
// listings are work queues and come back in priority order instead.
// Label filters are applied in Go: the label set is small and stored
// denormalized.
func (c *Cache) Query(ctx context.Context, filter *store.ListFilter, readyOnly, blockedOnly bool) ([]Row, error) {
	query := `SELECT * FROM issues WHERE 1=1`
	var args []any

	if filter != nil {
		if filter.Status != nil {
			query += ` AND status = ?`
			args = append(args, string(*filter.Status))
		}
		if filter.Priority != nil {
			query += ` AND priority = ?`
			args = append(args, int(*filter.Priority))
		}
		if filter.Type != nil {
			query += ` AND issue_type = ?`
			args = append(args, string(*filter.Type))
		}
		if filter.Assignee != nil {
			query += ` AND assignee = ?`
			args = append(args, *filter.Assignee)
		}
		if filter.TitleText != "" {
			query += ` AND title LIKE ?`
			args = append(args, "%"+filter.TitleText+"%")
		}
	}
	if readyOnly {
		query += ` AND ready = 1`
	}
	if blockedOnly {
		query += ` AND ready = 0 AND status != ?`
		args = append(args, string(store.StatusClosed))
	}
	if readyOnly || blockedOnly {
		query += ` ORDER BY priority ASC, created_at ASC, id ASC`
	} else {
		query += ` ORDER BY id ASC`
	}

	var rows []Row
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}

	if filter != nil && (len(filter.LabelsAll) > 0 || len(filter.LabelsAny) > 0) {
		rows = filterLabels(rows, filter)
	}
	return rows, nil
}

// OpenBlockers returns the still-open blocks-type dependencies of one
// issue, sorted by id.
func (c *Cache) OpenBlockers(ctx context.Context, id string) ([]string, error) {
	var blockers []string
	err := c.db.SelectContext(ctx, &blockers, `
		SELECT e.dependency_id FROM edges e
		JOIN issues i ON i.id = e.dependency_id
		WHERE e.dependent_id = ? AND e.edge_type = ? AND i.status != ?
		ORDER BY e.dependency_id`,
		id, string(store.EdgeBlocks), string(store.StatusClosed))
	if err != nil {
		return nil, fmt.Errorf("querying blockers of %s: %w", id, err)
	}
	return blockers, nil
}

func filterLabels(rows []Row, filter *store.ListFilter) []Row {
	var kept []Row
	for _, row := range rows {
		labels := make(map[string]bool)
		for _, label := range strings.Split(row.Labels, ",") {
			if label != "" {
				labels[label] = true
			}
		}
		ok := true
		for _, want := range filter.LabelsAll {
			if !labels[want] {
				ok = false
				break
			}
		}
		if ok && len(filter.LabelsAny) > 0 {
			any := false
			for _, want := range filter.LabelsAny {
				if labels[want] {
					any = true
					break
				}
			}
			ok = any
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return kept
}
