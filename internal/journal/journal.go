// Package journal persists the braid issue log: an append-only JSON-lines
// file that is the durable source of truth. Existing lines are never
// modified in place; appends go through a temp-file-plus-rename so a
// crashed or cancelled write leaves the log exactly as it was.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"braid/internal/store"
)

const (
	// LogName is the primary append log inside the data directory.
	LogName = "issues.jsonl"

	// DefaultLockTimeout bounds how long a writer waits for the append
	// lock before giving up with ErrLockTimeout.
	DefaultLockTimeout = 5 * time.Second

	lockRetryInterval = 20 * time.Millisecond
)

// Journal manages the log files inside a braid data directory.
type Journal struct {
	dir         string
	lockTimeout time.Duration
}

// Option configures a Journal.
type Option func(*Journal)

// WithLockTimeout overrides the append-lock timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(j *Journal) { j.lockTimeout = d }
}

// New creates a Journal rooted at the given data directory (the .braid dir).
func New(dir string, opts ...Option) *Journal {
	j := &Journal{
		dir:         dir,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Dir returns the data directory.
func (j *Journal) Dir() string { return j.dir }

// LogPath returns the path of the primary append log.
func (j *Journal) LogPath() string { return filepath.Join(j.dir, LogName) }

func (j *Journal) lockPath() string { return j.LogPath() + ".lock" }

// Init creates the data directory and an empty log if none exists, and
// clears stale lock files left behind by crashed processes.
func (j *Journal) Init(ctx context.Context) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	f, err := os.OpenFile(j.LogPath(), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creating log: %w", err)
	}
	f.Close()
	j.CleanupStaleLocks()
	return nil
}

// CleanupStaleLocks removes lock files that no live process holds an
// flock on. Best effort.
func (j *Journal) CleanupStaleLocks() {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		lockPath := filepath.Join(j.dir, entry.Name())
		f, err := os.OpenFile(lockPath, os.O_RDWR, 0644)
		if err != nil {
			continue
		}
		// Non-blocking lock: if we get it, no one holds it and the
		// file is stale.
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			f.Close()
			os.Remove(lockPath)
		} else {
			f.Close()
		}
	}
}

// logLock holds the writer lock and its path for cleanup.
type logLock struct {
	file *os.File
	path string
}

func (l *logLock) release() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
}

// acquireLock takes the exclusive writer lock, retrying non-blocking
// flock attempts until the timeout elapses or ctx is cancelled.
func (j *Journal) acquireLock(ctx context.Context) (*logLock, error) {
	lockPath := j.lockPath()
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.Now().Add(j.lockTimeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &logLock{file: f, path: lockPath}, nil
		}
		if err != syscall.EWOULDBLOCK {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%s held for over %s: %w", lockPath, j.lockTimeout, store.ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Append writes events to the end of the primary log. The whole append is
// atomic: the new content is written to a temp file which is renamed over
// the log, so readers never observe a partial trailing line.
func (j *Journal) Append(ctx context.Context, events ...store.Event) error {
	if len(events) == 0 {
		return nil
	}

	lock, err := j.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer lock.release()

	existing, err := os.ReadFile(j.LogPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading log: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		// A hand-edited log may lack the trailing newline; repair it so
		// the next record starts on its own line.
		buf.WriteByte('\n')
	}
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", events[i].Key(), err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	return j.writeAtomic(buf.Bytes())
}

// Rewrite atomically replaces the primary log with the given events in
// deterministic order. Used by the reconciler, compaction, and migration,
// which produce a new unioned or folded log rather than editing lines.
func (j *Journal) Rewrite(ctx context.Context, events []store.Event) error {
	lock, err := j.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer lock.release()

	sorted := make([]store.Event, len(events))
	copy(sorted, events)
	store.SortEvents(sorted)

	var buf bytes.Buffer
	for i := range sorted {
		line, err := json.Marshal(&sorted[i])
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", sorted[i].Key(), err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return j.writeAtomic(buf.Bytes())
}

// writeAtomic writes data to a unique temp file, fsyncs, then renames it
// over the primary log.
func (j *Journal) writeAtomic(data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generating temp suffix: %w", err)
	}
	tmp := j.LogPath() + ".tmp." + hex.EncodeToString(randBytes)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, j.LogPath()); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Scan reads the primary log. Malformed lines are skipped and reported as
// CorruptRecord warnings; they never abort the scan.
func (j *Journal) Scan() ([]store.Event, []store.Warning, error) {
	return ScanFile(j.LogPath())
}

// ScanFile reads one JSON-lines event file. A missing file yields an
// empty event set, matching a freshly initialised workspace.
func ScanFile(path string) ([]store.Event, []store.Warning, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	var (
		events   []store.Event
		warnings []store.Warning
		lineNo   int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e store.Event
		if err := json.Unmarshal(line, &e); err != nil {
			warnings = append(warnings, store.Warning{
				Kind:    store.WarnCorruptRecord,
				Message: fmt.Sprintf("%s:%d: %v", filepath.Base(path), lineNo, err),
			})
			continue
		}
		if e.IssueID == "" || e.Kind == "" {
			warnings = append(warnings, store.Warning{
				Kind:    store.WarnCorruptRecord,
				Message: fmt.Sprintf("%s:%d: record missing issue_id or kind", filepath.Base(path), lineNo),
			})
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, warnings, fmt.Errorf("scanning log: %w", err)
	}
	return events, warnings, nil
}

// SideLogs returns divergent replica logs sitting next to the primary one
// (issues.<name>.jsonl), e.g. dropped there by a git merge driver or
// copied from another clone. Sorted for deterministic merge order.
func (j *Journal) SideLogs() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == LogName {
			continue
		}
		if strings.HasPrefix(name, "issues.") && strings.HasSuffix(name, ".jsonl") {
			paths = append(paths, filepath.Join(j.dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ContentHash returns the sha256 of the primary log, used by the query
// cache to detect staleness. An absent log hashes as empty content.
func (j *Journal) ContentHash() (string, error) {
	data, err := os.ReadFile(j.LogPath())
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
