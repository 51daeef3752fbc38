// Package daemon watches the workspace log for changes and keeps the
// derived SQLite cache rebuilt in the background, so interactive
// commands find a fresh cache instead of paying the replay cost.
package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"braid/internal/cache"
	"braid/internal/journal"
	"braid/internal/store"
)

// debounce coalesces the burst of events a single atomic rename produces.
const debounce = 250 * time.Millisecond

// Daemon rebuilds the cache whenever the append log changes.
type Daemon struct {
	journal *journal.Journal
	cache   *cache.Cache
	log     *logrus.Entry
}

// New wires a daemon over an opened journal and cache.
func New(j *journal.Journal, c *cache.Cache) *Daemon {
	return &Daemon{
		journal: j,
		cache:   c,
		log:     logrus.WithField("component", "daemon"),
	}
}

// Run watches the workspace directory until the context is cancelled.
// It rebuilds once at startup so a stale cache is repaired immediately.
func (d *Daemon) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(d.journal.Dir()); err != nil {
		return err
	}

	if err := d.rebuild(ctx); err != nil {
		d.log.WithError(err).Warn("initial cache rebuild failed")
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !d.relevant(event) {
				continue
			}
			d.log.WithFields(logrus.Fields{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Debug("log changed")
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.WithError(err).Warn("watch error")
		case <-timerC:
			timer = nil
			timerC = nil
			if err := d.rebuild(ctx); err != nil {
				d.log.WithError(err).Error("cache rebuild failed")
			}
		}
	}
}

// relevant filters watcher events down to log writes. Temp files from
// atomic writes and the cache database itself are ignored; the rename
// that lands the new log is what matters.
func (d *Daemon) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.Contains(name, ".tmp.") || strings.HasSuffix(name, ".lock") {
		return false
	}
	return name == journal.LogName ||
		(strings.HasPrefix(name, "issues.") && strings.HasSuffix(name, ".jsonl"))
}

func (d *Daemon) rebuild(ctx context.Context) error {
	hash, err := d.journal.ContentHash()
	if err != nil {
		return err
	}
	fresh, err := d.cache.Fresh(ctx, hash)
	if err != nil {
		return err
	}
	if fresh {
		return nil
	}

	events, warnings, err := d.journal.Scan()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		d.log.Warn(w.String())
	}
	state, replayWarnings := store.Replay(events)
	for _, w := range replayWarnings {
		d.log.Warn(w.String())
	}

	if err := d.cache.Rebuild(ctx, state, hash); err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{
		"issues": len(state.Issues),
		"edges":  len(state.Edges),
	}).Info("cache rebuilt")
	return nil
}
