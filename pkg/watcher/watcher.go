// Package watcher notices when the revision files behind a merge session
// change on disk, so that a running session can be reported as stale.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/merge-assist/pkg/logging"
)

// Revision identifies one of the inputs of a three-way merge.
type Revision int

const (
	RevisionBase Revision = iota
	RevisionLocal
	RevisionRemote
)

func (r Revision) String() string {
	switch r {
	case RevisionBase:
		return "base"
	case RevisionLocal:
		return "local"
	case RevisionRemote:
		return "remote"
	default:
		return fmt.Sprintf("Revision(%d)", int(r))
	}
}

// MarshalText encodes the revision by name.
func (r Revision) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a revision name.
func (r *Revision) UnmarshalText(b []byte) error {
	for _, rev := range []Revision{RevisionBase, RevisionLocal, RevisionRemote} {
		if rev.String() == string(b) {
			*r = rev
			return nil
		}
	}
	return fmt.Errorf("unknown revision %q", b)
}

// ChangeEvent represents a batch of revision file changes
type ChangeEvent struct {
	Revisions []Revision `json:"revisions"`
	Paths     []string   `json:"paths"`
	Timestamp time.Time  `json:"timestamp"`
}

// RevisionWatcher watches the revision files of a merge. Editors and version
// control tools often replace files instead of writing them, so the parent
// directories are watched and events are filtered by path.
type RevisionWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]Revision // cleaned absolute path -> revision
	events  chan ChangeEvent
	once    sync.Once
}

// NewRevisionWatcher creates a watcher for the given files. Empty paths are
// skipped.
func NewRevisionWatcher(files map[Revision]string) (*RevisionWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	rw := &RevisionWatcher{
		watcher: w,
		files:   make(map[string]Revision),
		events:  make(chan ChangeEvent, 100),
	}
	for rev, path := range files {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("resolve %s revision %s: %w", rev, path, err)
		}
		rw.files[filepath.Clean(abs)] = rev
	}
	return rw, nil
}

// Start begins watching. Events stop and the channel closes when ctx ends.
func (rw *RevisionWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range rw.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := rw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logging.Info("watching revision files", "files", len(rw.files), "directories", len(dirs))

	go rw.processEvents(ctx)
	return nil
}

func (rw *RevisionWatcher) processEvents(ctx context.Context) {
	defer close(rw.events)
	defer rw.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			rev, ok := rw.files[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			logging.Debug("revision file changed", "revision", rev, "path", event.Name, "op", event.Op.String())
			select {
			case rw.events <- ChangeEvent{Revisions: []Revision{rev}, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events, one per file system event.
func (rw *RevisionWatcher) Events() <-chan ChangeEvent {
	return rw.events
}

// Stop releases the underlying watcher. It is safe to call more than once.
func (rw *RevisionWatcher) Stop() error {
	var err error
	rw.once.Do(func() { err = rw.watcher.Close() })
	return err
}

// merge folds b into a, keeping revisions in declaration order and paths
// unique.
func merge(a, b ChangeEvent) ChangeEvent {
	for _, r := range b.Revisions {
		if !slices.Contains(a.Revisions, r) {
			a.Revisions = append(a.Revisions, r)
		}
	}
	slices.Sort(a.Revisions)
	for _, p := range b.Paths {
		if !slices.Contains(a.Paths, p) {
			a.Paths = append(a.Paths, p)
		}
	}
	if b.Timestamp.After(a.Timestamp) {
		a.Timestamp = b.Timestamp
	}
	return a
}
