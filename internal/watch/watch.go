// Package watch turns filesystem notifications across the engine roots into
// debounced refresh signals.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long a change burst must be quiet before one refresh is
// emitted.
const Debounce = 250 * time.Millisecond

// OpenCodePollInterval is how often the OpenCode database is polled; the
// SQLite file is opaque to file-change semantics.
const OpenCodePollInterval = 2 * time.Second

// Watcher coalesces change notifications from every watched root into a
// single refresh channel.
type Watcher struct {
	fsw      *fsnotify.Watcher
	refresh  chan struct{}
	errs     chan error
	debounce time.Duration
	done     chan struct{}
}

// New watches the given roots recursively. Roots that do not exist yet are
// skipped; directories created later under a watched root are picked up.
func New(roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		refresh:  make(chan struct{}, 1),
		errs:     make(chan error, 4),
		debounce: Debounce,
		done:     make(chan struct{}),
	}

	for _, root := range roots {
		if root == "" {
			continue
		}
		if err := w.addRecursive(root); err != nil && !os.IsNotExist(err) {
			w.reportError(err)
		}
	}

	go w.run()
	return w, nil
}

// Refresh delivers one signal per quiet change burst. The channel has a
// buffer of one; consumers that lag see a single pending refresh, never a
// backlog.
func (w *Watcher) Refresh() <-chan struct{} { return w.refresh }

// Errors surfaces watch failures; they are informational, never fatal.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if entry.Name() == ".ccbox" {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.reportError(addErr)
		}
		return nil
	})
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !shouldTriggerRefresh(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}
			arm()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		case <-timerC:
			select {
			case w.refresh <- struct{}{}:
			default:
			}
		}
	}
}

func (w *Watcher) reportError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// shouldTriggerRefresh drops chmod noise and changes to files that cannot
// be session logs.
func shouldTriggerRefresh(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Name == "" {
		return true
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".json") {
		return true
	}
	// Directory creation and removal reshape the tree; stat may already
	// fail for removals, so treat extensionless paths as directories.
	return filepath.Ext(name) == ""
}

// PollOpenCode fingerprints the database file on a ticker and invokes
// notify when it changes. Runs until the context is canceled.
func PollOpenCode(ctx context.Context, dbPath string, notify func()) {
	ticker := time.NewTicker(OpenCodePollInterval)
	defer ticker.Stop()

	last := fingerprint(dbPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := fingerprint(dbPath)
			if next != last {
				last = next
				notify()
			}
		}
	}
}

func fingerprint(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
}
