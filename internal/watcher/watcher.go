// Package watcher turns filesystem changes into incremental rebuilds.
//
// A FileWatcher pushes change events into an explicit queue, a Debouncer
// folds bursts of events into batches, and the Engine maps each batch onto
// build steps through watch bindings and drives the rebuilds.
package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// FileWatcher watches directory trees and queues change events.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent
	errs    chan error
	filters []FileFilter
	mutex   sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path should be watched.
type FileFilter func(path string) bool

// DefaultQueueSize is the capacity of the event queue.
const DefaultQueueSize = 256

// NewFileWatcher creates a file watcher with an empty event queue.
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &errors.WatchIOError{Op: "create", Cause: err}
	}

	return &FileWatcher{
		watcher: w,
		events:  make(chan ChangeEvent, DefaultQueueSize),
		errs:    make(chan error, 1),
		filters: make([]FileFilter, 0),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// Events is the queue of accepted change events.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Errors delivers WatchIOError values. The first error ends the watch loop.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errs
}

// AddPath watches a single directory.
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := cleanPath(path)
	if err != nil {
		return err
	}
	if err := fw.watcher.Add(cleanPath); err != nil {
		return &errors.WatchIOError{Op: "add", Path: cleanPath, Cause: err}
	}
	return nil
}

// AddRecursive watches root and every directory below it that passes the
// filters. A missing root is an error; subdirectories removed during the
// walk are skipped.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := cleanPath(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != cleanRoot && isNotExist(err) {
				return nil
			}
			return &errors.WatchIOError{Op: "walk", Path: path, Cause: err}
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && !fw.accept(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			if path != cleanRoot && isNotExist(err) {
				return filepath.SkipDir
			}
			return &errors.WatchIOError{Op: "add", Path: path, Cause: err}
		}
		return nil
	})
}

// WatchList returns the directories currently watched.
func (fw *FileWatcher) WatchList() []string {
	return fw.watcher.WatchList()
}

func cleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.ErrInvalidPath(path)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	return absPath, nil
}

// Start runs the watch loop until ctx is done or the watcher fails.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.watchLoop(ctx)
}

// Stop closes the underlying watcher.
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errs <- &errors.WatchIOError{Op: "watch", Cause: err}:
			default:
			}
			return
		}
	}
}

func (fw *FileWatcher) accept(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if !fw.accept(event.Name) {
		return
	}

	info, statErr := os.Stat(event.Name)

	// New directories are watched too, and files that landed in them before
	// the watch was added are reported as created.
	if statErr == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			fw.watchNewDir(ctx, event.Name)
		}
		return
	}

	changeEvent := ChangeEvent{
		Type: eventTypeOf(event.Op),
		Path: event.Name,
	}
	if statErr == nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}

	fw.enqueue(ctx, changeEvent)
}

// watchNewDir watches a directory created after the watch started and
// queues the files already inside it. A directory that is gone again by the
// time it is walked needs no watch.
func (fw *FileWatcher) watchNewDir(ctx context.Context, dir string) {
	if err := fw.AddRecursive(dir); err != nil {
		if isNotExist(err) {
			return
		}
		select {
		case fw.errs <- err:
		default:
		}
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !fw.accept(path) {
			return nil
		}
		ev := ChangeEvent{Type: EventTypeCreated, Path: path}
		if info, err := d.Info(); err == nil {
			ev.ModTime = info.ModTime()
			ev.Size = info.Size()
		}
		fw.enqueue(ctx, ev)
		return nil
	})
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}

func (fw *FileWatcher) enqueue(ctx context.Context, ev ChangeEvent) {
	select {
	case fw.events <- ev:
	case <-ctx.Done():
	}
}

func eventTypeOf(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func hasSegment(path, segment string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// NoGitFilter drops anything inside a .git directory.
func NoGitFilter(path string) bool {
	return !hasSegment(path, ".git")
}

// NoEditorTempFilter drops swap, backup and lock files written by editors.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasPrefix(base, ".#"),
		base == "4913",
		base == ".DS_Store":
		return false
	}
	return true
}

// ExcludeDirFilter drops dir and everything below it.
func ExcludeDirFilter(dir string) FileFilter {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			return true
		}
		return p != abs && !strings.HasPrefix(p, abs+string(filepath.Separator))
	}
}
