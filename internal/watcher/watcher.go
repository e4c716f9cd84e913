// Package watcher keeps an index.FileIndex in sync with a directory of shard
// files. Each shard file is one file of the index: writing it replaces its
// contribution, removing or renaming it retracts the contribution.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/symindex/internal/config"
	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/shard"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

func (t FileEventType) retracts() bool {
	return t == FileEventRemove || t == FileEventRename
}

// ShardWatcher monitors a shard directory and feeds changes into a FileIndex
type ShardWatcher struct {
	watcher   *fsnotify.Watcher
	index     *index.FileIndex
	root      string
	pattern   string
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// Called after each debounced batch has been applied
	onBatchEnd func(count int, duration time.Duration)

	// Watch mode statistics
	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// New creates a watcher for the shard directory root. Files are matched
// against cfg.Pattern relative to root.
func New(root string, idx *index.FileIndex, cfg config.Watch) (*ShardWatcher, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = shard.DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sw := &ShardWatcher{
		watcher: watcher,
		index:   idx,
		root:    root,
		pattern: pattern,
		ctx:     ctx,
		cancel:  cancel,
	}
	sw.debouncer = newEventDebouncer(cfg.Debounce(), sw.apply)
	return sw, nil
}

// SetBatchCallback sets a function called after every applied batch
func (sw *ShardWatcher) SetBatchCallback(onBatchEnd func(count int, duration time.Duration)) {
	sw.onBatchEnd = onBatchEnd
}

// Start loads every existing shard and begins watching for changes. Shards
// that fail to load are logged and counted, not fatal.
func (sw *ShardWatcher) Start() error {
	debug.LogWatch("starting shard watcher for %s\n", sw.root)

	paths, err := shard.ListShards(sw.root, sw.pattern, "")
	if err != nil {
		return err
	}
	initial := make(map[string]FileEventType, len(paths))
	for _, p := range paths {
		initial[p] = FileEventCreate
	}
	sw.apply(initial)

	if err := sw.addWatches(sw.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", sw.root, err)
	}

	sw.wg.Add(2)
	go sw.processEvents()
	go sw.debouncer.run(sw.ctx, &sw.wg)

	debug.LogWatch("shard watcher started with %d shards\n", len(paths))
	return nil
}

// Stop stops the watcher. Events still waiting for the debounce interval are
// dropped. Stop is idempotent.
func (sw *ShardWatcher) Stop() error {
	var err error
	sw.stopOnce.Do(func() {
		sw.cancel()
		err = sw.watcher.Close()
		sw.wg.Wait()
		debug.LogWatch("shard watcher stopped\n")
	})
	return err
}

// addWatches recursively adds watches to all directories under root
func (sw *ShardWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // Skip errors below the root
		}
		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if err := sw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

// processEvents processes file system events from fsnotify
func (sw *ShardWatcher) processEvents() {
	defer sw.wg.Done()

	for {
		select {
		case <-sw.ctx.Done():
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Shard watcher error: %v", err)
			sw.incrementStats(0, 1)
		}
	}
}

// handleEvent handles a single file system event
func (sw *ShardWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWatch("received %v for %s\n", event.Op, path)

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		eventType := FileEventRemove
		if event.Op&fsnotify.Rename != 0 {
			eventType = FileEventRename
		}
		if sw.matches(path) {
			sw.debouncer.addEvent(path, eventType)
			return
		}
		sw.retractDirectory(path, eventType)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			sw.handleNewDirectory(path)
		}
		return
	}
	if !sw.matches(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		sw.debouncer.addEvent(path, FileEventCreate)
	case event.Op&fsnotify.Write != 0:
		sw.debouncer.addEvent(path, FileEventWrite)
	}
}

// handleNewDirectory watches a new directory and picks up shards that were
// written into it before the watch existed.
func (sw *ShardWatcher) handleNewDirectory(dir string) {
	if err := sw.addWatches(dir); err != nil {
		log.Printf("Warning: failed to add watch for new directory %s: %v", dir, err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && sw.matches(path) {
			sw.debouncer.addEvent(path, FileEventCreate)
		}
		return nil
	})
}

// retractDirectory retracts every indexed shard below dir. A directory moved
// out of the root reports a single event for itself and none for its files.
func (sw *ShardWatcher) retractDirectory(dir string, eventType FileEventType) {
	prefix := sw.fileKey(dir) + "/"
	if strings.HasPrefix(prefix, "../") {
		return
	}
	// A renamed directory keeps its watches under the old names.
	for _, watched := range sw.watcher.WatchList() {
		if watched == dir || strings.HasPrefix(watched, dir+string(filepath.Separator)) {
			_ = sw.watcher.Remove(watched)
		}
	}

	n := 0
	for _, key := range sw.index.Files() {
		if strings.HasPrefix(key, prefix) {
			sw.debouncer.addEvent(filepath.Join(sw.root, filepath.FromSlash(key)), eventType)
			n++
		}
	}
	if n > 0 {
		debug.LogWatch("retracting %d shards below %s\n", n, dir)
	}
}

// matches reports whether path is a shard file under the watched root
func (sw *ShardWatcher) matches(path string) bool {
	rel, err := filepath.Rel(sw.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		return false
	}
	matched, err := doublestar.Match(sw.pattern, filepath.ToSlash(rel))
	return err == nil && matched
}

// fileKey is the name a shard file has inside the index
func (sw *ShardWatcher) fileKey(path string) string {
	rel, err := filepath.Rel(sw.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// apply feeds one batch of events into the index, retractions first
func (sw *ShardWatcher) apply(events map[string]FileEventType) {
	if len(events) == 0 {
		return
	}
	start := time.Now()

	paths := make([]string, 0, len(events))
	for p := range events {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		ri, rj := events[paths[i]].retracts(), events[paths[j]].retracts()
		if ri != rj {
			return ri
		}
		return paths[i] < paths[j]
	})

	var processed, failed int64
	for _, path := range paths {
		key := sw.fileKey(path)
		var unit index.Unit
		if !events[path].retracts() {
			data, err := os.ReadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Printf("Shard watcher: cannot read %s: %v", path, err)
					failed++
					continue
				}
				// Gone again before we got to it.
			} else {
				unit = data
			}
		}

		if err := sw.index.Update(key, unit); err != nil {
			log.Printf("Shard watcher: keeping previous state of %s: %v", key, err)
			failed++
			continue
		}
		processed++
	}

	sw.incrementStats(processed, failed)
	debug.LogWatch("applied %d events (%d failed) in %v\n", len(events), failed, time.Since(start))
	if sw.onBatchEnd != nil {
		sw.onBatchEnd(len(events), time.Since(start))
	}
}

// incrementStats updates watch mode statistics
func (sw *ShardWatcher) incrementStats(events int64, errors int64) {
	sw.statsMu.Lock()
	defer sw.statsMu.Unlock()

	sw.eventsProcessed += events
	sw.errorCount += errors
	sw.lastEventTime = time.Now()
}

// GetStats returns current watch mode statistics
func (sw *ShardWatcher) GetStats() WatchStats {
	sw.statsMu.RLock()
	defer sw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: sw.eventsProcessed,
		ErrorCount:      sw.errorCount,
		LastEventTime:   sw.lastEventTime,
		IsActive:        sw.ctx.Err() == nil,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}
