package dev

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/wasmpack/internal/errors"
)

// ChangeType classifies a changed file by what it feeds into.
type ChangeType int

const (
	ChangeAsset ChangeType = iota
	ChangeScript
	ChangeBinary
	ChangeMarkup
	ChangeStyle
)

func (t ChangeType) String() string {
	switch t {
	case ChangeScript:
		return "script"
	case ChangeBinary:
		return "binary"
	case ChangeMarkup:
		return "markup"
	case ChangeStyle:
		return "style"
	default:
		return "asset"
	}
}

// Op is what happened to a file.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "write"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
	Op   Op
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the files and directories to watch.
	Paths []string

	// Ignore patterns to skip (globs, names or path segments).
	Ignore []string

	// Debounce is the quiet period after the last change before a batch
	// is emitted.
	Debounce time.Duration

	// Logger receives watch root warnings.
	Logger zerolog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.tmp",
	"*.swp",
	"*~",
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls files for changes and emits them in batches.
type Watcher struct {
	config   WatcherConfig
	onChange func([]Change)
	mu       sync.Mutex
	running  bool
	scanned  bool
	stopCh   chan struct{}
	files    map[string]fileState
	missing  map[string]bool
	pending  map[string]Change
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	return &Watcher{
		config:  config,
		files:   make(map[string]fileState),
		missing: make(map[string]bool),
		pending: make(map[string]Change),
	}
}

// OnChange sets the callback for change batches.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	w.Snapshot()

	interval := w.config.Debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.markStopped()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.tick()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

// Snapshot records the current state of the watched paths as the
// baseline without reporting it. Anything that changes after Snapshot
// returns is reported once Start runs. Start takes the snapshot itself
// unless one was already taken; it must not run concurrently with Start.
func (w *Watcher) Snapshot() {
	w.mu.Lock()
	if w.scanned {
		w.mu.Unlock()
		return
	}
	w.scanned = true
	w.mu.Unlock()

	for _, root := range w.config.Paths {
		if _, err := os.Stat(root); err != nil {
			w.missing[root] = true
			continue
		}
		w.walk(root, func(p string, state fileState) {
			w.files[p] = state
		})
	}
}

// tick polls once. Changes are accumulated while polls keep finding them;
// the first quiet poll flushes them as one batch.
func (w *Watcher) tick() {
	changes := w.poll()
	if len(changes) > 0 {
		for _, c := range changes {
			if prev, ok := w.pending[c.Path]; ok {
				c = mergeChange(prev, c)
			}
			w.pending[c.Path] = c
		}
		return
	}
	if len(w.pending) == 0 {
		return
	}

	batch := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		batch = append(batch, c)
	}
	w.pending = make(map[string]Change)
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()
	if callback != nil {
		callback(batch)
	}
}

// mergeChange folds a later change to the same path into an earlier one.
func mergeChange(prev, next Change) Change {
	if prev.Op == OpCreate && next.Op == OpWrite {
		return prev
	}
	if prev.Op == OpRemove && next.Op == OpCreate {
		next.Op = OpWrite
	}
	return next
}

// poll compares the file tree against the last snapshot.
func (w *Watcher) poll() []Change {
	var changes []Change
	seen := make(map[string]bool, len(w.files))

	for _, root := range w.config.Paths {
		if _, err := os.Stat(root); err != nil {
			if !w.missing[root] {
				w.missing[root] = true
				pe := errors.New("E111").WithDetail(root)
				w.config.Logger.Warn().Str("code", pe.Code).Str("path", root).Msg(pe.Message)
			}
			continue
		}
		if w.missing[root] {
			delete(w.missing, root)
			w.config.Logger.Info().Str("path", root).Msg("Watch path restored")
		}

		w.walk(root, func(p string, state fileState) {
			seen[p] = true
			prev, exists := w.files[p]
			switch {
			case !exists:
				changes = append(changes, Change{Path: p, Type: classifyChange(p), Op: OpCreate})
			case !state.modTime.Equal(prev.modTime) || state.size != prev.size:
				changes = append(changes, Change{Path: p, Type: classifyChange(p), Op: OpWrite})
			default:
				return
			}
			w.files[p] = state
		})
	}

	for p := range w.files {
		if !seen[p] {
			delete(w.files, p)
			changes = append(changes, Change{Path: p, Type: classifyChange(p), Op: OpRemove})
		}
	}

	return changes
}

func (w *Watcher) walk(root string, visit func(string, fileState)) {
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && w.shouldIgnore(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.shouldIgnore(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(p, fileState{modTime: info.ModTime(), size: info.Size()})
		return nil
	})
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/") || strings.Contains(pattern, "\\")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		if hasGlob {
			if hasPathSep {
				if matched, _ := path.Match(filepath.ToSlash(pattern), normalized); matched {
					return true
				}
			} else if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, pattern) {
			return true
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

// pathMatchesSegments reports whether pattern's segments appear
// contiguously in path. Absolute patterns must match from the start.
func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	last := len(pathParts) - len(patternParts)
	if strings.HasPrefix(pattern, "/") {
		last = 0
	}
	for i := 0; i <= last; i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

// classifyChange determines the type of change based on file extension.
func classifyChange(path string) ChangeType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return ChangeScript
	case ".wasm", ".data":
		return ChangeBinary
	case ".html", ".htm":
		return ChangeMarkup
	case ".css":
		return ChangeStyle
	default:
		return ChangeAsset
	}
}
