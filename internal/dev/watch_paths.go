package dev

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/config"
)

// CollectWatchPaths returns the watch roots for the project: dev.watch plus
// every entry script, with roots nested inside another root dropped.
func CollectWatchPaths(cfg *config.Config) []string {
	paths := cfg.WatchPaths()
	for _, entry := range cfg.EntryPaths() {
		paths = append(paths, entry)
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	sort.Strings(unique)

	roots := unique[:0]
	for _, path := range unique {
		nested := false
		for _, root := range roots {
			if isWithinDir(path, root) {
				nested = true
				break
			}
		}
		if !nested {
			roots = append(roots, path)
		}
	}
	return roots
}

// CollectIgnore returns the ignore patterns for the project. The pack
// directory and its staging directories are always ignored so a rebuild
// never triggers another one.
func CollectIgnore(cfg *config.Config) []string {
	packDir := cfg.PackPath()
	ignore := make([]string, 0, len(DefaultIgnore)+len(cfg.Dev.Ignore)+2)
	ignore = append(ignore, DefaultIgnore...)
	ignore = append(ignore, cfg.Dev.Ignore...)
	ignore = append(ignore, filepath.ToSlash(packDir), build.StagingPrefix(packDir)+"*")
	return ignore
}

func isWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, dir)
}
