package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
)

const glueScript = `var Module = typeof Module !== "undefined" ? Module : {};
var ENVIRONMENT_IS_NODE = typeof process === "object";
if (ENVIRONMENT_IS_NODE) {
  var fs = require("fs");
  var nodePath = require("path");
}
var scriptDirectory = "";
function locateFile(path) {
  return scriptDirectory + path;
}
function instantiateWasm() {
  var wasmBinaryFile = locateFile("main.wasm");
  var dataFile = locateFile("main.data");
  return Promise.all([fetch(wasmBinaryFile), fetch(dataFile)]);
}
instantiateWasm();
`

var wasmBytes = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// newProject lays out build/ and static/ the way the wasm compiler and a
// developer would, and returns a config rooted there.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "build", "main.js"), glueScript)
	writeFile(t, filepath.Join(dir, "build", "main.wasm"), string(wasmBytes))
	writeFile(t, filepath.Join(dir, "build", "main.data"), "preloaded filesystem image")
	writeFile(t, filepath.Join(dir, "static", "index.html"), `<html><body><script src="index.js"></script></body></html>`)
	writeFile(t, filepath.Join(dir, "static", "css", "app.css"), "body { margin: 0; }")

	cfg := config.New()
	cfg.SetDir(dir)
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuild_CopiesEveryRule(t *testing.T) {
	cfg := newProject(t)

	result, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)

	pack := cfg.PackPath()
	assert.Equal(t, pack, result.Pack)
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.Minified)
	assert.Equal(t, []string{"index.js"}, result.Bundles)

	for _, name := range []string{"index.html", "css/app.css", "main.wasm", "main.data", "index.js"} {
		assert.FileExists(t, filepath.Join(pack, filepath.FromSlash(name)))
	}
	assert.Equal(t, string(wasmBytes), readFile(t, filepath.Join(pack, "main.wasm")))
	assert.Equal(t, "preloaded filesystem image", readFile(t, filepath.Join(pack, "main.data")))

	var paths []string
	for _, f := range result.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"css/app.css", "index.html", "index.js", "main.data", "main.wasm"}, paths)
}

func TestBuild_BinaryNamesUnchanged(t *testing.T) {
	cfg := newProject(t)

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.PackPath())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "main.wasm")
	assert.Contains(t, names, "main.data")
}

func TestBuild_MissingWasmFails(t *testing.T) {
	cfg := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.BuildPath(), "main.wasm")))

	result, err := New(cfg, Options{}).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.HasCode(err, "E101"), "got %v", err)
	assert.Contains(t, err.(*errors.PackError).Detail, "main.wasm")

	assert.NoDirExists(t, cfg.PackPath(), "no pack directory may be produced")
	leftovers, _ := filepath.Glob(filepath.Join(cfg.Dir(), ".pack.staging-*"))
	assert.Empty(t, leftovers)
}

func TestBuild_MissingWasmKeepsPreviousPack(t *testing.T) {
	cfg := newProject(t)
	builder := New(cfg, Options{})

	_, err := builder.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(cfg.BuildPath(), "main.wasm")))
	writeFile(t, filepath.Join(cfg.StaticPath(), "new.txt"), "new")

	_, err = builder.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E101"))

	assert.FileExists(t, filepath.Join(cfg.PackPath(), "main.wasm"))
	assert.NoFileExists(t, filepath.Join(cfg.PackPath(), "new.txt"))
}

func TestBuild_MissingEntryFails(t *testing.T) {
	cfg := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.BuildPath(), "main.js")))

	_, err := New(cfg, Options{}).Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E101"))
}

func TestBuild_RebuildReplacesStaleFiles(t *testing.T) {
	cfg := newProject(t)
	builder := New(cfg, Options{})

	_, err := builder.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(cfg.StaticPath(), "css", "app.css")))

	_, err = builder.Build(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.PackPath(), "css", "app.css"))
	assert.FileExists(t, filepath.Join(cfg.PackPath(), "main.wasm"))
}

func TestBuild_DevelopmentIsUnminified(t *testing.T) {
	cfg := newProject(t)
	require.Equal(t, config.ModeDevelopment, cfg.Mode)

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)

	out := readFile(t, filepath.Join(cfg.PackPath(), "index.js"))
	assert.Contains(t, out, "locateFile", "identifiers are kept")
	assert.Contains(t, out, "\n  ", "indentation is kept")
	assert.Greater(t, strings.Count(out, "\n"), 10)
	assert.Contains(t, out, `"fs"`, "node built-ins stay external")
}

func TestBuild_ProductionIsMinified(t *testing.T) {
	devCfg := newProject(t)
	_, err := New(devCfg, Options{}).Build(context.Background())
	require.NoError(t, err)
	devOut := readFile(t, filepath.Join(devCfg.PackPath(), "index.js"))

	prodCfg := newProject(t)
	prodCfg.Mode = config.ModeProduction
	result, err := New(prodCfg, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Minified)

	prodOut := readFile(t, filepath.Join(prodCfg.PackPath(), "index.js"))
	assert.Less(t, len(prodOut), len(devOut))
	assert.LessOrEqual(t, strings.Count(strings.TrimSpace(prodOut), "\n"), 1)
	assert.Contains(t, prodOut, "main.wasm", "string literals survive minification")
}

func TestBuild_BundleError(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.BuildPath(), "main.js"), "var a = 1;\nvar b = ;\n")

	_, err := New(cfg, Options{}).Build(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCode(err, "E102"), "got %v", err)

	pe, ok := errors.As(err)
	require.True(t, ok)
	require.NotNil(t, pe.Location)
	assert.Equal(t, 2, pe.Location.Line)
	assert.Equal(t, filepath.Join(cfg.BuildPath(), "main.js"), pe.Location.File)
	assert.NoDirExists(t, cfg.PackPath())
}

func TestBuild_BundleWinsOverCopiedFile(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.StaticPath(), "index.js"), "// stale hand-written copy")

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)

	out := readFile(t, filepath.Join(cfg.PackPath(), "index.js"))
	assert.Contains(t, out, "scriptDirectory")
	assert.NotContains(t, out, "stale hand-written copy")
}

func TestBuild_LaterRuleOverwrites(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.Dir(), "overrides", "index.html"), "override")
	cfg.Copy = append(cfg.Copy, config.CopyRule{From: "overrides"})

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "override", readFile(t, filepath.Join(cfg.PackPath(), "index.html")))
}

func TestBuild_CopyRuleSubdirectory(t *testing.T) {
	cfg := newProject(t)
	cfg.Copy = []config.CopyRule{
		{From: "static"},
		{From: "build/main.wasm", To: "wasm"},
		{From: "build/main.data", To: "wasm"},
	}

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.PackPath(), "wasm", "main.wasm"))
	assert.FileExists(t, filepath.Join(cfg.PackPath(), "wasm", "main.data"))
}

type countingLocker struct {
	mu    sync.Mutex
	locks int
}

func (l *countingLocker) Lock() {
	l.mu.Lock()
	l.locks++
}

func (l *countingLocker) Unlock() {
	l.mu.Unlock()
}

func TestBuild_PackIsWorldReadable(t *testing.T) {
	cfg := newProject(t)

	_, err := New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(cfg.PackPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// A rebuild swaps in a fresh staging directory.
	_, err = New(cfg, Options{}).Build(context.Background())
	require.NoError(t, err)
	info, err = os.Stat(cfg.PackPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestBuild_SwapHoldsLock(t *testing.T) {
	cfg := newProject(t)
	lock := &countingLocker{}

	_, err := New(cfg, Options{Lock: lock}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.locks)
}

func TestBuild_Progress(t *testing.T) {
	cfg := newProject(t)
	var steps []string

	_, err := New(cfg, Options{OnProgress: func(step string) { steps = append(steps, step) }}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Checking sources...",
		"Copying artifacts...",
		"Bundling entries...",
		"Swapping pack directory...",
	}, steps)
}

func TestBuild_Canceled(t *testing.T) {
	cfg := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, Options{}).Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, cfg.PackPath())
}

func TestClean(t *testing.T) {
	cfg := newProject(t)
	builder := New(cfg, Options{})

	_, err := builder.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Dir(), ".pack.staging-123"), 0o755))

	require.NoError(t, builder.Clean())
	assert.NoDirExists(t, cfg.PackPath())
	assert.NoDirExists(t, filepath.Join(cfg.Dir(), ".pack.staging-123"))
	assert.DirExists(t, cfg.StaticPath())
}

func TestPreflight_ReportsAllMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	writeFile(t, present, "x")

	err := Preflight([]string{
		present,
		filepath.Join(dir, "main.wasm"),
		filepath.Join(dir, "main.data"),
	})
	require.Error(t, err)
	pe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "E101", pe.Code)
	assert.Contains(t, pe.Detail, "main.wasm")
	assert.Contains(t, pe.Detail, "main.data")
	assert.NotContains(t, pe.Detail, "present")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, Preflight([]string{present}))
}

func TestCopyAll_PreservesMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	script := filepath.Join(src, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))

	written, err := CopyAll(context.Background(), dst, []CopyRule{{Source: src, Dest: dst}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"run.sh": script}, written)

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.js"), strings.Repeat("var x = 1;\n", 200))
	writeFile(t, filepath.Join(dir, "a", "main.wasm"), string(wasmBytes))

	files, err := Report(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a/main.wasm", files[0].Path)
	assert.Equal(t, "b.js", files[1].Path)
	assert.Equal(t, int64(2200), files[1].Size)
	assert.Less(t, files[1].GzipSize, files[1].Size, "repetitive text compresses")
	assert.Greater(t, files[0].GzipSize, int64(0))

	size, gz := TotalSize(files)
	assert.Equal(t, int64(2208), size)
	assert.Equal(t, files[0].GzipSize+files[1].GzipSize, gz)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.js"), strings.Repeat("var x = 1;\n", 200))
	writeFile(t, filepath.Join(dir, "a", "main.wasm"), string(wasmBytes))

	files, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []File{
		{Path: "a/main.wasm", Size: 8},
		{Path: "b.js", Size: 2200},
	}, files)

	_, err = List(filepath.Join(dir, "missing"))
	assert.True(t, errors.HasCode(err, "E103"))
}
