package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/wasmpack/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.False(t, cfg.Minimize(), "development mode must not minify")
	assert.Equal(t, DefaultPort, cfg.Dev.Port)
	assert.Equal(t, DefaultHost, cfg.Dev.Host)
	assert.True(t, cfg.Dev.HotReload)
	assert.Equal(t, "warn", cfg.Dev.ClientLogging)
	assert.Equal(t, DefaultDebounce, cfg.DebounceDuration())

	assert.Equal(t, map[string]string{"index": "build/main.js"}, cfg.Entry)
	assert.Equal(t, []CopyRule{
		{From: "static"},
		{From: "build/main.wasm"},
		{From: "build/main.data"},
	}, cfg.Copy)
	assert.Equal(t, []string{"static", "build"}, cfg.Dev.Watch)
	require.NoError(t, cfg.Validate())
}

func TestMinimize(t *testing.T) {
	cfg := New()
	cfg.Mode = ModeProduction
	assert.True(t, cfg.Minimize(), "production minifies by default")

	cfg.SetMinimize(false)
	assert.False(t, cfg.Minimize(), "explicit override wins over mode")

	cfg.Mode = ModeDevelopment
	cfg.SetMinimize(true)
	assert.True(t, cfg.Minimize())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E100"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configJSON := `{
  "mode": "production",
  "paths": { "build": "out", "pack": "dist" },
  "entry": { "app": "out/app.js" },
  "dev": { "port": 9090, "hotReload": false, "clientLogging": "error" }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.True(t, cfg.Minimize())
	assert.Equal(t, map[string]string{"app": "out/app.js"}, cfg.Entry, "entry replaces the default map")
	assert.Equal(t, []CopyRule{
		{From: "static"},
		{From: "out/main.wasm"},
		{From: "out/main.data"},
	}, cfg.Copy, "default copy rules follow the build path")
	assert.Equal(t, 9090, cfg.Dev.Port)
	assert.False(t, cfg.Dev.HotReload)
	assert.Equal(t, "error", cfg.Dev.ClientLogging)
	assert.Equal(t, DefaultHost, cfg.Dev.Host)
	assert.Equal(t, filepath.Join(tmpDir, "dist"), cfg.PackPath())
	assert.Equal(t, tmpDir, cfg.Dir())
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `
mode: development
optimization:
  minimize: true
copy:
  - from: static
  - from: build/main.wasm
    to: wasm
dev:
  debounce: 250ms
  watch: [static]
publish:
  bucket: my-site
  prefix: game/
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "wasmpack.yaml"), []byte(configYAML), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.True(t, cfg.Minimize())
	assert.Equal(t, []CopyRule{{From: "static"}, {From: "build/main.wasm", To: "wasm"}}, cfg.Copy)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDuration())
	assert.Equal(t, []string{filepath.Join(tmpDir, "static")}, cfg.WatchPaths())
	assert.Equal(t, "my-site", cfg.Publish.Bucket)
	assert.Equal(t, "game/", cfg.Publish.Prefix)
	assert.True(t, cfg.Dev.HotReload, "hotReload keeps its default when omitted")
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("not valid json"), 0o644))

	_, err := LoadFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E120")
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := New()
	cfg.Dev.Port = 9000
	require.Error(t, cfg.Save(), "save without a path")

	for _, name := range []string{ConfigFileName, "wasmpack.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name)
			require.NoError(t, cfg.SaveTo(path))

			loaded, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, 9000, loaded.Dev.Port)
			assert.Equal(t, cfg.Copy, loaded.Copy)
			assert.Equal(t, cfg.Entry, loaded.Entry)

			loaded.Dev.Port = 9001
			require.NoError(t, loaded.Save())
			reloaded, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, 9001, reloaded.Dev.Port)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Dev.Port = -1 }},
		{"port too large", func(c *Config) { c.Dev.Port = 70000 }},
		{"unknown mode", func(c *Config) { c.Mode = "fast" }},
		{"unknown client logging", func(c *Config) { c.Dev.ClientLogging = "loud" }},
		{"bad debounce", func(c *Config) { c.Dev.Debounce = "soon" }},
		{"no entries", func(c *Config) { c.Entry = map[string]string{} }},
		{"entry name with slash", func(c *Config) { c.Entry = map[string]string{"js/index": "build/main.js"} }},
		{"copy rule without from", func(c *Config) { c.Copy = append(c.Copy, CopyRule{}) }},
		{"copy rule escaping pack", func(c *Config) { c.Copy = []CopyRule{{From: "static", To: "../out"}} }},
		{"pack is static", func(c *Config) { c.Paths.Pack = "static" }},
		{"pack is project root", func(c *Config) { c.Paths.Pack = "." }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.SetDir(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, "E121"), "got %v", err)
		})
	}
}

func TestDevAddress(t *testing.T) {
	cfg := New()
	cfg.Dev.Port = 8081
	cfg.Dev.Host = "0.0.0.0"

	assert.Equal(t, "0.0.0.0:8081", cfg.DevAddress())
	assert.Equal(t, "http://0.0.0.0:8081", cfg.DevURL())
}

func TestPaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	require.NoError(t, cfg.SaveTo(filepath.Join(tmpDir, ConfigFileName)))

	assert.Equal(t, filepath.Join(tmpDir, "build"), cfg.BuildPath())
	assert.Equal(t, filepath.Join(tmpDir, "pack"), cfg.PackPath())
	assert.Equal(t, filepath.Join(tmpDir, "static"), cfg.StaticPath())
	assert.Equal(t, map[string]string{"index": filepath.Join(tmpDir, "build", "main.js")}, cfg.EntryPaths())

	rules := cfg.ResolvedCopyRules(cfg.PackPath())
	require.Len(t, rules, 3)
	assert.Equal(t, filepath.Join(tmpDir, "build", "main.wasm"), rules[1].From)
	assert.Equal(t, cfg.PackPath(), rules[1].To)

	cfg.Paths.Pack = "/absolute/pack"
	assert.Equal(t, "/absolute/pack", cfg.PackPath())
}

func TestWatchPaths_Dedup(t *testing.T) {
	cfg := New()
	cfg.SetDir("/project")
	cfg.Dev.Watch = []string{"static", "./static", "build", ""}

	assert.Equal(t, []string{"/project/static", "/project/build"}, cfg.WatchPaths())
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "a", "b")
	require.NoError(t, os.MkdirAll(subDir, 0o755))
	require.NoError(t, New().SaveTo(filepath.Join(tmpDir, ConfigFileName)))

	root, err := FindProjectRoot(subDir)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadOrDefault(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path())
	assert.Equal(t, tmpDir, cfg.Dir())
	assert.Equal(t, filepath.Join(tmpDir, "pack"), cfg.PackPath())
}
