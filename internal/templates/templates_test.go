package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/wasmpack/internal/errors"
)

func TestGet(t *testing.T) {
	for _, name := range List() {
		tmpl, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, tmpl.Name)
		assert.NotEmpty(t, tmpl.Description)
	}

	_, err := Get("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E140"))
}

func TestList(t *testing.T) {
	assert.Equal(t, []string{"canvas", "minimal"}, List())
}

func TestCreate_Minimal(t *testing.T) {
	dir := t.TempDir()
	tmpl, err := Get("minimal")
	require.NoError(t, err)

	written, err := tmpl.Create(dir, Config{ProjectName: "demo"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "static/index.html"}, written)

	page, err := os.ReadFile(filepath.Join(dir, "static", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>demo</title>")
	assert.Contains(t, string(page), `<script src="index.js"></script>`)

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "/pack/\n/build/\n.pack.staging-*\n", string(ignore))
}

func TestCreate_CustomDirectories(t *testing.T) {
	dir := t.TempDir()
	tmpl, err := Get("canvas")
	require.NoError(t, err)

	written, err := tmpl.Create(dir, Config{Static: "web", Pack: "dist", Script: "app.js"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "web/index.html", "web/style.css"}, written)

	page, err := os.ReadFile(filepath.Join(dir, "web", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `<script src="app.js"></script>`)
	assert.Contains(t, string(page), "<title>wasmpack</title>")
	assert.Contains(t, string(page), "var Module")
}

func TestCreate_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "static", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0o755))
	require.NoError(t, os.WriteFile(page, []byte("mine"), 0o644))

	tmpl, err := Get("minimal")
	require.NoError(t, err)

	written, err := tmpl.Create(dir, Config{}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore"}, written)
	data, _ := os.ReadFile(page)
	assert.Equal(t, "mine", string(data))

	written, err = tmpl.Create(dir, Config{}, true)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	data, _ = os.ReadFile(page)
	assert.NotEqual(t, "mine", string(data))
}
