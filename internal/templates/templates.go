package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/wasmpack/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Script is the bundled entry script the page loads.
	Script string

	// Static, Pack and Build are the project directories.
	Static string
	Pack   string
	Build  string
}

func (c Config) withDefaults() Config {
	if c.ProjectName == "" {
		c.ProjectName = "wasmpack"
	}
	if c.Script == "" {
		c.Script = "index.js"
	}
	if c.Static == "" {
		c.Static = "static"
	}
	if c.Pack == "" {
		c.Pack = "pack"
	}
	if c.Build == "" {
		c.Build = "build"
	}
	return c
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files maps relative paths to file contents. Paths are templates too.
	Files map[string]string
}

var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"canvas":  canvasTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E140").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: canvas, minimal")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create writes the template's files below dir and returns the relative
// paths written. Existing files are skipped unless force is set.
func (t *Template) Create(dir string, cfg Config, force bool) ([]string, error) {
	cfg = cfg.withDefaults()

	paths := make([]string, 0, len(t.Files))
	for relPath := range t.Files {
		paths = append(paths, relPath)
	}
	sort.Strings(paths)

	var written []string
	for _, relPath := range paths {
		target, err := render(relPath+":path", relPath, cfg)
		if err != nil {
			return written, err
		}
		content, err := render(relPath, t.Files[relPath], cfg)
		if err != nil {
			return written, err
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(target))
		if _, err := os.Stat(fullPath); err == nil && !force {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			return written, err
		}
		written = append(written, target)
	}

	return written, nil
}

func render(name, text string, cfg Config) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", errors.Newf(errors.CategoryCLI, "invalid template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", errors.Newf(errors.CategoryCLI, "template execute error %s: %v", name, err)
	}
	return buf.String(), nil
}

const gitignore = `/{{.Pack}}/
/{{.Build}}/
.{{.Pack}}.staging-*
`

func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "A page that loads the bundled entry script",
		Files: map[string]string{
			"{{.Static}}/index.html": `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.ProjectName}}</title>
</head>
<body>
  <script src="{{.Script}}"></script>
</body>
</html>
`,
			".gitignore": gitignore,
		},
	}
}

func canvasTemplate() *Template {
	return &Template{
		Name:        "canvas",
		Description: "Full-window canvas with a status line",
		Files: map[string]string{
			"{{.Static}}/index.html": `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.ProjectName}}</title>
  <link rel="stylesheet" href="style.css">
</head>
<body>
  <canvas id="canvas" oncontextmenu="event.preventDefault()" tabindex="-1"></canvas>
  <div id="status">Loading...</div>
  <script>
    var statusElement = document.getElementById('status');
    var Module = {
      canvas: document.getElementById('canvas'),
      print: function(text) { console.log(text); },
      printErr: function(text) { console.error(text); },
      setStatus: function(text) {
        statusElement.textContent = text;
        statusElement.hidden = !text;
      },
      onRuntimeInitialized: function() {
        statusElement.hidden = true;
      }
    };
  </script>
  <script src="{{.Script}}"></script>
</body>
</html>
`,
			"{{.Static}}/style.css": `html, body {
  margin: 0;
  height: 100%;
  overflow: hidden;
  background: #111;
}

#canvas {
  display: block;
  width: 100vw;
  height: 100vh;
}

#status {
  position: fixed;
  bottom: 1rem;
  left: 1rem;
  color: #ccc;
  font: 14px system-ui, sans-serif;
}
`,
			".gitignore": gitignore,
		},
	}
}
