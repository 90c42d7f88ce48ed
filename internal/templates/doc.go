// Package templates provides the starter files written by wasmpack init.
//
// # Available Templates
//
//   - minimal: a page that loads the bundled entry script
//   - canvas: a full-window canvas page with a status line and the
//     Module hooks emscripten output looks for
//
// # Usage
//
//	tmpl, err := templates.Get("canvas")
//	if err != nil {
//	    return err
//	}
//	written, err := tmpl.Create(projectDir, templates.Config{ProjectName: "demo"}, false)
//
// # Template Variables
//
//	{{.ProjectName}} - Name of the project, used as the page title
//	{{.Script}}      - File name of the bundled entry script
//	{{.Static}}      - Static directory the pages are written to
//	{{.Pack}}        - Pack directory, ignored in .gitignore
//	{{.Build}}       - Compiler output directory, ignored in .gitignore
package templates
