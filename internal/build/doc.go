// Package build assembles the pack directory served to the browser.
//
// A build:
//   - checks that every copy source and entry script exists
//   - copies the static directory, binary module and data blob into a
//     staging directory, preserving file names
//   - bundles each entry script with esbuild into <name>.js
//   - swaps the staging directory into place as the pack directory
//   - reports every file written with its size and gzipped size
//
// A missing source fails the build with E101 before anything is written,
// so the previous pack directory (if any) is left as it was.
//
// # Usage
//
//	builder := build.New(cfg, build.Options{Logger: log})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    log.Fatal().Err(err).Send()
//	}
//
//	fmt.Printf("Built %s in %s\n", result.Pack, result.Duration)
//
// # Output Structure
//
//	pack/
//	├── index.js       # bundled build/main.js
//	├── index.html     # from static/
//	├── main.wasm      # binary module, name unchanged
//	└── main.data      # data blob, name unchanged
package build
