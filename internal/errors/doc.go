// Package errors provides structured, actionable errors for wasmpack.
//
// Every error carries a code (e.g. "E101") registered with a short message
// and an explanation, plus optional detail, suggestion and source
// location. Bundle errors reported by esbuild carry the script location so
// the terminal output can show the offending line.
//
// # Error Categories
//
//   - config: project file loading and validation
//   - build: copy rules, bundling and the pack directory swap
//   - dev: dev server startup and file watching
//   - publish: uploading a pack directory
//   - cli: command line usage
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail("build/main.wasm does not exist").
//	    WithSuggestion("Run the wasm compiler before packing")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Missing source artifact
//	//
//	//   build/main.wasm does not exist
//	//
//	//   Hint: Run the wasm compiler before packing
//
// Fprint writes the same error as one JSON object per line for tools that
// consume --log-json output.
package errors
