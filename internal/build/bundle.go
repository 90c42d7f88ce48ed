package build

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/vango-dev/wasmpack/internal/errors"
)

// DefaultExternals are the Node built-ins emscripten glue code requires
// behind its ENVIRONMENT_IS_NODE checks. They never load in a browser.
var DefaultExternals = []string{
	"fs",
	"path",
	"crypto",
	"ws",
	"worker_threads",
	"url",
	"child_process",
	"module",
	"perf_hooks",
}

// BundleOptions configures Bundle.
type BundleOptions struct {
	// Entries maps output names to absolute entry script paths.
	Entries map[string]string

	// OutDir receives <name>.js for every entry.
	OutDir string

	// Minify enables whitespace, identifier and syntax minification.
	Minify bool

	// SourceMap writes linked source maps next to the bundles.
	SourceMap bool

	// Externals are appended to DefaultExternals.
	Externals []string

	// WorkingDir resolves relative paths in esbuild messages.
	WorkingDir string

	Logger zerolog.Logger
}

// Bundle runs esbuild for every entry and returns the absolute paths of
// the files it wrote.
func Bundle(ctx context.Context, opts BundleOptions) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(opts.Entries))
	for name := range opts.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	entryPoints := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  opts.Entries[name],
			OutputPath: name,
		})
	}

	externals := append(append([]string{}, DefaultExternals...), opts.Externals...)

	opts.Logger.Debug().Strs("entries", names).Bool("minify", opts.Minify).Msg("Bundling")

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       opts.WorkingDir,
		Bundle:              true,
		Write:               true,
		Outdir:              opts.OutDir,
		EntryNames:          "[name]",
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		External:            externals,
		MinifyWhitespace:    opts.Minify,
		MinifyIdentifiers:   opts.Minify,
		MinifySyntax:        opts.Minify,
		Sourcemap:           cond(opts.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		LogLevel:            api.LogLevelSilent,
	})

	for _, msg := range result.Warnings {
		opts.Logger.Warn().Str("warning", msg.Text).Str("at", locationString(msg.Location)).Msg("Bundle warning")
	}

	if len(result.Errors) > 0 {
		return nil, bundleError(result.Errors, opts.WorkingDir)
	}

	files := make([]string, 0, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		opts.Logger.Debug().Str("file", file.Path).Msg("Bundled")
		files = append(files, file.Path)
	}
	return files, nil
}

// bundleError converts esbuild messages to an E102 pointing at the first
// located message.
func bundleError(msgs []api.Message, workingDir string) error {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if loc := locationString(msg.Location); loc != "" {
			lines = append(lines, loc+": "+msg.Text)
		} else {
			lines = append(lines, msg.Text)
		}
	}

	err := errors.New("E102").WithDetail(strings.Join(lines, "\n"))
	for _, msg := range msgs {
		if msg.Location == nil {
			continue
		}
		file := msg.Location.File
		if !filepath.IsAbs(file) && workingDir != "" {
			file = filepath.Join(workingDir, file)
		}
		// esbuild columns are zero-based.
		err = err.WithLocation(file, msg.Location.Line, msg.Location.Column+1)
		break
	}
	return err
}

func locationString(loc *api.Location) string {
	if loc == nil {
		return ""
	}
	return (&errors.Location{File: loc.File, Line: loc.Line, Column: loc.Column + 1}).String()
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
