package build

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
)

const tracerName = "github.com/vango-dev/wasmpack/internal/build"

// Result contains the build output.
type Result struct {
	// ID identifies the build in logs and reload messages.
	ID string

	// Duration is how long the build took.
	Duration time.Duration

	// Pack is the absolute path of the pack directory.
	Pack string

	// Minified reports whether bundles were minified.
	Minified bool

	// Bundles are the bundle paths relative to Pack.
	Bundles []string

	// Files lists every file in Pack, sorted by path.
	Files []File
}

// Options configures the builder.
type Options struct {
	// Lock is held while the staging directory replaces the pack
	// directory. The dev server passes the lock guarding its file server.
	Lock sync.Locker

	// Logger receives progress and warnings. The zero value discards.
	Logger zerolog.Logger

	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// SkipReport skips sizing the output files.
	SkipReport bool
}

// Builder produces pack directories from a project configuration.
type Builder struct {
	config  *config.Config
	options Options
	tracer  trace.Tracer
}

// New creates a new builder.
func New(cfg *config.Config, options Options) *Builder {
	return &Builder{
		config:  cfg,
		options: options,
		tracer:  otel.Tracer(tracerName),
	}
}

// Build copies, bundles and swaps in a new pack directory.
func (b *Builder) Build(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	id := ulid.Make().String()

	ctx, span := b.tracer.Start(ctx, "wasmpack.build", trace.WithAttributes(
		attribute.String("build.id", id),
		attribute.String("build.mode", string(b.config.Mode)),
	))
	defer func() { endSpan(span, err) }()

	log := b.options.Logger.With().Str("build", id).Logger()

	packDir := b.config.PackPath()
	entries := b.config.EntryPaths()

	b.progress("Checking sources...")
	if err := b.preflight(ctx, entries); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(packDir), 0o755); err != nil {
		return nil, errors.New("E103").Wrap(err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(packDir), StagingPrefix(packDir))
	if err != nil {
		return nil, errors.New("E103").WithDetail("Cannot create staging directory").Wrap(err)
	}
	// MkdirTemp creates 0700; the swapped-in pack must stay readable.
	if err := os.Chmod(staging, 0o755); err != nil {
		os.RemoveAll(staging)
		return nil, errors.New("E103").WithDetail("Cannot create staging directory").Wrap(err)
	}
	swapped := false
	defer func() {
		if !swapped {
			os.RemoveAll(staging)
		}
	}()

	b.progress("Copying artifacts...")
	copied, err := b.copy(ctx, staging)
	if err != nil {
		return nil, err
	}

	b.progress("Bundling entries...")
	bundles, err := b.bundle(ctx, staging, entries, log)
	if err != nil {
		return nil, err
	}
	for _, rel := range bundles {
		if src, ok := copied[rel]; ok {
			log.Warn().Str("file", rel).Str("copied_from", src).Msg("Bundle output replaces a copied file")
		}
	}

	b.progress("Swapping pack directory...")
	if err := b.swap(ctx, staging, packDir); err != nil {
		return nil, err
	}
	swapped = true

	result = &Result{
		ID:       id,
		Pack:     packDir,
		Minified: b.config.Minimize(),
		Bundles:  bundles,
	}

	if !b.options.SkipReport {
		files, err := Report(packDir)
		if err != nil {
			return nil, err
		}
		result.Files = files
	}

	result.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("build.files", len(result.Files)))
	log.Debug().Dur("duration", result.Duration).Str("pack", packDir).Msg("Build complete")

	return result, nil
}

// preflight verifies every copy source and entry script exists.
func (b *Builder) preflight(ctx context.Context, entries map[string]string) error {
	_, span := b.tracer.Start(ctx, "wasmpack.preflight")
	var err error
	defer func() { endSpan(span, err) }()

	sources := make([]string, 0, len(b.config.Copy)+len(entries))
	for _, rule := range b.config.ResolvedCopyRules("") {
		sources = append(sources, rule.From)
	}
	for _, path := range entries {
		sources = append(sources, path)
	}
	err = Preflight(sources)
	return err
}

func (b *Builder) copy(ctx context.Context, staging string) (copied map[string]string, err error) {
	ctx, span := b.tracer.Start(ctx, "wasmpack.copy")
	defer func() { endSpan(span, err) }()

	resolved := b.config.ResolvedCopyRules(staging)
	rules := make([]CopyRule, 0, len(resolved))
	for _, rule := range resolved {
		rules = append(rules, CopyRule{Source: rule.From, Dest: rule.To})
	}
	copied, err = CopyAll(ctx, staging, rules)
	span.SetAttributes(attribute.Int("copy.files", len(copied)))
	return copied, err
}

func (b *Builder) bundle(ctx context.Context, staging string, entries map[string]string, log zerolog.Logger) (rels []string, err error) {
	ctx, span := b.tracer.Start(ctx, "wasmpack.bundle", trace.WithAttributes(
		attribute.Bool("bundle.minify", b.config.Minimize()),
	))
	defer func() { endSpan(span, err) }()

	workingDir, err := filepath.Abs(b.config.Dir())
	if err != nil {
		return nil, errors.New("E102").Wrap(err)
	}

	files, err := Bundle(ctx, BundleOptions{
		Entries:    entries,
		OutDir:     staging,
		Minify:     b.config.Minimize(),
		SourceMap:  b.config.SourceMaps,
		Externals:  b.config.Externals,
		WorkingDir: workingDir,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		rel, err := filepath.Rel(staging, file)
		if err != nil {
			return nil, errors.New("E102").Wrap(err)
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	sort.Strings(rels)
	return rels, nil
}

// swap replaces packDir with staging. The old pack directory is moved
// aside first and restored if the rename fails.
func (b *Builder) swap(ctx context.Context, staging, packDir string) (err error) {
	_, span := b.tracer.Start(ctx, "wasmpack.swap")
	defer func() { endSpan(span, err) }()

	if b.options.Lock != nil {
		b.options.Lock.Lock()
		defer b.options.Lock.Unlock()
	}

	old := ""
	if _, statErr := os.Stat(packDir); statErr == nil {
		old = staging + ".old"
		if err := os.Rename(packDir, old); err != nil {
			return errors.New("E104").WithDetail("Cannot move " + packDir + " aside").Wrap(err)
		}
	}

	if err := os.Rename(staging, packDir); err != nil {
		if old != "" {
			os.Rename(old, packDir)
		}
		return errors.New("E104").WithDetail("Cannot move staged build to " + packDir).Wrap(err)
	}

	if old != "" {
		os.RemoveAll(old)
	}
	return nil
}

// Clean removes the pack directory and any staging directories left by
// interrupted builds.
func (b *Builder) Clean() error {
	packDir := b.config.PackPath()
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(packDir), StagingPrefix(packDir)+"*"))
	for _, dir := range leftovers {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return os.RemoveAll(packDir)
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// StagingPrefix is the name prefix of the temporary directories a build
// for packDir is staged in.
func StagingPrefix(packDir string) string {
	return "." + strings.TrimPrefix(filepath.Base(packDir), ".") + ".staging-"
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
