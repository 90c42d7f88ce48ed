package build

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vango-dev/wasmpack/internal/errors"
)

// CopyRule copies Source into the directory Dest. A directory source has
// its contents copied; a file source keeps its base name.
type CopyRule struct {
	Source string
	Dest   string
}

// Preflight checks that every source exists. All missing sources are
// reported together in a single E101.
func Preflight(sources []string) error {
	var missing []string
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, src)
				continue
			}
			return errors.New("E103").
				WithDetail("Cannot stat " + src).
				Wrap(err)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.New("E101").
		WithDetail("Not found:\n  " + strings.Join(missing, "\n  ")).
		WithSuggestion("Run the wasm compiler so the build directory is populated, or fix the copy rules").
		Wrap(os.ErrNotExist)
}

// CopyAll applies rules in order. Later rules overwrite files written by
// earlier ones. It returns the written files keyed by their path relative
// to root, mapped to the source they came from.
func CopyAll(ctx context.Context, root string, rules []CopyRule) (map[string]string, error) {
	written := make(map[string]string)
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := copyRule(ctx, root, rule, written); err != nil {
			return written, err
		}
	}
	return written, nil
}

func copyRule(ctx context.Context, root string, rule CopyRule, written map[string]string) error {
	info, err := os.Stat(rule.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return Preflight([]string{rule.Source})
		}
		return errors.New("E103").Wrap(err)
	}

	if !info.IsDir() {
		dst := filepath.Join(rule.Dest, filepath.Base(rule.Source))
		if err := copyFile(rule.Source, dst, info.Mode()); err != nil {
			return err
		}
		record(root, dst, rule.Source, written)
		return nil
	}

	walkRoot, err := filepath.EvalSymlinks(rule.Source)
	if err != nil {
		return errors.New("E103").Wrap(err)
	}

	return filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.New("E103").WithDetail("Cannot read " + path).Wrap(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return errors.New("E103").Wrap(err)
		}
		dst := filepath.Join(rule.Dest, rel)

		if d.IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return errors.New("E103").Wrap(err)
			}
			return nil
		}

		// Symlinks to files are followed; symlinks to directories are skipped.
		fi, err := os.Stat(path)
		if err != nil {
			return errors.New("E103").WithDetail("Cannot stat " + path).Wrap(err)
		}
		if fi.IsDir() {
			return nil
		}

		if err := copyFile(path, dst, fi.Mode()); err != nil {
			return err
		}
		record(root, dst, path, written)
		return nil
	})
}

func record(root, dst, src string, written map[string]string) {
	rel, err := filepath.Rel(root, dst)
	if err != nil {
		rel = dst
	}
	written[filepath.ToSlash(rel)] = src
}

// copyFile copies a file, creating parent directories and keeping the
// permission bits of the source.
func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.New("E103").Wrap(err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.New("E103").WithDetail("Cannot open " + src).Wrap(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return errors.New("E103").WithDetail("Cannot create " + dst).Wrap(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.New("E103").WithDetail("Cannot copy " + src).Wrap(err)
	}
	if err := out.Close(); err != nil {
		return errors.New("E103").Wrap(err)
	}
	return nil
}
