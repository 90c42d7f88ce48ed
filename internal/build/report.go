package build

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"

	"github.com/vango-dev/wasmpack/internal/errors"
)

// File describes one file in the pack directory.
type File struct {
	// Path is relative to the pack directory, slash separated.
	Path string

	// Size is the file size in bytes.
	Size int64

	// GzipSize is the size after gzip at the default level, which is
	// roughly what a static host sends over the wire.
	GzipSize int64
}

// List walks dir and returns every file with its size, sorted by path.
// GzipSize is left zero.
func List(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.New("E103").WithDetail("Cannot list " + dir).Wrap(err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Report is List with GzipSize filled in.
func Report(dir string) ([]File, error) {
	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	for i := range files {
		path := filepath.Join(dir, filepath.FromSlash(files[i].Path))
		gz, err := gzipSize(path)
		if err != nil {
			return nil, errors.New("E103").WithDetail("Cannot size " + path).Wrap(err)
		}
		files[i].GzipSize = gz
	}
	return files, nil
}

// TotalSize sums Size and GzipSize over files.
func TotalSize(files []File) (size, gzipped int64) {
	for _, f := range files {
		size += f.Size
		gzipped += f.GzipSize
	}
	return size, gzipped
}

func gzipSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var counter countingWriter
	zw := gzip.NewWriter(&counter)
	if _, err := io.Copy(zw, f); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return counter.n, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
