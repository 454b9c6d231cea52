// Package dataset is the directory-backed store of exported datasets. It
// owns listing, loading into frames, atomic saves, and collision-free
// output naming. Source files are never written in place.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tsdata/refinery/pkg/io/csvio"
	"github.com/tsdata/refinery/pkg/io/ioutils"
	"github.com/tsdata/refinery/pkg/io/parquetio"
	"github.com/tsdata/refinery/pkg/refinery"
)

type Options struct {
	NaiveLocation *time.Location // zone for timezone-naive timestamps
	SampleRows    int            // schema inference sample size
}

// Store serializes name reservation internally; two concurrent runs can
// never claim the same output name.
type Store struct {
	dir string
	opt Options

	mu sync.Mutex // guards reserve-then-create
}

func Open(dir string, opt Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr(err)
	}
	return &Store{dir: dir, opt: opt}, nil
}

func (s *Store) Dir() string { return s.dir }

// List returns the dataset file names in the store, sorted. Reservation
// placeholders are empty until Save commits, so zero-byte files are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, storageErr(err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !supportedExt(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func supportedExt(name string) bool {
	return strings.HasSuffix(name, ".csv") ||
		strings.HasSuffix(name, ".csv.gz") ||
		strings.HasSuffix(name, ".parquet")
}

// path resolves a dataset name inside the store directory, rejecting
// anything that is not a bare file name.
func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", &refinery.Error{Code: refinery.CodeStorage, Pos: -1, Row: -1,
			Msg: fmt.Sprintf("invalid dataset name %q", name)}
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) Exists(name string) bool {
	p, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads a dataset into a fresh Frame. Each call parses from disk, so
// callers own their copy outright.
func (s *Store) Load(name string) (*refinery.Frame, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(name, ".parquet"):
		r, err := parquetio.OpenReader(p, s.opt.SampleRows, s.opt.NaiveLocation)
		if err != nil {
			return nil, storageErr(err)
		}
		defer func() { _ = r.Close() }()
		f, err := r.ReadAll()
		if err != nil {
			return nil, loadErr(err)
		}
		return f, nil
	case supportedExt(name):
		r, err := csvio.Open(p, csvio.ReaderOptions{
			HasHeader:     true,
			SampleRows:    s.opt.SampleRows,
			NaiveLocation: s.opt.NaiveLocation,
		})
		if err != nil {
			return nil, storageErr(err)
		}
		defer func() { _ = r.Close() }()
		schema, err := r.InferSchema()
		if err != nil {
			return nil, storageErr(err)
		}
		f, err := r.ReadAll(schema)
		if err != nil {
			return nil, loadErr(err)
		}
		return f, nil
	default:
		return nil, &refinery.Error{Code: refinery.CodeStorage, Pos: -1, Row: -1,
			Msg: fmt.Sprintf("unsupported dataset format %q", name)}
	}
}

// Save writes a Frame under name atomically: the full content lands in a
// temp file first and is renamed into place, so no reader ever sees a
// partial dataset.
func (s *Store) Save(name string, f *refinery.Frame) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(name, ".parquet"):
		tmp := p + ".tmp"
		if err := parquetio.WriteAll(tmp, f); err != nil {
			_ = os.Remove(tmp)
			return storageErr(err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return storageErr(err)
		}
		return nil
	case supportedExt(name):
		tmp, err := os.CreateTemp(s.dir, ".tmp-*")
		if err != nil {
			return storageErr(err)
		}
		wc := ioutils.WrapMaybeCompressed(name, tmp)
		if err := csvio.Write(wc, f, csvio.WriterOptions{}); err != nil {
			_ = wc.Close()
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return storageErr(err)
		}
		if err := wc.Close(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return storageErr(err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return storageErr(err)
		}
		if err := os.Rename(tmp.Name(), p); err != nil {
			_ = os.Remove(tmp.Name())
			return storageErr(err)
		}
		return nil
	default:
		return &refinery.Error{Code: refinery.CodeStorage, Pos: -1, Row: -1,
			Msg: fmt.Sprintf("unsupported dataset format %q", name)}
	}
}

// Remove deletes a dataset (used to release an aborted reservation).
func (s *Store) Remove(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return storageErr(err)
	}
	return nil
}

// ReadRaw returns a dataset's bytes, for byte-level comparison in tests
// and integrity checks.
func (s *Store) ReadRaw(name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, storageErr(err)
	}
	return b, nil
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return &refinery.Error{Code: refinery.CodeStorage, Pos: -1, Row: -1, Err: err}
}

// loadErr keeps a typed refinery error (unparseable timestamp with row
// index) intact and wraps everything else as storage failure.
func loadErr(err error) error {
	if refinery.ErrorCode(err) != refinery.CodeUnknown {
		return err
	}
	return storageErr(err)
}
