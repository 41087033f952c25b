// Package index implements the staging area: a mapping from working-tree
// path to blob id, persisted as one JSON document.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitter/internal/content"
	"gitter/internal/ignore"
	"gitter/internal/logging"

	"go.uber.org/zap"
)

// Entries maps a slash-separated path, relative to the working tree root,
// to a blob id.
type Entries map[string]string

// Paths returns the entry paths in order.
func (e Entries) Paths() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Result reports what a staging call did.
type Result struct {
	Staged  []string
	Ignored []string
}

func (r *Result) merge(o Result) {
	r.Staged = append(r.Staged, o.Staged...)
	r.Ignored = append(r.Ignored, o.Ignored...)
}

type Options struct {
	// Root is the working tree the entry paths are relative to.
	Root string
	// Rules marks paths that are reported as ignored and never staged.
	Rules *ignore.Rules
	// Hidden names directories skipped silently, such as the metadata
	// directory.
	Hidden []string
	Logger *zap.Logger
}

// Index is loaded on first acquisition and cached for the lifetime of the
// value. Every acquisition writes the full mapping back when it ends.
type Index struct {
	path    string
	store   content.Store
	root    string
	rules   *ignore.Rules
	hidden  map[string]bool
	logger  *zap.Logger
	entries Entries
}

// New returns an index persisted at path, storing blobs in store.
func New(path string, store content.Store, opts Options) *Index {
	hidden := make(map[string]bool)
	for _, h := range opts.Hidden {
		hidden[h] = true
	}
	return &Index{
		path:   path,
		store:  store,
		root:   opts.Root,
		rules:  opts.Rules,
		hidden: hidden,
		logger: logging.OrNop(opts.Logger),
	}
}

// With acquires the live mapping for the duration of fn. The mapping is
// written back in full when fn returns, fails or panics, whether or not it
// was changed.
func (x *Index) With(fn func(Entries) error) (err error) {
	if x.entries == nil {
		if err := x.load(); err != nil {
			return err
		}
	}

	defer func() {
		if saveErr := x.save(); saveErr != nil {
			if err == nil {
				err = saveErr
			} else {
				err = errors.Join(err, saveErr)
			}
		}
	}()

	return fn(x.entries)
}

// Snapshot returns a copy of the current mapping.
func (x *Index) Snapshot() (Entries, error) {
	var out Entries
	err := x.With(func(e Entries) error {
		out = e.Clone()
		return nil
	})
	return out, err
}

func (x *Index) load() error {
	data, err := os.ReadFile(x.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			x.entries = make(Entries)
			return nil
		}
		return fmt.Errorf("reading index: %w", err)
	}

	entries := make(Entries)
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing index: %w", err)
		}
	}
	x.entries = entries
	x.logger.Debug("loaded index", zap.Int("entries", len(entries)))
	return nil
}

func (x *Index) save() error {
	data, err := json.Marshal(x.entries)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.WriteFile(x.path, data, 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// Add stages each path, descending into directories.
func (x *Index) Add(paths []string) (Result, error) {
	var res Result
	err := x.With(func(e Entries) error {
		for _, p := range paths {
			abs := x.abs(p)
			info, err := os.Stat(abs)
			if err != nil {
				return fmt.Errorf("adding %s: %w", p, err)
			}

			var r Result
			switch {
			case info.IsDir():
				r, err = x.addDirectory(e, abs)
			case info.Mode().IsRegular():
				r, err = x.addFile(e, abs)
			default:
				continue
			}
			if err != nil {
				return err
			}
			res.merge(r)
		}
		return nil
	})
	return res, err
}

// AddFile stages a single file.
func (x *Index) AddFile(path string) (Result, error) {
	var res Result
	err := x.With(func(e Entries) error {
		var err error
		res, err = x.addFile(e, x.abs(path))
		return err
	})
	return res, err
}

// AddDirectory stages every regular file below path.
func (x *Index) AddDirectory(path string) (Result, error) {
	var res Result
	err := x.With(func(e Entries) error {
		var err error
		res, err = x.addDirectory(e, x.abs(path))
		return err
	})
	return res, err
}

func (x *Index) addFile(e Entries, abs string) (Result, error) {
	rel, err := x.rel(abs)
	if err != nil {
		return Result{}, err
	}

	if x.rules.Match(rel) {
		x.logger.Info("ignoring path", zap.String("path", rel))
		return Result{Ignored: []string{rel}}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", rel, err)
	}
	id, err := x.store.Store(content.KindBlob, data)
	if err != nil {
		return Result{}, fmt.Errorf("storing %s: %w", rel, err)
	}

	e[rel] = id
	x.logger.Debug("staged file", zap.String("path", rel), zap.String("id", id))
	return Result{Staged: []string{rel}}, nil
}

func (x *Index) addDirectory(e Entries, abs string) (Result, error) {
	var res Result
	err := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := x.rel(path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if x.hidden[d.Name()] {
				return filepath.SkipDir
			}
			if rel != "." && x.rules.Match(rel) {
				x.logger.Info("ignoring path", zap.String("path", rel))
				res.Ignored = append(res.Ignored, rel)
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks, sockets and the like
		if !d.Type().IsRegular() {
			return nil
		}

		r, err := x.addFile(e, path)
		if err != nil {
			return err
		}
		res.merge(r)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walking %s: %w", abs, err)
	}
	return res, nil
}

func (x *Index) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(x.root, p)
}

func (x *Index) rel(abs string) (string, error) {
	rel, err := filepath.Rel(x.root, abs)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", abs, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the working tree", abs)
	}
	return filepath.ToSlash(rel), nil
}
