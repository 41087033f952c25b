// internal/workspace/local.go
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gitter/internal/ignore"
	"gitter/internal/logging"

	"go.uber.org/zap"
)

// MetaDir is the repository metadata directory at the workspace root.
const MetaDir = ".gitter"

// ErrNotFound is returned by FindRoot outside any workspace.
var ErrNotFound = errors.New("not a gitter workspace (or any parent directory)")

// FindRoot searches for the workspace root by looking for the metadata
// directory in startDir and its parents.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, MetaDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}

// HashFunc maps file content to a blob id. It may or may not persist the
// content.
type HashFunc func(data []byte) (string, error)

// LocalWorkspace is the working tree on disk.
type LocalWorkspace struct {
	Root   string
	Rules  *ignore.Rules
	Logger *zap.Logger
}

func NewLocalWorkspace(root string, rules *ignore.Rules, logger *zap.Logger) *LocalWorkspace {
	return &LocalWorkspace{
		Root:   root,
		Rules:  rules,
		Logger: logging.OrNop(logger),
	}
}

// Scan returns the path->id mapping of every regular, non-ignored file in
// the working tree. The metadata directory is never included.
func (w *LocalWorkspace) Scan(hash HashFunc) (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if d.Name() == MetaDir || w.Rules.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.Rules.Match(rel) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		id, err := hash(data)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", rel, err)
		}
		files[rel] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}

	w.Logger.Debug("scanned workspace", zap.Int("files", len(files)))
	return files, nil
}

// Directories lists every non-ignored directory in the working tree,
// including the root.
func (w *LocalWorkspace) Directories() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return err
		}
		if rel != "." && (d.Name() == MetaDir || w.Rules.Match(filepath.ToSlash(rel))) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	return dirs, nil
}

// Rel converts an absolute path inside the workspace to its slash-separated
// entry path. ok is false for paths outside the root.
func (w *LocalWorkspace) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
