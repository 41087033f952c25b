// Package refs stores named, mutable pointers into the object space.
//
// A reference lives in a file under the metadata directory whose path is
// the reference name (HEAD, MERGE_HEAD, refs/heads/main, ...). The file
// holds either a raw object id or "ref: <other name>".
package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitter/internal/content"
	gerrors "gitter/internal/errors"
	"gitter/internal/logging"

	"go.uber.org/zap"
)

const (
	Head      = "HEAD"
	MergeHead = "MERGE_HEAD"

	// CurrentToken is shorthand for HEAD in revisions
	CurrentToken = "@"

	Namespace   = "refs/"
	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"

	symbolicPrefix = "ref:"
)

// Reference is the value of a named pointer. An empty Value means the
// reference is absent.
type Reference struct {
	Symbolic bool
	Value    string
}

// Absent reports whether the reference has no stored value.
func (r Reference) Absent() bool {
	return r.Value == ""
}

// Direct returns a non-symbolic reference to id.
func Direct(id string) Reference {
	return Reference{Value: id}
}

// Symbolic returns a reference pointing at another reference name.
func Symbolic(name string) Reference {
	return Reference{Symbolic: true, Value: name}
}

// Named pairs a reference with its name.
type Named struct {
	Name string
	Ref  Reference
}

// Journal receives every successful update and delete.
type Journal interface {
	Record(ref, oldValue, newValue, reason string) error
}

// Store reads and writes references under a metadata directory
type Store struct {
	dir     string
	journal Journal
	logger  *zap.Logger
}

type Option func(*Store)

// WithJournal records updates to j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Resolve returns the value of name. With deref, symbolic references are
// followed until a direct or absent value is reached.
func (s *Store) Resolve(name string, deref bool) (Reference, error) {
	_, ref, err := s.resolve(name, deref)
	return ref, err
}

// resolve also returns the name where the final value is stored.
func (s *Store) resolve(name string, deref bool) (string, Reference, error) {
	var chain []string
	seen := make(map[string]bool)

	for {
		if err := validName(name); err != nil {
			return "", Reference{}, err
		}
		if seen[name] {
			return "", Reference{}, gerrors.ReferenceCycle(append(chain, name))
		}
		seen[name] = true
		chain = append(chain, name)

		ref, err := s.read(name)
		if err != nil {
			return "", Reference{}, err
		}
		if !ref.Symbolic || !deref {
			return name, ref, nil
		}
		name = ref.Value
	}
}

func (s *Store) read(name string) (Reference, error) {
	path := s.path(name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Reference{}, nil
		}
		return Reference{}, fmt.Errorf("reading reference %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return Reference{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("reading reference %s: %w", name, err)
	}

	value := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(value, symbolicPrefix); ok {
		return Symbolic(strings.TrimSpace(target)), nil
	}
	return Direct(value), nil
}

type updateOptions struct {
	deref  bool
	reason string
}

type UpdateOption func(*updateOptions)

// NoDeref writes to name itself even when it is symbolic.
func NoDeref() UpdateOption {
	return func(o *updateOptions) { o.deref = false }
}

// WithReason sets the journal message for the update.
func WithReason(reason string) UpdateOption {
	return func(o *updateOptions) { o.reason = reason }
}

// Update stores value at the location name ultimately resolves to.
func (s *Store) Update(name string, value Reference, opts ...UpdateOption) error {
	o := updateOptions{deref: true, reason: "update"}
	for _, opt := range opts {
		opt(&o)
	}

	if value.Value == "" {
		return gerrors.InvalidReferenceValue(name)
	}
	if value.Symbolic {
		if err := validName(value.Value); err != nil {
			return err
		}
	}

	target, old, err := s.resolve(name, o.deref)
	if err != nil {
		return err
	}

	text := value.Value
	if value.Symbolic {
		text = symbolicPrefix + " " + value.Value
	}

	path := s.path(target)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating reference directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing reference %s: %w", target, err)
	}

	s.logger.Debug("updated reference",
		zap.String("ref", target),
		zap.String("value", text))
	return s.record(target, old, value, o.reason)
}

// Delete removes the entry name resolves to. Deleting an absent
// reference is not an error.
func (s *Store) Delete(name string, deref bool) error {
	target, old, err := s.resolve(name, deref)
	if err != nil {
		return err
	}

	if err := os.Remove(s.path(target)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("deleting reference %s: %w", target, err)
	}

	s.logger.Debug("deleted reference", zap.String("ref", target))
	return s.record(target, old, Reference{}, "delete")
}

func (s *Store) record(name string, old, value Reference, reason string) error {
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Record(name, formatValue(old), formatValue(value), reason); err != nil {
		return fmt.Errorf("journaling %s: %w", name, err)
	}
	return nil
}

func formatValue(r Reference) string {
	if r.Symbolic {
		return symbolicPrefix + " " + r.Value
	}
	return r.Value
}

// List returns HEAD and every reference under refs/ whose name starts with
// prefix, sorted by name.
func (s *Store) List(prefix string, deref bool) ([]Named, error) {
	names := []string{Head}

	root := filepath.Join(s.dir, "refs")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	sort.Strings(names[1:])

	var out []Named
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ref, err := s.Resolve(name, deref)
		if err != nil {
			return nil, err
		}
		out = append(out, Named{Name: name, Ref: ref})
	}
	return out, nil
}

// ResolveRevision turns user input into an object id. It tries the name as
// given, then under refs/, refs/tags/ and refs/heads/, and finally accepts
// a literal full-length id. An empty result with a nil error means the
// revision names a reference that has no value yet.
func (s *Store) ResolveRevision(rev string) (string, error) {
	if rev == CurrentToken {
		rev = Head
	}
	if rev == "" {
		return "", gerrors.UnknownRevision(rev)
	}

	candidates := []string{
		rev,
		Namespace + rev,
		TagsPrefix + rev,
		HeadsPrefix + rev,
	}
	for _, name := range candidates {
		if validName(name) != nil {
			continue
		}
		ref, err := s.Resolve(name, false)
		if err != nil {
			return "", err
		}
		if ref.Absent() {
			continue
		}
		ref, err = s.Resolve(name, true)
		if err != nil {
			return "", err
		}
		return ref.Value, nil
	}

	if content.IsID(rev) {
		return rev, nil
	}
	return "", gerrors.UnknownRevision(rev)
}

// CurrentBranch returns the short branch name HEAD points at. ok is false
// when HEAD is detached or points outside refs/heads/.
func (s *Store) CurrentBranch() (name string, ok bool, err error) {
	head, err := s.Resolve(Head, false)
	if err != nil {
		return "", false, err
	}
	if !head.Symbolic {
		return "", false, nil
	}
	short, found := strings.CutPrefix(head.Value, HeadsPrefix)
	if !found || short == "" {
		return "", false, nil
	}
	return short, true, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// validName keeps reference files inside the metadata directory.
func validName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsAny(name, "\\\x00") {
		return fmt.Errorf("invalid reference name %q", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid reference name %q", name)
		}
	}
	return nil
}
