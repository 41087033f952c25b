package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gitter/internal/content"
	"gitter/internal/reflog"
	"gitter/internal/refs"
	"gitter/internal/watch"

	"go.uber.org/zap"
)

// ErrReflogDisabled is returned by Reflog when reflog.enabled is false.
var ErrReflogDisabled = errors.New("reflog is disabled")

// HashObject returns the id of data as kind, storing it when write is set.
func (r *Repository) HashObject(kind content.Kind, data []byte, write bool) (string, error) {
	if !write {
		return content.Hash(kind, data), nil
	}
	return r.Objects.Store(kind, data)
}

// CatFile resolves rev and returns the stored object.
func (r *Repository) CatFile(rev string) (content.Kind, []byte, error) {
	id, err := r.resolveExisting(rev)
	if err != nil {
		return "", nil, err
	}
	return r.Objects.Read(id)
}

// resolveExisting resolves rev and fails when it names a reference that
// has no value yet.
func (r *Repository) resolveExisting(rev string) (string, error) {
	id, err := r.Refs.ResolveRevision(rev)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("revision %s does not point at a commit yet", rev)
	}
	return id, nil
}

// Branch is a local branch.
type Branch struct {
	Name    string
	ID      string
	Current bool
}

// Branches lists local branches by name.
func (r *Repository) Branches() ([]Branch, error) {
	current, _, err := r.Refs.CurrentBranch()
	if err != nil {
		return nil, err
	}
	named, err := r.Refs.List(refs.HeadsPrefix, true)
	if err != nil {
		return nil, err
	}

	var out []Branch
	for _, n := range named {
		name := strings.TrimPrefix(n.Name, refs.HeadsPrefix)
		out = append(out, Branch{Name: name, ID: n.Ref.Value, Current: name == current})
	}
	return out, nil
}

// CreateBranch points a new branch at start, or HEAD when start is empty.
func (r *Repository) CreateBranch(name, start string) (string, error) {
	return r.createRef(refs.HeadsPrefix, name, start, "branch: created from ")
}

// CreateTag points a new tag at rev, or HEAD when rev is empty.
func (r *Repository) CreateTag(name, rev string) (string, error) {
	return r.createRef(refs.TagsPrefix, name, rev, "tag: ")
}

func (r *Repository) createRef(prefix, name, rev, reason string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("missing name")
	}
	if rev == "" {
		rev = refs.Head
	}

	full := prefix + name
	existing, err := r.Refs.Resolve(full, false)
	if err != nil {
		return "", err
	}
	if !existing.Absent() {
		return "", fmt.Errorf("%s already exists", full)
	}

	id, err := r.resolveExisting(rev)
	if err != nil {
		return "", err
	}
	if err := r.Refs.Update(full, refs.Direct(id), refs.NoDeref(), refs.WithReason(reason+rev)); err != nil {
		return "", err
	}
	return id, nil
}

// ShowRefs lists every reference under refs/ with its resolved id.
func (r *Repository) ShowRefs() ([]refs.Named, error) {
	return r.Refs.List(refs.Namespace, true)
}

// Reflog returns the journal of ref, newest first. Short names are read as
// branches; an empty name means the current branch, or HEAD when detached.
func (r *Repository) Reflog(ref string, limit int) ([]reflog.Entry, error) {
	if r.journal == nil {
		return nil, ErrReflogDisabled
	}

	switch {
	case ref == "":
		branch, ok, err := r.Refs.CurrentBranch()
		if err != nil {
			return nil, err
		}
		ref = refs.Head
		if ok {
			ref = refs.HeadsPrefix + branch
		}
	case ref == refs.Head || ref == refs.MergeHead || strings.HasPrefix(ref, refs.Namespace):
	default:
		ref = refs.HeadsPrefix + ref
	}

	return r.journal.entries(ref, limit)
}

// Watch re-stages tracked files as they change until ctx is done. onStage,
// when set, is called with each re-staged path.
func (r *Repository) Watch(ctx context.Context, onStage func(path string)) error {
	w, err := watch.New(r.Workspace, r.restage, watch.Options{
		Logger:  r.logger,
		OnStage: onStage,
	})
	if err != nil {
		return err
	}
	r.logger.Info("watching working tree", zap.String("root", r.Root))
	return w.Run(ctx)
}

// restage stages rel again if the index already tracks it. Each call reads
// the index from disk.
func (r *Repository) restage(rel string) (bool, error) {
	x := r.Index()
	entries, err := x.Snapshot()
	if err != nil {
		return false, err
	}
	if _, tracked := entries[rel]; !tracked {
		return false, nil
	}

	res, err := x.AddFile(filepath.FromSlash(rel))
	if err != nil {
		return false, err
	}
	return len(res.Staged) > 0, nil
}
