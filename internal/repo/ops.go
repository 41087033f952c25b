package repo

import (
	"context"
	"fmt"

	"gitter/internal/commit"
	"gitter/internal/diff"
	"gitter/internal/index"
	"gitter/internal/refs"
	"gitter/internal/tree"

	"go.uber.org/zap"
)

// Add stages files and directories. Ignored paths are reported, not staged.
func (r *Repository) Add(paths []string) (index.Result, error) {
	res, err := r.Index().Add(paths)
	if err != nil {
		return res, err
	}
	r.logger.Info("staged paths",
		zap.Int("staged", len(res.Staged)),
		zap.Int("ignored", len(res.Ignored)))
	return res, nil
}

// Commit records the index as a new commit on top of HEAD.
func (r *Repository) Commit(message string) (string, error) {
	entries, err := r.Index().Snapshot()
	if err != nil {
		return "", err
	}

	root, err := tree.Build(entries)
	if err != nil {
		return "", err
	}
	treeID, err := r.Trees.Write(root)
	if err != nil {
		return "", fmt.Errorf("writing tree: %w", err)
	}

	return r.Commits.Create(treeID, message)
}

// Status describes HEAD and the pending changes of the working tree.
type Status struct {
	// Branch is empty when HEAD is detached.
	Branch string
	// Head is the commit HEAD resolves to, empty before the first commit.
	Head      string
	MergeHead string
	// Staged compares HEAD with the index.
	Staged []diff.Change
	// Unstaged compares the index with the working tree.
	Unstaged []diff.Change
}

func (r *Repository) Status() (*Status, error) {
	head, err := r.Refs.ResolveRevision(refs.CurrentToken)
	if err != nil {
		return nil, err
	}
	branch, _, err := r.Refs.CurrentBranch()
	if err != nil {
		return nil, err
	}
	merge, err := r.Refs.Resolve(refs.MergeHead, true)
	if err != nil {
		return nil, err
	}

	headTree, err := r.commitTree(head)
	if err != nil {
		return nil, err
	}
	staged, err := r.Index().Snapshot()
	if err != nil {
		return nil, err
	}
	working, err := r.Workspace.Scan(hashOnly)
	if err != nil {
		return nil, err
	}

	return &Status{
		Branch:    branch,
		Head:      head,
		MergeHead: merge.Value,
		Staged:    diff.Classify(headTree, staged),
		Unstaged:  diff.Classify(staged, working),
	}, nil
}

// LogEntry is one commit of a history listing with the names of the
// references pointing at it.
type LogEntry struct {
	ID     string
	Commit *commit.Commit
	Refs   []string
}

// Log lists the history reachable from start, mainline first.
func (r *Repository) Log(start string) ([]LogEntry, error) {
	named, err := r.Refs.List("", true)
	if err != nil {
		return nil, err
	}
	byID := make(map[string][]string)
	for _, n := range named {
		if !n.Ref.Absent() {
			byID[n.Ref.Value] = append(byID[n.Ref.Value], n.Name)
		}
	}

	var entries []LogEntry
	for id, err := range r.Commits.Traverse(start) {
		if err != nil {
			return nil, err
		}
		c, err := r.Commits.Decode(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LogEntry{ID: id, Commit: c, Refs: byID[id]})
	}
	return entries, nil
}

// Diff renders changes as unified diff text.
//
// With cached, the index is compared against revision, or HEAD when
// revision is empty. Otherwise the working tree is compared against
// revision, or the index when revision is empty.
func (r *Repository) Diff(ctx context.Context, revision string, cached bool) ([]byte, error) {
	var from, to map[string]string

	if revision != "" {
		id, err := r.Refs.ResolveRevision(revision)
		if err != nil {
			return nil, err
		}
		if from, err = r.commitTree(id); err != nil {
			return nil, err
		}
	}

	var err error
	if cached {
		if to, err = r.Index().Snapshot(); err != nil {
			return nil, err
		}
		if revision == "" {
			head, err := r.Refs.ResolveRevision(refs.CurrentToken)
			if err != nil {
				return nil, err
			}
			if from, err = r.commitTree(head); err != nil {
				return nil, err
			}
		}
	} else {
		// Working files are stored so the engine can load them
		if to, err = r.Workspace.Scan(r.storeBlob); err != nil {
			return nil, err
		}
		if revision == "" {
			if from, err = r.Index().Snapshot(); err != nil {
				return nil, err
			}
		}
	}

	return r.DiffEngine().Render(ctx, from, to)
}
