package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gitter/internal/content"
	gerrors "gitter/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, r *Repository, rel, data, msg string) string {
	t.Helper()
	write(t, r, rel, data)
	_, err := r.Add([]string{rel})
	require.NoError(t, err)
	id, err := r.Commit(msg)
	require.NoError(t, err)
	return id
}

func TestHashObjectAndCatFile(t *testing.T) {
	r := newRepo(t)

	id, err := r.HashObject(content.KindBlob, []byte("data"), false)
	require.NoError(t, err)
	assert.Equal(t, blobID("data"), id)
	assert.False(t, r.Objects.Exists(id))

	written, err := r.HashObject(content.KindBlob, []byte("data"), true)
	require.NoError(t, err)
	assert.Equal(t, id, written)

	kind, data, err := r.CatFile(id)
	require.NoError(t, err)
	assert.Equal(t, content.KindBlob, kind)
	assert.Equal(t, []byte("data"), data)

	c := commitFile(t, r, "a", "a", "msg")
	kind, data, err = r.CatFile("main")
	require.NoError(t, err)
	assert.Equal(t, content.KindCommit, kind)
	assert.Contains(t, string(data), "\nmsg\n")

	kind, _, err = r.CatFile(c)
	require.NoError(t, err)
	assert.Equal(t, content.KindCommit, kind)
}

func TestCatFileErrors(t *testing.T) {
	r := newRepo(t)

	// HEAD exists but has no commit yet
	_, _, err := r.CatFile("@")
	assert.Error(t, err)

	_, _, err = r.CatFile("nothing")
	assert.True(t, errors.Is(err, gerrors.ErrUnknownRevision))

	_, _, err = r.CatFile(blobID("missing"))
	assert.True(t, errors.Is(err, gerrors.ErrNotFoundObject))
}

func TestBranchesAndTags(t *testing.T) {
	r := newRepo(t)

	_, err := r.CreateBranch("dev", "")
	assert.Error(t, err, "no commit yet")

	c1 := commitFile(t, r, "a", "1", "one")

	id, err := r.CreateBranch("dev", "")
	require.NoError(t, err)
	assert.Equal(t, c1, id)

	_, err = r.CreateBranch("dev", "")
	assert.Error(t, err)

	c2 := commitFile(t, r, "a", "2", "two")

	id, err = r.CreateTag("v1", "dev")
	require.NoError(t, err)
	assert.Equal(t, c1, id)

	branches, err := r.Branches()
	require.NoError(t, err)
	assert.Equal(t, []Branch{
		{Name: "dev", ID: c1},
		{Name: "main", ID: c2, Current: true},
	}, branches)

	// Tags resolve ahead of branches with the same short name
	_, err = r.CreateBranch("v1", c2)
	require.NoError(t, err)
	got, err := r.Refs.ResolveRevision("v1")
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	all, err := r.ShowRefs()
	require.NoError(t, err)
	var names []string
	for _, n := range all {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"refs/heads/dev", "refs/heads/main", "refs/heads/v1", "refs/tags/v1"}, names)

	_, err = r.CreateBranch("../escape", "")
	assert.Error(t, err)
}

func TestReflog(t *testing.T) {
	r := newRepo(t)
	c1 := commitFile(t, r, "a", "1", "one")
	c2 := commitFile(t, r, "a", "2", "two")
	_, err := r.CreateBranch("dev", c1)
	require.NoError(t, err)

	entries, err := r.Reflog("", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, c2, entries[0].New)
	assert.Equal(t, c1, entries[0].Old)
	assert.Equal(t, "commit: two", entries[0].Reason)
	assert.Equal(t, "commit (initial): one", entries[1].Reason)

	dev, err := r.Reflog("dev", 0)
	require.NoError(t, err)
	require.Len(t, dev, 1)
	assert.Equal(t, "branch: created from "+c1, dev[0].Reason)

	limited, err := r.Reflog("refs/heads/main", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReflogDisabled(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	meta, _, err := Init(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(meta, "config.toml"), []byte("[reflog]\nenabled = false\n"), 0644))

	r, err := Open(root, nil)
	require.NoError(t, err)
	defer r.Close()

	commitFile(t, r, "a", "a", "one")
	_, err = r.Reflog("", 0)
	assert.ErrorIs(t, err, ErrReflogDisabled)
	assert.NoDirExists(t, filepath.Join(meta, reflogDir))
}

func TestRestage(t *testing.T) {
	r := newRepo(t)
	write(t, r, "tracked.txt", "v1")
	write(t, r, "loose.txt", "x")
	_, err := r.Add([]string{"tracked.txt"})
	require.NoError(t, err)

	write(t, r, "tracked.txt", "v2")
	staged, err := r.restage("tracked.txt")
	require.NoError(t, err)
	assert.True(t, staged)

	staged, err = r.restage("loose.txt")
	require.NoError(t, err)
	assert.False(t, staged)

	entries, err := r.Index().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, blobID("v2"), entries["tracked.txt"])
	assert.NotContains(t, entries, "loose.txt")
}

func TestExternalRenderer(t *testing.T) {
	r := newRepo(t)
	r.Config.Diff.Renderer = "external"
	r.Config.Diff.Command = filepath.Join(t.TempDir(), "no-such-diff")

	commitFile(t, r, "f", "1\n", "one")
	write(t, r, "f", "2\n")

	_, err := r.Diff(context.Background(), "", false)
	assert.True(t, errors.Is(err, gerrors.ErrCollaboratorFailure))
}
