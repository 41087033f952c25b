package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gitter/internal/content"
	"gitter/internal/ignore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root  string
	path  string
	store *content.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	meta := filepath.Join(root, ".gitter")
	store, err := content.NewFileStore(filepath.Join(meta, "objects"), content.Options{})
	require.NoError(t, err)
	return &fixture{root: root, path: filepath.Join(meta, "index"), store: store}
}

func (f *fixture) index(patterns ...string) *Index {
	return New(f.path, f.store, Options{
		Root:   f.root,
		Rules:  ignore.New(patterns...),
		Hidden: []string{".gitter"},
	})
}

func (f *fixture) write(t *testing.T, rel, data string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func (f *fixture) persisted(t *testing.T) Entries {
	t.Helper()
	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	var e Entries
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestWithStartsEmptyAndAlwaysWrites(t *testing.T) {
	f := newFixture(t)
	x := f.index()

	_, err := os.Stat(f.path)
	require.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, x.With(func(e Entries) error {
		assert.Empty(t, e)
		return nil
	}))

	// Written even though nothing changed
	assert.Equal(t, Entries{}, f.persisted(t))
}

func TestWithWritesOnFailure(t *testing.T) {
	f := newFixture(t)
	x := f.index()
	boom := errors.New("boom")

	err := x.With(func(e Entries) error {
		e["a.txt"] = content.Hash(content.KindBlob, []byte("a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, f.persisted(t), "a.txt")
}

func TestWithWritesOnPanic(t *testing.T) {
	f := newFixture(t)
	x := f.index()

	assert.Panics(t, func() {
		_ = x.With(func(e Entries) error {
			e["p.txt"] = content.Hash(content.KindBlob, []byte("p"))
			panic("unexpected")
		})
	})
	assert.Contains(t, f.persisted(t), "p.txt")
}

func TestLoadedOncePerValue(t *testing.T) {
	f := newFixture(t)
	x := f.index()
	require.NoError(t, x.With(func(e Entries) error {
		e["a"] = "1"
		return nil
	}))

	// Changes on disk after the first load are not seen by the same value.
	require.NoError(t, os.WriteFile(f.path, []byte(`{"b":"2"}`), 0644))
	snap, err := x.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Entries{"a": "1"}, snap)

	// A fresh value reads the document again.
	snap, err = f.index().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Entries{"a": "1"}, snap)
}

func TestAddFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "docs/readme.md", "hello")
	x := f.index()

	res, err := x.AddFile(filepath.Join("docs", "readme.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/readme.md"}, res.Staged)

	want := content.Hash(content.KindBlob, []byte("hello"))
	assert.Equal(t, Entries{"docs/readme.md": want}, f.persisted(t))

	blob, err := f.store.Load(want, content.KindBlob)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), blob)
}

func TestAddFileIgnored(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tmp/scratch.txt", "x")
	x := f.index("tmp")

	res, err := x.AddFile(filepath.Join(f.root, "tmp", "scratch.txt"))
	require.NoError(t, err)
	assert.Empty(t, res.Staged)
	assert.Equal(t, []string{"tmp/scratch.txt"}, res.Ignored)
	assert.Empty(t, f.persisted(t))
}

func TestAddDirectory(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "a")
	f.write(t, "src/b.go", "b")
	f.write(t, "src/deep/c.go", "c")
	f.write(t, "build/out.bin", "o")
	require.NoError(t, os.Symlink(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "link")))
	x := f.index("build")

	res, err := x.AddDirectory(".")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "src/b.go", "src/deep/c.go"}, res.Staged)
	assert.Equal(t, []string{"build"}, res.Ignored)

	got := f.persisted(t)
	assert.Equal(t, []string{"a.txt", "src/b.go", "src/deep/c.go"}, got.Paths())
}

func TestAdd(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "a")
	f.write(t, "src/b.go", "b")
	x := f.index()

	res, err := x.Add([]string{"a.txt", "src"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "src/b.go"}, res.Staged)

	// Re-adding modified content replaces the id.
	f.write(t, "a.txt", "changed")
	_, err = x.Add([]string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, content.Hash(content.KindBlob, []byte("changed")), f.persisted(t)["a.txt"])

	_, err = x.Add([]string{"missing.txt"})
	assert.Error(t, err)
}

func TestAddOutsideRoot(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	_, err := f.index().AddFile(outside)
	assert.Error(t, err)
}
