package content

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gerrors "gitter/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts Options) (*FileStore, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "objects")
	s, err := NewFileStore(root, opts)
	require.NoError(t, err)
	return s, root
}

func TestHash(t *testing.T) {
	// Same (kind, content) always gives the same id; the kind is part of it.
	assert.Equal(t, Hash(KindBlob, []byte("hello")), Hash(KindBlob, []byte("hello")))
	assert.NotEqual(t, Hash(KindBlob, []byte("hello")), Hash(KindTree, []byte("hello")))
	assert.Len(t, Hash(KindBlob, nil), IDLength)
	assert.True(t, IsID(Hash(KindCommit, []byte("x"))))
	assert.False(t, IsID("../../etc/passwd"))
}

func TestFileStore(t *testing.T) {
	s, root := newTestStore(t, Options{})

	t.Run("Store is idempotent", func(t *testing.T) {
		id1, err := s.Store(KindBlob, []byte("content"))
		require.NoError(t, err)

		before, err := os.ReadFile(filepath.Join(root, id1))
		require.NoError(t, err)
		assert.Equal(t, []byte("blob\x00content"), before)

		id2, err := s.Store(KindBlob, []byte("content"))
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		after, err := os.ReadFile(filepath.Join(root, id1))
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Load", func(t *testing.T) {
		id, err := s.Store(KindTree, []byte("tree body"))
		require.NoError(t, err)

		got, err := s.Load(id, KindTree)
		require.NoError(t, err)
		assert.Equal(t, []byte("tree body"), got)

		got, err = s.Load(id, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("tree body"), got)
	})

	t.Run("KindMismatch", func(t *testing.T) {
		id, err := s.Store(KindBlob, []byte("a blob"))
		require.NoError(t, err)

		_, err = s.Load(id, KindCommit)
		assert.True(t, errors.Is(err, gerrors.ErrKindMismatch))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Load(Hash(KindBlob, []byte("never stored")), KindBlob)
		assert.True(t, errors.Is(err, gerrors.ErrNotFoundObject))

		_, err = s.Load("not-an-id", "")
		assert.True(t, errors.Is(err, gerrors.ErrNotFoundObject))
		assert.False(t, s.Exists("not-an-id"))
	})

	t.Run("Empty content", func(t *testing.T) {
		id, err := s.Store(KindBlob, nil)
		require.NoError(t, err)
		got, err := s.Load(id, KindBlob)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Unknown kind", func(t *testing.T) {
		_, err := s.Store(Kind("tag"), []byte("x"))
		assert.Error(t, err)
	})

	t.Run("Returned content is a copy", func(t *testing.T) {
		id, err := s.Store(KindBlob, []byte("immutable"))
		require.NoError(t, err)
		got, err := s.Load(id, KindBlob)
		require.NoError(t, err)
		got[0] = 'X'

		again, err := s.Load(id, KindBlob)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})
}

func TestFileStoreReadsFromDisk(t *testing.T) {
	s, root := newTestStore(t, Options{})
	id, err := s.Store(KindBlob, []byte("persisted"))
	require.NoError(t, err)

	// A second store on the same directory has a cold cache.
	fresh, err := NewFileStore(root, Options{})
	require.NoError(t, err)
	assert.True(t, fresh.Exists(id))

	kind, body, err := fresh.Read(id)
	require.NoError(t, err)
	assert.Equal(t, KindBlob, kind)
	assert.Equal(t, []byte("persisted"), body)
}

func TestFileStoreMalformed(t *testing.T) {
	s, root := newTestStore(t, Options{})
	id := Hash(KindBlob, []byte("broken"))
	require.NoError(t, os.WriteFile(filepath.Join(root, id), []byte("no separator"), 0644))

	_, err := s.Load(id, "")
	assert.True(t, errors.Is(err, gerrors.ErrMalformedObject))
}

func TestFileStoreCompression(t *testing.T) {
	s, root := newTestStore(t, Options{
		Compression: CompressionOptions{Enabled: true, MinSize: 64, Level: 2},
	})

	big := bytes.Repeat([]byte("compressible line\n"), 200)
	id, err := s.Store(KindBlob, big)
	require.NoError(t, err)
	assert.Equal(t, Hash(KindBlob, big), id)

	onDisk, err := os.ReadFile(filepath.Join(root, id))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(onDisk, zstdMagic))
	assert.Less(t, len(onDisk), len(big))

	small, err := s.Store(KindBlob, []byte("tiny"))
	require.NoError(t, err)
	onDisk, err = os.ReadFile(filepath.Join(root, small))
	require.NoError(t, err)
	assert.Equal(t, []byte("blob\x00tiny"), onDisk)

	// An uncompressed store still reads compressed objects.
	plain, err := NewFileStore(root, Options{})
	require.NoError(t, err)
	got, err := plain.Load(id, KindBlob)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}
