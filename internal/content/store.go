// internal/content/store.go
package content

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gerrors "gitter/internal/errors"
	"gitter/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Options configures a FileStore
type Options struct {
	CacheSize   int // Number of envelopes kept in memory
	Compression CompressionOptions
	Logger      *zap.Logger
}

// FileStore keeps one file per object under root, named by the object id.
// Objects are never rewritten or removed.
type FileStore struct {
	root   string
	cache  *lru.Cache[string, []byte]
	codec  *objectCodec
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(root string, opts Options) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating object directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	codec, err := newObjectCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &FileStore{
		root:   root,
		cache:  cache,
		codec:  codec,
		logger: logging.OrNop(opts.Logger),
	}, nil
}

// Store writes kind\0content under its id unless the object already exists
func (s *FileStore) Store(kind Kind, content []byte) (string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return "", err
	}

	id := Hash(kind, content)
	raw := envelope(kind, content)

	// Write content if it doesn't exist
	path := s.objectPath(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, s.codec.encode(raw), 0644); err != nil {
			return "", fmt.Errorf("writing object %s: %w", id, err)
		}
		s.logger.Debug("stored object",
			zap.String("id", id),
			zap.String("kind", string(kind)),
			zap.Int("size", len(content)))
	} else if err != nil {
		return "", fmt.Errorf("checking object %s: %w", id, err)
	}

	s.cache.Add(id, raw)
	return id, nil
}

// Read returns the kind tag and content of id
func (s *FileStore) Read(id string) (Kind, []byte, error) {
	if !IsID(id) {
		return "", nil, gerrors.NotFoundObject(id)
	}

	raw, ok := s.cache.Get(id)
	if !ok {
		stored, err := os.ReadFile(s.objectPath(id))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil, gerrors.NotFoundObject(id)
			}
			return "", nil, fmt.Errorf("reading object %s: %w", id, err)
		}
		raw, err = s.codec.decode(stored)
		if err != nil {
			return "", nil, gerrors.Malformed(id, "%v", err)
		}
		s.cache.Add(id, raw)
	}

	tag, body, found := bytes.Cut(raw, []byte{0})
	if !found {
		return "", nil, gerrors.Malformed(id, "missing type tag")
	}
	return Kind(tag), bytes.Clone(body), nil
}

// Load returns the content of id, checking its tag against expected
func (s *FileStore) Load(id string, expected Kind) ([]byte, error) {
	kind, body, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	if expected != "" && kind != expected {
		return nil, gerrors.KindMismatch(id, string(expected), string(kind))
	}
	return body, nil
}

// Exists checks if an object exists
func (s *FileStore) Exists(id string) bool {
	if !IsID(id) {
		return false
	}
	if s.cache.Contains(id) {
		return true
	}
	_, err := os.Stat(s.objectPath(id))
	return err == nil
}

func (s *FileStore) objectPath(id string) string {
	return filepath.Join(s.root, id)
}
