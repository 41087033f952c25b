package content

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Kind is the type tag stored in front of every object.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// IDLength is the length of a hex-encoded object id.
const IDLength = 2 * sha1.Size

// ParseKind validates a type tag read from disk or from the user.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBlob, KindTree, KindCommit:
		return k, nil
	}
	return "", fmt.Errorf("unknown object kind %q", s)
}

// Store is the content-addressed object space.
type Store interface {
	// Store writes content under the given kind and returns its id.
	Store(kind Kind, content []byte) (string, error)
	// Load returns the content of id with the tag stripped. An empty
	// expected kind accepts any tag.
	Load(id string, expected Kind) ([]byte, error)
	// Exists reports whether id is present.
	Exists(id string) bool
}

// Hash computes the id of content under kind without storing it.
func Hash(kind Kind, content []byte) string {
	h := sha1.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// IsID reports whether s looks like a full object id.
func IsID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// envelope returns the on-disk form kind\0content.
func envelope(kind Kind, content []byte) []byte {
	out := make([]byte, 0, len(kind)+1+len(content))
	out = append(out, kind...)
	out = append(out, 0)
	return append(out, content...)
}
