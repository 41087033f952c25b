// Package tree converts between flat path->id mappings and hierarchical
// tree objects.
//
// A tree object is one line per entry, "<kind> <id> <name>\n", sorted by
// name, so the id of a tree depends only on its set of entries.
package tree

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gitter/internal/content"
	gerrors "gitter/internal/errors"
)

// Separator splits paths into tree entry names.
const Separator = "/"

// Node is either a *Blob or a *Tree.
type Node interface {
	Kind() content.Kind
	accept(v visitor) (string, error)
}

// Blob is a leaf holding the id of stored file content.
type Blob struct {
	ID string
}

func (*Blob) Kind() content.Kind { return content.KindBlob }

func (b *Blob) accept(v visitor) (string, error) { return v.visitBlob(b) }

// Tree is a directory of named children.
type Tree struct {
	Children map[string]Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Children: make(map[string]Node)}
}

func (*Tree) Kind() content.Kind { return content.KindTree }

func (t *Tree) accept(v visitor) (string, error) { return v.visitTree(t) }

// Names returns the child names in canonical order.
func (t *Tree) Names() []string {
	names := make([]string, 0, len(t.Children))
	for name := range t.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type visitor interface {
	visitBlob(b *Blob) (string, error)
	visitTree(t *Tree) (string, error)
}

// Entry is one line of a tree object.
type Entry struct {
	Kind content.Kind
	ID   string
	Name string
}

// Build nests a flat mapping by splitting each path on Separator.
func Build(flat map[string]string) (*Tree, error) {
	root := NewTree()

	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		segments := strings.Split(p, Separator)
		for _, seg := range segments {
			if err := checkName(seg); err != nil {
				return nil, err
			}
		}

		dirs, file := segments[:len(segments)-1], segments[len(segments)-1]
		current := root
		for _, dir := range dirs {
			switch child := current.Children[dir].(type) {
			case nil:
				next := NewTree()
				current.Children[dir] = next
				current = next
			case *Tree:
				current = child
			default:
				return nil, fmt.Errorf("path %s: %w", p, gerrors.PathViolation(dir))
			}
		}

		if _, exists := current.Children[file]; exists {
			return nil, fmt.Errorf("path %s: %w", p, gerrors.PathViolation(file))
		}
		current.Children[file] = &Blob{ID: flat[p]}
	}
	return root, nil
}

// checkName enforces the entry name invariant.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.Contains(name, Separator) || strings.ContainsAny(name, "\n\x00") {
		return gerrors.PathViolation(name)
	}
	return nil
}

// Codec reads and writes tree objects in a store.
type Codec struct {
	store content.Store
}

func NewCodec(store content.Store) *Codec {
	return &Codec{store: store}
}

// Write stores t and every subtree below it, children first, and returns
// the id of t.
func (c *Codec) Write(t *Tree) (string, error) {
	return t.accept(&writer{store: c.store})
}

type writer struct {
	store content.Store
}

func (w *writer) visitBlob(b *Blob) (string, error) {
	return b.ID, nil
}

func (w *writer) visitTree(t *Tree) (string, error) {
	var buf bytes.Buffer
	for _, name := range t.Names() {
		if err := checkName(name); err != nil {
			return "", err
		}
		child := t.Children[name]
		id, err := child.accept(w)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "%s %s %s\n", child.Kind(), id, name)
	}
	return w.store.Store(content.KindTree, buf.Bytes())
}

// ReadEntries parses the tree object id. An empty id is the empty tree.
func (c *Codec) ReadEntries(id string) ([]Entry, error) {
	if id == "" {
		return nil, nil
	}

	data, err := c.store.Load(id, content.KindTree)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}

	var entries []Entry
	for _, line := range strings.Split(text, "\n") {
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return nil, gerrors.Malformed(id, "tree entry %q", line)
		}
		entries = append(entries, Entry{
			Kind: content.Kind(fields[0]),
			ID:   fields[1],
			Name: fields[2],
		})
	}
	return entries, nil
}

// Flatten walks the tree id and returns every blob keyed by its full path,
// each prefixed with prefix.
func (c *Codec) Flatten(id, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	if err := c.flatten(id, prefix, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec) flatten(id, prefix string, out map[string]string) error {
	entries, err := c.ReadEntries(id)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := checkName(e.Name); err != nil {
			return err
		}
		path := prefix + e.Name
		switch e.Kind {
		case content.KindBlob:
			out[path] = e.ID
		case content.KindTree:
			if err := c.flatten(e.ID, path+Separator, out); err != nil {
				return err
			}
		default:
			return gerrors.Malformed(id, "unknown entry kind %q", e.Kind)
		}
	}
	return nil
}

// Read decodes the tree id into nested form.
func (c *Codec) Read(id string) (*Tree, error) {
	entries, err := c.ReadEntries(id)
	if err != nil {
		return nil, err
	}

	t := NewTree()
	for _, e := range entries {
		if err := checkName(e.Name); err != nil {
			return nil, err
		}
		switch e.Kind {
		case content.KindBlob:
			t.Children[e.Name] = &Blob{ID: e.ID}
		case content.KindTree:
			sub, err := c.Read(e.ID)
			if err != nil {
				return nil, err
			}
			t.Children[e.Name] = sub
		default:
			return nil, gerrors.Malformed(id, "unknown entry kind %q", e.Kind)
		}
	}
	return t, nil
}
