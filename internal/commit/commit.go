// internal/commit/commit.go
package commit

import (
	"bytes"
	"fmt"
	"strings"

	"gitter/internal/content"
	gerrors "gitter/internal/errors"
	"gitter/internal/logging"
	"gitter/internal/refs"

	"go.uber.org/zap"
)

// Commit is a snapshot of a tree with its ordered parents. The first parent
// is the mainline.
type Commit struct {
	Tree    string
	Parents []string
	Message string
}

// Summary returns the first line of the message.
func (c *Commit) Summary() string {
	line, _, _ := strings.Cut(c.Message, "\n")
	return line
}

// Encode serializes c:
//
//	tree <id>
//	parent <id>
//	...
//
//	<message>
func Encode(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Parse decodes commit text. id is only used in error messages.
func Parse(id string, data []byte) (*Commit, error) {
	lines := strings.Split(string(data), "\n")

	c := &Commit{}
	haveTree := false

	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}

		key, value, ok := strings.Cut(line, " ")
		if !ok {
			return nil, gerrors.Malformed(id, "header line %q", line)
		}
		switch key {
		case "tree":
			if haveTree {
				return nil, gerrors.Malformed(id, "duplicate tree header")
			}
			c.Tree = value
			haveTree = true
		case "parent":
			c.Parents = append(c.Parents, value)
		default:
			return nil, gerrors.Malformed(id, "unknown header key %q", key)
		}
	}

	if !haveTree {
		return nil, gerrors.Malformed(id, "missing tree header")
	}

	if i < len(lines) {
		c.Message = strings.TrimSuffix(strings.Join(lines[i:], "\n"), "\n")
	}
	return c, nil
}

// Graph reads, creates and walks commits.
type Graph struct {
	store  content.Store
	refs   *refs.Store
	logger *zap.Logger
}

func NewGraph(store content.Store, refStore *refs.Store, logger *zap.Logger) *Graph {
	return &Graph{
		store:  store,
		refs:   refStore,
		logger: logging.OrNop(logger),
	}
}

// Decode loads and parses the commit id.
func (g *Graph) Decode(id string) (*Commit, error) {
	data, err := g.store.Load(id, content.KindCommit)
	if err != nil {
		return nil, err
	}
	return Parse(id, data)
}

// Create stores a commit of treeID whose parents are HEAD and MERGE_HEAD,
// when set, in that order. MERGE_HEAD is cleared and HEAD advanced to the
// new commit.
func (g *Graph) Create(treeID, message string) (string, error) {
	c := &Commit{Tree: treeID, Message: message}

	head, err := g.refs.Resolve(refs.Head, true)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", refs.Head, err)
	}
	if !head.Absent() {
		c.Parents = append(c.Parents, head.Value)
	}

	merge, err := g.refs.Resolve(refs.MergeHead, true)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", refs.MergeHead, err)
	}
	if !merge.Absent() {
		c.Parents = append(c.Parents, merge.Value)
	}

	id, err := g.store.Store(content.KindCommit, Encode(c))
	if err != nil {
		return "", fmt.Errorf("storing commit: %w", err)
	}

	if !merge.Absent() {
		if err := g.refs.Delete(refs.MergeHead, false); err != nil {
			return "", fmt.Errorf("clearing %s: %w", refs.MergeHead, err)
		}
	}

	reason := "commit: " + c.Summary()
	if len(c.Parents) == 0 {
		reason = "commit (initial): " + c.Summary()
	} else if len(c.Parents) > 1 {
		reason = "commit (merge): " + c.Summary()
	}
	if err := g.refs.Update(refs.Head, refs.Direct(id), refs.WithReason(reason)); err != nil {
		return "", fmt.Errorf("advancing %s: %w", refs.Head, err)
	}

	g.logger.Info("created commit",
		zap.String("id", id),
		zap.String("tree", treeID),
		zap.Strings("parents", c.Parents))
	return id, nil
}
