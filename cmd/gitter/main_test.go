package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	t   *testing.T
	dir string
}

func newSession(t *testing.T) *session {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITTER_LOG_LEVEL", "")
	t.Setenv("GITTER_DIFF_RENDERER", "")
	t.Setenv("GITTER_COLOR", "never")
	return &session{t: t, dir: t.TempDir()}
}

func (s *session) run(args ...string) (string, string, int) {
	s.t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"-C", s.dir}, args...), &out, &errOut)
	return out.String(), errOut.String(), code
}

func (s *session) ok(args ...string) string {
	s.t.Helper()
	out, errOut, code := s.run(args...)
	require.Equal(s.t, 0, code, "gitter %s: %s", strings.Join(args, " "), errOut)
	return out
}

func (s *session) write(rel, data string) {
	s.t.Helper()
	path := filepath.Join(s.dir, filepath.FromSlash(rel))
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(s.t, os.WriteFile(path, []byte(data), 0644))
}

func TestInitTwice(t *testing.T) {
	s := newSession(t)

	out := s.ok("init")
	assert.Contains(t, out, "Initialized empty Gitter repository in")
	assert.DirExists(t, filepath.Join(s.dir, ".gitter", "objects"))

	out = s.ok("init")
	assert.Contains(t, out, "Reinitialized existing Gitter repository in")
}

func TestOutsideRepository(t *testing.T) {
	s := newSession(t)
	_, errOut, code := s.run("status")
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(errOut, "error: "))
}

func TestWorkflow(t *testing.T) {
	s := newSession(t)
	s.ok("init")
	s.write("hello.txt", "hello\n")
	s.write(".gitterignore", "debug.log\n")
	s.write("debug.log", "noise")

	out := s.ok("add", ".")
	assert.Contains(t, out, "Ignoring debug.log")

	id := strings.TrimSpace(s.ok("commit", "-m", "first"))
	assert.Len(t, id, 40)

	out = s.ok("log")
	assert.Contains(t, out, "commit "+id+" (HEAD, refs/heads/main)")
	assert.Contains(t, out, "    first\n")

	out = s.ok("status")
	assert.Contains(t, out, "On branch main")
	assert.NotContains(t, out, "hello.txt")

	s.write("hello.txt", "goodbye\n")
	out = s.ok("status")
	assert.Contains(t, out, "    modified: hello.txt")

	out = s.ok("diff")
	assert.Equal(t, "--- a/hello.txt\n+++ b/hello.txt\n@@ -1 +1 @@\n-hello\n+goodbye\n", out)

	out = s.ok("diff", "--cached")
	assert.Empty(t, out)

	s.ok("add", "hello.txt")
	out = s.ok("diff", "--cached")
	assert.Contains(t, out, "+goodbye")
}

func TestCommitRequiresMessage(t *testing.T) {
	s := newSession(t)
	s.ok("init")
	_, _, code := s.run("commit")
	assert.Equal(t, 1, code)
}

func TestPlumbing(t *testing.T) {
	s := newSession(t)
	s.ok("init")
	s.write("f", "data")

	id := strings.TrimSpace(s.ok("hash-object", "f"))
	assert.Len(t, id, 40)
	_, _, code := s.run("cat-file", "-p", id)
	assert.Equal(t, 1, code, "not written yet")

	assert.Equal(t, id, strings.TrimSpace(s.ok("hash-object", "-w", "f")))
	assert.Equal(t, "data", s.ok("cat-file", "-p", id))
	assert.Equal(t, "blob\n", s.ok("cat-file", "-t", id))

	_, _, code = s.run("cat-file", id)
	assert.Equal(t, 1, code)

	_, _, code = s.run("hash-object", "-t", "bogus", "f")
	assert.Equal(t, 1, code)
}

func TestBranchTagShowRefReflog(t *testing.T) {
	s := newSession(t)
	s.ok("init")
	s.write("a", "1")
	s.ok("add", "a")
	c1 := strings.TrimSpace(s.ok("commit", "-m", "one"))

	s.ok("branch", "dev")
	s.ok("tag", "v1")

	out := s.ok("branch")
	assert.Equal(t, "  dev\n* main\n", out)

	assert.Equal(t, "v1\n", s.ok("tag"))

	out = s.ok("show-ref")
	assert.Equal(t,
		c1+" refs/heads/dev\n"+c1+" refs/heads/main\n"+c1+" refs/tags/v1\n",
		out)

	out = s.ok("reflog")
	assert.Equal(t, c1[:10]+" refs/heads/main@{0}: commit (initial): one\n", out)

	out = s.ok("reflog", "dev")
	assert.Contains(t, out, "branch: created from HEAD")

	_, _, code := s.run("branch", "dev")
	assert.Equal(t, 1, code)
}
