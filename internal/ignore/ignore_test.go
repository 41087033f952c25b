package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	r := New("node_modules", "build.log", "# comment", "")

	tests := []struct {
		path string
		want bool
	}{
		{"node_modules", true},
		{"web/node_modules/x.js", true},
		{"logs/build.log", true},
		{"src/main.go", false},
		{"node_modules_backup/x", false},
		{"# comment", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Match(tt.path))
		})
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	r, err := Load(root, ".gitter")
	require.NoError(t, err)
	assert.True(t, r.Match(".gitter/index"))
	assert.False(t, r.Match("a.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("# generated\ntmp\n\n  dist  \n"), 0644))
	r, err = Load(root)
	require.NoError(t, err)
	assert.True(t, r.Match("tmp/x"))
	assert.True(t, r.Match("a/dist/b"))
	assert.False(t, r.Match("# generated"))
}

func TestNilRules(t *testing.T) {
	var r *Rules
	assert.False(t, r.Match("anything"))
}
