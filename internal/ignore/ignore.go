// Package ignore decides which working-tree paths are never staged.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the ignore file read from the repository root.
const FileName = ".gitterignore"

// Rules holds ignore patterns. A path is ignored when any of its segments
// equals a pattern.
type Rules struct {
	patterns map[string]bool
}

// New builds rules from literal segment patterns.
func New(patterns ...string) *Rules {
	r := &Rules{patterns: make(map[string]bool)}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		r.patterns[p] = true
	}
	return r
}

// Load reads the ignore file under root. A missing file yields rules that
// ignore nothing beyond the extra patterns.
func Load(root string, extra ...string) (*Rules, error) {
	r := New(extra...)

	f, err := os.Open(filepath.Join(root, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.patterns[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return r, nil
}

// Match reports whether path (slash or OS separated) is ignored.
func (r *Rules) Match(path string) bool {
	if r == nil || len(r.patterns) == 0 {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if r.patterns[seg] {
			return true
		}
	}
	return false
}
