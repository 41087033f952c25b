package diff

import (
	"sort"
)

// Action describes how a path differs between two mappings.
type Action string

const (
	ActionNew      Action = "new"
	ActionDeleted  Action = "deleted"
	ActionModified Action = "modified"
)

// Row is one path of an alignment. IDs has one entry per input mapping;
// an empty string means the mapping lacks the path.
type Row struct {
	Path string
	IDs  []string
}

// Change is a path that differs between two mappings.
type Change struct {
	Path   string
	Action Action
}

// Align returns one row per path in the union of mappings, sorted by path.
func Align(mappings ...map[string]string) []Row {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range mappings {
		for p := range m {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)

	rows := make([]Row, 0, len(paths))
	for _, p := range paths {
		ids := make([]string, len(mappings))
		for i, m := range mappings {
			ids[i] = m[p]
		}
		rows = append(rows, Row{Path: p, IDs: ids})
	}
	return rows
}

// Classify lists the paths whose ids differ between from and to.
func Classify(from, to map[string]string) []Change {
	var changes []Change
	for _, row := range Align(from, to) {
		a, b := row.IDs[0], row.IDs[1]
		switch {
		case a == "":
			changes = append(changes, Change{Path: row.Path, Action: ActionNew})
		case b == "":
			changes = append(changes, Change{Path: row.Path, Action: ActionDeleted})
		case a != b:
			changes = append(changes, Change{Path: row.Path, Action: ActionModified})
		}
	}
	return changes
}
