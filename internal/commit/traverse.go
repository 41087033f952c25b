package commit

import (
	"iter"
)

// Traverse yields every commit reachable from seeds exactly once. The first
// parent of each commit is visited next and the other parents are queued
// at the back, so the mainline is followed before side branches. Seeds are
// queued in the order given and empty ids are skipped.
//
// Each range over the returned sequence starts a fresh walk. A decode
// failure is yielded as the final element.
func (g *Graph) Traverse(seeds ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		queue := append([]string(nil), seeds...)
		visited := make(map[string]bool)

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if id == "" || visited[id] {
				continue
			}
			visited[id] = true

			if !yield(id, nil) {
				return
			}

			c, err := g.Decode(id)
			if err != nil {
				yield(id, err)
				return
			}
			if len(c.Parents) == 0 {
				continue
			}

			next := make([]string, 0, len(queue)+len(c.Parents))
			next = append(next, c.Parents[0])
			next = append(next, queue...)
			queue = append(next, c.Parents[1:]...)
		}
	}
}
