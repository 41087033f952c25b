// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
	// NoEOL marks the last line of a file that lacks a trailing newline
	NoEOL bool
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Result contains the complete diff information
type Result struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Empty reports whether the inputs were identical.
func (r *Result) Empty() bool {
	return len(r.Hunks) == 0
}

// Hunk represents a continuous section of changes with its context
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Differ computes line diffs
type Differ struct {
	contextLines int
	dmp          *diffpatch.DiffMatchPatch
}

// NewDiffer creates a differ that keeps contextLines of unchanged text
// around each change.
func NewDiffer(contextLines int) *Differ {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Differ{
		contextLines: contextLines,
		dmp:          diffpatch.New(),
	}
}

// Diff generates a line-by-line diff between two contents
func (d *Differ) Diff(oldContent, newContent []byte) *Result {
	script := d.script(string(oldContent), string(newContent))

	result := &Result{Hunks: d.group(script)}
	for _, line := range script {
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions
	return result
}

// script returns every line of both inputs tagged with its edit operation.
func (d *Differ) script(oldText, newText string) []Line {
	a, b, lines := d.dmp.DiffLinesToChars(oldText, newText)
	diffs := d.dmp.DiffCharsToLines(d.dmp.DiffMain(a, b, false), lines)

	var out []Line
	oldNum, newNum := 0, 0
	for _, df := range diffs {
		for _, text := range splitLines(df.Text) {
			line := Line{
				Content: strings.TrimSuffix(text, "\n"),
				NoEOL:   !strings.HasSuffix(text, "\n"),
			}
			switch df.Type {
			case diffpatch.DiffEqual:
				oldNum++
				newNum++
				line.Type, line.OldNum, line.NewNum = Context, oldNum, newNum
			case diffpatch.DiffDelete:
				oldNum++
				line.Type, line.OldNum = Deletion, oldNum
			case diffpatch.DiffInsert:
				newNum++
				line.Type, line.NewNum = Addition, newNum
			}
			out = append(out, line)
		}
	}
	return out
}

func splitLines(text string) []string {
	parts := strings.SplitAfter(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// group cuts the edit script into hunks. Changes separated by no more than
// twice the context length share a hunk.
func (d *Differ) group(script []Line) []Hunk {
	var hunks []Hunk

	i := 0
	for i < len(script) {
		if script[i].Type == Context {
			i++
			continue
		}

		start := max(0, i-d.contextLines)
		end := i
		for j := i; j < len(script); j++ {
			if script[j].Type == Context {
				continue
			}
			if j-end > 2*d.contextLines {
				break
			}
			end = j + 1
		}
		end = min(len(script), end+d.contextLines)

		hunks = append(hunks, newHunk(script, start, end))
		i = end
	}
	return hunks
}

func newHunk(script []Line, start, end int) Hunk {
	// Line numbers consumed before the hunk
	oldBefore, newBefore := 0, 0
	for _, l := range script[:start] {
		if l.Type != Addition {
			oldBefore++
		}
		if l.Type != Deletion {
			newBefore++
		}
	}

	h := Hunk{Lines: append([]Line(nil), script[start:end]...)}
	for _, l := range h.Lines {
		if l.Type != Addition {
			h.OldLines++
		}
		if l.Type != Deletion {
			h.NewLines++
		}
	}

	h.OldStart, h.NewStart = oldBefore, newBefore
	if h.OldLines > 0 {
		h.OldStart++
	}
	if h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

// Format returns the hunks in unified diff notation
func (r *Result) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%s +%s @@\n",
			formatRange(hunk.OldStart, hunk.OldLines),
			formatRange(hunk.NewStart, hunk.NewLines))

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteByte('+')
			case Deletion:
				buf.WriteByte('-')
			case Context:
				buf.WriteByte(' ')
			}
			buf.WriteString(line.Content)
			buf.WriteByte('\n')
			if line.NoEOL {
				buf.WriteString("\\ No newline at end of file\n")
			}
		}
	}

	return buf.String()
}

func formatRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
