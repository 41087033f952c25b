package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"gitter/internal/content"
	gerrors "gitter/internal/errors"
	"gitter/internal/logging"

	"go.uber.org/zap"
)

// Renderer turns two versions of a file into a unified diff fragment.
type Renderer interface {
	Render(ctx context.Context, from, to []byte, fromLabel, toLabel string) ([]byte, error)
}

// LineRenderer renders in process.
type LineRenderer struct {
	differ *Differ
}

func NewLineRenderer(contextLines int) *LineRenderer {
	return &LineRenderer{differ: NewDiffer(contextLines)}
}

func (r *LineRenderer) Render(ctx context.Context, from, to []byte, fromLabel, toLabel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := r.differ.Diff(from, to)
	if result.Empty() {
		return nil, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", fromLabel, toLabel)
	buf.WriteString(result.Format())
	return buf.Bytes(), nil
}

// ExecRenderer runs an external diff program on temporary copies of both
// sides.
type ExecRenderer struct {
	Command string
	Args    []string
}

// NewExecRenderer returns a renderer invoking command with unified output
// and function context.
func NewExecRenderer(command string) *ExecRenderer {
	if command == "" {
		command = "diff"
	}
	return &ExecRenderer{
		Command: command,
		Args:    []string{"--unified", "--show-c-function"},
	}
}

func (r *ExecRenderer) Render(ctx context.Context, from, to []byte, fromLabel, toLabel string) ([]byte, error) {
	fromFile, err := writeTemp(from)
	if err != nil {
		return nil, err
	}
	defer os.Remove(fromFile)

	toFile, err := writeTemp(to)
	if err != nil {
		return nil, err
	}
	defer os.Remove(toFile)

	args := append([]string(nil), r.Args...)
	args = append(args, "--label", fromLabel, fromFile, "--label", toLabel, toFile)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// diff exits 1 when the inputs differ
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("%s: %w: %s", r.Command, err, bytes.TrimSpace(stderr.Bytes()))
		}
	}
	return stdout.Bytes(), nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "gitter-diff-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return f.Name(), nil
}

// Loader reads blob content by id.
type Loader interface {
	Load(id string, expected content.Kind) ([]byte, error)
}

// Engine renders the differences between two path->blob mappings.
type Engine struct {
	loader   Loader
	renderer Renderer
	logger   *zap.Logger
}

func NewEngine(loader Loader, renderer Renderer, logger *zap.Logger) *Engine {
	return &Engine{
		loader:   loader,
		renderer: renderer,
		logger:   logging.OrNop(logger),
	}
}

// Render diffs every changed path in path order and concatenates the
// fragments. A side that lacks the path is rendered as empty content.
func (e *Engine) Render(ctx context.Context, from, to map[string]string) ([]byte, error) {
	var out bytes.Buffer
	for _, ch := range Classify(from, to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before, err := e.load(from[ch.Path])
		if err != nil {
			return nil, err
		}
		after, err := e.load(to[ch.Path])
		if err != nil {
			return nil, err
		}

		fragment, err := e.renderer.Render(ctx, before, after, "a/"+ch.Path, "b/"+ch.Path)
		if err != nil {
			return nil, gerrors.CollaboratorFailure(ch.Path, err)
		}
		e.logger.Debug("rendered diff",
			zap.String("path", ch.Path),
			zap.String("action", string(ch.Action)),
			zap.Int("bytes", len(fragment)))
		out.Write(fragment)
	}
	return out.Bytes(), nil
}

func (e *Engine) load(id string) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	return e.loader.Load(id, content.KindBlob)
}
