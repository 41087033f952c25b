// Package watch re-stages tracked files as they change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gitter/internal/logging"
	"gitter/internal/workspace"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// StageFunc stages the working-tree path rel if it is already tracked and
// reports whether it did.
type StageFunc func(rel string) (bool, error)

type Options struct {
	Logger *zap.Logger
	// OnStage is called after each path is re-staged.
	OnStage func(rel string)
}

// Watcher follows filesystem events for a workspace.
type Watcher struct {
	ws      *workspace.LocalWorkspace
	stage   StageFunc
	watcher *fsnotify.Watcher
	onStage func(string)
	logger  *zap.Logger
}

func New(ws *workspace.LocalWorkspace, stage StageFunc, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		ws:      ws,
		stage:   stage,
		watcher: fw,
		onStage: opts.OnStage,
		logger:  logging.OrNop(opts.Logger),
	}

	dirs, err := ws.Directories()
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.logger.Debug("watching workspace", zap.Int("directories", len(dirs)))
	return w, nil
}

// Run handles events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, ok := w.ws.Rel(event.Name)
	if !ok || w.skip(rel) {
		return
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone again before we looked
		return
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.String("path", rel), zap.Error(err))
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	staged, err := w.stage(rel)
	if err != nil {
		w.logger.Warn("re-staging failed", zap.String("path", rel), zap.Error(err))
		return
	}
	if staged {
		w.logger.Info("re-staged file", zap.String("path", rel))
		if w.onStage != nil {
			w.onStage(rel)
		}
	}
}

func (w *Watcher) skip(rel string) bool {
	if rel == workspace.MetaDir || strings.HasPrefix(rel, workspace.MetaDir+"/") {
		return true
	}
	return w.ws.Rules.Match(rel)
}
