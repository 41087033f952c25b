// internal/repo/repo.go
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gitter/internal/commit"
	"gitter/internal/config"
	"gitter/internal/content"
	"gitter/internal/diff"
	"gitter/internal/ignore"
	"gitter/internal/index"
	"gitter/internal/logging"
	"gitter/internal/refs"
	"gitter/internal/tree"
	"gitter/internal/workspace"

	"go.uber.org/zap"
)

const (
	DefaultBranch = "main"

	objectsDir = "objects"
	indexFile  = "index"
	reflogDir  = "reflog"
)

// Repository is an open working tree together with its metadata
// directory. Every operation goes through a Repository value; there is no
// package level state.
type Repository struct {
	Root    string
	MetaDir string
	Config  *config.Config

	Objects   *content.FileStore
	Refs      *refs.Store
	Trees     *tree.Codec
	Commits   *commit.Graph
	Workspace *workspace.LocalWorkspace

	journal *journal
	rules   *ignore.Rules
	logger  *zap.Logger
}

// Init creates the metadata directory under root with HEAD on the default
// branch and a default config. Running it on an existing repository keeps
// HEAD and the config; reinit reports that case.
func Init(root string) (metaDir string, reinit bool, err error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	metaDir = filepath.Join(absRoot, workspace.MetaDir)

	if info, err := os.Stat(metaDir); err == nil && info.IsDir() {
		reinit = true
	}

	dirs := []string{
		filepath.Join(metaDir, objectsDir),
		filepath.Join(metaDir, filepath.FromSlash(refs.HeadsPrefix)),
		filepath.Join(metaDir, filepath.FromSlash(refs.TagsPrefix)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	rs := refs.NewStore(metaDir)
	head, err := rs.Resolve(refs.Head, false)
	if err != nil {
		return "", false, err
	}
	if head.Absent() {
		if err := rs.Update(refs.Head, refs.Symbolic(refs.HeadsPrefix+DefaultBranch), refs.NoDeref()); err != nil {
			return "", false, fmt.Errorf("writing HEAD: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(metaDir, config.RepoFile)); errors.Is(err, os.ErrNotExist) {
		if err := config.WriteRepo(metaDir, config.Default()); err != nil {
			return "", false, err
		}
	}

	return metaDir, reinit, nil
}

// Open loads the repository whose working tree is root.
func Open(root string, logger *zap.Logger) (*Repository, error) {
	logger = logging.OrNop(logger)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	metaDir := filepath.Join(absRoot, workspace.MetaDir)
	if info, err := os.Stat(metaDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absRoot, workspace.ErrNotFound)
	}

	cfg, err := config.Load(metaDir)
	if err != nil {
		return nil, err
	}

	objects, err := content.NewFileStore(filepath.Join(metaDir, objectsDir), content.Options{
		CacheSize: cfg.Objects.CacheSize,
		Compression: content.CompressionOptions{
			Enabled: cfg.Objects.Compression == "zstd",
			MinSize: cfg.Objects.CompressMinSize,
			Level:   cfg.Objects.CompressionLevel,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening object store: %w", err)
	}

	rules, err := ignore.Load(absRoot)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		Root:      absRoot,
		MetaDir:   metaDir,
		Config:    cfg,
		Objects:   objects,
		Trees:     tree.NewCodec(objects),
		Workspace: workspace.NewLocalWorkspace(absRoot, rules, logger),
		rules:     rules,
		logger:    logger,
	}

	refOpts := []refs.Option{refs.WithLogger(logger)}
	if cfg.Reflog.Enabled {
		r.journal = newJournal(filepath.Join(metaDir, reflogDir), logger)
		refOpts = append(refOpts, refs.WithJournal(r.journal))
	}
	r.Refs = refs.NewStore(metaDir, refOpts...)
	r.Commits = commit.NewGraph(objects, r.Refs, logger)

	logger.Debug("opened repository",
		zap.String("root", absRoot),
		zap.Bool("reflog", cfg.Reflog.Enabled),
		zap.String("compression", cfg.Objects.Compression))
	return r, nil
}

// Close releases the reflog database if it was opened.
func (r *Repository) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.close()
}

// Index returns a fresh staging area handle. It loads the persisted
// mapping on first use.
func (r *Repository) Index() *index.Index {
	return index.New(filepath.Join(r.MetaDir, indexFile), r.Objects, index.Options{
		Root:   r.Root,
		Rules:  r.rules,
		Hidden: []string{workspace.MetaDir},
		Logger: r.logger,
	})
}

// DiffEngine returns the engine configured by diff.renderer.
func (r *Repository) DiffEngine() *diff.Engine {
	var renderer diff.Renderer
	switch r.Config.Diff.Renderer {
	case "external":
		renderer = diff.NewExecRenderer(r.Config.Diff.Command)
	default:
		renderer = diff.NewLineRenderer(r.Config.Diff.ContextLines)
	}
	return diff.NewEngine(r.Objects, renderer, r.logger)
}

// commitTree flattens the tree of commit id. An empty id yields an empty
// mapping.
func (r *Repository) commitTree(id string) (map[string]string, error) {
	if id == "" {
		return map[string]string{}, nil
	}
	c, err := r.Commits.Decode(id)
	if err != nil {
		return nil, err
	}
	return r.Trees.Flatten(c.Tree, "")
}

// hashOnly maps content to its blob id without storing it.
func hashOnly(data []byte) (string, error) {
	return content.Hash(content.KindBlob, data), nil
}

// storeBlob stores content as a blob.
func (r *Repository) storeBlob(data []byte) (string, error) {
	return r.Objects.Store(content.KindBlob, data)
}
