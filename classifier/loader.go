package classifier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"spamdetect/apperr"
	"spamdetect/ml"
)

// Artifacts is an immutable model + vectorizer bundle. Eval is nil when the
// vectorizer file carries no held-out set.
type Artifacts struct {
	Model      ml.Model
	Vectorizer *ml.Vectorizer
	Eval       *EvalSet
}

type EvalSet struct {
	X []ml.Vector
	Y []int
}

type LoaderConfig struct {
	ModelType      string
	ModelPath      string
	VectorizerPath string
	CacheSize      int
}

// Loader loads artifacts from disk and caches them by file identity
// (path, size, modification time). A changed file is reloaded on the next
// Load; Watch additionally purges the cache as soon as a file changes.
type Loader struct {
	cfg   LoaderConfig
	cache *lru.Cache[artifactKey, *Artifacts]
	log   *zap.Logger
	loads atomic.Int64
}

type fileStamp struct {
	path    string
	size    int64
	modTime time.Time
}

type artifactKey struct {
	model      fileStamp
	vectorizer fileStamp
}

func NewLoader(cfg LoaderConfig, logger *zap.Logger) (*Loader, error) {
	if cfg.ModelPath == "" || cfg.VectorizerPath == "" {
		return nil, errors.New("model and vectorizer paths are required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[artifactKey, *Artifacts](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, cache: cache, log: logger}, nil
}

func (l *Loader) Config() LoaderConfig {
	return l.cfg
}

// Loads reports how many times artifacts were read from disk.
func (l *Loader) Loads() int64 {
	return l.loads.Load()
}

func (l *Loader) Load(ctx context.Context) (*Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "classifier.Load", err)
	}
	modelStamp, err := stat(l.cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	vectorizerStamp, err := stat(l.cfg.VectorizerPath)
	if err != nil {
		return nil, err
	}
	key := artifactKey{model: modelStamp, vectorizer: vectorizerStamp}
	if artifacts, ok := l.cache.Get(key); ok {
		return artifacts, nil
	}

	started := time.Now()
	model, err := ml.LoadModel(l.cfg.ModelType, l.cfg.ModelPath)
	if err != nil {
		return nil, classifyLoadError(err, l.cfg.ModelPath)
	}
	bundle, err := ml.LoadBundle(l.cfg.VectorizerPath)
	if err != nil {
		return nil, classifyLoadError(err, l.cfg.VectorizerPath)
	}

	artifacts := &Artifacts{Model: model, Vectorizer: bundle.Vectorizer}
	if bundle.HasEvalSet() {
		artifacts.Eval = &EvalSet{X: bundle.XTest, Y: bundle.YTest}
	}
	l.cache.Add(key, artifacts)
	l.loads.Add(1)
	l.log.Info("artifacts loaded",
		zap.String("model", l.cfg.ModelPath),
		zap.String("vectorizer", l.cfg.VectorizerPath),
		zap.Int("features", bundle.Vectorizer.Dim()),
		zap.Bool("eval_set", artifacts.Eval != nil),
		zap.Duration("elapsed", time.Since(started)),
	)
	return artifacts, nil
}

func (l *Loader) Purge() {
	l.cache.Purge()
}

// Watch purges the cache whenever either artifact file is written, created,
// renamed or removed. It blocks until ctx is done. Parent directories are
// watched so that atomic replace-by-rename is seen.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets := map[string]bool{
		filepath.Clean(l.cfg.ModelPath):      true,
		filepath.Clean(l.cfg.VectorizerPath): true,
	}
	dirs := map[string]bool{}
	for target := range targets {
		dirs[filepath.Dir(target)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			l.Purge()
			l.log.Info("artifact changed, cache purged", zap.String("path", event.Name), zap.String("op", event.Op.String()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func stat(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileStamp{}, apperr.Wrap(apperr.ArtifactMissing, "classifier.Load", err).WithPath(path)
		}
		return fileStamp{}, apperr.Wrap(apperr.ArtifactCorrupt, "classifier.Load", err).WithPath(path)
	}
	if info.IsDir() {
		return fileStamp{}, apperr.New(apperr.ArtifactMissing, "classifier.Load", "artifact path is a directory").WithPath(path)
	}
	return fileStamp{path: path, size: info.Size(), modTime: info.ModTime()}, nil
}

func classifyLoadError(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(apperr.ArtifactMissing, "classifier.Load", err).WithPath(path)
	}
	return apperr.Wrap(apperr.ArtifactCorrupt, "classifier.Load", err).WithPath(path)
}
