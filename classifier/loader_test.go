package classifier_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/classifier/classifiertest"
)

func newLoader(t *testing.T, paths classifiertest.Paths) *classifier.Loader {
	t.Helper()
	loader, err := classifier.NewLoader(paths.LoaderConfig(), nil)
	require.NoError(t, err)
	return loader
}

func TestLoaderLoad(t *testing.T) {
	paths := classifiertest.Write(t, t.TempDir(), true)
	loader := newLoader(t, paths)

	artifacts, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, artifacts.Model)
	assert.NotNil(t, artifacts.Vectorizer)
	require.NotNil(t, artifacts.Eval)
	assert.Len(t, artifacts.Eval.X, len(classifiertest.Corpus))
}

func TestLoaderWithoutEvalSet(t *testing.T) {
	paths := classifiertest.Write(t, t.TempDir(), false)
	artifacts, err := newLoader(t, paths).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, artifacts.Eval)
}

func TestLoaderFailures(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		paths := classifiertest.Write(t, t.TempDir(), true)
		require.NoError(t, os.Remove(paths.Model))

		_, err := newLoader(t, paths).Load(context.Background())
		assert.True(t, apperr.Is(err, apperr.ArtifactMissing), "got %v", err)
		assert.Contains(t, apperr.Message(err), paths.Model)
	})

	t.Run("missing vectorizer", func(t *testing.T) {
		paths := classifiertest.Write(t, t.TempDir(), true)
		require.NoError(t, os.Remove(paths.Vectorizer))

		_, err := newLoader(t, paths).Load(context.Background())
		assert.True(t, apperr.Is(err, apperr.ArtifactMissing), "got %v", err)
	})

	t.Run("corrupt vectorizer", func(t *testing.T) {
		paths := classifiertest.Write(t, t.TempDir(), true)
		require.NoError(t, os.WriteFile(paths.Vectorizer, []byte("{not json"), 0o600))

		_, err := newLoader(t, paths).Load(context.Background())
		assert.True(t, apperr.Is(err, apperr.ArtifactCorrupt), "got %v", err)
	})

	t.Run("corrupt model", func(t *testing.T) {
		paths := classifiertest.Write(t, t.TempDir(), true)
		require.NoError(t, os.WriteFile(paths.Model, []byte(`{"weights":[]}`), 0o600))

		_, err := newLoader(t, paths).Load(context.Background())
		assert.True(t, apperr.Is(err, apperr.ArtifactCorrupt), "got %v", err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		paths := classifiertest.Write(t, t.TempDir(), true)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newLoader(t, paths).Load(ctx)
		assert.True(t, apperr.Is(err, apperr.Cancelled), "got %v", err)
	})
}

func TestLoaderRequiresPaths(t *testing.T) {
	_, err := classifier.NewLoader(classifier.LoaderConfig{ModelPath: "m.json"}, nil)
	assert.Error(t, err)
}

func TestLoaderCachesUntilFileChanges(t *testing.T) {
	paths := classifiertest.Write(t, t.TempDir(), true)
	loader := newLoader(t, paths)
	ctx := context.Background()

	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, loader.Loads())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(paths.Model, later, later))

	third, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.EqualValues(t, 2, loader.Loads())

	loader.Purge()
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, loader.Loads())
}

func TestLoaderWatchPurgesOnWrite(t *testing.T) {
	dir := t.TempDir()
	paths := classifiertest.Write(t, dir, true)
	loader := newLoader(t, paths)

	info, err := os.Stat(paths.Vectorizer)
	require.NoError(t, err)
	payload, err := os.ReadFile(paths.Vectorizer)
	require.NoError(t, err)

	_, err = loader.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Rewrite identical bytes and restore the timestamp so only the watcher
	// can explain a reload.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Clean(paths.Vectorizer), payload, 0o600); err != nil {
			return false
		}
		if err := os.Chtimes(paths.Vectorizer, info.ModTime(), info.ModTime()); err != nil {
			return false
		}
		if _, err := loader.Load(context.Background()); err != nil {
			return false
		}
		return loader.Loads() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}
