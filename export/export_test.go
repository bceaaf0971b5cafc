package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/pipeline"
)

func TestSave(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "result.csv")
	require.NoError(t, Save("WIN a free iPhone", classifier.Spam, dest))

	table, err := pipeline.ReadTable(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Prediction"}, table.Header)
	assert.Equal(t, [][]string{{"WIN a free iPhone", "SPAM (1)"}}, table.Rows)
}

func TestSaveAddsExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save("See you at 5pm", classifier.Ham, filepath.Join(dir, "result")))

	table, err := pipeline.ReadTable(filepath.Join(dir, "result.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"See you at 5pm", "HAM (0)"}}, table.Rows)
}

func TestSaveNoDestination(t *testing.T) {
	err := Save("hello", classifier.Ham, "")
	assert.True(t, apperr.Is(err, apperr.NoDestinationChosen))
	assert.True(t, apperr.IsUserCancel(err))
}

func TestSaveWriteError(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "missing", "result.csv")

	err := Save("hello", classifier.Ham, dest)
	assert.True(t, apperr.Is(err, apperr.WriteError), "got %v", err)
	assert.False(t, apperr.IsUserCancel(err))
	assert.NoFileExists(t, dest)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "a.csv", Destination("a"))
	assert.Equal(t, "a.txt", Destination("a.txt"))
	assert.Equal(t, "dir.d/a.csv", Destination("dir.d/a"))
}
