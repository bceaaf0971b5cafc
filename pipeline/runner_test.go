package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/classifier/classifiertest"
	"spamdetect/ml"
	"spamdetect/progress"
)

type countingSource struct {
	artifacts *classifier.Artifacts
	calls     int
}

func (c *countingSource) Load(ctx context.Context) (*classifier.Artifacts, error) {
	c.calls++
	return c.artifacts, nil
}

func newTestRunner(t *testing.T) (*Runner, *countingSource, *progress.Scheduler) {
	t.Helper()
	source := &countingSource{artifacts: classifiertest.Artifacts(t)}
	scheduler := progress.NewScheduler(progress.WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
	return NewRunner(source, classifier.NewEngine(), scheduler, nil), source, scheduler
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunnerRun(t *testing.T) {
	runner, source, scheduler := newTestRunner(t)
	input := writeInput(t, "emails.csv", "text\nFree money now\nSee you at 5pm\n")

	var events []progress.Event
	defer scheduler.Subscribe(progress.ObserverFunc(func(e progress.Event) { events = append(events, e) }))()

	result, err := runner.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "artifacts load once per run")
	assert.Equal(t, strings.TrimSuffix(input, ".csv")+"_predicted.csv", result.OutputPath)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.Spam)

	out, err := ReadTable(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "Prediction"}, out.Header)
	assert.Equal(t, [][]string{
		{"Free money now", "Spam (1)"},
		{"See you at 5pm", "Ham (0)"},
	}, out.Rows)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, progress.EventCompleted, last.Type)
	assert.Equal(t, progress.State{Current: 2, Maximum: 2, Status: "Completed! Results saved to: " + result.OutputPath, Done: true}, last.State)
}

func TestRunnerPreservesColumnsAndOrder(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	input := writeInput(t, "inbox.csv", "id,text,sender\n1,See you at 5pm,bob\n2,,carol\n3,claim your free gift card,spam@x\n4,\"Lunch, tomorrow?\",dave\n")

	result, err := runner.Run(context.Background(), input)
	require.NoError(t, err)

	out, err := ReadTable(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text", "sender", "Prediction"}, out.Header)
	require.Len(t, out.Rows, 4)
	assert.Equal(t, []string{"1", "See you at 5pm", "bob", "Ham (0)"}, out.Rows[0])
	assert.Equal(t, []string{"2", "", "carol", "Ham (0)"}, out.Rows[1])
	assert.Equal(t, []string{"3", "claim your free gift card", "spam@x", "Spam (1)"}, out.Rows[2])
	assert.Equal(t, []string{"4", "Lunch, tomorrow?", "dave", "Ham (0)"}, out.Rows[3])
}

func TestRunnerSchemaError(t *testing.T) {
	runner, source, scheduler := newTestRunner(t)

	tests := map[string]string{
		"missing text column": "body\nFree money now\n",
		"case differs":        "Text\nFree money now\n",
		"no rows":             "text\n",
		"empty file":          "",
		"ragged rows":         "text,id\nhello,1\nworld\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			input := writeInput(t, "in.csv", content)
			_, err := runner.Run(context.Background(), input)
			assert.True(t, apperr.Is(err, apperr.SchemaError), "got %v", err)
			assert.NoFileExists(t, OutputPath(input))
		})
	}
	assert.Equal(t, 0, source.calls, "schema is checked before artifacts load")
	assert.Equal(t, progress.Idle(), scheduler.State())

	_, err := runner.Run(context.Background(), writeInput(t, "x.csv", "body\nx\n"))
	assert.Equal(t, "Invalid input table: must contain a column named 'text'", apperr.Message(err))
}

func TestRunnerRowFailureWritesNothing(t *testing.T) {
	runner, source, scheduler := newTestRunner(t)
	source.artifacts.Model = &flakyModel{Model: source.artifacts.Model, failOn: 2}
	input := writeInput(t, "bad.csv", "text\nhello\nbroken\nbye\n")

	_, err := runner.Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.BatchClassificationError), "got %v", err)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.ArtifactCorrupt})
	row, ok := apperr.RowOf(err)
	assert.True(t, ok)
	assert.Equal(t, 1, row)
	assert.NoFileExists(t, OutputPath(input))
	assert.Equal(t, 0, scheduler.State().Current)
	assert.False(t, scheduler.State().Done)

	entries, err := os.ReadDir(filepath.Dir(input))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestRunnerVectorizationFailure(t *testing.T) {
	runner, source, _ := newTestRunner(t)
	source.artifacts.Model = &mismatchedModel{}
	input := writeInput(t, "in.csv", "text\nhello\n")

	_, err := runner.Run(context.Background(), input)
	assert.True(t, apperr.Is(err, apperr.BatchClassificationError))
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.VectorizationError})
	assert.NoFileExists(t, OutputPath(input))
}

func TestRunnerCancelledWritesNothing(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	input := writeInput(t, "in.csv", "text\na\nb\nc\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, input)
	assert.True(t, apperr.IsUserCancel(err), "got %v", err)
	assert.NoFileExists(t, OutputPath(input))
}

func TestRunnerLastWriteWins(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	input := writeInput(t, "in.csv", "text\nSee you at 5pm\n")

	_, err := runner.Run(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(input, []byte("text\nFree money now\n"), 0o600))
	result, err := runner.Run(context.Background(), input)
	require.NoError(t, err)

	out, err := ReadTable(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Free money now", "Spam (1)"}}, out.Rows)
}

func TestRunnerOverwritesExistingPredictionColumn(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	input := writeInput(t, "in.csv", "text,Prediction\nFree money now,old\n")

	result, err := runner.Run(context.Background(), input)
	require.NoError(t, err)
	out, err := ReadTable(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "Prediction"}, out.Header)
	assert.Equal(t, [][]string{{"Free money now", "Spam (1)"}}, out.Rows)
}

type mismatchedModel struct{}

func (mismatchedModel) Predict(x ml.Vector) (int, error) { return 0, nil }
func (mismatchedModel) Dim() int                         { return 1 }
func (mismatchedModel) Save(string) error                { return nil }
func (mismatchedModel) Load(string) error                { return nil }

type flakyModel struct {
	ml.Model
	failOn int
	calls  int
}

func (m *flakyModel) Predict(x ml.Vector) (int, error) {
	m.calls++
	if m.calls == m.failOn {
		return 0, errors.New("invalid tree state")
	}
	return m.Model.Predict(x)
}
