package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/classifier/classifiertest"
	"spamdetect/db"
	"spamdetect/monitoring"
	"spamdetect/pipeline"
	"spamdetect/progress"
)

type fixture struct {
	svc       *Service
	scheduler *progress.Scheduler
	store     *db.Store
	metrics   *monitoring.Metrics
	dir       string
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newFixture(t *testing.T, withEval bool, opts ...progress.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	paths := classifiertest.Write(t, dir, withEval)
	loader, err := classifier.NewLoader(paths.LoaderConfig(), nil)
	require.NoError(t, err)

	store, err := db.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	scheduler := progress.NewScheduler(append([]progress.Option{progress.WithSleep(noSleep)}, opts...)...)
	metrics := monitoring.NewMetrics()
	svc := New(loader, classifier.NewEngine(), scheduler, WithHistory(store), WithMetrics(metrics))
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, scheduler: scheduler, store: store, metrics: metrics, dir: dir}
}

func TestDetect(t *testing.T) {
	f := newFixture(t, true)

	label, err := f.svc.Detect(context.Background(), "Free money now")
	require.NoError(t, err)
	assert.Equal(t, classifier.Spam, label)

	label, err = f.svc.Detect(context.Background(), "  See you at 5pm\n")
	require.NoError(t, err)
	assert.Equal(t, classifier.Ham, label)

	state := f.svc.State()
	assert.True(t, state.Done)
	assert.Equal(t, 100, state.Current)

	history, err := f.svc.History(10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	labels := map[string]string{}
	for _, p := range history {
		labels[p.Text] = p.Label
		assert.NotEmpty(t, p.ExecutionID)
	}
	assert.Equal(t, "spam", labels["Free money now"])
	assert.Equal(t, "ham", labels["  See you at 5pm\n"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Classifications.WithLabelValues("single", "spam")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Busy))
}

func TestDetectEmptyInput(t *testing.T) {
	f := newFixture(t, true)
	var events []progress.Event
	defer f.svc.Subscribe(progress.ObserverFunc(func(e progress.Event) { events = append(events, e) }))()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Detect(context.Background(), text)
		assert.True(t, apperr.Is(err, apperr.EmptyInput), "text %q: %v", text, err)
		assert.Equal(t, "Please enter some text first!", apperr.Message(err))
	}
	assert.Empty(t, events, "rejected input never starts an execution")
	assert.Equal(t, progress.Idle(), f.svc.State())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues(apperr.EmptyInput.String())))
}

func TestDetectRejectsConcurrentExecution(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	blocking := func(ctx context.Context, d time.Duration) error {
		if first {
			first = false
			close(entered)
			<-release
		}
		return ctx.Err()
	}
	f := newFixture(t, true, progress.WithSleep(blocking))

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Detect(context.Background(), "Free money now")
		done <- err
	}()
	<-entered
	require.True(t, f.svc.Busy())
	before := f.svc.State()

	_, err := f.svc.Detect(context.Background(), "See you at 5pm")
	assert.True(t, apperr.Is(err, apperr.ExecutionInProgress))
	input := filepath.Join(f.dir, "emails.csv")
	require.NoError(t, os.WriteFile(input, []byte("text\nhello\n"), 0o600))
	_, err = f.svc.Batch(context.Background(), input)
	assert.True(t, apperr.Is(err, apperr.ExecutionInProgress))
	assert.NoFileExists(t, filepath.Join(f.dir, "emails_predicted.csv"))
	assert.Equal(t, before, f.svc.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues(apperr.ExecutionInProgress.String())))
}

func TestDetectMissingArtifacts(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "logistic_regression_model.json")))

	_, err := f.svc.Detect(context.Background(), "Free money now")
	assert.True(t, apperr.Is(err, apperr.ArtifactMissing), "got %v", err)
	state := f.svc.State()
	assert.Equal(t, 0, state.Current)
	assert.False(t, state.Done)
	assert.False(t, f.svc.Busy())
}

func TestBatch(t *testing.T) {
	f := newFixture(t, true)
	input := filepath.Join(f.dir, "emails.csv")
	require.NoError(t, os.WriteFile(input, []byte("text\nFree money now\nSee you at 5pm\nWin a free prize\n"), 0o600))

	out, err := f.svc.Batch(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "emails_predicted.csv"), out)

	table, err := pipeline.ReadTable(out)
	require.NoError(t, err)
	assert.Equal(t, "Spam (1)", table.Rows[2][1])

	runs, err := f.store.RecentBatches(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].RunID)
	assert.Equal(t, 3, runs[0].Rows)
	assert.Equal(t, 2, runs[0].Spam)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Classifications.WithLabelValues("batch", "spam")))
}

func TestBatchSchemaError(t *testing.T) {
	f := newFixture(t, true)
	input := filepath.Join(f.dir, "emails.csv")
	require.NoError(t, os.WriteFile(input, []byte("body\nhello\n"), 0o600))

	_, err := f.svc.Batch(context.Background(), input)
	assert.True(t, apperr.Is(err, apperr.SchemaError))
	assert.NoFileExists(t, filepath.Join(f.dir, "emails_predicted.csv"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues(apperr.SchemaError.String())))
}

func TestPerformance(t *testing.T) {
	f := newFixture(t, true)
	m, err := f.svc.Performance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, m.Accuracy, 1e-9)
	assert.Equal(t, [2][2]int{{2, 0}, {1, 3}}, m.Confusion)

	evals, err := f.store.LoadEvaluations()
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, "logistic_regression", evals[0].ModelType)

	noEval := newFixture(t, false)
	_, err = noEval.svc.Performance(context.Background())
	assert.True(t, apperr.Is(err, apperr.EvaluationDataMissing))
}

func TestSave(t *testing.T) {
	f := newFixture(t, true)
	err := f.svc.Save("Free money now", classifier.Spam, "")
	assert.True(t, apperr.IsUserCancel(err))

	dest := filepath.Join(f.dir, "saved")
	require.NoError(t, f.svc.Save("Free money now", classifier.Spam, dest))
	assert.FileExists(t, dest+".csv")
}

func TestHistoryDisabled(t *testing.T) {
	scheduler := progress.NewScheduler(progress.WithSleep(noSleep))
	svc := New(nil, classifier.NewEngine(), scheduler)
	_, err := svc.History(5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
