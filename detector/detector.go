// Package detector is the single entry point presentation layers use: it
// wires the artifact loader, engine, scheduler, batch runner, history and
// metrics together.
package detector

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/db"
	"spamdetect/export"
	"spamdetect/ml"
	"spamdetect/monitoring"
	"spamdetect/pipeline"
	"spamdetect/progress"
)

var ErrHistoryDisabled = errors.New("prediction history is disabled")

type Service struct {
	artifacts pipeline.ArtifactSource
	engine    *classifier.Engine
	scheduler *progress.Scheduler
	runner    *pipeline.Runner

	history   *db.Store
	metrics   *monitoring.Metrics
	modelType string
	log       *zap.Logger

	unsubscribe func()
}

type Option func(*Service)

func WithHistory(store *db.Store) Option {
	return func(s *Service) { s.history = store }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// WithModelType labels evaluation history rows.
func WithModelType(modelType string) Option {
	return func(s *Service) { s.modelType = modelType }
}

func New(artifacts pipeline.ArtifactSource, engine *classifier.Engine, scheduler *progress.Scheduler, opts ...Option) *Service {
	s := &Service{
		artifacts: artifacts,
		engine:    engine,
		scheduler: scheduler,
		modelType: ml.ModelLogisticRegression,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = pipeline.NewRunner(artifacts, engine, scheduler, s.log)
	if s.metrics != nil {
		s.unsubscribe = scheduler.Subscribe(s.metrics)
	}
	return s
}

// Close detaches the service from the scheduler. The history store is owned
// by the caller.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Detect classifies one text behind the simulated progress sequence.
// Whitespace-only input is rejected with EmptyInput before any work starts.
func (s *Service) Detect(ctx context.Context, text string) (classifier.Label, error) {
	if strings.TrimSpace(text) == "" {
		err := apperr.New(apperr.EmptyInput, "detector.Detect", "text is empty")
		s.reject(err)
		return classifier.Ham, err
	}

	var (
		label  classifier.Label
		execID string
	)
	err := s.scheduler.RunSingle(ctx, utf8.RuneCountInString(text), func(ctx context.Context) (string, error) {
		a, err := s.artifacts.Load(ctx)
		if err != nil {
			return "", err
		}
		label, err = s.engine.Classify(a, text)
		if err != nil {
			return "", err
		}
		execID = progress.ExecutionID(ctx)
		return "", nil
	})
	if err != nil {
		if apperr.Is(err, apperr.ExecutionInProgress) {
			s.reject(err)
		}
		return classifier.Ham, err
	}

	if s.metrics != nil {
		s.metrics.RecordClassifications("single", label.String(), 1)
	}
	if s.history != nil {
		if err := s.history.RecordPrediction(db.Prediction{ExecutionID: execID, Text: text, Label: label.String()}); err != nil {
			s.log.Warn("record prediction", zap.Error(err))
		}
	}
	s.log.Info("text classified", zap.String("execution_id", execID), zap.Stringer("label", label), zap.Int("length", len(text)))
	return label, nil
}

// Batch classifies the table at inputPath and returns the output path.
func (s *Service) Batch(ctx context.Context, inputPath string) (string, error) {
	result, err := s.runner.Run(ctx, inputPath)
	if err != nil {
		// row, write and cancellation failures already reached metrics as
		// scheduler events
		switch apperr.KindOf(err) {
		case apperr.BatchClassificationError, apperr.WriteError, apperr.Cancelled:
		default:
			s.reject(err)
		}
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RecordClassifications("batch", classifier.Spam.String(), result.Spam)
		s.metrics.RecordClassifications("batch", classifier.Ham.String(), result.Rows-result.Spam)
		s.metrics.RecordBatch(result.Rows)
	}
	if s.history != nil {
		run := db.BatchRun{
			RunID:      result.ExecutionID,
			InputPath:  result.InputPath,
			OutputPath: result.OutputPath,
			Rows:       result.Rows,
			Spam:       result.Spam,
			Elapsed:    result.Elapsed,
		}
		if err := s.history.RecordBatch(run); err != nil {
			s.log.Warn("record batch run", zap.Error(err))
		}
	}
	return result.OutputPath, nil
}

// Performance evaluates the loaded model on its held-out set.
func (s *Service) Performance(ctx context.Context) (ml.Metrics, error) {
	a, err := s.artifacts.Load(ctx)
	if err != nil {
		return ml.Metrics{}, err
	}
	metrics, err := s.engine.Evaluate(a)
	if err != nil {
		return ml.Metrics{}, err
	}
	if s.history != nil {
		eval := db.Evaluation{
			ModelType: s.modelType,
			Accuracy:  metrics.Accuracy,
			Precision: metrics.Precision,
			Recall:    metrics.Recall,
			Samples:   metrics.Samples,
		}
		if err := s.history.RecordEvaluation(eval); err != nil {
			s.log.Warn("record evaluation", zap.Error(err))
		}
	}
	return metrics, nil
}

func (s *Service) Save(text string, label classifier.Label, destination string) error {
	err := export.Save(text, label, destination)
	switch {
	case err == nil:
		s.log.Info("result saved", zap.String("path", export.Destination(destination)))
	case apperr.IsUserCancel(err):
		s.log.Debug("save cancelled")
	default:
		s.log.Warn("save failed", zap.Error(err))
	}
	return err
}

func (s *Service) History(limit int) ([]db.Prediction, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.RecentPredictions(limit)
}

func (s *Service) State() progress.State {
	return s.scheduler.State()
}

func (s *Service) Busy() bool {
	return s.scheduler.Busy()
}

// Subscribe registers o for progress events until the returned func runs.
func (s *Service) Subscribe(o progress.Observer) func() {
	return s.scheduler.Subscribe(o)
}

// Reset clears a finished execution's state back to idle.
func (s *Service) Reset() error {
	return s.scheduler.Reset()
}

func (s *Service) reject(err error) {
	if s.metrics != nil {
		s.metrics.RecordRejection(err)
	}
	s.log.Debug("request rejected", zap.Error(err))
}
