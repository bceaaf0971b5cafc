// Package pipeline runs batch classification over a CSV table and writes
// the table back out with a Prediction column.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/progress"
)

const (
	TextColumn       = "text"
	PredictionColumn = "Prediction"
)

// ArtifactSource is satisfied by *classifier.Loader.
type ArtifactSource interface {
	Load(ctx context.Context) (*classifier.Artifacts, error)
}

type Runner struct {
	artifacts ArtifactSource
	engine    *classifier.Engine
	scheduler *progress.Scheduler
	log       *zap.Logger
}

// Result describes a finished batch run.
type Result struct {
	ExecutionID string
	InputPath   string
	OutputPath  string
	Rows        int
	Spam        int
	Labels      []classifier.Label
	Elapsed     time.Duration
}

func NewRunner(artifacts ArtifactSource, engine *classifier.Engine, scheduler *progress.Scheduler, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{artifacts: artifacts, engine: engine, scheduler: scheduler, log: logger}
}

// Run classifies every row of the table at inputPath and writes
// <base>_predicted<ext> next to it. The schema is checked before artifacts
// are loaded; nothing is written unless every row was classified.
func (r *Runner) Run(ctx context.Context, inputPath string) (*Result, error) {
	started := time.Now()
	table, err := ReadTable(inputPath)
	if err != nil {
		return nil, withPath(err, inputPath)
	}
	col := table.Column(TextColumn)
	if col < 0 {
		return nil, apperr.New(apperr.SchemaError, "pipeline.Run", "must contain a column named 'text'").WithPath(inputPath)
	}
	if len(table.Rows) == 0 {
		return nil, apperr.New(apperr.SchemaError, "pipeline.Run", "input table has no rows").WithPath(inputPath)
	}

	artifacts, err := r.artifacts.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		InputPath:  inputPath,
		OutputPath: OutputPath(inputPath),
		Rows:       len(table.Rows),
		Labels:     make([]classifier.Label, len(table.Rows)),
	}

	process := func(ctx context.Context, row int) error {
		label, err := r.engine.Classify(artifacts, table.Rows[row][col])
		if err != nil {
			return apperr.Wrap(apperr.BatchClassificationError, "pipeline.Run", err).WithPath(inputPath).AtRow(row)
		}
		result.Labels[row] = label
		if label == classifier.Spam {
			result.Spam++
		}
		return nil
	}

	finalize := func(ctx context.Context) (string, error) {
		predictions := make([]string, len(result.Labels))
		for i, label := range result.Labels {
			predictions[i] = label.Prediction()
		}
		if err := table.SetColumn(PredictionColumn, predictions); err != nil {
			return "", apperr.Wrap(apperr.WriteError, "pipeline.Run", err).WithPath(result.OutputPath)
		}
		if err := WriteTable(result.OutputPath, table); err != nil {
			return "", apperr.Wrap(apperr.WriteError, "pipeline.Run", err).WithPath(result.OutputPath)
		}
		result.ExecutionID = progress.ExecutionID(ctx)
		return fmt.Sprintf("Completed! Results saved to: %s", result.OutputPath), nil
	}

	if err := r.scheduler.RunRows(ctx, len(table.Rows), process, finalize); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	r.log.Info("batch completed",
		zap.String("execution_id", result.ExecutionID),
		zap.String("input", inputPath),
		zap.String("output", result.OutputPath),
		zap.Int("rows", result.Rows),
		zap.Int("spam", result.Spam),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func withPath(err error, path string) error {
	var e *apperr.Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}
