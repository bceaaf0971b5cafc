package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrClosed = errors.New("database not initialized")

// Store is the prediction history: single classifications, batch runs and
// model evaluations.
type Store struct {
	db *sql.DB
}

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        execution_id TEXT,
        text TEXT NOT NULL,
        label VARCHAR(8) NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS batch_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        input_path TEXT NOT NULL,
        output_path TEXT NOT NULL,
        rows INTEGER NOT NULL,
        spam INTEGER DEFAULT 0,
        elapsed_ms INTEGER DEFAULT 0,
        created_at DATETIME NOT NULL,
        UNIQUE(run_id)
    );
    CREATE TABLE IF NOT EXISTS evaluations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_type VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        samples INTEGER,
        evaluated_at DATETIME NOT NULL
    );
    `

// Open opens (creating if needed) the sqlite file at path and ensures the
// schema exists. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type Prediction struct {
	ID          int64     `json:"id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Text        string    `json:"text"`
	Label       string    `json:"label"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) RecordPrediction(p Prediction) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
        INSERT INTO predictions (execution_id, text, label, created_at)
        VALUES (?, ?, ?, ?)`,
		p.ExecutionID, p.Text, p.Label, p.CreatedAt)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(limit int) ([]Prediction, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
        SELECT id, execution_id, text, label, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var execID sql.NullString
		if err := rows.Scan(&p.ID, &execID, &p.Text, &p.Label, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ExecutionID = execID.String
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

type BatchRun struct {
	RunID      string        `json:"run_id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
	Rows       int           `json:"rows"`
	Spam       int           `json:"spam"`
	Elapsed    time.Duration `json:"elapsed"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (s *Store) RecordBatch(b BatchRun) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if b.RunID == "" {
		return errors.New("run id required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO batch_runs (run_id, input_path, output_path, rows, spam, elapsed_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.RunID, b.InputPath, b.OutputPath, b.Rows, b.Spam, b.Elapsed.Milliseconds(), b.CreatedAt)
	return err
}

func (s *Store) RecentBatches(limit int) ([]BatchRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
        SELECT run_id, input_path, output_path, rows, spam, elapsed_ms, created_at
        FROM batch_runs
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]BatchRun, 0)
	for rows.Next() {
		var b BatchRun
		var elapsedMS int64
		if err := rows.Scan(&b.RunID, &b.InputPath, &b.OutputPath, &b.Rows, &b.Spam, &elapsedMS, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, b)
	}
	return runs, rows.Err()
}

type Evaluation struct {
	ModelType   string    `json:"model_type"`
	Accuracy    float64   `json:"accuracy"`
	Precision   float64   `json:"precision"`
	Recall      float64   `json:"recall"`
	Samples     int       `json:"samples"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

func (s *Store) RecordEvaluation(e Evaluation) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.EvaluatedAt.IsZero() {
		e.EvaluatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
        INSERT INTO evaluations (model_type, accuracy, precision, recall, samples, evaluated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		e.ModelType, e.Accuracy, e.Precision, e.Recall, e.Samples, e.EvaluatedAt)
	return err
}

func (s *Store) LoadEvaluations() ([]Evaluation, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
        SELECT model_type, accuracy, precision, recall, samples, evaluated_at
        FROM evaluations
        ORDER BY evaluated_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evals := make([]Evaluation, 0)
	for rows.Next() {
		var e Evaluation
		if err := rows.Scan(&e.ModelType, &e.Accuracy, &e.Precision, &e.Recall, &e.Samples, &e.EvaluatedAt); err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
