package ml

import "errors"

var (
	ErrNotTrained        = errors.New("model not trained")
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)

// Class values produced by every Model.
const (
	ClassHam  = 0
	ClassSpam = 1
)

// Model is a fitted binary classifier over vectorized text.
type Model interface {
	Predict(x Vector) (int, error)
	Dim() int
	Save(path string) error
	Load(path string) error
}
