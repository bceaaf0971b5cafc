package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
)

const defaultThreshold = 0.5

// LogisticRegression is a linear model over vectorized text. Threshold
// defaults to 0.5 when unset.
type LogisticRegression struct {
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Threshold float64   `json:"threshold,omitempty"`
}

func (lr *LogisticRegression) Dim() int {
	return len(lr.Weights)
}

// Probability returns the estimated probability of ClassSpam.
func (lr *LogisticRegression) Probability(x Vector) (float64, error) {
	if len(lr.Weights) == 0 {
		return 0, ErrNotTrained
	}
	if x.Dim != len(lr.Weights) {
		return 0, ErrDimensionMismatch
	}
	z := lr.Bias
	for k, idx := range x.Indices {
		if idx < 0 || idx >= len(lr.Weights) {
			return 0, ErrDimensionMismatch
		}
		z += lr.Weights[idx] * x.Values[k]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func (lr *LogisticRegression) Predict(x Vector) (int, error) {
	p, err := lr.Probability(x)
	if err != nil {
		return 0, err
	}
	threshold := lr.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultThreshold
	}
	if p >= threshold {
		return ClassSpam, nil
	}
	return ClassHam, nil
}

func (lr *LogisticRegression) Save(path string) error {
	if len(lr.Weights) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Weights) == 0 {
		return errors.New("logistic regression has no weights")
	}
	*lr = loaded
	return nil
}
