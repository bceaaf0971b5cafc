package ml

import (
	"errors"
	"fmt"
)

// Metrics summarizes a model against labelled vectors. Confusion is indexed
// [actual][predicted] with ClassHam first.
type Metrics struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	Confusion [2][2]int `json:"confusion_matrix"`
	Samples   int       `json:"samples"`
}

func Evaluate(model Model, xs []Vector, ys []int) (Metrics, error) {
	if len(xs) == 0 {
		return Metrics{}, errors.New("evaluation set is empty")
	}
	if len(xs) != len(ys) {
		return Metrics{}, fmt.Errorf("evaluation set has %d vectors and %d labels", len(xs), len(ys))
	}

	var m Metrics
	var correct int
	for i, x := range xs {
		actual := ys[i]
		if actual != ClassHam && actual != ClassSpam {
			return Metrics{}, fmt.Errorf("evaluation label %d at row %d is not binary", actual, i)
		}
		predicted, err := model.Predict(x)
		if err != nil {
			return Metrics{}, fmt.Errorf("row %d: %w", i, err)
		}
		if predicted != ClassSpam {
			predicted = ClassHam
		}
		m.Confusion[actual][predicted]++
		if predicted == actual {
			correct++
		}
	}

	m.Samples = len(xs)
	m.Accuracy = float64(correct) / float64(len(xs))
	truePositive := m.Confusion[ClassSpam][ClassSpam]
	if predictedPositive := truePositive + m.Confusion[ClassHam][ClassSpam]; predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive := truePositive + m.Confusion[ClassSpam][ClassHam]; actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	return m, nil
}
