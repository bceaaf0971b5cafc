package classifier

import (
	"errors"
	"fmt"
	"strings"

	"spamdetect/apperr"
	"spamdetect/ml"
)

// Engine is stateless: every call reads the artifacts it is handed and
// never mutates them.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Classify(a *Artifacts, text string) (Label, error) {
	if err := checkShape(a); err != nil {
		return Ham, err
	}
	x, err := a.Vectorizer.Transform(text)
	if err != nil {
		return Ham, apperr.Wrap(apperr.VectorizationError, "classifier.Classify", err)
	}
	class, err := a.Model.Predict(x)
	if err != nil {
		if errors.Is(err, ml.ErrDimensionMismatch) {
			return Ham, apperr.Wrap(apperr.VectorizationError, "classifier.Classify", err)
		}
		return Ham, apperr.Wrap(apperr.ArtifactCorrupt, "classifier.Classify", err)
	}
	return LabelFromClass(class), nil
}

// ClassifyBatch labels every text in order. Empty strings are classified
// like any other input so output stays aligned with input rows.
func (e *Engine) ClassifyBatch(a *Artifacts, texts []string) ([]Label, error) {
	if err := checkShape(a); err != nil {
		return nil, err
	}
	labels := make([]Label, len(texts))
	for i, text := range texts {
		label, err := e.Classify(a, text)
		if err != nil {
			return nil, apperr.Wrap(apperr.BatchClassificationError, "classifier.ClassifyBatch", err).AtRow(i)
		}
		labels[i] = label
	}
	return labels, nil
}

func (e *Engine) Evaluate(a *Artifacts) (ml.Metrics, error) {
	if a == nil || a.Eval == nil || len(a.Eval.X) == 0 {
		return ml.Metrics{}, apperr.New(apperr.EvaluationDataMissing, "classifier.Evaluate", "no held-out evaluation set loaded")
	}
	if err := checkShape(a); err != nil {
		return ml.Metrics{}, err
	}
	metrics, err := ml.Evaluate(a.Model, a.Eval.X, a.Eval.Y)
	if err != nil {
		if errors.Is(err, ml.ErrDimensionMismatch) {
			return ml.Metrics{}, apperr.Wrap(apperr.VectorizationError, "classifier.Evaluate", err)
		}
		return ml.Metrics{}, apperr.Wrap(apperr.ArtifactCorrupt, "classifier.Evaluate", err)
	}
	return metrics, nil
}

func checkShape(a *Artifacts) error {
	if a == nil || a.Model == nil || a.Vectorizer == nil {
		return apperr.New(apperr.ArtifactMissing, "classifier", "artifacts not loaded")
	}
	if a.Vectorizer.Dim() != a.Model.Dim() {
		return apperr.Wrap(apperr.VectorizationError, "classifier",
			fmt.Errorf("vectorizer produces %d features, model expects %d: %w", a.Vectorizer.Dim(), a.Model.Dim(), ml.ErrDimensionMismatch))
	}
	return nil
}

// FormatPerformance renders metrics the way the performance dialog shows
// them.
func FormatPerformance(m ml.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model Accuracy: %.2f%%\n\n", m.Accuracy*100)
	b.WriteString("Confusion Matrix:\n")
	fmt.Fprintf(&b, "[[%d %d]\n [%d %d]]", m.Confusion[0][0], m.Confusion[0][1], m.Confusion[1][0], m.Confusion[1][1])
	return b.String()
}
