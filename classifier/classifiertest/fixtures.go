// Package classifiertest writes deterministic artifacts for tests: a TF-IDF
// vectorizer and a logistic model that flags any text containing "free".
package classifiertest

import (
	"path/filepath"
	"testing"

	"spamdetect/classifier"
	"spamdetect/ml"
)

var Corpus = []string{
	"Free money now",
	"See you at 5pm",
	"Win a free prize",
	"Let's meet for lunch tomorrow",
	"Claim your free gift card",
	"Project meeting notes attached",
}

type Paths struct {
	Model      string
	Vectorizer string
}

func (p Paths) LoaderConfig() classifier.LoaderConfig {
	return classifier.LoaderConfig{
		ModelType:      ml.ModelLogisticRegression,
		ModelPath:      p.Model,
		VectorizerPath: p.Vectorizer,
	}
}

// Vectorizer returns the fitted fixture vectorizer.
func Vectorizer() *ml.Vectorizer {
	return ml.FitVectorizer(Corpus, true)
}

// FreeModel returns a logistic model whose only positive weight is "free".
func FreeModel(v *ml.Vectorizer) *ml.LogisticRegression {
	weights := make([]float64, v.Dim())
	weights[v.Vocabulary["free"]] = 8
	return &ml.LogisticRegression{Weights: weights, Bias: -1}
}

// Artifacts builds the in-memory bundle, including an evaluation set.
func Artifacts(t testing.TB) *classifier.Artifacts {
	t.Helper()
	v := Vectorizer()
	bundle := evalBundle(t, v)
	return &classifier.Artifacts{
		Model:      FreeModel(v),
		Vectorizer: v,
		Eval:       &classifier.EvalSet{X: bundle.XTest, Y: bundle.YTest},
	}
}

// Write saves the fixture artifacts into dir. withEval controls whether the
// vectorizer bundle carries a held-out set.
func Write(t testing.TB, dir string, withEval bool) Paths {
	t.Helper()
	v := Vectorizer()
	paths := Paths{
		Model:      filepath.Join(dir, "logistic_regression_model.json"),
		Vectorizer: filepath.Join(dir, "preprocessed_data_full.json"),
	}
	if err := FreeModel(v).Save(paths.Model); err != nil {
		t.Fatalf("write model: %v", err)
	}
	bundle := &ml.Bundle{Vectorizer: v}
	if withEval {
		bundle = evalBundle(t, v)
	}
	if err := bundle.Save(paths.Vectorizer); err != nil {
		t.Fatalf("write vectorizer: %v", err)
	}
	return paths
}

// evalBundle labels the corpus by the same rule as FreeModel, except the
// last row, which is deliberately mislabelled so accuracy is 5/6.
func evalBundle(t testing.TB, v *ml.Vectorizer) *ml.Bundle {
	t.Helper()
	bundle := &ml.Bundle{Vectorizer: v}
	labels := []int{1, 0, 1, 0, 1, 1}
	for i, text := range Corpus {
		x, err := v.Transform(text)
		if err != nil {
			t.Fatalf("vectorize fixture: %v", err)
		}
		bundle.XTest = append(bundle.XTest, x)
		bundle.YTest = append(bundle.YTest, labels[i])
	}
	return bundle
}
