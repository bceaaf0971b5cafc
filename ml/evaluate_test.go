package ml

import "testing"

type thresholdModel struct{}

func (thresholdModel) Predict(x Vector) (int, error) {
	if x.At(0) > 0.5 {
		return ClassSpam, nil
	}
	return ClassHam, nil
}
func (thresholdModel) Dim() int               { return 1 }
func (thresholdModel) Save(path string) error { return nil }
func (thresholdModel) Load(path string) error { return nil }

func TestEvaluate(t *testing.T) {
	xs := []Vector{
		DenseVector([]float64{0.9}),
		DenseVector([]float64{0.8}),
		DenseVector([]float64{0.1}),
		DenseVector([]float64{0.7}),
	}
	ys := []int{ClassSpam, ClassHam, ClassHam, ClassSpam}

	m, err := Evaluate(thresholdModel{}, xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Accuracy != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %f", m.Accuracy)
	}
	want := [2][2]int{{1, 1}, {0, 2}}
	if m.Confusion != want {
		t.Fatalf("expected confusion %v, got %v", want, m.Confusion)
	}
	if m.Recall != 1 {
		t.Fatalf("expected recall 1, got %f", m.Recall)
	}
	if m.Precision < 0.66 || m.Precision > 0.67 {
		t.Fatalf("expected precision 2/3, got %f", m.Precision)
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	if _, err := Evaluate(thresholdModel{}, nil, nil); err == nil {
		t.Fatal("expected error for empty set")
	}
	if _, err := Evaluate(thresholdModel{}, []Vector{{Dim: 1}}, []int{0, 1}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
	if _, err := Evaluate(thresholdModel{}, []Vector{{Dim: 1}}, []int{2}); err == nil {
		t.Fatal("expected error for non-binary label")
	}
}
