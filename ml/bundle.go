package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Bundle is the vectorizer artifact: the fitted transform plus an optional
// held-out evaluation set that is already vectorized.
type Bundle struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	XTest      []Vector    `json:"x_test,omitempty"`
	YTest      []int       `json:"y_test,omitempty"`
}

func (b *Bundle) HasEvalSet() bool {
	return len(b.XTest) > 0
}

func (b *Bundle) Validate() error {
	if err := b.Vectorizer.Validate(); err != nil {
		return err
	}
	if len(b.XTest) != len(b.YTest) {
		return fmt.Errorf("bundle has %d test vectors and %d test labels", len(b.XTest), len(b.YTest))
	}
	for i, x := range b.XTest {
		if err := x.Validate(); err != nil {
			return fmt.Errorf("x_test row %d: %w", i, err)
		}
	}
	return nil
}

func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func LoadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeBundle(file)
}

func (b *Bundle) Save(path string) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
