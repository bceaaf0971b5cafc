package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const minTokenLen = 2

// Vectorizer is a fitted TF-IDF transform. Output vectors are L2-normalized
// and have Dim() == len(IDF).
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Lowercase  bool           `json:"lowercase"`
	Sublinear  bool           `json:"sublinear_tf"`
}

func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

var errNotFitted = errors.New("vectorizer not fitted")

func (v *Vectorizer) fitted() bool {
	return v != nil && len(v.Vocabulary) > 0 && len(v.IDF) > 0
}

// Validate walks the whole vocabulary; loaders call it once so Transform
// does not have to.
func (v *Vectorizer) Validate() error {
	if !v.fitted() {
		return errNotFitted
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("vocabulary term %q maps to index %d outside idf length %d", term, idx, len(v.IDF))
		}
	}
	return nil
}

// Tokenize splits text into terms: NFKC-normalized, optionally case-folded,
// runs of letters and digits of at least two runes.
func (v *Vectorizer) Tokenize(text string) []string {
	text = norm.NFKC.String(text)
	if v.Lowercase {
		text = cases.Fold().String(text)
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= minTokenLen {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Transform vectorizes one raw text. Terms outside the vocabulary are
// ignored; a text with no known terms yields an all-zero vector.
func (v *Vectorizer) Transform(text string) (Vector, error) {
	if !v.fitted() {
		return Vector{}, errNotFitted
	}
	counts := make(map[int]float64)
	for _, token := range v.Tokenize(text) {
		idx, ok := v.Vocabulary[token]
		if !ok {
			continue
		}
		if idx < 0 || idx >= len(v.IDF) {
			return Vector{}, fmt.Errorf("vocabulary term %q maps to index %d outside idf length %d", token, idx, len(v.IDF))
		}
		counts[idx]++
	}

	out := Vector{Dim: v.Dim()}
	if len(counts) == 0 {
		return out, nil
	}
	out.Indices = make([]int, 0, len(counts))
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)
	out.Values = make([]float64, len(out.Indices))
	for k, idx := range out.Indices {
		tf := counts[idx]
		if v.Sublinear {
			tf = 1 + math.Log(tf)
		}
		out.Values[k] = tf * v.IDF[idx]
	}
	l2Normalize(out.Values)
	return out, nil
}

// FitVectorizer learns a vocabulary and smoothed IDF weights from docs.
// Terms are indexed in lexical order.
func FitVectorizer(docs []string, lowercase bool) *Vectorizer {
	v := &Vectorizer{Lowercase: lowercase}
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, token := range v.Tokenize(doc) {
			if !seen[token] {
				seen[token] = true
				df[token]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}
