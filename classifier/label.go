// Package classifier loads the spam model artifacts and runs
// vectorize-then-predict over single texts and ordered batches.
package classifier

import (
	"fmt"
	"strings"

	"spamdetect/ml"
)

type Label int

const (
	Ham Label = iota
	Spam
)

// LabelFromClass maps a model class to a Label. Only ml.ClassSpam is spam.
func LabelFromClass(class int) Label {
	if class == ml.ClassSpam {
		return Spam
	}
	return Ham
}

func (l Label) Class() int {
	if l == Spam {
		return ml.ClassSpam
	}
	return ml.ClassHam
}

func (l Label) String() string {
	if l == Spam {
		return "spam"
	}
	return "ham"
}

// Prediction is the value written to the batch output's Prediction column.
func (l Label) Prediction() string {
	if l == Spam {
		return "Spam (1)"
	}
	return "Ham (0)"
}

// Display is the label as shown to the user and written by single-result
// export.
func (l Label) Display() string {
	if l == Spam {
		return "SPAM (1)"
	}
	return "HAM (0)"
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	label, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = label
	return nil
}

// ParseLabel accepts "spam"/"ham", the Prediction and Display forms, and
// "1"/"0".
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spam", "spam (1)", "1":
		return Spam, nil
	case "ham", "ham (0)", "0":
		return Ham, nil
	}
	return Ham, fmt.Errorf("unknown label %q", s)
}
