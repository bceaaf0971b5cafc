// Package apperr defines the error kinds surfaced by the detector to its
// presentation layers. Callers branch on Kind rather than on message text.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	ArtifactMissing
	ArtifactCorrupt
	VectorizationError
	SchemaError
	BatchClassificationError
	EvaluationDataMissing
	NoDestinationChosen
	WriteError
	ExecutionInProgress
	EmptyInput
	Cancelled
)

var kindNames = map[Kind]string{
	Unknown:                  "unknown",
	ArtifactMissing:          "artifact_missing",
	ArtifactCorrupt:          "artifact_corrupt",
	VectorizationError:       "vectorization_error",
	SchemaError:              "schema_error",
	BatchClassificationError: "batch_classification_error",
	EvaluationDataMissing:    "evaluation_data_missing",
	NoDestinationChosen:      "no_destination_chosen",
	WriteError:               "write_error",
	ExecutionInProgress:      "execution_in_progress",
	EmptyInput:               "empty_input",
	Cancelled:                "cancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure carried through the detector.
// Row is only meaningful for BatchClassificationError and is -1 otherwise.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Row  int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Row >= 0 && e.Kind == BatchClassificationError {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: SchemaError}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// New builds an Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Row: -1}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Row: -1}
}

// WithPath sets Path and returns e.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// AtRow sets Row and returns e.
func (e *Error) AtRow(row int) *Error {
	e.Row = row
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RowOf returns the failing row of a BatchClassificationError.
func RowOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == BatchClassificationError && e.Row >= 0 {
		return e.Row, true
	}
	return 0, false
}

// IsUserCancel reports outcomes that come from the user backing out rather
// than from a failure. Presentation layers should not alarm on these.
func IsUserCancel(err error) bool {
	switch KindOf(err) {
	case NoDestinationChosen, Cancelled:
		return true
	}
	return false
}

// Message renders err as a single human-readable line.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("Something went wrong: %v", err)
	}
	switch e.Kind {
	case ArtifactMissing:
		return fmt.Sprintf("Model artifacts not found: %s", firstNonEmpty(e.Path, causeText(e)))
	case ArtifactCorrupt:
		return fmt.Sprintf("Model artifacts could not be read: %s", causeText(e))
	case VectorizationError:
		return fmt.Sprintf("Text could not be vectorized: %s", causeText(e))
	case SchemaError:
		return fmt.Sprintf("Invalid input table: %s", firstNonEmpty(e.Msg, causeText(e)))
	case BatchClassificationError:
		return fmt.Sprintf("Batch processing failed at row %d: %s", e.Row, causeText(e))
	case EvaluationDataMissing:
		return "Unable to load model performance: no evaluation data in the vectorizer bundle"
	case NoDestinationChosen:
		return "Save cancelled"
	case WriteError:
		return fmt.Sprintf("Could not save file: %s", causeText(e))
	case ExecutionInProgress:
		return "Another analysis is still running"
	case EmptyInput:
		return "Please enter some text first!"
	case Cancelled:
		return "Cancelled"
	}
	return e.Error()
}

func causeText(e *Error) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
