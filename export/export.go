// Package export saves a single classification result as a two-column CSV.
package export

import (
	"path/filepath"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/pipeline"
)

const DefaultExt = ".csv"

var header = []string{"Email", "Prediction"}

// Save writes text and label to destination. An empty destination means the
// user dismissed the save prompt and yields NoDestinationChosen without
// touching the filesystem.
func Save(text string, label classifier.Label, destination string) error {
	if destination == "" {
		return apperr.New(apperr.NoDestinationChosen, "export.Save", "no destination chosen")
	}
	destination = Destination(destination)

	table := &pipeline.Table{
		Header: header,
		Rows:   [][]string{{text, label.Display()}},
	}
	if err := pipeline.WriteTable(destination, table); err != nil {
		return apperr.Wrap(apperr.WriteError, "export.Save", err).WithPath(destination)
	}
	return nil
}

// Destination appends DefaultExt when path has no extension.
func Destination(path string) string {
	if filepath.Ext(path) == "" {
		return path + DefaultExt
	}
	return path
}
