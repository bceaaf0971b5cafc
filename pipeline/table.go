package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"spamdetect/apperr"
)

// Table is a delimited file held in memory. Every row has len(Header)
// fields.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a CSV file. UTF-8 (with or without BOM) and UTF-16 with
// BOM are accepted. Malformed or ragged input is a SchemaError.
func ReadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input table: %w", err)
	}
	defer file.Close()
	return DecodeTable(file)
}

func DecodeTable(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.New(apperr.SchemaError, "pipeline.ReadTable", "input table is empty")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaError, "pipeline.ReadTable", err)
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.SchemaError, "pipeline.ReadTable", err)
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// Column returns the index of the column named exactly name, or -1.
func (t *Table) Column(name string) int {
	for i, column := range t.Header {
		if column == name {
			return i
		}
	}
	return -1
}

// SetColumn fills column name with values, appending the column when it does
// not exist yet and overwriting it in place when it does.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := t.Column(name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// WriteTable writes t to path through a temporary file in the same
// directory and a rename, so path either holds the complete table or is
// left as it was.
func WriteTable(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+strings.TrimPrefix(filepath.Base(path), ".")+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(t.Header)
	if writeErr == nil {
		writeErr = w.WriteAll(t.Rows)
	}
	// CreateTemp opens 0600; keep the mode of a file being replaced
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	err = multierr.Combine(writeErr, tmp.Chmod(mode), tmp.Sync(), tmp.Close())
	if err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// OutputPath inserts "_predicted" before the extension of input.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_predicted" + ext
}
