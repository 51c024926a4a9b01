package tables

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/p-n-ai/pai-studio/internal/platform/fsutil"
)

// CSVStore keeps each table in <dir>/<name>.csv.
type CSVStore struct {
	dir string
}

// NewCSVStore creates a CSV-backed store rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

// Path returns the file backing the named table.
func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

func (s *CSVStore) Load(_ context.Context, name string) (Table, bool, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Table{}, false, nil
	}
	if err != nil {
		return Table{}, false, loadErr(name, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, false, loadErr(name, fmt.Errorf("parse csv: %w", err))
	}

	var t Table
	if len(records) > 0 {
		t.Header = records[0]
		t.Rows = records[1:]
	}
	return t, true, nil
}

func (s *CSVStore) Save(_ context.Context, name string, t Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return saveErr(name, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return saveErr(name, err)
	}

	if err := fsutil.WriteFileAtomic(s.Path(name), buf.Bytes(), 0o644); err != nil {
		return saveErr(name, err)
	}
	return nil
}
