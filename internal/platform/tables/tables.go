// Package tables persists small named tables of string cells: a header row
// followed by data rows. It is the storage boundary for topic states and
// score history, with CSV, SQLite and PostgreSQL backends.
package tables

import (
	"context"
	"fmt"
)

// Table is a header plus data rows, all as strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named header column, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := Table{Header: append([]string(nil), t.Header...)}
	if t.Rows != nil {
		out.Rows = make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}

// Store loads and saves whole tables by name. Save replaces the previous
// content of the table in a single step.
type Store interface {
	// Load returns the table and whether it exists.
	Load(ctx context.Context, name string) (Table, bool, error)
	Save(ctx context.Context, name string, t Table) error
}

// StorageError reports a failed read or write of a table.
type StorageError struct {
	Op    string // "load" or "save"
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func loadErr(name string, err error) error {
	return &StorageError{Op: "load", Table: name, Err: err}
}

func saveErr(name string, err error) error {
	return &StorageError{Op: "save", Table: name, Err: err}
}
