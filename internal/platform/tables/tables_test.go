package tables

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var sample = Table{
	Header: []string{"Argomento", "Stato"},
	Rows: [][]string{
		{"Grammar: Present perfect", "non iniziato"},
		{"Vocabulary, idioms", "da ripassare"},
		{"Writing \"formal\" letters", "completato"},
	},
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Load(ctx, "missing")
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if found {
		t.Error("Load(missing) found = true, want false")
	}

	if err := s.Save(ctx, "stato", sample); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, found, err := s.Load(ctx, "stato")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false after Save")
	}
	if !reflect.DeepEqual(got, sample) {
		t.Errorf("Load() = %#v, want %#v", got, sample)
	}

	// Save replaces, never appends.
	shorter := Table{Header: sample.Header, Rows: sample.Rows[:1]}
	if err := s.Save(ctx, "stato", shorter); err != nil {
		t.Fatalf("Save(shorter) error = %v", err)
	}
	got, _, _ = s.Load(ctx, "stato")
	if len(got.Rows) != 1 {
		t.Errorf("rows after replace = %d, want 1", len(got.Rows))
	}

	// Header-only tables still exist.
	empty := Table{Header: []string{"Argomento", "Punteggio", "Data", "Commento"}}
	if err := s.Save(ctx, "punteggi", empty); err != nil {
		t.Fatalf("Save(empty) error = %v", err)
	}
	got, found, err = s.Load(ctx, "punteggi")
	if err != nil || !found {
		t.Fatalf("Load(empty) found = %v, error = %v", found, err)
	}
	if len(got.Rows) != 0 || got.Column("Commento") != 3 {
		t.Errorf("Load(empty) = %#v, want header only", got)
	}
}

func TestCSVStore(t *testing.T) {
	exerciseStore(t, NewCSVStore(t.TempDir()))
}

func TestCSVStore_ReadsPandasStyleFile(t *testing.T) {
	dir := t.TempDir()
	content := "Argomento,Punteggio,Data,Commento\nTenses,87,2025-06-01 10:00:00,\"Good, clear\"\n"
	if err := os.WriteFile(filepath.Join(dir, "punteggi_test.csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, found, err := NewCSVStore(dir).Load(context.Background(), "punteggi_test")
	if err != nil || !found {
		t.Fatalf("Load() found = %v, error = %v", found, err)
	}
	if got.Rows[0][3] != "Good, clear" {
		t.Errorf("comment = %q, want %q", got.Rows[0][3], "Good, clear")
	}
}

func TestCSVStore_SaveFailureIsStorageError(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir)
	// A directory where the file should be makes the rename fail.
	if err := os.MkdirAll(filepath.Join(s.Path("stato"), "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := s.Save(context.Background(), "stato", sample)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Save() error = %v, want *StorageError", err)
	}
	if se.Op != "save" || se.Table != "stato" {
		t.Errorf("StorageError = %+v, want op=save table=stato", se)
	}
}

func TestCSVStore_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("a,\"b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewCSVStore(dir).Load(context.Background(), "bad")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Load() error = %v, want *StorageError", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_InjectedError(t *testing.T) {
	m := NewMemoryStore()
	m.Err = errors.New("disk full")

	err := m.Save(context.Background(), "stato", sample)
	if !errors.Is(err, m.Err) {
		t.Errorf("Save() error = %v, want wrapping %v", err, m.Err)
	}
	if _, found, _ := m.Load(context.Background(), "stato"); found {
		t.Error("failed Save must not store the table")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "db", "studio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	exerciseStore(t, s)
}

func TestSQLiteStore_OpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The parent of the database path is a regular file.
	if _, err := NewSQLiteStore(context.Background(), filepath.Join(blocker, "studio.db")); err == nil {
		t.Fatal("NewSQLiteStore() should fail when the directory cannot be created")
	}
}

func TestTable_CloneIsDeep(t *testing.T) {
	c := sample.Clone()
	c.Rows[0][0] = "changed"
	if sample.Rows[0][0] == "changed" {
		t.Error("Clone() shares row storage with the original")
	}
}
