package tables

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS study_tables (
	name     TEXT    NOT NULL,
	position INTEGER NOT NULL,
	cells    TEXT    NOT NULL,
	PRIMARY KEY (name, position)
)`

// SQLiteStore keeps all tables in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer keeps modernc's locking simple for a single local user.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Load(ctx context.Context, name string) (Table, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, cells FROM study_tables WHERE name = ? ORDER BY position`, name)
	if err != nil {
		return Table{}, false, loadErr(name, err)
	}
	defer rows.Close()

	var positions []int
	var cells [][]string
	for rows.Next() {
		var pos int
		var raw string
		if err := rows.Scan(&pos, &raw); err != nil {
			return Table{}, false, loadErr(name, err)
		}
		c, err := decodeCells([]byte(raw))
		if err != nil {
			return Table{}, false, loadErr(name, err)
		}
		positions = append(positions, pos)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return Table{}, false, loadErr(name, err)
	}
	if len(positions) == 0 {
		return Table{}, false, nil
	}
	return assemble(positions, cells), true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, name string, t Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return saveErr(name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_tables WHERE name = ?`, name); err != nil {
		return saveErr(name, err)
	}

	insert := func(pos int, row []string) error {
		enc, err := encodeCells(row)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO study_tables (name, position, cells) VALUES (?, ?, ?)`, name, pos, enc)
		return err
	}

	if err := insert(headerPosition, t.Header); err != nil {
		return saveErr(name, err)
	}
	for i, row := range t.Rows {
		if err := insert(i+1, row); err != nil {
			return saveErr(name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return saveErr(name, err)
	}
	return nil
}
