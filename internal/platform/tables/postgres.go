package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const postgresSchema = `
CREATE TABLE IF NOT EXISTS study_tables (
	name     TEXT    NOT NULL,
	position INTEGER NOT NULL,
	cells    JSONB   NOT NULL,
	PRIMARY KEY (name, position)
)`

// PostgresStore keeps all tables in the study_tables relation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the schema if needed and returns the store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (Table, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT position, cells FROM study_tables WHERE name = $1 ORDER BY position`, name)
	if err != nil {
		return Table{}, false, loadErr(name, err)
	}
	defer rows.Close()

	var positions []int
	var cells [][]string
	for rows.Next() {
		var pos int
		var raw []byte
		if err := rows.Scan(&pos, &raw); err != nil {
			return Table{}, false, loadErr(name, err)
		}
		c, err := decodeCells(raw)
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

func (s *PostgresStore) Save(ctx context.Context, name string, t Table) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return saveErr(name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM study_tables WHERE name = $1`, name); err != nil {
		return saveErr(name, err)
	}

	batch := &pgx.Batch{}
	all := append([][]string{t.Header}, t.Rows...)
	for pos, row := range all {
		enc, err := encodeCells(row)
		if err != nil {
			return saveErr(name, err)
		}
		batch.Queue(`INSERT INTO study_tables (name, position, cells) VALUES ($1, $2, $3::jsonb)`, name, pos, enc)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return saveErr(name, fmt.Errorf("insert rows: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return saveErr(name, err)
	}
	return nil
}
