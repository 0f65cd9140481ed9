package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage is a SQLite storage backend.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return s, nil
}

// init creates the necessary tables.
func (s *SQLiteStorage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS layers (
			page INTEGER NOT NULL,
			id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			kind TEXT NOT NULL,
			record TEXT NOT NULL,
			PRIMARY KEY (page, id)
		);
		CREATE INDEX IF NOT EXISTS idx_layers_parent ON layers(page, parent_id);
	`)
	return err
}

const sqliteUpsert = `
	INSERT OR REPLACE INTO layers (page, id, parent_id, position, kind, record)
	VALUES (?, ?, ?, ?, ?, ?)
`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteStore(ctx context.Context, e execer, d *LayerData) error {
	_, err := e.ExecContext(ctx, sqliteUpsert, d.Page, d.ID, d.ParentID, d.Position, d.Kind, string(d.Record))
	return err
}

// Store persists a record to SQLite.
func (s *SQLiteStorage) Store(ctx context.Context, d *LayerData) error {
	return sqliteStore(ctx, s.db, d)
}

// Load retrieves a record from SQLite.
func (s *SQLiteStorage) Load(ctx context.Context, page int, id string) (*LayerData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT page, id, parent_id, position, kind, record
		FROM layers WHERE page = ? AND id = ?
	`, page, id)
	d, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(page, id)
	}
	return d, err
}

// Delete removes a record from SQLite.
func (s *SQLiteStorage) Delete(ctx context.Context, page int, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM layers WHERE page = ? AND id = ?", page, id)
	return err
}

// LoadPage returns a page's records by position.
func (s *SQLiteStorage) LoadPage(ctx context.Context, page int) ([]*LayerData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page, id, parent_id, position, kind, record
		FROM layers WHERE page = ? ORDER BY position, id
	`, page)
	if err != nil {
		return nil, err
	}
	return scanLayers(rows)
}

// LoadChildren gets all child records of a parent.
func (s *SQLiteStorage) LoadChildren(ctx context.Context, page int, parentID string) ([]*LayerData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page, id, parent_id, position, kind, record
		FROM layers WHERE page = ? AND parent_id = ? ORDER BY position, id
	`, page, parentID)
	if err != nil {
		return nil, err
	}
	return scanLayers(rows)
}

// Pages lists pages with records.
func (s *SQLiteStorage) Pages(ctx context.Context) ([]int, error) {
	return queryPages(ctx, s.db, "SELECT DISTINCT page FROM layers ORDER BY page")
}

// Exists checks if a record exists.
func (s *SQLiteStorage) Exists(ctx context.Context, page int, id string) bool {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM layers WHERE page = ? AND id = ?", page, id).Scan(&count)
	return err == nil && count > 0
}

// ClearPage removes a page's records.
func (s *SQLiteStorage) ClearPage(ctx context.Context, page int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM layers WHERE page = ?", page)
	return err
}

// Clear removes all data.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM layers")
	return err
}

// BeginTransaction starts an atomic operation.
func (s *SQLiteStorage) BeginTransaction(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTransaction{tx: tx}, nil
}

// Close closes the storage backend.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// sqliteTransaction implements Transaction for SQLite.
type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Store(ctx context.Context, d *LayerData) error {
	return sqliteStore(ctx, t.tx, d)
}

func (t *sqliteTransaction) Delete(ctx context.Context, page int, id string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM layers WHERE page = ? AND id = ?", page, id)
	return err
}

func (t *sqliteTransaction) ClearPage(ctx context.Context, page int) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM layers WHERE page = ?", page)
	return err
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLayer(row scanner) (*LayerData, error) {
	var d LayerData
	var record string
	if err := row.Scan(&d.Page, &d.ID, &d.ParentID, &d.Position, &d.Kind, &record); err != nil {
		return nil, err
	}
	d.Record = []byte(record)
	return &d, nil
}

func scanLayers(rows *sql.Rows) ([]*LayerData, error) {
	defer rows.Close()
	var out []*LayerData
	for rows.Next() {
		d, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func queryPages(ctx context.Context, db *sql.DB, query string) ([]int, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
