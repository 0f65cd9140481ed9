// Package storage persists page layer records.
//
// Records are opaque JSON: the backend stores whatever the layer package
// produces and only indexes the fields it needs to order and query pages.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned by Load when no record matches.
var ErrNotFound = errors.New("layer record not found")

// ErrUnknownBackend is returned by Open for an unsupported storage type.
var ErrUnknownBackend = errors.New("unknown storage type")

// LayerData is one stored layer.
type LayerData struct {
	Page     int             `json:"page"`
	ID       string          `json:"id"`
	ParentID string          `json:"parentId,omitempty"`
	Position int             `json:"position"` // stacking index, 0 = bottom
	Kind     string          `json:"type"`
	Record   json.RawMessage `json:"record"`
}

// Backend defines the interface for storage backends.
type Backend interface {
	// Store inserts or replaces a record.
	Store(ctx context.Context, d *LayerData) error

	// Load retrieves one record.
	Load(ctx context.Context, page int, id string) (*LayerData, error)

	// Delete removes one record. Deleting a missing record is not an error.
	Delete(ctx context.Context, page int, id string) error

	// LoadPage returns a page's records ordered by position.
	LoadPage(ctx context.Context, page int) ([]*LayerData, error)

	// LoadChildren returns the records whose parent is parentID.
	LoadChildren(ctx context.Context, page int, parentID string) ([]*LayerData, error)

	// Pages lists the pages that have records, ascending.
	Pages(ctx context.Context) ([]int, error)

	// Exists checks if a record exists.
	Exists(ctx context.Context, page int, id string) bool

	// ClearPage removes all records of a page.
	ClearPage(ctx context.Context, page int) error

	// Clear removes all data.
	Clear(ctx context.Context) error

	// BeginTransaction starts an atomic operation.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// Close closes the storage backend.
	Close() error
}

// Transaction represents an atomic storage operation.
type Transaction interface {
	Store(ctx context.Context, d *LayerData) error
	Delete(ctx context.Context, page int, id string) error
	ClearPage(ctx context.Context, page int) error
	Commit() error
	Rollback() error
}

// Open creates the backend named by typ: "memory", "sqlite" or "postgresql".
func Open(typ, path, url string) (Backend, error) {
	switch typ {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(path)
	case "postgresql", "postgres":
		return NewPostgresStorage(url)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, typ)
	}
}

// ReplacePage swaps a page's records atomically.
func ReplacePage(ctx context.Context, b Backend, page int, records []*LayerData) (err error) {
	tx, err := b.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("begin page %d: %w", page, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = tx.ClearPage(ctx, page); err != nil {
		return fmt.Errorf("clear page %d: %w", page, err)
	}
	for _, r := range records {
		if err = tx.Store(ctx, r); err != nil {
			return fmt.Errorf("store layer %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func notFound(page int, id string) error {
	return fmt.Errorf("%w: page %d id %s", ErrNotFound, page, id)
}
