package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/smartshop/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS shopping_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS shopping_list_items (
	id       TEXT PRIMARY KEY,
	list_id  TEXT NOT NULL REFERENCES shopping_lists(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	ean      TEXT NOT NULL DEFAULT '',
	name     TEXT NOT NULL DEFAULT '',
	brand    TEXT NOT NULL DEFAULT '',
	size     TEXT NOT NULL DEFAULT '',
	qty      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_items_list ON shopping_list_items(list_id, position);
`

// ListRepository stores shopping lists in a SQLite database.
type ListRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*ListRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ListRepository{db: db, now: time.Now}, nil
}

// Close closes the database.
func (r *ListRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *ListRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateList creates an empty list.
func (r *ListRepository) CreateList(ctx context.Context, name string) (*domain.ShoppingList, error) {
	list := &domain.ShoppingList{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: r.now().UTC().Truncate(time.Second),
		Items:     []domain.ShoppingListItem{},
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, name, created_at) VALUES (?, ?, ?)`,
		list.ID, list.Name, list.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return list, nil
}

// GetList returns a list with its items in insertion order.
func (r *ListRepository) GetList(ctx context.Context, id string) (*domain.ShoppingList, error) {
	var list domain.ShoppingList
	var created string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM shopping_lists WHERE id = ?`, id).
		Scan(&list.ID, &list.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select list: %w", err)
	}
	if list.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ean, name, brand, size, qty FROM shopping_list_items
		 WHERE list_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	list.Items = []domain.ShoppingListItem{}
	for rows.Next() {
		var item domain.ShoppingListItem
		if err := rows.Scan(&item.ID, &item.EAN, &item.Name, &item.Brand, &item.Size, &item.Qty); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list.Items = append(list.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return &list, nil
}

// AddItem appends an item. An item whose barcode is already on the list adds
// its quantity to the existing line instead.
func (r *ListRepository) AddItem(ctx context.Context, listID string, item domain.ShoppingListItem) (*domain.ShoppingList, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := listExists(ctx, tx, listID); err != nil {
		return nil, err
	}

	qty := item.Quantity()
	merged := false
	if item.EAN != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE shopping_list_items SET qty = qty + ? WHERE list_id = ? AND ean = ?`,
			qty, listID, item.EAN)
		if err != nil {
			return nil, fmt.Errorf("merge item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("merge item: %w", err)
		}
		merged = n > 0
	}

	if !merged {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM shopping_list_items WHERE list_id = ?`, listID).
			Scan(&next); err != nil {
			return nil, fmt.Errorf("next position: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO shopping_list_items (id, list_id, position, ean, name, brand, size, qty)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), listID, next, item.EAN, item.Name, item.Brand, item.Size, qty)
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.GetList(ctx, listID)
}

// RemoveItem deletes one item.
func (r *ListRepository) RemoveItem(ctx context.Context, listID, itemID string) error {
	if err := listExists(ctx, r.db, listID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE list_id = ? AND id = ?`, listID, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ClearItems removes every item from a list.
func (r *ListRepository) ClearItems(ctx context.Context, listID string) error {
	if err := listExists(ctx, r.db, listID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE list_id = ?`, listID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listExists(ctx context.Context, q queryer, listID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM shopping_lists WHERE id = ?`, listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrListNotFound
	}
	if err != nil {
		return fmt.Errorf("select list: %w", err)
	}
	return nil
}
