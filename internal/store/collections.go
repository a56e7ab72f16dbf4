package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/johnwards/dealerhub/internal/domain"
)

// CollectionStore defines operations for collection definitions.
type CollectionStore interface {
	List(ctx context.Context) ([]*domain.Collection, error)
	Get(ctx context.Context, name string) (*domain.Collection, error)
	Create(ctx context.Context, c *domain.Collection) (*domain.Collection, error)
}

// SQLiteCollectionStore implements CollectionStore using SQLite.
type SQLiteCollectionStore struct {
	db *sql.DB
}

// NewSQLiteCollectionStore creates a new SQLiteCollectionStore.
func NewSQLiteCollectionStore(db *sql.DB) *SQLiteCollectionStore {
	return &SQLiteCollectionStore{db: db}
}

// List returns every collection with its field definitions, ordered by name.
func (s *SQLiteCollectionStore) List(ctx context.Context) ([]*domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	result := make([]*domain.Collection, 0, len(names))
	for _, name := range names {
		c, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// Get loads a collection definition by name.
func (s *SQLiteCollectionStore) Get(ctx context.Context, name string) (*domain.Collection, error) {
	var c domain.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, label_singular, label_plural, display_field, audited, read_only, created_at, updated_at
		 FROM collections WHERE name = ?`, name,
	).Scan(&c.Name, &c.LabelSingular, &c.LabelPlural, &c.DisplayField, &c.Audited, &c.ReadOnly, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	fields, err := s.loadFields(ctx, name)
	if err != nil {
		return nil, err
	}
	c.Fields = fields
	return &c, nil
}

// Create inserts a collection and its field definitions in one transaction.
func (s *SQLiteCollectionStore) Create(ctx context.Context, c *domain.Collection) (*domain.Collection, error) {
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	displayField := c.DisplayField
	if displayField == "" {
		displayField = "name"
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, label_singular, label_plural, display_field, audited, read_only, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.LabelSingular, c.LabelPlural, displayField, c.Audited, c.ReadOnly, ts, ts,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("collection %q: %w", c.Name, ErrConflict)
		}
		return nil, fmt.Errorf("insert collection: %w", err)
	}

	for i, f := range c.Fields {
		var options sql.NullString
		if len(f.Options) > 0 {
			b, err := json.Marshal(f.Options)
			if err != nil {
				return nil, fmt.Errorf("marshal options: %w", err)
			}
			options = sql.NullString{String: string(b), Valid: true}
		}
		order := f.DisplayOrder
		if order == 0 {
			order = i + 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO field_definitions (collection, name, label, type, required, immutable, options, display_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, f.Name, f.Label, f.Type, f.Required, f.Immutable, options, order,
		); err != nil {
			return nil, fmt.Errorf("insert field %s.%s: %w", c.Name, f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.Get(ctx, c.Name)
}

func (s *SQLiteCollectionStore) loadFields(ctx context.Context, collection string) ([]domain.FieldDef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, label, type, required, immutable, options, display_order
		 FROM field_definitions WHERE collection = ?
		 ORDER BY display_order, name`, collection)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fields := []domain.FieldDef{}
	for rows.Next() {
		var f domain.FieldDef
		var options sql.NullString
		if err := rows.Scan(&f.Name, &f.Label, &f.Type, &f.Required, &f.Immutable, &options, &f.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &f.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options for %s: %w", f.Name, err)
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
