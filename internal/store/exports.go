package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Export states.
const (
	ExportEnqueued = "ENQUEUED"
	ExportComplete = "COMPLETE"
	ExportFailed   = "FAILED"
)

// Export records one server-side export of a collection.
type Export struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	State       string            `json:"state"`
	Format      string            `json:"format"`
	Collection  string            `json:"collection"`
	Filters     map[string]string `json:"filters,omitempty"`
	ResultData  []byte            `json:"-"`
	RecordCount int               `json:"recordCount"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

// ExportStore defines the interface for export persistence.
type ExportStore interface {
	Create(ctx context.Context, name, format, collection string, filters map[string]string) (*Export, error)
	Get(ctx context.Context, id string) (*Export, error)
	Complete(ctx context.Context, id string, data []byte, recordCount int) error
	Fail(ctx context.Context, id string) error
}

// SQLiteExportStore implements ExportStore backed by SQLite.
type SQLiteExportStore struct {
	db *sql.DB
}

// NewSQLiteExportStore creates a new SQLiteExportStore.
func NewSQLiteExportStore(db *sql.DB) *SQLiteExportStore {
	return &SQLiteExportStore{db: db}
}

// Create inserts a new export in the ENQUEUED state.
func (s *SQLiteExportStore) Create(ctx context.Context, name, format, collection string, filters map[string]string) (*Export, error) {
	ts := now()

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("marshal filters: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (name, state, format, collection, filters, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, ExportEnqueued, format, collection, string(filtersJSON), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert export: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &Export{
		ID:         strconv.FormatInt(id, 10),
		Name:       name,
		State:      ExportEnqueued,
		Format:     format,
		Collection: collection,
		Filters:    filters,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

// Get retrieves an export by ID.
func (s *SQLiteExportStore) Get(ctx context.Context, id string) (*Export, error) {
	var exp Export
	var dbID int64
	var name, filtersJSON sql.NullString
	var resultData []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, state, format, collection, filters, result_data, record_count, created_at, updated_at
		 FROM exports WHERE id = ?`,
		id,
	).Scan(&dbID, &name, &exp.State, &exp.Format, &exp.Collection, &filtersJSON, &resultData, &exp.RecordCount, &exp.CreatedAt, &exp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("export %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get export: %w", err)
	}

	exp.ID = strconv.FormatInt(dbID, 10)
	exp.Name = name.String
	exp.ResultData = resultData

	if filtersJSON.Valid && filtersJSON.String != "" && filtersJSON.String != "null" {
		if err := json.Unmarshal([]byte(filtersJSON.String), &exp.Filters); err != nil {
			return nil, fmt.Errorf("unmarshal filters: %w", err)
		}
	}

	return &exp, nil
}

// Complete marks an export as complete with the generated file.
func (s *SQLiteExportStore) Complete(ctx context.Context, id string, data []byte, recordCount int) error {
	return s.finish(ctx, id, ExportComplete, data, recordCount)
}

// Fail marks an export as failed.
func (s *SQLiteExportStore) Fail(ctx context.Context, id string) error {
	return s.finish(ctx, id, ExportFailed, nil, 0)
}

func (s *SQLiteExportStore) finish(ctx context.Context, id, state string, data []byte, recordCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exports SET state = ?, result_data = ?, record_count = ?, updated_at = ? WHERE id = ?`,
		state, data, recordCount, now(), id,
	)
	if err != nil {
		return fmt.Errorf("finish export: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("export %s: %w", id, ErrNotFound)
	}
	return nil
}
