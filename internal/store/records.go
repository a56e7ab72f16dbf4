package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/johnwards/dealerhub/internal/domain"
)

// AuditCollection is the collection that receives one entry per mutation of
// an audited collection.
const AuditCollection = "audit-logs"

// Audit actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionExport = "EXPORT"
)

// RecordStore defines the interface for record persistence.
type RecordStore interface {
	Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error)
	Get(ctx context.Context, collection, id string) (domain.Record, error)
	List(ctx context.Context, collection string, opts domain.ListOpts) ([]domain.Record, int, error)
	Update(ctx context.Context, collection, id string, fields map[string]any, replace bool) (domain.Record, error)
	Archive(ctx context.Context, collection, id string) error
	Audit(ctx context.Context, action, entityType, entityID, details string) error
}

// SQLiteRecordStore implements RecordStore backed by SQLite. Field values are
// stored one row per field in record_values.
type SQLiteRecordStore struct {
	db          *sql.DB
	collections CollectionStore
}

// NewSQLiteRecordStore creates a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB, collections CollectionStore) *SQLiteRecordStore {
	return &SQLiteRecordStore{db: db, collections: collections}
}

// Create validates and inserts a new record.
func (s *SQLiteRecordStore) Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	c, err := s.collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	if c.ReadOnly {
		return nil, fmt.Errorf("create in %s: %w", collection, ErrReadOnly)
	}

	fields = sanitize(fields)
	if err := validateCreate(c, fields); err != nil {
		return nil, err
	}
	normalizeNumbers(c, fields)

	rec, err := s.insert(ctx, collection, fields)
	if err != nil {
		return nil, err
	}

	if c.Audited {
		details := fmt.Sprintf("Created %s %s", c.LabelSingular, displayName(c, rec))
		if err := s.Audit(ctx, ActionCreate, collection, rec.ID(), details); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *SQLiteRecordStore) insert(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	ts := now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (collection, created_at, updated_at) VALUES (?, ?, ?)`,
		collection, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := s.setValues(ctx, id, fields, ts); err != nil {
		return nil, err
	}

	return s.Get(ctx, collection, strconv.FormatInt(id, 10))
}

// Get retrieves a single live record by id.
func (s *SQLiteRecordStore) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM records WHERE id = ? AND collection = ? AND archived = FALSE`,
		id, collection,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	rec := domain.Record{
		domain.KeyID:        id,
		domain.KeyCreatedAt: createdAt,
		domain.KeyUpdatedAt: updatedAt,
	}

	values, err := s.loadValues(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	for k, v := range values[id] {
		rec[k] = v
	}
	return rec, nil
}

// List returns the records of a collection matching opts, oldest first,
// together with the total number of matches before limit/offset.
func (s *SQLiteRecordStore) List(ctx context.Context, collection string, opts domain.ListOpts) ([]domain.Record, int, error) {
	if _, err := s.collections.Get(ctx, collection); err != nil {
		return nil, 0, err
	}

	fromClause, whereClause, args, err := buildListClauses(collection, &opts)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT r.id)"+fromClause+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := "SELECT DISTINCT r.id, r.created_at, r.updated_at" + fromClause + whereClause + " ORDER BY r.id ASC"
	selectArgs := append([]any{}, args...)
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		selectArgs = append(selectArgs, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		selectArgs = append(selectArgs, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.Record{}
	var ids []string
	for rows.Next() {
		var id int64
		var createdAt, updatedAt string
		if err := rows.Scan(&id, &createdAt, &updatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		idStr := strconv.FormatInt(id, 10)
		ids = append(ids, idStr)
		records = append(records, domain.Record{
			domain.KeyID:        idStr,
			domain.KeyCreatedAt: createdAt,
			domain.KeyUpdatedAt: updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	values, err := s.loadValues(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, rec := range records {
		for k, v := range values[rec.ID()] {
			rec[k] = v
		}
	}

	return records, total, nil
}

// Update merges fields into an existing record. With replace set, fields not
// present in the input are removed, except immutable ones.
func (s *SQLiteRecordStore) Update(ctx context.Context, collection, id string, fields map[string]any, replace bool) (domain.Record, error) {
	c, err := s.collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	if c.ReadOnly {
		return nil, fmt.Errorf("update in %s: %w", collection, ErrReadOnly)
	}

	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	fields = sanitize(fields)
	if err := validateUpdate(c, existing, fields, replace); err != nil {
		return nil, err
	}
	normalizeNumbers(c, fields)

	idInt, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid record id: %w", err)
	}

	ts := now()
	if replace {
		keep := map[string]bool{}
		for _, f := range c.Fields {
			if f.Immutable {
				keep[f.Name] = true
			}
		}
		for k := range existing {
			if _, ok := fields[k]; ok || keep[k] || isReserved(k) {
				continue
			}
			if _, err := s.db.ExecContext(ctx,
				`DELETE FROM record_values WHERE record_id = ? AND field = ?`, idInt, k,
			); err != nil {
				return nil, fmt.Errorf("clear field %s: %w", k, err)
			}
		}
	}

	if err := s.setValues(ctx, idInt, fields, ts); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE records SET updated_at = ? WHERE id = ?`, ts, idInt); err != nil {
		return nil, fmt.Errorf("update record timestamp: %w", err)
	}

	rec, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	if c.Audited {
		details := fmt.Sprintf("Updated %s %s (%s)", c.LabelSingular, displayName(c, rec), changedFields(fields))
		if err := s.Audit(ctx, ActionUpdate, collection, id, details); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Archive soft-deletes a record.
func (s *SQLiteRecordStore) Archive(ctx context.Context, collection, id string) error {
	c, err := s.collections.Get(ctx, collection)
	if err != nil {
		return err
	}
	if c.ReadOnly {
		return fmt.Errorf("delete in %s: %w", collection, ErrReadOnly)
	}

	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET archived = TRUE, archived_at = ?, updated_at = ? WHERE id = ? AND collection = ? AND archived = FALSE`,
		ts, ts, id, collection,
	)
	if err != nil {
		return fmt.Errorf("archive record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}

	if c.Audited {
		details := fmt.Sprintf("Deleted %s %s", c.LabelSingular, displayName(c, existing))
		return s.Audit(ctx, ActionDelete, collection, id, details)
	}
	return nil
}

// Audit appends an entry to the audit log on behalf of the context's actor.
func (s *SQLiteRecordStore) Audit(ctx context.Context, action, entityType, entityID, details string) error {
	actor := ActorFrom(ctx)
	if actor == "" {
		actor = "system"
	}
	_, err := s.insert(ctx, AuditCollection, map[string]any{
		"userId":     actor,
		"action":     action,
		"entityType": entityType,
		"entityId":   entityID,
		"details":    details,
	})
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// setValues upserts field values for a record.
func (s *SQLiteRecordStore) setValues(ctx context.Context, recordID int64, fields map[string]any, ts string) error {
	for name, value := range fields {
		kind, text, err := encodeValue(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO record_values (record_id, field, kind, value, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(record_id, field) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
			recordID, name, kind, text, ts,
		)
		if err != nil {
			return fmt.Errorf("set field %s: %w", name, err)
		}
	}
	return nil
}

// loadValues fetches the field values of many records in one query.
func (s *SQLiteRecordStore) loadValues(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	result := make(map[string]map[string]any, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, field, kind, COALESCE(value, '') FROM record_values WHERE record_id IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var recordID int64
		var field, kind, text string
		if err := rows.Scan(&recordID, &field, &kind, &text); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		key := strconv.FormatInt(recordID, 10)
		if result[key] == nil {
			result[key] = map[string]any{}
		}
		result[key][field] = decodeValue(kind, text)
	}
	return result, rows.Err()
}

// buildListClauses builds the FROM and WHERE portions of a list query with
// one LEFT JOIN per filtered field.
func buildListClauses(collection string, opts *domain.ListOpts) (fromClause, whereClause string, args []any, err error) {
	var fromSB, whereSB strings.Builder
	var joinArgs, whereArgs []any

	fromSB.WriteString(" FROM records r")
	whereSB.WriteString(" WHERE r.collection = ? AND r.archived = ?")
	whereArgs = append(whereArgs, collection, opts.Archived)

	for i := range opts.Filters {
		f := &opts.Filters[i]
		column := ""
		switch f.Field {
		case domain.KeyCreatedAt:
			column = "r.created_at"
		case domain.KeyUpdatedAt:
			column = "r.updated_at"
		case domain.KeyID:
			column = "CAST(r.id AS TEXT)"
		default:
			alias := fmt.Sprintf("rv_f%d", i)
			fmt.Fprintf(&fromSB, " LEFT JOIN record_values %s ON %s.record_id = r.id AND %s.field = ?", alias, alias, alias)
			joinArgs = append(joinArgs, f.Field)
			column = alias + ".value"
		}

		clause, clauseArgs, buildErr := buildFilterClause(column, f)
		if buildErr != nil {
			return "", "", nil, buildErr
		}
		whereSB.WriteString(" AND " + clause)
		whereArgs = append(whereArgs, clauseArgs...)
	}

	if q := strings.TrimSpace(opts.Query); q != "" && len(opts.SearchFields) > 0 {
		placeholders := make([]string, len(opts.SearchFields))
		for i, field := range opts.SearchFields {
			placeholders[i] = "?"
			whereArgs = append(whereArgs, field)
		}
		fmt.Fprintf(&whereSB,
			" AND EXISTS (SELECT 1 FROM record_values rv_q WHERE rv_q.record_id = r.id AND rv_q.field IN (%s) AND LOWER(rv_q.value) LIKE ? ESCAPE '\\')",
			strings.Join(placeholders, ","))
		whereArgs = append(whereArgs, containsPattern(q))
	}

	args = append(joinArgs, whereArgs...)
	return fromSB.String(), whereSB.String(), args, nil
}

func buildFilterClause(column string, f *domain.Filter) (clause string, args []any, err error) {
	value := ""
	if len(f.Values) > 0 {
		value = f.Values[0]
	}
	switch f.Operator {
	case domain.OpEQ, "":
		return column + " = ?", []any{value}, nil
	case domain.OpGTE:
		return column + " >= ?", []any{value}, nil
	case domain.OpLTE:
		return column + " <= ?", []any{value}, nil
	case domain.OpContains:
		return "LOWER(" + column + `) LIKE ? ESCAPE '\'`, []any{containsPattern(value)}, nil
	case domain.OpIN:
		if len(f.Values) == 0 {
			return "1=0", nil, nil
		}
		placeholders := make([]string, len(f.Values))
		inArgs := make([]any, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			inArgs[i] = v
		}
		return column + " IN (" + strings.Join(placeholders, ",") + ")", inArgs, nil
	default:
		return "", nil, &ValidationError{Field: f.Field, Message: fmt.Sprintf("unsupported operator: %s", f.Operator)}
	}
}

func isReserved(key string) bool {
	return key == domain.KeyID || key == domain.KeyCreatedAt || key == domain.KeyUpdatedAt
}

func displayName(c *domain.Collection, rec domain.Record) string {
	if name := rec.String(c.DisplayField); name != "" {
		return fmt.Sprintf("%q", name)
	}
	return "#" + rec.ID()
}

func changedFields(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
