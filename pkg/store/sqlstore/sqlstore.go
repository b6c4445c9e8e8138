// Package sqlstore implements oplog.Store and rowstore.Store over
// database/sql, usable with any driver reachable through a *sql.DB.
// Grounded on this repo's SQL-backed ledger (schema-as-constant DDL,
// ExecContext/QueryContext, sql.NullString for optional columns), split
// from one obligations table into the op-log's append-only entries
// table and the row store's current-value table.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/rowstore"
)

// Dialect picks the placeholder style and upsert syntax for the
// underlying driver. Both sqlite and postgres support the same
// "INSERT ... ON CONFLICT" upsert; only the placeholder token differs.
type Dialect int

const (
	// DialectQuestionMark uses "?" placeholders (sqlite).
	DialectQuestionMark Dialect = iota
	// DialectDollar uses "$1", "$2", ... placeholders (postgres).
	DialectDollar
)

func (d Dialect) placeholder(n int) string {
	if d == DialectDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

const entrySchema = `
CREATE TABLE IF NOT EXISTS oplog_entries (
	dataset TEXT NOT NULL,
	row_id TEXT NOT NULL,
	column_name TEXT NOT NULL,
	value TEXT,
	timestamp TEXT NOT NULL,
	PRIMARY KEY (dataset, row_id, column_name, timestamp)
);
`

const rowSchema = `
CREATE TABLE IF NOT EXISTS row_fields (
	dataset TEXT NOT NULL,
	row_id TEXT NOT NULL,
	column_name TEXT NOT NULL,
	value TEXT,
	PRIMARY KEY (dataset, row_id, column_name)
);
`

// OpLogStore is a SQL-backed oplog.Store.
type OpLogStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewOpLogStore opens an OpLogStore, creating its table if absent.
func NewOpLogStore(ctx context.Context, db *sql.DB, dialect Dialect) (*OpLogStore, error) {
	if _, err := db.ExecContext(ctx, entrySchema); err != nil {
		return nil, errs.Wrap(errs.ServerError, "sqlstore.new_oplog_store", "creating schema failed", err)
	}
	return &OpLogStore{db: db, dialect: dialect}, nil
}

var _ oplog.Store = (*OpLogStore)(nil)

func (s *OpLogStore) Append(ctx context.Context, entry oplog.Entry) error {
	valueJSON, err := marshalValue(entry.Value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO oplog_entries (dataset, row_id, column_name, value, timestamp) VALUES (%s, %s, %s, %s, %s)",
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4), s.dialect.placeholder(5),
	)
	_, err = s.db.ExecContext(ctx, query, entry.Dataset, entry.Row, entry.Column, valueJSON, entry.Timestamp)
	if err != nil {
		return errs.Wrap(errs.ServerError, "sqlstore.append", "insert failed", err)
	}
	return nil
}

func (s *OpLogStore) Latest(ctx context.Context, dataset, row, column string) (oplog.Entry, bool, error) {
	query := fmt.Sprintf(
		"SELECT value, timestamp FROM oplog_entries WHERE dataset = %s AND row_id = %s AND column_name = %s ORDER BY timestamp DESC LIMIT 1",
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
	)
	var valueJSON sql.NullString
	var timestamp string
	err := s.db.QueryRowContext(ctx, query, dataset, row, column).Scan(&valueJSON, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return oplog.Entry{}, false, nil
	}
	if err != nil {
		return oplog.Entry{}, false, errs.Wrap(errs.ServerError, "sqlstore.latest", "query failed", err)
	}

	value, err := unmarshalValue(valueJSON)
	if err != nil {
		return oplog.Entry{}, false, err
	}
	return oplog.Entry{Dataset: dataset, Row: row, Column: column, Value: value, Timestamp: timestamp}, true, nil
}

func (s *OpLogStore) Since(ctx context.Context, ts string) ([]oplog.Entry, error) {
	query := fmt.Sprintf("SELECT dataset, row_id, column_name, value, timestamp FROM oplog_entries WHERE timestamp >= %s", s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, ts)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "sqlstore.since", "query failed", err)
	}
	defer rows.Close()

	var out []oplog.Entry
	for rows.Next() {
		var dataset, row, column, timestamp string
		var valueJSON sql.NullString
		if err := rows.Scan(&dataset, &row, &column, &valueJSON, &timestamp); err != nil {
			return nil, errs.Wrap(errs.ServerError, "sqlstore.since", "scan failed", err)
		}
		value, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, oplog.Entry{Dataset: dataset, Row: row, Column: column, Value: value, Timestamp: timestamp})
	}
	return out, rows.Err()
}

// RowFieldStore is a SQL-backed rowstore.Store.
type RowFieldStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewRowFieldStore opens a RowFieldStore, creating its table if absent.
func NewRowFieldStore(ctx context.Context, db *sql.DB, dialect Dialect) (*RowFieldStore, error) {
	if _, err := db.ExecContext(ctx, rowSchema); err != nil {
		return nil, errs.Wrap(errs.ServerError, "sqlstore.new_row_field_store", "creating schema failed", err)
	}
	return &RowFieldStore{db: db, dialect: dialect}, nil
}

var _ rowstore.Store = (*RowFieldStore)(nil)

func (s *RowFieldStore) Get(ctx context.Context, dataset, rowID string) (map[string]interface{}, bool, error) {
	query := fmt.Sprintf("SELECT column_name, value FROM row_fields WHERE dataset = %s AND row_id = %s", s.dialect.placeholder(1), s.dialect.placeholder(2))
	rows, err := s.db.QueryContext(ctx, query, dataset, rowID)
	if err != nil {
		return nil, false, errs.Wrap(errs.ServerError, "sqlstore.get", "query failed", err)
	}
	defer rows.Close()

	fields := make(map[string]interface{})
	found := false
	for rows.Next() {
		found = true
		var column string
		var valueJSON sql.NullString
		if err := rows.Scan(&column, &valueJSON); err != nil {
			return nil, false, errs.Wrap(errs.ServerError, "sqlstore.get", "scan failed", err)
		}
		value, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, false, err
		}
		fields[column] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return fields, true, nil
}

func (s *RowFieldStore) SetField(ctx context.Context, dataset, rowID, column string, value interface{}) error {
	valueJSON, err := marshalValue(value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO row_fields (dataset, row_id, column_name, value) VALUES (%s, %s, %s, %s) "+
			"ON CONFLICT (dataset, row_id, column_name) DO UPDATE SET value = excluded.value",
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4),
	)
	_, err = s.db.ExecContext(ctx, query, dataset, rowID, column, valueJSON)
	if err != nil {
		return errs.Wrap(errs.ServerError, "sqlstore.set_field", "upsert failed", err)
	}
	return nil
}

func (s *RowFieldStore) List(ctx context.Context, dataset string, predicate rowstore.Predicate) ([]rowstore.Row, error) {
	query := fmt.Sprintf("SELECT row_id, column_name, value FROM row_fields WHERE dataset = %s ORDER BY row_id", s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, dataset)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "sqlstore.list", "query failed", err)
	}
	defer rows.Close()

	byRow := make(map[string]map[string]interface{})
	var order []string
	for rows.Next() {
		var rowID, column string
		var valueJSON sql.NullString
		if err := rows.Scan(&rowID, &column, &valueJSON); err != nil {
			return nil, errs.Wrap(errs.ServerError, "sqlstore.list", "scan failed", err)
		}
		value, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, err
		}
		fields, ok := byRow[rowID]
		if !ok {
			fields = make(map[string]interface{})
			byRow[rowID] = fields
			order = append(order, rowID)
		}
		fields[column] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []rowstore.Row
	for _, rowID := range order {
		row := rowstore.Row{Dataset: dataset, RowID: rowID, Fields: byRow[rowID]}
		if predicate == nil {
			out = append(out, row)
			continue
		}
		ok, err := predicate(row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}
