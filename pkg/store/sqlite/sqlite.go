// Package sqlite wires pkg/store/sqlstore to a local sqlite file via
// modernc.org/sqlite, the pure-Go driver this repo already depends on.
package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/store/sqlstore"
)

// Stores bundles the op-log and row-projection stores backed by one
// sqlite database.
type Stores struct {
	DB      *sql.DB
	OpLog   *sqlstore.OpLogStore
	RowView *sqlstore.RowFieldStore
}

// Open opens (creating if absent) the sqlite database at path and
// prepares both stores' schema.
func Open(ctx context.Context, path string) (*Stores, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "sqlite.open", "opening database failed", err)
	}

	oplogStore, err := sqlstore.NewOpLogStore(ctx, db, sqlstore.DialectQuestionMark)
	if err != nil {
		db.Close()
		return nil, err
	}
	rowStore, err := sqlstore.NewRowFieldStore(ctx, db, sqlstore.DialectQuestionMark)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Stores{DB: db, OpLog: oplogStore, RowView: rowStore}, nil
}

// Close releases the underlying database handle.
func (s *Stores) Close() error {
	return s.DB.Close()
}
