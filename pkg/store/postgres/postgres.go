// Package postgres wires pkg/store/sqlstore to Postgres via
// github.com/lib/pq, following this repo's database/sql-via-pq
// construction pattern.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/store/sqlstore"
)

// Stores bundles the op-log and row-projection stores backed by one
// Postgres database.
type Stores struct {
	DB      *sql.DB
	OpLog   *sqlstore.OpLogStore
	RowView *sqlstore.RowFieldStore
}

// Open connects to Postgres using dsn (a "postgres://..." or libpq
// keyword/value connection string) and prepares both stores' schema.
func Open(ctx context.Context, dsn string) (*Stores, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "postgres.open", "opening database failed", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Network, "postgres.open", "connecting to database failed", err)
	}

	oplogStore, err := sqlstore.NewOpLogStore(ctx, db, sqlstore.DialectDollar)
	if err != nil {
		db.Close()
		return nil, err
	}
	rowStore, err := sqlstore.NewRowFieldStore(ctx, db, sqlstore.DialectDollar)
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
