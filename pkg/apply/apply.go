// Package apply implements the LWW apply step (C6): it consumes op-log
// entries, enforces last-writer-wins per field, and updates the row
// store and Merkle index together.
package apply

import (
	"context"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/rowstore"
)

// Outcome is the three-way result of applying a single entry.
type Outcome int

const (
	// Applied means the row store's field value changed.
	Applied Outcome = iota
	// Ignored means the entry was new to the op-log but did not win LWW
	// (a newer entry was already present for that field).
	Ignored
	// Duplicate means the entry's timestamp was already known; nothing changed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "Applied"
	case Ignored:
		return "Ignored"
	case Duplicate:
		return "Duplicate"
	default:
		return "Unknown"
	}
}

// Engine wires together an op-log store, a row store, and the Merkle
// root mutation apply performs as a side effect of recording a new
// timestamp. MerkleRoot is a pointer so Engine can swap it atomically
// without the caller threading the value through every call; callers
// that share an Engine across goroutines must still serialize access
// (see the convergence package, which wraps this under one mutex).
type Engine struct {
	OpLog      oplog.Store
	RowStore   rowstore.Store
	MerkleRoot *merkle.Node
}

// New builds an Engine over the given stores, starting from an empty
// Merkle index.
func New(log oplog.Store, rows rowstore.Store) *Engine {
	return &Engine{OpLog: log, RowStore: rows}
}

// Apply runs the five-step LWW apply algorithm against entry, mutating
// the row store, op-log, and Merkle root as needed. It is idempotent:
// applying the same entry twice always yields Duplicate the second time.
func (e *Engine) Apply(ctx context.Context, entry oplog.Entry) (Outcome, error) {
	ts, err := hlc.Parse(entry.Timestamp)
	if err != nil {
		return Duplicate, err
	}

	latest, hasLatest, err := e.OpLog.Latest(ctx, entry.Dataset, entry.Row, entry.Column)
	if err != nil {
		return Duplicate, errs.Wrap(errs.ServerError, "apply.latest", "reading latest entry failed", err)
	}

	dataChanged := false
	if !hasLatest || latest.Timestamp < entry.Timestamp {
		if err := e.RowStore.SetField(ctx, entry.Dataset, entry.Row, entry.Column, entry.Value); err != nil {
			return Duplicate, errs.Wrap(errs.ServerError, "apply.set_field", "writing row store failed", err)
		}
		dataChanged = true
	}

	logChanged := false
	known := hasLatest && latest.Timestamp == entry.Timestamp
	if !known && hasLatest && entry.Timestamp < latest.Timestamp {
		// Latest only shows the field's newest entry; an older one may
		// already be logged, and reinserting it would corrupt the Merkle XOR.
		seen, err := e.OpLog.Since(ctx, entry.Timestamp)
		if err != nil {
			return Duplicate, errs.Wrap(errs.ServerError, "apply.since", "reading op-log failed", err)
		}
		for _, s := range seen {
			if s.Timestamp == entry.Timestamp {
				known = true
				break
			}
		}
	}
	if !known {
		if err := e.OpLog.Append(ctx, entry); err != nil {
			return Duplicate, errs.Wrap(errs.ServerError, "apply.append", "appending to op-log failed", err)
		}
		newRoot, err := merkle.Insert(e.MerkleRoot, ts)
		if err != nil {
			return Duplicate, err
		}
		e.MerkleRoot = newRoot
		logChanged = true
	}

	switch {
	case dataChanged:
		return Applied, nil
	case logChanged:
		return Ignored, nil
	default:
		return Duplicate, nil
	}
}
