// Package convergence wires a Clock, an Apply Engine, and a Transport
// together under a single mutex so a host process can run sync rounds
// concurrently-safely, per the concurrency model's requirement that
// Clock and Merkle root mutation be serialized across goroutines.
package convergence

import (
	"context"
	"sync"
	"time"

	"github.com/tidalsync/core/pkg/apply"
	"github.com/tidalsync/core/pkg/audit"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/observability"
	"github.com/tidalsync/core/pkg/oplog"
	"go.opentelemetry.io/otel/trace"
)

// Transport abstracts how a sync round reaches a peer. Implementations
// live under pkg/transport.
type Transport interface {
	Exchange(ctx context.Context, req SyncRequest) (SyncResponse, error)
}

// SyncRequest is the outgoing half of one sync round.
type SyncRequest struct {
	GroupID  string         `json:"group_id"`
	ClientID string         `json:"client_id"`
	Messages []oplog.Entry  `json:"messages"`
	Merkle   *merkle.Node   `json:"merkle"`
}

// SyncResponse is the peer's reply to one sync round.
type SyncResponse struct {
	Messages []oplog.Entry `json:"messages"`
	Merkle   *merkle.Node  `json:"merkle"`
}

// Engine owns the mutable state of one node: its HLC clock, its Apply
// Engine (which in turn owns the op-log, row store, and Merkle root),
// and its group/client identity.
type Engine struct {
	mu sync.Mutex

	Clock   *hlc.Clock
	Apply   *apply.Engine
	GroupID string
	NodeID  string

	Now func() int64 // overridable for tests; defaults to wall-clock ms

	// Observability, when set, receives span and metric instrumentation
	// for every Record and Sync call. Nil disables instrumentation.
	Observability *observability.Provider

	// Audit, when set, receives a structured record of every apply
	// decision this Engine makes, locally recorded or remotely applied
	// during sync. Nil disables audit logging.
	Audit audit.Logger
}

// New builds an Engine over an already-constructed apply.Engine.
func New(nodeID, groupID string, applyEngine *apply.Engine) *Engine {
	return &Engine{
		Clock:   hlc.NewClock(nodeID),
		Apply:   applyEngine,
		GroupID: groupID,
		NodeID:  nodeID,
		Now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Record timestamps a local mutation via Clock.Send and applies it
// through the Apply Engine, returning the outcome.
func (e *Engine) Record(ctx context.Context, dataset, row, column string, value interface{}) (apply.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, err := e.Clock.Send(e.Now())
	if err != nil {
		return apply.Duplicate, err
	}

	entry := oplog.Entry{
		Dataset:   dataset,
		Row:       row,
		Column:    column,
		Value:     value,
		Timestamp: ts.String(),
	}
	e.Apply.MerkleRoot = e.merkleRoot()
	outcome, err := e.Apply.Apply(ctx, entry)
	if err == nil {
		e.recordApplyOutcome(ctx, outcome)
		e.recordAudit(ctx, audit.EventApply, outcome, dataset, row, column, value)
	}
	return outcome, err
}

func (e *Engine) recordApplyOutcome(ctx context.Context, outcome apply.Outcome) {
	if e.Observability == nil {
		return
	}
	switch outcome {
	case apply.Applied:
		e.Observability.RecordApplyOutcome(ctx, observability.OutcomeApplied)
	case apply.Ignored:
		e.Observability.RecordApplyOutcome(ctx, observability.OutcomeIgnored)
	case apply.Duplicate:
		e.Observability.RecordApplyOutcome(ctx, observability.OutcomeDuplicate)
	}
}

func (e *Engine) recordAudit(ctx context.Context, eventType audit.EventType, outcome apply.Outcome, dataset, row, column string, value interface{}) {
	if e.Audit == nil {
		return
	}
	// Best-effort: a failing audit sink must never fail the apply it is
	// describing.
	_ = e.Audit.Record(ctx, eventType, outcome.String(), dataset, row, column, value)
}

func (e *Engine) merkleRoot() *merkle.Node {
	if e.Apply.MerkleRoot == nil {
		return merkle.Empty
	}
	return e.Apply.MerkleRoot
}

// MaxSyncRounds bounds the recursive sync loop so a misbehaving peer
// cannot hang a caller forever even before SyncStuck would fire.
const MaxSyncRounds = 64

// Sync runs the 8-step sync protocol against a peer through transport,
// starting from the given initial batch and since cursor. It recurses
// internally (rather than via real recursion) up to MaxSyncRounds.
func (e *Engine) Sync(ctx context.Context, transport Transport, initial []oplog.Entry, since *int64) error {
	if e.Observability != nil {
		var span trace.Span
		ctx, span = e.Observability.StartSync(ctx, "peer")
		defer span.End()
	}

	for round := 0; round < MaxSyncRounds; round++ {
		outgoing, err := e.selectOutgoing(ctx, initial, since)
		if err != nil {
			return err
		}

		e.mu.Lock()
		req := SyncRequest{
			GroupID:  e.GroupID,
			ClientID: e.NodeID,
			Messages: outgoing,
			Merkle:   e.merkleRoot(),
		}
		e.mu.Unlock()

		resp, err := transport.Exchange(ctx, req)
		if err != nil {
			return errs.Wrap(errs.Network, "sync.exchange", "transport exchange failed", err)
		}

		if err := e.recvAll(resp.Messages); err != nil {
			return err
		}
		if err := e.applyAll(ctx, resp.Messages); err != nil {
			return err
		}

		e.mu.Lock()
		d, ok := merkle.Diff(resp.Merkle, e.merkleRoot())
		e.mu.Unlock()

		if !ok {
			return nil
		}

		if since != nil && d == *since {
			return errs.New(errs.SyncStuck, "sync", "divergence point did not advance across rounds")
		}

		initial = nil
		next := d
		since = &next
	}

	return errs.New(errs.SyncStuck, "sync", "exceeded maximum sync rounds without converging")
}

func (e *Engine) selectOutgoing(ctx context.Context, initial []oplog.Entry, since *int64) ([]oplog.Entry, error) {
	if since == nil {
		return initial, nil
	}
	cursor := hlc.Timestamp{PhysicalMS: *since, Counter: 0, NodeID: "0000000000000000"}
	return e.Apply.OpLog.Since(ctx, cursor.String())
}

func (e *Engine) recvAll(incoming []oplog.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, remote := range incoming {
		remoteTS, err := hlc.Parse(remote.Timestamp)
		if err != nil {
			return err
		}
		if _, err := e.Clock.Recv(e.Now(), remoteTS); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyAll(ctx context.Context, incoming []oplog.Entry) error {
	for _, remote := range incoming {
		e.mu.Lock()
		e.Apply.MerkleRoot = e.merkleRoot()
		outcome, err := e.Apply.Apply(ctx, remote)
		e.mu.Unlock()
		if err != nil {
			return err
		}
		e.recordApplyOutcome(ctx, outcome)
		e.recordAudit(ctx, audit.EventSync, outcome, remote.Dataset, remote.Row, remote.Column, remote.Value)
	}
	return nil
}
