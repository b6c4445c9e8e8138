// Package transport declares the storage-agnostic push/pull contract
// every out-of-process sync backend implements (file, S3, GCS, Redis),
// and adapts it to the convergence.Transport the sync engine drives.
package transport

import (
	"context"

	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
)

// Transport is the shared backend contract: write this node's entries
// and Merkle snapshot for a group, and read whatever peers in the same
// group have published.
type Transport interface {
	PushEntries(ctx context.Context, groupID, clientID string, entries []oplog.Entry) error
	PullEntries(ctx context.Context, groupID, excludeClientID string) ([]oplog.Entry, error)
	PushMerkle(ctx context.Context, groupID, clientID string, root *merkle.Node) error
	PullMerkle(ctx context.Context, groupID, peerClientID string) (*merkle.Node, error)
}

// Exchanger adapts a Transport into the convergence.Transport interface
// the sync engine drives, by composing a push of the local side with a
// pull of everything else published to the same group.
type Exchanger struct {
	Backend  Transport
	PeerID   string // the specific peer's client_id to pull a Merkle snapshot from
}

// Exchange implements convergence.Transport.
func (e *Exchanger) Exchange(ctx context.Context, req convergence.SyncRequest) (convergence.SyncResponse, error) {
	if err := e.Backend.PushEntries(ctx, req.GroupID, req.ClientID, req.Messages); err != nil {
		return convergence.SyncResponse{}, err
	}
	if err := e.Backend.PushMerkle(ctx, req.GroupID, req.ClientID, req.Merkle); err != nil {
		return convergence.SyncResponse{}, err
	}

	incoming, err := e.Backend.PullEntries(ctx, req.GroupID, req.ClientID)
	if err != nil {
		return convergence.SyncResponse{}, err
	}

	remoteRoot, err := e.Backend.PullMerkle(ctx, req.GroupID, e.PeerID)
	if err != nil {
		return convergence.SyncResponse{}, err
	}

	return convergence.SyncResponse{Messages: incoming, Merkle: remoteRoot}, nil
}

var _ convergence.Transport = (*Exchanger)(nil)
