// Package filestore implements transport.Transport over a shared local
// directory, one file per entry (the spec's filename convention plus a
// group token)
// plus one Merkle snapshot file per client. Grounded on this repo's
// JSON-file-backed ledger pattern (load-then-mutate-then-save under a
// directory-wide mutex), generalized to a directory of many small files
// instead of one big one since each entry is independently named.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
)

// Store is a directory-backed transport.Transport. Every group shares
// one directory; filenames embed group and client identity so peers
// sharing a directory never collide.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New opens (creating if needed) a directory-backed Store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ServerError, "filestore.new", "creating directory failed", err)
	}
	return &Store{dir: dir}, nil
}

// entryFilename separates tokens with a single space, required for
// partial-name filtering: "<timestamp> <counter> clientId:<node_id>",
// where the first token is the full canonical timestamp, followed by a
// ".group:<group_id>" token so several groups can share one directory.
func entryFilename(groupID string, entry oplog.Entry, ts hlc.Timestamp) string {
	counter := fmt.Sprintf("%04x", ts.Counter)
	return fmt.Sprintf("%s %s clientId:%s.group:%s.oplogmsg.json",
		entry.Timestamp, counter, ts.NodeID, groupID)
}

func merkleFilename(groupID, clientID string) string {
	return fmt.Sprintf("%s.group:%s.oplogmerkle.json", clientID, groupID)
}

func (s *Store) PushEntries(ctx context.Context, groupID, clientID string, entries []oplog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		ts, err := hlc.Parse(entry.Timestamp)
		if err != nil {
			return err
		}
		name := entryFilename(groupID, entry, ts)
		raw, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
			return errs.Wrap(errs.ServerError, "filestore.push_entries", "writing entry file failed", err)
		}
	}
	return nil
}

func (s *Store) PullEntries(ctx context.Context, groupID, excludeClientID string) ([]oplog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := fmt.Sprintf("group:%s.oplogmsg.json", groupID)
	excludeToken := "clientId:" + excludeClientID + "."

	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "filestore.pull_entries", "reading directory failed", err)
	}

	var out []oplog.Entry
	for _, name := range names {
		fname := name.Name()
		if !strings.HasSuffix(fname, suffix) || strings.Contains(fname, excludeToken) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, fname))
		if err != nil {
			return nil, errs.Wrap(errs.ServerError, "filestore.pull_entries", "reading entry file failed", err)
		}
		var entry oplog.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errs.Wrap(errs.Format, "filestore.pull_entries", "decoding entry file failed", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) PushMerkle(ctx context.Context, groupID, clientID string, root *merkle.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(root)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, merkleFilename(groupID, clientID))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errs.Wrap(errs.ServerError, "filestore.push_merkle", "writing merkle snapshot failed", err)
	}
	return nil
}

func (s *Store) PullMerkle(ctx context.Context, groupID, peerClientID string) (*merkle.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, merkleFilename(groupID, peerClientID))
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return merkle.Empty, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "filestore.pull_merkle", "reading merkle snapshot failed", err)
	}

	var node merkle.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errs.Wrap(errs.Format, "filestore.pull_merkle", "decoding merkle snapshot failed", err)
	}
	return &node, nil
}
