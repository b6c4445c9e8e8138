// Package gcsstore implements transport.Transport over a Google Cloud
// Storage bucket, one object per entry and one object per client's
// Merkle snapshot. Grounded on this repo's GCS-backed blob store
// (client via storage.NewClient, Object()/NewWriter/NewReader usage).
package gcsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
	"google.golang.org/api/iterator"
)

// Store is a GCS-backed transport.Transport.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// Config configures a Store.
type Config struct {
	Bucket string
	Prefix string
}

// New creates a GCS-backed Store using application default credentials.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "gcsstore.new", "creating GCS client failed", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) entryPath(groupID string, entry oplog.Entry, ts hlc.Timestamp) string {
	return fmt.Sprintf("%sgroup:%s/%s %04x clientId:%s.oplogmsg.json", s.prefix, groupID, entry.Timestamp, ts.Counter, ts.NodeID)
}

func (s *Store) entryPrefix(groupID string) string {
	return fmt.Sprintf("%sgroup:%s/", s.prefix, groupID)
}

func (s *Store) merklePath(groupID, clientID string) string {
	return fmt.Sprintf("%smerkle:%s/%s.oplogmerkle.json", s.prefix, groupID, clientID)
}

func (s *Store) PushEntries(ctx context.Context, groupID, clientID string, entries []oplog.Entry) error {
	bucket := s.client.Bucket(s.bucket)
	for _, entry := range entries {
		ts, err := hlc.Parse(entry.Timestamp)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		w := bucket.Object(s.entryPath(groupID, entry, ts)).NewWriter(ctx)
		w.ContentType = "application/json"
		if _, err := w.Write(raw); err != nil {
			_ = w.Close()
			return errs.Wrap(errs.Network, "gcsstore.push_entries", "gcs write failed", err)
		}
		if err := w.Close(); err != nil {
			return errs.Wrap(errs.Network, "gcsstore.push_entries", "gcs close failed", err)
		}
	}
	return nil
}

func (s *Store) PullEntries(ctx context.Context, groupID, excludeClientID string) ([]oplog.Entry, error) {
	excludeToken := "clientId:" + excludeClientID + "."
	bucket := s.client.Bucket(s.bucket)

	it := bucket.Objects(ctx, &storage.Query{Prefix: s.entryPrefix(groupID)})
	var out []oplog.Entry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.Network, "gcsstore.pull_entries", "gcs list failed", err)
		}
		if strings.Contains(attrs.Name, excludeToken) {
			continue
		}

		reader, err := bucket.Object(attrs.Name).NewReader(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.Network, "gcsstore.pull_entries", "gcs read failed", err)
		}
		raw, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, errs.Wrap(errs.Network, "gcsstore.pull_entries", "reading object body failed", err)
		}

		var entry oplog.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errs.Wrap(errs.Format, "gcsstore.pull_entries", "decoding entry object failed", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) PushMerkle(ctx context.Context, groupID, clientID string, root *merkle.Node) error {
	raw, err := json.Marshal(root)
	if err != nil {
		return err
	}

	w := s.client.Bucket(s.bucket).Object(s.merklePath(groupID, clientID)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return errs.Wrap(errs.Network, "gcsstore.push_merkle", "gcs write failed", err)
	}
	return w.Close()
}

func (s *Store) PullMerkle(ctx context.Context, groupID, peerClientID string) (*merkle.Node, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.merklePath(groupID, peerClientID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return merkle.Empty, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Network, "gcsstore.pull_merkle", "gcs read failed", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, errs.Wrap(errs.Network, "gcsstore.pull_merkle", "reading object body failed", err)
	}

	var node merkle.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errs.Wrap(errs.Format, "gcsstore.pull_merkle", "decoding merkle object failed", err)
	}
	return &node, nil
}
