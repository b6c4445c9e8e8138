// Package s3store implements transport.Transport over an S3 bucket,
// one object per entry and one object per client's Merkle snapshot,
// grounded on this repo's S3-backed blob store (client construction via
// aws-sdk-go-v2/config, HeadObject/PutObject/GetObject usage).
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
)

// Store is an S3-backed transport.Transport.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config configures a Store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint, for MinIO/LocalStack
	Prefix   string
}

// New creates an S3-backed Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errs.Wrap(errs.ServerError, "s3store.new", "loading AWS config failed", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) entryKey(groupID string, entry oplog.Entry, ts hlc.Timestamp) string {
	return fmt.Sprintf("%sgroup:%s/%s %04x clientId:%s.oplogmsg.json", s.prefix, groupID, entry.Timestamp, ts.Counter, ts.NodeID)
}

func (s *Store) entryPrefix(groupID string) string {
	return fmt.Sprintf("%sgroup:%s/", s.prefix, groupID)
}

func (s *Store) merkleKey(groupID, clientID string) string {
	return fmt.Sprintf("%smerkle:%s/%s.oplogmerkle.json", s.prefix, groupID, clientID)
}

func (s *Store) PushEntries(ctx context.Context, groupID, clientID string, entries []oplog.Entry) error {
	for _, entry := range entries {
		ts, err := hlc.Parse(entry.Timestamp)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.entryKey(groupID, entry, ts)),
			Body:        bytes.NewReader(raw),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return errs.Wrap(errs.Network, "s3store.push_entries", "s3 put failed", err)
		}
	}
	return nil
}

func (s *Store) PullEntries(ctx context.Context, groupID, excludeClientID string) ([]oplog.Entry, error) {
	excludeToken := "clientId:" + excludeClientID + "."

	var out []oplog.Entry
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.entryPrefix(groupID)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errs.Wrap(errs.Network, "s3store.pull_entries", "s3 list failed", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.Contains(key, excludeToken) {
				continue
			}
			result, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: obj.Key})
			if err != nil {
				return nil, errs.Wrap(errs.Network, "s3store.pull_entries", "s3 get failed", err)
			}
			raw, err := io.ReadAll(result.Body)
			result.Body.Close()
			if err != nil {
				return nil, errs.Wrap(errs.Network, "s3store.pull_entries", "reading object body failed", err)
			}
			var entry oplog.Entry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil, errs.Wrap(errs.Format, "s3store.pull_entries", "decoding entry object failed", err)
			}
			out = append(out, entry)
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}
	return out, nil
}

func (s *Store) PushMerkle(ctx context.Context, groupID, clientID string, root *merkle.Node) error {
	raw, err := json.Marshal(root)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.merkleKey(groupID, clientID)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errs.Wrap(errs.Network, "s3store.push_merkle", "s3 put failed", err)
	}
	return nil
}

func (s *Store) PullMerkle(ctx context.Context, groupID, peerClientID string) (*merkle.Node, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.merkleKey(groupID, peerClientID)),
	})
	if err != nil {
		return merkle.Empty, nil
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Network, "s3store.pull_merkle", "reading object body failed", err)
	}

	var node merkle.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errs.Wrap(errs.Format, "s3store.pull_merkle", "decoding merkle object failed", err)
	}
	return &node, nil
}
