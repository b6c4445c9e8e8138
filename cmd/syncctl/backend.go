package main

import (
	"context"
	"os"
	"strconv"

	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/transport"
	"github.com/tidalsync/core/pkg/transport/filestore"
	"github.com/tidalsync/core/pkg/transport/gcsstore"
	"github.com/tidalsync/core/pkg/transport/httptransport"
	"github.com/tidalsync/core/pkg/transport/redisstore"
	"github.com/tidalsync/core/pkg/transport/s3store"
)

// buildTransport resolves the --backend flag of the sync command into a
// convergence.Transport. "http" dials peer directly over the sync HTTP
// protocol; every other backend publishes to and reads from a shared
// object store, exchanged via transport.Exchanger.
func buildTransport(ctx context.Context, backend, peer string) (convergence.Transport, error) {
	switch backend {
	case "", "http":
		return httptransport.NewClient(peer, tokenSigner())
	case "file":
		store, err := filestore.New(envOr("SYNC_FILESTORE_DIR", "./syncctl-data"))
		if err != nil {
			return nil, err
		}
		return &transport.Exchanger{Backend: store, PeerID: peer}, nil
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:   os.Getenv("SYNC_S3_BUCKET"),
			Region:   os.Getenv("SYNC_S3_REGION"),
			Endpoint: os.Getenv("SYNC_S3_ENDPOINT"),
			Prefix:   os.Getenv("SYNC_S3_PREFIX"),
		})
		if err != nil {
			return nil, err
		}
		return &transport.Exchanger{Backend: store, PeerID: peer}, nil
	case "gcs":
		store, err := gcsstore.New(ctx, gcsstore.Config{
			Bucket: os.Getenv("SYNC_GCS_BUCKET"),
			Prefix: os.Getenv("SYNC_GCS_PREFIX"),
		})
		if err != nil {
			return nil, err
		}
		return &transport.Exchanger{Backend: store, PeerID: peer}, nil
	case "redis":
		db, _ := strconv.Atoi(os.Getenv("SYNC_REDIS_DB"))
		store := redisstore.New(redisstore.Config{
			Addr:     envOr("SYNC_REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("SYNC_REDIS_PASSWORD"),
			DB:       db,
		})
		return &transport.Exchanger{Backend: store, PeerID: peer}, nil
	default:
		return nil, errs.New(errs.Format, "syncctl.build_transport", "unknown --backend: "+backend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
