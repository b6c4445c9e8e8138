package main

import (
	"context"
	"testing"

	"github.com/tidalsync/core/pkg/transport"
	"github.com/tidalsync/core/pkg/transport/httptransport"
)

func TestBuildTransportHTTPDefault(t *testing.T) {
	tr, err := buildTransport(context.Background(), "", "http://localhost:8080/sync")
	if err != nil {
		t.Fatalf("buildTransport failed: %v", err)
	}
	if _, ok := tr.(*httptransport.Client); !ok {
		t.Errorf("got %T, want *httptransport.Client", tr)
	}
}

func TestBuildTransportFile(t *testing.T) {
	t.Setenv("SYNC_FILESTORE_DIR", t.TempDir())

	tr, err := buildTransport(context.Background(), "file", "peer-1")
	if err != nil {
		t.Fatalf("buildTransport failed: %v", err)
	}
	if _, ok := tr.(*transport.Exchanger); !ok {
		t.Errorf("got %T, want *transport.Exchanger", tr)
	}
}

func TestBuildTransportUnknownBackend(t *testing.T) {
	if _, err := buildTransport(context.Background(), "carrier-pigeon", "peer-1"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
