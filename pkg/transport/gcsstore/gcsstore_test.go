package gcsstore

import (
	"strings"
	"testing"

	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/oplog"
)

func TestEntryPathIncludesGroupAndClientTokens(t *testing.T) {
	s := &Store{bucket: "b", prefix: "p/"}
	ts := hlc.Timestamp{PhysicalMS: 1000, Counter: 1, NodeID: "aaaaaaaaaaaaaaaa"}
	entry := oplog.Entry{Timestamp: ts.String()}

	path := s.entryPath("group-1", entry, ts)
	if !strings.HasPrefix(path, "p/group:group-1/") {
		t.Errorf("path %q missing expected prefix", path)
	}
	if !strings.Contains(path, "clientId:aaaaaaaaaaaaaaaa") {
		t.Errorf("path %q missing client token", path)
	}
}

func TestMerklePathIsStablePerClient(t *testing.T) {
	s := &Store{bucket: "b", prefix: "p/"}
	p1 := s.merklePath("group-1", "aaaaaaaaaaaaaaaa")
	p2 := s.merklePath("group-1", "aaaaaaaaaaaaaaaa")
	if p1 != p2 {
		t.Errorf("merklePath not stable: %q vs %q", p1, p2)
	}
}
