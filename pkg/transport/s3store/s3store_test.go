package s3store

import (
	"strings"
	"testing"

	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/oplog"
)

func TestEntryKeyIncludesGroupAndClientTokens(t *testing.T) {
	s := &Store{bucket: "b", prefix: "p/"}
	ts := hlc.Timestamp{PhysicalMS: 1000, Counter: 1, NodeID: "aaaaaaaaaaaaaaaa"}
	entry := oplog.Entry{Timestamp: ts.String()}

	key := s.entryKey("group-1", entry, ts)
	if !strings.HasPrefix(key, "p/group:group-1/") {
		t.Errorf("key %q missing expected prefix", key)
	}
	if !strings.Contains(key, "clientId:aaaaaaaaaaaaaaaa") {
		t.Errorf("key %q missing client token", key)
	}
}

func TestMerkleKeyIsStablePerClient(t *testing.T) {
	s := &Store{bucket: "b", prefix: "p/"}
	k1 := s.merkleKey("group-1", "aaaaaaaaaaaaaaaa")
	k2 := s.merkleKey("group-1", "aaaaaaaaaaaaaaaa")
	if k1 != k2 {
		t.Errorf("merkleKey not stable: %q vs %q", k1, k2)
	}
	k3 := s.merkleKey("group-1", "bbbbbbbbbbbbbbbb")
	if k1 == k3 {
		t.Errorf("merkleKey collided across clients")
	}
}
