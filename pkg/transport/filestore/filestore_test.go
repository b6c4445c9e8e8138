package filestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/transport/filestore"
)

func TestPushAndPullEntriesExcludesOwnClient(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(dir)
	require.NoError(t, err)

	clock := hlc.NewClock("aaaaaaaaaaaaaaaa")
	ts, err := clock.Send(1000)
	require.NoError(t, err)

	entry := oplog.Entry{Dataset: "contacts", Row: "row-1", Column: "email", Value: "a@example.com", Timestamp: ts.String()}
	require.NoError(t, store.PushEntries(context.Background(), "group-1", "aaaaaaaaaaaaaaaa", []oplog.Entry{entry}))

	fromSelf, err := store.PullEntries(context.Background(), "group-1", "aaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	require.Empty(t, fromSelf)

	fromOther, err := store.PullEntries(context.Background(), "group-1", "bbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	require.Len(t, fromOther, 1)
	require.Equal(t, entry.Value, fromOther[0].Value)
}

func TestPushAndPullMerkle(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(dir)
	require.NoError(t, err)

	clock := hlc.NewClock("aaaaaaaaaaaaaaaa")
	ts, err := clock.Send(1000)
	require.NoError(t, err)

	root, err := merkle.Insert(merkle.Empty, ts)
	require.NoError(t, err)

	require.NoError(t, store.PushMerkle(context.Background(), "group-1", "aaaaaaaaaaaaaaaa", root))

	pulled, err := store.PullMerkle(context.Background(), "group-1", "aaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, root.Hash, pulled.Hash)
}

func TestPullMerkleMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(dir)
	require.NoError(t, err)

	pulled, err := store.PullMerkle(context.Background(), "group-1", "ghost")
	require.NoError(t, err)
	require.Equal(t, merkle.Empty.Hash, pulled.Hash)
}
