package httptransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidalsync/core/pkg/apply"
	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/rowstore"
	"github.com/tidalsync/core/pkg/transport/httptransport"
)

func newTestEngine(nodeID string) *convergence.Engine {
	applyEngine := apply.New(oplog.NewMemStore(), rowstore.NewMemStore())
	return convergence.New(nodeID, "group-1", applyEngine)
}

func TestClientExchangeRoundTrip(t *testing.T) {
	peer := newTestEngine("bbbbbbbbbbbbbbbb")
	signer := httptransport.NewTokenSigner([]byte("shared-secret"))

	handler, err := httptransport.NewHandler(peer, signer)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	defer server.Close()

	client, err := httptransport.NewClient(server.URL, signer)
	require.NoError(t, err)

	local := newTestEngine("aaaaaaaaaaaaaaaa")
	_, err = local.Record(context.Background(), "contacts", "row-1", "email", "a@example.com")
	require.NoError(t, err)

	outgoing, err := local.Apply.OpLog.Since(context.Background(), "")
	require.NoError(t, err)

	err = local.Sync(context.Background(), client, outgoing, nil)
	require.NoError(t, err)

	fields, ok, err := peer.Apply.RowStore.Get(context.Background(), "contacts", "row-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@example.com", fields["email"])
}

func TestHandlerRejectsIncompatibleProtocolVersion(t *testing.T) {
	peer := newTestEngine("bbbbbbbbbbbbbbbb")

	handler, err := httptransport.NewHandler(peer, nil)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	defer server.Close()

	body := strings.NewReader(`{"group_id":"group-1","client_id":"aaaaaaaaaaaaaaaa","messages":[],"protocol_version":"2.0.0"}`)
	resp, err := http.Post(server.URL, "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerRejectsMissingBearerToken(t *testing.T) {
	peer := newTestEngine("bbbbbbbbbbbbbbbb")
	signer := httptransport.NewTokenSigner([]byte("shared-secret"))

	handler, err := httptransport.NewHandler(peer, signer)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	defer server.Close()

	noAuthClient, err := httptransport.NewClient(server.URL, nil)
	require.NoError(t, err)

	local := newTestEngine("aaaaaaaaaaaaaaaa")
	err = local.Sync(context.Background(), noAuthClient, nil, nil)
	require.Error(t, err)
}
