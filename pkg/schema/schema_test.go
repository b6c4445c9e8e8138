package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidalsync/core/pkg/schema"
)

func TestValidateEntryAccepts(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	raw := []byte(`{"dataset":"contacts","row":"row-1","column":"email","value":"a@example.com","timestamp":"2020-02-16T13:31:23.747Z-0000-a1b2c3d4e5f60718"}`)
	require.NoError(t, v.ValidateEntry(raw))
}

func TestValidateEntryRejectsMissingField(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	raw := []byte(`{"dataset":"contacts","row":"row-1"}`)
	require.Error(t, v.ValidateEntry(raw))
}

func TestValidateSyncRequestAccepts(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	raw := []byte(`{"group_id":"g1","client_id":"aaaaaaaaaaaaaaaa","messages":[]}`)
	require.NoError(t, v.ValidateSyncRequest(raw))
}

func TestValidateSyncRequestRejectsMissingClientID(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	raw := []byte(`{"group_id":"g1","messages":[]}`)
	require.Error(t, v.ValidateSyncRequest(raw))
}
