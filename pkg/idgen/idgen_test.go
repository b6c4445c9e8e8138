package idgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNodeIDShapeAndUniqueness(t *testing.T) {
	a, err := NewNodeID()
	require.NoError(t, err)
	require.Len(t, a, 16)

	b, err := NewNodeID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNewGroupIDIsUUIDShaped(t *testing.T) {
	g := NewGroupID()
	require.Len(t, g, 36)
	require.NotEqual(t, g, NewGroupID())
}
