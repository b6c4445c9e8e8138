package protover

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiatorAcceptsCompatibleVersion(t *testing.T) {
	n, err := NewNegotiator("^1.0.0")
	require.NoError(t, err)

	ok, err := n.Accepts("1.2.0")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNegotiatorRejectsIncompatibleMajor(t *testing.T) {
	n, err := NewNegotiator("^1.0.0")
	require.NoError(t, err)

	ok, err := n.Accepts("2.0.0")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNegotiatorRejectsMalformedConstraint(t *testing.T) {
	_, err := NewNegotiator("not a constraint")
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	c, err := Compare("1.0.0", "1.1.0")
	require.NoError(t, err)
	require.Equal(t, -1, c)

	c, err = Compare(Version, Version)
	require.NoError(t, err)
	require.Equal(t, 0, c)
}
