package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := New(Format, "parse", "malformed timestamp")
	require.Equal(t, "parse: malformed timestamp", e.Error())

	wrapped := Wrap(Network, "sync", "post failed", errors.New("dial tcp: refused"))
	require.Contains(t, wrapped.Error(), "dial tcp: refused")
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("context: %w", New(SyncStuck, "sync", "divergence unchanged"))
	require.True(t, errors.Is(err, New(SyncStuck, "", "")))
	require.False(t, errors.Is(err, New(ClockDrift, "", "")))
}

func TestKindOf(t *testing.T) {
	err := Wrap(Overflow, "send", "counter exhausted", nil)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, Overflow, kind)

	_, ok = KindOf(errors.New("plain error"))
	require.False(t, ok)
}

func TestRetriable(t *testing.T) {
	require.True(t, Network.Retriable())
	require.True(t, ServerError.Retriable())
	require.False(t, SyncStuck.Retriable())
	require.False(t, Format.Retriable())
}
