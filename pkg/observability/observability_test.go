package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "tidalsync.convergence", config.InstrumentationName)
	require.Nil(t, config.TracerProvider)
	require.Nil(t, config.MeterProvider)
}

func TestNewWithNilConfigFallsBackToNoop(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.Tracer())
}

func TestNewWithExplicitNoopProviders(t *testing.T) {
	p, err := New(&Config{
		TracerProvider: noop.NewTracerProvider(),
	})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestStartSyncRecordsRoundAndSpan(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	ctx, span := p.StartSync(context.Background(), "peer-a")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestStartApplyBatch(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	ctx, span := p.StartApplyBatch(context.Background(), 10)
	require.NotNil(t, ctx)
	span.End()
}

func TestRecordApplyOutcome(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordApplyOutcome(ctx, OutcomeApplied)
	p.RecordApplyOutcome(ctx, OutcomeIgnored)
	p.RecordApplyOutcome(ctx, OutcomeDuplicate)
}

func TestRecordMerkleDiffDepth(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	p.RecordMerkleDiffDepth(context.Background(), 12)
}

func TestRecordClockDriftRejection(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	p.RecordClockDriftRejection(context.Background(), "peer-b")
}

func TestTrackSyncSuccess(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	called := false
	err = p.TrackSync(context.Background(), "peer-c", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestTrackSyncPropagatesError(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	wantErr := errors.New("sync failed")
	err = p.TrackSync(context.Background(), "peer-d", func(ctx context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
