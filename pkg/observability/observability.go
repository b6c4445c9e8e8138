// Package observability instruments the convergence engine with counters
// and spans for sync rounds and apply outcomes.
//
// Unlike a long-running service, this engine is a library: callers own
// exporter wiring. Provider only accepts an already-configured
// TracerProvider/MeterProvider (or none, in which case it falls back to
// the global no-op providers) and exposes instrumentation calls scoped
// to the operations this engine actually performs.
package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ApplyOutcome labels the result of applying a single entry, mirroring
// the apply engine's own outcome type without importing it (avoids a
// dependency cycle: apply may want to record through this package).
type ApplyOutcome string

const (
	OutcomeApplied   ApplyOutcome = "applied"
	OutcomeIgnored   ApplyOutcome = "ignored"
	OutcomeDuplicate ApplyOutcome = "duplicate"
)

// Config names the instrumentation scope. It carries no exporter or
// sampling settings; those belong to whatever TracerProvider/MeterProvider
// the caller passes to New.
type Config struct {
	InstrumentationName    string
	InstrumentationVersion string
	TracerProvider         trace.TracerProvider
	MeterProvider          metric.MeterProvider
}

func DefaultConfig() *Config {
	return &Config{
		InstrumentationName:    "tidalsync.convergence",
		InstrumentationVersion: "0.1.0",
	}
}

// Provider holds the counters and tracer this engine emits through.
type Provider struct {
	tracer trace.Tracer
	logger *slog.Logger

	syncRounds    metric.Int64Counter
	applyOutcomes metric.Int64Counter
	diffDepth     metric.Int64Histogram
	driftRejects  metric.Int64Counter
}

// New builds a Provider. A nil Config, or a Config with nil providers,
// falls back to the global otel no-op providers — instrumentation calls
// remain safe but record nothing.
func New(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := config.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	tracer := tp.Tracer(config.InstrumentationName,
		trace.WithInstrumentationVersion(config.InstrumentationVersion),
	)
	meter := mp.Meter(config.InstrumentationName,
		metric.WithInstrumentationVersion(config.InstrumentationVersion),
	)

	p := &Provider{
		tracer: tracer,
		logger: slog.Default().With("component", "observability"),
	}

	var err error
	p.syncRounds, err = meter.Int64Counter("tidalsync.sync.rounds",
		metric.WithDescription("Number of sync protocol rounds executed"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		return nil, err
	}

	p.applyOutcomes, err = meter.Int64Counter("tidalsync.apply.outcomes",
		metric.WithDescription("Entries processed by the apply engine, by outcome"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	p.diffDepth, err = meter.Int64Histogram("tidalsync.merkle.diff_depth",
		metric.WithDescription("Trie depth at which a merkle diff located first divergence"),
		metric.WithUnit("{level}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 4, 6, 8, 10, 12, 14, 16),
	)
	if err != nil {
		return nil, err
	}

	p.driftRejects, err = meter.Int64Counter("tidalsync.clock.drift_rejections",
		metric.WithDescription("Incoming timestamps rejected for exceeding max clock drift"),
		metric.WithUnit("{timestamp}"),
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Tracer returns the tracer this provider instruments spans through.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// StartSync opens a span covering one sync() call with a peer.
func (p *Provider) StartSync(ctx context.Context, peerID string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, "sync",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tidalsync.peer_id", peerID)),
	)
	if p.syncRounds != nil {
		p.syncRounds.Add(ctx, 1, metric.WithAttributes(attribute.String("peer_id", peerID)))
	}
	return ctx, span
}

// StartApplyBatch opens a span covering one apply() batch.
func (p *Provider) StartApplyBatch(ctx context.Context, size int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "apply",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("tidalsync.batch_size", size)),
	)
}

// RecordApplyOutcome tallies the result of applying one entry.
func (p *Provider) RecordApplyOutcome(ctx context.Context, outcome ApplyOutcome) {
	if p.applyOutcomes == nil {
		return
	}
	p.applyOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

// RecordMerkleDiffDepth records the trie depth a diff terminated at.
func (p *Provider) RecordMerkleDiffDepth(ctx context.Context, depth int) {
	if p.diffDepth == nil {
		return
	}
	p.diffDepth.Record(ctx, int64(depth))
}

// RecordClockDriftRejection tallies a timestamp rejected by the HLC for
// exceeding the configured max drift.
func (p *Provider) RecordClockDriftRejection(ctx context.Context, peerID string) {
	if p.driftRejects == nil {
		return
	}
	p.driftRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("peer_id", peerID)))
	p.logger.WarnContext(ctx, "clock drift rejection", "peer_id", peerID)
}

// TrackSync runs fn inside a sync span, recording its duration and error.
func (p *Provider) TrackSync(ctx context.Context, peerID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := p.StartSync(ctx, peerID)
	defer span.End()

	err := fn(ctx)
	span.SetAttributes(attribute.Int64("tidalsync.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
	}
	return err
}
