// Package observability instruments the sync and apply paths of the
// convergence engine with OpenTelemetry counters and spans.
//
// Exporter wiring is the caller's responsibility: New accepts an
// already-configured TracerProvider/MeterProvider (a no-op pair for a
// library embedding, a real SDK-backed pair for a node running as a
// long-lived process).
//
//	obs, err := observability.New(&observability.Config{
//		TracerProvider: tp,
//		MeterProvider:  mp,
//	})
//	err = obs.TrackSync(ctx, peerID, func(ctx context.Context) error {
//		return engine.Sync(ctx, peer, nil, nil)
//	})
package observability
