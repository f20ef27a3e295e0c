package internal

import (
	"context"
	"sync"
	"time"
)

// telemetry.go
// Lightweight telemetry hook layer for the planning pipeline. The pipeline
// emits per-stage latencies through a pluggable emitter; by default the
// emitter is a no-op, so there is no hard dependency on a metrics SDK.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. Callers can
// provide a metrics-backed emitter or a test stub. Passing nil restores the
// no-op emitter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitStageLatency records a latency measure (milliseconds) for a named
// pipeline stage such as "intent", "normalize", "execute" or "cache_lookup".
func EmitStageLatency(ctx context.Context, stage string, d time.Duration) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "pipeline_stage_latency_ms", map[string]string{"stage": stage}, d.Milliseconds())
}

// EmitCacheOutcome records a cache consultation outcome: "hit_exact",
// "hit_similar", "miss" or "error".
func EmitCacheOutcome(ctx context.Context, outcome string) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, "semantic_cache_outcome", map[string]string{"outcome": outcome}, int64(1))
}
