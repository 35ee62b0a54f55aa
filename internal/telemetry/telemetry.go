// Package telemetry holds the process-wide monotonic counters and
// timing instrumentation for the pipeline, plus an optional Prometheus
// exporter and process-health sampler.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Counters is the explicit context handle for telemetry, passed to
// every component that needs to record an event, in place of the
// process-wide mutable singleton the original design notes flag for
// re-architecture (spec.md §9).
type Counters struct {
	RunID uuid.UUID

	FramesAcquired  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesAnalyzed  atomic.Uint64

	SampleQueueFull atomic.Uint64
	FFTQueueFull    atomic.Uint64

	USBErrors      atomic.Uint64
	USBRecoveries  atomic.Uint64

	Detections   atomic.Uint64
	DFInvocations atomic.Uint64

	OutboundBytes atomic.Uint64

	AcquireMicros    atomic.Uint64
	ConditionMicros  atomic.Uint64
	AnalyzeMicros    atomic.Uint64

	HeartbeatAcquire atomic.Uint64
}

// New creates a fresh counter set stamped with a new run ID.
func New() *Counters {
	return &Counters{RunID: uuid.New()}
}

// Stage identifies which cumulative-microsecond counter a Timer should
// credit on Stop.
type Stage int

const (
	StageAcquire Stage = iota
	StageCondition
	StageAnalyze
)

// Timer is a scoped timer: construct with StartTimer, always call Stop
// (typically via defer) exactly once. Stop is safe to call even if the
// caller returns early or panics, since it only reads wall-clock time
// and adds to an atomic counter — there is nothing to unwind.
type Timer struct {
	c     *Counters
	stage Stage
	start time.Time
}

// StartTimer begins timing a stage. Call Stop when the work completes.
func (c *Counters) StartTimer(stage Stage) Timer {
	return Timer{c: c, stage: stage, start: time.Now()}
}

// Stop records the elapsed microseconds into the counter for this
// timer's stage.
func (t Timer) Stop() {
	elapsed := time.Since(t.start)
	us := uint64(elapsed.Microseconds())
	switch t.stage {
	case StageAcquire:
		t.c.AcquireMicros.Add(us)
	case StageCondition:
		t.c.ConditionMicros.Add(us)
	case StageAnalyze:
		t.c.AnalyzeMicros.Add(us)
	}
}

// Snapshot is a point-in-time, non-atomic copy of the counters,
// suitable for JSON/Prometheus export.
type Snapshot struct {
	RunID            string
	FramesAcquired   uint64
	FramesProcessed  uint64
	FramesAnalyzed   uint64
	SampleQueueFull  uint64
	FFTQueueFull     uint64
	USBErrors        uint64
	USBRecoveries    uint64
	Detections       uint64
	DFInvocations    uint64
	OutboundBytes    uint64
	AcquireMicros    uint64
	ConditionMicros  uint64
	AnalyzeMicros    uint64
	HeartbeatAcquire uint64
}

// Snapshot takes an atomic read of every counter.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		RunID:            c.RunID.String(),
		FramesAcquired:   c.FramesAcquired.Load(),
		FramesProcessed:  c.FramesProcessed.Load(),
		FramesAnalyzed:   c.FramesAnalyzed.Load(),
		SampleQueueFull:  c.SampleQueueFull.Load(),
		FFTQueueFull:     c.FFTQueueFull.Load(),
		USBErrors:        c.USBErrors.Load(),
		USBRecoveries:    c.USBRecoveries.Load(),
		Detections:       c.Detections.Load(),
		DFInvocations:    c.DFInvocations.Load(),
		OutboundBytes:    c.OutboundBytes.Load(),
		AcquireMicros:    c.AcquireMicros.Load(),
		ConditionMicros:  c.ConditionMicros.Load(),
		AnalyzeMicros:    c.AnalyzeMicros.Load(),
		HeartbeatAcquire: c.HeartbeatAcquire.Load(),
	}
}
