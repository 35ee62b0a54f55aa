// Package buffers implements the shared output buffers (C11) consumed
// by telemetry sinks and control surfaces: waterfall history, IQ/FFT
// snapshots, cross-correlation snapshots, the current DoA result, and
// a signal-classification ring, ported from web_server.h's buffer
// structs.
package buffers

import (
	"sync"
	"time"
)

// WaterfallHeight is the number of FFT frames retained per channel;
// WaterfallWidth is the maximum FFT size supported, both matching the
// original's WATERFALL_HEIGHT/WATERFALL_WIDTH.
const (
	WaterfallHeight = 512
	WaterfallWidth  = 4096
	IQSamples       = 256
	MaxClassifications = 50
)

// Waterfall is a circular history of per-channel FFT magnitude rows,
// ported from WaterfallBuffer.
type Waterfall struct {
	mu         sync.Mutex
	ch1History [][]uint8
	ch2History [][]uint8
	writeIndex int
}

// NewWaterfall allocates a zeroed waterfall history.
func NewWaterfall() *Waterfall {
	w := &Waterfall{
		ch1History: make([][]uint8, WaterfallHeight),
		ch2History: make([][]uint8, WaterfallHeight),
	}
	for i := range w.ch1History {
		w.ch1History[i] = make([]uint8, WaterfallWidth)
		w.ch2History[i] = make([]uint8, WaterfallWidth)
	}
	return w
}

// Push records a new spectrum row for both channels, overwriting the
// oldest row, per update_waterfall.
func (w *Waterfall) Push(ch1Mag, ch2Mag []uint8) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.ch1History[w.writeIndex], ch1Mag)
	copy(w.ch2History[w.writeIndex], ch2Mag)
	w.writeIndex = (w.writeIndex + 1) % WaterfallHeight
}

// Snapshot returns copies of the full history in chronological order
// (oldest first), safe to use after the call returns.
func (w *Waterfall) Snapshot() (ch1, ch2 [][]uint8) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch1 = make([][]uint8, WaterfallHeight)
	ch2 = make([][]uint8, WaterfallHeight)
	for i := 0; i < WaterfallHeight; i++ {
		idx := (w.writeIndex + i) % WaterfallHeight
		ch1[i] = append([]uint8(nil), w.ch1History[idx]...)
		ch2[i] = append([]uint8(nil), w.ch2History[idx]...)
	}
	return ch1, ch2
}

// IQSnapshot holds a fixed-size IQ constellation window plus the full
// complex FFT output for both channels, ported from IQBuffer.
type IQSnapshot struct {
	mu sync.Mutex

	Ch1I, Ch1Q []int16
	Ch2I, Ch2Q []int16

	Ch1FFT, Ch2FFT []complex128
}

// NewIQSnapshot allocates a zeroed snapshot sized per the original's
// IQ_SAMPLES constellation window and WATERFALL_WIDTH FFT length.
func NewIQSnapshot() *IQSnapshot {
	return &IQSnapshot{
		Ch1I: make([]int16, IQSamples), Ch1Q: make([]int16, IQSamples),
		Ch2I: make([]int16, IQSamples), Ch2Q: make([]int16, IQSamples),
		Ch1FFT: make([]complex128, WaterfallWidth),
		Ch2FFT: make([]complex128, WaterfallWidth),
	}
}

// Update replaces the constellation window and FFT data under lock.
func (s *IQSnapshot) Update(ch1I, ch1Q, ch2I, ch2Q []int16, ch1FFT, ch2FFT []complex128) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.Ch1I, ch1I)
	copy(s.Ch1Q, ch1Q)
	copy(s.Ch2I, ch2I)
	copy(s.Ch2Q, ch2Q)
	copy(s.Ch1FFT, ch1FFT)
	copy(s.Ch2FFT, ch2FFT)
}

// Snapshot returns a defensive copy of the constellation window.
func (s *IQSnapshot) Snapshot() (ch1I, ch1Q, ch2I, ch2Q []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int16(nil), s.Ch1I...), append([]int16(nil), s.Ch1Q...),
		append([]int16(nil), s.Ch2I...), append([]int16(nil), s.Ch2Q...)
}

// XCorr holds cross-correlation magnitude and phase arrays plus a
// rate-limiting update counter, ported from XCorrBuffer.
type XCorr struct {
	mu            sync.Mutex
	Magnitude     []float64
	Phase         []float64
	updateCounter uint32
}

// NewXCorr allocates a zeroed cross-correlation buffer sized for
// WaterfallWidth bins.
func NewXCorr() *XCorr {
	return &XCorr{
		Magnitude: make([]float64, WaterfallWidth),
		Phase:     make([]float64, WaterfallWidth),
	}
}

// ShouldUpdate reports whether enough frames have elapsed to refresh
// the cross-correlation snapshot (every every-th DF frame), and
// advances the internal counter regardless of the result.
func (x *XCorr) ShouldUpdate(every uint32) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.updateCounter++
	return x.updateCounter%every == 0
}

// Update replaces the magnitude/phase arrays under lock.
func (x *XCorr) Update(magnitude, phase []float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	copy(x.Magnitude, magnitude)
	copy(x.Phase, phase)
}

// Snapshot returns defensive copies of magnitude and phase.
func (x *XCorr) Snapshot() (magnitude, phase []float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]float64(nil), x.Magnitude...), append([]float64(nil), x.Phase...)
}

// DoAResult is the latest direction-of-arrival result shared with
// telemetry sinks, ported from DoAResult.
type DoAResult struct {
	mu sync.Mutex

	Azimuth      float64
	BackAzimuth  float64
	PhaseDiffDeg float64
	PhaseStdDeg  float64
	Confidence   float64
	SNRDb        float64
	Coherence    float64
	HasAmbiguity bool
}

// NewDoAResult returns a zeroed result with HasAmbiguity set, matching
// a 2-channel interferometer's inherent 180° ambiguity.
func NewDoAResult() *DoAResult {
	return &DoAResult{HasAmbiguity: true}
}

// Set replaces the stored result under lock.
func (d *DoAResult) Set(azimuth, backAzimuth, phaseDiffDeg, phaseStdDeg, confidence, snrDb, coherence float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Azimuth = azimuth
	d.BackAzimuth = backAzimuth
	d.PhaseDiffDeg = phaseDiffDeg
	d.PhaseStdDeg = phaseStdDeg
	d.Confidence = confidence
	d.SNRDb = snrDb
	d.Coherence = coherence
}

// Get returns a copy of the current result under lock.
func (d *DoAResult) Get() DoAResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DoAResult{
		Azimuth: d.Azimuth, BackAzimuth: d.BackAzimuth,
		PhaseDiffDeg: d.PhaseDiffDeg, PhaseStdDeg: d.PhaseStdDeg,
		Confidence: d.Confidence, SNRDb: d.SNRDb, Coherence: d.Coherence,
		HasAmbiguity: d.HasAmbiguity,
	}
}

// ClassifiedSignal is one signal-classification entry, ported from
// ClassifiedSignal.
type ClassifiedSignal struct {
	FrequencyHz uint64
	BandwidthHz float64
	Modulation  string
	Confidence  uint8
	PowerDb     float64
	TimestampMs int64
}

// ClassificationRing is a fixed-capacity circular buffer of recent
// signal classifications, ported from ClassificationBuffer.
type ClassificationRing struct {
	mu              sync.Mutex
	classifications [MaxClassifications]ClassifiedSignal
	writeIndex      int
	count           int
}

// NewClassificationRing returns an empty ring.
func NewClassificationRing() *ClassificationRing {
	return &ClassificationRing{}
}

// Add records a new classification, overwriting the oldest entry once
// the ring is full, per add_classification.
func (c *ClassificationRing) Add(frequencyHz uint64, bandwidthHz float64, modulation string, confidence uint8, powerDb float64, timestampMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classifications[c.writeIndex] = ClassifiedSignal{
		FrequencyHz: frequencyHz,
		BandwidthHz: bandwidthHz,
		Modulation:  modulation,
		Confidence:  confidence,
		PowerDb:     powerDb,
		TimestampMs: timestampMs,
	}
	c.writeIndex = (c.writeIndex + 1) % MaxClassifications
	if c.count < MaxClassifications {
		c.count++
	}
}

// Recent returns the stored classifications, most recent first.
func (c *ClassificationRing) Recent() []ClassifiedSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ClassifiedSignal, c.count)
	for i := 0; i < c.count; i++ {
		idx := (c.writeIndex - 1 - i + MaxClassifications) % MaxClassifications
		out[i] = c.classifications[idx]
	}
	return out
}

// LinkQuality tracks adaptive-streaming health metrics, ported from
// LinkQuality. Fields are grouped behind a mutex rather than
// individually atomic since readers typically want a consistent
// snapshot across all five.
type LinkQuality struct {
	mu          sync.Mutex
	RTTMs       float64
	PacketLoss  float64
	FPS         float64
	BytesSent   uint64
	lastUpdate  time.Time
}

// NewLinkQuality returns a fresh tracker stamped with the current time.
func NewLinkQuality(now time.Time) *LinkQuality {
	return &LinkQuality{lastUpdate: now}
}

// Update records new link metrics and the time they were observed.
func (l *LinkQuality) Update(rttMs, packetLoss, fps float64, bytesSent uint64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.RTTMs = rttMs
	l.PacketLoss = packetLoss
	l.FPS = fps
	l.BytesSent = bytesSent
	l.lastUpdate = now
}

// Snapshot returns the current metrics and the time of the last update.
func (l *LinkQuality) Snapshot() (rttMs, packetLoss, fps float64, bytesSent uint64, lastUpdate time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.RTTMs, l.PacketLoss, l.FPS, l.BytesSent, l.lastUpdate
}
