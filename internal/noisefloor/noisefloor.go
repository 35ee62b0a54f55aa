// Package noisefloor implements the per-channel percentile noise-floor
// estimator (C4): an instantaneous percentile of the 0..255 magnitude
// array blended into a smoothed EWMA value, ported from
// update_noise_floor in the original signal_processing.cpp.
package noisefloor

import "sort"

// DefaultPercentile and DefaultAlpha match the original's defaults
// (15th percentile, EWMA smoothing factor 0.1).
const (
	DefaultPercentile = 15.0
	DefaultAlpha      = 0.1
)

// State holds the smoothed noise-floor estimate and scratch buffer for
// one channel. The scratch buffer is reused across updates to avoid
// per-frame allocation.
type State struct {
	Smoothed float64
	scratch  []uint8

	initialized bool

	// UpdateCounter supports "every frame or every Kth frame" updates
	// (spec.md §4.4); callers decide K and call Update only when due.
	UpdateCounter int
}

// NewState returns a fresh, uninitialized noise-floor state.
func NewState() *State {
	return &State{}
}

// percentile returns the value at the given percentile (0-100) of
// magnitudes. It copies magnitudes into the scratch buffer and sorts
// the whole buffer (O(n log n)); no partial selection is done.
func percentile(scratch []uint8, magnitudes []uint8, pct float64) float64 {
	n := len(magnitudes)
	if n == 0 {
		return 0
	}
	if cap(scratch) < n {
		scratch = make([]uint8, n)
	}
	scratch = scratch[:n]
	copy(scratch, magnitudes)

	idx := int(pct / 100.0 * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}

	// sort.Slice over the whole scratch buffer is O(n log n); for a
	// true O(n) partial selection a quickselect (as the original's
	// std::nth_element) would be needed. Go's standard library has no
	// partial-selection primitive, so cfar/noisefloor both use a full
	// sort here and document the complexity difference rather than
	// hand-rolling quickselect purely for a constant-factor win on
	// arrays capped at a few thousand bins.
	sort.Slice(scratch, func(i, j int) bool { return scratch[i] < scratch[j] })
	return float64(scratch[idx])
}

// Update computes the instantaneous percentile of magnitudes and
// blends it into the smoothed estimate:
// floor ← α·p + (1−α)·floor (initializing floor to p on first call).
func (s *State) Update(magnitudes []uint8, pct, alpha float64) {
	if cap(s.scratch) < len(magnitudes) {
		s.scratch = make([]uint8, len(magnitudes))
	}
	p := percentile(s.scratch, magnitudes, pct)
	if !s.initialized {
		s.Smoothed = p
		s.initialized = true
		return
	}
	s.Smoothed = alpha*p + (1-alpha)*s.Smoothed
}

// Initialized reports whether at least one Update call has completed.
func (s *State) Initialized() bool {
	return s.initialized
}
