// Package control implements the atomic config/control surface (C12)
// shared between the web/API layer and the acquisition pipeline,
// ported from the atomic fields in PipelineContext (pipeline.h) and
// the range checks in config_validation.cpp.
package control

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Hardware limits, per config_validation.cpp (bladeRF xA9 range).
const (
	MinFrequencyHz = 47_000_000
	MaxFrequencyHz = 6_000_000_000

	MinSampleRateHz = 520_000
	MaxSampleRateHz = 61_440_000

	MinBandwidthHz = 520_000
	MaxBandwidthHz = 61_440_000

	MinGainDb = 0
	MaxGainDb = 60
)

// ValidateFrequency reports whether freq falls within the supported
// tuning range, per validate_frequency.
func ValidateFrequency(freq uint64) bool {
	return freq >= MinFrequencyHz && freq <= MaxFrequencyHz
}

// ValidateSampleRate reports whether rate falls within the supported
// sample-rate range, per validate_sample_rate.
func ValidateSampleRate(rate uint32) bool {
	return rate >= MinSampleRateHz && rate <= MaxSampleRateHz
}

// ValidateBandwidth reports whether bw falls within the supported
// bandwidth range, per validate_bandwidth.
func ValidateBandwidth(bw uint32) bool {
	return bw >= MinBandwidthHz && bw <= MaxBandwidthHz
}

// ValidateGain reports whether gain falls within the supported range,
// per validate_gain.
func ValidateGain(gain uint32) bool {
	return gain <= MaxGainDb
}

// CFARMode selects the runtime CFAR detection variant, per
// set_cfar_mode.
type CFARMode uint32

const (
	CFARModeCA CFARMode = iota
	CFARModeOS
	CFARModeGO
	CFARModeSO
)

// Surface holds the live, concurrently-read/written radio and DF
// configuration. Every field is an atomic so the acquisition,
// conditioning, and analysis goroutines can read it without blocking;
// ParamsChanged lets the acquisition goroutine notice a
// frequency/gain/bandwidth change made by the control API and
// re-tune, mirroring PipelineContext's atomic pointers plus
// params_changed flag.
type Surface struct {
	centerFreqHz atomic.Uint64
	sampleRate   atomic.Uint32
	bandwidth    atomic.Uint32
	gainRX1      atomic.Uint32
	gainRX2      atomic.Uint32

	dfStartBin atomic.Uint32
	dfEndBin   atomic.Uint32

	windowType      atomic.Uint32
	averagingFrames atomic.Uint32

	cfarMode   atomic.Uint32
	agcEnabled atomic.Bool

	paramsChanged atomic.Bool

	// configMu serializes multi-field updates (e.g. SetGains,
	// SetSampleRateAndBandwidth)
	// so a reader never observes a half-applied change, matching the
	// original's config_mutex guarding related atomic writes together.
	configMu sync.Mutex
}

// NewSurface returns a Surface with the given initial frequency,
// sample rate, bandwidth, and per-channel gains. Callers should
// validate inputs with the Validate* functions before constructing or
// mutating a Surface; this constructor does not itself reject values.
func NewSurface(centerFreqHz uint64, sampleRate, bandwidth, gainRX1, gainRX2 uint32) *Surface {
	s := &Surface{}
	s.centerFreqHz.Store(centerFreqHz)
	s.sampleRate.Store(sampleRate)
	s.bandwidth.Store(bandwidth)
	s.gainRX1.Store(gainRX1)
	s.gainRX2.Store(gainRX2)
	return s
}

// CenterFrequencyHz returns the current tuned center frequency.
func (s *Surface) CenterFrequencyHz() uint64 { return s.centerFreqHz.Load() }

// SampleRate returns the current sample rate in Hz.
func (s *Surface) SampleRate() uint32 { return s.sampleRate.Load() }

// Bandwidth returns the current analog filter bandwidth in Hz.
func (s *Surface) Bandwidth() uint32 { return s.bandwidth.Load() }

// GainRX1 returns the current channel-1 receive gain in dB.
func (s *Surface) GainRX1() uint32 { return s.gainRX1.Load() }

// GainRX2 returns the current channel-2 receive gain in dB.
func (s *Surface) GainRX2() uint32 { return s.gainRX2.Load() }

// DFBinRange returns the currently selected [start, end] FFT bin range
// for direction finding.
func (s *Surface) DFBinRange() (start, end uint32) {
	return s.dfStartBin.Load(), s.dfEndBin.Load()
}

// WindowType returns the configured conditioning window, stored as a
// plain uint32 so dsp.WindowType values round-trip without importing
// the dsp package here.
func (s *Surface) WindowType() uint32 { return s.windowType.Load() }

// AveragingFrames returns the stored spectral-averaging depth. The
// pipeline does not read this cell; its averager depth is fixed from
// the config's fft.averaging_frames when the pipeline is constructed.
func (s *Surface) AveragingFrames() uint32 { return s.averagingFrames.Load() }

// ParamsChanged reports and clears the "hardware needs retuning" flag.
// The acquisition goroutine calls this once per loop iteration.
func (s *Surface) ParamsChanged() bool {
	return s.paramsChanged.Swap(false)
}

// SetWindowType updates the conditioning window, no validation needed
// since it is an enum rather than a hardware-bounded range.
func (s *Surface) SetWindowType(wt uint32) {
	s.windowType.Store(wt)
}

// SetAveragingFrames stores a spectral-averaging depth. It does not
// change the running pipeline's averager (see AveragingFrames).
func (s *Surface) SetAveragingFrames(n uint32) {
	s.averagingFrames.Store(n)
}

// CFARMode returns the currently selected CFAR detection variant.
func (s *Surface) CFARMode() CFARMode { return CFARMode(s.cfarMode.Load()) }

// SetCFARMode updates the CFAR detection variant at runtime, per
// set_cfar_mode; the analysis goroutine picks this up on its next
// iteration, same as a window-type change.
func (s *Surface) SetCFARMode(mode CFARMode) {
	s.cfarMode.Store(uint32(mode))
}

// AGCEnabled reports whether automatic gain control is active.
func (s *Surface) AGCEnabled() bool { return s.agcEnabled.Load() }

// SetAGCEnabled toggles automatic gain control at runtime, per
// enable_agc.
func (s *Surface) SetAGCEnabled(enabled bool) {
	s.agcEnabled.Store(enabled)
}

// SetDFBinRange updates the DF bin selection.
func (s *Surface) SetDFBinRange(start, end uint32) {
	s.dfStartBin.Store(start)
	s.dfEndBin.Store(end)
}

// SetFrequency validates and applies a new center frequency, marking
// ParamsChanged so the acquisition goroutine retunes.
func (s *Surface) SetFrequency(freq uint64) error {
	if !ValidateFrequency(freq) {
		return fmt.Errorf("control: frequency %d Hz outside supported range [%d, %d]", freq, uint64(MinFrequencyHz), uint64(MaxFrequencyHz))
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.centerFreqHz.Store(freq)
	s.paramsChanged.Store(true)
	return nil
}

// SetGains validates and applies new per-channel gains together,
// marking ParamsChanged exactly once for the combined change.
func (s *Surface) SetGains(gainRX1, gainRX2 uint32) error {
	if !ValidateGain(gainRX1) {
		return fmt.Errorf("control: rx1 gain %d dB outside supported range [%d, %d]", gainRX1, MinGainDb, MaxGainDb)
	}
	if !ValidateGain(gainRX2) {
		return fmt.Errorf("control: rx2 gain %d dB outside supported range [%d, %d]", gainRX2, MinGainDb, MaxGainDb)
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.gainRX1.Store(gainRX1)
	s.gainRX2.Store(gainRX2)
	s.paramsChanged.Store(true)
	return nil
}

// SetSampleRateAndBandwidth validates and applies a new sample rate
// and bandwidth together, since bladeRF requires both to be
// reconfigured in lockstep.
func (s *Surface) SetSampleRateAndBandwidth(sampleRate, bandwidth uint32) error {
	if !ValidateSampleRate(sampleRate) {
		return fmt.Errorf("control: sample rate %d Hz outside supported range [%d, %d]", sampleRate, MinSampleRateHz, MaxSampleRateHz)
	}
	if !ValidateBandwidth(bandwidth) {
		return fmt.Errorf("control: bandwidth %d Hz outside supported range [%d, %d]", bandwidth, MinBandwidthHz, MaxBandwidthHz)
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.sampleRate.Store(sampleRate)
	s.bandwidth.Store(bandwidth)
	s.paramsChanged.Store(true)
	return nil
}
