package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dB mapping constants, ported from compute_magnitude_db in the
// original: magnitudes are quantized to 0..255 over a 120 dB window
// centered near -100 dBFS.
const (
	dbScale    = 10.0
	dbOffset   = 100.0
	dbRange    = 120.0
	normScale  = 255.0 / dbRange
	// MinPower is the power floor before log10, guarding against
	// log10(0). Any value that keeps the mapped result above the
	// -100 dB cutoff is acceptable (spec.md §9); kept at the
	// original's 1e-20.
	MinPower = 1e-20
)

// FFT wraps a gonum complex-to-complex FFT plan sized for one
// pipeline instance's fixed N, matching the gonum usage already
// established in the teacher's audio_extensions (sstv/fft.go,
// morse/spectrum_analyzer.go), generalized here from real-input to
// complex-input since IQ data is complex at the outset.
type FFT struct {
	n    int
	plan *fourier.CmplxFFT
}

// NewFFT builds an FFT plan for size n (must be a power of two,
// typically 4096 per spec.md §3).
func NewFFT(n int) *FFT {
	return &FFT{n: n, plan: fourier.NewCmplxFFT(n)}
}

// N returns the configured FFT size.
func (f *FFT) N() int { return f.n }

// Forward computes the forward complex FFT of src (length N) into dst
// (length N, reused across calls by the caller to avoid allocation)
// and returns dst.
func (f *FFT) Forward(dst, src []complex128) []complex128 {
	return f.plan.Coefficients(dst, src)
}

// MagnitudeDB converts FFT output to an 8-bit log-magnitude array (the
// SpectrumFrame per-channel magnitude), per compute_magnitude_db.
func MagnitudeDB(fftOut []complex128, magOut []uint8) {
	for i, x := range fftOut {
		re, im := real(x), imag(x)
		power := re*re + im*im
		db := dbScale * math.Log10(math.Max(power, MinPower))
		normalized := (db + dbOffset) * normScale
		magOut[i] = clampByte(normalized)
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// SmoothDCBin replaces the center bin with a 1-2-2-1 weighted average
// of the two bins on each side, then replaces each immediate neighbor
// with a 1-2-1 average of itself and its two adjacent bins, matching
// remove_dc_offset's residual-LO-leakage suppression. size must be
// at least 7 for the smoothing window to be meaningful; smaller sizes
// are left untouched.
func SmoothDCBin(magnitude []uint8) {
	size := len(magnitude)
	dcBin := size / 2
	if dcBin < 3 || dcBin >= size-3 {
		return
	}

	weightedAvg := (uint32(magnitude[dcBin-2]) +
		2*uint32(magnitude[dcBin-1]) +
		2*uint32(magnitude[dcBin+1]) +
		uint32(magnitude[dcBin+2])) / 6
	magnitude[dcBin] = uint8(weightedAvg)

	// Each side is smoothed in place, in the same order the original
	// mutates the slice, so the left/right pass sees the already
	// updated center bin (not its pre-smoothing value).
	for _, idx := range []int{dcBin - 1, dcBin + 1} {
		avg := (uint32(magnitude[idx-1]) + 2*uint32(magnitude[idx]) + uint32(magnitude[idx+1])) / 4
		magnitude[idx] = uint8(avg)
	}
}
