// Package dsp implements the time-domain conditioning path: window
// generation, DC removal, overlap-add, complex FFT, and magnitude
// quantization, ported from
// _examples/original_source/server/src/signal_processing.cpp.
package dsp

import "math"

// WindowType selects a window function for conditioning. Coefficients
// are regenerated only when the type (or length) changes.
type WindowType int

const (
	WindowRectangular WindowType = iota
	WindowHamming
	WindowHanning
	WindowBlackman
	WindowBlackmanHarris
	WindowKaiser
	WindowTukey
	WindowGaussian
)

// GenerateWindow returns length coefficients for windowType, matching
// generate_window in the original bit-for-bit in formula.
func GenerateWindow(windowType WindowType, length int) []float64 {
	w := make([]float64, length)
	if length == 0 {
		return w
	}
	if length == 1 {
		w[0] = 1
		return w
	}

	switch windowType {
	case WindowHamming:
		for i := range w {
			w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(length-1))
		}
	case WindowHanning:
		for i := range w {
			w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(length-1)))
		}
	case WindowBlackman:
		for i := range w {
			w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(length-1)) +
				0.08*math.Cos(4*math.Pi*float64(i)/float64(length-1))
		}
	case WindowBlackmanHarris:
		for i := range w {
			x := 2*float64(i)/float64(length-1) - 1
			w[i] = 0.402 + 0.498*math.Cos(math.Pi*x) + 0.098*math.Cos(2*math.Pi*x)
		}
	case WindowKaiser:
		const beta = 8.6
		besselBeta := besselI0(beta)
		alpha := float64(length-1) / 2.0
		for i := range w {
			n := float64(i) - alpha
			arg := math.Sqrt(math.Max(0, 1-(n*n)/(alpha*alpha)))
			w[i] = besselI0(beta*arg) / besselBeta
		}
	case WindowTukey:
		const alpha = 0.5
		alphaLen := alpha * float64(length-1) / 2.0
		for i := range w {
			switch {
			case float64(i) < alphaLen:
				w[i] = 0.5 * (1 + math.Cos(math.Pi*(float64(i)/alphaLen-1)))
			case float64(i) > float64(length-1)-alphaLen:
				idx := float64(i) - (float64(length-1) - alphaLen)
				w[i] = 0.5 * (1 + math.Cos(math.Pi*idx/alphaLen))
			default:
				w[i] = 1
			}
		}
	case WindowGaussian:
		const sigma = 0.4
		center := float64(length-1) / 2.0
		for i := range w {
			n := (float64(i) - center) / center
			w[i] = math.Exp(-0.5 * (n / sigma) * (n / sigma))
		}
	default: // WindowRectangular and anything unrecognized
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

// besselI0 is the zeroth-order modified Bessel function of the first
// kind, used by the Kaiser window. Matches the original's 25-term
// series with early termination once a term becomes negligible.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	xSq4 := (x * x) / 4.0
	for k := 1; k < 25; k++ {
		term *= xSq4 / float64(k*k)
		sum += term
		if term < 1e-8 {
			break
		}
	}
	return sum
}

// ApplyWindow multiplies data in place by window (both length N).
func ApplyWindow(data []complex128, window []float64) {
	for i := range data {
		data[i] = complex(real(data[i])*window[i], imag(data[i])*window[i])
	}
}
