// Package direction implements the interferometric direction-finding
// estimator (C7) and its bearing-smoothing Kalman filter (C8), ported
// from df_processing.cpp.
package direction

import (
	"math"
	"time"

	"github.com/cwsl/dfsensor/internal/calibration"
	"github.com/cwsl/dfsensor/internal/cfar"
)

// Interferometer geometry: antenna spacing in wavelengths (0.164m at
// 915MHz / 0.328m λ, per the original's bladeRF comment) with
// wavelength normalized to 1 since spacing is already expressed in
// wavelengths.
const antennaSpacingWavelengths = 0.5

const (
	minBinsForDF          = 3
	minConfidenceThreshold = 20.0
	noiseScale             = 1e-6 // empirical FFT-power scaling, spec.md §9
)

// BinInfo is one frequency bin's contribution to the weighted phase
// estimate, per BinInfo.
type BinInfo struct {
	Index      int
	Magnitude  float64
	PhaseDiff  float64
}

// Result is one direction-finding estimate, per DFResult.
type Result struct {
	Azimuth      float64
	BackAzimuth  float64
	PhaseDiffDeg float64
	PhaseStdDeg  float64
	Confidence   float64
	SNRDb        float64
	Coherence    float64
	IsHolding    bool
	NumBins      int
	NumSignals   int
}

// LastValidDoA retains the previous good estimate plus the Kalman
// filter used to smooth and hold bearings across frames with no
// qualifying detection, per LastValidDoA.
type LastValidDoA struct {
	HasValid     bool
	Azimuth      float64
	BackAzimuth  float64
	PhaseDiffDeg float64
	PhaseStdDeg  float64
	Confidence   float64
	SNRDb        float64
	Coherence    float64
	LastStartBin int
	LastEndBin   int
	Kalman       *KalmanState
}

// NewLastValidDoA returns a fresh hold state with an uninitialized
// Kalman filter.
func NewLastValidDoA() *LastValidDoA {
	return &LastValidDoA{Kalman: NewKalmanState()}
}

func wrapPi(x float64) float64 {
	for x > math.Pi {
		x -= 2 * math.Pi
	}
	for x < -math.Pi {
		x += 2 * math.Pi
	}
	return x
}

// unwrapPhases applies Itoh's method in place: any jump exceeding ±π
// between adjacent bins propagates a ∓2π correction to every
// subsequent bin in the slice, per the raw_phase_diffs unwrap loop.
func unwrapPhases(diffs []float64) {
	for j := 1; j < len(diffs); j++ {
		jump := diffs[j] - diffs[j-1]
		switch {
		case jump > math.Pi:
			for k := j; k < len(diffs); k++ {
				diffs[k] -= 2 * math.Pi
			}
		case jump < -math.Pi:
			for k := j; k < len(diffs); k++ {
				diffs[k] += 2 * math.Pi
			}
		}
	}
}

// Estimate performs one full direction-finding pass: CFAR signal
// detection, per-bin phase extraction and unwrapping, magnitude-weighted
// mean/variance, interferometer inversion, SNR/confidence/coherence
// scoring, and Kalman-smoothed bearing selection, per
// compute_direction_finding.
//
// fftCh1/fftCh2 are the complex FFT outputs for both channels;
// ch1Mag/ch2Mag are their 0-255 magnitude arrays. noiseFloorCh1/Ch2
// are global noise-floor estimates on the 0-255 scale, or negative to
// disable and fall back to local per-bin estimation.
func Estimate(
	fftCh1, fftCh2 []complex128,
	ch1Mag, ch2Mag []uint8,
	binStart, binEnd int,
	centerFreqHz uint64,
	cal *calibration.Store,
	params cfar.Params,
	last *LastValidDoA,
	noiseFloorCh1, noiseFloorCh2 float64,
	now time.Time,
) Result {
	if last.HasValid && (last.LastStartBin != binStart || last.LastEndBin != binEnd) {
		last.HasValid = false
	}

	binCount := 1
	if binEnd >= binStart {
		binCount = binEnd - binStart + 1
	}

	var signals []cfar.SignalRegion
	switch {
	case params.UseOrderStatistic:
		signals = cfar.DetectOrderStatisticWithFloor(ch1Mag, ch2Mag, params, binStart, binEnd, noiseFloorCh1, noiseFloorCh2)
	case noiseFloorCh1 >= 0 && noiseFloorCh2 >= 0:
		signals = cfar.DetectCAWithFloor(ch1Mag, ch2Mag, params, binStart, binEnd, noiseFloorCh1, noiseFloorCh2)
	default:
		signals = cfar.DetectCA(ch1Mag, ch2Mag, params, binStart, binEnd)
	}

	strongBins := make([]BinInfo, 0, len(fftCh1)/4)
	for _, sig := range signals {
		rawDiffs := make([]float64, 0, sig.EndBin-sig.StartBin+1)
		for i := sig.StartBin; i <= sig.EndBin; i++ {
			phase1 := math.Atan2(imag(fftCh1[i]), real(fftCh1[i]))
			phase2 := math.Atan2(imag(fftCh2[i]), real(fftCh2[i]))
			diff := wrapPi(phase2 - phase1)
			rawDiffs = append(rawDiffs, diff)
		}
		unwrapPhases(rawDiffs)
		for j, d := range rawDiffs {
			i := sig.StartBin + j
			avgMag := (float64(ch1Mag[i]) + float64(ch2Mag[i])) / 2.0
			strongBins = append(strongBins, BinInfo{Index: i, Magnitude: avgMag, PhaseDiff: d})
		}
	}

	var magnitudeSum uint32
	var peakMag uint8
	for i := binStart; i <= binEnd; i++ {
		avgMag := uint8((uint32(ch1Mag[i]) + uint32(ch2Mag[i])) / 2)
		magnitudeSum += uint32(avgMag)
		if avgMag > peakMag {
			peakMag = avgMag
		}
	}
	meanMag := uint8(magnitudeSum / uint32(binCount))

	avgPhaseDiffRad := 0.0
	avgPhaseDiffDeg := 0.0
	stdDevRad := math.Pi
	stdDevDeg := 180.0

	if len(strongBins) >= minBinsForDF {
		var weightedSum, weightTotal float64
		for _, b := range strongBins {
			weightedSum += b.PhaseDiff * b.Magnitude
			weightTotal += b.Magnitude
		}
		avgPhaseDiffRad = weightedSum / weightTotal
		avgPhaseDiffDeg = avgPhaseDiffRad * 180.0 / math.Pi

		if cal != nil {
			avgPhaseDiffDeg += cal.Correction(centerFreqHz)
		}
		avgPhaseDiffRad = avgPhaseDiffDeg * math.Pi / 180.0

		var m, s, w float64
		for _, b := range strongBins {
			diff := wrapPi(b.PhaseDiff - avgPhaseDiffRad)
			weight := b.Magnitude
			w += weight
			delta := diff - m
			m += delta * weight / w
			s += weight * delta * (diff - m)
		}
		stdDevRad = math.Sqrt(s / w)
		stdDevDeg = stdDevRad * 180.0 / math.Pi
	}

	sinTheta := avgPhaseDiffRad / (2 * math.Pi * antennaSpacingWavelengths)
	sinTheta = math.Max(-1, math.Min(1, sinTheta))
	cosThetaSq := 1 - sinTheta*sinTheta
	cosTheta := math.Sqrt(math.Max(0, cosThetaSq))

	azimuthRadPos := math.Atan2(sinTheta, cosTheta)
	azimuthRadNeg := math.Atan2(sinTheta, -cosTheta)
	azimuthDegPos := azimuthRadPos * 180.0 / math.Pi
	azimuthDegNeg := azimuthRadNeg * 180.0 / math.Pi

	azimuthNorm := normalizeAzimuth(azimuthDegPos)
	backAzimuthNorm := normalizeAzimuth(azimuthDegNeg)

	var signalPower, noisePower float64
	if len(strongBins) >= minBinsForDF {
		for _, b := range strongBins {
			re, im := real(fftCh1[b.Index]), imag(fftCh1[b.Index])
			signalPower += re*re + im*im
		}
		signalPower /= float64(len(strongBins))

		if noiseFloorCh1 >= 0 && noiseFloorCh2 >= 0 {
			avgNoiseMag := (noiseFloorCh1 + noiseFloorCh2) / 2.0
			noisePower = noiseScale * avgNoiseMag * avgNoiseMag
		} else {
			var noiseBinCount int
			for i := binStart; i <= binEnd; i++ {
				avgMag := uint8((uint32(ch1Mag[i]) + uint32(ch2Mag[i])) / 2)
				if avgMag <= meanMag {
					re, im := real(fftCh1[i]), imag(fftCh1[i])
					noisePower += re*re + im*im
					noiseBinCount++
				}
			}
			if noiseBinCount > 0 {
				noisePower /= float64(noiseBinCount)
			}
		}
	}

	snrDb := 0.0
	if noisePower > 0 && signalPower > 0 {
		snrDb = 10.0 * math.Log10(signalPower/noisePower)
	}

	phaseConfidence := 100.0 * math.Exp(-stdDevDeg/25.0)
	snrBoost := 1.0
	if snrDb > 20.0 {
		snrBoost = math.Min(1.0+(snrDb-20.0)/40.0, 1.3)
	}
	confidence := math.Max(0, math.Min(100, phaseConfidence*snrBoost*0.9))
	coherence := math.Exp(-stdDevDeg / 10.0)

	useCurrent := confidence >= minConfidenceThreshold && len(strongBins) >= minBinsForDF

	final := Result{
		Azimuth:      azimuthNorm,
		BackAzimuth:  backAzimuthNorm,
		PhaseDiffDeg: avgPhaseDiffDeg,
		PhaseStdDeg:  stdDevDeg,
		Confidence:   confidence,
		SNRDb:        snrDb,
		Coherence:    coherence,
		NumBins:      len(strongBins),
		NumSignals:   len(signals),
	}

	switch {
	case useCurrent:
		measurementVariance := math.Max(1.0, stdDevDeg*stdDevDeg)
		if !last.Kalman.Initialized {
			last.Kalman.Initialize(azimuthNorm, measurementVariance, now)
			final.Azimuth = azimuthNorm
		} else {
			dt := ClampDt(now.Sub(last.Kalman.LastUpdate).Seconds())
			last.Kalman.Predict(dt)
			last.Kalman.Update(azimuthNorm, measurementVariance)
			final.Azimuth = last.Kalman.Azimuth
			final.BackAzimuth = normalizeAzimuth(final.Azimuth + 180.0)
		}
		last.Kalman.LastUpdate = now

		last.HasValid = true
		last.Azimuth = final.Azimuth
		last.BackAzimuth = final.BackAzimuth
		last.PhaseDiffDeg = avgPhaseDiffDeg
		last.PhaseStdDeg = stdDevDeg
		last.Confidence = confidence
		last.SNRDb = snrDb
		last.Coherence = coherence
		last.LastStartBin = binStart
		last.LastEndBin = binEnd

	case last.HasValid && last.Kalman.Initialized:
		dt := ClampDt(now.Sub(last.Kalman.LastUpdate).Seconds())
		last.Kalman.Predict(dt)
		last.Kalman.LastUpdate = now

		final.Azimuth = last.Kalman.Azimuth
		final.BackAzimuth = normalizeAzimuth(final.Azimuth + 180.0)
		final.PhaseDiffDeg = last.PhaseDiffDeg
		final.PhaseStdDeg = last.PhaseStdDeg
		final.Confidence = last.Confidence * 0.8
		final.SNRDb = last.SNRDb
		final.Coherence = last.Coherence
		final.IsHolding = true

	case last.HasValid:
		final.Azimuth = last.Azimuth
		final.BackAzimuth = last.BackAzimuth
		final.PhaseDiffDeg = last.PhaseDiffDeg
		final.PhaseStdDeg = last.PhaseStdDeg
		final.Confidence = last.Confidence * 0.8
		final.SNRDb = last.SNRDb
		final.Coherence = last.Coherence
		final.IsHolding = true
	}

	return final
}
