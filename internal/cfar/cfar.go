// Package cfar implements Constant False Alarm Rate signal detection
// (C5, C6): CA-CFAR (cell-averaging), and OS/GO/SO-CFAR (order-statistic
// variants), ported from cfar_detector.cpp and os_cfar_detector.cpp.
package cfar

import "sort"

// dB mapping constants, shared with the dsp package's magnitude scale
// (0-255 over a 120 dB window centered near -100 dBFS).
const (
	dbFullScale = 120.0
	dbMin       = -100.0
	byteMax     = 255.0

	dcMargin = 10
)

// Variant selects the order-statistic policy for OS/GO/SO-CFAR. CA-CFAR
// does not use a Variant; it always averages.
type Variant int

const (
	// VariantOS takes the k-th order statistic of the pooled
	// leading+trailing training cells.
	VariantOS Variant = iota
	// VariantGO (greatest-of) takes the max of the leading and
	// trailing k-th order statistics.
	VariantGO
	// VariantSO (smallest-of) takes the min of the leading and
	// trailing k-th order statistics.
	VariantSO
)

// Params configures CA-CFAR and OS/GO/SO-CFAR detection. Variant is
// ignored by CA-CFAR functions.
type Params struct {
	TrainingCells     int
	GuardCells        int
	ThresholdDB       float64
	MinSignalBins     int
	KPercentile       float64 // order-statistic variants only, 0-1
	Variant           Variant
	UseOrderStatistic bool // selects DetectOrderStatistic over DetectCA
}

// DefaultCFAR mirrors DEFAULT_CFAR: balanced CA-CFAR configuration.
var DefaultCFAR = Params{
	TrainingCells: 32,
	GuardCells:    8,
	ThresholdDB:   3.0,
	MinSignalBins: 5,
}

// DefaultOSCFAR mirrors DEFAULT_OS_CFAR: 75th percentile, robust to
// up to 25% interfering targets within the training window.
var DefaultOSCFAR = Params{
	TrainingCells: 32,
	GuardCells:    8,
	ThresholdDB:   3.0,
	MinSignalBins: 5,
	KPercentile:   0.75,
	Variant:       VariantOS,
}

// AggressiveOSCFAR mirrors AGGRESSIVE_OS_CFAR: wider training window,
// higher threshold, 90th percentile, GO-CFAR selection.
var AggressiveOSCFAR = Params{
	TrainingCells: 48,
	GuardCells:    12,
	ThresholdDB:   4.0,
	MinSignalBins: 7,
	KPercentile:   0.90,
	Variant:       VariantGO,
}

// SignalRegion describes one contiguous run of bins that exceeded
// their CFAR threshold, matching SignalRegion from both detectors.
// SNRDb is filled in only by DetectOrderStatisticWithFloor; the other
// detectors leave it zero.
type SignalRegion struct {
	StartBin        int
	EndBin          int
	IntegratedPower float64
	AvgMagnitude    float64
	BinCount        int
	SNRDb           float64
	PeakMagnitude   float64
}

// dcExclusionZone returns the [start, end] inclusive DC-guard band
// centered on fftSize/2, matching every detector's dc_margin=10 zone.
func dcExclusionZone(fftSize int) (start, end int) {
	center := fftSize / 2
	start = center - dcMargin
	if start < 0 {
		start = 0
	}
	end = center + dcMargin
	if end > fftSize-1 {
		end = fftSize - 1
	}
	return start, end
}

func inDCZone(i, dcStart, dcEnd int) bool {
	return i >= dcStart && i <= dcEnd
}

func magToDB(level float64) float64 {
	return (level/byteMax)*dbFullScale + dbMin
}

func dbToMag(db float64) float64 {
	return (db - dbMin) * (byteMax / dbFullScale)
}

func clampMag(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// trainingWindowBounds computes the [leftStart,leftEnd) and
// [rightStart,rightEnd) index ranges around binIdx, matching the
// identical arithmetic shared by every *_cfar_threshold function.
func trainingWindowBounds(binIdx, fftSize, trainingCells, guardCells int) (leftStart, leftEnd, rightStart, rightEnd int) {
	if binIdx > trainingCells+guardCells {
		leftStart = binIdx - trainingCells - guardCells
	} else {
		leftStart = 0
	}
	if binIdx > guardCells {
		leftEnd = binIdx - guardCells
	} else {
		leftEnd = 0
	}

	rightStart = binIdx + guardCells + 1
	if rightStart > fftSize {
		rightStart = fftSize
	}
	rightEnd = binIdx + guardCells + trainingCells + 1
	if rightEnd > fftSize {
		rightEnd = fftSize
	}
	return
}

// ComputeCAThreshold returns the cell-averaging CFAR threshold (0-255
// scale) for one bin, per compute_cfar_threshold.
func ComputeCAThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) float64 {
	fftSize := len(magnitude)
	leftStart, leftEnd, rightStart, rightEnd := trainingWindowBounds(binIdx, fftSize, params.TrainingCells, params.GuardCells)

	var sum float64
	var count int
	for i := leftStart; i < leftEnd && i < fftSize; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		sum += float64(magnitude[i])
		count++
	}
	for i := rightStart; i < rightEnd && i < fftSize; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		sum += float64(magnitude[i])
		count++
	}

	if count == 0 {
		return 255.0
	}
	noiseLevel := sum / float64(count)
	thresholdDB := magToDB(noiseLevel) + params.ThresholdDB
	return dbToMag(thresholdDB)
}

// ComputeCAThresholdWithFloor blends a global noise-floor estimate
// (0-255 scale, negative to disable) with the local CA-CFAR estimate
// at 70% global / 30% local, per compute_cfar_threshold_with_floor.
func ComputeCAThresholdWithFloor(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int, noiseFloor float64) float64 {
	if noiseFloor < 0 {
		return ComputeCAThreshold(magnitude, binIdx, params, dcStart, dcEnd)
	}
	localThreshold := ComputeCAThreshold(magnitude, binIdx, params, dcStart, dcEnd)
	globalThresholdDB := magToDB(noiseFloor) + params.ThresholdDB
	globalThreshold := dbToMag(globalThresholdDB)
	return 0.7*globalThreshold + 0.3*localThreshold
}

// collectTrainingSamples gathers magnitude[i] for every non-DC-zone
// index in the leading and trailing training windows, returned as two
// separate slices (leading, trailing) so OS/GO/SO can pool or split
// them as needed.
func collectTrainingSamples(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) (leading, trailing []uint8) {
	fftSize := len(magnitude)
	leftStart, leftEnd, rightStart, rightEnd := trainingWindowBounds(binIdx, fftSize, params.TrainingCells, params.GuardCells)

	leading = make([]uint8, 0, params.TrainingCells)
	for i := leftStart; i < leftEnd && i < fftSize; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		leading = append(leading, magnitude[i])
	}

	trailing = make([]uint8, 0, params.TrainingCells)
	for i := rightStart; i < rightEnd && i < fftSize; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		trailing = append(trailing, magnitude[i])
	}
	return leading, trailing
}

// kthOrderStatistic returns the k-th smallest element of arr (0-based),
// matching quickselect_kth's clamping of k to len(arr)-1. Go's sort
// package exposes no partial-selection primitive (no nth_element
// equivalent), so this sorts a copy of the full slice.
func kthOrderStatistic(arr []uint8, k int) float64 {
	if len(arr) == 0 {
		return 0
	}
	if k >= len(arr) {
		k = len(arr) - 1
	}
	sorted := append([]uint8(nil), arr...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return float64(sorted[k])
}

// ComputeOSThreshold returns the order-statistic CFAR threshold,
// pooling leading and trailing training cells before selecting the
// k-th order statistic, per compute_os_cfar_threshold.
func ComputeOSThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) float64 {
	leading, trailing := collectTrainingSamples(magnitude, binIdx, params, dcStart, dcEnd)
	pooled := append(leading, trailing...)
	if len(pooled) == 0 {
		return 255.0
	}
	k := int(params.KPercentile * float64(len(pooled)))
	noiseLevel := kthOrderStatistic(pooled, k)
	thresholdDB := magToDB(noiseLevel) + params.ThresholdDB
	return clampMag(dbToMag(thresholdDB))
}

// computeGOSOThreshold implements the shared leading/trailing k-th
// order-statistic logic for GO-CFAR and SO-CFAR, differing only in
// whether the leading/trailing estimates are combined by max (GO) or
// min (SO), and in their respective empty-window sentinel (0 vs 255,
// matching compute_go_cfar_threshold / compute_so_cfar_threshold).
func computeGOSOThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int, takeMax bool) float64 {
	leading, trailing := collectTrainingSamples(magnitude, binIdx, params, dcStart, dcEnd)
	if len(leading) == 0 && len(trailing) == 0 {
		return 255.0
	}

	var sentinel float64
	if takeMax {
		sentinel = 0.0
	} else {
		sentinel = 255.0
	}

	leadingNoise, trailingNoise := sentinel, sentinel
	if len(leading) > 0 {
		kLead := int(params.KPercentile * float64(len(leading)))
		if kLead > len(leading)-1 {
			kLead = len(leading) - 1
		}
		leadingNoise = kthOrderStatistic(leading, kLead)
	}
	if len(trailing) > 0 {
		kTrail := int(params.KPercentile * float64(len(trailing)))
		if kTrail > len(trailing)-1 {
			kTrail = len(trailing) - 1
		}
		trailingNoise = kthOrderStatistic(trailing, kTrail)
	}

	var noiseLevel float64
	if takeMax {
		noiseLevel = maxF(leadingNoise, trailingNoise)
	} else {
		noiseLevel = minF(leadingNoise, trailingNoise)
	}

	thresholdDB := magToDB(noiseLevel) + params.ThresholdDB
	return clampMag(dbToMag(thresholdDB))
}

// ComputeGOThreshold returns the greatest-of CFAR threshold, per
// compute_go_cfar_threshold.
func ComputeGOThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) float64 {
	return computeGOSOThreshold(magnitude, binIdx, params, dcStart, dcEnd, true)
}

// ComputeSOThreshold returns the smallest-of CFAR threshold, per
// compute_so_cfar_threshold.
func ComputeSOThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) float64 {
	return computeGOSOThreshold(magnitude, binIdx, params, dcStart, dcEnd, false)
}

// computeVariantThreshold dispatches to the configured Variant,
// matching detect_signals_os_cfar's threshold_func selection.
func computeVariantThreshold(magnitude []uint8, binIdx int, params Params, dcStart, dcEnd int) float64 {
	switch params.Variant {
	case VariantGO:
		return ComputeGOThreshold(magnitude, binIdx, params, dcStart, dcEnd)
	case VariantSO:
		return ComputeSOThreshold(magnitude, binIdx, params, dcStart, dcEnd)
	default:
		return ComputeOSThreshold(magnitude, binIdx, params, dcStart, dcEnd)
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// groupSignalRegions walks detected bins over [binStart, binEnd],
// accumulating contiguous runs into SignalRegion entries and dropping
// runs shorter than params.MinSignalBins, per every detector's shared
// grouping pass.
func groupSignalRegions(ch1Mag, ch2Mag []uint8, params Params, binStart, binEnd int, detected []bool) []SignalRegion {
	var signals []SignalRegion
	inSignal := false
	var current SignalRegion

	flush := func() {
		current.AvgMagnitude = current.IntegratedPower / float64(current.BinCount)
		if current.BinCount >= params.MinSignalBins {
			signals = append(signals, current)
		}
	}

	for i := binStart; i <= binEnd; i++ {
		if detected[i] {
			if !inSignal {
				current = SignalRegion{StartBin: i}
				inSignal = true
			}
			avgMag := (float64(ch1Mag[i]) + float64(ch2Mag[i])) / 2.0
			current.IntegratedPower += avgMag
			current.BinCount++
			current.EndBin = i
			if avgMag > current.PeakMagnitude {
				current.PeakMagnitude = avgMag
			}
		} else if inSignal {
			flush()
			inSignal = false
		}
	}
	if inSignal {
		flush()
	}
	return signals
}

// DetectCA runs CA-CFAR over [binStart, binEnd] and groups detections
// into signal regions, per detect_signals_cfar.
func DetectCA(ch1Mag, ch2Mag []uint8, params Params, binStart, binEnd int) []SignalRegion {
	fftSize := len(ch1Mag)
	dcStart, dcEnd := dcExclusionZone(fftSize)
	detected := make([]bool, fftSize)

	for i := binStart; i <= binEnd; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		avgMag := (float64(ch1Mag[i]) + float64(ch2Mag[i])) / 2.0
		threshold := ComputeCAThreshold(ch1Mag, i, params, dcStart, dcEnd)
		if avgMag > threshold {
			detected[i] = true
		}
	}
	return groupSignalRegions(ch1Mag, ch2Mag, params, binStart, binEnd, detected)
}

// DetectCAWithFloor runs CA-CFAR with a blended global noise floor,
// per detect_signals_cfar_with_floor.
func DetectCAWithFloor(ch1Mag, ch2Mag []uint8, params Params, binStart, binEnd int, noiseFloorCh1, noiseFloorCh2 float64) []SignalRegion {
	fftSize := len(ch1Mag)
	dcStart, dcEnd := dcExclusionZone(fftSize)
	detected := make([]bool, fftSize)
	avgNoiseFloor := (noiseFloorCh1 + noiseFloorCh2) / 2.0

	for i := binStart; i <= binEnd; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		avgMag := (float64(ch1Mag[i]) + float64(ch2Mag[i])) / 2.0
		threshold := ComputeCAThresholdWithFloor(ch1Mag, i, params, dcStart, dcEnd, avgNoiseFloor)
		if avgMag > threshold {
			detected[i] = true
		}
	}
	return groupSignalRegions(ch1Mag, ch2Mag, params, binStart, binEnd, detected)
}

// DetectOrderStatistic runs the configured OS/GO/SO-CFAR variant over
// [binStart, binEnd], per detect_signals_os_cfar.
func DetectOrderStatistic(ch1Mag, ch2Mag []uint8, params Params, binStart, binEnd int) []SignalRegion {
	fftSize := len(ch1Mag)
	dcStart, dcEnd := dcExclusionZone(fftSize)
	detected := make([]bool, fftSize)

	for i := binStart; i <= binEnd; i++ {
		if inDCZone(i, dcStart, dcEnd) {
			continue
		}
		avgMag := (float64(ch1Mag[i]) + float64(ch2Mag[i])) / 2.0
		threshold := computeVariantThreshold(ch1Mag, i, params, dcStart, dcEnd)
		if avgMag > threshold {
			detected[i] = true
		}
	}
	return groupSignalRegions(ch1Mag, ch2Mag, params, binStart, binEnd, detected)
}

// DetectOrderStatisticWithFloor runs DetectOrderStatistic and then
// back-fills each region's SNRDb from a global noise-floor estimate,
// per detect_signals_os_cfar_with_floor. Negative noise floors disable
// the SNR back-fill and fall back to plain DetectOrderStatistic.
func DetectOrderStatisticWithFloor(ch1Mag, ch2Mag []uint8, params Params, binStart, binEnd int, noiseFloorCh1, noiseFloorCh2 float64) []SignalRegion {
	if noiseFloorCh1 < 0 || noiseFloorCh2 < 0 {
		return DetectOrderStatistic(ch1Mag, ch2Mag, params, binStart, binEnd)
	}
	signals := DetectOrderStatistic(ch1Mag, ch2Mag, params, binStart, binEnd)
	avgNoiseFloor := (noiseFloorCh1 + noiseFloorCh2) / 2.0
	for i := range signals {
		signals[i].SNRDb = EstimateSNR(signals[i], avgNoiseFloor)
	}
	return signals
}

// EstimateSNR returns the peak-magnitude-relative SNR of a detected
// region against a noise-floor estimate (both on the 0-255 scale), per
// estimate_signal_snr.
func EstimateSNR(signal SignalRegion, noiseFloor float64) float64 {
	return magToDB(signal.PeakMagnitude) - magToDB(noiseFloor)
}
