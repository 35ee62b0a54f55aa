package cfar

import "testing"

func flatMagnitude(n int, level uint8) []uint8 {
	m := make([]uint8, n)
	for i := range m {
		m[i] = level
	}
	return m
}

func TestComputeCAThresholdOnFlatNoise(t *testing.T) {
	mag := flatMagnitude(256, 50)
	dcStart, dcEnd := dcExclusionZone(256)
	threshold := ComputeCAThreshold(mag, 200, DefaultCFAR, dcStart, dcEnd)
	// threshold should equal noise level converted through dB and back,
	// plus ThresholdDB; for flat noise, well above the raw level.
	if threshold <= float64(50) {
		t.Errorf("expected threshold above flat noise level 50, got %v", threshold)
	}
}

func TestComputeCAThresholdNoTrainingCellsReturnsMax(t *testing.T) {
	mag := flatMagnitude(4, 50)
	threshold := ComputeCAThreshold(mag, 1, DefaultCFAR, 0, 3)
	if threshold != 255.0 {
		t.Errorf("expected 255 sentinel when all training cells fall in DC zone, got %v", threshold)
	}
}

func TestDetectCAFindsInjectedSpike(t *testing.T) {
	n := 512
	ch1 := flatMagnitude(n, 40)
	ch2 := flatMagnitude(n, 40)
	spikeStart := 50
	for i := spikeStart; i < spikeStart+8; i++ {
		ch1[i] = 250
		ch2[i] = 250
	}
	signals := DetectCA(ch1, ch2, DefaultCFAR, 0, n-1)
	if len(signals) == 0 {
		t.Fatal("expected at least one detected signal region")
	}
	found := false
	for _, s := range signals {
		if s.StartBin <= spikeStart && s.EndBin >= spikeStart+7 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a region covering bins [%d,%d), got %+v", spikeStart, spikeStart+8, signals)
	}
}

func TestDetectCAIgnoresShortSpike(t *testing.T) {
	n := 512
	ch1 := flatMagnitude(n, 40)
	ch2 := flatMagnitude(n, 40)
	// shorter than MinSignalBins=5
	ch1[100] = 250
	ch2[100] = 250
	ch1[101] = 250
	ch2[101] = 250
	signals := DetectCA(ch1, ch2, DefaultCFAR, 0, n-1)
	for _, s := range signals {
		if s.StartBin <= 100 && s.EndBin >= 101 {
			t.Errorf("expected short 2-bin spike to be rejected by min_signal_bins, got region %+v", s)
		}
	}
}

func TestDetectCASkipsDCZone(t *testing.T) {
	n := 256
	ch1 := flatMagnitude(n, 40)
	ch2 := flatMagnitude(n, 40)
	dc := n / 2
	for i := dc - 5; i <= dc+5; i++ {
		ch1[i] = 255
		ch2[i] = 255
	}
	signals := DetectCA(ch1, ch2, DefaultCFAR, 0, n-1)
	for _, s := range signals {
		if s.StartBin <= dc && s.EndBin >= dc {
			t.Errorf("expected DC zone spike to be excluded from detection, got region %+v", s)
		}
	}
}

func TestComputeCAThresholdWithFloorBlendsGlobalAndLocal(t *testing.T) {
	mag := flatMagnitude(256, 50)
	dcStart, dcEnd := dcExclusionZone(256)
	withoutFloor := ComputeCAThreshold(mag, 200, DefaultCFAR, dcStart, dcEnd)
	withFloor := ComputeCAThresholdWithFloor(mag, 200, DefaultCFAR, dcStart, dcEnd, 50)
	// identical flat noise floor should produce near-identical thresholds
	if diff := withFloor - withoutFloor; diff > 1.0 || diff < -1.0 {
		t.Errorf("expected similar thresholds for matching floor, got local=%v blended=%v", withoutFloor, withFloor)
	}
}

func TestComputeCAThresholdWithFloorDisabledFallsBack(t *testing.T) {
	mag := flatMagnitude(256, 50)
	dcStart, dcEnd := dcExclusionZone(256)
	plain := ComputeCAThreshold(mag, 200, DefaultCFAR, dcStart, dcEnd)
	disabled := ComputeCAThresholdWithFloor(mag, 200, DefaultCFAR, dcStart, dcEnd, -1)
	if plain != disabled {
		t.Errorf("expected negative noise floor to fall back to plain CA-CFAR: got %v vs %v", plain, disabled)
	}
}

func TestDetectOrderStatisticOSFindsSpike(t *testing.T) {
	n := 512
	ch1 := flatMagnitude(n, 40)
	ch2 := flatMagnitude(n, 40)
	for i := 200; i < 210; i++ {
		ch1[i] = 250
		ch2[i] = 250
	}
	signals := DetectOrderStatistic(ch1, ch2, DefaultOSCFAR, 0, n-1)
	found := false
	for _, s := range signals {
		if s.StartBin <= 200 && s.EndBin >= 209 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected OS-CFAR to find injected spike, got %+v", signals)
	}
}

func TestComputeGOAndSOThresholdsPickMaxAndMin(t *testing.T) {
	// Build a magnitude array where the entire leading training window
	// (left of binIdx) is uniformly 150 and the entire trailing
	// training window (right of binIdx) is uniformly 60, far from any
	// DC exclusion zone. GO-CFAR must then resolve to the leading
	// window's level (the max), SO-CFAR to the trailing window's
	// level (the min).
	n := 512
	binIdx := 300
	mag := flatMagnitude(n, 60)
	params := DefaultOSCFAR
	leftStart, leftEnd, _, _ := trainingWindowBounds(binIdx, n, params.TrainingCells, params.GuardCells)
	for i := leftStart; i < leftEnd; i++ {
		mag[i] = 150
	}

	dcStart, dcEnd := dcExclusionZone(n)
	goThreshold := ComputeGOThreshold(mag, binIdx, params, dcStart, dcEnd)
	soThreshold := ComputeSOThreshold(mag, binIdx, params, dcStart, dcEnd)

	if goThreshold <= soThreshold {
		t.Errorf("expected GO-CFAR (leading=150) threshold above SO-CFAR (trailing=60) threshold, got go=%v so=%v", goThreshold, soThreshold)
	}
}

func TestEstimateSNR(t *testing.T) {
	signal := SignalRegion{PeakMagnitude: 200}
	snr := EstimateSNR(signal, 50)
	wantSignalDB := magToDB(200)
	wantNoiseDB := magToDB(50)
	if diff := snr - (wantSignalDB - wantNoiseDB); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("got %v, want %v", snr, wantSignalDB-wantNoiseDB)
	}
}

func TestDetectOrderStatisticWithFloorBackfillsSNR(t *testing.T) {
	n := 512
	ch1 := flatMagnitude(n, 40)
	ch2 := flatMagnitude(n, 40)
	for i := 200; i < 210; i++ {
		ch1[i] = 250
		ch2[i] = 250
	}
	signals := DetectOrderStatisticWithFloor(ch1, ch2, DefaultOSCFAR, 0, n-1, 40, 40)
	if len(signals) == 0 {
		t.Fatal("expected a detected region")
	}
	for _, s := range signals {
		if s.SNRDb == 0 {
			t.Errorf("expected nonzero SNR backfill for region %+v", s)
		}
	}
}

func TestKthOrderStatisticClampsIndex(t *testing.T) {
	arr := []uint8{5, 1, 3}
	if got := kthOrderStatistic(arr, 10); got != 5 {
		t.Errorf("expected clamp to max element 5, got %v", got)
	}
	if got := kthOrderStatistic(arr, 0); got != 1 {
		t.Errorf("expected min element 1, got %v", got)
	}
	if got := kthOrderStatistic(nil, 0); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}
