package pipeline

import (
	"math"
	"testing"

	"github.com/cwsl/dfsensor/internal/cfar"
	"github.com/cwsl/dfsensor/internal/config"
	"github.com/cwsl/dfsensor/internal/control"
	"github.com/cwsl/dfsensor/internal/dsp"
)

func TestWindowTypeFromNameMapsKnownNames(t *testing.T) {
	cases := map[string]dsp.WindowType{
		"hamming":         dsp.WindowHamming,
		"hanning":         dsp.WindowHanning,
		"blackman":        dsp.WindowBlackman,
		"blackman-harris": dsp.WindowBlackmanHarris,
		"kaiser":          dsp.WindowKaiser,
		"tukey":           dsp.WindowTukey,
		"gaussian":        dsp.WindowGaussian,
		"unknown":         dsp.WindowRectangular,
		"":                dsp.WindowRectangular,
	}
	for name, want := range cases {
		if got := windowTypeFromName(name); got != want {
			t.Errorf("windowTypeFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCFARModeFromNameMapsKnownNames(t *testing.T) {
	cases := map[string]cfar.Variant{
		"os": cfar.VariantOS,
		"go": cfar.VariantGO,
		"so": cfar.VariantSO,
	}
	for name, want := range cases {
		if got := cfarModeFromName(name); got != want {
			t.Errorf("cfarModeFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCFARParamsFromConfigCarriesFields(t *testing.T) {
	cfg := config.CFARConfig{
		Mode:          "os",
		TrainingCells: 40,
		GuardCells:    10,
		ThresholdDB:   4.5,
		MinSignalBins: 6,
		KPercentile:   0.8,
	}
	params := cfarParamsFromConfig(cfg)
	if params.TrainingCells != 40 || params.GuardCells != 10 || params.ThresholdDB != 4.5 ||
		params.MinSignalBins != 6 || params.KPercentile != 0.8 || params.Variant != cfar.VariantOS {
		t.Errorf("unexpected params: %+v", params)
	}
}

func TestControlCFARModeFromNameMapsKnownNames(t *testing.T) {
	cases := map[string]control.CFARMode{
		"ca":      control.CFARModeCA,
		"os":      control.CFARModeOS,
		"go":      control.CFARModeGO,
		"so":      control.CFARModeSO,
		"unknown": control.CFARModeCA,
		"":        control.CFARModeCA,
	}
	for name, want := range cases {
		if got := controlCFARModeFromName(name); got != want {
			t.Errorf("controlCFARModeFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCFARParamsForModeSwitchesVariantAndOrderStatisticFlag(t *testing.T) {
	base := cfar.Params{TrainingCells: 32, GuardCells: 8, ThresholdDB: 3.0}

	ca := cfarParamsForMode(base, control.CFARModeCA)
	if ca.UseOrderStatistic {
		t.Error("expected CA mode to disable UseOrderStatistic")
	}

	os := cfarParamsForMode(base, control.CFARModeOS)
	if !os.UseOrderStatistic || os.Variant != cfar.VariantOS {
		t.Errorf("expected OS mode to enable order-statistic detection with VariantOS, got %+v", os)
	}
	if os.TrainingCells != base.TrainingCells || os.ThresholdDB != base.ThresholdDB {
		t.Error("expected cfarParamsForMode to preserve cell geometry and threshold")
	}

	go_ := cfarParamsForMode(base, control.CFARModeGO)
	if !go_.UseOrderStatistic || go_.Variant != cfar.VariantGO {
		t.Errorf("expected GO mode to select VariantGO, got %+v", go_)
	}

	so := cfarParamsForMode(base, control.CFARModeSO)
	if !so.UseOrderStatistic || so.Variant != cfar.VariantSO {
		t.Errorf("expected SO mode to select VariantSO, got %+v", so)
	}
}

func TestComputeCrossCorrelationZeroPhaseForIdenticalSpectra(t *testing.T) {
	ch1 := []complex128{complex(1, 0), complex(0, 1), complex(2, 2)}
	ch2 := append([]complex128(nil), ch1...)

	mag, phase := computeCrossCorrelation(ch1, ch2)
	for i := range mag {
		want := real(ch1[i])*real(ch1[i]) + imag(ch1[i])*imag(ch1[i])
		if math.Abs(mag[i]-want) > 1e-9 {
			t.Errorf("bin %d: magnitude = %v, want %v", i, mag[i], want)
		}
		if math.Abs(phase[i]) > 1e-9 {
			t.Errorf("bin %d: expected zero phase for identical spectra, got %v", i, phase[i])
		}
	}
}

func TestComputeCrossCorrelationDetectsPhaseOffset(t *testing.T) {
	// ch2 = ch1 rotated by +90 degrees (multiplied by i); conjugate
	// product ch1 * conj(ch2) should show a consistent -90 degree
	// phase across bins.
	ch1 := []complex128{complex(1, 0), complex(0, 1)}
	ch2 := []complex128{complex(0, 1), complex(-1, 0)}

	_, phase := computeCrossCorrelation(ch1, ch2)
	for i, p := range phase {
		if math.Abs(p-(-math.Pi/2)) > 1e-9 {
			t.Errorf("bin %d: phase = %v, want -pi/2", i, p)
		}
	}
}
