package control

import "testing"

func TestValidateFrequencyRange(t *testing.T) {
	cases := []struct {
		freq uint64
		want bool
	}{
		{46_999_999, false},
		{47_000_000, true},
		{915_000_000, true},
		{6_000_000_000, true},
		{6_000_000_001, false},
	}
	for _, c := range cases {
		if got := ValidateFrequency(c.freq); got != c.want {
			t.Errorf("ValidateFrequency(%d): got %v, want %v", c.freq, got, c.want)
		}
	}
}

func TestValidateSampleRateAndBandwidth(t *testing.T) {
	cases := []struct {
		rate uint32
		want bool
	}{
		{519_999, false},
		{520_000, true},
		{61_440_000, true},
		{61_440_001, false},
	}
	for _, c := range cases {
		if got := ValidateSampleRate(c.rate); got != c.want {
			t.Errorf("ValidateSampleRate(%d): got %v, want %v", c.rate, got, c.want)
		}
		if got := ValidateBandwidth(c.rate); got != c.want {
			t.Errorf("ValidateBandwidth(%d): got %v, want %v", c.rate, got, c.want)
		}
	}
}

func TestValidateGainRange(t *testing.T) {
	if !ValidateGain(0) || !ValidateGain(60) {
		t.Error("expected 0 and 60 to be valid gains")
	}
	if ValidateGain(61) {
		t.Error("expected 61 to be invalid")
	}
}

func TestSetFrequencyRejectsOutOfRange(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if err := s.SetFrequency(1); err == nil {
		t.Fatal("expected error for out-of-range frequency")
	}
	if s.CenterFrequencyHz() != 915_000_000 {
		t.Errorf("expected frequency unchanged after rejected set, got %d", s.CenterFrequencyHz())
	}
}

func TestSetFrequencyMarksParamsChanged(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if s.ParamsChanged() {
		t.Fatal("expected ParamsChanged false before any mutation")
	}
	if err := s.SetFrequency(100_000_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.ParamsChanged() {
		t.Fatal("expected ParamsChanged true after SetFrequency")
	}
	if s.ParamsChanged() {
		t.Fatal("expected ParamsChanged to clear after being read once")
	}
	if s.CenterFrequencyHz() != 100_000_000 {
		t.Errorf("got %d, want 100000000", s.CenterFrequencyHz())
	}
}

func TestSetGainsValidatesBoth(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if err := s.SetGains(70, 20); err == nil {
		t.Fatal("expected error for out-of-range rx1 gain")
	}
	if s.GainRX1() != 20 {
		t.Errorf("expected gain unchanged on rejected set, got %d", s.GainRX1())
	}
	if err := s.SetGains(30, 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GainRX1() != 30 || s.GainRX2() != 40 {
		t.Errorf("got (%d,%d), want (30,40)", s.GainRX1(), s.GainRX2())
	}
}

func TestSetSampleRateAndBandwidth(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if err := s.SetSampleRateAndBandwidth(100, 100); err == nil {
		t.Fatal("expected error for out-of-range sample rate/bandwidth")
	}
	if err := s.SetSampleRateAndBandwidth(10_000_000, 8_000_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SampleRate() != 10_000_000 || s.Bandwidth() != 8_000_000 {
		t.Errorf("got (%d,%d), want (10000000,8000000)", s.SampleRate(), s.Bandwidth())
	}
}

func TestDFBinRangeRoundTrip(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	s.SetDFBinRange(100, 2000)
	start, end := s.DFBinRange()
	if start != 100 || end != 2000 {
		t.Errorf("got (%d,%d), want (100,2000)", start, end)
	}
}

func TestCFARModeRoundTrip(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if s.CFARMode() != CFARModeCA {
		t.Fatalf("expected default CFARModeCA, got %v", s.CFARMode())
	}
	s.SetCFARMode(CFARModeOS)
	if s.CFARMode() != CFARModeOS {
		t.Errorf("got %v, want CFARModeOS", s.CFARMode())
	}
}

func TestAGCEnabledRoundTrip(t *testing.T) {
	s := NewSurface(915_000_000, 2_000_000, 2_000_000, 20, 20)
	if s.AGCEnabled() {
		t.Fatal("expected AGC disabled by default")
	}
	s.SetAGCEnabled(true)
	if !s.AGCEnabled() {
		t.Error("expected AGC enabled after SetAGCEnabled(true)")
	}
}
