package noisefloor

import "testing"

func TestUpdateInitializesOnFirstCall(t *testing.T) {
	s := NewState()
	if s.Initialized() {
		t.Fatal("expected fresh state to be uninitialized")
	}
	mags := make([]uint8, 100)
	for i := range mags {
		mags[i] = uint8(i)
	}
	s.Update(mags, DefaultPercentile, DefaultAlpha)
	if !s.Initialized() {
		t.Fatal("expected state to be initialized after first Update")
	}
	if s.Smoothed != 15 {
		t.Errorf("first update should snap to instantaneous percentile, got %v", s.Smoothed)
	}
}

func TestUpdateBlendsTowardNewPercentile(t *testing.T) {
	s := NewState()
	low := make([]uint8, 100)
	for i := range low {
		low[i] = 10
	}
	s.Update(low, DefaultPercentile, DefaultAlpha)
	if s.Smoothed != 10 {
		t.Fatalf("expected initial smoothed = 10, got %v", s.Smoothed)
	}

	high := make([]uint8, 100)
	for i := range high {
		high[i] = 100
	}
	s.Update(high, DefaultPercentile, DefaultAlpha)
	want := DefaultAlpha*100 + (1-DefaultAlpha)*10
	if diff := s.Smoothed - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("got %v, want %v", s.Smoothed, want)
	}
}

func TestPercentileMonotonicWithUniformData(t *testing.T) {
	s := NewState()
	mags := make([]uint8, 200)
	for i := range mags {
		mags[i] = uint8(i % 256)
	}
	p15 := percentile(s.scratch, mags, 15)
	p50 := percentile(s.scratch, mags, 50)
	p90 := percentile(s.scratch, mags, 90)
	if !(p15 <= p50 && p50 <= p90) {
		t.Errorf("percentiles not monotonic: p15=%v p50=%v p90=%v", p15, p50, p90)
	}
}

func TestPercentileEmptyInput(t *testing.T) {
	s := NewState()
	if got := percentile(s.scratch, nil, 15); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}

func TestUpdateReusesScratchBuffer(t *testing.T) {
	s := NewState()
	mags := make([]uint8, 50)
	s.Update(mags, DefaultPercentile, DefaultAlpha)
	if cap(s.scratch) < len(mags) {
		t.Fatalf("expected scratch buffer to grow to at least %d, got cap %d", len(mags), cap(s.scratch))
	}
	firstScratchPtr := &s.scratch[0]
	mags2 := make([]uint8, 50)
	s.Update(mags2, DefaultPercentile, DefaultAlpha)
	if &s.scratch[0] != firstScratchPtr {
		t.Errorf("expected scratch buffer to be reused, not reallocated, for same-size input")
	}
}
