package sink

import (
	"errors"
	"testing"
)

type fakeSink struct {
	dfCalls       int
	spectrumCalls int
	closed        bool
	failDF        error
	failSpectrum  error
}

func (f *fakeSink) PublishDF(frame DFFrame) error {
	f.dfCalls++
	return f.failDF
}

func (f *fakeSink) PublishSpectrum(frame SpectrumFrame) error {
	f.spectrumCalls++
	return f.failSpectrum
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiSinkFansOutToAllSinks(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMultiSink(a, b)

	if err := m.PublishDF(DFFrame{Azimuth: 90}); err != nil {
		t.Fatalf("PublishDF: %v", err)
	}
	if a.dfCalls != 1 || b.dfCalls != 1 {
		t.Errorf("expected both sinks to receive the DF frame, got a=%d b=%d", a.dfCalls, b.dfCalls)
	}

	if err := m.PublishSpectrum(SpectrumFrame{}); err != nil {
		t.Fatalf("PublishSpectrum: %v", err)
	}
	if a.spectrumCalls != 1 || b.spectrumCalls != 1 {
		t.Errorf("expected both sinks to receive the spectrum frame, got a=%d b=%d", a.spectrumCalls, b.spectrumCalls)
	}
}

func TestMultiSinkContinuesAfterOneSinkFails(t *testing.T) {
	failing := &fakeSink{failDF: errors.New("broker unreachable")}
	ok := &fakeSink{}
	m := NewMultiSink(failing, ok)

	err := m.PublishDF(DFFrame{})
	if err == nil {
		t.Fatal("expected the first sink's error to propagate")
	}
	if ok.dfCalls != 1 {
		t.Error("expected the second sink to still receive the frame despite the first failing")
	}
}

func TestMultiSinkCloseClosesEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMultiSink(a, b)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("expected both sinks closed")
	}
}

func TestInstanceIDIsStableWithinProcess(t *testing.T) {
	first := InstanceID()
	second := InstanceID()
	if first != second {
		t.Errorf("expected a stable instance ID, got %q then %q", first, second)
	}
	if first == "" {
		t.Error("expected a non-empty instance ID")
	}
}
