package radio

import (
	"context"
	"testing"
)

func TestSimDriverLifecycle(t *testing.T) {
	d := NewSimDriver(10000, 0)
	if err := d.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.Configure(Config{CenterFreqHz: 915_000_000, SampleRateHz: 40_000_000, NumSamples: 64}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.StartRX(); err != nil {
		t.Fatalf("StartRX: %v", err)
	}
	frame, err := d.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(frame.Ch1I) != 64 || len(frame.Ch2I) != 64 {
		t.Fatalf("expected 64 samples per channel, got ch1=%d ch2=%d", len(frame.Ch1I), len(frame.Ch2I))
	}
	if frame.CenterFreqHz != 915_000_000 {
		t.Errorf("expected frame to record tuned frequency, got %d", frame.CenterFreqHz)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSimDriverReadFrameRespectsContextCancellation(t *testing.T) {
	d := NewSimDriver(10000, 0)
	d.Configure(Config{NumSamples: 16, SampleRateHz: 1_000_000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadFrame(ctx); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestAGCDisabledByDefault(t *testing.T) {
	agc := NewAGC(40, 40)
	mag := make([]uint8, 100)
	for i := range mag {
		mag[i] = 255
	}
	if changed := agc.Update(mag, mag); changed {
		t.Fatal("expected disabled AGC to never change gain")
	}
}

func TestAGCDecreasesGainOnStrongSignal(t *testing.T) {
	agc := NewAGC(40, 40)
	agc.Enabled = true
	mag := make([]uint8, 100)
	for i := range mag {
		mag[i] = 255
	}
	var changed bool
	for i := 0; i < 10; i++ {
		changed = agc.Update(mag, mag)
		if changed {
			break
		}
	}
	if !changed {
		t.Fatal("expected gain decrease after sustained strong signal")
	}
	if agc.GainRX1 != 37 || agc.GainRX2 != 37 {
		t.Errorf("expected gain reduced by 3 to 37, got rx1=%d rx2=%d", agc.GainRX1, agc.GainRX2)
	}
}

func TestAGCIncreasesGainOnWeakSignal(t *testing.T) {
	agc := NewAGC(40, 40)
	agc.Enabled = true
	mag := make([]uint8, 100)
	for i := range mag {
		mag[i] = 10
	}
	var changed bool
	for i := 0; i < 25; i++ {
		changed = agc.Update(mag, mag)
		if changed {
			break
		}
	}
	if !changed {
		t.Fatal("expected gain increase after sustained weak signal")
	}
	if agc.GainRX1 != 41 || agc.GainRX2 != 41 {
		t.Errorf("expected gain increased by 1 to 41, got rx1=%d rx2=%d", agc.GainRX1, agc.GainRX2)
	}
}

func TestAGCResetsCounterWithinTargetBand(t *testing.T) {
	agc := NewAGC(40, 40)
	agc.Enabled = true
	mag := make([]uint8, 100)
	for i := range mag {
		mag[i] = 200
	}
	for i := 0; i < 30; i++ {
		agc.Update(mag, mag)
	}
	if agc.GainRX1 != 40 || agc.GainRX2 != 40 {
		t.Errorf("expected gain unchanged within target band, got rx1=%d rx2=%d", agc.GainRX1, agc.GainRX2)
	}
}
