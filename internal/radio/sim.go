package radio

import (
	"context"
	"math"
)

// SimDriver generates a synthetic single-tone test signal on both
// channels with a fixed inter-channel phase offset, standing in for real bladeRF hardware
// during development and tests. It is not part of the original
// program (which only ever drives a bladeRF xA9) but the Driver
// interface it satisfies is the pipeline's only hardware dependency,
// so this is what lets the rest of the pipeline run without a radio
// attached.
type SimDriver struct {
	cfg Config

	toneFreqHz  float64
	phaseOffset float64 // radians, CH2 relative to CH1

	sampleIndex int
	opened      bool
	streaming   bool
}

// NewSimDriver returns a SimDriver producing a tone at toneFreqHz
// (relative to the tuned center frequency) with a constant phase
// offset between channels, useful for exercising the DF estimator
// with a known expected azimuth.
func NewSimDriver(toneFreqHz, phaseOffsetRad float64) *SimDriver {
	return &SimDriver{toneFreqHz: toneFreqHz, phaseOffset: phaseOffsetRad}
}

func (s *SimDriver) Open() error {
	s.opened = true
	return nil
}

func (s *SimDriver) Configure(cfg Config) error {
	s.cfg = cfg
	return nil
}

func (s *SimDriver) StartRX() error {
	s.streaming = true
	return nil
}

func (s *SimDriver) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	default:
	}

	n := s.cfg.NumSamples
	if n == 0 {
		n = 4096
	}
	f := Frame{
		Ch1I: make([]float64, n), Ch1Q: make([]float64, n),
		Ch2I: make([]float64, n), Ch2Q: make([]float64, n),
		CenterFreqHz: s.cfg.CenterFreqHz,
	}

	sampleRate := float64(s.cfg.SampleRateHz)
	if sampleRate == 0 {
		sampleRate = 40_000_000
	}
	omega := 2 * math.Pi * s.toneFreqHz / sampleRate

	for i := 0; i < n; i++ {
		t := float64(s.sampleIndex + i)
		f.Ch1I[i] = math.Cos(omega * t)
		f.Ch1Q[i] = math.Sin(omega * t)
		f.Ch2I[i] = math.Cos(omega*t + s.phaseOffset)
		f.Ch2Q[i] = math.Sin(omega*t + s.phaseOffset)
	}
	s.sampleIndex += n
	return f, nil
}

func (s *SimDriver) Close() error {
	s.streaming = false
	s.opened = false
	return nil
}
