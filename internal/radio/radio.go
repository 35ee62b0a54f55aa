// Package radio defines the hardware-agnostic acquisition interface
// (§6.1) that the pipeline's acquisition goroutine drives, ported from
// the bladeRF-specific open/configure/stream lifecycle in
// bladerf_sensor.h but abstracted away from any one SDR vendor so the
// pipeline can run against real hardware or a synthetic source.
package radio

import "context"

// Frame is one block of dual-channel IQ samples read from a Driver,
// held as separate I and Q slices per channel, each of the driver's
// configured sample count (the pipeline uses half the FFT size).
type Frame struct {
	Ch1I, Ch1Q []float64
	Ch2I, Ch2Q []float64

	// CenterFreqHz records the tuning in effect when this frame was
	// captured, so downstream DC-offset reset and calibration lookup
	// stay correct across a frequency change mid-stream.
	CenterFreqHz uint64
}

// Config mirrors the tunable parameters configure_channel applies per
// RX channel, plus the two channels' gains together since both RX
// chains on a coherent array share a common LO.
type Config struct {
	CenterFreqHz uint64
	SampleRateHz uint32
	BandwidthHz  uint32
	GainRX1Db    uint32
	GainRX2Db    uint32
	NumSamples   int
}

// Driver is the hardware abstraction acquisition depends on: open the
// device, apply a Config, start streaming, read fixed-size dual-channel
// frames, and close. Implementations are responsible for any USB
// transfer buffering (NUM_BUFFERS/BUFFER_SIZE/NUM_TRANSFERS in the
// original) internally; ReadFrame should block until a full frame is
// available or ctx is canceled.
type Driver interface {
	Open() error
	Configure(cfg Config) error
	StartRX() error
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}
