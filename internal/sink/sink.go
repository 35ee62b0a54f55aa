// Package sink implements the output fan-out surface named in §6.2:
// push DF results and spectrum frames to subscribers over WebSocket
// and publish them to an MQTT broker, ported from the teacher's
// *_websocket.go handlers and mqtt_publisher.go.
package sink

import (
	"time"

	"github.com/google/uuid"
)

// DFFrame is the JSON envelope published to every sink for one
// direction-finding result, combining direction.Result's fields with
// the run/instance ID the teacher stamps onto its own session
// payloads.
type DFFrame struct {
	InstanceID   string    `json:"instance_id"`
	Timestamp    time.Time `json:"timestamp"`
	Azimuth      float64   `json:"azimuth_deg"`
	BackAzimuth  float64   `json:"back_azimuth_deg"`
	Confidence   float64   `json:"confidence"`
	SNRDb        float64   `json:"snr_db"`
	Coherence    float64   `json:"coherence"`
	IsHolding    bool      `json:"is_holding"`
	NumBins      int       `json:"num_bins"`
	NumSignals   int       `json:"num_signals"`
	CenterFreqHz uint64    `json:"center_freq_hz"`
}

// SpectrumFrame is the JSON envelope published for one averaged FFT
// magnitude frame, per the teacher's spectrum websocket payloads.
type SpectrumFrame struct {
	InstanceID   string    `json:"instance_id"`
	Timestamp    time.Time `json:"timestamp"`
	CenterFreqHz uint64    `json:"center_freq_hz"`
	SampleRateHz uint32    `json:"sample_rate_hz"`
	Ch1Mag       []uint8   `json:"ch1_mag"`
	Ch2Mag       []uint8   `json:"ch2_mag"`
}

// Sink is the interface the pipeline's analysis stage depends on to
// publish results without referencing a concrete transport.
type Sink interface {
	PublishDF(frame DFFrame) error
	PublishSpectrum(frame SpectrumFrame) error
	Close() error
}

// instanceID is stamped into every frame published from this
// process, mirroring the teacher's per-session UUID usage.
var instanceID = uuid.NewString()

// InstanceID returns this process's run identifier.
func InstanceID() string {
	return instanceID
}

// MultiSink fans a single publish out to every configured sink,
// tolerating individual sink failures the way the teacher's MQTT and
// WebSocket publishers each fail independently without aborting the
// other.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink wraps zero or more sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// PublishDF publishes to every sink, returning the first error
// encountered (if any) after attempting all of them.
func (m *MultiSink) PublishDF(frame DFFrame) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.PublishDF(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishSpectrum publishes to every sink, returning the first error
// encountered (if any) after attempting all of them.
func (m *MultiSink) PublishSpectrum(frame SpectrumFrame) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.PublishSpectrum(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink, returning the first error encountered (if
// any) after attempting all of them.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
