// Package recording implements IQ sample capture to disk (§ ambient,
// non-goal interface per spec.md — full playback/analysis tooling is
// out of scope, but the capture path itself is retained), ported from
// recording.h/RecordingMetadata/RecordingState.
package recording

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Metadata is the fixed-size header written at the start of every
// recording, ported from RecordingMetadata.
type Metadata struct {
	CenterFreqHz      uint64
	SampleRateHz      uint32
	BandwidthHz       uint32
	GainRX1Db         uint32
	GainRX2Db         uint32
	TimestampStartSec int64
	Notes             string
}

// Recorder is the interface the pipeline's analysis/control surface
// depends on to start, feed, and stop a recording session without
// referencing the concrete gzip writer.
type Recorder interface {
	Start(filename string, meta Metadata) error
	WriteSamples(samples []int16) error
	Stop() error
	IsRecording() bool
	SamplesWritten() uint64
}

// GzipFileRecorder streams interleaved int16 IQ pairs to a
// gzip-compressed file, matching write_samples_to_file's raw binary
// layout but compressed, grounded on the teacher's use of
// klauspost/compress for its audio/SSTV encode paths.
type GzipFileRecorder struct {
	mu sync.Mutex

	file           io.WriteCloser
	gz             *gzip.Writer
	active         bool
	samplesWritten uint64
	meta           Metadata
}

// NewGzipFileRecorder returns an idle recorder. Start opens the file
// with os.Create; StartWithOpener takes a FileOpener so tests can swap
// in an in-memory writer.
func NewGzipFileRecorder() *GzipFileRecorder {
	return &GzipFileRecorder{}
}

// FileOpener abstracts *os.Create so tests don't need a real
// filesystem.
type FileOpener func(filename string) (io.WriteCloser, error)

// Start begins a new recording on disk, writing the metadata header
// before any samples, per start_recording.
func (r *GzipFileRecorder) Start(filename string, meta Metadata) error {
	return r.StartWithOpener(filename, meta, func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	})
}

// StartWithOpener is Start with an injectable file opener, so tests
// can record to an in-memory writer instead of a real file.
func (r *GzipFileRecorder) StartWithOpener(filename string, meta Metadata, open FileOpener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return fmt.Errorf("recording: already active")
	}
	f, err := open(filename)
	if err != nil {
		return fmt.Errorf("recording: open %s: %w", filename, err)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		f.Close()
		return fmt.Errorf("recording: gzip writer: %w", err)
	}

	meta.TimestampStartSec = time.Now().Unix()
	if err := writeMetadata(gz, meta); err != nil {
		gz.Close()
		f.Close()
		return fmt.Errorf("recording: write metadata: %w", err)
	}

	r.file = f
	r.gz = gz
	r.meta = meta
	r.active = true
	r.samplesWritten = 0
	return nil
}

func writeMetadata(w io.Writer, meta Metadata) error {
	fields := []uint64{
		meta.CenterFreqHz,
		uint64(meta.SampleRateHz),
		uint64(meta.BandwidthHz),
		uint64(meta.GainRX1Db),
		uint64(meta.GainRX2Db),
		uint64(meta.TimestampStartSec),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	notes := make([]byte, 256)
	copy(notes, meta.Notes)
	_, err := w.Write(notes)
	return err
}

// WriteSamples appends interleaved I/Q int16 pairs to the active
// recording, per write_samples_to_file.
func (r *GzipFileRecorder) WriteSamples(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return fmt.Errorf("recording: no active recording")
	}
	if err := binary.Write(r.gz, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("recording: write samples: %w", err)
	}
	r.samplesWritten += uint64(len(samples) / 2)
	return nil
}

// Stop finalizes and closes the active recording, per stop_recording.
func (r *GzipFileRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	r.active = false
	if err := r.gz.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("recording: close gzip writer: %w", err)
	}
	return r.file.Close()
}

// IsRecording reports whether a recording session is active, per
// is_recording.
func (r *GzipFileRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SamplesWritten returns the number of IQ pairs written so far, per
// get_recording_status.
func (r *GzipFileRecorder) SamplesWritten() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samplesWritten
}
