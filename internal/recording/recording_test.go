package recording

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type nopCloserBuffer struct {
	*bytes.Buffer
}

func (nopCloserBuffer) Close() error { return nil }

func TestStartWriteStopRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewGzipFileRecorder()
	opener := func(name string) (io.WriteCloser, error) {
		return nopCloserBuffer{buf}, nil
	}

	meta := Metadata{CenterFreqHz: 915_000_000, SampleRateHz: 2_000_000, BandwidthHz: 2_000_000, GainRX1Db: 30, GainRX2Db: 30, Notes: "test"}
	if err := r.StartWithOpener("ignored.iq.gz", meta, opener); err != nil {
		t.Fatalf("StartWithOpener: %v", err)
	}
	if !r.IsRecording() {
		t.Fatal("expected IsRecording true after Start")
	}

	samples := []int16{1, 2, 3, 4, 5, 6}
	if err := r.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if got := r.SamplesWritten(); got != 3 {
		t.Errorf("expected 3 IQ pairs written, got %d", got)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.IsRecording() {
		t.Fatal("expected IsRecording false after Stop")
	}

	gz, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gz.Close()
	decoded, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("reading decompressed stream: %v", err)
	}
	// 6 uint64 header fields (48 bytes) + 256-byte notes + 6 int16 samples (12 bytes)
	wantLen := 6*8 + 256 + 6*2
	if len(decoded) != wantLen {
		t.Errorf("decoded length = %d, want %d", len(decoded), wantLen)
	}
}

func TestWriteSamplesWithoutStartFails(t *testing.T) {
	r := NewGzipFileRecorder()
	if err := r.WriteSamples([]int16{1, 2}); err == nil {
		t.Fatal("expected error writing samples with no active recording")
	}
}

func TestStartTwiceFails(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewGzipFileRecorder()
	opener := func(name string) (io.WriteCloser, error) { return nopCloserBuffer{buf}, nil }
	meta := Metadata{CenterFreqHz: 915_000_000}
	if err := r.StartWithOpener("a", meta, opener); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := r.StartWithOpener("b", meta, opener); err == nil {
		t.Fatal("expected error starting a second recording while active")
	}
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	r := NewGzipFileRecorder()
	if err := r.Stop(); err != nil {
		t.Fatalf("expected no error stopping an inactive recorder, got %v", err)
	}
}
