// Package calibration implements the array calibration store: a
// frequency-sorted table of phase corrections, supplying
// frequency-interpolated correction values to the direction-finding
// estimator.
//
// Semantics are ported from
// _examples/original_source/server/src/array_calibration.cpp.
package calibration

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
)

// Point is a single calibration measurement.
type Point struct {
	FrequencyHz      uint64
	PhaseCorrection  float64 // degrees
	KnownAzimuthDeg  float64
	TimestampUnix    int64
}

// Store holds calibration points sorted strictly ascending by
// frequency, reader-writer mutex protected per spec.md §5 (writes are
// rare: operator action or file load; reads run once per DF frame).
type Store struct {
	mu      sync.RWMutex
	enabled bool
	points  []Point

	// antennaSpacingWavelengths matches the original's assumed 0.5λ
	// interferometer spacing used to derive the expected phase
	// difference for a known azimuth.
	antennaSpacingWavelengths float64
}

// NewStore returns an empty, disabled calibration store.
func NewStore() *Store {
	return &Store{antennaSpacingWavelengths: 0.5}
}

// SetEnabled toggles whether Correction returns non-zero values.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether calibration correction is active.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// AddPoint computes the expected phase difference for knownAzimuthDeg
// using the interferometer equation at 0.5λ spacing
// (expected_deg = 180 * sin(az_rad)), stores correction = expected -
// measuredPhaseDiffDeg, and keeps the table sorted ascending by
// frequency. If a point already exists at frequencyHz, it is
// overwritten in place (correction, azimuth, timestamp) rather than
// duplicated.
func (s *Store) AddPoint(frequencyHz uint64, measuredPhaseDiffDeg, knownAzimuthDeg float64, timestampUnix int64) {
	thetaRad := knownAzimuthDeg * math.Pi / 180.0
	expectedDeg := 180.0 * math.Sin(thetaRad) // π*sin(θ) in radians, converted to degrees
	correction := expectedDeg - measuredPhaseDiffDeg

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.points {
		if s.points[i].FrequencyHz == frequencyHz {
			s.points[i].PhaseCorrection = correction
			s.points[i].KnownAzimuthDeg = knownAzimuthDeg
			s.points[i].TimestampUnix = timestampUnix
			return
		}
	}

	s.points = append(s.points, Point{
		FrequencyHz:     frequencyHz,
		PhaseCorrection: correction,
		KnownAzimuthDeg: knownAzimuthDeg,
		TimestampUnix:   timestampUnix,
	})
	sort.Slice(s.points, func(i, j int) bool {
		return s.points[i].FrequencyHz < s.points[j].FrequencyHz
	})
}

// Correction returns the phase correction in degrees for frequencyHz.
// It returns 0 if calibration is disabled or the table is empty,
// interpolates linearly in frequency between the two surrounding
// points, and clamps (does not extrapolate) outside the table's range.
func (s *Store) Correction(frequencyHz uint64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled || len(s.points) == 0 {
		return 0
	}
	if len(s.points) == 1 {
		return s.points[0].PhaseCorrection
	}

	// s.points is sorted ascending by frequency.
	if frequencyHz <= s.points[0].FrequencyHz {
		return s.points[0].PhaseCorrection
	}
	last := s.points[len(s.points)-1]
	if frequencyHz >= last.FrequencyHz {
		return last.PhaseCorrection
	}

	for i := 1; i < len(s.points); i++ {
		if s.points[i].FrequencyHz >= frequencyHz {
			lower := s.points[i-1]
			upper := s.points[i]
			if upper.FrequencyHz == lower.FrequencyHz {
				return lower.PhaseCorrection
			}
			frac := float64(frequencyHz-lower.FrequencyHz) / float64(upper.FrequencyHz-lower.FrequencyHz)
			return lower.PhaseCorrection + frac*(upper.PhaseCorrection-lower.PhaseCorrection)
		}
	}
	return last.PhaseCorrection
}

// Points returns a copy of the current calibration table, sorted
// ascending by frequency.
func (s *Store) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Save writes the calibration table to filename as comma-separated
// lines (freq,correction_deg,known_az_deg,timestamp), preceded by a
// "#"-prefixed header, matching save_calibration in the original.
func (s *Store) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("calibration: save %s: %w", filename, err)
	}
	defer f.Close()
	return s.WriteTo(f)
}

// WriteTo writes the calibration table to w in the same format Save
// uses to disk.
func (s *Store) WriteTo(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Array Calibration Data")
	fmt.Fprintln(bw, "# Frequency(Hz), PhaseCorrection(deg), KnownAzimuth(deg), Timestamp")
	for _, p := range s.points {
		fmt.Fprintf(bw, "%d,%.3f,%.2f,%d\n", p.FrequencyHz, p.PhaseCorrection, p.KnownAzimuthDeg, p.TimestampUnix)
	}
	return bw.Flush()
}

// Load replaces the in-memory table from filename. Lines beginning
// with "#" are comments. On any I/O failure the in-memory table is
// left unchanged, per spec.md §7's persistence error-handling policy.
func (s *Store) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("calibration: load %s: %w", filename, err)
	}
	defer f.Close()
	return s.ReadFrom(f)
}

// ReadFrom parses the calibration table from r, replacing the
// in-memory table only after the whole stream parses successfully.
func (s *Store) ReadFrom(r io.Reader) error {
	var points []Point
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var p Point
		n, err := fmt.Sscanf(line, "%d,%f,%f,%d", &p.FrequencyHz, &p.PhaseCorrection, &p.KnownAzimuthDeg, &p.TimestampUnix)
		if err != nil || n != 4 {
			continue
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("calibration: read: %w", err)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].FrequencyHz < points[j].FrequencyHz
	})

	s.mu.Lock()
	s.points = points
	s.mu.Unlock()
	return nil
}
