package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := writeTempConfig(t, `
radio:
  device: simulated
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Radio.FrequencyHz != 915_000_000 {
		t.Errorf("expected default frequency, got %d", cfg.Radio.FrequencyHz)
	}
	if cfg.FFT.Size != 4096 {
		t.Errorf("expected default FFT size, got %d", cfg.FFT.Size)
	}
	if cfg.CFAR.Mode != "ca" {
		t.Errorf("expected default CFAR mode ca, got %q", cfg.CFAR.Mode)
	}
	if cfg.DF.ConfidenceThreshold != 20.0 {
		t.Errorf("expected default confidence threshold 20.0, got %v", cfg.DF.ConfidenceThreshold)
	}
	if cfg.Telemetry.ListenAddr != ":9090" {
		t.Errorf("expected default telemetry listen addr, got %q", cfg.Telemetry.ListenAddr)
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `
radio:
  frequency_hz: 433000000
fft:
  size: 8192
  window: blackman
cfar:
  mode: os
  k_percentile: 0.9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Radio.FrequencyHz != 433_000_000 {
		t.Errorf("expected explicit frequency preserved, got %d", cfg.Radio.FrequencyHz)
	}
	if cfg.FFT.Size != 8192 {
		t.Errorf("expected explicit FFT size preserved, got %d", cfg.FFT.Size)
	}
	if cfg.FFT.Window != "blackman" {
		t.Errorf("expected explicit window preserved, got %q", cfg.FFT.Window)
	}
	if cfg.CFAR.Mode != "os" || cfg.CFAR.KPercentile != 0.9 {
		t.Errorf("expected explicit CFAR settings preserved, got %+v", cfg.CFAR)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected error loading a missing config file")
	}
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	path := writeTempConfig(t, "radio: [this is not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error loading malformed YAML")
	}
}
