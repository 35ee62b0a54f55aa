// Package config loads the engine's YAML configuration file, ported
// from the teacher's Config struct-of-structs and LoadConfig: one
// nested struct per subsystem, zero-value defaults applied after
// unmarshal.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, per SPEC_FULL.md §1.
type Config struct {
	Radio       RadioConfig       `yaml:"radio"`
	FFT         FFTConfig         `yaml:"fft"`
	CFAR        CFARConfig        `yaml:"cfar"`
	DF          DFConfig          `yaml:"df"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Sinks       SinksConfig       `yaml:"sinks"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// RadioConfig sets the acquisition defaults and validation ranges,
// per §6.5.
type RadioConfig struct {
	Device          string  `yaml:"device"`
	FrequencyHz     uint64  `yaml:"frequency_hz"`
	SampleRateHz    uint32  `yaml:"sample_rate_hz"`
	BandwidthHz     uint32  `yaml:"bandwidth_hz"`
	GainRX1Db       float64 `yaml:"gain_rx1_db"`
	GainRX2Db       float64 `yaml:"gain_rx2_db"`
	AGCEnabled      bool    `yaml:"agc_enabled"`
	AntennaSpacingM float64 `yaml:"antenna_spacing_m"`
}

// FFTConfig selects transform size, window, and averaging depth, per
// C3/C4.
type FFTConfig struct {
	Size            int    `yaml:"size"`
	Window          string `yaml:"window"`
	AveragingFrames int    `yaml:"averaging_frames"`
}

// CFARConfig selects the detector variant and its cell geometry, per
// C5/C6.
type CFARConfig struct {
	Mode          string  `yaml:"mode"` // "ca", "os", "go", "so"
	TrainingCells int     `yaml:"training_cells"`
	GuardCells    int     `yaml:"guard_cells"`
	ThresholdDB   float64 `yaml:"threshold_db"`
	KPercentile   float64 `yaml:"k_percentile"`
	MinSignalBins int     `yaml:"min_signal_bins"`
}

// DFConfig configures the direction-finding bin range, per C7/C8.
// ConfidenceThreshold and HoldDecay are loaded and defaulted but not
// read by the direction estimator, which uses fixed values (confidence
// threshold 20, hold decay 0.8).
type DFConfig struct {
	BinStart            int     `yaml:"bin_start"`
	BinEnd              int     `yaml:"bin_end"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	HoldDecay           float64 `yaml:"hold_decay"`
}

// CalibrationConfig points at the per-array phase correction table,
// per C9.
type CalibrationConfig struct {
	FilePath string `yaml:"file_path"`
	Enabled  bool   `yaml:"enabled"`
}

// TelemetryConfig sets the Prometheus listen address and optional
// push-gateway URL, per C10.
type TelemetryConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	PushGatewayURL string `yaml:"push_gateway_url"`
}

// SinksConfig configures the WebSocket and MQTT output sinks, per
// §6.2.
type SinksConfig struct {
	WebsocketListenAddr string `yaml:"websocket_listen_addr"`
	MQTTBroker          string `yaml:"mqtt_broker"`
	MQTTTopicPrefix     string `yaml:"mqtt_topic_prefix"`
	MQTTUsername        string `yaml:"mqtt_username"`
	MQTTPassword        string `yaml:"mqtt_password"`
}

// LoggingConfig selects the log level and optional output file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads and parses the YAML config file at path, applying
// defaults for any zero-valued field, per LoadConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills unset fields with the engine's defaults, per
// the teacher's "set defaults if not specified" block in LoadConfig.
func applyDefaults(cfg *Config) {
	if cfg.Radio.FrequencyHz == 0 {
		cfg.Radio.FrequencyHz = 915_000_000
	}
	if cfg.Radio.SampleRateHz == 0 {
		cfg.Radio.SampleRateHz = 2_000_000
	}
	if cfg.Radio.BandwidthHz == 0 {
		cfg.Radio.BandwidthHz = cfg.Radio.SampleRateHz
	}
	if cfg.Radio.AntennaSpacingM == 0 {
		cfg.Radio.AntennaSpacingM = 0.164
	}

	if cfg.FFT.Size == 0 {
		cfg.FFT.Size = 4096
	}
	if cfg.FFT.Window == "" {
		cfg.FFT.Window = "hamming"
	}
	if cfg.FFT.AveragingFrames == 0 {
		cfg.FFT.AveragingFrames = 1
	}

	if cfg.CFAR.Mode == "" {
		cfg.CFAR.Mode = "ca"
	}
	if cfg.CFAR.TrainingCells == 0 {
		cfg.CFAR.TrainingCells = 32
	}
	if cfg.CFAR.GuardCells == 0 {
		cfg.CFAR.GuardCells = 8
	}
	if cfg.CFAR.ThresholdDB == 0 {
		cfg.CFAR.ThresholdDB = 3.0
	}
	if cfg.CFAR.MinSignalBins == 0 {
		cfg.CFAR.MinSignalBins = 5
	}
	if cfg.CFAR.KPercentile == 0 {
		cfg.CFAR.KPercentile = 0.75
	}

	if cfg.DF.ConfidenceThreshold == 0 {
		cfg.DF.ConfidenceThreshold = 20.0
	}
	if cfg.DF.HoldDecay == 0 {
		cfg.DF.HoldDecay = 0.8
	}

	if cfg.Telemetry.ListenAddr == "" {
		cfg.Telemetry.ListenAddr = ":9090"
	}

	if cfg.Sinks.MQTTTopicPrefix == "" {
		cfg.Sinks.MQTTTopicPrefix = "dfsensor"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
