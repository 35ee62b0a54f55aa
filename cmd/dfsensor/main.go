// Command dfsensor runs the dual-channel direction-finding engine:
// loads configuration, opens the radio driver, wires the
// acquire/process/analyze pipeline, and serves telemetry and output
// sinks until terminated, ported from the teacher's main.go flag/
// signal-handling/promhttp wiring.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/dfsensor/internal/calibration"
	"github.com/cwsl/dfsensor/internal/config"
	"github.com/cwsl/dfsensor/internal/pipeline"
	"github.com/cwsl/dfsensor/internal/radio"
	"github.com/cwsl/dfsensor/internal/recording"
	"github.com/cwsl/dfsensor/internal/sink"
	"github.com/cwsl/dfsensor/internal/telemetry"
)

const telemetrySampleInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	calPathOverride := flag.String("calibration-file", "", "Override the calibration file path from config")
	simulate := flag.Bool("simulate", false, "Run against a synthetic signal source instead of real hardware")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("dfsensor: loading config: %v", err)
	}

	cal := calibration.NewStore()
	calPath := cfg.Calibration.FilePath
	if *calPathOverride != "" {
		calPath = *calPathOverride
	}
	if cfg.Calibration.Enabled && calPath != "" {
		if err := cal.Load(calPath); err != nil {
			log.Printf("dfsensor: loading calibration file %s: %v", calPath, err)
		}
		cal.SetEnabled(true)
	}

	var driver radio.Driver
	if *simulate {
		driver = radio.NewSimDriver(50_000, 1.2)
	} else {
		log.Fatalf("dfsensor: no hardware driver is wired in this build; pass -simulate or add a radio.Driver implementation")
	}

	sinks, wsSink := buildSinks(cfg)

	var recorder recording.Recorder
	if cfg.Radio.Device != "" {
		recorder = recording.NewGzipFileRecorder()
	}

	pl := pipeline.New(cfg, driver, sinks, cal, recorder, nil)
	if err := pl.Start(); err != nil {
		log.Fatalf("dfsensor: starting pipeline: %v", err)
	}

	exporter := telemetry.NewPrometheusExporter(prometheus.DefaultRegisterer, pl.Counters())
	stop := make(chan struct{})
	go exporter.RunPeriodic(telemetrySampleInterval, stop)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if wsSink != nil {
		mux.HandleFunc("/ws", wsSink.ServeHTTP)
	}
	server := &http.Server{Addr: cfg.Telemetry.ListenAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("dfsensor: http server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("dfsensor: shutting down")
	close(stop)
	pl.Stop()
	if err := server.Close(); err != nil {
		log.Printf("dfsensor: closing http server: %v", err)
	}
}

// buildSinks wires the configured output sinks into a single fan-out
// sink.Sink, additionally returning the WebSocket sink on its own (if
// enabled) so main can mount its HTTP upgrade handler.
func buildSinks(cfg *config.Config) (sink.Sink, *sink.WebsocketSink) {
	var sinks []sink.Sink
	var wsSink *sink.WebsocketSink

	if cfg.Sinks.WebsocketListenAddr != "" {
		wsSink = sink.NewWebsocketSink()
		sinks = append(sinks, wsSink)
	}
	if cfg.Sinks.MQTTBroker != "" {
		mqttSink, err := sink.NewMQTTSink(sink.MQTTConfig{
			Broker:      cfg.Sinks.MQTTBroker,
			Username:    cfg.Sinks.MQTTUsername,
			Password:    cfg.Sinks.MQTTPassword,
			TopicPrefix: cfg.Sinks.MQTTTopicPrefix,
		})
		if err != nil {
			log.Printf("dfsensor: mqtt sink disabled: %v", err)
		} else {
			sinks = append(sinks, mqttSink)
		}
	}
	return sink.NewMultiSink(sinks...), wsSink
}
