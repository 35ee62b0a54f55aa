package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

// PrometheusExporter mirrors Counters into a set of Prometheus gauges,
// following the teacher's promauto.NewGaugeVec registration style
// (prometheus.go), with a run_id label instead of the teacher's band
// label.
type PrometheusExporter struct {
	framesAcquired  prometheus.Gauge
	framesProcessed prometheus.Gauge
	framesAnalyzed  prometheus.Gauge
	sampleQueueFull prometheus.Gauge
	fftQueueFull    prometheus.Gauge
	usbErrors       prometheus.Gauge
	usbRecoveries   prometheus.Gauge
	detections      prometheus.Gauge
	dfInvocations   prometheus.Gauge
	processRSSBytes prometheus.Gauge
	processCPUPct   prometheus.Gauge

	counters *Counters
	proc     *process.Process
}

// NewPrometheusExporter registers the gauge set with reg (pass
// prometheus.DefaultRegisterer for the global registry, as the
// teacher's main.go does when wiring promhttp.Handler()).
func NewPrometheusExporter(reg prometheus.Registerer, counters *Counters) *PrometheusExporter {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": counters.RunID.String()}

	e := &PrometheusExporter{
		counters: counters,
		framesAcquired: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_frames_acquired_total",
			Help:        "Cumulative IQ frames pulled from the radio driver.",
			ConstLabels: labels,
		}),
		framesProcessed: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_frames_processed_total",
			Help:        "Cumulative frames conditioned into spectrum frames.",
			ConstLabels: labels,
		}),
		framesAnalyzed: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_frames_analyzed_total",
			Help:        "Cumulative spectrum frames run through CFAR/DF.",
			ConstLabels: labels,
		}),
		sampleQueueFull: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_sample_queue_full_total",
			Help:        "Cumulative acquire->process queue-full drops.",
			ConstLabels: labels,
		}),
		fftQueueFull: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_fft_queue_full_total",
			Help:        "Cumulative process->analyze queue-full drops.",
			ConstLabels: labels,
		}),
		usbErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_usb_errors_total",
			Help:        "Cumulative radio driver read errors.",
			ConstLabels: labels,
		}),
		usbRecoveries: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_usb_recoveries_total",
			Help:        "Cumulative successful radio driver reconnects.",
			ConstLabels: labels,
		}),
		detections: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_detections_total",
			Help:        "Cumulative CFAR signal regions detected.",
			ConstLabels: labels,
		}),
		dfInvocations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_df_invocations_total",
			Help:        "Cumulative direction-finding estimator calls.",
			ConstLabels: labels,
		}),
		processRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_process_rss_bytes",
			Help:        "Resident set size of this process.",
			ConstLabels: labels,
		}),
		processCPUPct: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dfsensor_process_cpu_percent",
			Help:        "Process CPU utilization percentage.",
			ConstLabels: labels,
		}),
	}

	if p, err := process.NewProcess(int32(currentPID())); err == nil {
		e.proc = p
	}

	return e
}

// Sample reads the counters and optional process stats and updates the
// gauges. Intended to be called on a short interval by the caller
// (cmd/dfsensor calls it every 5 seconds), matching the teacher's
// periodic metrics-refresh goroutines.
func (e *PrometheusExporter) Sample() {
	snap := e.counters.Snapshot()
	e.framesAcquired.Set(float64(snap.FramesAcquired))
	e.framesProcessed.Set(float64(snap.FramesProcessed))
	e.framesAnalyzed.Set(float64(snap.FramesAnalyzed))
	e.sampleQueueFull.Set(float64(snap.SampleQueueFull))
	e.fftQueueFull.Set(float64(snap.FFTQueueFull))
	e.usbErrors.Set(float64(snap.USBErrors))
	e.usbRecoveries.Set(float64(snap.USBRecoveries))
	e.detections.Set(float64(snap.Detections))
	e.dfInvocations.Set(float64(snap.DFInvocations))

	if e.proc == nil {
		return
	}
	if mem, err := e.proc.MemoryInfo(); err == nil && mem != nil {
		e.processRSSBytes.Set(float64(mem.RSS))
	}
	if pct, err := e.proc.CPUPercent(); err == nil {
		e.processCPUPct.Set(pct)
	}
}

// RunPeriodic samples on the given interval until stop is closed.
func (e *PrometheusExporter) RunPeriodic(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Sample()
		}
	}
}
