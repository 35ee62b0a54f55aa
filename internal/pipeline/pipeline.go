// Package pipeline wires the acquire/process/analyze stages together
// into the running engine, ported from the goroutine-per-subsystem
// plus shared stop-channel/WaitGroup pattern the teacher uses for its
// long-running monitors (NoiseFloorMonitor's running/stopChan/wg in
// noise_floor.go), generalized from one monitor to the three-stage
// pipeline spec.md §5 describes.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwsl/dfsensor/internal/buffers"
	"github.com/cwsl/dfsensor/internal/calibration"
	"github.com/cwsl/dfsensor/internal/cfar"
	"github.com/cwsl/dfsensor/internal/config"
	"github.com/cwsl/dfsensor/internal/control"
	"github.com/cwsl/dfsensor/internal/direction"
	"github.com/cwsl/dfsensor/internal/dsp"
	"github.com/cwsl/dfsensor/internal/gps"
	"github.com/cwsl/dfsensor/internal/noisefloor"
	"github.com/cwsl/dfsensor/internal/radio"
	"github.com/cwsl/dfsensor/internal/recording"
	"github.com/cwsl/dfsensor/internal/ringqueue"
	"github.com/cwsl/dfsensor/internal/sink"
	"github.com/cwsl/dfsensor/internal/telemetry"
)

// sampleQueueDepth and fftQueueDepth size the two inter-stage SPSC
// queues; both comfortably hold several frames of buffering before the
// real-time drop policy (§4.2/§4.3) kicks in.
const (
	sampleQueueDepth = 8
	fftQueueDepth    = 8

	// crossCorrEvery matches §4.11: the cross-correlation snapshot is
	// refreshed at most once every 5 DF frames.
	crossCorrEvery = 5

	// emptyQueuePoll is the consumer-side backoff when a queue is
	// empty; the SPSC queues themselves never block, so a poller on
	// the other end needs some delay to avoid spinning a full core.
	emptyQueuePoll = 200 * time.Microsecond
)

// SpectrumFrame is the conditioning stage's output, per §4.3: both
// channels' FFT magnitude (0-255) and full complex spectrum, a
// per-channel noise-floor snapshot on the same 0..255 scale (spec.md
// §3's SpectrumFrame field), plus the center frequency in effect at
// acquisition.
type SpectrumFrame struct {
	Ch1Mag, Ch2Mag               []uint8
	Ch1FFT, Ch2FFT               []complex128
	Ch1NoiseFloor, Ch2NoiseFloor float64
	CenterFreqHz                 uint64
	Timestamp                    time.Time
}

// Pipeline owns every stage's state and the goroutines that drive
// them. Last-valid DoA/Kalman state belongs solely to the analyze
// goroutine, per §5's shared-resource policy; nothing else touches it.
type Pipeline struct {
	cfg     *config.Config
	driver  radio.Driver
	control *control.Surface
	agc     *radio.AGC

	sampleQueue *ringqueue.Queue[radio.Frame]
	fftQueue    *ringqueue.Queue[SpectrumFrame]

	dc       dsp.DCOffsetState
	overlap  *dsp.OverlapState
	fft      *dsp.FFT
	window   []float64
	windowType dsp.WindowType
	averager *dsp.Averager

	noiseCh1, noiseCh2 *noisefloor.State
	cfarParams         cfar.Params
	cfarMode           control.CFARMode

	lastDoA *direction.LastValidDoA
	cal     *calibration.Store

	waterfall *buffers.Waterfall
	iqSnap    *buffers.IQSnapshot
	xcorr     *buffers.XCorr
	doaResult *buffers.DoAResult
	classRing *buffers.ClassificationRing

	counters *telemetry.Counters
	sink     sink.Sink
	recorder recording.Recorder
	gps      gps.Source

	running  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds a pipeline from cfg, wired to driver for acquisition and
// snk for published results. cal/recorder/gps may be nil; a nil
// recorder/gps simply means those features are inactive for this run.
func New(cfg *config.Config, driver radio.Driver, snk sink.Sink, cal *calibration.Store, recorder recording.Recorder, gpsSource gps.Source) *Pipeline {
	fftSize := cfg.FFT.Size
	wt := windowTypeFromName(cfg.FFT.Window)

	p := &Pipeline{
		cfg:      cfg,
		driver:   driver,
		control:  control.NewSurface(cfg.Radio.FrequencyHz, cfg.Radio.SampleRateHz, cfg.Radio.BandwidthHz, uint32(cfg.Radio.GainRX1Db), uint32(cfg.Radio.GainRX2Db)),
		agc:      radio.NewAGC(uint32(cfg.Radio.GainRX1Db), uint32(cfg.Radio.GainRX2Db)),

		sampleQueue: ringqueue.New[radio.Frame](sampleQueueDepth),
		fftQueue:    ringqueue.New[SpectrumFrame](fftQueueDepth),

		overlap:  dsp.NewOverlapState(fftSize),
		fft:      dsp.NewFFT(fftSize),
		window:   dsp.GenerateWindow(wt, fftSize),
		windowType: wt,
		averager: dsp.NewAverager(cfg.FFT.AveragingFrames, fftSize),

		noiseCh1: noisefloor.NewState(),
		noiseCh2: noisefloor.NewState(),

		lastDoA: direction.NewLastValidDoA(),
		cal:     cal,

		waterfall: buffers.NewWaterfall(),
		iqSnap:    buffers.NewIQSnapshot(),
		xcorr:     buffers.NewXCorr(),
		doaResult: buffers.NewDoAResult(),
		classRing: buffers.NewClassificationRing(),

		counters: telemetry.New(),
		sink:     snk,
		recorder: recorder,
		gps:      gpsSource,

		stopChan: make(chan struct{}),
	}
	p.agc.Enabled = cfg.Radio.AGCEnabled
	p.cfarParams = cfarParamsFromConfig(cfg.CFAR)
	p.cfarMode = controlCFARModeFromName(cfg.CFAR.Mode)
	p.control.SetDFBinRange(uint32(cfg.DF.BinStart), uint32(cfg.DF.BinEnd))
	p.control.SetWindowType(uint32(wt))
	p.control.SetCFARMode(p.cfarMode)
	p.control.SetAGCEnabled(cfg.Radio.AGCEnabled)
	return p
}

func windowTypeFromName(name string) dsp.WindowType {
	switch name {
	case "hamming":
		return dsp.WindowHamming
	case "hanning":
		return dsp.WindowHanning
	case "blackman":
		return dsp.WindowBlackman
	case "blackman-harris":
		return dsp.WindowBlackmanHarris
	case "kaiser":
		return dsp.WindowKaiser
	case "tukey":
		return dsp.WindowTukey
	case "gaussian":
		return dsp.WindowGaussian
	default:
		return dsp.WindowRectangular
	}
}

func cfarModeFromName(name string) cfar.Variant {
	switch name {
	case "go":
		return cfar.VariantGO
	case "so":
		return cfar.VariantSO
	default:
		return cfar.VariantOS // CA detection path does not consult Variant
	}
}

func cfarParamsFromConfig(c config.CFARConfig) cfar.Params {
	return cfar.Params{
		TrainingCells:     c.TrainingCells,
		GuardCells:        c.GuardCells,
		ThresholdDB:       c.ThresholdDB,
		MinSignalBins:     c.MinSignalBins,
		KPercentile:       c.KPercentile,
		Variant:           cfarModeFromName(c.Mode),
		UseOrderStatistic: c.Mode == "os" || c.Mode == "go" || c.Mode == "so",
	}
}

// controlCFARModeFromName maps a config mode string onto the runtime
// control.CFARMode the control surface exposes to set_cfar_mode.
func controlCFARModeFromName(name string) control.CFARMode {
	switch name {
	case "os":
		return control.CFARModeOS
	case "go":
		return control.CFARModeGO
	case "so":
		return control.CFARModeSO
	default:
		return control.CFARModeCA
	}
}

// cfarParamsForMode rewrites base's Variant/UseOrderStatistic to match
// a runtime-selected CFAR mode, leaving the cell geometry and
// threshold untouched.
func cfarParamsForMode(base cfar.Params, mode control.CFARMode) cfar.Params {
	switch mode {
	case control.CFARModeOS:
		base.Variant = cfar.VariantOS
		base.UseOrderStatistic = true
	case control.CFARModeGO:
		base.Variant = cfar.VariantGO
		base.UseOrderStatistic = true
	case control.CFARModeSO:
		base.Variant = cfar.VariantSO
		base.UseOrderStatistic = true
	default:
		base.UseOrderStatistic = false
	}
	return base
}

// Control exposes the live control surface for an external API layer
// (§6.3) to drive.
func (p *Pipeline) Control() *control.Surface { return p.control }

// Counters exposes the telemetry counter set for exporters.
func (p *Pipeline) Counters() *telemetry.Counters { return p.counters }

// Start opens the radio driver, applies the initial configuration,
// begins streaming, and launches the three worker goroutines, per
// §5's "parallel OS threads" scheduling model.
func (p *Pipeline) Start() error {
	if err := p.driver.Open(); err != nil {
		return fmt.Errorf("pipeline: open driver: %w", err)
	}
	initial := radio.Config{
		CenterFreqHz: p.control.CenterFrequencyHz(),
		SampleRateHz: p.control.SampleRate(),
		BandwidthHz:  p.control.Bandwidth(),
		GainRX1Db:    p.control.GainRX1(),
		GainRX2Db:    p.control.GainRX2(),
		NumSamples:   p.cfg.FFT.Size / 2,
	}
	if err := p.driver.Configure(initial); err != nil {
		return fmt.Errorf("pipeline: configure driver: %w", err)
	}
	if err := p.driver.StartRX(); err != nil {
		return fmt.Errorf("pipeline: start rx: %w", err)
	}

	p.running.Store(true)
	p.wg.Add(3)
	go p.acquireLoop()
	go p.processLoop()
	go p.analyzeLoop()
	return nil
}

// Stop signals every worker to exit, drains and closes the radio
// driver, recorder, and sink, per §5's shutdown sequence: acquire
// stops first, process/analyze drain their queues, then resources are
// released. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		close(p.stopChan)
	})
	p.wg.Wait()

	if err := p.driver.Close(); err != nil {
		log.Printf("pipeline: close driver: %v", err)
	}
	if p.recorder != nil && p.recorder.IsRecording() {
		if err := p.recorder.Stop(); err != nil {
			log.Printf("pipeline: stop recorder: %v", err)
		}
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			log.Printf("pipeline: close sink: %v", err)
		}
	}
}

// acquireLoop pulls frames from the driver, applies pending
// control-surface changes, and forwards frames to the sample queue,
// per §4.2. It never blocks on the queue; a full queue only costs a
// counter increment and a dropped frame.
func (p *Pipeline) acquireLoop() {
	defer p.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopChan
		cancel()
	}()

	for p.running.Load() {
		if p.control.ParamsChanged() {
			p.retune()
		}

		timer := p.counters.StartTimer(telemetry.StageAcquire)
		frame, err := p.driver.ReadFrame(ctx)
		timer.Stop()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.counters.USBErrors.Add(1)
			continue
		}

		if p.recorder != nil && p.recorder.IsRecording() {
			p.writeRecordingSamples(frame)
		}

		p.counters.FramesAcquired.Add(1)
		p.counters.HeartbeatAcquire.Add(1)
		if !p.sampleQueue.Push(frame) {
			p.counters.SampleQueueFull.Add(1)
		}
	}
}

func (p *Pipeline) retune() {
	cfg := radio.Config{
		CenterFreqHz: p.control.CenterFrequencyHz(),
		SampleRateHz: p.control.SampleRate(),
		BandwidthHz:  p.control.Bandwidth(),
		GainRX1Db:    p.control.GainRX1(),
		GainRX2Db:    p.control.GainRX2(),
		NumSamples:   p.cfg.FFT.Size / 2,
	}
	if err := p.driver.Configure(cfg); err != nil {
		log.Printf("pipeline: retune failed: %v", err)
	}
}

func (p *Pipeline) writeRecordingSamples(frame radio.Frame) {
	samples := make([]int16, 0, len(frame.Ch1I)*4)
	for i := range frame.Ch1I {
		samples = append(samples,
			int16(frame.Ch1I[i]), int16(frame.Ch1Q[i]),
			int16(frame.Ch2I[i]), int16(frame.Ch2Q[i]))
	}
	if err := p.recorder.WriteSamples(samples); err != nil {
		log.Printf("pipeline: write recording samples: %v", err)
	}
}

// processLoop conditions raw frames into spectrum frames: deinterleave
// (the driver already yields per-channel arrays), DC removal,
// overlap-add, windowing, FFT, magnitude quantization, DC-bin
// smoothing, averaging, and noise-floor update, per §4.3.
func (p *Pipeline) processLoop() {
	defer p.wg.Done()
	fftSize := p.cfg.FFT.Size

	block1 := make([]complex128, fftSize/2)
	block2 := make([]complex128, fftSize/2)
	windowed1 := make([]complex128, fftSize)
	windowed2 := make([]complex128, fftSize)
	fftOut1 := make([]complex128, fftSize)
	fftOut2 := make([]complex128, fftSize)
	mag1 := make([]uint8, fftSize)
	mag2 := make([]uint8, fftSize)

	iqI1 := make([]int16, buffers.IQSamples)
	iqQ1 := make([]int16, buffers.IQSamples)
	iqI2 := make([]int16, buffers.IQSamples)
	iqQ2 := make([]int16, buffers.IQSamples)

	for p.running.Load() || p.sampleQueue.Size() > 0 {
		frame, ok := p.sampleQueue.Pop()
		if !ok {
			if !p.running.Load() {
				return
			}
			time.Sleep(emptyQueuePoll)
			continue
		}

		timer := p.counters.StartTimer(telemetry.StageCondition)

		if p.dc.MaybeResetOnFreqChange(frame.CenterFreqHz) {
			p.overlap = dsp.NewOverlapState(fftSize)
		}
		if wt := dsp.WindowType(p.control.WindowType()); wt != p.windowType {
			p.windowType = wt
			p.window = dsp.GenerateWindow(wt, fftSize)
		}

		// §6.1: the driver's frame length, not a fixed USB transfer
		// size, is authoritative; guard against a driver handing back
		// more samples than the preallocated per-block scratch holds.
		n := len(frame.Ch1I)
		if l := len(block1); n > l {
			n = l
		}
		for i := 0; i < n; i++ {
			ci, cq := p.dc.CorrectCh1(frame.Ch1I[i], frame.Ch1Q[i])
			block1[i] = complex(ci, cq)
			ci2, cq2 := p.dc.CorrectCh2(frame.Ch2I[i], frame.Ch2Q[i])
			block2[i] = complex(ci2, cq2)
		}

		p.overlap.ApplyCh1(windowed1, block1)
		p.overlap.ApplyCh2(windowed2, block2)
		dsp.ApplyWindow(windowed1, p.window)
		dsp.ApplyWindow(windowed2, p.window)

		p.fft.Forward(fftOut1, windowed1)
		p.fft.Forward(fftOut2, windowed2)

		dsp.MagnitudeDB(fftOut1, mag1)
		dsp.MagnitudeDB(fftOut2, mag2)
		dsp.SmoothDCBin(mag1)
		dsp.SmoothDCBin(mag2)
		p.averager.Apply(mag1, mag2)

		p.noiseCh1.Update(mag1, noisefloor.DefaultPercentile, noisefloor.DefaultAlpha)
		p.noiseCh2.Update(mag2, noisefloor.DefaultPercentile, noisefloor.DefaultAlpha)

		p.agc.Enabled = p.control.AGCEnabled()
		if p.agc.Update(mag1, mag2) {
			if err := p.control.SetGains(p.agc.GainRX1, p.agc.GainRX2); err != nil {
				log.Printf("pipeline: agc gain update rejected: %v", err)
			}
		}

		p.waterfall.Push(mag1, mag2)

		iqN := n
		if iqN > buffers.IQSamples {
			iqN = buffers.IQSamples
		}
		for i := 0; i < iqN; i++ {
			iqI1[i] = int16(real(block1[i]))
			iqQ1[i] = int16(imag(block1[i]))
			iqI2[i] = int16(real(block2[i]))
			iqQ2[i] = int16(imag(block2[i]))
		}
		p.iqSnap.Update(iqI1[:iqN], iqQ1[:iqN], iqI2[:iqN], iqQ2[:iqN], fftOut1, fftOut2)

		sf := SpectrumFrame{
			Ch1Mag:        append([]uint8(nil), mag1...),
			Ch2Mag:        append([]uint8(nil), mag2...),
			Ch1FFT:        append([]complex128(nil), fftOut1...),
			Ch2FFT:        append([]complex128(nil), fftOut2...),
			Ch1NoiseFloor: p.noiseCh1.Smoothed,
			Ch2NoiseFloor: p.noiseCh2.Smoothed,
			CenterFreqHz:  frame.CenterFreqHz,
			Timestamp:     time.Now(),
		}
		timer.Stop()

		p.counters.FramesProcessed.Add(1)
		if !p.fftQueue.Push(sf) {
			p.counters.FFTQueueFull.Add(1)
		}

		if p.sink != nil {
			if err := p.sink.PublishSpectrum(sink.SpectrumFrame{
				InstanceID:   sink.InstanceID(),
				Timestamp:    sf.Timestamp,
				CenterFreqHz: sf.CenterFreqHz,
				SampleRateHz: p.control.SampleRate(),
				Ch1Mag:       sf.Ch1Mag,
				Ch2Mag:       sf.Ch2Mag,
			}); err != nil {
				log.Printf("pipeline: publish spectrum frame: %v", err)
			}
		}
	}
}

// analyzeLoop runs CFAR detection and direction finding on each
// spectrum frame, updates the shared output buffers, and publishes
// results to the configured sink, per §4.7/§4.8/§4.11.
func (p *Pipeline) analyzeLoop() {
	defer p.wg.Done()
	for p.running.Load() || p.fftQueue.Size() > 0 {
		sf, ok := p.fftQueue.Pop()
		if !ok {
			if !p.running.Load() {
				return
			}
			time.Sleep(emptyQueuePoll)
			continue
		}

		timer := p.counters.StartTimer(telemetry.StageAnalyze)

		if mode := p.control.CFARMode(); mode != p.cfarMode {
			p.cfarMode = mode
			p.cfarParams = cfarParamsForMode(p.cfarParams, mode)
		}

		binStart, binEnd := p.control.DFBinRange()
		result := direction.Estimate(
			sf.Ch1FFT, sf.Ch2FFT, sf.Ch1Mag, sf.Ch2Mag,
			int(binStart), int(binEnd), sf.CenterFreqHz,
			p.cal, p.cfarParams, p.lastDoA,
			sf.Ch1NoiseFloor, sf.Ch2NoiseFloor,
			sf.Timestamp,
		)
		p.counters.FramesAnalyzed.Add(1)
		p.counters.DFInvocations.Add(1)
		if result.NumSignals > 0 {
			p.counters.Detections.Add(uint64(result.NumSignals))
		}

		p.doaResult.Set(result.Azimuth, result.BackAzimuth, result.PhaseDiffDeg, result.PhaseStdDeg, result.Confidence, result.SNRDb, result.Coherence)

		if p.xcorr.ShouldUpdate(crossCorrEvery) {
			mag, phase := computeCrossCorrelation(sf.Ch1FFT, sf.Ch2FFT)
			p.xcorr.Update(mag, phase)
		}

		timer.Stop()

		if p.sink != nil {
			frame := sink.DFFrame{
				InstanceID:   sink.InstanceID(),
				Timestamp:    sf.Timestamp,
				Azimuth:      result.Azimuth,
				BackAzimuth:  result.BackAzimuth,
				Confidence:   result.Confidence,
				SNRDb:        result.SNRDb,
				Coherence:    result.Coherence,
				IsHolding:    result.IsHolding,
				NumBins:      result.NumBins,
				NumSignals:   result.NumSignals,
				CenterFreqHz: sf.CenterFreqHz,
			}
			if err := p.sink.PublishDF(frame); err != nil {
				log.Printf("pipeline: publish df frame: %v", err)
			}
		}
	}
}

// computeCrossCorrelation takes the complex conjugate product of the
// two channel spectra and returns its magnitude and phase arrays, per
// compute_cross_correlation (SPEC_FULL.md §3).
func computeCrossCorrelation(fftCh1, fftCh2 []complex128) (magnitude, phase []float64) {
	n := len(fftCh1)
	magnitude = make([]float64, n)
	phase = make([]float64, n)
	for i := 0; i < n && i < len(fftCh2); i++ {
		re := real(fftCh1[i])*real(fftCh2[i]) + imag(fftCh1[i])*imag(fftCh2[i])
		im := imag(fftCh1[i])*real(fftCh2[i]) - real(fftCh1[i])*imag(fftCh2[i])
		magnitude[i] = math.Sqrt(re*re + im*im)
		phase[i] = math.Atan2(im, re)
	}
	return magnitude, phase
}
