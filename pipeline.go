package main

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event names emitted to subscribers.
const (
	eventRawSample      = "eeg_sample"
	eventFilteredSample = "filtered_eeg_sample"
	eventBandPowers     = "frequency_bands"
)

// EventSink receives the pipeline's emissions. The WebSocket hub implements it
// in production; tests substitute a recorder.
type EventSink interface {
	Broadcast(event string, payload interface{})
}

// pulledSample is a real sample handed from the pull worker to the tick loop,
// tagged with the connection epoch it was pulled under.
type pulledSample struct {
	epoch  uint64
	values []float64
}

// Processor runs the acquisition pipeline: a fixed-cadence tick loop that
// obtains a sample (real or synthetic), filters it, updates the rolling
// windows, and emits results. Two states only: stopped and running.
//
// All mutable pipeline state (filter chain, sample store, epoch) is guarded by
// mu; one logical operation (a tick, or a reconfigure after connect/disconnect)
// holds it at a time. Blocking network pulls happen on a dedicated worker
// goroutine, never under mu, so a stalled source costs at most skipped
// emissions, never a stalled cadence.
type Processor struct {
	config  *PipelineConfig
	streams *StreamManager
	sink    EventSink
	metrics *PrometheusMetrics
	synth   *SignalSynthesizer

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	chain    *FilterChain
	store    *SampleStore
	analyzer *BandPowerAnalyzer
	epoch    uint64

	startTime    time.Time
	tickCount    uint64
	underruns    uint64
	lastAnalysis float64
	lastBands    []BandPowers

	pullMu     sync.Mutex
	pullCh     chan pulledSample
	pullCancel context.CancelFunc
}

// NewProcessor wires the pipeline together in the stopped state, sized for the
// default channel count.
func NewProcessor(config *PipelineConfig, streams *StreamManager, sink EventSink, metrics *PrometheusMetrics) *Processor {
	return &Processor{
		config:   config,
		streams:  streams,
		sink:     sink,
		metrics:  metrics,
		synth:    NewSignalSynthesizer(config.SynthSeed),
		chain:    NewFilterChain(defaultChannelCount),
		store:    NewSampleStore(defaultChannelCount, config.WindowSize),
		analyzer: NewBandPowerAnalyzer(config.SampleRate, config.WindowSize),
		pullCh:   make(chan pulledSample, 1),
	}
}

// Connect resolves and binds a stream, then resizes the filter chain and
// sample windows to the new channel count. The blocking discovery runs without
// the pipeline lock held.
func (p *Processor) Connect(streamName string) (*StreamInfo, error) {
	info, err := p.streams.Connect(streamName)
	if err != nil {
		return nil, err
	}
	p.reconfigure()
	return info, nil
}

// Disconnect drops the stream binding and restores the default channel count.
func (p *Processor) Disconnect() {
	p.streams.Disconnect()
	p.reconfigure()
}

// CurrentStreamInfo is a non-blocking read of the active descriptor.
func (p *Processor) CurrentStreamInfo() *StreamInfo {
	return p.streams.CurrentStreamInfo()
}

// reconfigure synchronizes the pipeline's channel-count-sized state with the
// connection manager. Channel count, both windows and both filter histories
// change together under one lock hold, so no tick can observe a partial
// resize.
func (p *Processor) reconfigure() {
	p.mu.Lock()
	p.epoch = p.streams.Epoch()
	channels := p.streams.ChannelCount()
	p.chain = NewFilterChain(channels)
	p.store = NewSampleStore(channels, p.config.WindowSize)
	isReal := p.streams.IsReal()
	p.mu.Unlock()

	p.restartPullWorker(isReal)

	if p.metrics != nil {
		p.metrics.SetConnected(isReal)
	}
	log.Printf("Pipeline reconfigured: %d channels, real=%v", channels, isReal)
}

// restartPullWorker stops any running pull worker and starts a fresh one when
// a real connection is active.
func (p *Processor) restartPullWorker(isReal bool) {
	p.pullMu.Lock()
	defer p.pullMu.Unlock()

	if p.pullCancel != nil {
		p.pullCancel()
		p.pullCancel = nil
	}

	// Drain any sample pulled under the previous connection
	select {
	case <-p.pullCh:
	default:
	}

	if !isReal {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.pullCancel = cancel
	go p.pullWorker(ctx)
}

// pullWorker continuously pulls from the bound stream and deposits the latest
// sample into a one-deep mailbox. The tick loop drains it without blocking;
// when the mailbox is full the older sample is replaced.
func (p *Processor) pullWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !p.pullOnce() {
			// Nothing ready; don't spin faster than the tick cadence
			time.Sleep(p.config.tickPeriod())
		}
	}
}

// pullOnce attempts one pull and deposits the result. The epoch is captured
// before the pull begins, so a sample from a connection superseded mid-pull
// stays tagged with the connection it actually came from and the tick loop's
// epoch gate rejects it. Returns false when no sample was ready.
func (p *Processor) pullOnce() bool {
	epoch := p.streams.Epoch()
	values := p.streams.PullSample()
	if values == nil {
		return false
	}

	s := pulledSample{epoch: epoch, values: values}
	select {
	case p.pullCh <- s:
	default:
		select {
		case <-p.pullCh:
		default:
		}
		select {
		case p.pullCh <- s:
		default:
		}
	}
	return true
}

// Start transitions stopped -> running and launches the tick loop. Calling it
// while running is a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		log.Printf("Pipeline already running, ignoring start request")
		return
	}
	p.running = true
	p.startTime = time.Now()
	p.tickCount = 0
	p.lastAnalysis = 0
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	log.Printf("Pipeline started: %v tick, %.0f Hz nominal, %d-sample windows",
		p.config.tickPeriod(), p.config.SampleRate, p.config.WindowSize)
	go p.run(ctx)
}

// Stop ends the tick loop and waits for it to exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.restartPullWorker(false)
	log.Printf("Pipeline stopped after %d ticks (%d underruns)", p.tickCount, p.underruns)
}

// run is the fixed-period tick loop.
func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.tickPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(time.Since(p.startTime).Seconds())
		}
	}
}

// tick processes one cadence step. Every failure path logs and returns; the
// loop itself never terminates on a bad tick.
func (p *Processor) tick(timestamp float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tickCount++
	if p.metrics != nil {
		p.metrics.IncTicks()
	}

	// Pick up a connect/disconnect that happened since the last tick
	if e := p.streams.Epoch(); e != p.epoch {
		p.epoch = e
		channels := p.streams.ChannelCount()
		p.chain = NewFilterChain(channels)
		p.store = NewSampleStore(channels, p.config.WindowSize)
	}

	isReal := p.streams.IsReal()
	var sample *EEGSample

	if isReal {
		select {
		case pulled := <-p.pullCh:
			if pulled.epoch == p.epoch {
				sample = &EEGSample{Timestamp: timestamp, Channels: pulled.values}
			}
		default:
		}
		if sample == nil {
			// Underrun: no real sample ready this tick
			p.underruns++
			if p.metrics != nil {
				p.metrics.IncUnderruns()
			}
			if !p.config.SynthesizeOnUnderrun {
				// Skip this tick's emission entirely; the cadence continues
				return
			}
			sample = p.synth.Generate(timestamp, p.store.ChannelCount())
		}
	} else {
		sample = p.synth.Generate(timestamp, p.store.ChannelCount())
	}

	filtered := p.chain.Apply(sample)
	p.store.Update(sample, filtered)

	if p.metrics != nil {
		p.metrics.IncSamples(isReal)
	}

	// Emission may be throttled to every Nth tick; buffers and filter state
	// update every tick regardless.
	if p.config.EmitEveryNTicks <= 1 || p.tickCount%uint64(p.config.EmitEveryNTicks) == 0 {
		p.sink.Broadcast(eventRawSample, sample)
		p.sink.Broadcast(eventFilteredSample, filtered)
	}

	// Band-power analysis runs on its own coarser cadence, always after the
	// buffer update above so a cycle never sees a partially updated window.
	if timestamp-p.lastAnalysis >= p.config.analysisInterval().Seconds() {
		p.lastAnalysis = timestamp
		bands := p.analyzer.Analyze(p.store, timestamp)
		p.lastBands = bands
		p.sink.Broadcast(eventBandPowers, bands)
		if p.metrics != nil {
			p.metrics.ObserveBandPowers(bands)
			for ch := 0; ch < p.store.ChannelCount(); ch++ {
				p.metrics.SetWindowFill(ch, p.store.RawLen(ch))
			}
		}
	}
}

// Running reports whether the tick loop is active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PipelineStats is a point-in-time snapshot for the /stats endpoint and the
// MQTT publisher.
type PipelineStats struct {
	Running        bool    `json:"running"`
	Ticks          uint64  `json:"ticks"`
	Underruns      uint64  `json:"underruns"`
	Channels       int     `json:"channels"`
	WindowSize     int     `json:"window_size"`
	WindowFill     int     `json:"window_fill"`
	RealConnection bool    `json:"real_connection"`
	Elapsed        float64 `json:"elapsed_seconds"`
}

// Stats returns a snapshot of pipeline counters.
func (p *Processor) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PipelineStats{
		Running:        p.running,
		Ticks:          p.tickCount,
		Underruns:      p.underruns,
		Channels:       p.store.ChannelCount(),
		WindowSize:     p.store.WindowSize(),
		RealConnection: p.streams.IsReal(),
	}
	if p.running {
		stats.Elapsed = time.Since(p.startTime).Seconds()
	}
	if stats.Channels > 0 {
		stats.WindowFill = p.store.RawLen(0)
	}
	return stats
}

// LastBandPowers returns the most recent analysis cycle's output.
func (p *Processor) LastBandPowers() []BandPowers {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]BandPowers, len(p.lastBands))
	copy(out, p.lastBands)
	return out
}
