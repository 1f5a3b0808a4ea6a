// Package isolation cleans a live capture stream and judges what it hears.
//
// A Processor wires the stream through a fixed graph
//
//	capture → resample to 16 kHz mono → high-pass 85 Hz → gate gain
//	        → master gain → analyser → output
//
// and keeps a noise gate running on a Scheduler. The analyser window backs
// the snapshot queries: DetectVoiceActivity, ExtractVoiceFeatures and the
// enrollment and verification built on them.
//
// Every failure on the audio path degrades instead of surfacing: a graph
// that cannot be built leaves the input untouched, and analysis with no
// graph returns zero values.
package isolation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/haivivi/voicegate/pkg/audio/analyser"
	"github.com/haivivi/voicegate/pkg/audio/filter"
	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// SampleRate is the internal processing rate.
const SampleRate = 16000

// Format is the format of every output stream.
var Format = pcm.L16Mono16K

// ErrNotReady is returned by analysis calls when no graph is live.
var ErrNotReady = errors.New("isolation: audio graph not initialized")

// blockSize is the number of samples pulled from the input per iteration.
const blockSize = 320

// Processor is one processing session. It is safe for concurrent use;
// independent sessions use independent processors and may share a
// voiceprint.Store.
type Processor struct {
	log             *slog.Logger
	sched           Scheduler
	store           *voiceprint.Store
	extractor       voiceprint.Extractor
	analysis        analyser.Config
	gate            GateConfig
	hpCutoff, hpQ   float64
	verifyThreshold float64
	outLimit        int

	mu      sync.Mutex
	g       *graph
	src     *source
	current *voiceprint.Profile
}

// graph is the live node chain of one Initialize call.
type graph struct {
	src    *source
	out    *pcm.Queue
	hp     *filter.Biquad
	an     *analyser.Analyser
	cancel context.CancelFunc
	done   chan struct{}
	stop   func()

	gateGain   *pcm.AtomicFloat32
	masterGain *pcm.AtomicFloat32

	// scratch for analysis reads, guarded by mu
	mu   sync.Mutex
	td   []float32
	td64 []float64
	db   []float32
}

// New creates a Processor.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		log:             slog.Default(),
		analysis:        analyser.DefaultConfig(),
		gate:            DefaultGateConfig(),
		hpCutoff:        85,
		hpQ:             1,
		verifyThreshold: 0.75,
		outLimit:        2 * SampleRate,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil {
		p.sched = NewTicker(DefaultGateInterval)
	}
	if p.extractor == nil {
		cfg := voiceprint.DefaultExtractorConfig()
		cfg.Bank.SampleRate = SampleRate
		cfg.Bank.FFTSize = p.analysis.FFTSize
		cfg.Bank.FloorDB = p.analysis.MinDecibels
		e, err := voiceprint.NewSpectralExtractor(cfg)
		if err != nil {
			return nil, fmt.Errorf("isolation: %w", err)
		}
		p.extractor = e
	}
	if p.store == nil {
		p.store = voiceprint.Open(context.Background(), kv.NewMemory(),
			voiceprint.WithDimension(p.extractor.Dimension()),
			voiceprint.WithLogger(p.log))
	}
	return p, nil
}

// Store returns the profile store.
func (p *Processor) Store() *voiceprint.Store {
	return p.store
}

// Gate returns the noise gate configuration.
func (p *Processor) Gate() GateConfig {
	return p.gate
}

// Initialize builds the graph over in and returns the processed stream.
// A live graph is torn down first. Initializing again on the same input
// continues from where the previous graph stopped reading. When the graph
// cannot be built the failure is logged and in is returned unchanged.
func (p *Processor) Initialize(ctx context.Context, in pcm.Stream) pcm.Stream {
	p.Cleanup()
	if in == nil {
		p.log.Error("audio pipeline init failed", "error", "nil input stream")
		return in
	}
	g, err := p.build(in)
	if err != nil {
		p.log.Error("audio pipeline init failed, passing input through", "format", in.Format(), "error", err)
		return in
	}

	pctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	go p.pump(pctx, g)
	g.stop = p.sched.Start(func() { p.gateTick(g) })

	p.mu.Lock()
	p.g = g
	p.mu.Unlock()
	p.log.Info("audio pipeline initialized", "input", in.Format(), "output", Format)
	return g.out
}

func (p *Processor) build(in pcm.Stream) (*graph, error) {
	hp, err := filter.NewHighPass(SampleRate, p.hpCutoff, p.hpQ)
	if err != nil {
		return nil, err
	}
	cfg := p.analysis
	cfg.SampleRate = SampleRate
	an, err := analyser.New(cfg)
	if err != nil {
		return nil, err
	}
	src, err := p.sourceFor(in)
	if err != nil {
		return nil, err
	}
	return &graph{
		src:        src,
		out:        pcm.NewQueue(Format, p.outLimit),
		hp:         hp,
		an:         an,
		gateGain:   pcm.NewAtomicFloat32(1),
		masterGain: pcm.NewAtomicFloat32(1),
	}, nil
}

// sourceFor returns the reader of in, reusing the current one when in is
// the stream it already reads.
func (p *Processor) sourceFor(in pcm.Stream) (*source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.src != nil && p.src.in == in {
		return p.src, nil
	}
	src, err := newSource(in)
	if err != nil {
		return nil, err
	}
	if p.src != nil {
		p.src.stop()
	}
	p.src = src
	return src, nil
}

// pump moves blocks from the input through the chain until the input ends
// or the graph is cancelled.
func (p *Processor) pump(ctx context.Context, g *graph) {
	defer close(g.done)
	defer g.out.Close()
	for {
		block, ok, end := g.src.next(ctx)
		if end {
			if err := g.src.err; err != nil && !errors.Is(err, io.EOF) {
				p.log.Warn("capture stream failed", "error", err)
				g.out.CloseWithError(err)
			}
			return
		}
		if !ok {
			return
		}
		g.hp.ProcessBlock(block)
		gain := g.gateGain.Load() * g.masterGain.Load()
		if gain != 1 {
			for i := range block {
				block[i] *= gain
			}
		}
		g.an.Write(block)
		if err := g.out.Push(block); err != nil {
			return
		}
	}
}

// Cleanup stops the gate and releases the graph, returning once the graph
// no longer reads its input. The output stream returns io.EOF once drained.
// The input stream is not closed; it belongs to the caller. Cleanup is
// idempotent.
func (p *Processor) Cleanup() {
	p.mu.Lock()
	g := p.g
	p.g = nil
	p.mu.Unlock()
	if g == nil {
		return
	}
	g.stop()
	g.cancel()
	<-g.done
	g.out.Close()
	p.log.Info("audio pipeline released")
}

// Done returns a channel closed when the current graph stops reading its
// input, typically because the input ended. It returns nil when no graph is
// live.
func (p *Processor) Done() <-chan struct{} {
	g := p.live()
	if g == nil {
		return nil
	}
	return g.done
}

// Gains returns the current gate and master gains, or zeros when no graph
// is live.
func (p *Processor) Gains() (gate, master float32) {
	g := p.live()
	if g == nil {
		return 0, 0
	}
	return g.gateGain.Load(), g.masterGain.Load()
}

// AdaptiveNoiseReduction lowers the master gain when the measured noise
// level is high: 0.6 above 0.1, 0.8 above 0.05, otherwise 1.0.
func (p *Processor) AdaptiveNoiseReduction(noiseLevel float64) {
	g := p.live()
	if g == nil {
		return
	}
	gain := float32(1)
	switch {
	case noiseLevel > 0.1:
		gain = 0.6
	case noiseLevel > 0.05:
		gain = 0.8
	}
	if prev := g.masterGain.Swap(gain); prev != gain {
		p.log.Debug("master gain", "gain", gain, "noise_level", noiseLevel)
	}
}

func (p *Processor) live() *graph {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.g
}
