package isolation

import (
	"log/slog"

	"github.com/haivivi/voicegate/pkg/audio/analyser"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithScheduler sets the scheduler driving the noise gate
// (default NewTicker(DefaultGateInterval)).
func WithScheduler(s Scheduler) Option {
	return func(p *Processor) {
		if s != nil {
			p.sched = s
		}
	}
}

// WithStore sets the profile store shared with other processors. The
// default is an in-memory store that is not persisted.
func WithStore(s *voiceprint.Store) Option {
	return func(p *Processor) {
		if s != nil {
			p.store = s
		}
	}
}

// WithExtractor replaces the spectral voice print extractor.
func WithExtractor(e voiceprint.Extractor) Option {
	return func(p *Processor) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithAnalysis sets the FFT size, smoothing and decibel floor of the
// analyser. The sample rate is always SampleRate.
func WithAnalysis(cfg analyser.Config) Option {
	return func(p *Processor) {
		cfg.SampleRate = SampleRate
		p.analysis = cfg
	}
}

// WithGate sets the noise gate threshold and closed gain.
func WithGate(cfg GateConfig) Option {
	return func(p *Processor) {
		p.gate = cfg
	}
}

// WithHighPass sets the high-pass cutoff in Hz and its Q.
func WithHighPass(cutoff, q float64) Option {
	return func(p *Processor) {
		p.hpCutoff, p.hpQ = cutoff, q
	}
}

// WithVerifyThreshold sets the similarity a match needs to verify
// (default 0.75).
func WithVerifyThreshold(th float64) Option {
	return func(p *Processor) {
		p.verifyThreshold = th
	}
}

// WithOutputBuffer sets how many output samples are buffered before the
// oldest are dropped (default 2 s).
func WithOutputBuffer(samples int) Option {
	return func(p *Processor) {
		if samples > 0 {
			p.outLimit = samples
		}
	}
}
