package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/haivivi/voicegate/cmd/voicegate/internal/config"
	"github.com/haivivi/voicegate/pkg/audio/analyser"
	"github.com/haivivi/voicegate/pkg/audio/mic"
	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/audio/wavfile"
	"github.com/haivivi/voicegate/pkg/isolation"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/session"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// profiles is an opened profile store and its backend.
type profiles struct {
	*voiceprint.Store
	kv  kv.Store
	ext voiceprint.Extractor
}

func (p *profiles) Close() error {
	return p.kv.Close()
}

func newExtractor(cfg *config.Config) (voiceprint.Extractor, error) {
	ecfg := voiceprint.DefaultExtractorConfig()
	ecfg.Bank.SampleRate = isolation.SampleRate
	ecfg.Bank.FFTSize = cfg.Analysis.FFTSize
	ecfg.Bank.FloorDB = cfg.Analysis.MinDecibels
	return voiceprint.NewSpectralExtractor(ecfg)
}

// openProfiles opens the configured profile backend and loads the store.
func openProfiles(ctx context.Context, cfg *config.Config) (*profiles, error) {
	ext, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Profiles.StoreOptions(log)
	if err != nil {
		return nil, err
	}
	backend, err := cfg.Profiles.OpenKV(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("open %s profile backend: %w", cfg.Profiles.Backend, err)
	}
	opts = append(opts, voiceprint.WithDimension(ext.Dimension()))
	return &profiles{
		Store: voiceprint.Open(ctx, backend, opts...),
		kv:    backend,
		ext:   ext,
	}, nil
}

// processorOptions maps the config onto isolation options.
func processorOptions(cfg *config.Config, p *profiles) []isolation.Option {
	return []isolation.Option{
		isolation.WithLogger(log),
		isolation.WithStore(p.Store),
		isolation.WithExtractor(p.ext),
		isolation.WithScheduler(isolation.NewTicker(cfg.Gate.Interval)),
		isolation.WithAnalysis(analyser.Config{
			FFTSize:     cfg.Analysis.FFTSize,
			Smoothing:   cfg.Analysis.Smoothing,
			MinDecibels: cfg.Analysis.MinDecibels,
		}),
		isolation.WithGate(isolation.GateConfig{
			ThresholdDB: cfg.Gate.ThresholdDB,
			ClosedGain:  cfg.Gate.ClosedGain,
		}),
		isolation.WithHighPass(cfg.Gate.HighPassCutoff, cfg.Gate.HighPassQ),
		isolation.WithVerifyThreshold(cfg.Verify.Threshold),
	}
}

// sessionOptions maps the config onto session options.
func sessionOptions(cfg *config.Config) []session.Option {
	return []session.Option{
		session.WithLogger(log),
		session.WithHangover(cfg.Verify.Hangover),
		session.WithTrackerOptions(
			voiceprint.WithWindow(cfg.Verify.Window),
			voiceprint.WithMinRatio(cfg.Verify.MinRatio),
		),
	}
}

// openInput opens a WAV file paced to real time, or the microphone when
// file is empty.
func openInput(ctx context.Context, cfg *config.Config, file string) (pcm.Stream, error) {
	if file != "" {
		st, err := wavfile.Open(file)
		if err != nil {
			return nil, err
		}
		log.Debug("reading wav file", "path", file, "format", st.Format())
		return wavfile.Paced(ctx, st), nil
	}
	st, err := mic.Open(mic.Config{
		Device:          cfg.Audio.Device,
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("capturing from microphone", "device", cfg.Audio.Device, "format", st.Format())
	return st, nil
}

// pipeline is a running processor with its session.
type pipeline struct {
	proc *isolation.Processor
	sess *session.Session
	in   pcm.Stream
	out  pcm.Stream
}

func startPipeline(ctx context.Context, cfg *config.Config, p *profiles, file string, sopts ...session.Option) (*pipeline, error) {
	proc, err := isolation.New(processorOptions(cfg, p)...)
	if err != nil {
		return nil, err
	}
	in, err := openInput(ctx, cfg, file)
	if err != nil {
		return nil, err
	}
	out := proc.Initialize(ctx, in)
	sess := session.New(proc, append(sessionOptions(cfg), sopts...)...)
	return &pipeline{proc: proc, sess: sess, in: in, out: out}, nil
}

// drain consumes the processed audio, writing it to w when non-nil.
func (pl *pipeline) drain(w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	_, err := pcm.Copy(w, pl.out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (pl *pipeline) Close() {
	pl.in.Close()
	pl.proc.Cleanup()
}

// untilSpeech ticks the session until voice has been detected for settle
// consecutive ticks, then calls fn once. It fails when the input ends or
// timeout passes first.
func (pl *pipeline) untilSpeech(ctx context.Context, tick time.Duration, settle int, timeout time.Duration, fn func(session.Event) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var streak int
	errDone := errors.New("done")
	err := pl.sess.Run(ctx, tick, func(ev session.Event) {
		if !ev.Activity.Detected {
			streak = 0
			return
		}
		streak++
		if streak < settle {
			return
		}
		if err := fn(ev); err != nil {
			cancel(err)
			return
		}
		cancel(errDone)
	})
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, errDone) {
			return nil
		}
		if errors.Is(cause, context.DeadlineExceeded) {
			return fmt.Errorf("no speech detected within %s", timeout)
		}
		return cause
	}
	if err != nil {
		return err
	}
	return errors.New("input ended before speech was detected")
}
