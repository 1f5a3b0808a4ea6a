// Package session runs the per-tick collaborator loop over an isolation
// processor: query activity, adapt the master gain, optionally verify the
// speaker, and report each tick as an Event.
//
// The processor supplies snapshot judgments only. A session adds the two
// pieces of state a host needs to act on them: an activity hangover, so a
// short pause inside an utterance does not read as silence, and a
// voiceprint.Tracker that smooths per-tick verification into a speaker
// status.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/voicegate/pkg/isolation"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Processor is the part of isolation.Processor a session drives.
type Processor interface {
	DetectVoiceActivity() isolation.VoiceActivity
	AdaptiveNoiseReduction(noiseLevel float64)
	VerifySpeaker(ctx context.Context) isolation.Verification
	Gains() (gate, master float32)
	Done() <-chan struct{}
}

// Event is one tick of a session.
type Event struct {
	Type         string                  `json:"type"`
	Session      string                  `json:"session"`
	Seq          uint64                  `json:"seq"`
	At           time.Time               `json:"at"`
	Activity     isolation.VoiceActivity `json:"activity"`
	Speaking     bool                    `json:"speaking"`
	Verification *isolation.Verification `json:"verification,omitempty"`
	Speaker      *voiceprint.Attribution `json:"speaker,omitempty"`
	GateGain     float32                 `json:"gateGain"`
	MasterGain   float32                 `json:"masterGain"`
}

// EventType is the Type of tick events.
const EventType = "activity"

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id (default a random UUID).
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithVerify enables speaker verification on ticks with voice.
func WithVerify(on bool) Option {
	return func(s *Session) {
		s.verify = on
	}
}

// WithAdaptiveNoise feeds each tick's noise level back into the master
// gain (default on).
func WithAdaptiveNoise(on bool) Option {
	return func(s *Session) {
		s.adaptive = on
	}
}

// WithHangover keeps Speaking true for n ticks after the last detection
// (default 10).
func WithHangover(n int) Option {
	return func(s *Session) {
		if n >= 0 {
			s.hangover = n
		}
	}
}

// WithTracker replaces the speaker tracker.
func WithTracker(t *voiceprint.Tracker) Option {
	return func(s *Session) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithTrackerOptions configures the session's own tracker. Unlike
// WithTracker it is safe to share between sessions.
func WithTrackerOptions(opts ...voiceprint.TrackerOption) Option {
	return func(s *Session) {
		s.trackerOpts = append(s.trackerOpts, opts...)
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session is safe for concurrent use; ticks are serialized.
type Session struct {
	id       string
	proc     Processor
	log      *slog.Logger
	adaptive bool
	hangover int

	trackerOpts []voiceprint.TrackerOption

	mu       sync.Mutex
	verify   bool
	tracker  *voiceprint.Tracker
	seq      uint64
	quiet    int
	speaking bool
}

// New creates a Session over proc.
func New(proc Processor, opts ...Option) *Session {
	s := &Session{
		proc:     proc,
		log:      slog.Default(),
		adaptive: true,
		hangover: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = voiceprint.NewTracker(s.trackerOpts...)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = s.log.With("session", s.id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SetVerify turns speaker verification on or off. Turning it off resets
// the tracker.
func (s *Session) SetVerify(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verify && !on {
		s.tracker.Reset()
	}
	s.verify = on
}

// Tick runs one iteration and returns its event.
func (s *Session) Tick(ctx context.Context) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev := Event{
		Type:     EventType,
		Session:  s.id,
		Seq:      s.seq,
		At:       time.Now().UTC(),
		Activity: s.proc.DetectVoiceActivity(),
	}
	if s.adaptive {
		s.proc.AdaptiveNoiseReduction(ev.Activity.NoiseLevel)
	}

	if ev.Activity.Detected {
		if !s.speaking {
			s.log.Debug("speech started", "confidence", ev.Activity.Confidence)
		}
		s.speaking = true
		s.quiet = 0
	} else if s.speaking {
		s.quiet++
		if s.quiet > s.hangover {
			s.speaking = false
			s.log.Debug("speech ended")
		}
	}
	ev.Speaking = s.speaking

	if s.verify && s.speaking {
		v := s.proc.VerifySpeaker(ctx)
		ev.Verification = &v
		id := ""
		if v.Verified && v.Profile != nil {
			id = v.Profile.ID
		}
		ev.Speaker = s.tracker.Observe(id)
	}

	ev.GateGain, ev.MasterGain = s.proc.Gains()
	return ev
}

// Run ticks every interval and passes each event to fn until ctx is done
// or the processor's input ends. It returns ctx.Err() on cancellation and
// nil when the input ended.
func (s *Session) Run(ctx context.Context, interval time.Duration, fn func(Event)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	done := s.proc.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			s.log.Debug("input ended")
			return nil
		case <-tk.C:
			fn(s.Tick(ctx))
		}
	}
}
