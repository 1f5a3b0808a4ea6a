// Package mic captures audio from a PortAudio input device as a pcm.Stream.
//
// For go build: requires portaudio installed via pkg-config (brew install portaudio).
package mic

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// Config selects the capture format. Zero fields take the defaults.
type Config struct {
	// Device is the input device name; empty means the system default.
	Device          string
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Defaults.
const (
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultFramesPerBuffer = 320
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return c
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"maxInputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
	IsDefault         bool    `json:"isDefault"`
}

// Devices lists the devices that can capture.
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("mic: list devices: %w", err)
	}
	var def string
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		def = d.Name
	}
	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.Name == def,
		})
	}
	return out, nil
}

// Stream is a running capture. It implements pcm.Stream.
type Stream struct {
	format pcm.Format

	stream *portaudio.Stream
	closed atomic.Bool
	once   sync.Once

	mu  sync.Mutex
	buf []float32
	pos int
}

var _ pcm.Stream = (*Stream)(nil)

// Open starts capturing with cfg.
func Open(cfg Config) (*Stream, error) {
	cfg = cfg.withDefaults()
	format := pcm.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: initialize: %w", err)
	}

	buf := make([]float32, cfg.FramesPerBuffer*cfg.Channels)
	st, err := openStream(cfg, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := st.Start(); err != nil {
		st.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("mic: start: %w", err)
	}
	return &Stream{
		format: format,
		stream: st,
		buf:    buf,
		pos:    len(buf),
	}, nil
}

func openStream(cfg Config, buf []float32) (*portaudio.Stream, error) {
	if cfg.Device == "" {
		st, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, buf)
		if err != nil {
			return nil, fmt.Errorf("mic: open default input: %w", err)
		}
		return st, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("mic: list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name != cfg.Device || d.MaxInputChannels <= 0 {
			continue
		}
		st, err := portaudio.OpenStream(portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   d,
				Channels: cfg.Channels,
				Latency:  d.DefaultLowInputLatency,
			},
			SampleRate:      float64(cfg.SampleRate),
			FramesPerBuffer: cfg.FramesPerBuffer,
		}, buf)
		if err != nil {
			return nil, fmt.Errorf("mic: open %q: %w", cfg.Device, err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("mic: no input device named %q", cfg.Device)
}

// Format returns the capture format.
func (s *Stream) Format() pcm.Format {
	return s.format
}

// Read blocks until the device delivers a buffer, then copies from it.
func (s *Stream) Read(p []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return 0, io.EOF
	}
	if s.pos >= len(s.buf) {
		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			if s.closed.Load() {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("mic: read: %w", err)
		}
		s.pos = 0
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += n
	return n, nil
}

// Close stops the device and unblocks a pending Read. Reads after Close
// return io.EOF.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		s.stream.Abort()
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.stream.Close()
		portaudio.Terminate()
	})
	return err
}
