package resampler

import (
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// Resampler converts blocks of mono float32 samples between two rates.
// It keeps filter state between calls, so consecutive blocks of one stream
// must go through the same Resampler. It is not safe for concurrent use.
type Resampler struct {
	srcRate int
	dstRate int
	rs      resampling.Resampler
	in      []float64
	out     []float32
}

// New creates a Resampler from srcRate to dstRate. When the rates are equal
// Process returns its input unchanged.
func New(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return r, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create %d -> %d: %w", srcRate, dstRate, err)
	}
	r.rs = rs
	return r, nil
}

// Process resamples one block. The returned slice is reused by the next
// call.
func (r *Resampler) Process(block []float32) ([]float32, error) {
	if r.rs == nil {
		return block, nil
	}
	r.in = r.in[:0]
	for _, s := range block {
		r.in = append(r.in, float64(s))
	}
	output, err := r.rs.Process(r.in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	r.out = r.out[:0]
	for _, s := range output {
		r.out = append(r.out, float32(s))
	}
	return r.out, nil
}

// Stream adapts a capture stream of any rate and channel count into a mono
// stream at a fixed rate.
type Stream struct {
	src    pcm.Stream
	format pcm.Format
	rs     *Resampler

	channels int
	readBuf  []float32
	mono     []float32
	pending  []float32
}

// NewStream wraps src so that reads yield mono samples at dstRate.
func NewStream(src pcm.Stream, dstRate int) (*Stream, error) {
	f := src.Format()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("resampler: source: %w", err)
	}
	rs, err := New(f.SampleRate, dstRate)
	if err != nil {
		return nil, err
	}
	return &Stream{
		src:      src,
		format:   pcm.Format{SampleRate: dstRate, Channels: 1},
		rs:       rs,
		channels: f.Channels,
	}, nil
}

// Format returns the mono output format.
func (s *Stream) Format() pcm.Format {
	return s.format
}

// Read fills p with converted samples. It may return fewer samples than
// requested; it returns io.EOF only after the source is exhausted.
func (s *Stream) Read(p []float32) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.pending) == 0 {
		want := len(p) * s.channels * s.rs.srcRate / s.rs.dstRate
		if want < s.channels {
			want = s.channels
		}
		if cap(s.readBuf) < want {
			s.readBuf = make([]float32, want)
		}
		n, err := s.src.Read(s.readBuf[:want])
		if n > 0 {
			s.mono = pcm.Downmix(s.mono[:0], s.readBuf[:n], s.channels)
			out, perr := s.rs.Process(s.mono)
			if perr != nil {
				return 0, perr
			}
			s.pending = append(s.pending, out...)
		}
		if err != nil && len(s.pending) == 0 {
			return 0, err
		}
		if err != nil {
			break
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		s.pending = s.pending[:0:0]
	}
	return n, nil
}

// Close closes the source stream.
func (s *Stream) Close() error {
	return s.src.Close()
}

var _ pcm.Stream = (*Stream)(nil)
var _ io.Closer = (*Stream)(nil)
