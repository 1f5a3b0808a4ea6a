// Package wavfile reads and writes WAV files as pcm streams.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// ErrInvalid is returned for input that is not a PCM WAV file.
var ErrInvalid = errors.New("wavfile: not a valid PCM wav file")

// Decode reads a whole WAV file into interleaved float32 samples.
func Decode(r io.ReadSeeker) (pcm.Format, []float32, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return pcm.Format{}, nil, ErrInvalid
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return pcm.Format{}, nil, fmt.Errorf("wavfile: decode: %w", err)
	}
	format := pcm.Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	if err := format.Validate(); err != nil {
		return pcm.Format{}, nil, fmt.Errorf("wavfile: %w", err)
	}
	depth := int(d.BitDepth)
	if depth <= 0 || depth > 32 {
		return pcm.Format{}, nil, fmt.Errorf("%w: bit depth %d", ErrInvalid, depth)
	}
	scale := float32(int64(1) << (depth - 1))
	// 8-bit WAV is unsigned with its midpoint at 128.
	offset := 0
	if depth == 8 {
		offset = 128
	}
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v-offset) / scale
	}
	return format, out, nil
}

// Open decodes the file at path and returns it as a stream at the file's
// own rate and channel count.
func Open(path string) (*pcm.SliceStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w", err)
	}
	defer f.Close()
	format, samples, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pcm.NewSliceStream(format, samples), nil
}

// Write stores samples as a 16-bit PCM WAV file.
func Write(path string, format pcm.Format, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavfile: %w", err)
	}
	w := NewWriter(f, format)
	if err := w.Write(samples); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Writer encodes 16-bit PCM incrementally. Close finalizes the header but
// does not close the underlying file.
type Writer struct {
	enc    *wav.Encoder
	format pcm.Format
	buf    *audio.IntBuffer
}

// NewWriter starts a 16-bit PCM WAV file on w.
func NewWriter(w io.WriteSeeker, format pcm.Format) *Writer {
	return &Writer{
		enc:    wav.NewEncoder(w, format.SampleRate, 16, format.Channels, 1),
		format: format,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: 16,
		},
	}
}

// Write appends samples, clipping them to [-1, 1].
func (w *Writer) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	data := w.buf.Data[:0]
	for _, s := range samples {
		data = append(data, int(pcm.ToInt16(s)))
	}
	w.buf.Data = data
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wavfile: write: %w", err)
	}
	return nil
}

// Close writes the final header sizes.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("wavfile: close: %w", err)
	}
	return nil
}

// Paced wraps s so reads advance no faster than real time, the way a
// capture device would deliver them.
func Paced(ctx context.Context, s pcm.Stream) pcm.Stream {
	return &paced{ctx: ctx, Stream: s}
}

type paced struct {
	pcm.Stream
	ctx   context.Context
	start time.Time
	read  int
}

func (p *paced) Read(buf []float32) (int, error) {
	if p.start.IsZero() {
		p.start = time.Now()
	}
	f := p.Format()
	due := p.start.Add(f.Duration(p.read))
	if wait := time.Until(due); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-p.ctx.Done():
			t.Stop()
			return 0, io.EOF
		case <-t.C:
		}
	}
	n, err := p.Stream.Read(buf)
	p.read += n
	return n, err
}
