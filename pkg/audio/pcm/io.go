package pcm

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

// DecodeL16 converts little-endian 16-bit samples to float32 in [-1, 1],
// appending to dst. A trailing odd byte is ignored.
func DecodeL16(dst []float32, b []byte) []float32 {
	n := len(b) / 2
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(b[i*2:]))
		dst = append(dst, float32(s)/32768.0)
	}
	return dst
}

// EncodeL16 converts float32 samples to little-endian 16-bit PCM, appending
// to dst. Samples outside [-1, 1] are clipped.
func EncodeL16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(ToInt16(s)))
	}
	return dst
}

// ToInt16 scales a float sample to 16 bits, clipping to the int16 range.
func ToInt16(s float32) int16 {
	v := float64(s) * 32768.0
	return int16(math.Max(-32768, math.Min(32767, math.Round(v))))
}

// Downmix averages interleaved multi-channel samples into mono, appending
// to dst. Mono input is copied unchanged.
func Downmix(dst []float32, samples []float32, channels int) []float32 {
	if channels <= 1 {
		return append(dst, samples...)
	}
	frames := len(samples) / channels
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		dst = append(dst, sum/float32(channels))
	}
	return dst
}

// Copy reads s until io.EOF and writes the samples to w as L16. It returns
// the number of bytes written.
func Copy(w io.Writer, s Stream) (int64, error) {
	f := s.Format()
	buf := make([]float32, f.SamplesInDuration(20*time.Millisecond)*f.Channels)
	if len(buf) == 0 {
		buf = make([]float32, 320)
	}
	var out []byte
	var written int64
	for {
		n, err := s.Read(buf)
		if n > 0 {
			out = EncodeL16(out[:0], buf[:n])
			wn, werr := w.Write(out)
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return written, nil
			}
			return written, err
		}
	}
}
