package pcm

import (
	"fmt"
	"time"
)

// Common capture and processing formats.
var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1}
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K = Format{SampleRate: 24000, Channels: 1}
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K = Format{SampleRate: 48000, Channels: 1}
	// L16Stereo48K represents audio/L16; rate=48000; channels=2
	L16Stereo48K = Format{SampleRate: 48000, Channels: 2}
)

// Format describes interleaved 16-bit PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate reports whether the format can carry audio.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("pcm: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("pcm: invalid channel count %d", f.Channels)
	}
	return nil
}

// SamplesInDuration returns the number of frames (samples per channel) in
// the given duration.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of L16 bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.SamplesInDuration(d) * f.Channels * 2
}

// Duration returns the duration of n interleaved samples.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return time.Duration(n/f.Channels) * time.Second / time.Duration(f.SampleRate)
}

// String returns the media type of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate, f.Channels)
}
