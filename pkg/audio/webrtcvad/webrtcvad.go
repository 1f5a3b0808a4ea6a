// Package webrtcvad classifies 16 kHz frames with the WebRTC voice
// activity detector. It gives a second opinion next to the spectral
// activity score of package isolation.
package webrtcvad

import (
	"errors"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// SampleRate is the only rate Detector accepts.
const SampleRate = 16000

// FrameSize is the 20 ms frame Ratio splits windows into.
const FrameSize = SampleRate / 50

// ErrFrameLength is returned for frames that are not 10, 20 or 30 ms.
var ErrFrameLength = errors.New("webrtcvad: frame must be 10, 20 or 30 ms")

// Detector wraps one WebRTC VAD instance. It is not safe for concurrent use.
type Detector struct {
	vad  *webrtcvad.VAD
	mode int
	buf  []byte
}

// New creates a Detector. mode is the aggressiveness from 0 (least) to 3
// (most); values outside the range are clamped.
func New(mode int) (*Detector, error) {
	mode = min(max(mode, 0), 3)
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtcvad: create: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtcvad: set mode %d: %w", mode, err)
	}
	return &Detector{vad: vad, mode: mode}, nil
}

// Mode returns the aggressiveness.
func (d *Detector) Mode() int {
	return d.mode
}

// Check reports whether frame contains speech.
func (d *Detector) Check(frame []float32) (bool, error) {
	if !d.vad.ValidRateAndFrameLength(SampleRate, len(frame)) {
		return false, fmt.Errorf("%w: got %d samples", ErrFrameLength, len(frame))
	}
	d.buf = pcm.EncodeL16(d.buf[:0], frame)
	active, err := d.vad.Process(SampleRate, d.buf)
	if err != nil {
		return false, fmt.Errorf("webrtcvad: process: %w", err)
	}
	return active, nil
}

// Ratio splits samples into 20 ms frames and returns the fraction that
// contain speech. A trailing partial frame is ignored; fewer than one
// frame yields 0.
func (d *Detector) Ratio(samples []float32) (float64, error) {
	frames := len(samples) / FrameSize
	if frames == 0 {
		return 0, nil
	}
	var speech int
	for i := range frames {
		ok, err := d.Check(samples[i*FrameSize : (i+1)*FrameSize])
		if err != nil {
			return 0, err
		}
		if ok {
			speech++
		}
	}
	return float64(speech) / float64(frames), nil
}
