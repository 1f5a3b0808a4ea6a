// Package resampler converts capture audio to the processing rate using a
// pure Go polyphase resampler (github.com/tphakala/go-audio-resampling).
//
// It supports:
//   - Sample rate conversion of float32 blocks (e.g., 48000Hz to 16000Hz)
//   - Down-mixing interleaved multi-channel capture to mono
//   - Streaming interface via pcm.Stream
//
// Example usage:
//
//	mic, _ := mic.Open(mic.Config{SampleRate: 48000, Channels: 2})
//	s, err := resampler.NewStream(mic, 16000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, err := s.Read(buf) // mono 16 kHz samples
package resampler
