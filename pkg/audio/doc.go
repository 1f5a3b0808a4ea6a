// Package audio groups the signal-path packages of voicegate.
//
// Sub-packages:
//
//   - pcm: formats, the Stream interface, L16 conversion and the Queue
//   - resampler: any rate and channel count to mono at a fixed rate
//   - filter: biquad filters (the 85 Hz high-pass)
//   - analyser: windowed FFT with time smoothing, in the manner of a Web
//     Audio AnalyserNode
//   - fbank: mel filter bank and cepstrum over an analyser spectrum
//   - mic: PortAudio capture as a pcm.Stream
//   - wavfile: WAV files as pcm streams
//   - webrtcvad: WebRTC VAD second opinion on 16 kHz frames
//
// Example usage:
//
//	in, _ := mic.Open(mic.Config{})
//	mono, _ := resampler.NewStream(in, 16000)
//	n, err := mono.Read(buf)
package audio
