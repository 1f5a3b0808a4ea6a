// Package pcm provides the sample-level plumbing shared by the capture,
// processing and transport layers.
//
// Audio moves through the repository as interleaved float32 samples in
// [-1, 1] behind the Stream interface. L16 (little-endian 16-bit) is used
// only at the edges: files, websocket frames and raw dumps.
//
// Key types:
//   - Format: sample rate and channel count
//   - Stream: blocking reader of float32 samples
//   - Queue: Stream fed by Push, dropping the oldest audio on overrun
//   - AtomicFloat32: lock-free gain parameter
//
// Example usage:
//
//	q := pcm.NewQueue(pcm.L16Mono16K, 0)
//	q.Push(pcm.DecodeL16(nil, frame))
//	n, err := q.Read(buf)
package pcm
