package pcm

import (
	"math"
	"sync/atomic"
)

// AtomicFloat32 is a float32 that can be read and written from different
// goroutines. Gain parameters of the processing graph are stored this way so
// the audio goroutine never takes a lock.
type AtomicFloat32 struct {
	bits uint32
}

// NewAtomicFloat32 creates a new AtomicFloat32 with the given initial value.
func NewAtomicFloat32(val float32) *AtomicFloat32 {
	return &AtomicFloat32{bits: math.Float32bits(val)}
}

// Load atomically loads and returns the float32 value.
func (af *AtomicFloat32) Load() float32 {
	return math.Float32frombits(atomic.LoadUint32(&af.bits))
}

// Store atomically stores the given float32 value.
func (af *AtomicFloat32) Store(val float32) {
	atomic.StoreUint32(&af.bits, math.Float32bits(val))
}

// Swap stores val and returns the previous value.
func (af *AtomicFloat32) Swap(val float32) float32 {
	return math.Float32frombits(atomic.SwapUint32(&af.bits, math.Float32bits(val)))
}
