// Package filter implements IIR filters for the capture chain.
package filter

import (
	"fmt"
	"math"
	"math/cmplx"
)

// denormal is the state magnitude below which the filter memory is flushed
// to zero, so that a filter fed silence settles to exact zeros.
const denormal = 1e-20

// Biquad is a second-order IIR section in transposed direct form II with
// coefficients from the RBJ audio EQ cookbook.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// NewHighPass returns a high-pass biquad with the given corner frequency
// and quality factor.
func NewHighPass(sampleRate int, cutoff, q float64) (*Biquad, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("filter: invalid sample rate %d", sampleRate)
	}
	if cutoff <= 0 || cutoff >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("filter: cutoff %.1f Hz outside (0, %d)", cutoff, sampleRate/2)
	}
	if q <= 0 {
		return nil, fmt.Errorf("filter: invalid Q %.3f", q)
	}
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cos) / 2 / a0,
		b1: -(1 + cos) / a0,
		b2: (1 + cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	if math.Abs(f.z1) < denormal {
		f.z1 = 0
	}
	if math.Abs(f.z2) < denormal {
		f.z2 = 0
	}
	return y
}

// ProcessBlock filters samples in place.
func (f *Biquad) ProcessBlock(samples []float32) {
	for i, s := range samples {
		samples[i] = float32(f.Process(float64(s)))
	}
}

// Reset clears the filter memory.
func (f *Biquad) Reset() {
	f.z1, f.z2 = 0, 0
}

// Magnitude returns the linear gain of the filter at freq Hz.
func (f *Biquad) Magnitude(freq float64, sampleRate int) float64 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(f.b0, 0) + complex(f.b1, 0)*z1 + complex(f.b2, 0)*z2
	den := 1 + complex(f.a1, 0)*z1 + complex(f.a2, 0)*z2
	return cmplx.Abs(num / den)
}
