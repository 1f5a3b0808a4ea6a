package fbank

import "math"

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melPoints returns numFilters+2 frequencies in Hz, equally spaced in mel
// between lowFreq and highFreq.
func melPoints(numFilters int, lowFreq, highFreq float64) []float64 {
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)
	step := (highMel - lowMel) / float64(numFilters+1)
	pts := make([]float64, numFilters+2)
	for i := range pts {
		pts[i] = melToHz(lowMel + float64(i)*step)
	}
	return pts
}

// gaussianFilterBank creates Gaussian filters centred on mel points.
// Each filter's standard deviation is a quarter of the span between its
// neighbouring mel points, and never narrower than one bin.
// Returns [numFilters][fftSize/2].
func gaussianFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	bins := fftSize / 2
	binHz := float64(sampleRate) / float64(fftSize)
	pts := melPoints(numFilters, lowFreq, highFreq)

	bank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		center := pts[m+1]
		sigma := math.Max((pts[m+2]-pts[m])/4, binHz)
		filter := make([]float64, bins)
		for k := range filter {
			d := (float64(k)*binHz - center) / sigma
			filter[k] = math.Exp(-0.5 * d * d)
		}
		bank[m] = filter
	}
	return bank
}

// melFilterBank creates triangular filters between neighbouring mel
// points. Returns [numFilters][fftSize/2].
func melFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	bins := fftSize / 2
	pts := melPoints(numFilters, lowFreq, highFreq)

	// Convert mel points to FFT bin indices (round to nearest)
	idx := make([]int, len(pts))
	for i, hz := range pts {
		bin := int(math.Round(hz * float64(fftSize) / float64(sampleRate)))
		idx[i] = min(bin, bins-1)
	}
	// Ensure each filter has at least 1 bin width
	for i := 1; i < len(idx); i++ {
		if idx[i] <= idx[i-1] {
			idx[i] = idx[i-1] + 1
		}
	}

	bank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		filter := make([]float64, bins)
		left, center, right := idx[m], idx[m+1], idx[m+2]
		for k := left; k < center && k < bins; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < bins; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = filter
	}
	return bank
}
