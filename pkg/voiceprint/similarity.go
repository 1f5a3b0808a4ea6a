package voiceprint

import (
	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns dot(a,b) / (‖a‖·‖b‖) in [-1, 1].
// Vectors of different length, empty vectors and zero vectors have
// similarity 0: prints from another feature layout never match.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
