package provider

import "math"

// Normalize returns vec scaled to unit Euclidean length.
// The zero vector is returned unchanged.
func Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}

	out := make([]float64, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}

	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func toFloat64(vec32 []float32) []float64 {
	vec64 := make([]float64, len(vec32))
	for i, v := range vec32 {
		vec64[i] = float64(v)
	}
	return vec64
}
