package provider

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"unit already", []float64{1, 0, 0}, []float64{1, 0, 0}},
		{"pythagorean", []float64{3, 4}, []float64{0.6, 0.8}},
		{"negative", []float64{0, -2}, []float64{0, -1}},
		{"zero vector", []float64{0, 0, 0}, []float64{0, 0, 0}},
		{"empty", []float64{}, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, Normalize(tt.in), 1e-12)
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 4}
	_ = Normalize(in)
	assert.Equal(t, []float64{3, 4}, in)
}

func TestNormalize_UnitNorm(t *testing.T) {
	vec := make([]float64, 768)
	for i := range vec {
		vec[i] = math.Sin(float64(i)) * 10
	}

	var sum float64
	for _, v := range Normalize(vec) {
		sum += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
}
