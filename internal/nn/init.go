package nn

import (
	"math"
	"math/rand/v2"

	"github.com/bgzastrow/mace/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // weight initialization is not security-critical
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}

// Uniform fills a tensor with values from U(-bound, bound).
func Uniform(bound float64, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // weight initialization is not security-critical
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}
