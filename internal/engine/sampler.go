package engine

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distmv"
)

// SamplerKind selects how trial weights are drawn.
type SamplerKind string

const (
	// SamplerUniform normalizes N independent uniform draws. This lands on the
	// simplex but over-weights its centre; it is not a Dirichlet draw.
	SamplerUniform SamplerKind = "uniform"
	// SamplerDirichlet draws from a symmetric Dirichlet(alpha). With alpha = 1
	// it covers the simplex uniformly.
	SamplerDirichlet SamplerKind = "dirichlet"
)

// WeightSampler draws one long-only weight vector of length n from rng.
type WeightSampler func(n int, rng *rand.Rand) ([]float64, error)

// ParseSamplerKind accepts "uniform", "dirichlet" or "" (uniform).
func ParseSamplerKind(s string) (SamplerKind, error) {
	switch SamplerKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", SamplerUniform:
		return SamplerUniform, nil
	case SamplerDirichlet:
		return SamplerDirichlet, nil
	}
	return "", invalidf("unknown sampler %q (want uniform or dirichlet)", s)
}

func (k SamplerKind) sampler(alpha float64) (WeightSampler, error) {
	switch k {
	case "", SamplerUniform:
		return RandomWeights, nil
	case SamplerDirichlet:
		return func(n int, rng *rand.Rand) ([]float64, error) {
			return DirichletWeights(n, alpha, rng)
		}, nil
	}
	return nil, invalidf("unknown sampler %q", string(k))
}

// NewRand returns a PCG generator for the given seed and stream. Stream 0 is
// the sequential stream; parallel workers use their worker index.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// RandomWeights draws n uniform [0,1) values and divides each by their sum.
func RandomWeights(n int, rng *rand.Rand) ([]float64, error) {
	if n < 1 {
		return nil, invalidf("number of assets must be positive, got %d", n)
	}
	if rng == nil {
		return nil, invalidf("nil random generator")
	}

	w := make([]float64, n)
	sum := 0.0
	for i := range w {
		w[i] = rng.Float64()
		sum += w[i]
	}
	if sum == 0 {
		return equalWeights(n), nil
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

// DirichletWeights draws from a symmetric Dirichlet distribution with
// concentration alpha (0 means 1).
func DirichletWeights(n int, alpha float64, rng *rand.Rand) ([]float64, error) {
	if n < 1 {
		return nil, invalidf("number of assets must be positive, got %d", n)
	}
	if rng == nil {
		return nil, invalidf("nil random generator")
	}
	if alpha < 0 {
		return nil, invalidf("dirichlet alpha must be positive, got %g", alpha)
	}
	if alpha == 0 {
		alpha = 1
	}
	if n == 1 {
		return []float64{1}, nil
	}

	conc := make([]float64, n)
	for i := range conc {
		conc[i] = alpha
	}
	w := distmv.NewDirichlet(conc, rng).Rand(nil)

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return equalWeights(n), nil
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}
