package variate

import (
	"math"
	"math/rand/v2"
)

// Polar is the polar angle of an isotropic direction: density sin(x)/2 on [0, pi].
type Polar struct{}

func (Polar) Kind() Kind { return KindPolar }

func (Polar) Support(State) (float64, float64, error) { return 0, math.Pi, nil }

func (Polar) PDF(x float64, _ State) float64 {
	if x < 0 || x > math.Pi {
		return 0
	}
	return math.Sin(x) / 2
}

func (Polar) CDF(x float64, _ State) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= math.Pi:
		return 1
	}
	return (1 - math.Cos(x)) / 2
}

func (Polar) Sample(rng *rand.Rand, _ State) (float64, error) {
	return math.Acos(1 - 2*rng.Float64()), nil
}

// Impact is the hard-sphere deflection angle: density -cos(x) on [pi/2, pi].
type Impact struct{}

func (Impact) Kind() Kind { return KindImpact }

func (Impact) Support(State) (float64, float64, error) { return math.Pi / 2, math.Pi, nil }

func (Impact) PDF(x float64, _ State) float64 {
	if x < math.Pi/2 || x > math.Pi {
		return 0
	}
	return -math.Cos(x)
}

func (Impact) CDF(x float64, _ State) float64 {
	switch {
	case x <= math.Pi/2:
		return 0
	case x >= math.Pi:
		return 1
	}
	return 1 - math.Sin(x)
}

func (Impact) Sample(rng *rand.Rand, _ State) (float64, error) {
	return math.Pi - math.Asin(rng.Float64()), nil
}
