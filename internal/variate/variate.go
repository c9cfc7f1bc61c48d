// Package variate samples the random quantities of a DSMC collision: the
// polar direction of the ambient atom, the impact angle, and the Maxwell and
// collision-weighted speed distributions.
//
// Every distribution exposes its support, a normalized PDF and CDF, and a
// sampler that draws from a caller-owned *rand.Rand. Normalization constants
// are computed on each call from the current State, never cached.
package variate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

type Kind int

const (
	KindPolar Kind = iota
	KindImpact
	KindSpeed
	KindWeightedSpeed
)

func (k Kind) String() string {
	switch k {
	case KindPolar:
		return "polar"
	case KindImpact:
		return "impact"
	case KindSpeed:
		return "speed"
	case KindWeightedSpeed:
		return "weighted_speed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// State carries the parameters a distribution depends on. Temperature is the
// gas temperature [K]; SpeciesSpeed is |v_s| [m/s] and only matters for
// WeightedSpeed.
type State struct {
	Temperature  float64
	SpeciesSpeed float64
}

type Distribution interface {
	Kind() Kind
	Support(st State) (lo, hi float64, err error)
	PDF(x float64, st State) float64
	CDF(x float64, st State) float64
	Sample(rng *rand.Rand, st State) (float64, error)
}

// New returns the distribution of the given kind. mass [kg] is only used by
// the speed kinds.
func New(k Kind, mass float64) (Distribution, error) {
	switch k {
	case KindPolar:
		return Polar{}, nil
	case KindImpact:
		return Impact{}, nil
	case KindSpeed:
		return NewSpeed(mass), nil
	case KindWeightedSpeed:
		return NewWeightedSpeed(mass), nil
	}
	return nil, fmt.Errorf("%w: unknown distribution %v", dynamo.ErrInvalidConfig, k)
}

// Uniform draws from [lo, hi).
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand()
}

// MeanSpeed is the Maxwell mean speed 2*sqrt(2kT/(pi*m)).
func MeanSpeed(temperature, mass float64) float64 {
	return 2 * math.Sqrt(2*constants.KBoltzmann*temperature/(math.Pi*mass))
}

// quadPoints is the Gauss-Legendre order used for normalization integrals.
const quadPoints = 96

// maxAttempts bounds every rejection loop.
const maxAttempts = 10000

func integrate(f func(float64) float64, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return quad.Fixed(f, lo, hi, quadPoints, nil, 0)
}

// normalizedPDF and normalizedCDF rescale f by its integral over [lo, hi].
func normalizedPDF(f func(float64) float64, x, lo, hi float64) float64 {
	if x < lo || x > hi {
		return 0
	}
	z := integrate(f, lo, hi)
	if z <= 0 {
		return 0
	}
	return f(x) / z
}

func normalizedCDF(f func(float64) float64, x, lo, hi float64) float64 {
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	z := integrate(f, lo, hi)
	if z <= 0 {
		return 0
	}
	return math.Min(1, integrate(f, lo, x)/z)
}
