package sim

import (
	"math"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/physics"
	"github.com/san-kum/dsmcsim/internal/variate"
	"gonum.org/v1/gonum/spatial/r3"
)

// InitialVelocity draws an isotropic species velocity with a Maxwell speed
// at temperature [K].
func InitialVelocity(rng *rand.Rand, c physics.Constants, temperature float64) (r3.Vec, error) {
	st := variate.State{Temperature: temperature}
	v, err := variate.NewSpeed(c.SpeciesMass).Sample(rng, st)
	if err != nil {
		return r3.Vec{}, err
	}
	theta, _ := variate.Polar{}.Sample(rng, st)
	phi := variate.Uniform(rng, 0, 2*math.Pi)

	sinT, cosT := math.Sincos(theta)
	sinP, cosP := math.Sincos(phi)
	return r3.Vec{X: v * sinT * cosP, Y: v * sinT * sinP, Z: v * cosT}, nil
}

// InitialPosition draws a point uniformly from the cube of the given side
// length [m] centered on the origin.
func InitialPosition(rng *rand.Rand, side float64) r3.Vec {
	h := side / 2
	return r3.Vec{
		X: variate.Uniform(rng, -h, h),
		Y: variate.Uniform(rng, -h, h),
		Z: variate.Uniform(rng, -h, h),
	}
}
