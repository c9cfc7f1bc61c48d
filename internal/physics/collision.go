package physics

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/variate"
	"gonum.org/v1/gonum/spatial/r3"
)

// frameTolerance is the |u_x|/|u| ratio below which the primary scattering
// frame is singular.
const frameTolerance = 1e-9

// Kernel performs hard-sphere collisions between the species particle and an
// ambient atom drawn from the local gas.
//
// With StrictFrame set, a relative velocity along the y-z plane returns
// ErrSingularFrame instead of switching to the fallback frame.
type Kernel struct {
	Constants   Constants
	StrictFrame bool

	speed  variate.WeightedSpeed
	polar  variate.Polar
	impact variate.Impact
}

func NewKernel(c Constants) *Kernel {
	return &Kernel{
		Constants: c,
		speed:     variate.NewWeightedSpeed(c.AmbientMass),
	}
}

// Collide draws the ambient partner (weighted speed, isotropic direction,
// shifted by flow) and returns the species velocity after the collision.
// vs and flow in m/s.
func (k *Kernel) Collide(rng *rand.Rand, vs, flow r3.Vec, ts ThermalState) (r3.Vec, error) {
	v, err := k.speed.Sample(rng, variate.State{Temperature: ts.Temperature, SpeciesSpeed: r3.Norm(vs)})
	if err != nil {
		return vs, err
	}
	theta, err := k.polar.Sample(rng, variate.State{})
	if err != nil {
		return vs, err
	}
	phi := variate.Uniform(rng, 0, 2*math.Pi)

	sinT, cosT := math.Sincos(theta)
	sinP, cosP := math.Sincos(phi)
	ambient := r3.Vec{X: v * sinT * cosP, Y: v * sinT * sinP, Z: v * cosT}
	u := r3.Sub(r3.Add(ambient, flow), vs)

	impact, err := k.impact.Sample(rng, variate.State{})
	if err != nil {
		return vs, err
	}
	azimuth := variate.Uniform(rng, 0, 2*math.Pi)
	return k.Scatter(vs, u, impact, azimuth)
}

// Scatter applies the velocity change for relative velocity u (ambient minus
// species) at impact angle and azimuth:
//
//	dv = |u| * 2m/(m+M) * cos(impact) * (sin(impact)cos(azimuth) e1 + sin(impact)sin(azimuth) e2 + cos(impact) u_hat)
func (k *Kernel) Scatter(vs, u r3.Vec, impact, azimuth float64) (r3.Vec, error) {
	speed := r3.Norm(u)
	if speed == 0 {
		return vs, nil
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return vs, fmt.Errorf("%w: relative speed %g", dynamo.ErrSingularFrame, speed)
	}
	uhat := r3.Scale(1/speed, u)
	e1, e2, err := k.frame(u, speed, uhat)
	if err != nil {
		return vs, err
	}

	sinI, cosI := math.Sincos(impact)
	sinA, cosA := math.Sincos(azimuth)
	dir := r3.Add(r3.Add(r3.Scale(sinI*cosA, e1), r3.Scale(sinI*sinA, e2)), r3.Scale(cosI, uhat))
	return r3.Add(vs, r3.Scale(speed*k.Constants.MassParam()*cosI, dir)), nil
}

// frame returns the orthonormal pair (e1, e2) perpendicular to uhat. The
// primary frame uses e1 parallel to (u_x - |u|^2/u_x, u_y, u_z).
func (k *Kernel) frame(u r3.Vec, speed float64, uhat r3.Vec) (r3.Vec, r3.Vec, error) {
	if math.Abs(u.X) > frameTolerance*speed {
		w := r3.Vec{X: u.X - speed*speed/u.X, Y: u.Y, Z: u.Z}
		if n := r3.Norm(w); n > 0 && !math.IsInf(n, 0) {
			e1 := r3.Scale(1/n, w)
			return e1, r3.Cross(uhat, e1), nil
		}
	}
	if k.StrictFrame {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: u=(%g, %g, %g)", dynamo.ErrSingularFrame, u.X, u.Y, u.Z)
	}
	return fallbackFrame(uhat)
}

// fallbackFrame crosses uhat with the coordinate axis it is least aligned with.
func fallbackFrame(uhat r3.Vec) (r3.Vec, r3.Vec, error) {
	ax, ay, az := math.Abs(uhat.X), math.Abs(uhat.Y), math.Abs(uhat.Z)
	axis := r3.Vec{X: 1}
	switch {
	case ay <= ax && ay <= az:
		axis = r3.Vec{Y: 1}
	case az <= ax && az <= ay:
		axis = r3.Vec{Z: 1}
	}
	c := r3.Cross(uhat, axis)
	n := r3.Norm(c)
	if !(n > 0) || math.IsInf(n, 0) {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: no perpendicular axis for u_hat=(%g, %g, %g)",
			dynamo.ErrSingularFrame, uhat.X, uhat.Y, uhat.Z)
	}
	e1 := r3.Scale(1/n, c)
	return e1, r3.Cross(uhat, e1), nil
}
