package physics

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func relClose(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(math.Abs(a), math.Abs(b))
}

func TestDeriveDefaults(t *testing.T) {
	c := DefaultConstants()
	ts := DefaultThermalState()
	d, err := c.Derive(ts, 0.01)
	if err != nil {
		t.Fatal(err)
	}

	m := 0.004 / constants.Avogadro
	M := 0.190061 / constants.Avogadro
	k := 1.380649e-23
	vMean := 2 * math.Sqrt(2*k*4/(math.Pi*m))
	vMeanM := 2 * math.Sqrt(2*k*4/(math.Pi*M))
	cross := 4 * 4 * math.Pi * 140e-12 * 140e-12
	freq := 1e21 * cross * vMeanM * math.Sqrt(1+M/m)

	if !relClose(d.VMean, vMean, 1e-12) {
		t.Errorf("VMean = %g, want %g", d.VMean, vMean)
	}
	if !relClose(d.VMeanSpecies, vMeanM, 1e-12) {
		t.Errorf("VMeanSpecies = %g, want %g", d.VMeanSpecies, vMeanM)
	}
	if !relClose(d.CollisionFrequency, freq, 1e-12) {
		t.Errorf("CollisionFrequency = %g, want %g", d.CollisionFrequency, freq)
	}
	if !relClose(d.Dt, 0.01/freq, 1e-12) {
		t.Errorf("Dt = %g, want %g", d.Dt, 0.01/freq)
	}
	if !relClose(c.MassParam(), 2*m/(m+M), 1e-15) {
		t.Errorf("MassParam = %g", c.MassParam())
	}
}

func TestDeriveScalesWithStepCollisions(t *testing.T) {
	c := DefaultConstants()
	a, _ := c.Derive(DefaultThermalState(), 0.01)
	b, _ := c.Derive(DefaultThermalState(), 0.02)
	if !relClose(b.Dt, 2*a.Dt, 1e-12) {
		t.Errorf("dt did not double: %g vs %g", b.Dt, a.Dt)
	}
}

func TestDeriveNonPhysical(t *testing.T) {
	c := DefaultConstants()
	for _, mutate := range []func(*ThermalState){
		func(ts *ThermalState) { ts.Density = 0 },
		func(ts *ThermalState) { ts.Temperature = -1 },
		func(ts *ThermalState) { ts.SpeciesTemperature = 0 },
	} {
		ts := DefaultThermalState()
		mutate(&ts)
		if _, err := c.Derive(ts, 0.01); !errors.Is(err, dynamo.ErrNonPhysical) {
			t.Errorf("expected ErrNonPhysical for %+v, got %v", ts, err)
		}
	}
	if _, err := c.Derive(DefaultThermalState(), 0); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero step collisions, got %v", err)
	}
}

// energyResidual returns M|dv|^2 + m|u - (M/m)dv|^2 - m|u|^2 relative to m|u|^2.
func energyResidual(c Constants, u, dv r3.Vec) float64 {
	m, M := c.AmbientMass, c.SpeciesMass
	after := r3.Sub(u, r3.Scale(M/m, dv))
	before := m * r3.Dot(u, u)
	return (M*r3.Dot(dv, dv) + m*r3.Dot(after, after) - before) / before
}

func TestScatterConservesEnergy(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 0))
	for _, c := range []Constants{DefaultConstants(), NewConstants(0.004, 0.004), NewConstants(0.04, 0.002)} {
		k := NewKernel(c)
		for range 1000 {
			vs := r3.Vec{X: rng.NormFloat64() * 50, Y: rng.NormFloat64() * 50, Z: rng.NormFloat64() * 50}
			u := r3.Vec{X: rng.NormFloat64() * 100, Y: rng.NormFloat64() * 100, Z: rng.NormFloat64() * 100}
			impact := math.Pi/2 + rng.Float64()*math.Pi/2
			azimuth := rng.Float64() * 2 * math.Pi
			v, err := k.Scatter(vs, u, impact, azimuth)
			if err != nil {
				t.Fatal(err)
			}
			if r := energyResidual(c, u, r3.Sub(v, vs)); math.Abs(r) > 1e-9 {
				t.Fatalf("energy residual %g for u=%v", r, u)
			}
		}
	}
}

func TestCollideEqualMassBounds(t *testing.T) {
	c := NewConstants(0.004, 0.004)
	k := NewKernel(c)
	ts := DefaultThermalState()
	rng := rand.New(rand.NewPCG(5, 5))
	vs := r3.Vec{X: 30, Y: -10, Z: 5}
	flow := r3.Vec{Z: 20}

	vMean := 2 * math.Sqrt(2*c.Boltzmann*ts.Temperature/(math.Pi*c.AmbientMass))
	limit := 2*r3.Norm(vs) + r3.Norm(flow) + 8*vMean
	for i := range 10000 {
		v, err := k.Collide(rng, vs, flow, ts)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if !(dynamo.ParticleState{Velocity: v}).IsValid() {
			t.Fatalf("draw %d: non-finite velocity %v", i, v)
		}
		if s := r3.Norm(v); s > limit {
			t.Fatalf("draw %d: speed %g exceeds %g", i, s, limit)
		}
	}
}

func TestScatterZeroRelativeVelocity(t *testing.T) {
	k := NewKernel(DefaultConstants())
	vs := r3.Vec{X: 1, Y: 2, Z: 3}
	v, err := k.Scatter(vs, r3.Vec{}, 2.5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != vs {
		t.Errorf("velocity changed: %v", v)
	}
}

func TestScatterSingularFrame(t *testing.T) {
	c := DefaultConstants()
	vs := r3.Vec{X: 3}
	u := r3.Vec{Y: 40, Z: -10}

	k := NewKernel(c)
	v, err := k.Scatter(vs, u, 2.2, 0.7)
	if err != nil {
		t.Fatalf("fallback frame: %v", err)
	}
	if r := energyResidual(c, u, r3.Sub(v, vs)); math.Abs(r) > 1e-9 {
		t.Errorf("fallback energy residual %g", r)
	}

	// |u_x| just under the tolerance also takes the fallback path.
	if _, err := k.Scatter(vs, r3.Vec{X: 1e-12, Y: 40}, 2.2, 0.7); err != nil {
		t.Errorf("near-singular fallback: %v", err)
	}

	k.StrictFrame = true
	if _, err := k.Scatter(vs, u, 2.2, 0.7); !errors.Is(err, dynamo.ErrSingularFrame) {
		t.Errorf("expected ErrSingularFrame, got %v", err)
	}
	if _, err := k.Scatter(vs, r3.Vec{X: 10, Y: 40}, 2.2, 0.7); err != nil {
		t.Errorf("regular frame under StrictFrame: %v", err)
	}
}

func TestFrameOrthonormal(t *testing.T) {
	k := NewKernel(DefaultConstants())
	for _, u := range []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: -5, Y: 0.1}, {Y: 1}, {Z: -2}, {Y: 1, Z: 1}} {
		speed := r3.Norm(u)
		uhat := r3.Scale(1/speed, u)
		e1, e2, err := k.frame(u, speed, uhat)
		if err != nil {
			t.Fatal(err)
		}
		for _, d := range []float64{r3.Dot(e1, uhat), r3.Dot(e2, uhat), r3.Dot(e1, e2)} {
			if math.Abs(d) > 1e-12 {
				t.Errorf("u=%v: frame not orthogonal (%g)", u, d)
			}
		}
		if math.Abs(r3.Norm(e1)-1) > 1e-12 || math.Abs(r3.Norm(e2)-1) > 1e-12 {
			t.Errorf("u=%v: frame not unit", u)
		}
	}
}

func TestCollideNonFinite(t *testing.T) {
	k := NewKernel(DefaultConstants())
	rng := rand.New(rand.NewPCG(1, 2))
	_, err := k.Collide(rng, r3.Vec{}, r3.Vec{X: math.Inf(1)}, DefaultThermalState())
	if !errors.Is(err, dynamo.ErrSingularFrame) {
		t.Errorf("expected ErrSingularFrame, got %v", err)
	}
}

func TestSetParam(t *testing.T) {
	ts := DefaultThermalState()
	if err := ts.SetParam("density", 5e20); err != nil {
		t.Fatal(err)
	}
	if ts.GetParams()["density"] != 5e20 {
		t.Error("density not applied")
	}
	if err := ts.SetParam("density", -1); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	c := DefaultConstants()
	if err := c.SetParam("bogus", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
