package variate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/stat/distuv"
)

func thermalScale(temperature, mass float64) float64 {
	return math.Sqrt(constants.KBoltzmann * temperature / mass)
}

func support(temperature, mass, cutoff float64) (float64, float64, error) {
	hi := cutoff * MeanSpeed(temperature, mass)
	if !(hi > 0) || math.IsInf(hi, 0) {
		return 0, 0, fmt.Errorf("%w: empty speed support for T=%g K, m=%g kg", dynamo.ErrSampling, temperature, mass)
	}
	return 0, hi, nil
}

// Speed is the Maxwell speed distribution v^2 exp(-m v^2 / 2kT), truncated
// at Cutoff mean speeds.
type Speed struct {
	Mass   float64
	Cutoff float64
}

func NewSpeed(mass float64) Speed {
	return Speed{Mass: mass, Cutoff: 5}
}

func (Speed) Kind() Kind { return KindSpeed }

func (s Speed) Support(st State) (float64, float64, error) {
	return support(st.Temperature, s.Mass, s.Cutoff)
}

func (s Speed) density(st State) func(float64) float64 {
	a := s.Mass / (2 * constants.KBoltzmann * st.Temperature)
	return func(v float64) float64 {
		return v * v * math.Exp(-a*v*v)
	}
}

func (s Speed) PDF(x float64, st State) float64 {
	lo, hi, err := s.Support(st)
	if err != nil {
		return 0
	}
	return normalizedPDF(s.density(st), x, lo, hi)
}

func (s Speed) CDF(x float64, st State) float64 {
	lo, hi, err := s.Support(st)
	if err != nil {
		return 0
	}
	return normalizedCDF(s.density(st), x, lo, hi)
}

// Sample draws sigma*sqrt(chi2(3)) and rejects values above the cutoff.
func (s Speed) Sample(rng *rand.Rand, st State) (float64, error) {
	_, hi, err := s.Support(st)
	if err != nil {
		return 0, err
	}
	sigma := thermalScale(st.Temperature, s.Mass)
	chi := distuv.ChiSquared{K: 3, Src: rng}
	for range maxAttempts {
		v := sigma * math.Sqrt(chi.Rand())
		if v <= hi {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: speed rejection exceeded %d attempts", dynamo.ErrSampling, maxAttempts)
}

// WeightedSpeed is the ambient speed distribution seen by a species particle
// moving at SpeciesSpeed: v^2 sqrt(v^2 + vs^2) exp(-m v^2 / 2kT), truncated at
// Cutoff mean speeds.
type WeightedSpeed struct {
	Mass   float64
	Cutoff float64
}

func NewWeightedSpeed(mass float64) WeightedSpeed {
	return WeightedSpeed{Mass: mass, Cutoff: 8}
}

func (WeightedSpeed) Kind() Kind { return KindWeightedSpeed }

func (w WeightedSpeed) Support(st State) (float64, float64, error) {
	if math.IsNaN(st.SpeciesSpeed) || math.IsInf(st.SpeciesSpeed, 0) || st.SpeciesSpeed < 0 {
		return 0, 0, fmt.Errorf("%w: species speed %g", dynamo.ErrSampling, st.SpeciesSpeed)
	}
	return support(st.Temperature, w.Mass, w.Cutoff)
}

func (w WeightedSpeed) density(st State) func(float64) float64 {
	a := w.Mass / (2 * constants.KBoltzmann * st.Temperature)
	vs := st.SpeciesSpeed
	return func(v float64) float64 {
		return v * v * math.Hypot(v, vs) * math.Exp(-a*v*v)
	}
}

func (w WeightedSpeed) PDF(x float64, st State) float64 {
	lo, hi, err := w.Support(st)
	if err != nil {
		return 0
	}
	return normalizedPDF(w.density(st), x, lo, hi)
}

func (w WeightedSpeed) CDF(x float64, st State) float64 {
	lo, hi, err := w.Support(st)
	if err != nil {
		return 0
	}
	return normalizedCDF(w.density(st), x, lo, hi)
}

// Sample uses the envelope (v + vs) v^2 exp(-v^2/2sigma^2), a mixture of
// sigma*sqrt(chi2(4)) and sigma*sqrt(chi2(3)) weighted by their integrals
// 2 sigma^4 and vs sigma^3 sqrt(pi/2), and accepts with sqrt(v^2+vs^2)/(v+vs).
func (w WeightedSpeed) Sample(rng *rand.Rand, st State) (float64, error) {
	_, hi, err := w.Support(st)
	if err != nil {
		return 0, err
	}
	sigma := thermalScale(st.Temperature, w.Mass)
	vs := st.SpeciesSpeed
	wA := 2 * math.Pow(sigma, 4)
	wB := vs * math.Pow(sigma, 3) * math.Sqrt(math.Pi/2)
	pA := wA / (wA + wB)

	chi4 := distuv.ChiSquared{K: 4, Src: rng}
	chi3 := distuv.ChiSquared{K: 3, Src: rng}
	for range maxAttempts {
		var v float64
		if rng.Float64() < pA {
			v = sigma * math.Sqrt(chi4.Rand())
		} else {
			v = sigma * math.Sqrt(chi3.Rand())
		}
		if v > hi {
			continue
		}
		if v+vs == 0 || rng.Float64()*(v+vs) <= math.Hypot(v, vs) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: weighted speed rejection exceeded %d attempts (vs=%g m/s)",
		dynamo.ErrSampling, maxAttempts, vs)
}
