// Package ambient answers "what is the buffer gas doing here": the local
// number density, temperature and bulk flow at a species position, plus
// whether that position is still inside the simulated region.
package ambient

import (
	"fmt"
	"math"

	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

type Form string

const (
	FormBox           Form = "box"
	FormCurvedFlowBox Form = "curvedFlowBox"
	FormOpen          Form = "open"
	FormTable         Form = "table"
)

func Forms() []Form {
	return []Form{FormBox, FormCurvedFlowBox, FormOpen, FormTable}
}

func ParseForm(s string) (Form, error) {
	for _, f := range Forms() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown form %q", dynamo.ErrInvalidConfig, s)
}

// Conditions at one point. Density in m^-3, Temperature in K, Flow in m/s.
type Conditions struct {
	Density     float64
	Temperature float64
	Flow        r3.Vec
	InBounds    bool
}

type Field interface {
	Query(pos r3.Vec) (Conditions, error)
}

// contains treats a missing region as unbounded.
func contains(r boundary.Region, pos r3.Vec) bool {
	return r == nil || r.Contains(pos)
}

func checkPhysical(c Conditions, pos r3.Vec) (Conditions, error) {
	if !(c.Density > 0) || !(c.Temperature > 0) || math.IsInf(c.Density, 0) || math.IsInf(c.Temperature, 0) {
		return c, fmt.Errorf("%w: n=%g m^-3, T=%g K at (%g, %g, %g)",
			dynamo.ErrNonPhysical, c.Density, c.Temperature, pos.X, pos.Y, pos.Z)
	}
	return c, nil
}

// Uniform is a still gas of constant density and temperature.
type Uniform struct {
	Density     float64
	Temperature float64
	Region      boundary.Region
}

func (u Uniform) Query(pos r3.Vec) (Conditions, error) {
	return checkPhysical(Conditions{
		Density:     u.Density,
		Temperature: u.Temperature,
		InBounds:    contains(u.Region, pos),
	}, pos)
}

// CurvedFlow is a uniform gas moving with the analytic flow of CurvedFlowVelocity.
type CurvedFlow struct {
	Density     float64
	Temperature float64
	Region      boundary.Region
}

func (c CurvedFlow) Query(pos r3.Vec) (Conditions, error) {
	return checkPhysical(Conditions{
		Density:     c.Density,
		Temperature: c.Temperature,
		Flow:        CurvedFlowVelocity(pos),
		InBounds:    contains(c.Region, pos),
	}, pos)
}

// CurvedFlowVelocity is an axial 20 m/s stream with a radial component
// r*(-5z*exp(-0.4|5z+1|)*100), split along x and y.
func CurvedFlowVelocity(pos r3.Vec) r3.Vec {
	radial := -5 * pos.Z * math.Exp(-0.4*math.Abs(5*pos.Z+1)) * 100
	return r3.Vec{
		X: pos.X * radial,
		Y: pos.Y * radial,
		Z: 0.2 * 100,
	}
}
