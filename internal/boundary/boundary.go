// Package boundary defines the regions a species particle flies in. A run
// ends when the particle leaves its region.
package boundary

import (
	"fmt"
	"math"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

type Region interface {
	Name() string
	// Contains reports whether p [m] is inside the region. Surfaces count as inside.
	Contains(p r3.Vec) bool
	// Bounded is false for regions a particle can never leave.
	Bounded() bool
}

// Box is the axis-aligned cube |x|, |y|, |z| <= HalfWidth.
type Box struct {
	HalfWidth float64
}

func NewBox() Box { return Box{HalfWidth: constants.DefaultBoxHalfWidth} }

func (Box) Name() string  { return "box" }
func (Box) Bounded() bool { return true }

func (b Box) Contains(p r3.Vec) bool {
	return math.Abs(p.X) <= b.HalfWidth && math.Abs(p.Y) <= b.HalfWidth && math.Abs(p.Z) <= b.HalfWidth
}

// Open never terminates a run; the time or step budget does.
type Open struct{}

func (Open) Name() string         { return "open" }
func (Open) Bounded() bool        { return false }
func (Open) Contains(r3.Vec) bool { return true }

type Sphere struct {
	Radius float64
}

func (Sphere) Name() string  { return "sphere" }
func (Sphere) Bounded() bool { return true }

func (s Sphere) Contains(p r3.Vec) bool {
	return r3.Dot(p, p) <= s.Radius*s.Radius
}

// Cylinder is centered on the origin with its axis along z.
type Cylinder struct {
	Radius     float64
	HalfHeight float64
}

func (Cylinder) Name() string  { return "cylinder" }
func (Cylinder) Bounded() bool { return true }

func (c Cylinder) Contains(p r3.Vec) bool {
	return p.X*p.X+p.Y*p.Y <= c.Radius*c.Radius && math.Abs(p.Z) <= c.HalfHeight
}

// New builds a region by shape name.
func New(shape string, halfWidth, radius, halfHeight float64) (Region, error) {
	positive := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %s must be positive, got %g", dynamo.ErrInvalidConfig, shape, name, v)
		}
		return nil
	}
	switch shape {
	case "box":
		if err := positive("half width", halfWidth); err != nil {
			return nil, err
		}
		return Box{HalfWidth: halfWidth}, nil
	case "open":
		return Open{}, nil
	case "sphere":
		if err := positive("radius", radius); err != nil {
			return nil, err
		}
		return Sphere{Radius: radius}, nil
	case "cylinder":
		if err := positive("radius", radius); err != nil {
			return nil, err
		}
		if err := positive("half height", halfHeight); err != nil {
			return nil, err
		}
		return Cylinder{Radius: radius, HalfHeight: halfHeight}, nil
	}
	return nil, fmt.Errorf("%w: unknown boundary shape %q", dynamo.ErrInvalidConfig, shape)
}
