package batch

import (
	"context"
	"math"

	"github.com/san-kum/dsmcsim/internal/config"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// NeighborHalfSide is the half side of the cube used for local density in
// the emitter cloud.
const NeighborHalfSide = 0.008

// EmitterRow is one emitted particle: its age in milliseconds, where it is
// now, and how many other particles sit in the cube around it.
type EmitterRow struct {
	Age       float64 `csv:"age_ms" json:"age_ms"`
	Reason    string  `csv:"reason" json:"reason"`
	X         float64 `csv:"x" json:"x"`
	Y         float64 `csv:"y" json:"y"`
	Z         float64 `csv:"z" json:"z"`
	Neighbors int     `csv:"neighbors" json:"neighbors"`
}

// EmitterAges are the default particle ages in milliseconds.
func EmitterAges() []float64 {
	a, _ := Steps(0.01, 6, 0.01)
	return a
}

// PointEmitter models a source that emitted one particle every age step.
// Particle i is flown for ages[i] milliseconds from the configured start
// point; together they form the instantaneous cloud. A particle that
// reaches the wall early stays there.
func (d *Driver) PointEmitter(ctx context.Context, base *config.Config, ages []float64) ([]EmitterRow, error) {
	if len(ages) == 0 {
		ages = EmitterAges()
	}
	if err := d.LoadTable(base); err != nil {
		return nil, err
	}
	seconds := make([]float64, len(ages))
	for i, a := range ages {
		seconds[i] = a * 1e-3
	}
	trial, err := flightTrial(base, d, seconds)
	if err != nil {
		return nil, err
	}
	outcomes, runErr := d.ensemble("emitter", len(ages)).Run(ctx, trial)
	d.report("emitter", Summarize(outcomes))

	var rows []EmitterRow
	var points []r3.Vec
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		p := o.Result.Final.Position
		rows = append(rows, EmitterRow{Age: ages[o.Index], Reason: o.Result.Reason.String(), X: p.X, Y: p.Y, Z: p.Z})
		points = append(points, p)
	}
	for i, n := range NeighborCounts(points, NeighborHalfSide) {
		rows[i].Neighbors = n
	}
	return rows, runErr
}

// NeighborCounts returns, for every point, how many other points lie
// strictly inside the axis-aligned cube of the given half side around it.
func NeighborCounts(points []r3.Vec, halfSide float64) []int {
	counts := make([]int, len(points))
	if len(points) == 0 {
		return counts
	}
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	tree := kdtree.New(pts, false)
	for i, p := range points {
		b := &kdtree.Bounding{
			Min: kdtree.Point{p.X - halfSide, p.Y - halfSide, p.Z - halfSide},
			Max: kdtree.Point{p.X + halfSide, p.Y + halfSide, p.Z + halfSide},
		}
		n := -1
		tree.DoBounded(b, func(c kdtree.Comparable, _ *kdtree.Bounding, _ int) bool {
			q := c.(kdtree.Point)
			if math.Abs(q[0]-p.X) < halfSide && math.Abs(q[1]-p.Y) < halfSide && math.Abs(q[2]-p.Z) < halfSide {
				n++
			}
			return false
		})
		counts[i] = n
	}
	return counts
}
