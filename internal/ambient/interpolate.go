package ambient

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxCondition rejects nearly collinear neighbor triples.
const maxCondition = 1e12

// candidates is how many nearest grid points NeighborSearch considers.
const candidates = 6

// Table interpolates a FieldTable at arbitrary positions. Each query fits
// q = A*z + B*r + C through the three grid points nearest to (z, r) and
// evaluates it there. Collinear nearest points are an ErrInterpolation unless
// NeighborSearch is set, in which case the closest non-collinear triple among
// the six nearest points is used. Velocities are rotated from (axial, radial,
// azimuthal) into Cartesian components.
//
// A Table must not be modified once queries start; it is then safe for
// concurrent use.
type Table struct {
	Region         boundary.Region
	NeighborSearch bool

	table *FieldTable
	tree  *kdtree.Tree
	index map[[2]float64]int

	zMin, zMax float64
	rMin, rMax float64
}

func NewTable(t *FieldTable, region boundary.Region) (*Table, error) {
	if t == nil || len(t.Rows) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 table rows", dynamo.ErrInterpolation)
	}
	cols := t.Columns
	need := cols.max() + 1
	tb := &Table{
		Region: region,
		table:  t,
		index:  make(map[[2]float64]int, len(t.Rows)),
		zMin:   math.Inf(1),
		zMax:   math.Inf(-1),
		rMin:   math.Inf(1),
		rMax:   math.Inf(-1),
	}

	pts := make(kdtree.Points, 0, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) < need {
			return nil, fmt.Errorf("%w: row %d has %d columns, need %d", dynamo.ErrInterpolation, i, len(row), need)
		}
		key := [2]float64{row[cols.Axial], row[cols.Radial]}
		if _, dup := tb.index[key]; dup {
			continue
		}
		tb.index[key] = i
		pts = append(pts, kdtree.Point{key[0], key[1]})

		tb.zMin, tb.zMax = math.Min(tb.zMin, key[0]), math.Max(tb.zMax, key[0])
		tb.rMin, tb.rMax = math.Min(tb.rMin, key[1]), math.Max(tb.rMax, key[1])
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d distinct grid points, need at least 3", dynamo.ErrInterpolation, len(pts))
	}
	tb.tree = kdtree.New(pts, false)
	return tb, nil
}

// Extent returns the axial and radial range covered by the table [m].
func (tb *Table) Extent() (zMin, zMax, rMin, rMax float64) {
	return tb.zMin, tb.zMax, tb.rMin, tb.rMax
}

// neighbors returns the row indices of the grid points nearest (z, r),
// closest first.
func (tb *Table) neighbors(z, r float64) ([]int, error) {
	n := 3
	if tb.NeighborSearch {
		n = candidates
	}
	keeper := kdtree.NewNKeeper(n)
	tb.tree.NearestSet(keeper, kdtree.Point{z, r})

	found := make([]kdtree.ComparableDist, 0, n)
	for _, c := range keeper.Heap {
		if c.Comparable != nil {
			found = append(found, c)
		}
	}
	if len(found) < 3 {
		return nil, fmt.Errorf("%w: found %d neighbors for (z=%g, r=%g)", dynamo.ErrInterpolation, len(found), z, r)
	}
	slices.SortFunc(found, func(a, b kdtree.ComparableDist) int { return cmp.Compare(a.Dist, b.Dist) })

	rows := make([]int, len(found))
	for i, c := range found {
		p := c.Comparable.(kdtree.Point)
		rows[i] = tb.index[[2]float64{p[0], p[1]}]
	}
	return rows, nil
}

// factorize picks the closest triple of rows that spans a plane.
func (tb *Table) factorize(rows []int) (*mat.LU, []int, bool) {
	c := tb.table.Columns
	a := mat.NewDense(3, 3, nil)
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			for k := j + 1; k < len(rows); k++ {
				triple := []int{rows[i], rows[j], rows[k]}
				for n, ri := range triple {
					row := tb.table.Rows[ri]
					a.SetRow(n, []float64{row[c.Axial], row[c.Radial], 1})
				}
				var lu mat.LU
				lu.Factorize(a)
				if cond := lu.Cond(); !math.IsInf(cond, 0) && !math.IsNaN(cond) && cond <= maxCondition {
					return &lu, triple, true
				}
			}
		}
	}
	return nil, nil, false
}

// fit solves the plane q = A*z + B*r + C for each requested column and
// evaluates it at (z, r).
func (tb *Table) fit(z, r float64, rows []int, cols []int) ([]float64, error) {
	lu, triple, ok := tb.factorize(rows)
	if !ok {
		return nil, fmt.Errorf("%w: nearest grid points to (z=%g, r=%g) are collinear", dynamo.ErrInterpolation, z, r)
	}
	b := mat.NewDense(3, len(cols), nil)
	for i, ri := range triple {
		for j, col := range cols {
			b.Set(i, j, tb.table.Rows[ri][col])
		}
	}
	var coef mat.Dense
	if err := lu.SolveTo(&coef, false, b); err != nil {
		return nil, fmt.Errorf("%w: plane fit near (z=%g, r=%g): %v", dynamo.ErrInterpolation, z, r, err)
	}

	out := make([]float64, len(cols))
	for j := range cols {
		out[j] = coef.At(0, j)*z + coef.At(1, j)*r + coef.At(2, j)
	}
	return out, nil
}

func (tb *Table) Query(pos r3.Vec) (Conditions, error) {
	z := pos.Z
	r := math.Hypot(pos.X, pos.Y)
	if z < tb.zMin || z > tb.zMax || r < tb.rMin || r > tb.rMax || (tb.Region != nil && !tb.Region.Contains(pos)) {
		return Conditions{InBounds: false}, nil
	}

	rows, err := tb.neighbors(z, r)
	if err != nil {
		return Conditions{}, err
	}
	c := tb.table.Columns
	q, err := tb.fit(z, r, rows, []int{c.Density, c.Temperature, c.VAxial, c.VRadial, c.VAzimuthal})
	if err != nil {
		return Conditions{}, err
	}
	vAxial, vRadial, vAzimuthal := q[2], q[3], q[4]

	theta := math.Atan2(pos.Y, pos.X)
	sinT, cosT := math.Sincos(theta)
	return checkPhysical(Conditions{
		Density:     q[0],
		Temperature: q[1],
		Flow: r3.Vec{
			X: cosT*vRadial + sinT*vAzimuthal,
			Y: sinT*vRadial - cosT*vAzimuthal,
			Z: vAxial,
		},
		InBounds: true,
	}, pos)
}
