package batch

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/dsmcsim/internal/dynamo"
)

// Point is one assignment of sweep parameters.
type Point map[string]float64

// Label renders the point as "a=1 b=2" with names in sorted order.
func (p Point) Label() string {
	names := slices.Sorted(maps.Keys(p))
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + strconv.FormatFloat(p[n], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Grid is the cartesian product of per-parameter value lists. Points vary
// the last parameter fastest.
type Grid struct {
	names  []string
	values [][]float64
}

func NewGrid(names []string, values [][]float64) (*Grid, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%w: %d parameters but %d value lists", dynamo.ErrInvalidConfig, len(names), len(values))
	}
	for i, v := range values {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: parameter %q has no values", dynamo.ErrInvalidConfig, names[i])
		}
	}
	return &Grid{names: names, values: values}, nil
}

// ParseGrid reads "name=v1,v2,..." or "name=start:stop:step" per entry.
// A range excludes stop.
func ParseGrid(specs []string) (*Grid, error) {
	var names []string
	var values [][]float64
	for _, s := range specs {
		name, list, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: bad sweep %q, want name=values", dynamo.ErrInvalidConfig, s)
		}
		var vals []float64
		var err error
		if strings.Contains(list, ":") {
			vals, err = parseRange(list)
		} else {
			vals, err = parseList(list)
		}
		if err != nil {
			return nil, fmt.Errorf("sweep %q: %w", name, err)
		}
		names = append(names, name)
		values = append(values, vals)
	}
	return NewGrid(names, values)
}

func parseList(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseRange(s string) ([]float64, error) {
	f, err := parseList(strings.ReplaceAll(s, ":", ","))
	if err != nil {
		return nil, err
	}
	if len(f) != 3 {
		return nil, fmt.Errorf("%w: range %q, want start:stop:step", dynamo.ErrInvalidConfig, s)
	}
	return Steps(f[0], f[1], f[2])
}

// Steps returns start, start+step, ... strictly below stop. Values are
// computed as start+i*step so rounding does not accumulate.
func Steps(start, stop, step float64) ([]float64, error) {
	if step <= 0 || !(stop > start) {
		return nil, fmt.Errorf("%w: empty range [%g, %g) step %g", dynamo.ErrInvalidConfig, start, stop, step)
	}
	n := int(math.Ceil((stop-start)/step - 1e-9))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

func (g *Grid) Names() []string { return g.names }

func (g *Grid) Size() int {
	n := 1
	for _, v := range g.values {
		n *= len(v)
	}
	return n
}

func (g *Grid) Points() []Point {
	out := make([]Point, 0, g.Size())
	g.collect(0, Point{}, &out)
	return out
}

func (g *Grid) collect(depth int, current Point, out *[]Point) {
	if depth == len(g.names) {
		*out = append(*out, maps.Clone(current))
		return
	}
	name := g.names[depth]
	for _, v := range g.values[depth] {
		next := maps.Clone(current)
		next[name] = v
		g.collect(depth+1, next, out)
	}
}
