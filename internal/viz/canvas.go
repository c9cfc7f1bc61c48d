package viz

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a grid of braille cells. Pixel coordinates run over
// (Width*2) x (Height*4) with y growing downwards.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

// IsSet reports whether pixel (x, y) is on. Out-of-range pixels are off.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&pixelMap[y%4][x%2] != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws with Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Projector maps the x–z plane onto a canvas: x to the right, z up.
type Projector struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
	canvas     *Canvas
}

// NewProjector covers [-half, half] on both axes.
func NewProjector(c *Canvas, half float64) *Projector {
	return &Projector{MinX: -half, MaxX: half, MinZ: -half, MaxZ: half, canvas: c}
}

// FitProjector covers the x–z extent of pts, padded by 5%.
func FitProjector(c *Canvas, pts []r3.Vec) *Projector {
	p := &Projector{MinX: math.Inf(1), MaxX: math.Inf(-1), MinZ: math.Inf(1), MaxZ: math.Inf(-1), canvas: c}
	for _, v := range pts {
		p.MinX, p.MaxX = min(p.MinX, v.X), max(p.MaxX, v.X)
		p.MinZ, p.MaxZ = min(p.MinZ, v.Z), max(p.MaxZ, v.Z)
	}
	if len(pts) == 0 {
		p.MinX, p.MaxX, p.MinZ, p.MaxZ = -1, 1, -1, 1
	}
	padX := max((p.MaxX-p.MinX)*0.05, 1e-12)
	padZ := max((p.MaxZ-p.MinZ)*0.05, 1e-12)
	p.MinX, p.MaxX = p.MinX-padX, p.MaxX+padX
	p.MinZ, p.MaxZ = p.MinZ-padZ, p.MaxZ+padZ
	return p
}

func (p *Projector) Canvas() *Canvas { return p.canvas }

// Pixel returns the canvas pixel of v and whether it is inside the view.
func (p *Projector) Pixel(v r3.Vec) (int, int, bool) {
	w, h := p.canvas.Width*2, p.canvas.Height*4
	fx := (v.X - p.MinX) / (p.MaxX - p.MinX)
	fz := (v.Z - p.MinZ) / (p.MaxZ - p.MinZ)
	if fx < 0 || fx > 1 || fz < 0 || fz > 1 || math.IsNaN(fx) || math.IsNaN(fz) {
		return 0, 0, false
	}
	x := min(int(fx*float64(w-1)+0.5), w-1)
	y := h - 1 - min(int(fz*float64(h-1)+0.5), h-1)
	return x, y, true
}

func (p *Projector) Point(v r3.Vec) {
	if x, y, ok := p.Pixel(v); ok {
		p.canvas.Set(x, y)
	}
}

func (p *Projector) Points(pts []r3.Vec) {
	for _, v := range pts {
		p.Point(v)
	}
}

// Path joins consecutive points; segments leaving the view are dropped.
func (p *Projector) Path(pts []r3.Vec) {
	for i := 1; i < len(pts); i++ {
		x0, y0, ok0 := p.Pixel(pts[i-1])
		x1, y1, ok1 := p.Pixel(pts[i])
		if ok0 && ok1 {
			p.canvas.DrawLine(x0, y0, x1, y1)
		}
	}
}

// Frame outlines the square [-half, half] in x and z.
func (p *Projector) Frame(half float64) {
	corners := []r3.Vec{{X: -half, Z: -half}, {X: half, Z: -half}, {X: half, Z: half}, {X: -half, Z: half}, {X: -half, Z: -half}}
	p.Path(corners)
}
