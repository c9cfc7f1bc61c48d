// Package export writes trajectories and particle clouds as SVG images of
// the x–z plane.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/san-kum/dsmcsim/internal/viz"
	"gonum.org/v1/gonum/spatial/r3"
)

const background = "#0a0a0a"

// View is the x–z window mapped onto a Size×Size image, z up.
type View struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
	Size       int
}

// BoxView shows [-half, half] on both axes with a 10% margin.
func BoxView(half float64, size int) View {
	m := half * 1.1
	return View{MinX: -m, MaxX: m, MinZ: -m, MaxZ: m, Size: size}
}

// FitView covers every point, padded by 10%.
func FitView(size int, sets ...[]r3.Vec) View {
	v := View{MinX: math.Inf(1), MaxX: math.Inf(-1), MinZ: math.Inf(1), MaxZ: math.Inf(-1), Size: size}
	for _, pts := range sets {
		for _, p := range pts {
			v.MinX, v.MaxX = min(v.MinX, p.X), max(v.MaxX, p.X)
			v.MinZ, v.MaxZ = min(v.MinZ, p.Z), max(v.MaxZ, p.Z)
		}
	}
	if math.IsInf(v.MinX, 1) {
		return View{MinX: -1, MaxX: 1, MinZ: -1, MaxZ: 1, Size: size}
	}
	padX := max((v.MaxX-v.MinX)*0.1, 1e-9)
	padZ := max((v.MaxZ-v.MinZ)*0.1, 1e-9)
	v.MinX, v.MaxX = v.MinX-padX, v.MaxX+padX
	v.MinZ, v.MaxZ = v.MinZ-padZ, v.MaxZ+padZ
	return v
}

func (v View) xy(p r3.Vec) (float64, float64) {
	s := float64(v.Size)
	return (p.X - v.MinX) / (v.MaxX - v.MinX) * s, s - (p.Z-v.MinZ)/(v.MaxZ-v.MinZ)*s
}

// Drawing accumulates SVG elements over one view.
type Drawing struct {
	view View
	sb   strings.Builder
}

func NewDrawing(v View) *Drawing {
	d := &Drawing{view: v}
	fmt.Fprintf(&d.sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, v.Size, v.Size, v.Size, v.Size, background)
	return d
}

// Frame outlines the square [-half, half] in x and z.
func (d *Drawing) Frame(half float64) {
	x0, y0 := d.view.xy(r3.Vec{X: -half, Z: half})
	x1, y1 := d.view.xy(r3.Vec{X: half, Z: -half})
	fmt.Fprintf(&d.sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#444466" stroke-width="1"/>
`, x0, y0, x1-x0, y1-y0)
}

func (d *Drawing) Path(pts []r3.Vec, stroke string) {
	if len(pts) < 2 {
		return
	}
	fmt.Fprintf(&d.sb, `<path fill="none" stroke="%s" stroke-width="1.2" d="`, stroke)
	for i, p := range pts {
		x, y := d.view.xy(p)
		if i == 0 {
			fmt.Fprintf(&d.sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&d.sb, " L%.1f,%.1f", x, y)
		}
	}
	d.sb.WriteString("\"/>\n")
}

func (d *Drawing) Points(pts []r3.Vec, fill string, radius float64) {
	fmt.Fprintf(&d.sb, "<g fill=\"%s\">\n", fill)
	for _, p := range pts {
		x, y := d.view.xy(p)
		fmt.Fprintf(&d.sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", x, y, radius)
	}
	d.sb.WriteString("</g>\n")
}

func (d *Drawing) String() string {
	return d.sb.String() + "</svg>\n"
}

func (d *Drawing) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, d.String())
	return int64(n), err
}

func (d *Drawing) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CanvasSVG draws every set braille dot of c as a circle, scale pixels
// apart.
func CanvasSVG(c *viz.Canvas, scale float64) string {
	if c == nil {
		return ""
	}
	width := float64(c.Width) * scale * 2
	height := float64(c.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="#00ff88">
`, width, height, width, height, background)
	for y := 0; y < c.Height*4; y++ {
		for x := 0; x < c.Width*2; x++ {
			if c.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, scale*0.4)
			}
		}
	}
	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
