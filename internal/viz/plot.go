package viz

import (
	"fmt"
	"math"
	"slices"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	plotWidth  = 80
	plotHeight = 12
)

// Series plots one value sequence against its index.
func Series(data []float64, caption string) string {
	if len(data) == 0 {
		return Subtle.Render("no data: " + caption)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	)
}

// Histogram bins values into equal-width bins and plots the counts.
func Histogram(values []float64, bins int, caption string) (string, []float64) {
	if len(values) == 0 || bins < 1 {
		return Subtle.Render("no data: " + caption), nil
	}
	x := slices.Clone(values)
	slices.Sort(x)
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		hi = lo + 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// the last divider must exceed the maximum for it to be counted
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)

	caption = fmt.Sprintf("%s  [%.3g, %.3g]", caption, lo, hi)
	return asciigraph.Plot(counts,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	), counts
}

// Profile plots several series together, one color each.
func Profile(series map[string][]float64, caption string) string {
	names := make([]string, 0, len(series))
	for n, s := range series {
		if len(s) > 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return Subtle.Render("no data: " + caption)
	}
	slices.Sort(names)
	data := make([][]float64, len(names))
	for i, n := range names {
		data[i] = series[n]
	}
	colors := []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red}
	seriesColors := make([]asciigraph.AnsiColor, len(names))
	for i := range names {
		seriesColors[i] = colors[i%len(colors)]
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.SeriesColors(seriesColors...),
		asciigraph.SeriesLegends(names...),
		asciigraph.Caption(caption),
	)
}
