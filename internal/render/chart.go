package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"popdash/domain/core"
	"popdash/domain/population"
)

// Default chart size in pixels.
const (
	DefaultChartWidth  = 960
	DefaultChartHeight = 400
)

var seriesColor = drawing.ColorFromHex("8884d8")

// ChartOptions sizes the rendered image.
type ChartOptions struct {
	Width  int
	Height int
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Width <= 0 {
		o.Width = DefaultChartWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultChartHeight
	}
	return o
}

// SeriesPNG draws series as a filled area chart, oldest year on the left.
// Null values and non-numeric years are skipped. Returns
// core.ErrInsufficientData when nothing is left to plot.
func SeriesPNG(w io.Writer, info population.IndicatorInfo, series population.IndicatorSeries, opts ChartOptions) error {
	opts = opts.withDefaults()

	xs, ys := plotPoints(series)
	if len(xs) == 0 {
		return fmt.Errorf("nothing to plot for %s: %w", info.Code, core.ErrInsufficientData)
	}

	ch := chart.Chart{
		Title:      info.Label,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Year",
			Range:          paddedRange(xs, 1),
			ValueFormatter: func(v interface{}) string { return yearLabel(v) },
		},
		YAxis: chart.YAxis{
			Range: paddedRange(ys, math.Max(math.Abs(ys[0])*0.01, 1)),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return axisTick(info.Unit, f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    info.Label,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: seriesColor,
					StrokeWidth: 2,
					FillColor:   seriesColor.WithAlpha(96),
					DotColor:    seriesColor,
					DotWidth:    4,
				},
			},
		},
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render %s chart: %w", info.Code, err)
	}
	return nil
}

// plotPoints returns the plottable points sorted by year.
func plotPoints(series population.IndicatorSeries) ([]float64, []float64) {
	type point struct{ x, y float64 }
	points := make([]point, 0, len(series))
	for _, o := range series {
		if o.Value == nil {
			continue
		}
		year, err := strconv.Atoi(o.Year)
		if err != nil {
			continue
		}
		points = append(points, point{x: float64(year), y: *o.Value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].x < points[j].x })

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.x
		ys[i] = p.y
	}
	return xs, ys
}

// paddedRange spans values, widening a zero-width span by pad on each side
// since the renderer rejects empty ranges.
func paddedRange(values []float64, pad float64) *chart.ContinuousRange {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		lo -= pad
		hi += pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func yearLabel(v interface{}) string {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return ""
	}
	return strconv.Itoa(int(f))
}
