// Package choropleth renders faceted choropleth maps as standalone SVG
// documents: one panel per variable, a shared color scale, and the usual
// cartographic furniture (legend, north arrow, scale bar).
package choropleth

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/censusmap/internal/frame"
)

// ErrNoData reports a render call with nothing to draw.
var ErrNoData = eris.New("choropleth: no data to render")

// Corner selects where the north arrow sits. The zero value is top right.
type Corner int

const (
	CornerTopRight Corner = iota
	CornerTopLeft
	CornerBottomLeft
	CornerBottomRight
	CornerNone
)

// Units selects the scale bar's measurement system. The zero value is metric.
type Units int

const (
	UnitsMetric Units = iota
	UnitsImperial
	UnitsNone
)

const (
	DefaultWidth   = 960
	DefaultHeight  = 720
	DefaultColumns = 2

	marginOuter  = 16
	titleHeight  = 36
	facetLabelH  = 22
	panelGap     = 10
	panelPad     = 6
	legendHeight = 56
)

// Options configures one rendering.
type Options struct {
	Title      string
	Columns    int
	Width      int
	Height     int
	Scale      ScaleOptions
	NorthArrow Corner
	ScaleBar   Units
}

func (o Options) withDefaults() Options {
	if o.Columns <= 0 {
		o.Columns = DefaultColumns
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// Artifact is a finished rendering.
type Artifact struct {
	SVG    []byte
	RunID  string
	Panels []string
	Domain [2]float64
}

// Render draws one SVG with a grid of panels, one per distinct variable in
// first-appearance order. All panels share one color scale and one
// projection. Units without a value are filled with the no-data color,
// never dropped.
func Render(long *frame.Long, opts Options) (*Artifact, error) {
	opts = opts.withDefaults()

	panels := panelOrder(long)
	if len(panels) == 0 {
		return nil, eris.Wrap(ErrNoData, "no variables")
	}

	var values []float64
	var box bbox
	for _, obs := range long.Rows {
		if obs.Valid {
			values = append(values, obs.Value)
		}
		box.extend(obs.Geometry)
	}
	if len(values) == 0 {
		return nil, eris.Wrap(ErrNoData, "every value is missing")
	}
	if !box.ok {
		return nil, eris.Wrap(ErrNoData, "no geometries")
	}

	sc, err := newScale(values, opts.Scale)
	if err != nil {
		return nil, err
	}

	cols := opts.Columns
	if cols > len(panels) {
		cols = len(panels)
	}
	rows := (len(panels) + cols - 1) / cols

	gridTop := marginOuter
	if opts.Title != "" {
		gridTop += titleHeight
	}
	gridW := opts.Width - 2*marginOuter
	gridH := opts.Height - marginOuter - legendHeight - gridTop

	panelW := (gridW - (cols-1)*panelGap) / cols
	panelH := (gridH - (rows-1)*panelGap) / rows
	contentH := panelH - facetLabelH
	if panelW < 4*panelPad || contentH < 4*panelPad {
		return nil, eris.Errorf("choropleth: %dx%d leaves no room for %d panels", opts.Width, opts.Height, len(panels))
	}

	proj := newProjection(box, float64(panelW-2*panelPad), float64(contentH-2*panelPad))

	byPanel := make(map[string][]frame.Observation, len(panels))
	for _, obs := range long.Rows {
		byPanel[obs.Variable] = append(byPanel[obs.Variable], obs)
	}

	buf := &bytes.Buffer{}
	canvas := svg.New(buf)
	canvas.Start(opts.Width, opts.Height, `font-family="Helvetica,Arial,sans-serif"`)

	canvas.Def()
	canvas.LinearGradient("ramp", 0, 0, 100, 0, rampStops(sc, 5))
	canvas.DefEnd()

	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#ffffff")

	if opts.Title != "" {
		canvas.Text(opts.Width/2, marginOuter+22, opts.Title,
			`text-anchor="middle" font-size="18px" fill="#111111"`)
	}

	for i, name := range panels {
		px := marginOuter + (i%cols)*(panelW+panelGap)
		py := gridTop + (i/cols)*(panelH+panelGap)
		drawPanel(canvas, byPanel[name], name, sc, proj, px, py, panelW, panelH)
	}

	drawLegend(canvas, sc, opts)
	if opts.NorthArrow != CornerNone {
		drawNorthArrow(canvas, opts.NorthArrow, opts.Width, gridTop, gridTop+gridH)
	}
	if opts.ScaleBar != UnitsNone {
		drawScaleBar(canvas, proj, opts.ScaleBar, opts.Width, opts.Height)
	}

	canvas.End()

	zap.L().Debug("choropleth: rendered",
		zap.Strings("panels", panels),
		zap.Int("rows", len(long.Rows)),
		zap.Float64("domainLow", sc.domain[0]),
		zap.Float64("domainHigh", sc.domain[1]),
	)

	return &Artifact{
		SVG:    buf.Bytes(),
		RunID:  uuid.New().String(),
		Panels: panels,
		Domain: sc.domain,
	}, nil
}

// RenderWide renders a single metric straight from a wide frame.
func RenderWide(f *frame.Frame, metric string, opts Options) (*Artifact, error) {
	long, err := f.Unpivot("variable", "value", metric)
	if err != nil {
		return nil, err
	}
	return Render(long, opts)
}

func panelOrder(long *frame.Long) []string {
	var names []string
	seen := make(map[string]bool)
	for _, obs := range long.Rows {
		if !seen[obs.Variable] {
			seen[obs.Variable] = true
			names = append(names, obs.Variable)
		}
	}
	return names
}

func drawPanel(canvas *svg.SVG, observations []frame.Observation, label string, sc *scale, proj projection, px, py, w, h int) {
	canvas.Rect(px, py, w, facetLabelH, "fill:#e8e8e8;stroke:#cccccc;stroke-width:1")
	canvas.Text(px+w/2, py+facetLabelH-7, label,
		`text-anchor="middle" font-size="13px" fill="#333333"`)

	cy := py + facetLabelH
	canvas.Rect(px, cy, w, h-facetLabelH, "fill:#ffffff;stroke:#cccccc;stroke-width:1")

	ox := float64(px + panelPad)
	oy := float64(cy + panelPad)
	for _, obs := range observations {
		d := geometryPath(obs.Geometry, proj, ox, oy)
		if d == "" {
			continue
		}
		canvas.Path(d, fmt.Sprintf("fill:%s;stroke:#ffffff;stroke-width:0.5", sc.color(obs.Value, obs.Valid)))
	}
}

func rampStops(sc *scale, n int) []svg.Offcolor {
	stops := make([]svg.Offcolor, n)
	for i := range stops {
		t := float64(i) / float64(n-1)
		stops[i] = svg.Offcolor{Offset: uint8(math.Round(t * 100)), Color: sc.colorAt(t), Opacity: 1}
	}
	return stops
}

func drawLegend(canvas *svg.SVG, sc *scale, opts Options) {
	const gradW, gradH = 220, 12
	gx := marginOuter
	gy := opts.Height - legendHeight - marginOuter + 14

	canvas.Rect(gx, gy, gradW, gradH, "fill:url(#ramp);stroke:#999999;stroke-width:0.5")
	canvas.Text(gx, gy+gradH+14, formatNumber(sc.domain[0]), `font-size="11px" fill="#333333"`)
	canvas.Text(gx+gradW, gy+gradH+14, formatNumber(sc.domain[1]),
		`text-anchor="end" font-size="11px" fill="#333333"`)
}

func drawNorthArrow(canvas *svg.SVG, corner Corner, width, gridTop, gridBottom int) {
	const size = 22

	ax, ay := width-marginOuter-size-4, gridTop+8
	switch corner {
	case CornerTopLeft:
		ax = marginOuter + 4
	case CornerBottomLeft:
		ax, ay = marginOuter+4, gridBottom-size-22
	case CornerBottomRight:
		ay = gridBottom - size - 22
	}

	canvas.Polygon(
		[]int{ax + size/2, ax, ax + size},
		[]int{ay, ay + size, ay + size},
		"fill:#333333",
	)
	canvas.Text(ax+size/2, ay+size+14, "N",
		`text-anchor="middle" font-size="12px" fill="#333333"`)
}

func drawScaleBar(canvas *svg.SVG, proj projection, units Units, width, height int) {
	kmPerPx := proj.kmPerPixel()
	if kmPerPx <= 0 {
		return
	}

	distPerPx := kmPerPx
	suffix := " km"
	if units == UnitsImperial {
		distPerPx = kmPerPx / 1.609344
		suffix = " mi"
	}

	const targetPx = 140.0
	nice := niceNumber(targetPx * distPerPx)
	if nice <= 0 {
		return
	}
	barPx := int(nice / distPerPx)

	bx := width - marginOuter - barPx
	by := height - marginOuter - 18

	canvas.Line(bx, by, bx+barPx, by, "stroke:#333333;stroke-width:2")
	canvas.Line(bx, by-4, bx, by+4, "stroke:#333333;stroke-width:2")
	canvas.Line(bx+barPx, by-4, bx+barPx, by+4, "stroke:#333333;stroke-width:2")
	canvas.Text(bx+barPx/2, by+16, formatNumber(nice)+suffix,
		`text-anchor="middle" font-size="11px" fill="#333333"`)
}

// niceNumber rounds down to the nearest 1, 2, or 5 times a power of ten.
func niceNumber(v float64) float64 {
	if v <= 0 {
		return 0
	}
	base := math.Pow(10, math.Floor(math.Log10(v)))
	switch {
	case v/base >= 5:
		return 5 * base
	case v/base >= 2:
		return 2 * base
	default:
		return base
	}
}

var numPrinter = message.NewPrinter(language.English)

// formatNumber renders a decoration label compactly, grouping thousands on
// large magnitudes.
func formatNumber(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 100:
		return numPrinter.Sprintf("%.0f", v)
	case av >= 1:
		return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	default:
		return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	}
}
