package choropleth

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/rotisserie/eris"
)

// Defaults match the familiar continuous fill ramp from the workflows this
// renderer replaces.
const (
	defaultLowColor    = "#132B43"
	defaultHighColor   = "#56B1F7"
	defaultNoDataColor = "#7f7f7f"
)

// ScaleOptions configures the color scale shared by all panels.
type ScaleOptions struct {
	LowColor     string  // ramp start
	HighColor    string  // ramp end
	NoDataColor  string  // fill for units with no value
	TrimQuantile float64 // trim the domain to [q, 1-q] against outliers
	Classes      int     // >1 quantizes the ramp into discrete classes
}

// scale maps values onto the color ramp over a shared domain.
type scale struct {
	domain  [2]float64
	low     rgb
	high    rgb
	noData  string
	classes int
}

func newScale(values []float64, opts ScaleOptions) (*scale, error) {
	if opts.LowColor == "" {
		opts.LowColor = defaultLowColor
	}
	if opts.HighColor == "" {
		opts.HighColor = defaultHighColor
	}
	if opts.NoDataColor == "" {
		opts.NoDataColor = defaultNoDataColor
	}
	if opts.TrimQuantile < 0 || opts.TrimQuantile >= 0.5 {
		return nil, eris.Errorf("choropleth: trim quantile %v out of range [0, 0.5)", opts.TrimQuantile)
	}

	low, err := parseColor(opts.LowColor)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: low color")
	}
	high, err := parseColor(opts.HighColor)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: high color")
	}

	xs := append([]float64(nil), values...)
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}

	var lo, hi float64
	if opts.TrimQuantile > 0 && len(xs) > 2 {
		lo = sample.Quantile(opts.TrimQuantile)
		hi = sample.Quantile(1 - opts.TrimQuantile)
	} else {
		lo, hi = sample.Bounds()
	}

	return &scale{
		domain:  [2]float64{lo, hi},
		low:     low,
		high:    high,
		noData:  opts.NoDataColor,
		classes: opts.Classes,
	}, nil
}

// color returns the fill for one observation.
func (s *scale) color(v float64, valid bool) string {
	if !valid {
		return s.noData
	}

	t := 0.5
	if s.domain[1] > s.domain[0] {
		t = (v - s.domain[0]) / (s.domain[1] - s.domain[0])
	}
	t = math.Max(0, math.Min(1, t))

	if s.classes > 1 {
		idx := int(t * float64(s.classes))
		if idx >= s.classes {
			idx = s.classes - 1
		}
		t = float64(idx) / float64(s.classes-1)
	}

	return s.low.lerp(s.high, t).String()
}

// colorAt samples the continuous ramp at position t in [0, 1].
func (s *scale) colorAt(t float64) string {
	return s.low.lerp(s.high, t).String()
}

type rgb struct {
	r, g, b uint8
}

func parseColor(s string) (rgb, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return rgb{}, eris.Errorf("color %q must be #rgb or #rrggbb", s)
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, eris.Errorf("color %q must be #rgb or #rrggbb", s)
	}

	var c rgb
	for i, dst := range []*uint8{&c.r, &c.g, &c.b} {
		v, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return rgb{}, eris.Errorf("color %q must be #rgb or #rrggbb", s)
		}
		*dst = uint8(v)
	}
	return c, nil
}

func (c rgb) lerp(o rgb, t float64) rgb {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + t*(float64(b)-float64(a))))
	}
	return rgb{mix(c.r, o.r), mix(c.g, o.g), mix(c.b, o.b)}
}

func (c rgb) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}
