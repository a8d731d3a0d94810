package choropleth

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
)

// kmPerDegree is the mean ground length of one degree of latitude.
const kmPerDegree = 111.195

// bbox accumulates the union bounding box of geometries in lon/lat space.
type bbox struct {
	minX, minY, maxX, maxY float64
	ok                     bool
}

func (b *bbox) extend(g geom.T) {
	if g == nil || g.Empty() {
		return
	}

	gb := g.Bounds()
	if !b.ok {
		b.minX, b.minY = gb.Min(0), gb.Min(1)
		b.maxX, b.maxY = gb.Max(0), gb.Max(1)
		b.ok = true
		return
	}
	b.minX = math.Min(b.minX, gb.Min(0))
	b.minY = math.Min(b.minY, gb.Min(1))
	b.maxX = math.Max(b.maxX, gb.Max(0))
	b.maxY = math.Max(b.maxY, gb.Max(1))
}

// projection maps lon/lat onto a pixel rectangle using an equirectangular
// projection with cos(mid-latitude) horizontal compensation. All panels
// share one projection so shapes line up across facets.
type projection struct {
	box    bbox
	cosMid float64
	scale  float64 // pixels per compensated degree
	offX   float64
	offY   float64
}

func newProjection(box bbox, w, h float64) projection {
	midLat := (box.minY + box.maxY) / 2
	cosMid := math.Cos(midLat * math.Pi / 180)

	projW := (box.maxX - box.minX) * cosMid
	projH := box.maxY - box.minY

	var sc float64
	switch {
	case projW > 0 && projH > 0:
		sc = math.Min(w/projW, h/projH)
	case projW > 0:
		sc = w / projW
	case projH > 0:
		sc = h / projH
	default:
		sc = 1
	}

	return projection{
		box:    box,
		cosMid: cosMid,
		scale:  sc,
		offX:   (w - projW*sc) / 2,
		offY:   (h - projH*sc) / 2,
	}
}

// point maps a lon/lat pair to pixel coordinates relative to the content
// origin, y growing downward.
func (p projection) point(lon, lat float64) (float64, float64) {
	x := (lon-p.box.minX)*p.cosMid*p.scale + p.offX
	y := (p.box.maxY-lat)*p.scale + p.offY
	return x, y
}

// kmPerPixel reports ground distance per pixel at the projection's
// mid-latitude. The cosine compensation cancels, leaving meridian scale.
func (p projection) kmPerPixel() float64 {
	if p.scale <= 0 {
		return 0
	}
	return kmPerDegree / p.scale
}

// geometryPath converts an areal geometry to an SVG path in pixel space,
// offset by the panel's content origin. Non-areal geometries yield an
// empty path.
func geometryPath(g geom.T, proj projection, originX, originY float64) string {
	var sb strings.Builder
	switch t := g.(type) {
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polygonPath(&sb, t.Polygon(i), proj, originX, originY)
		}
	case *geom.Polygon:
		polygonPath(&sb, t, proj, originX, originY)
	}
	return sb.String()
}

func polygonPath(sb *strings.Builder, poly *geom.Polygon, proj projection, ox, oy float64) {
	for r := 0; r < poly.NumLinearRings(); r++ {
		ring := poly.LinearRing(r)
		coords := ring.FlatCoords()
		stride := ring.Stride()

		for i := 0; i+1 < len(coords); i += stride {
			x, y := proj.point(coords[i], coords[i+1])
			cmd := byte('L')
			if i == 0 {
				cmd = 'M'
			}
			fmt.Fprintf(sb, "%c%.2f %.2f", cmd, x+ox, y+oy)
		}
		sb.WriteByte('Z')
	}
}
