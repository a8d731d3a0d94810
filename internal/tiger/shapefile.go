package tiger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ParseBoundaries reads a cartographic boundary shapefile and returns its
// geometries keyed by the layer's GEOID attribute, plus the count of records
// skipped for missing keys or unusable geometry.
func ParseBoundaries(shpPath string, layer Layer) (map[string]geom.T, int, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// DBF field names are fixed-width and NUL-padded.
	geoidIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, layer.GEOIDField) {
			geoidIdx = i
			break
		}
	}
	if geoidIdx < 0 {
		return nil, 0, eris.Errorf("tiger: shapefile %s has no %s attribute", shpPath, layer.GEOIDField)
	}

	geoms := make(map[string]geom.T)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		geoid := strings.TrimSpace(strings.TrimRight(reader.Attribute(geoidIdx), "\x00"))
		if geoid == "" {
			skipped++
			continue
		}

		g := geomFromShape(shape)
		if g == nil {
			skipped++
			continue
		}

		geoms[geoid] = g
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("layer", layer.Name),
			zap.Int("skipped", skipped),
		)
	}

	return geoms, skipped, nil
}
