package census

import "github.com/twpayne/go-geom"

// AttachGeometry sets each unit's Geometry from the GEOID-keyed boundary map
// and returns how many units matched. Units without a matching boundary keep
// a nil Geometry; boundaries without a matching unit are ignored.
func AttachGeometry(units []Unit, geoms map[string]geom.T) int {
	var matched int
	for i := range units {
		if g, ok := geoms[units[i].GEOID]; ok {
			units[i].Geometry = g
			matched++
		}
	}
	return matched
}
