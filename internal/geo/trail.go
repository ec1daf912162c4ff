package geo

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rangelab/trajector/pkg/core"
)

// The flight plane is two dimensional: X meters downrange, Y meters above the
// launch plane. Georeferencing maps it onto EPSG:3857 with the range axis
// pointing due east from the site origin and the site elevation stacked under
// the flight height.

// RangePoint maps a flight-plane position onto the map around the site origin.
func RangePoint(origin geom.Point, downrange float64, height float64) geom.Point {
	coord, ok := origin.Coordinates()
	if !ok {
		coord = geom.Coordinates{}
	}
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: coord.X + downrange, Y: coord.Y},
			Z:    coord.Z + height,
			Type: geom.DimXYZ,
		},
	)
}

// TrailLineString builds a LineStringZM from a completed flight trail:
// easting, northing, altitude ASL, with the measure carrying flight time in
// milliseconds. Fewer than two points produce an empty line string.
func TrailLineString(origin geom.Point, trail []core.TrailPoint) geom.LineString {
	if len(trail) < 2 {
		return geom.LineString{}
	}
	coord, ok := origin.Coordinates()
	if !ok {
		coord = geom.Coordinates{}
	}
	coords := make([]float64, 0, len(trail)*4)
	for _, pt := range trail {
		coords = append(coords, coord.X+pt.X, coord.Y, coord.Z+pt.Y, math.Round(pt.FlightTime*1000))
	}
	points := geom.NewSequence(coords, geom.DimXYZM)
	return geom.NewLineString(points)
}
