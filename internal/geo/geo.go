// Package geo projects flight-plane positions onto EPSG:3857 map points.
// Everything is stored projected, sites included, because SQLite has no
// spatial types and the rows must survive a round trip through plain WKB.
package geo

import (
	"github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// SiteLocation3857 projects site coordinates to 3857, stacking the site
// altitude ASL into the Z coordinate. This is the origin all flight samples
// get georeferenced against.
func SiteLocation3857(longitude, latitude, altitude float64) geom.Point {
	x, y, _ := wgs84.EPSG().Transform(4326, 3857)(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    altitude,
		Type: geom.DimXYZ,
	})
}

// Coords4326From3857 recovers longitude and latitude from a projected point,
// for rebuilding site records read back out of the database.
func Coords4326From3857(x, y float64) (longitude, latitude float64) {
	longitude, latitude, _ = wgs84.EPSG().Transform(3857, 4326)(x, y, 0)
	return longitude, latitude
}
