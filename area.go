package parcel

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/pkg/errors"
	"github.com/wroge/wgs84/v2"
)

// EarthRadius is the mean radius of the earth in meters.
const EarthRadius = 6371008.8

// UTMZone returns the EPSG code of the WGS84 UTM zone that contains the centroid of the contour's bounding box.
func UTMZone(c Contour) int {
	lo, hi := c.Bounds()
	lon := (FixedToFloat(lo.X) + FixedToFloat(hi.X)) / 2.0
	lat := (FixedToFloat(lo.Y) + FixedToFloat(hi.Y)) / 2.0
	zone := int(math.Floor((lon+180.0)/6.0)) + 1
	zone = min(max(zone, 1), 60)
	if lat < 0.0 {
		return 32700 + zone
	}
	return 32600 + zone
}

// AreaUTM returns the area in square meters after projecting the longitude/latitude contour to its UTM zone. It is meant for reporting, the split itself never uses floating point.
func AreaUTM(c Contour) (float64, error) {
	if len(c) < 3 {
		return 0.0, errors.Wrapf(ErrDegenerateContour, "%d vertices", len(c))
	}
	utm := wgs84.Transform(wgs84.EPSG(4326), wgs84.EPSG(UTMZone(c)))
	xs := make([]float64, len(c))
	ys := make([]float64, len(c))
	for i, p := range c {
		lon, lat := p.Float()
		xs[i], ys[i], _ = utm(lon, lat, 0.0)
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			return 0.0, errors.Errorf("cannot project %v", p)
		}
	}
	area := 0.0
	for i := range xs {
		j := (i + 1) % len(xs)
		area += xs[i]*ys[j] - xs[j]*ys[i]
	}
	return math.Abs(area) / 2.0, nil
}

// AreaSphere returns the geodesic area in square meters of the longitude/latitude contour on a spherical earth.
func AreaSphere(c Contour) (float64, error) {
	if len(c) < 3 {
		return 0.0, errors.Wrapf(ErrDegenerateContour, "%d vertices", len(c))
	}
	pts := make([]s2.Point, len(c))
	for i, p := range c {
		lon, lat := p.Float()
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	}
	loop := s2.LoopFromPoints(pts)
	if err := loop.Validate(); err != nil {
		return 0.0, errors.Wrap(err, "invalid loop")
	}
	loop.Normalize()
	return loop.Area() * EarthRadius * EarthRadius, nil
}
