package format

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

func geomCoord(p parcel.Point) geom.Coord {
	x, y := p.Float()
	return geom.Coord{x, y}
}

// toGeom returns a polygon for a single contour and a multipolygon otherwise.
func toGeom(cs []parcel.Contour) (geom.T, error) {
	if len(cs) == 1 {
		return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring(cs[0], geomCoord)})
	}
	coords := make([][][]geom.Coord, len(cs))
	for i, c := range cs {
		coords[i] = [][]geom.Coord{ring(c, geomCoord)}
	}
	return geom.NewMultiPolygon(geom.XY).SetCoords(coords)
}

func fromGeomRing(r *geom.LinearRing) parcel.Contour {
	return fromRing(r.NumCoords(), func(i int) (float64, float64) {
		c := r.Coord(i)
		return c.X(), c.Y()
	})
}

// fromGeom returns the outer rings of (multi)polygons, holes are ignored.
func fromGeom(g geom.T) ([]parcel.Contour, error) {
	switch g := g.(type) {
	case *geom.Polygon:
		if g.NumLinearRings() == 0 {
			return []parcel.Contour{}, nil
		}
		return []parcel.Contour{fromGeomRing(g.LinearRing(0))}, nil
	case *geom.MultiPolygon:
		cs := []parcel.Contour{}
		for i := 0; i < g.NumPolygons(); i++ {
			if poly := g.Polygon(i); 0 < poly.NumLinearRings() {
				cs = append(cs, fromGeomRing(poly.LinearRing(0)))
			}
		}
		return cs, nil
	case *geom.GeometryCollection:
		cs := []parcel.Contour{}
		for i := 0; i < g.NumGeoms(); i++ {
			gs, err := fromGeom(g.Geom(i))
			if err != nil {
				return nil, err
			}
			cs = append(cs, gs...)
		}
		return cs, nil
	}
	return nil, errors.Errorf("unsupported geometry %T", g)
}

func readWKT(b []byte) ([]parcel.Contour, error) {
	g, err := wkt.Unmarshal(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, err
	}
	return fromGeom(g)
}

func writeWKT(w io.Writer, cs []parcel.Contour) error {
	g, err := toGeom(cs)
	if err != nil {
		return err
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s+"\n")
	return err
}

func readWKB(b []byte) ([]parcel.Contour, error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	return fromGeom(g)
}

func writeWKB(w io.Writer, cs []parcel.Contour) error {
	g, err := toGeom(cs)
	if err != nil {
		return err
	}
	b, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
