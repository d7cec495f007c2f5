package format

import (
	"encoding/json"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
)

// ExactProperty is the feature property that holds the exact "x,y" decimal vertices of a contour.
const ExactProperty = "exact"

func orbPoint(p parcel.Point) orb.Point {
	x, y := p.Float()
	return orb.Point{x, y}
}

func orbPolygon(c parcel.Contour) orb.Polygon {
	return orb.Polygon{orb.Ring(ring(c, orbPoint))}
}

func fromOrbRing(r orb.Ring) parcel.Contour {
	return fromRing(len(r), func(i int) (float64, float64) {
		return r[i][0], r[i][1]
	})
}

// fromOrb returns the outer rings of (multi)polygons, holes are ignored.
func fromOrb(g orb.Geometry) ([]parcel.Contour, error) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil, nil
		}
		return []parcel.Contour{fromOrbRing(g[0])}, nil
	case orb.MultiPolygon:
		cs := []parcel.Contour{}
		for _, poly := range g {
			if 0 < len(poly) {
				cs = append(cs, fromOrbRing(poly[0]))
			}
		}
		return cs, nil
	case orb.Ring:
		return []parcel.Contour{fromOrbRing(g)}, nil
	case orb.Collection:
		cs := []parcel.Contour{}
		for _, h := range g {
			hs, err := fromOrb(h)
			if err != nil {
				return nil, err
			}
			cs = append(cs, hs...)
		}
		return cs, nil
	case nil:
		return nil, nil
	}
	return nil, errors.Errorf("unsupported geometry %s", g.GeoJSONType())
}

func fromFeature(f *geojson.Feature) ([]parcel.Contour, error) {
	if exact, ok := f.Properties[ExactProperty].([]interface{}); ok {
		c := make(parcel.Contour, 0, len(exact))
		for _, v := range exact {
			s, ok := v.(string)
			if !ok {
				return nil, errors.Errorf("bad %s property", ExactProperty)
			}
			p, err := parcel.ParsePoint(s)
			if err != nil {
				return nil, err
			}
			c = append(c, p)
		}
		return []parcel.Contour{c}, nil
	}
	return fromOrb(f.Geometry)
}

func readGeoJSON(b []byte) ([]parcel.Contour, error) {
	var typ struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &typ); err != nil {
		return nil, err
	}

	switch typ.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(b)
		if err != nil {
			return nil, err
		}
		cs := []parcel.Contour{}
		for _, f := range fc.Features {
			fcs, err := fromFeature(f)
			if err != nil {
				return nil, err
			}
			cs = append(cs, fcs...)
		}
		return cs, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(b)
		if err != nil {
			return nil, err
		}
		return fromFeature(f)
	default:
		g, err := geojson.UnmarshalGeometry(b)
		if err != nil {
			return nil, err
		}
		return fromOrb(g.Geometry())
	}
}

func writeGeoJSON(w io.Writer, cs []parcel.Contour) error {
	fc := geojson.NewFeatureCollection()
	for _, c := range cs {
		exact := make([]string, len(c))
		for i, p := range c {
			exact[i] = parcel.FormatFixed(p.X) + "," + parcel.FormatFixed(p.Y)
		}
		f := geojson.NewFeature(orbPolygon(c))
		f.Properties[ExactProperty] = exact
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
