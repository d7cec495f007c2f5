package format

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"github.com/tdewolff/parcel/geohash"
	"github.com/tdewolff/test"
)

func contour(ps ...string) parcel.Contour {
	c := make(parcel.Contour, len(ps))
	for i, p := range ps {
		c[i] = parcel.MustParsePoint(p)
	}
	return c
}

var (
	parcelA = contour("104.5101,1.2291", "104.5098,1.2037", "104.532,1.2036", "104.5333,1.2271")
	parcelB = contour("104.532,1.2036", "104.55,1.2", "104.549,1.2344", "104.5333,1.2271")

	// exact intersection points do not survive a float conversion
	exactA = contour("104.532601700707063688,1.214004978082517353", "104.533367324620485305,1.227113390341401098",
		"104.523095334564549293,1.228021425037866385", "104.522552657872438430,1.215271437540650366")
)

func equalContours(t *testing.T, cs, expected []parcel.Contour) {
	t.Helper()
	test.T(t, len(cs), len(expected), "contours")
	for i := range expected {
		if i < len(cs) && !cs[i].Equals(expected[i]) {
			t.Errorf("contour %d: %v != %v", i, cs[i], expected[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	var tts = []struct {
		f     Format
		exact bool
	}{
		{Points, true},
		{GeoJSON, true},
		{WKT, false},
		{WKB, false},
		{OSM, false},
	}
	for _, tt := range tts {
		t.Run(tt.f.String(), func(t *testing.T) {
			cs := []parcel.Contour{parcelA, parcelB}
			if tt.exact {
				cs = append(cs, exactA)
			}

			var buf bytes.Buffer
			test.Error(t, Write(&buf, tt.f, cs))
			out, err := Read(&buf, tt.f)
			test.Error(t, err)
			equalContours(t, out, cs)
		})
	}
}

func TestSingle(t *testing.T) {
	for _, f := range []Format{Points, GeoJSON, WKT, WKB, OSM} {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			test.Error(t, Write(&buf, f, []parcel.Contour{parcelA}))
			out, err := Read(&buf, f)
			test.Error(t, err)
			equalContours(t, out, []parcel.Contour{parcelA})
		})
	}
}

func TestGeohash(t *testing.T) {
	hashes := "w24qfpvbmnkt w24qf5ju3pkx w24qfejgkp2p w24qfxqukn80\nw24r42pt2n24,w24qfmpp2p00,w24qfuvb7zpg,w24r50dr2n0n\n"
	cs, err := Read(strings.NewReader("# fixture\n"+hashes), Geohash)
	test.Error(t, err)
	test.T(t, len(cs), 2)
	test.That(t, cs[0][0].Equals(geohash.MustDecode("w24qfpvbmnkt")))
	test.That(t, cs[1][3].Equals(geohash.MustDecode("w24r50dr2n0n")))

	var buf bytes.Buffer
	test.Error(t, Write(&buf, Geohash, cs))
	test.String(t, buf.String(), strings.Replace(hashes, ",", " ", -1))

	_, err = Read(strings.NewReader("w24qfpvbmnkt w24qfa"), Geohash)
	test.That(t, errors.Is(err, geohash.ErrInvalid), err)
}

func TestWKT(t *testing.T) {
	var buf bytes.Buffer
	test.Error(t, Write(&buf, WKT, []parcel.Contour{contour("0,0", "10,0", "10,10", "0,10")}))
	test.String(t, strings.TrimSpace(buf.String()), "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))")

	cs, err := Read(strings.NewReader("MULTIPOLYGON (((0 0, 2 0, 2 2, 0 0)), ((5 5, 6 5, 6 6, 5 5), (5.2 5.1, 5.8 5.1, 5.8 5.7, 5.2 5.1)))"), WKT)
	test.Error(t, err)
	equalContours(t, cs, []parcel.Contour{contour("0,0", "2,0", "2,2"), contour("5,5", "6,5", "6,6")})

	_, err = Read(strings.NewReader("POINT (1 2)"), WKT)
	test.That(t, err != nil)
}

func TestGeoJSON(t *testing.T) {
	var tts = []struct {
		s        string
		expected []parcel.Contour
	}{
		{`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, []parcel.Contour{contour("0,0", "1,0", "1,1")}},
		{`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":null}`, []parcel.Contour{contour("0,0", "1,0", "1,1")}},
		{`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"exact":["0.1,0","1,0","1,1.000000000000000001"]}}`, []parcel.Contour{contour("0.1,0", "1,0", "1,1.000000000000000001")}},
		{`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]}`, []parcel.Contour{contour("0,0", "1,0", "1,1"), contour("2,2", "3,2", "3,3")}},
		{`{"type":"FeatureCollection","features":[]}`, []parcel.Contour{}},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			cs, err := Read(strings.NewReader(tt.s), GeoJSON)
			test.Error(t, err)
			equalContours(t, cs, tt.expected)
		})
	}

	_, err := Read(strings.NewReader(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`), GeoJSON)
	test.That(t, err != nil)
}

func TestOSM(t *testing.T) {
	var buf bytes.Buffer
	test.Error(t, Write(&buf, OSM, []parcel.Contour{parcelA, parcelB}))
	s := buf.String()
	test.That(t, strings.HasPrefix(s, "<?xml"))
	test.T(t, strings.Count(s, "<node "), 6, "shared vertices are written once")
	test.T(t, strings.Count(s, "<way "), 2)

	// open ways are skipped
	cs, err := Read(strings.NewReader(`<osm version="0.6">
  <node id="1" lat="1.5" lon="104.5"/>
  <node id="2" lat="1.5" lon="104.6"/>
  <node id="3" lat="1.6" lon="104.6"/>
  <way id="10"><nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="1"/></way>
  <way id="11"><nd ref="1"/><nd ref="2"/><nd ref="3"/></way>
</osm>`), OSM)
	test.Error(t, err)
	equalContours(t, cs, []parcel.Contour{contour("104.5,1.5", "104.6,1.5", "104.6,1.6")})

	_, err = Read(strings.NewReader(`<osm><way id="10"><nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="1"/></way></osm>`), OSM)
	test.That(t, err != nil)
}

func TestFormat(t *testing.T) {
	var tts = []struct {
		filename string
		f        Format
	}{
		{"a.txt", Points},
		{"a.geohash", Geohash},
		{"a.GeoJSON", GeoJSON},
		{"a.json", GeoJSON},
		{"a.wkt", WKT},
		{"a.wkb", WKB},
		{"map.osm", OSM},
	}
	for _, tt := range tts {
		t.Run(tt.filename, func(t *testing.T) {
			f, err := FromExtension(tt.filename)
			test.Error(t, err)
			test.T(t, f, tt.f)

			g, err := ParseFormat(f.String())
			test.Error(t, err)
			test.T(t, g, f)
		})
	}

	_, err := FromExtension("a.shp")
	test.That(t, errors.Is(err, ErrUnknownFormat))
	_, err = ParseFormat("shp")
	test.That(t, errors.Is(err, ErrUnknownFormat))
	test.String(t, Format(10).String(), "Format(10)")
}

func TestFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "parcels.geojson")
	test.Error(t, WriteFile(filename, []parcel.Contour{exactA}))
	cs, err := ReadFile(filename)
	test.Error(t, err)
	equalContours(t, cs, []parcel.Contour{exactA})

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.wkt"))
	test.That(t, err != nil)
}
