// Package format reads and writes contours in common geometry formats.
//
// Points and geohash lists are exact. GeoJSON is exact when written by this package, since every feature carries the
// decimal coordinates in its "exact" property next to the float geometry. WKT, WKB and OSM XML hold floats only and
// are converted through their shortest decimal representation.
package format

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
)

// Format is a contour file format.
type Format int

const (
	Points  Format = iota // one "x,y" decimal point per line, contours separated by empty lines
	Geohash               // one contour per line, geohashes separated by whitespace or commas
	GeoJSON
	WKT
	WKB
	OSM
)

func (f Format) String() string {
	switch f {
	case Points:
		return "points"
	case Geohash:
		return "geohash"
	case GeoJSON:
		return "geojson"
	case WKT:
		return "wkt"
	case WKB:
		return "wkb"
	case OSM:
		return "osm"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ErrUnknownFormat is returned for unknown format names and file extensions.
var ErrUnknownFormat = errors.New("unknown format")

// GeohashPrecision is the length of written geohashes.
var GeohashPrecision = 12

// ParseFormat returns the format by name as returned by Format.String.
func ParseFormat(name string) (Format, error) {
	for f := Points; f <= OSM; f++ {
		if strings.EqualFold(name, f.String()) {
			return f, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFormat, "%q", name)
}

// FromExtension returns the format of a filename by its extension.
func FromExtension(filename string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".pts":
		return Points, nil
	case ".geohash", ".gh":
		return Geohash, nil
	case ".geojson", ".json":
		return GeoJSON, nil
	case ".wkt":
		return WKT, nil
	case ".wkb":
		return WKB, nil
	case ".osm", ".xml":
		return OSM, nil
	default:
		return 0, errors.Wrapf(ErrUnknownFormat, "file extension %q", ext)
	}
}

// Read reads all contours from r.
func Read(r io.Reader, f Format) ([]parcel.Contour, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var cs []parcel.Contour
	switch f {
	case Points:
		cs, err = readPoints(b)
	case Geohash:
		cs, err = readGeohash(b)
	case GeoJSON:
		cs, err = readGeoJSON(b)
	case WKT:
		cs, err = readWKT(b)
	case WKB:
		cs, err = readWKB(b)
	case OSM:
		cs, err = readOSM(b)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%v", f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %v", f)
	}
	return cs, nil
}

// Write writes the contours to w.
func Write(w io.Writer, f Format, cs []parcel.Contour) error {
	var err error
	switch f {
	case Points:
		err = writePoints(w, cs)
	case Geohash:
		err = writeGeohash(w, cs)
	case GeoJSON:
		err = writeGeoJSON(w, cs)
	case WKT:
		err = writeWKT(w, cs)
	case WKB:
		err = writeWKB(w, cs)
	case OSM:
		err = writeOSM(w, cs)
	default:
		return errors.Wrapf(ErrUnknownFormat, "%v", f)
	}
	return errors.Wrapf(err, "write %v", f)
}

// ReadFile reads all contours from a file, with the format given by its extension.
func ReadFile(filename string) ([]parcel.Contour, error) {
	f, err := FromExtension(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(b), f)
}

// WriteFile writes the contours to a file, with the format given by its extension.
func WriteFile(filename string, cs []parcel.Contour) error {
	f, err := FromExtension(filename)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, f, cs); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// ring closes a contour by repeating its first vertex.
func ring[T any](c parcel.Contour, conv func(parcel.Point) T) []T {
	if len(c) == 0 {
		return nil
	}
	r := make([]T, 0, len(c)+1)
	for _, p := range c {
		r = append(r, conv(p))
	}
	return append(r, r[0])
}

// fromRing converts a ring of float coordinates to a contour, dropping the closing vertex.
func fromRing(n int, xy func(int) (float64, float64)) parcel.Contour {
	c := make(parcel.Contour, 0, n)
	for i := 0; i < n; i++ {
		x, y := xy(i)
		p := parcel.Pt(parcel.FixedFromFloat(x), parcel.FixedFromFloat(y))
		if i == n-1 && 0 < len(c) && p.Equals(c[0]) {
			break
		}
		c = append(c, p)
	}
	return c
}
