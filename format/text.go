package format

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"github.com/tdewolff/parcel/geohash"
)

func readPoints(b []byte) ([]parcel.Contour, error) {
	cs := []parcel.Contour{}
	var c parcel.Contour
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for line := 1; scanner.Scan(); line++ {
		s := strings.TrimSpace(scanner.Text())
		if s == "" || s[0] == '#' {
			if s == "" && 0 < len(c) {
				cs = append(cs, c)
				c = nil
			}
			continue
		}
		p, err := parcel.ParsePoint(s)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		c = append(c, p)
	}
	if 0 < len(c) {
		cs = append(cs, c)
	}
	return cs, scanner.Err()
}

func writePoints(w io.Writer, cs []parcel.Contour) error {
	bw := bufio.NewWriter(w)
	for i, c := range cs {
		if i != 0 {
			bw.WriteString("\n")
		}
		for _, p := range c {
			bw.WriteString(parcel.FormatFixed(p.X))
			bw.WriteString(",")
			bw.WriteString(parcel.FormatFixed(p.Y))
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

func readGeohash(b []byte) ([]parcel.Contour, error) {
	cs := []parcel.Contour{}
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for line := 1; scanner.Scan(); line++ {
		s := strings.TrimSpace(scanner.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		hashes := strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		c, err := geohash.Contour(hashes)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		cs = append(cs, c)
	}
	return cs, scanner.Err()
}

func writeGeohash(w io.Writer, cs []parcel.Contour) error {
	bw := bufio.NewWriter(w)
	for _, c := range cs {
		bw.WriteString(strings.Join(geohash.Hashes(c, GeohashPrecision), " "))
		bw.WriteString("\n")
	}
	return bw.Flush()
}
