package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"github.com/tdewolff/test"
)

func square(x0, y0, x1, y1 int64) parcel.Contour {
	pt := func(x, y int64) parcel.Point {
		return parcel.Pt(parcel.FixedFromInt(x), parcel.FixedFromInt(y))
	}
	return parcel.Contour{pt(x0, y0), pt(x1, y0), pt(x1, y1), pt(x0, y1)}
}

func TestSplit(t *testing.T) {
	op, err := parcel.Split(square(0, 0, 10, 10), square(5, 5, 15, 15))
	test.Error(t, err)
	layers := Split(op)
	test.T(t, len(layers), 4)
	test.T(t, len(layers[1].Contours), 1)
	test.T(t, len(layers[3].Points), 2) // (10,5) and (5,10)

	op = parcel.NewSplitOperation(square(0, 0, 10, 10), square(5, 5, 15, 15))
	test.T(t, len(Split(op)), 2)
}

func TestDraw(t *testing.T) {
	op, err := parcel.Split(square(0, 0, 10, 10), square(5, 5, 15, 15))
	test.Error(t, err)
	c, err := Draw(Split(op), DefaultOptions)
	test.Error(t, err)
	test.Float(t, c.W, 100.0)
	test.Float(t, c.H, 100.0)

	var buf bytes.Buffer
	test.Error(t, WriteSVG(&buf, c))
	test.That(t, strings.Contains(buf.String(), "<svg"))
	test.That(t, strings.Contains(buf.String(), "<path"))

	_, err = Draw(nil, DefaultOptions)
	test.That(t, errors.Is(err, ErrEmpty))
	_, err = Draw([]Layer{{Points: []parcel.Point{parcel.PtInt(0, 0)}}}, DefaultOptions)
	test.That(t, errors.Is(err, ErrEmpty))
}

func TestWriteFile(t *testing.T) {
	op, err := parcel.Split(square(0, 0, 10, 10), square(5, 5, 15, 15))
	test.Error(t, err)
	c, err := Draw(Split(op), DefaultOptions)
	test.Error(t, err)

	dir := t.TempDir()
	for _, name := range []string{"split.svg", "split.png"} {
		filename := filepath.Join(dir, name)
		test.Error(t, WriteFile(filename, c, 2.0))
		info, err := os.Stat(filename)
		test.Error(t, err)
		test.That(t, 0 < info.Size(), name)
	}
	test.That(t, WriteFile(filepath.Join(dir, "split.xyz"), c, 2.0) != nil)
}
