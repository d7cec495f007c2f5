package parcel

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Contour is a closed polygon given by its vertices; the last vertex connects back to the first.
type Contour []Point

// Segments returns the edges of the contour, with IDs starting at id.
func (c Contour) Segments(polygon PolygonTag, id int) []Segment {
	segs := make([]Segment, len(c))
	for i := range c {
		segs[i] = NewSegment(c[i], c[(i+1)%len(c)], polygon, id+i)
	}
	return segs
}

// Copy returns a copy of the contour. Points are immutable and shared.
func (c Contour) Copy() Contour {
	return append(Contour{}, c...)
}

// Reverse returns the contour in opposite direction.
func (c Contour) Reverse() Contour {
	r := make(Contour, len(c))
	for i, p := range c {
		r[len(c)-1-i] = p
	}
	return r
}

// Area2 returns twice the signed area, positive for counter-clockwise contours.
func (c Contour) Area2() *big.Int {
	a := new(big.Int)
	for i := range c {
		p, q := c[i], c[(i+1)%len(c)]
		a.Add(a, new(big.Int).Mul(p.X, q.Y))
		a.Sub(a, new(big.Int).Mul(q.X, p.Y))
	}
	return a
}

// Orientation returns 1 for counter-clockwise, -1 for clockwise, and 0 for contours without area.
func (c Contour) Orientation() int {
	return c.Area2().Sign()
}

// Bounds returns the lower-left and upper-right corners of the bounding box.
func (c Contour) Bounds() (Point, Point) {
	if len(c) == 0 {
		return Point{}, Point{}
	}
	x0, y0, x1, y1 := c[0].X, c[0].Y, c[0].X, c[0].Y
	for _, p := range c[1:] {
		if p.X.Cmp(x0) < 0 {
			x0 = p.X
		} else if p.X.Cmp(x1) > 0 {
			x1 = p.X
		}
		if p.Y.Cmp(y0) < 0 {
			y0 = p.Y
		} else if p.Y.Cmp(y1) > 0 {
			y1 = p.Y
		}
	}
	return Point{x0, y0}, Point{x1, y1}
}

// Index returns the index of the vertex equal to p within eps, or -1.
func (c Contour) Index(p Point, eps *big.Int) int {
	for i, q := range c {
		if ComparePoints(p, q, eps) == 0 {
			return i
		}
	}
	return -1
}

// Contains returns true if p lies inside the contour, by counting edge crossings of a ray to the right. Points on the boundary may be either in or out.
func (c Contour) Contains(p Point) bool {
	inside := false
	for i := range c {
		a, b := c[i], c[(i+1)%len(c)]
		if (a.Y.Cmp(p.Y) > 0) == (b.Y.Cmp(p.Y) > 0) {
			continue
		}
		// p.X < a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		den := new(big.Int).Sub(b.Y, a.Y)
		num := new(big.Int).Mul(new(big.Int).Sub(p.Y, a.Y), new(big.Int).Sub(b.X, a.X))
		lhs := new(big.Int).Mul(new(big.Int).Sub(p.X, a.X), den)
		if cmp := lhs.Cmp(num); 0 < den.Sign() && cmp < 0 || den.Sign() < 0 && 0 < cmp {
			inside = !inside
		}
	}
	return inside
}

// Equals returns true if both contours have the same vertices starting at the same vertex.
func (c Contour) Equals(d Contour) bool {
	if len(c) != len(d) {
		return false
	}
	for i := range c {
		if !c[i].Equals(d[i]) {
			return false
		}
	}
	return true
}

// EqualsCyclic returns true if d is a rotation of c.
func (c Contour) EqualsCyclic(d Contour) bool {
	if len(c) != len(d) {
		return false
	} else if len(c) == 0 {
		return true
	}
	for k := range d {
		if !c[0].Equals(d[k]) {
			continue
		}
		equal := true
		for i := range c {
			if !c[i].Equals(d[(k+i)%len(d)]) {
				equal = false
				break
			}
		}
		if equal {
			return true
		}
	}
	return false
}

func (c Contour) String() string {
	sb := strings.Builder{}
	sb.WriteString("[")
	for i, p := range c {
		if i != 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// checkDegenerate returns ErrDegenerateContour for contours with fewer than three vertices, repeated vertices, or zero area.
func (c Contour) checkDegenerate(eps *big.Int) error {
	if len(c) < 3 {
		return errors.Wrapf(ErrDegenerateContour, "%d vertices", len(c))
	}
	t := NewPointTree(0)
	t.eps = eps
	for i, p := range c {
		if j, ok := t.Insert(i, p); !ok {
			return errors.Wrapf(ErrDegenerateContour, "vertices %d and %d coincide at %v", j, i, p)
		}
	}
	if c.Orientation() == 0 {
		return errors.Wrap(ErrDegenerateContour, "zero area")
	}
	return nil
}

// Validate returns an error if the contour is degenerate or intersects itself.
func (c Contour) Validate(eps int64) error {
	if err := c.checkDegenerate(big.NewInt(eps)); err != nil {
		return err
	}
	sweep := NewSweep(eps)
	for _, seg := range c.Segments(Subject, 0) {
		sweep.AddSegment(seg)
	}
	sweep.Step(0)
	if 0 < len(sweep.Intersections) {
		z := sweep.Intersections[0]
		return errors.Wrapf(ErrSelfIntersecting, "edges %d and %d meet at %v", z.A, z.B, z.Point)
	}
	return nil
}
