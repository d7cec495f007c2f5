package parcel

import (
	"fmt"
	"math/big"
)

// PolygonTag tells which input polygon a segment belongs to.
type PolygonTag int

const (
	Subject PolygonTag = iota
	Clipping
)

func (tag PolygonTag) String() string {
	if tag == Clipping {
		return "clipping"
	}
	return "subject"
}

// Segment is a contour edge, normalized so that Start is to the left of (or below) End.
type Segment struct {
	Start, End Point
	Polygon    PolygonTag
	ID         int  // unique over both polygons
	Reversed   bool // contour runs from End to Start
}

// NewSegment returns the normalized segment between a and b.
func NewSegment(a, b Point, polygon PolygonTag, id int) Segment {
	reversed := ComparePoints(a, b, bigZero) > 0
	if reversed {
		a, b = b, a
	}
	return Segment{
		Start:    a,
		End:      b,
		Polygon:  polygon,
		ID:       id,
		Reversed: reversed,
	}
}

// From returns the first point in contour direction.
func (s Segment) From() Point {
	if s.Reversed {
		return s.End
	}
	return s.Start
}

// To returns the last point in contour direction.
func (s Segment) To() Point {
	if s.Reversed {
		return s.Start
	}
	return s.End
}

// Vertical is true when both endpoints have the same X.
func (s Segment) Vertical() bool {
	return s.Start.X.Cmp(s.End.X) == 0
}

func (s Segment) String() string {
	path := "P"
	if s.Polygon == Clipping {
		path = "Q"
	}
	return fmt.Sprintf("%s%d(%v−%v)", path, s.ID, s.Start, s.End)
}

// yAt returns the Y coordinate of s at sweep.X as the fraction num/den with den > 0. Vertical segments take sweep.Y clamped to their span.
func (s Segment) yAt(sweep Point) (*big.Int, *big.Int) {
	if s.Vertical() {
		y := sweep.Y
		if y.Cmp(s.Start.Y) < 0 {
			y = s.Start.Y
		} else if y.Cmp(s.End.Y) > 0 {
			y = s.End.Y
		}
		return y, big.NewInt(1)
	}
	dx := new(big.Int).Sub(s.End.X, s.Start.X)
	dy := new(big.Int).Sub(s.End.Y, s.Start.Y)
	num := new(big.Int).Mul(s.Start.Y, dx)
	num.Add(num, new(big.Int).Mul(new(big.Int).Sub(sweep.X, s.Start.X), dy))
	return num, dx
}

// compareSlope orders segments by increasing slope, vertical segments last.
func compareSlope(a, b Segment) int {
	va, vb := a.Vertical(), b.Vertical()
	if va && vb {
		return 0
	} else if va {
		return 1
	} else if vb {
		return -1
	}
	l := new(big.Int).Mul(new(big.Int).Sub(a.End.Y, a.Start.Y), new(big.Int).Sub(b.End.X, b.Start.X))
	r := new(big.Int).Mul(new(big.Int).Sub(b.End.Y, b.Start.Y), new(big.Int).Sub(a.End.X, a.Start.X))
	return l.Cmp(r)
}

// CompareSegmentsAt orders segments vertically at the sweep point. Segments at the same height within eps are ordered by slope (vertical on top), then subject below clipping, then by ID.
func CompareSegmentsAt(sweep Point, a, b Segment, eps *big.Int) int {
	if a.Polygon == b.Polygon && a.ID == b.ID {
		return 0
	}
	na, da := a.yAt(sweep)
	nb, db := b.yAt(sweep)
	l := new(big.Int).Mul(na, db)
	r := new(big.Int).Mul(nb, da)
	tol := new(big.Int).Mul(eps, da)
	tol.Mul(tol, db)
	if c := cmpTol(l, r, tol); c != 0 {
		return c
	}
	if c := compareSlope(a, b); c != 0 {
		return c
	} else if a.Polygon != b.Polygon {
		if a.Polygon < b.Polygon {
			return -1
		}
		return 1
	} else if a.ID < b.ID {
		return -1
	}
	return 1
}

// side returns 1 if p lies above s, -1 if below, and 0 if p is on the line through s within eps. For vertical segments it compares against the segment's span.
func (s Segment) side(p Point, eps *big.Int) int {
	if s.Vertical() {
		if cmpTol(p.Y, s.Start.Y, eps) < 0 {
			return -1
		} else if cmpTol(p.Y, s.End.Y, eps) > 0 {
			return 1
		}
		return 0
	}
	dx := new(big.Int).Sub(s.End.X, s.Start.X)
	return cmpTol(cross(s.Start, s.End, p), bigZero, new(big.Int).Mul(eps, dx))
}

// contains is true if p lies on s within eps, endpoints included.
func (s Segment) contains(p Point, eps *big.Int) bool {
	if ComparePoints(p, s.Start, eps) < 0 || ComparePoints(p, s.End, eps) > 0 {
		return false
	}
	return s.side(p, eps) == 0
}

// hasEndpoint is true if p equals one of the endpoints within eps.
func (s Segment) hasEndpoint(p Point, eps *big.Int) bool {
	return ComparePoints(p, s.Start, eps) == 0 || ComparePoints(p, s.End, eps) == 0
}

// before is the canonical order of a segment pair, so that an intersection is computed identically regardless of argument order.
func (s Segment) before(t Segment) bool {
	if s.Polygon != t.Polygon {
		return s.Polygon < t.Polygon
	}
	return s.ID < t.ID
}

// Intersect returns the crossing or touching point of a and b using exact arithmetic. Coordinates are truncated toward zero. Parallel and collinear segments do not intersect.
func Intersect(a, b Segment) (Point, bool) {
	if b.before(a) {
		a, b = b, a
	}
	a0, a1, b0, b1 := a.Start, a.End, b.Start, b.End
	adx := new(big.Int).Sub(a1.X, a0.X)
	ady := new(big.Int).Sub(a1.Y, a0.Y)
	bdx := new(big.Int).Sub(b1.X, b0.X)
	bdy := new(big.Int).Sub(b1.Y, b0.Y)
	d := new(big.Int).Sub(new(big.Int).Mul(adx, bdy), new(big.Int).Mul(ady, bdx))
	if d.Sign() == 0 {
		return Point{}, false
	}
	ox := new(big.Int).Sub(b0.X, a0.X)
	oy := new(big.Int).Sub(b0.Y, a0.Y)
	tn := new(big.Int).Sub(new(big.Int).Mul(ox, bdy), new(big.Int).Mul(oy, bdx))
	un := new(big.Int).Sub(new(big.Int).Mul(ox, ady), new(big.Int).Mul(oy, adx))
	if d.Sign() < 0 {
		d.Neg(d)
		tn.Neg(tn)
		un.Neg(un)
	}
	if tn.Sign() < 0 || tn.Cmp(d) > 0 || un.Sign() < 0 || un.Cmp(d) > 0 {
		return Point{}, false
	}
	x := new(big.Int).Quo(new(big.Int).Mul(tn, adx), d)
	y := new(big.Int).Quo(new(big.Int).Mul(tn, ady), d)
	return Point{x.Add(x, a0.X), y.Add(y, a0.Y)}, true
}
