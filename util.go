package parcel

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Scale is the fixed-point scale of all coordinates, ie. 18 decimals.
const Scale = 1_000_000_000_000_000_000

// Decimals is the number of decimals of a fixed-point scalar.
const Decimals = 18

// Epsilon is the default tolerance in fixed-point units used to consider two coordinates equal. Equality within a tolerance is not transitive: of three points a, b and c spaced less than Epsilon apart, a may equal b and b equal c while a and c differ, so which points merge in a PointTree depends on the order they are inserted in. Inputs are expected to keep distinct vertices further apart than Epsilon.
const Epsilon = 1000

var (
	bigScale = big.NewInt(Scale)
	bigZero  = big.NewInt(0)
)

// FixedFromInt returns the fixed-point representation of the integer i.
func FixedFromInt(i int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(i), bigScale)
}

// ParseFixed parses a decimal number such as "-37.4847" into a fixed-point scalar. Digits beyond 18 decimals are truncated.
func ParseFixed(s string) (*big.Int, error) {
	orig := s
	neg := false
	if 0 < len(s) && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return nil, errors.Errorf("invalid fixed-point number %q", orig)
	}
	if Decimals < len(fracPart) {
		fracPart = fracPart[:Decimals]
	}
	digits := intPart + fracPart + strings.Repeat("0", Decimals-len(fracPart))
	for _, c := range digits {
		if c < '0' || '9' < c {
			return nil, errors.Errorf("invalid fixed-point number %q", orig)
		}
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, errors.Errorf("invalid fixed-point number %q", orig)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// MustParseFixed is like ParseFixed but panics on error.
func MustParseFixed(s string) *big.Int {
	v, err := ParseFixed(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatFixed formats a fixed-point scalar as a decimal number with trailing zeros removed.
func FormatFixed(v *big.Int) string {
	q, r := new(big.Int).QuoRem(v, bigScale, new(big.Int))
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
		q.Neg(q)
		r.Neg(r)
	}
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}

// FixedToFloat converts a fixed-point scalar to a float, for reporting only.
func FixedToFloat(v *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(v, bigScale).Float64()
	return f
}

// FixedFromFloat converts a float to a fixed-point scalar using its shortest decimal representation, so that 0.1 becomes exactly 0.1. Digits beyond 18 decimals are truncated.
func FixedFromFloat(f float64) *big.Int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return new(big.Int)
	}
	v, err := ParseFixed(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return new(big.Int)
	}
	return v
}

// cmpTol compares a and b with absolute tolerance eps: 0 when |a-b| <= eps.
func cmpTol(a, b, eps *big.Int) int {
	d := new(big.Int).Sub(a, b)
	if d.CmpAbs(eps) <= 0 {
		return 0
	}
	return d.Sign()
}

////////////////////////////////////////////////////////////////

// Point is an immutable fixed-point coordinate. For geohash-derived points X is the longitude and Y the latitude.
type Point struct {
	X, Y *big.Int
}

// Pt returns a point from two fixed-point scalars.
func Pt(x, y *big.Int) Point {
	return Point{x, y}
}

// PtInt returns a point from integer fixed-point units.
func PtInt(x, y int64) Point {
	return Point{big.NewInt(x), big.NewInt(y)}
}

// ParsePoint parses "x,y" with decimal coordinates.
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, errors.Errorf("invalid point %q", s)
	}
	x, err := ParseFixed(strings.TrimSpace(xs))
	if err != nil {
		return Point{}, err
	}
	y, err := ParseFixed(strings.TrimSpace(ys))
	if err != nil {
		return Point{}, err
	}
	return Point{x, y}, nil
}

// MustParsePoint is like ParsePoint but panics on error.
func MustParsePoint(s string) Point {
	p, err := ParsePoint(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero is true for the zero value which holds no coordinates.
func (p Point) IsZero() bool {
	return p.X == nil || p.Y == nil
}

// Equals returns true if both coordinates are exactly equal.
func (p Point) Equals(q Point) bool {
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Key returns a string that identifies the exact coordinates, usable as map key.
func (p Point) Key() string {
	return p.X.String() + "," + p.Y.String()
}

// Float returns the coordinates as floats, for reporting only.
func (p Point) Float() (float64, float64) {
	return FixedToFloat(p.X), FixedToFloat(p.Y)
}

// GobEncode encodes the exact coordinates; zero coordinates survive a round trip.
func (p Point) GobEncode() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.Key()), nil
}

// GobDecode decodes coordinates written by GobEncode.
func (p *Point) GobDecode(b []byte) error {
	if len(b) == 0 {
		*p = Point{}
		return nil
	}
	xs, ys, ok := strings.Cut(string(b), ",")
	if !ok {
		return errors.Errorf("invalid point encoding %q", b)
	}
	x, okX := new(big.Int).SetString(xs, 10)
	y, okY := new(big.Int).SetString(ys, 10)
	if !okX || !okY {
		return errors.Errorf("invalid point encoding %q", b)
	}
	*p = Point{x, y}
	return nil
}

func (p Point) String() string {
	if p.IsZero() {
		return "(nil)"
	}
	return fmt.Sprintf("(%s,%s)", FormatFixed(p.X), FormatFixed(p.Y))
}

// ComparePoints orders points by X and then by Y. It returns 0 when both coordinates are within eps, which is not transitive for eps > 0 (see Epsilon).
func ComparePoints(a, b Point, eps *big.Int) int {
	if c := cmpTol(a.X, b.X, eps); c != 0 {
		return c
	}
	return cmpTol(a.Y, b.Y, eps)
}

// cross returns (a-o) x (b-o).
func cross(o, a, b Point) *big.Int {
	l := new(big.Int).Mul(new(big.Int).Sub(a.X, o.X), new(big.Int).Sub(b.Y, o.Y))
	r := new(big.Int).Mul(new(big.Int).Sub(a.Y, o.Y), new(big.Int).Sub(b.X, o.X))
	return l.Sub(l, r)
}

// dot returns (a-o) . (b-o).
func dot(o, a, b Point) *big.Int {
	l := new(big.Int).Mul(new(big.Int).Sub(a.X, o.X), new(big.Int).Sub(b.X, o.X))
	r := new(big.Int).Mul(new(big.Int).Sub(a.Y, o.Y), new(big.Int).Sub(b.Y, o.Y))
	return l.Add(l, r)
}
