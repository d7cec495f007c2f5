// Package geohash converts between geohashes and exact fixed-point points.
//
// Decoding bisects the longitude interval [-180,180] and the latitude interval [-90,90], both scaled
// to 18 decimals, taking the midpoint with truncating division. The decoded point is the centre of
// the final cell. Encoding bisects the same intervals, so that Encode(Decode(h)) == h.
package geohash

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
)

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxPrecision is the longest accepted geohash.
const MaxPrecision = 22

// ErrInvalid is returned for geohashes that are empty, too long, or contain characters outside the geohash alphabet.
var ErrInvalid = errors.New("invalid geohash")

var (
	two     = big.NewInt(2)
	lonSpan = [2]*big.Int{parcel.FixedFromInt(-180), parcel.FixedFromInt(180)}
	latSpan = [2]*big.Int{parcel.FixedFromInt(-90), parcel.FixedFromInt(90)}
	decodes [256]int8
)

func init() {
	for i := range decodes {
		decodes[i] = -1
	}
	for i, c := range []byte(base32) {
		decodes[c] = int8(i)
	}
}

// interval is a half-open cell range that is bisected in place.
type interval struct {
	lo, hi *big.Int
}

func newInterval(span [2]*big.Int) interval {
	return interval{new(big.Int).Set(span[0]), new(big.Int).Set(span[1])}
}

func (iv interval) mid() *big.Int {
	m := new(big.Int).Add(iv.lo, iv.hi)
	return m.Quo(m, two)
}

// Decode returns the centre of the geohash cell. Upper case letters are accepted.
func Decode(hash string) (parcel.Point, error) {
	if hash == "" || MaxPrecision < len(hash) {
		return parcel.Point{}, errors.Wrapf(ErrInvalid, "%q has length %d", hash, len(hash))
	}
	hash = strings.ToLower(hash)
	lon, lat := newInterval(lonSpan), newInterval(latSpan)
	even := true
	for i := 0; i < len(hash); i++ {
		v := decodes[hash[i]]
		if v < 0 {
			return parcel.Point{}, errors.Wrapf(ErrInvalid, "%q has bad character %q at %d", hash, hash[i], i)
		}
		for mask := int8(16); mask != 0; mask >>= 1 {
			iv := &lat
			if even {
				iv = &lon
			}
			if m := iv.mid(); v&mask != 0 {
				iv.lo = m
			} else {
				iv.hi = m
			}
			even = !even
		}
	}
	return parcel.Pt(lon.mid(), lat.mid()), nil
}

// MustDecode is like Decode but panics on error.
func MustDecode(hash string) parcel.Point {
	p, err := Decode(hash)
	if err != nil {
		panic(err)
	}
	return p
}

// Encode returns the geohash of the given precision of the cell that contains p.
func Encode(p parcel.Point, precision int) string {
	precision = min(max(precision, 1), MaxPrecision)
	lon, lat := newInterval(lonSpan), newInterval(latSpan)
	even := true
	sb := strings.Builder{}
	sb.Grow(precision)
	for sb.Len() < precision {
		c := 0
		for bit := 0; bit < 5; bit++ {
			iv, v := &lat, p.Y
			if even {
				iv, v = &lon, p.X
			}
			c <<= 1
			if m := iv.mid(); m.Cmp(v) <= 0 {
				c |= 1
				iv.lo = m
			} else {
				iv.hi = m
			}
			even = !even
		}
		sb.WriteByte(base32[c])
	}
	return sb.String()
}

// Valid is true if hash can be decoded.
func Valid(hash string) bool {
	if hash == "" || MaxPrecision < len(hash) {
		return false
	}
	hash = strings.ToLower(hash)
	for i := 0; i < len(hash); i++ {
		if decodes[hash[i]] < 0 {
			return false
		}
	}
	return true
}

// Contour decodes a list of geohashes.
func Contour(hashes []string) (parcel.Contour, error) {
	return parcel.DecodeContour(Decoder{}, hashes)
}

// Hashes encodes every vertex of c with the given precision.
func Hashes(c parcel.Contour, precision int) []string {
	hashes := make([]string, len(c))
	for i, p := range c {
		hashes[i] = Encode(p, precision)
	}
	return hashes
}

// Decoder decodes geohashes without caching. It implements parcel.PointDecoder.
type Decoder struct{}

func (Decoder) Decode(hash string) (parcel.Point, error) {
	return Decode(hash)
}
