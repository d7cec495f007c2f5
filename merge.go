package parcel

import (
	"math/big"

	"github.com/pkg/errors"
)

// Merge returns the union of two contours that share a chain of boundary vertices, such as the remaining subject and a clipped-off polygon of a split. It walks source and switches to dest at shared vertices. Shared vertices that end up on a straight line between their neighbours are dropped.
func Merge(source, dest Contour, eps int64) (Contour, error) {
	bigEps := big.NewInt(eps)
	inSource := NewPointTree(eps)
	for i, p := range source {
		inSource.Insert(i, p)
	}
	inDest := NewPointTree(eps)
	for i, p := range dest {
		inDest.Insert(i, p)
	}
	shared := func(p Point) bool {
		_, okSource := inSource.Find(p)
		_, okDest := inDest.Find(p)
		return okSource && okDest
	}

	start := -1
	for i, p := range source {
		if !shared(p) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, errors.Wrap(ErrDegenerateContour, "source has no vertices outside dest")
	}

	merged := Contour{}
	onSource, i, dir := true, start, 1
	for steps := 0; ; steps++ {
		if 2*(len(source)+len(dest)) < steps {
			return nil, errors.Wrap(ErrOperationFailed, "merge walk does not close")
		}
		cur, other, otherIndex := source, dest, inDest
		if !onSource {
			cur, other, otherIndex = dest, source, inSource
		}
		p := cur[i]
		if onSource && i == start && 0 < len(merged) {
			break
		}
		merged = append(merged, p)

		if shared(p) {
			j, _ := otherIndex.Find(p)
			m := len(other)
			if next := other[(j+1)%m]; !shared(next) {
				onSource, i, dir = !onSource, (j+1)%m, 1
				continue
			} else if prev := other[(j-1+m)%m]; !shared(prev) {
				onSource, i, dir = !onSource, (j-1+m)%m, -1
				continue
			}
		}
		if onSource {
			dir = 1
		}
		i = (i + dir + len(cur)) % len(cur)
	}

	// drop shared vertices on a straight line
	result := make(Contour, 0, len(merged))
	for k, p := range merged {
		prev := merged[(k-1+len(merged))%len(merged)]
		next := merged[(k+1)%len(merged)]
		if shared(p) && collinear(prev, p, next, bigEps) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// collinear is true if p lies on the line through a and b within eps.
func collinear(a, p, b Point, eps *big.Int) bool {
	dx := new(big.Int).Abs(new(big.Int).Sub(b.X, a.X))
	dy := new(big.Int).Abs(new(big.Int).Sub(b.Y, a.Y))
	if dx.Cmp(dy) < 0 {
		dx = dy
	}
	return cmpTol(cross(a, b, p), bigZero, new(big.Int).Mul(eps, dx)) == 0
}

// MergeTolerance is the relative area difference accepted by CheckMerge.
const MergeTolerance = 1e-9

// CheckMerge verifies that merged is a valid union of source and dest: every vertex that is not shared by source and dest appears in merged, merged is a simple polygon, and its area equals the sum of both areas within MergeTolerance.
func CheckMerge(source, dest, merged Contour, eps int64) error {
	bigEps := big.NewInt(eps)
	for _, pair := range [][2]Contour{{source, dest}, {dest, source}} {
		for _, p := range pair[0] {
			if pair[1].Index(p, bigEps) < 0 && merged.Index(p, bigEps) < 0 {
				return errors.Wrapf(ErrMergeMismatch, "vertex %v missing", p)
			}
		}
	}
	if err := merged.Validate(eps); err != nil {
		return errors.Wrap(err, "merged")
	}

	sum := new(big.Int).Add(new(big.Int).Abs(source.Area2()), new(big.Int).Abs(dest.Area2()))
	diff := new(big.Int).Sub(sum, new(big.Int).Abs(merged.Area2()))
	diff.Abs(diff)
	tolerance := new(big.Float).Mul(new(big.Float).SetInt(sum), big.NewFloat(MergeTolerance))
	if new(big.Float).SetInt(diff).Cmp(tolerance) > 0 {
		return errors.Wrapf(ErrMergeMismatch, "area differs by %v of %v", diff, sum)
	}
	return nil
}
