package parcel

import (
	"iter"
	"math/big"
)

// SegmentTree is the sweep status: segments ordered vertically at the current sweep point. Keys are never mutated in place; a change of order is a Delete followed by an Insert at the new sweep point.
type SegmentTree struct {
	Tree[Segment]
	Eps int64

	eps *big.Int
}

// NewSegmentTree returns an empty segment tree with tolerance eps.
func NewSegmentTree(eps int64) *SegmentTree {
	return &SegmentTree{
		Tree: newTree[Segment](),
		Eps:  eps,
	}
}

func (t *SegmentTree) epsilon() *big.Int {
	if t.eps == nil {
		t.eps = big.NewInt(t.Eps)
	}
	return t.eps
}

// Insert adds segment s with id in its order at the sweep point and returns its node. If s is already present its node is returned.
func (t *SegmentTree) Insert(sweep Point, id int, s Segment) int {
	eps := t.epsilon()
	n, parent, dir := t.search(func(k Segment) int {
		return CompareSegmentsAt(sweep, s, k, eps)
	})
	if n != nilNode {
		return n
	}
	return t.attach(parent, dir, s, id)
}

// Find returns the node of segment s, ordered at the sweep point.
func (t *SegmentTree) Find(sweep Point, s Segment) (int, bool) {
	eps := t.epsilon()
	n, _, _ := t.search(func(k Segment) int {
		return CompareSegmentsAt(sweep, s, k, eps)
	})
	return n, n != nilNode
}

// Delete removes node n. Its index may be reused by a later Insert.
func (t *SegmentTree) Delete(n int) {
	t.remove(n)
}

// Segment returns the segment of node n.
func (t *SegmentTree) Segment(n int) Segment {
	return t.Nodes[n].Key
}

// ID returns the id of node n.
func (t *SegmentTree) ID(n int) int {
	return t.Nodes[n].Value
}

// Ceiling returns the lowest node whose segment is at or above p, or nilNode if p lies above all segments.
func (t *SegmentTree) Ceiling(p Point) int {
	eps := t.epsilon()
	ceil := nilNode
	for n := t.Root; n != nilNode; {
		if t.Nodes[n].Key.side(p, eps) <= 0 {
			ceil = n
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return ceil
}

// All returns the nodes and their segments from bottom to top.
func (t *SegmentTree) All() iter.Seq2[int, Segment] {
	return func(yield func(int, Segment) bool) {
		for n := range t.nodes() {
			if !yield(n, t.Nodes[n].Key) {
				return
			}
		}
	}
}

func (t *SegmentTree) check(sweep Point) error {
	eps := t.epsilon()
	return t.Tree.check(func(a, b Segment) int {
		return CompareSegmentsAt(sweep, a, b, eps)
	})
}
