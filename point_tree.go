package parcel

import (
	"iter"
	"math/big"
)

// PointTree is an ordered set of points, used as the event queue of the sweeps. Points within the tolerance of each other are the same key.
type PointTree struct {
	Tree[Point]
	Eps int64 // tolerance in fixed-point units, fixed at construction

	eps *big.Int
}

// NewPointTree returns an empty point tree with tolerance eps.
func NewPointTree(eps int64) *PointTree {
	return &PointTree{
		Tree: newTree[Point](),
		Eps:  eps,
	}
}

func (t *PointTree) epsilon() *big.Int {
	if t.eps == nil {
		t.eps = big.NewInt(t.Eps)
	}
	return t.eps
}

// Insert adds point p with id. If an equal point is already stored the tree is unchanged, and the stored id is returned with false.
func (t *PointTree) Insert(id int, p Point) (int, bool) {
	eps := t.epsilon()
	n, parent, dir := t.search(func(k Point) int {
		return ComparePoints(p, k, eps)
	})
	if n != nilNode {
		return t.Nodes[n].Value, false
	}
	t.attach(parent, dir, p, id)
	return id, true
}

// Find returns the id stored for point p.
func (t *PointTree) Find(p Point) (int, bool) {
	eps := t.epsilon()
	n, _, _ := t.search(func(k Point) int {
		return ComparePoints(p, k, eps)
	})
	if n == nilNode {
		return 0, false
	}
	return t.Nodes[n].Value, true
}

// Min returns the smallest point and its id.
func (t *PointTree) Min() (Point, int, bool) {
	n := t.First()
	if n == nilNode {
		return Point{}, 0, false
	}
	return t.Nodes[n].Key, t.Nodes[n].Value, true
}

// Next returns the smallest stored point strictly greater than p, and its id.
func (t *PointTree) Next(p Point) (Point, int, bool) {
	eps := t.epsilon()
	succ := nilNode
	for n := t.Root; n != nilNode; {
		if ComparePoints(p, t.Nodes[n].Key, eps) < 0 {
			succ = n
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	if succ == nilNode {
		return Point{}, 0, false
	}
	return t.Nodes[succ].Key, t.Nodes[succ].Value, true
}

// All returns the points and their ids in increasing order.
func (t *PointTree) All() iter.Seq2[Point, int] {
	return func(yield func(Point, int) bool) {
		for n := range t.nodes() {
			if !yield(t.Nodes[n].Key, t.Nodes[n].Value) {
				return
			}
		}
	}
}

func (t *PointTree) check() error {
	eps := t.epsilon()
	return t.Tree.check(func(a, b Point) int {
		return ComparePoints(a, b, eps)
	})
}
