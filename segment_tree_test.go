package parcel

import (
	"testing"

	"github.com/tdewolff/test"
)

func statusIDs(tree *SegmentTree) []int {
	ids := []int{}
	for n := range tree.All() {
		ids = append(ids, tree.ID(n))
	}
	return ids
}

func TestSegmentTree(t *testing.T) {
	segs := []Segment{
		fseg(0, 0, 10, 0, Subject, 0),
		fseg(0, 10, 10, 10, Subject, 1),
		fseg(0, 5, 10, 5, Clipping, 2),
		fseg(0, 0, 10, 10, Clipping, 3),
		fseg(0, 10, 10, 0, Subject, 4),
	}

	sweep := fpt(0, 0)
	tree := NewSegmentTree(Epsilon)
	nodes := []int{}
	for i, s := range segs {
		nodes = append(nodes, tree.Insert(sweep, i, s))
		test.Error(t, tree.check(sweep))
	}
	test.T(t, statusIDs(tree), []int{0, 3, 2, 4, 1})
	test.T(t, tree.Insert(sweep, 2, segs[2]), nodes[2])

	n, ok := tree.Find(sweep, segs[3])
	test.That(t, ok)
	test.T(t, n, nodes[3])
	test.T(t, tree.ID(tree.Next(n)), 2)
	test.T(t, tree.ID(tree.Prev(n)), 0)

	// lowest segment at or above a point
	test.T(t, tree.ID(tree.Ceiling(fpt(0, 0))), 0)
	test.T(t, tree.ID(tree.Ceiling(fpt(0, 3))), 2)
	test.T(t, tree.ID(tree.Ceiling(fpt(0, 5))), 2)
	test.T(t, tree.Ceiling(fpt(0, 11)), nilNode)

	// reorder past the crossing at (5,5): delete and insert at the new sweep point
	sweep = fpt(5, 5)
	for _, i := range []int{2, 3, 4} {
		tree.Delete(nodes[i])
	}
	test.Error(t, tree.check(sweep))
	for _, i := range []int{2, 3, 4} {
		nodes[i] = tree.Insert(sweep, i, segs[i])
		test.Error(t, tree.check(sweep))
	}
	test.T(t, statusIDs(tree), []int{0, 4, 2, 3, 1})
	test.T(t, tree.Segment(nodes[4]).ID, 4)

	tree.Delete(nodes[0])
	tree.Delete(nodes[1])
	test.Error(t, tree.check(sweep))
	test.T(t, tree.Len(), 3)
}
