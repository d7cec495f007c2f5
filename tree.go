package parcel

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/pkg/errors"
)

const nilNode = -1

// Node is a red-black tree node stored in the arena of a Tree. Links are indices into the arena.
type Node[K any] struct {
	Key                 K
	Value               int
	Left, Right, Parent int
	Red                 bool
}

// Tree is a red-black tree whose nodes live in a flat arena, so that it can be serialized and restored as is. Removed nodes are recycled through a free list. The ordering is supplied by the wrapping type at each call.
type Tree[K any] struct {
	Nodes []Node[K]
	Root  int
	Free  []int
	Size  int
}

func newTree[K any]() Tree[K] {
	return Tree[K]{Root: nilNode}
}

// Len returns the number of keys in the tree.
func (t *Tree[K]) Len() int {
	return t.Size
}

// Key returns the key of node n.
func (t *Tree[K]) Key(n int) K {
	return t.Nodes[n].Key
}

// Value returns the value of node n.
func (t *Tree[K]) Value(n int) int {
	return t.Nodes[n].Value
}

func (t *Tree[K]) isRed(n int) bool {
	return n != nilNode && t.Nodes[n].Red
}

func (t *Tree[K]) newNode(key K, value int, parent int) int {
	node := Node[K]{
		Key:    key,
		Value:  value,
		Left:   nilNode,
		Right:  nilNode,
		Parent: parent,
		Red:    true,
	}
	if n := len(t.Free); 0 < n {
		i := t.Free[n-1]
		t.Free = t.Free[:n-1]
		t.Nodes[i] = node
		return i
	}
	t.Nodes = append(t.Nodes, node)
	return len(t.Nodes) - 1
}

// search descends from the root; cmp returns the order of the searched key relative to a node's key. It returns the matching node, or nilNode and the parent to attach to together with the side.
func (t *Tree[K]) search(cmp func(K) int) (int, int, int) {
	parent, dir := nilNode, 0
	for n := t.Root; n != nilNode; {
		c := cmp(t.Nodes[n].Key)
		if c == 0 {
			return n, parent, 0
		}
		parent, dir = n, c
		if c < 0 {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return nilNode, parent, dir
}

// attach inserts a new node as the child of parent on the side given by the sign of dir and rebalances.
func (t *Tree[K]) attach(parent, dir int, key K, value int) int {
	n := t.newNode(key, value, parent)
	if parent == nilNode {
		t.Root = n
	} else if dir < 0 {
		t.Nodes[parent].Left = n
	} else {
		t.Nodes[parent].Right = n
	}
	t.Size++
	t.insertFixup(n)
	return n
}

func (t *Tree[K]) rotateLeft(x int) {
	y := t.Nodes[x].Right
	t.Nodes[x].Right = t.Nodes[y].Left
	if t.Nodes[y].Left != nilNode {
		t.Nodes[t.Nodes[y].Left].Parent = x
	}
	t.Nodes[y].Parent = t.Nodes[x].Parent
	if p := t.Nodes[x].Parent; p == nilNode {
		t.Root = y
	} else if t.Nodes[p].Left == x {
		t.Nodes[p].Left = y
	} else {
		t.Nodes[p].Right = y
	}
	t.Nodes[y].Left = x
	t.Nodes[x].Parent = y
}

func (t *Tree[K]) rotateRight(x int) {
	y := t.Nodes[x].Left
	t.Nodes[x].Left = t.Nodes[y].Right
	if t.Nodes[y].Right != nilNode {
		t.Nodes[t.Nodes[y].Right].Parent = x
	}
	t.Nodes[y].Parent = t.Nodes[x].Parent
	if p := t.Nodes[x].Parent; p == nilNode {
		t.Root = y
	} else if t.Nodes[p].Right == x {
		t.Nodes[p].Right = y
	} else {
		t.Nodes[p].Left = y
	}
	t.Nodes[y].Right = x
	t.Nodes[x].Parent = y
}

func (t *Tree[K]) insertFixup(z int) {
	for t.isRed(t.Nodes[z].Parent) {
		p := t.Nodes[z].Parent
		g := t.Nodes[p].Parent
		if p == t.Nodes[g].Left {
			u := t.Nodes[g].Right
			if t.isRed(u) {
				t.Nodes[p].Red = false
				t.Nodes[u].Red = false
				t.Nodes[g].Red = true
				z = g
				continue
			}
			if z == t.Nodes[p].Right {
				z = p
				t.rotateLeft(z)
				p = t.Nodes[z].Parent
			}
			t.Nodes[p].Red = false
			t.Nodes[g].Red = true
			t.rotateRight(g)
		} else {
			u := t.Nodes[g].Left
			if t.isRed(u) {
				t.Nodes[p].Red = false
				t.Nodes[u].Red = false
				t.Nodes[g].Red = true
				z = g
				continue
			}
			if z == t.Nodes[p].Left {
				z = p
				t.rotateRight(z)
				p = t.Nodes[z].Parent
			}
			t.Nodes[p].Red = false
			t.Nodes[g].Red = true
			t.rotateLeft(g)
		}
	}
	t.Nodes[t.Root].Red = false
}

func (t *Tree[K]) transplant(u, v int) {
	if p := t.Nodes[u].Parent; p == nilNode {
		t.Root = v
	} else if t.Nodes[p].Left == u {
		t.Nodes[p].Left = v
	} else {
		t.Nodes[p].Right = v
	}
	if v != nilNode {
		t.Nodes[v].Parent = t.Nodes[u].Parent
	}
}

func (t *Tree[K]) minimum(n int) int {
	for t.Nodes[n].Left != nilNode {
		n = t.Nodes[n].Left
	}
	return n
}

func (t *Tree[K]) maximum(n int) int {
	for t.Nodes[n].Right != nilNode {
		n = t.Nodes[n].Right
	}
	return n
}

// remove deletes node z and returns its slot to the free list.
func (t *Tree[K]) remove(z int) {
	y, yRed := z, t.Nodes[z].Red
	var x, xParent int
	if t.Nodes[z].Left == nilNode {
		x, xParent = t.Nodes[z].Right, t.Nodes[z].Parent
		t.transplant(z, x)
	} else if t.Nodes[z].Right == nilNode {
		x, xParent = t.Nodes[z].Left, t.Nodes[z].Parent
		t.transplant(z, x)
	} else {
		y = t.minimum(t.Nodes[z].Right)
		yRed = t.Nodes[y].Red
		x = t.Nodes[y].Right
		if t.Nodes[y].Parent == z {
			xParent = y
		} else {
			xParent = t.Nodes[y].Parent
			t.transplant(y, x)
			t.Nodes[y].Right = t.Nodes[z].Right
			t.Nodes[t.Nodes[y].Right].Parent = y
		}
		t.transplant(z, y)
		t.Nodes[y].Left = t.Nodes[z].Left
		t.Nodes[t.Nodes[y].Left].Parent = y
		t.Nodes[y].Red = t.Nodes[z].Red
	}
	if !yRed {
		t.removeFixup(x, xParent)
	}

	t.Nodes[z] = Node[K]{Left: nilNode, Right: nilNode, Parent: nilNode}
	t.Free = append(t.Free, z)
	t.Size--
}

func (t *Tree[K]) removeFixup(x, parent int) {
	for x != t.Root && !t.isRed(x) {
		if x == t.Nodes[parent].Left {
			w := t.Nodes[parent].Right
			if t.isRed(w) {
				t.Nodes[w].Red = false
				t.Nodes[parent].Red = true
				t.rotateLeft(parent)
				w = t.Nodes[parent].Right
			}
			if !t.isRed(t.Nodes[w].Left) && !t.isRed(t.Nodes[w].Right) {
				t.Nodes[w].Red = true
				x, parent = parent, t.Nodes[parent].Parent
				continue
			}
			if !t.isRed(t.Nodes[w].Right) {
				t.Nodes[t.Nodes[w].Left].Red = false
				t.Nodes[w].Red = true
				t.rotateRight(w)
				w = t.Nodes[parent].Right
			}
			t.Nodes[w].Red = t.Nodes[parent].Red
			t.Nodes[parent].Red = false
			t.Nodes[t.Nodes[w].Right].Red = false
			t.rotateLeft(parent)
			x = t.Root
		} else {
			w := t.Nodes[parent].Left
			if t.isRed(w) {
				t.Nodes[w].Red = false
				t.Nodes[parent].Red = true
				t.rotateRight(parent)
				w = t.Nodes[parent].Left
			}
			if !t.isRed(t.Nodes[w].Left) && !t.isRed(t.Nodes[w].Right) {
				t.Nodes[w].Red = true
				x, parent = parent, t.Nodes[parent].Parent
				continue
			}
			if !t.isRed(t.Nodes[w].Left) {
				t.Nodes[t.Nodes[w].Right].Red = false
				t.Nodes[w].Red = true
				t.rotateLeft(w)
				w = t.Nodes[parent].Left
			}
			t.Nodes[w].Red = t.Nodes[parent].Red
			t.Nodes[parent].Red = false
			t.Nodes[t.Nodes[w].Left].Red = false
			t.rotateRight(parent)
			x = t.Root
		}
	}
	if x != nilNode {
		t.Nodes[x].Red = false
	}
}

// First returns the smallest node, or nilNode for an empty tree.
func (t *Tree[K]) First() int {
	if t.Root == nilNode {
		return nilNode
	}
	return t.minimum(t.Root)
}

// Last returns the largest node, or nilNode for an empty tree.
func (t *Tree[K]) Last() int {
	if t.Root == nilNode {
		return nilNode
	}
	return t.maximum(t.Root)
}

// Next returns the in-order successor of node n, or nilNode.
func (t *Tree[K]) Next(n int) int {
	if t.Nodes[n].Right != nilNode {
		return t.minimum(t.Nodes[n].Right)
	}
	p := t.Nodes[n].Parent
	for p != nilNode && t.Nodes[p].Right == n {
		n, p = p, t.Nodes[p].Parent // find first parent for which we're left
	}
	return p
}

// Prev returns the in-order predecessor of node n, or nilNode.
func (t *Tree[K]) Prev(n int) int {
	if t.Nodes[n].Left != nilNode {
		return t.maximum(t.Nodes[n].Left)
	}
	p := t.Nodes[n].Parent
	for p != nilNode && t.Nodes[p].Left == n {
		n, p = p, t.Nodes[p].Parent // find first parent for which we're right
	}
	return p
}

// nodes returns a lazy in-order sequence of node indices.
func (t *Tree[K]) nodes() iter.Seq[int] {
	return func(yield func(int) bool) {
		for n := t.First(); n != nilNode; n = t.Next(n) {
			if !yield(n) {
				return
			}
		}
	}
}

// check verifies the parent links, the red-black properties, and, when cmp is given, the strict in-order ordering.
func (t *Tree[K]) check(cmp func(a, b K) int) error {
	if t.Root == nilNode {
		if t.Size != 0 {
			return errors.Errorf("empty tree with size %d", t.Size)
		}
		return nil
	}
	if t.Nodes[t.Root].Parent != nilNode {
		return errors.Errorf("root %d has parent", t.Root)
	} else if t.Nodes[t.Root].Red {
		return errors.Errorf("root %d is red", t.Root)
	}

	var blackHeight func(int) (int, int, error)
	blackHeight = func(n int) (int, int, error) {
		if n == nilNode {
			return 1, 0, nil
		}
		node := t.Nodes[n]
		for _, c := range []int{node.Left, node.Right} {
			if c == nilNode {
				continue
			} else if t.Nodes[c].Parent != n {
				return 0, 0, errors.Errorf("node %d has wrong parent", c)
			} else if node.Red && t.Nodes[c].Red {
				return 0, 0, errors.Errorf("red node %d has red child %d", n, c)
			}
		}
		hl, nl, err := blackHeight(node.Left)
		if err != nil {
			return 0, 0, err
		}
		hr, nr, err := blackHeight(node.Right)
		if err != nil {
			return 0, 0, err
		} else if hl != hr {
			return 0, 0, errors.Errorf("node %d has black heights %d and %d", n, hl, hr)
		}
		if !node.Red {
			hl++
		}
		return hl, nl + nr + 1, nil
	}
	_, size, err := blackHeight(t.Root)
	if err != nil {
		return err
	} else if size != t.Size {
		return errors.Errorf("tree has %d nodes but size %d", size, t.Size)
	}

	if cmp != nil {
		prev := nilNode
		for n := range t.nodes() {
			if prev != nilNode && cmp(t.Nodes[prev].Key, t.Nodes[n].Key) >= 0 {
				return errors.Errorf("nodes %d and %d out of order", prev, n)
			}
			prev = n
		}
	}
	return nil
}

// Print writes the tree sideways, one node per line.
func (t *Tree[K]) Print(w io.Writer) {
	var printNode func(int, int)
	printNode = func(n, indent int) {
		if n == nilNode {
			return
		}
		printNode(t.Nodes[n].Right, indent+1)
		color := "B"
		if t.Nodes[n].Red {
			color = "R"
		}
		fmt.Fprintf(w, "%s%s %v\n", strings.Repeat("  ", indent), color, t.Nodes[n].Key)
		printNode(t.Nodes[n].Left, indent+1)
	}
	printNode(t.Root, 0)
}
