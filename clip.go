package parcel

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"go.uber.org/zap"
)

// Operation is a boolean operation between the subject and the clipping polygon.
type Operation int

const (
	OpIntersection Operation = iota // subject ∩ clipping
	OpDifference                    // subject − clipping
)

func (op Operation) String() string {
	if op == OpDifference {
		return "difference"
	}
	return "intersection"
}

// ClipStage is the progress of a Clipper.
type ClipStage int

const (
	ClipSubdivide ClipStage = iota
	ClipQueue
	ClipSweep
	ClipCollect
	ClipDone
)

func (stage ClipStage) String() string {
	switch stage {
	case ClipSubdivide:
		return "subdivide"
	case ClipQueue:
		return "queue"
	case ClipSweep:
		return "sweep"
	case ClipCollect:
		return "collect"
	case ClipDone:
		return "done"
	}
	return fmt.Sprintf("ClipStage(%d)", int(stage))
}

// Fragment is a piece of a segment between consecutive intersection points.
type Fragment struct {
	Start, End Point // Start compares less than End
	Polygon    PolygonTag
	Segment    int // index of the originating segment

	BelowOwn   bool // region right below lies inside its own polygon
	BelowOther bool // region right below lies inside the other polygon
	Overlap    int  // coinciding fragment of the other polygon, or -1
	Inside     bool // lies inside the other polygon
}

func (f Fragment) segment(id int) Segment {
	return Segment{Start: f.Start, End: f.End, Polygon: f.Polygon, ID: id}
}

// ClipEvent holds the fragments starting (Left) and ending (Right) at a point.
type ClipEvent struct {
	Point Point
	Left  []int
	Right []int
}

// ClipOutput is the result of one operation, ie. the retained fragments and their connected contours.
type ClipOutput struct {
	Fragments []int
	Contours  []Contour

	Adjacent map[string][]int // point key to retained fragments
	Used     []bool
	Scan     int     // next retained fragment to start a contour from
	Current  Contour // contour being connected
}

// Clipper classifies every fragment of the subject and clipping polygons as inside or outside the other polygon with the Martinez-Rueda sweep, and collects the boundaries of their intersection and difference. All work is done in bounded steps.
type Clipper struct {
	Stage         ClipStage
	Segments      []Segment
	Intersections []Intersection
	Splits        [][]Point // interior intersection points per segment
	Fragments     []Fragment
	Chains        [][]int // fragments per segment from Start to End
	Cursor        int     // resume index within the current stage

	Queue       *PointTree // values index Events
	Events      []ClipEvent
	Status      *SegmentTree // values index Fragments
	StatusNode  []int
	SweepCursor Point
	Started     bool

	Outputs [2]ClipOutput // indexed by Operation
	Eps     int64

	eps *big.Int
}

// NewClipper returns a clipper for the segments of both polygons and all their intersections.
func NewClipper(segs []Segment, zs []Intersection, eps int64) *Clipper {
	c := &Clipper{
		Segments:      segs,
		Intersections: zs,
		Splits:        make([][]Point, len(segs)),
		Chains:        make([][]int, len(segs)),
		Queue:         NewPointTree(eps),
		Status:        NewSegmentTree(eps),
		Eps:           eps,
	}
	for _, z := range zs {
		for _, i := range []int{z.A, z.B} {
			if !segs[i].hasEndpoint(z.Point, c.epsilon()) {
				c.Splits[i] = append(c.Splits[i], z.Point)
			}
		}
	}
	return c
}

func (c *Clipper) epsilon() *big.Int {
	if c.eps == nil {
		c.eps = big.NewInt(c.Eps)
	}
	return c.eps
}

// Step does at most budget units of work, or all when budget is zero. It returns true once the clipper is done.
func (c *Clipper) Step(budget int) bool {
	k := 0
	for ; c.Stage != ClipDone && (budget == 0 || k < budget); k++ {
		switch c.Stage {
		case ClipSubdivide:
			c.subdivide()
		case ClipQueue:
			c.queue()
		case ClipSweep:
			c.sweep()
		case ClipCollect:
			c.collect()
		}
	}
	Logger().Debug("clip step",
		zap.Stringer("stage", c.Stage),
		zap.Int("units", k),
		zap.Int("budget", budget))
	return c.Stage == ClipDone
}

func (c *Clipper) advance(stage ClipStage) {
	c.Stage = stage
	c.Cursor = 0
}

// subdivide splits one segment at its interior intersection points.
func (c *Clipper) subdivide() {
	if len(c.Segments) <= c.Cursor {
		c.advance(ClipQueue)
		return
	}
	eps := c.epsilon()
	i := c.Cursor
	s := c.Segments[i]
	ps := slices.Clone(c.Splits[i])
	slices.SortFunc(ps, func(a, b Point) int {
		return ComparePoints(a, b, eps)
	})
	ps = slices.CompactFunc(ps, func(a, b Point) bool {
		return ComparePoints(a, b, eps) == 0
	})

	chain := make([]int, 0, len(ps)+1)
	start := s.Start
	for _, p := range append(ps, s.End) {
		chain = append(chain, len(c.Fragments))
		c.Fragments = append(c.Fragments, Fragment{
			Start:   start,
			End:     p,
			Polygon: s.Polygon,
			Segment: i,
			Overlap: -1,
		})
		start = p
	}
	c.Chains[i] = chain
	c.Cursor++
}

// queue adds the endpoints of one fragment to the event queue.
func (c *Clipper) queue() {
	if len(c.Fragments) <= c.Cursor {
		c.StatusNode = make([]int, len(c.Fragments))
		for i := range c.StatusNode {
			c.StatusNode[i] = nilNode
		}
		c.advance(ClipSweep)
		return
	}
	i := c.Cursor
	e := c.event(c.Fragments[i].Start)
	e.Left = append(e.Left, i)
	e = c.event(c.Fragments[i].End)
	e.Right = append(e.Right, i)
	c.Cursor++
}

func (c *Clipper) event(p Point) *ClipEvent {
	id, isNew := c.Queue.Insert(len(c.Events), p)
	if isNew {
		c.Events = append(c.Events, ClipEvent{Point: p})
	}
	return &c.Events[id]
}

// sweep processes one event: fragments ending at the point leave the status, fragments starting there enter it and derive their flags from the fragment right below.
func (c *Clipper) sweep() {
	var id int
	var ok bool
	if !c.Started {
		_, id, ok = c.Queue.Min()
	} else {
		_, id, ok = c.Queue.Next(c.SweepCursor)
	}
	if !ok {
		c.advance(ClipCollect)
		return
	}
	e := c.Events[id]
	c.SweepCursor, c.Started = e.Point, true

	for _, i := range e.Right {
		if n := c.StatusNode[i]; n != nilNode {
			c.Status.Delete(n)
			c.StatusNode[i] = nilNode
		}
	}

	eps := c.epsilon()
	left := slices.Clone(e.Left)
	slices.SortFunc(left, func(i, j int) int {
		a, b := c.Fragments[i].segment(i), c.Fragments[j].segment(j)
		if r := compareSlope(a, b); r != 0 {
			return r
		} else if a.Polygon != b.Polygon {
			return cmp.Compare(a.Polygon, b.Polygon)
		}
		return cmp.Compare(i, j)
	})
	for _, i := range left {
		n := c.Status.Insert(e.Point, i, c.Fragments[i].segment(i))
		c.StatusNode[i] = n

		f := &c.Fragments[i]
		prev := c.Status.Prev(n)
		if prev == nilNode {
			f.BelowOwn, f.BelowOther = false, false
			continue
		}
		j := c.Status.ID(prev)
		g := &c.Fragments[j]
		if g.Polygon == f.Polygon {
			f.BelowOwn, f.BelowOther = !g.BelowOwn, g.BelowOther
		} else {
			f.BelowOwn, f.BelowOther = g.BelowOther, !g.BelowOwn
			if ComparePoints(f.Start, g.Start, eps) == 0 && ComparePoints(f.End, g.End, eps) == 0 {
				f.Overlap, g.Overlap = j, i
			}
		}
	}
}

// classify sets whether fragment i lies inside the other polygon. Of two coinciding fragments the subject's one carries the shared boundary: it is inside when both interiors lie on the same side.
func (c *Clipper) classify(i int) {
	f := &c.Fragments[i]
	if f.Overlap < 0 {
		f.Inside = f.BelowOther
	} else if f.Polygon == Subject {
		f.Inside = f.BelowOwn == f.BelowOther
	} else {
		f.Inside = false
	}
}

func (c *Clipper) retained(op Operation, f Fragment) bool {
	if f.Polygon == Clipping {
		return f.Inside && f.Overlap < 0
	} else if op == OpIntersection {
		return f.Inside
	}
	return !f.Inside
}

// collect classifies and retains one fragment per unit for both operations, and then connects one fragment per unit into contours.
func (c *Clipper) collect() {
	n := len(c.Fragments)
	if c.Cursor < n {
		c.classify(c.Cursor)
		f := c.Fragments[c.Cursor]
		for op := range c.Outputs {
			if c.retained(Operation(op), f) {
				c.Outputs[op].Fragments = append(c.Outputs[op].Fragments, c.Cursor)
			}
		}
		c.Cursor++
		if c.Cursor == n {
			for op := range c.Outputs {
				c.Outputs[op].index(c.Fragments)
			}
		}
		return
	}

	for op := range c.Outputs {
		if c.Outputs[op].connect(c.Fragments, c.epsilon()) {
			return
		}
	}
	c.advance(ClipDone)
}

func (out *ClipOutput) index(frags []Fragment) {
	out.Adjacent = map[string][]int{}
	out.Used = make([]bool, len(out.Fragments))
	for k, i := range out.Fragments {
		out.Adjacent[frags[i].Start.Key()] = append(out.Adjacent[frags[i].Start.Key()], k)
		out.Adjacent[frags[i].End.Key()] = append(out.Adjacent[frags[i].End.Key()], k)
	}
}

// connect extends the current contour by one fragment, or starts a new one. It returns false when all fragments are used.
func (out *ClipOutput) connect(frags []Fragment, eps *big.Int) bool {
	if out.Current == nil {
		for out.Scan < len(out.Fragments) && out.Used[out.Scan] {
			out.Scan++
		}
		if len(out.Fragments) <= out.Scan {
			return false
		}
		f := frags[out.Fragments[out.Scan]]
		out.Used[out.Scan] = true
		out.Current = Contour{f.Start, f.End}
		return true
	}

	last := out.Current[len(out.Current)-1]
	for _, k := range out.Adjacent[last.Key()] {
		if out.Used[k] {
			continue
		}
		out.Used[k] = true
		f := frags[out.Fragments[k]]
		next := f.End
		if !f.Start.Equals(last) {
			next = f.Start
		}
		if ComparePoints(next, out.Current[0], eps) == 0 {
			out.Contours = append(out.Contours, out.Current)
			out.Current = nil
		} else {
			out.Current = append(out.Current, next)
		}
		return true
	}

	// open chain, which only happens for degenerate input
	out.Contours = append(out.Contours, out.Current)
	out.Current = nil
	return true
}

// Output returns the retained fragments of an operation.
func (c *Clipper) Output(op Operation) []Fragment {
	frags := make([]Fragment, 0, len(c.Outputs[op].Fragments))
	for _, i := range c.Outputs[op].Fragments {
		frags = append(frags, c.Fragments[i])
	}
	return frags
}

// OutputContours returns the retained fragments of an operation connected into contours.
func (c *Clipper) OutputContours(op Operation) []Contour {
	return c.Outputs[op].Contours
}

// OutputLength returns the number of points of all output contours of an operation.
func (c *Clipper) OutputLength(op Operation) int {
	n := 0
	for _, contour := range c.Outputs[op].Contours {
		n += len(contour)
	}
	return n
}

// OutputPoint returns the i-th point of the concatenated output contours of an operation.
func (c *Clipper) OutputPoint(op Operation, i int) (Point, bool) {
	if i < 0 {
		return Point{}, false
	}
	for _, contour := range c.Outputs[op].Contours {
		if i < len(contour) {
			return contour[i], true
		}
		i -= len(contour)
	}
	return Point{}, false
}
