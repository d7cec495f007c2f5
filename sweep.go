package parcel

import (
	"math/big"
	"slices"

	"go.uber.org/zap"
)

// Event is a point of the sweep with the segments that begin, end, or cross there. Segments are referred to by their index in the sweep.
type Event struct {
	Point Point
	Begin []int
	End   []int
	Cross []int
}

func (e *Event) addCross(i int) {
	if !slices.Contains(e.Cross, i) {
		e.Cross = append(e.Cross, i)
	}
}

// Intersection is a point where segments A and B meet, with A < B. It lies in the interior of at least one of them.
type Intersection struct {
	Point Point
	A, B  int
}

// Sweep finds all segment intersections with the Bentley-Ottmann algorithm. It proceeds in bounded steps and keeps its resume point in Cursor, so it can be serialized between steps.
type Sweep struct {
	Segments      []Segment
	Events        []Event
	Queue         *PointTree   // event points, values index Events
	Status        *SegmentTree // segments crossing the sweep line, values index Segments
	StatusNode    []int        // node in Status per segment, or nilNode
	Cursor        Point        // last processed event point
	Started       bool
	Finished      bool
	Processed     int // number of processed events
	Intersections []Intersection
	Eps           int64

	eps *big.Int
}

// NewSweep returns an empty sweep with tolerance eps.
func NewSweep(eps int64) *Sweep {
	return &Sweep{
		Queue:  NewPointTree(eps),
		Status: NewSegmentTree(eps),
		Eps:    eps,
	}
}

func (s *Sweep) epsilon() *big.Int {
	if s.eps == nil {
		s.eps = big.NewInt(s.Eps)
	}
	return s.eps
}

func (s *Sweep) event(p Point) *Event {
	id, isNew := s.Queue.Insert(len(s.Events), p)
	if isNew {
		s.Events = append(s.Events, Event{Point: p})
	}
	return &s.Events[id]
}

// AddSegment adds a segment before the sweep starts and returns its index. Its endpoints are merged with existing events at equal points.
func (s *Sweep) AddSegment(seg Segment) int {
	i := len(s.Segments)
	s.Segments = append(s.Segments, seg)
	s.StatusNode = append(s.StatusNode, nilNode)
	s.QueueSegment(i)
	return i
}

// SetSegments sets all segments at once without queueing their endpoints, so that they can be queued in any order with QueueSegment.
func (s *Sweep) SetSegments(segs []Segment) {
	s.Segments = segs
	s.StatusNode = make([]int, len(segs))
	for i := range s.StatusNode {
		s.StatusNode[i] = nilNode
	}
}

// QueueSegment adds the endpoints of segment i to the event queue.
func (s *Sweep) QueueSegment(i int) {
	seg := s.Segments[i]
	e := s.event(seg.Start)
	e.Begin = append(e.Begin, i)
	e = s.event(seg.End)
	e.End = append(e.End, i)
}

// Step processes at most budget events, or all when budget is zero. It returns true once no events remain.
func (s *Sweep) Step(budget int) bool {
	if s.Finished {
		return true
	}
	k := 0
	for ; budget == 0 || k < budget; k++ {
		id, ok := s.next()
		if !ok {
			s.Finished = true
			break
		}
		s.Cursor, s.Started = s.Events[id].Point, true
		s.handle(id)
		s.Processed++
	}
	if !s.Finished {
		if _, ok := s.next(); !ok {
			s.Finished = true
		}
	}
	Logger().Debug("sweep step",
		zap.Int("events", k),
		zap.Int("budget", budget),
		zap.Int("intersections", len(s.Intersections)),
		zap.Bool("done", s.Finished))
	return s.Finished
}

func (s *Sweep) next() (int, bool) {
	if !s.Started {
		_, id, ok := s.Queue.Min()
		return id, ok
	}
	_, id, ok := s.Queue.Next(s.Cursor)
	return id, ok
}

func (s *Sweep) handle(id int) {
	eps := s.epsilon()
	p := s.Events[id].Point
	begin, end := s.Events[id].Begin, s.Events[id].End

	// segments passing through p, either found in the status or recorded when their crossing was scheduled
	passing := []int{}
	inPassing := map[int]bool{}
	for n := s.Status.Ceiling(p); n != nilNode; n = s.Status.Next(n) {
		seg := s.Status.Segment(n)
		if !seg.contains(p, eps) {
			break
		}
		if i := s.Status.ID(n); !inPassing[i] && !seg.hasEndpoint(p, eps) {
			inPassing[i] = true
			passing = append(passing, i)
		}
	}
	for _, i := range s.Events[id].Cross {
		if !inPassing[i] && !s.Segments[i].hasEndpoint(p, eps) {
			inPassing[i] = true
			passing = append(passing, i)
		}
	}

	if 0 < len(passing) {
		all := append(append(append([]int{}, begin...), end...), passing...)
		slices.Sort(all)
		all = slices.Compact(all)
		seen := map[[2]int]bool{}
		for _, i := range passing {
			for _, j := range all {
				if i == j {
					continue
				}
				pair := [2]int{min(i, j), max(i, j)}
				if seen[pair] {
					continue
				}
				seen[pair] = true
				s.Intersections = append(s.Intersections, Intersection{p, pair[0], pair[1]})
			}
		}
	}

	// remove ending and passing segments, passing segments are reinserted in their order right of p
	for _, i := range append(append([]int{}, end...), passing...) {
		if n := s.StatusNode[i]; n != nilNode {
			s.Status.Delete(n)
			s.StatusNode[i] = nilNode
		}
	}

	inserted := append(append([]int{}, begin...), passing...)
	isInserted := map[int]bool{}
	for _, i := range inserted {
		s.StatusNode[i] = s.Status.Insert(p, i, s.Segments[i])
		isInserted[i] = true
	}

	if len(inserted) == 0 {
		if n := s.Status.Ceiling(p); n != nilNode {
			if m := s.Status.Prev(n); m != nilNode {
				s.check(m, n, p)
			}
		}
		return
	}
	for _, i := range inserted {
		n := s.StatusNode[i]
		if m := s.Status.Prev(n); m != nilNode && !isInserted[s.Status.ID(m)] {
			s.check(m, n, p)
		}
		if m := s.Status.Next(n); m != nilNode && !isInserted[s.Status.ID(m)] {
			s.check(n, m, p)
		}
	}
}

// check schedules the intersection of the segments of two adjacent nodes when it lies right of p.
func (s *Sweep) check(a, b int, p Point) {
	q, ok := Intersect(s.Status.Segment(a), s.Status.Segment(b))
	if !ok || ComparePoints(q, p, s.epsilon()) <= 0 {
		return
	}
	e := s.event(q)
	e.addCross(s.Status.ID(a))
	e.addCross(s.Status.ID(b))
}

// Points returns the distinct intersection points in increasing order.
func (s *Sweep) Points() []Point {
	return uniquePoints(s.Intersections, s.epsilon())
}

func uniquePoints(zs []Intersection, eps *big.Int) []Point {
	t := NewPointTree(0)
	t.eps = eps
	for i, z := range zs {
		t.Insert(i, z.Point)
	}
	ps := make([]Point, 0, t.Len())
	for p := range t.All() {
		ps = append(ps, p)
	}
	return ps
}

// BruteForceIntersections tests all pairs of segments and returns the distinct intersection points in increasing order. Points that are an endpoint of both segments are excluded. Collinear segments that overlap meet at each endpoint lying inside the other segment.
func BruteForceIntersections(segs []Segment, eps int64) []Point {
	bigEps := big.NewInt(eps)
	zs := []Intersection{}
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if q, ok := Intersect(segs[i], segs[j]); ok {
				if !segs[i].hasEndpoint(q, bigEps) || !segs[j].hasEndpoint(q, bigEps) {
					zs = append(zs, Intersection{q, i, j})
				}
				continue
			}
			for _, pair := range [][2]Segment{{segs[i], segs[j]}, {segs[j], segs[i]}} {
				for _, q := range []Point{pair[0].Start, pair[0].End} {
					if pair[1].contains(q, bigEps) && !pair[1].hasEndpoint(q, bigEps) {
						zs = append(zs, Intersection{q, i, j})
					}
				}
			}
		}
	}
	return uniquePoints(zs, bigEps)
}
