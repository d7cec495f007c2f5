package parcel

import (
	"cmp"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AssembleStage is the progress of an Assembler.
type AssembleStage int

const (
	AssemblePoints AssembleStage = iota
	AssembleResult
	AssembleSubject
	AssembleDone
)

func (stage AssembleStage) String() string {
	switch stage {
	case AssemblePoints:
		return "points"
	case AssembleResult:
		return "result"
	case AssembleSubject:
		return "subject"
	case AssembleDone:
		return "done"
	}
	return fmt.Sprintf("AssembleStage(%d)", int(stage))
}

// Boundary is the kind of output polygon an edge bounds.
type Boundary int

const (
	Remainder Boundary = iota // subject minus clipping polygon
	Clipped                   // subject and clipping polygon
)

func (b Boundary) String() string {
	if b == Clipped {
		return "clipped"
	}
	return "remainder"
}

// Vertex is a vertex of a contour augmented with its intersection points.
type Vertex struct {
	Point    Point
	Fragment int // fragment from this vertex to the next one
	Node     int // point shared by both contours
}

// Edge is a directed fragment of an output boundary between two nodes. The polygon it bounds lies on the side of the subject's interior.
type Edge struct {
	From, To int
	Used     bool
}

// Walk is the resume state of a boundary walk.
type Walk struct {
	Active  bool
	Start   int // first edge
	Edge    int // last edge taken
	Contour Contour
	Steps   int
}

// Assembler builds the output polygons of a split in the manner of Weiler-Atherton: walks follow the subject and switch to the clipping contour where the subject leaves the polygon being built. The edges of both contours are kept per output kind, so that at a point where several edges leave, such as a vertex shared by both contours, the walk takes the sharpest turn towards the interior and polygons touching at a point come out separately. Fragments must have been classified by a Clipper.
type Assembler struct {
	Stage        AssembleStage
	Segments     []Segment
	NumSubject   int // segments [0,NumSubject) belong to the subject in contour order, the rest to the clipping polygon
	Fragments    []Fragment
	Chains       [][]int
	Orientation  int  // of the subject, 1 for counter-clockwise
	ClipReversed bool // clipping contour runs opposite to the subject

	Subject, Clip []Vertex
	Nodes         []Point
	NodeIndex     *PointTree // node per point
	SubjectNodes  int        // nodes [0,SubjectNodes) lie on the subject
	Edges         [2][]Edge  // per Boundary
	Out           [2][][]int // edges leaving each node, per Boundary
	SubjectInside int        // number of subject fragments inside the clipping polygon
	ClipInside    int        // number of clipping fragments inside the subject polygon
	Shared        int        // number of clipping vertices on the subject
	Unchanged     bool       // nothing is clipped off

	Cursor int
	Walk   Walk

	Results    []Contour // clipped-off polygons
	Remainders []Contour // parts of the subject that remain, the first is the subject output
}

// NewAssembler returns an assembler for the segments of both contours, using the fragments and their classification from c.
func NewAssembler(segs []Segment, numSubject int, c *Clipper, eps int64) *Assembler {
	a := &Assembler{
		Segments:    segs,
		NumSubject:  numSubject,
		Fragments:   c.Fragments,
		Chains:      c.Chains,
		Orientation: 1,
		NodeIndex:   NewPointTree(eps),
	}
	subject, clip := orientation(segs[:numSubject]), orientation(segs[numSubject:])
	if subject < 0 {
		a.Orientation = -1
	}
	a.ClipReversed = subject != clip
	return a
}

// orientation returns the sign of the area enclosed by segments in contour order.
func orientation(segs []Segment) int {
	area := new(big.Int)
	for _, s := range segs {
		p, q := s.From(), s.To()
		area.Add(area, new(big.Int).Mul(p.X, q.Y))
		area.Sub(area, new(big.Int).Mul(q.X, p.Y))
	}
	return area.Sign()
}

// AddIntersectedPoints appends the vertices of at most budget segments, or all when budget is zero, to the augmented vertex lists. It returns true once both lists are complete.
func (a *Assembler) AddIntersectedPoints(budget int) (bool, error) {
	if a.Stage != AssemblePoints {
		return true, nil
	}
	for k := 0; budget == 0 || k < budget; k++ {
		if len(a.Segments) <= a.Cursor {
			return true, a.finishPoints()
		}
		a.addSegment(a.Cursor)
		a.Cursor++
	}
	return false, nil
}

func (a *Assembler) addSegment(i int) {
	s := a.Segments[i]
	chain := a.Chains[i]
	for k := range chain {
		f := chain[k]
		from, to := a.Fragments[f].Start, a.Fragments[f].End
		if s.Reversed {
			f = chain[len(chain)-1-k]
			from, to = a.Fragments[f].End, a.Fragments[f].Start
		}
		frag := a.Fragments[f]
		u, v := a.node(from), a.node(to)

		if i < a.NumSubject {
			a.Subject = append(a.Subject, Vertex{from, f, u})
			a.SubjectNodes = len(a.Nodes)
			if frag.Inside {
				a.SubjectInside++
				a.addEdge(Clipped, u, v)
			} else {
				a.addEdge(Remainder, u, v)
			}
			continue
		}

		if u < a.SubjectNodes {
			a.Shared++
		}
		a.Clip = append(a.Clip, Vertex{from, f, u})
		if frag.Inside && frag.Overlap < 0 {
			a.ClipInside++
			if a.ClipReversed {
				u, v = v, u
			}
			a.addEdge(Clipped, u, v)
			a.addEdge(Remainder, v, u)
		}
	}
}

func (a *Assembler) node(p Point) int {
	id, isNew := a.NodeIndex.Insert(len(a.Nodes), p)
	if isNew {
		a.Nodes = append(a.Nodes, p)
		a.Out[Remainder] = append(a.Out[Remainder], nil)
		a.Out[Clipped] = append(a.Out[Clipped], nil)
	}
	return id
}

func (a *Assembler) addEdge(b Boundary, u, v int) {
	if u == v {
		return
	}
	a.Out[b][u] = append(a.Out[b][u], len(a.Edges[b]))
	a.Edges[b] = append(a.Edges[b], Edge{From: u, To: v})
}

func (a *Assembler) finishPoints() error {
	a.Cursor = 0
	if a.SubjectInside == len(a.Subject) {
		return ErrSubjectInsideClip
	} else if a.SubjectInside == 0 {
		if a.ClipInside == 0 {
			a.Unchanged = true
		} else if a.Shared < 2 {
			// only a clip touching the subject in two points or more cuts it apart
			return ErrClipInsideSubject
		}
	}
	a.Stage = AssembleResult
	Logger().Debug("augmented contours",
		zap.Int("subject", len(a.Subject)),
		zap.Int("clip", len(a.Clip)),
		zap.Int("shared", a.Shared),
		zap.Bool("unchanged", a.Unchanged))
	return nil
}

// BuildResultPolygon walks the boundaries of the parts of the subject inside the clipping polygon, producing the clipped-off polygons. It does at most budget walk steps, or all when budget is zero.
func (a *Assembler) BuildResultPolygon(budget int) (bool, error) {
	if a.Stage == AssemblePoints {
		return false, ErrOutOfOrder
	} else if a.Stage != AssembleResult {
		return true, nil
	}
	done, err := a.walks(Clipped, budget, &a.Results)
	if done && err == nil {
		a.Stage = AssembleSubject
		a.Cursor = 0
	}
	return done, err
}

// BuildSubjectPolygonOutput walks the boundaries of the parts of the subject outside the clipping polygon, producing the remainders of the subject. It does at most budget walk steps, or all when budget is zero.
func (a *Assembler) BuildSubjectPolygonOutput(budget int) (bool, error) {
	if a.Stage == AssemblePoints || a.Stage == AssembleResult {
		return false, ErrOutOfOrder
	} else if a.Stage != AssembleSubject {
		return true, nil
	}
	done, err := a.walks(Remainder, budget, &a.Remainders)
	if done && err == nil {
		a.Stage = AssembleDone
	}
	return done, err
}

// walks starts a walk at each unused edge in order, so that subject edges come first in contour order.
func (a *Assembler) walks(b Boundary, budget int, out *[]Contour) (bool, error) {
	if a.Unchanged {
		return true, nil
	}
	edges := a.Edges[b]
	for k := 0; budget == 0 || k < budget; k++ {
		if !a.Walk.Active {
			for a.Cursor < len(edges) && edges[a.Cursor].Used {
				a.Cursor++
			}
			if len(edges) <= a.Cursor {
				return true, nil
			}
			edges[a.Cursor].Used = true
			a.Walk = Walk{
				Active:  true,
				Start:   a.Cursor,
				Edge:    a.Cursor,
				Contour: Contour{a.Nodes[edges[a.Cursor].From]},
			}
		}

		closed, err := a.step(b)
		if err != nil {
			return false, err
		} else if closed {
			c := a.Walk.Contour
			if c.Orientation() != a.Orientation {
				if b == Remainder {
					return false, errors.Wrapf(ErrClipInsideSubject, "remainder %v encloses a hole", c)
				}
				return false, errors.Wrapf(ErrOperationFailed, "%v polygon %v runs opposite to the subject", b, c)
			}
			*out = append(*out, c)
			a.Walk = Walk{}
		}
	}
	return false, nil
}

// step takes the next edge of the walk and returns true when the walk is back at its first edge.
func (a *Assembler) step(b Boundary) (bool, error) {
	w := &a.Walk
	edges := a.Edges[b]
	if w.Steps++; len(edges) < w.Steps {
		return false, errors.Wrapf(ErrOperationFailed, "walk from %v does not close", a.Nodes[edges[w.Start].From])
	}

	in := edges[w.Edge]
	next := -1
	for _, e := range a.Out[b][in.To] {
		if edges[e].Used && e != w.Start {
			continue
		} else if next == -1 || a.compareTurns(in, edges[e], edges[next]) < 0 {
			next = e
		}
	}
	if next == -1 {
		return false, errors.Wrapf(ErrOperationFailed, "%v boundary is open at %v", b, a.Nodes[in.To])
	} else if next == w.Start {
		return true, nil
	}
	edges[next].Used = true
	w.Contour = append(w.Contour, a.Nodes[in.To])
	w.Edge = next
	return false, nil
}

// compareTurns orders the edges e and f leaving the end of edge in by how sharply they turn towards the interior, sharpest first. Turning back along in comes last.
func (a *Assembler) compareTurns(in, e, f Edge) int {
	o, r := a.Nodes[in.To], a.Nodes[in.From]
	p, q := a.Nodes[e.To], a.Nodes[f.To]
	hp, hq := a.half(o, r, p), a.half(o, r, q)
	if hp != hq {
		return cmp.Compare(hp, hq)
	} else if hp == 2 {
		return 0
	}
	return a.Orientation * cross(o, p, q).Sign()
}

// half tells in which half turn from direction r the direction p lies, measured clockwise around o for counter-clockwise subjects and counter-clockwise otherwise: 0 for the first half, 1 for the second, and 2 when p is r.
func (a *Assembler) half(o, r, p Point) int {
	if c := -a.Orientation * cross(o, r, p).Sign(); 0 < c {
		return 0
	} else if c < 0 || dot(o, r, p).Sign() < 0 {
		return 1
	}
	return 2
}
