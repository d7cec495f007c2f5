package parcel

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Stage is the progress of a SplitOperation. Stages are passed in order.
type Stage int

const (
	Created Stage = iota
	PolygonsInitialized
	SegmentsAdded
	IntersectionsComputed
	ClippingComputed
	ResultBuilt
	Finished
)

func (stage Stage) String() string {
	switch stage {
	case Created:
		return "created"
	case PolygonsInitialized:
		return "polygons initialized"
	case SegmentsAdded:
		return "segments added"
	case IntersectionsComputed:
		return "intersections computed"
	case ClippingComputed:
		return "clipping computed"
	case ResultBuilt:
		return "result built"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("Stage(%d)", int(stage))
}

// DefaultBudget is the default number of work units per call.
const DefaultBudget = 256

// PointDecoder looks up the point of a geohash.
type PointDecoder interface {
	Decode(geohash string) (Point, error)
}

// Option configures a SplitOperation.
type Option func(*SplitOperation)

// WithBudget sets the maximum number of work units per call. Zero means unbounded.
func WithBudget(budget int) Option {
	return func(op *SplitOperation) {
		op.state.Budget = max(0, budget)
	}
}

// WithEpsilon sets the tolerance in fixed-point units under which coordinates are equal.
func WithEpsilon(eps int64) Option {
	return func(op *SplitOperation) {
		op.state.Eps = max(0, eps)
	}
}

// WithDecoder sets the geohash decoder used by NewGeohashSplitOperation.
func WithDecoder(decoder PointDecoder) Option {
	return func(op *SplitOperation) {
		op.decoder = decoder
	}
}

// operationState is everything a SplitOperation persists between calls.
type operationState struct {
	Stage  Stage
	Failed bool
	Err    string
	Budget int
	Eps    int64

	Subject, Clip Contour
	Segments      []Segment // subject segments in contour order, then clipping segments
	Validation    *Sweep
	Validating    PolygonTag
	Added         [2]int // number of queued segments per polygon

	Sweep     *Sweep
	Clipper   *Clipper
	Assembler *Assembler

	SubjectOutput Contour
	Results       []Contour
}

// SplitOperation splits a subject polygon by a clipping polygon into the remaining subject polygon and the clipped-off polygons. The work is divided into stages that must be called in order, and each call does a bounded amount of work so that the operation can be suspended and resumed, possibly after serialization with MarshalBinary. It is not safe for concurrent use.
type SplitOperation struct {
	state   operationState
	decoder PointDecoder
}

// NewSplitOperation returns an operation that splits subject by clip. The contours are copied.
func NewSplitOperation(subject, clip Contour, opts ...Option) *SplitOperation {
	op := &SplitOperation{
		state: operationState{
			Budget:  DefaultBudget,
			Eps:     Epsilon,
			Subject: subject.Copy(),
			Clip:    clip.Copy(),
		},
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// NewGeohashSplitOperation returns an operation for contours given as geohashes, decoded with the decoder of WithDecoder.
func NewGeohashSplitOperation(subject, clip []string, opts ...Option) (*SplitOperation, error) {
	op := NewSplitOperation(nil, nil, opts...)
	if op.decoder == nil {
		return nil, errors.New("no geohash decoder")
	}
	var err error
	if op.state.Subject, err = DecodeContour(op.decoder, subject); err != nil {
		return nil, errors.Wrap(err, "subject")
	} else if op.state.Clip, err = DecodeContour(op.decoder, clip); err != nil {
		return nil, errors.Wrap(err, "clipping")
	}
	return op, nil
}

// DecodeContour decodes a list of geohashes into a contour.
func DecodeContour(decoder PointDecoder, hashes []string) (Contour, error) {
	c := make(Contour, 0, len(hashes))
	for _, hash := range hashes {
		p, err := decoder.Decode(hash)
		if err != nil {
			return nil, errors.Wrapf(err, "geohash %q", hash)
		}
		c = append(c, p)
	}
	return c, nil
}

// Split runs all stages of a split.
func Split(subject, clip Contour, opts ...Option) (*SplitOperation, error) {
	op := NewSplitOperation(subject, clip, opts...)
	for {
		done, err := op.Step()
		if err != nil {
			return op, err
		} else if done {
			return op, nil
		}
	}
}

// DoneStage returns the last completed stage.
func (op *SplitOperation) DoneStage() Stage {
	return op.state.Stage
}

// Failed returns true after any call failed. A failed operation cannot continue.
func (op *SplitOperation) Failed() bool {
	return op.state.Failed
}

// Err returns the error message of a failed operation.
func (op *SplitOperation) Err() string {
	return op.state.Err
}

// Budget returns the number of work units per call.
func (op *SplitOperation) Budget() int {
	return op.state.Budget
}

// Epsilon returns the tolerance in fixed-point units.
func (op *SplitOperation) Epsilon() int64 {
	return op.state.Eps
}

// Subject returns the subject polygon as given.
func (op *SplitOperation) Subject() Contour {
	return op.state.Subject
}

// Clip returns the clipping polygon as given.
func (op *SplitOperation) Clip() Contour {
	return op.state.Clip
}

// enter checks that the operation is at stage.
func (op *SplitOperation) enter(stage Stage) error {
	if op.state.Failed {
		return errors.Wrap(ErrOperationFailed, op.state.Err)
	} else if op.state.Stage < stage {
		return errors.Wrapf(ErrOutOfOrder, "at stage %v, need %v", op.state.Stage, stage)
	} else if stage < op.state.Stage {
		return errors.Wrapf(ErrStageCompleted, "at stage %v", op.state.Stage)
	}
	return nil
}

func (op *SplitOperation) fail(err error) error {
	op.state.Failed = true
	op.state.Err = err.Error()
	Logger().Warn("split failed", zap.Stringer("stage", op.state.Stage), zap.Error(err))
	return err
}

func (op *SplitOperation) advance(stage Stage) {
	op.state.Stage = stage
	Logger().Debug("split stage", zap.Stringer("stage", stage))
}

// PrepareAndInitAllPolygons validates both contours: they must have at least three distinct vertices and may not intersect themselves. The self-intersection sweeps are resumable.
func (op *SplitOperation) PrepareAndInitAllPolygons() (bool, error) {
	if err := op.enter(Created); err != nil {
		return false, err
	}

	s := &op.state
	if s.Validation == nil {
		if err := s.Subject.checkDegenerate(op.bigEps()); err != nil {
			return false, op.fail(errors.Wrap(err, "subject"))
		} else if err := s.Clip.checkDegenerate(op.bigEps()); err != nil {
			return false, op.fail(errors.Wrap(err, "clipping"))
		}
		s.Validating = Subject
		s.Validation = op.validation(s.Subject)
	}

	if !s.Validation.Step(s.Budget) {
		return false, nil
	} else if 0 < len(s.Validation.Intersections) {
		z := s.Validation.Intersections[0]
		return false, op.fail(errors.Wrapf(ErrSelfIntersecting, "%v edges %d and %d meet at %v", s.Validating, z.A, z.B, z.Point))
	}

	if s.Validating == Subject {
		s.Validating = Clipping
		s.Validation = op.validation(s.Clip)
		return false, nil
	}

	s.Validation = nil
	n := len(s.Subject)
	s.Segments = append(s.Subject.Segments(Subject, 0), s.Clip.Segments(Clipping, n)...)
	s.Sweep = NewSweep(s.Eps)
	s.Sweep.SetSegments(s.Segments)
	op.advance(PolygonsInitialized)
	return true, nil
}

func (op *SplitOperation) validation(c Contour) *Sweep {
	sweep := NewSweep(op.state.Eps)
	for _, seg := range c.Segments(Subject, 0) {
		sweep.AddSegment(seg)
	}
	return sweep
}

// AddSubjectPolygonSegments queues the subject segments for the intersection sweep.
func (op *SplitOperation) AddSubjectPolygonSegments() (bool, error) {
	return op.addSegments(Subject, op.state.Budget)
}

// AddClippingPolygonSegments queues the clipping segments for the intersection sweep.
func (op *SplitOperation) AddClippingPolygonSegments() (bool, error) {
	return op.addSegments(Clipping, op.state.Budget)
}

// AddAllPolygonsSegments queues the segments of both polygons.
func (op *SplitOperation) AddAllPolygonsSegments() (bool, error) {
	if err := op.enter(PolygonsInitialized); err != nil {
		return false, err
	}
	budget := op.state.Budget
	for _, tag := range []PolygonTag{Subject, Clipping} {
		before := op.state.Added[tag]
		done, err := op.addSegments(tag, budget)
		if err != nil && !errors.Is(err, ErrStageCompleted) {
			return false, err
		} else if !done {
			return false, nil
		}
		if budget != 0 {
			if budget -= op.state.Added[tag] - before; budget <= 0 && op.state.Stage == PolygonsInitialized {
				return false, nil
			}
		}
	}
	return op.state.Stage == SegmentsAdded, nil
}

func (op *SplitOperation) addSegments(tag PolygonTag, budget int) (bool, error) {
	if err := op.enter(PolygonsInitialized); err != nil {
		return false, err
	}
	s := &op.state
	offset, n := 0, len(s.Subject)
	if tag == Clipping {
		offset, n = len(s.Subject), len(s.Clip)
	}
	if s.Added[tag] == n {
		return true, errors.Wrapf(ErrStageCompleted, "%v segments already added", tag)
	}
	for k := 0; s.Added[tag] < n && (budget == 0 || k < budget); k++ {
		s.Sweep.QueueSegment(offset + s.Added[tag])
		s.Added[tag]++
	}
	if s.Added[tag] < n {
		return false, nil
	}
	if s.Added[Subject] == len(s.Subject) && s.Added[Clipping] == len(s.Clip) {
		op.advance(SegmentsAdded)
	}
	return true, nil
}

// ProcessBentleyOttmann runs the intersection sweep over both polygons.
func (op *SplitOperation) ProcessBentleyOttmann() (bool, error) {
	if err := op.enter(SegmentsAdded); err != nil {
		return false, err
	}
	s := &op.state
	if !s.Sweep.Step(s.Budget) {
		return false, nil
	}
	s.Clipper = NewClipper(s.Segments, s.Sweep.Intersections, s.Eps)
	op.advance(IntersectionsComputed)
	return true, nil
}

// ProcessMartinezRueda classifies the boundary fragments of both polygons and collects the intersection and difference contours.
func (op *SplitOperation) ProcessMartinezRueda() (bool, error) {
	if err := op.enter(IntersectionsComputed); err != nil {
		return false, err
	}
	s := &op.state
	if !s.Clipper.Step(s.Budget) {
		return false, nil
	}
	s.Assembler = NewAssembler(s.Segments, len(s.Subject), s.Clipper, s.Eps)
	op.advance(ClippingComputed)
	return true, nil
}

// ClipStage returns the progress of the clipping stage.
func (op *SplitOperation) ClipStage() ClipStage {
	if op.state.Clipper == nil {
		if op.state.Stage < IntersectionsComputed {
			return ClipSubdivide
		}
		return ClipDone
	}
	return op.state.Clipper.Stage
}

// AddIntersectedPoints builds the subject and clipping vertex lists including the intersection points.
func (op *SplitOperation) AddIntersectedPoints() (bool, error) {
	if err := op.enter(ClippingComputed); err != nil {
		return false, err
	} else if op.state.Assembler.Stage != AssemblePoints {
		return false, errors.Wrap(ErrStageCompleted, "intersected points already added")
	}
	done, err := op.state.Assembler.AddIntersectedPoints(op.state.Budget)
	if err != nil {
		return false, op.fail(err)
	}
	return done, nil
}

// BuildResultPolygon assembles the clipped-off polygons.
func (op *SplitOperation) BuildResultPolygon() (bool, error) {
	if err := op.enter(ClippingComputed); err != nil {
		return false, err
	}
	switch op.state.Assembler.Stage {
	case AssemblePoints:
		return false, errors.Wrap(ErrOutOfOrder, "intersected points not added")
	case AssembleSubject, AssembleDone:
		return false, errors.Wrap(ErrStageCompleted, "result polygons already built")
	}
	done, err := op.state.Assembler.BuildResultPolygon(op.state.Budget)
	if err != nil {
		return false, op.fail(err)
	}
	return done, nil
}

// BuildSubjectPolygonOutput assembles the remaining subject polygon. Further remainders, when the clipping polygon cuts the subject into several pieces, are added to the result polygons.
func (op *SplitOperation) BuildSubjectPolygonOutput() (bool, error) {
	if err := op.enter(ClippingComputed); err != nil {
		return false, err
	}
	switch op.state.Assembler.Stage {
	case AssemblePoints, AssembleResult:
		return false, errors.Wrap(ErrOutOfOrder, "result polygons not built")
	}
	done, err := op.state.Assembler.BuildSubjectPolygonOutput(op.state.Budget)
	if err != nil {
		return false, op.fail(err)
	} else if !done {
		return false, nil
	}
	op.buildResult()
	return true, nil
}

func (op *SplitOperation) buildResult() {
	s := &op.state
	a := s.Assembler
	if a.Unchanged || len(a.Remainders) == 0 {
		s.SubjectOutput = s.Subject.Copy()
		s.Results = nil
	} else {
		s.SubjectOutput = a.Remainders[0]
		s.Results = append(append([]Contour{}, a.Results...), a.Remainders[1:]...)
	}
	Logger().Debug("split result",
		zap.Int("subject", len(s.SubjectOutput)),
		zap.Int("results", len(s.Results)))
	op.advance(ResultBuilt)
}

// ProcessWeilerAtherton runs AddIntersectedPoints, BuildResultPolygon, and BuildSubjectPolygonOutput within one budget.
func (op *SplitOperation) ProcessWeilerAtherton() (bool, error) {
	if err := op.enter(ClippingComputed); err != nil {
		return false, err
	}
	a := op.state.Assembler
	budget := op.state.Budget
	var err error
	switch a.Stage {
	case AssemblePoints:
		_, err = a.AddIntersectedPoints(budget)
	case AssembleResult:
		_, err = a.BuildResultPolygon(budget)
	case AssembleSubject:
		_, err = a.BuildSubjectPolygonOutput(budget)
	}
	if err != nil {
		return false, op.fail(err)
	} else if a.Stage != AssembleDone {
		return false, nil
	}
	op.buildResult()
	return true, nil
}

// FinishAllPolygons completes the operation, after which the outputs can be read.
func (op *SplitOperation) FinishAllPolygons() error {
	if err := op.enter(ResultBuilt); err != nil {
		return err
	}
	s := &op.state
	s.Validation, s.Sweep, s.Clipper, s.Assembler = nil, nil, nil, nil
	op.advance(Finished)
	return nil
}

// Step does the next unit of work of whichever stage is current. It returns true once the operation is finished.
func (op *SplitOperation) Step() (bool, error) {
	if op.state.Failed {
		return false, errors.Wrap(ErrOperationFailed, op.state.Err)
	}
	var err error
	switch op.state.Stage {
	case Created:
		_, err = op.PrepareAndInitAllPolygons()
	case PolygonsInitialized:
		_, err = op.AddAllPolygonsSegments()
	case SegmentsAdded:
		_, err = op.ProcessBentleyOttmann()
	case IntersectionsComputed:
		_, err = op.ProcessMartinezRueda()
	case ClippingComputed:
		_, err = op.ProcessWeilerAtherton()
	case ResultBuilt:
		err = op.FinishAllPolygons()
	}
	return op.state.Stage == Finished, err
}

func (op *SplitOperation) finished() error {
	if op.state.Stage != Finished {
		return errors.Wrapf(ErrNotFinished, "at stage %v", op.state.Stage)
	}
	return nil
}

// Intersections returns the intersections between the segments of both polygons. They are available from IntersectionsComputed until the operation finishes.
func (op *SplitOperation) Intersections() []Intersection {
	if op.state.Sweep == nil || !op.state.Sweep.Finished {
		return nil
	}
	return op.state.Sweep.Intersections
}

// SubjectOutput returns the remaining subject polygon.
func (op *SplitOperation) SubjectOutput() (Contour, error) {
	if err := op.finished(); err != nil {
		return nil, err
	}
	return op.state.SubjectOutput, nil
}

// SubjectOutputLength returns the number of vertices of the remaining subject polygon, or zero if the operation is not finished.
func (op *SplitOperation) SubjectOutputLength() int {
	if op.finished() != nil {
		return 0
	}
	return len(op.state.SubjectOutput)
}

// SubjectOutputPoint returns vertex i of the remaining subject polygon.
func (op *SplitOperation) SubjectOutputPoint(i int) (Point, error) {
	if err := op.finished(); err != nil {
		return Point{}, err
	}
	return pointAt(op.state.SubjectOutput, i)
}

// ResultPolygons returns the clipped-off polygons.
func (op *SplitOperation) ResultPolygons() ([]Contour, error) {
	if err := op.finished(); err != nil {
		return nil, err
	}
	return op.state.Results, nil
}

// ResultPolygonsCount returns the number of clipped-off polygons, or zero if the operation is not finished.
func (op *SplitOperation) ResultPolygonsCount() int {
	if op.finished() != nil {
		return 0
	}
	return len(op.state.Results)
}

// ResultPolygonLength returns the number of vertices of clipped-off polygon i.
func (op *SplitOperation) ResultPolygonLength(i int) (int, error) {
	if err := op.finished(); err != nil {
		return 0, err
	} else if i < 0 || len(op.state.Results) <= i {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "polygon %d of %d", i, len(op.state.Results))
	}
	return len(op.state.Results[i]), nil
}

// ResultPolygonPoint returns vertex j of clipped-off polygon i.
func (op *SplitOperation) ResultPolygonPoint(i, j int) (Point, error) {
	if err := op.finished(); err != nil {
		return Point{}, err
	} else if i < 0 || len(op.state.Results) <= i {
		return Point{}, errors.Wrapf(ErrIndexOutOfRange, "polygon %d of %d", i, len(op.state.Results))
	}
	return pointAt(op.state.Results[i], j)
}

// OutputLength returns the number of vertices of all clipped-off polygons together.
func (op *SplitOperation) OutputLength() int {
	if op.finished() != nil {
		return 0
	}
	n := 0
	for _, c := range op.state.Results {
		n += len(c)
	}
	return n
}

// OutputPoint returns vertex i of the clipped-off polygons concatenated.
func (op *SplitOperation) OutputPoint(i int) (Point, error) {
	if err := op.finished(); err != nil {
		return Point{}, err
	}
	k := i
	for _, c := range op.state.Results {
		if 0 <= k && k < len(c) {
			return c[k], nil
		}
		k -= len(c)
	}
	return Point{}, errors.Wrapf(ErrIndexOutOfRange, "point %d of %d", i, op.OutputLength())
}

func pointAt(c Contour, i int) (Point, error) {
	if i < 0 || len(c) <= i {
		return Point{}, errors.Wrapf(ErrIndexOutOfRange, "point %d of %d", i, len(c))
	}
	return c[i], nil
}

func (op *SplitOperation) bigEps() *big.Int {
	return big.NewInt(op.state.Eps)
}

// MarshalBinary serializes the operation state so that it can be resumed later. The geohash decoder is not included.
func (op *SplitOperation) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&op.state); err != nil {
		return nil, errors.Wrap(err, "encode split operation")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores an operation serialized with MarshalBinary.
func (op *SplitOperation) UnmarshalBinary(b []byte) error {
	var state operationState
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&state); err != nil {
		return errors.Wrap(err, "decode split operation")
	}
	op.state = state
	return nil
}
