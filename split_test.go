package parcel

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/tdewolff/test"
)

// decoded geohashes of the parcel fixture, X is the longitude
var geohashPoints = map[string]string{
	"w24qfpvbmnkt": "104.510070327669382094,1.229172823950648305",
	"w24qf5ju3pkx": "104.509898666292428969,1.203772639855742453",
	"w24qfejgkp2p": "104.531994033604860305,1.203600978478789328",
	"w24qfxqukn80": "104.533367324620485305,1.227113390341401098",
	"w24r42pt2n24": "104.523239303380250930,1.231403918936848638",
	"w24qfmpp2p00": "104.522552657872438430,1.215271437540650366",
	"w24qfuvb7zpg": "104.542980026453733444,1.212697019800543783",
	"w24r50dr2n0n": "104.548988509923219680,1.234493153169751165",

	// intersections, not geohash centres
	"w24qftn244vj": "104.532601700707063688,1.214004978082517353",
	"w24qfrx3sxuc": "104.523095334564549293,1.228021425037866385",
}

type fixtureDecoder struct{}

func (fixtureDecoder) Decode(hash string) (Point, error) {
	s, ok := geohashPoints[hash]
	if !ok {
		return Point{}, errors.Errorf("unknown geohash %q", hash)
	}
	return ParsePoint(s)
}

func geohashContour(hashes ...string) Contour {
	c, err := DecodeContour(fixtureDecoder{}, hashes)
	if err != nil {
		panic(err)
	}
	return c
}

var (
	fixtureSubject   = []string{"w24qfpvbmnkt", "w24qf5ju3pkx", "w24qfejgkp2p", "w24qfxqukn80"}
	fixtureClip      = []string{"w24r42pt2n24", "w24qfmpp2p00", "w24qfuvb7zpg", "w24r50dr2n0n"}
	fixtureResult    = []string{"w24qftn244vj", "w24qfxqukn80", "w24qfrx3sxuc", "w24qfmpp2p00"}
	fixtureRemaining = []string{"w24qfpvbmnkt", "w24qf5ju3pkx", "w24qfejgkp2p", "w24qftn244vj", "w24qfmpp2p00", "w24qfrx3sxuc"}
)

func runSplit(t *testing.T, subject, clip Contour, opts ...Option) *SplitOperation {
	t.Helper()
	op, err := Split(subject, clip, opts...)
	test.Error(t, err)
	test.T(t, op.DoneStage(), Finished)
	return op
}

func TestSplitFixture(t *testing.T) {
	op, err := NewGeohashSplitOperation(fixtureSubject, fixtureClip, WithDecoder(fixtureDecoder{}))
	test.Error(t, err)
	for {
		done, err := op.Step()
		test.Error(t, err)
		if done {
			break
		}
	}

	remaining, err := op.SubjectOutput()
	test.Error(t, err)
	test.String(t, remaining.String(), geohashContour(fixtureRemaining...).String())

	results, err := op.ResultPolygons()
	test.Error(t, err)
	test.T(t, len(results), 1)
	test.String(t, results[0].String(), geohashContour(fixtureResult...).String())

	test.T(t, op.SubjectOutputLength(), 6)
	test.T(t, op.ResultPolygonsCount(), 1)
	test.T(t, op.OutputLength(), 4)
	n, err := op.ResultPolygonLength(0)
	test.Error(t, err)
	test.T(t, n, 4)

	p, err := op.SubjectOutputPoint(3)
	test.Error(t, err)
	test.String(t, p.String(), "(104.532601700707063688,1.214004978082517353)")
	p, err = op.ResultPolygonPoint(0, 2)
	test.Error(t, err)
	test.String(t, p.String(), "(104.523095334564549293,1.228021425037866385)")
	p, err = op.OutputPoint(1)
	test.Error(t, err)
	test.That(t, p.Equals(results[0][1]))

	_, err = op.SubjectOutputPoint(6)
	test.That(t, errors.Is(err, ErrIndexOutOfRange))
	_, err = op.ResultPolygonPoint(1, 0)
	test.That(t, errors.Is(err, ErrIndexOutOfRange))
	_, err = op.OutputPoint(-1)
	test.That(t, errors.Is(err, ErrIndexOutOfRange))

	// the parts add up to the subject
	subject := geohashContour(fixtureSubject...)
	sum := new(big.Int).Add(remaining.Area2(), results[0].Area2())
	diff := new(big.Float).SetInt(new(big.Int).Sub(subject.Area2(), sum))
	rel, _ := new(big.Float).Quo(diff, new(big.Float).SetInt(subject.Area2())).Float64()
	test.That(t, -1e-15 < rel && rel < 1e-15, rel)
}

func TestSplitSquares(t *testing.T) {
	subject := square(0, 0, 10, 10)
	var tts = []struct {
		clip      Contour
		remaining Contour
		results   []Contour
	}{
		{
			square(5, 5, 15, 15),
			Contour{fpt(0, 0), fpt(10, 0), fpt(10, 5), fpt(5, 5), fpt(5, 10), fpt(0, 10)},
			[]Contour{{fpt(10, 5), fpt(10, 10), fpt(5, 10), fpt(5, 5)}},
		},
		{
			square(5, -5, 15, 15),
			Contour{fpt(0, 0), fpt(5, 0), fpt(5, 10), fpt(0, 10)},
			[]Contour{{fpt(5, 0), fpt(10, 0), fpt(10, 10), fpt(5, 10)}},
		},
		{
			// strip through the subject leaves two remainders
			square(4, -5, 6, 15),
			Contour{fpt(0, 0), fpt(4, 0), fpt(4, 10), fpt(0, 10)},
			[]Contour{
				{fpt(4, 0), fpt(6, 0), fpt(6, 10), fpt(4, 10)},
				{fpt(6, 0), fpt(10, 0), fpt(10, 10), fpt(6, 10)},
			},
		},
		{
			// crossing at a shared corner leaves two remainders touching at that corner
			Contour{fpt(-5, 5), fpt(10, 0), fpt(5, 15)},
			Contour{fpt(0, 0), fpt(10, 0), MustParsePoint("0,3.333333333333333333")},
			[]Contour{
				{MustParsePoint("6.666666666666666666,10"), fpt(0, 10), MustParsePoint("0,3.333333333333333333"), fpt(10, 0)},
				{fpt(10, 0), fpt(10, 10), MustParsePoint("6.666666666666666666,10")},
			},
		},
		{
			// wedge from a clipping vertex on a subject edge
			Contour{fpt(5, 0), fpt(12, 12), fpt(-2, 12)},
			Contour{fpt(0, 0), fpt(5, 0), MustParsePoint("0,8.571428571428571428")},
			[]Contour{
				{MustParsePoint("10,8.571428571428571428"), fpt(10, 10), fpt(0, 10), MustParsePoint("0,8.571428571428571428"), fpt(5, 0)},
				{fpt(5, 0), fpt(10, 0), MustParsePoint("10,8.571428571428571428")},
			},
		},
		{
			// inside, touching the subject at a corner and two edges
			Contour{fpt(0, 0), fpt(10, 5), fpt(5, 10)},
			Contour{fpt(0, 0), fpt(10, 0), fpt(10, 5)},
			[]Contour{
				{fpt(0, 0), fpt(10, 5), fpt(5, 10)},
				{fpt(10, 5), fpt(10, 10), fpt(5, 10)},
				{fpt(5, 10), fpt(0, 10), fpt(0, 0)},
			},
		},
		{
			// disjoint
			Contour{fpt(20, 20), fpt(30, 20), fpt(30, 30)},
			square(0, 0, 10, 10),
			nil,
		},
		{
			// touching along an edge
			square(10, 0, 20, 10),
			square(0, 0, 10, 10),
			nil,
		},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			op := runSplit(t, subject, tt.clip)
			remaining, _ := op.SubjectOutput()
			test.String(t, remaining.String(), tt.remaining.String())

			results, _ := op.ResultPolygons()
			test.T(t, len(results), len(tt.results))
			for j := range tt.results {
				test.String(t, results[j].String(), tt.results[j].String())
			}

			area := new(big.Int).Set(remaining.Area2())
			for _, c := range results {
				area.Add(area, c.Area2())
			}
			test.String(t, area.String(), subject.Area2().String())
		})
	}
}

func TestSplitSharedVertex(t *testing.T) {
	// both contours start at (14,10), where the subject continues outside the clipping polygon
	subject := Contour{fpt(14, 10), fpt(30, 14), fpt(27, 30), fpt(10, 27)}
	clip := Contour{fpt(14, 10), fpt(32, 16), fpt(25, 28), fpt(14, 24)}
	z := MustParsePoint("29.764705882352941176,15.254901960784313726")

	var tts = []struct {
		subject, clip Contour
		remaining     Contour
		results       []Contour
	}{
		{
			subject, clip,
			Contour{fpt(14, 10), fpt(30, 14), z},
			[]Contour{
				{z, MustParsePoint("28.5,22"), fpt(25, 28), fpt(14, 24), fpt(14, 10)},
				{MustParsePoint("28.5,22"), fpt(27, 30), fpt(10, 27), fpt(14, 10), fpt(14, 24), fpt(25, 28)},
			},
		},
		{
			// clockwise clipping polygon
			subject, clip.Reverse(),
			Contour{fpt(14, 10), fpt(30, 14), z},
			[]Contour{
				{z, MustParsePoint("28.5,22"), fpt(25, 28), fpt(14, 24), fpt(14, 10)},
				{MustParsePoint("28.5,22"), fpt(27, 30), fpt(10, 27), fpt(14, 10), fpt(14, 24), fpt(25, 28)},
			},
		},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			op := runSplit(t, tt.subject, tt.clip)
			remaining, _ := op.SubjectOutput()
			test.String(t, remaining.String(), tt.remaining.String())
			test.Error(t, remaining.Validate(Epsilon))

			results, _ := op.ResultPolygons()
			test.T(t, len(results), len(tt.results))
			area := new(big.Int).Set(remaining.Area2())
			for j := range results {
				test.String(t, results[j].String(), tt.results[j].String())
				test.Error(t, results[j].Validate(Epsilon))
				test.That(t, 0 < results[j].Orientation())
				area.Add(area, results[j].Area2())
			}

			// the crossing point is truncated, so the parts differ from the subject by rounding only
			diff := new(big.Int).Sub(area, tt.subject.Area2())
			test.That(t, diff.CmpAbs(new(big.Int).Mul(bigScale, big.NewInt(100))) < 0, diff)
		})
	}
}

func TestSplitClipped(t *testing.T) {
	// the boolean outputs of the clipping stage agree with the assembled polygons
	var tts = []struct {
		subject, clip Contour
	}{
		{square(0, 0, 10, 10), square(5, 5, 15, 15)},
		{square(0, 0, 10, 10), square(5, -5, 15, 15)},
		{geohashContour(fixtureSubject...), geohashContour(fixtureClip...)},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			op := NewSplitOperation(tt.subject, tt.clip)
			for op.DoneStage() < ClippingComputed {
				_, err := op.Step()
				test.Error(t, err)
			}
			test.T(t, op.ClipStage(), ClipDone)
			clipper := op.state.Clipper

			op = runSplit(t, tt.subject, tt.clip)
			remaining, _ := op.SubjectOutput()
			results, _ := op.ResultPolygons()

			eps := big.NewInt(Epsilon)
			for _, c := range []struct {
				op   Operation
				want Contour
			}{{OpIntersection, results[0]}, {OpDifference, remaining}} {
				contours := clipper.OutputContours(c.op)
				test.T(t, len(contours), 1, c.op)
				test.T(t, len(contours[0]), len(c.want), c.op)
				test.T(t, clipper.OutputLength(c.op), len(c.want))
				for _, p := range contours[0] {
					test.That(t, c.want.Index(p, eps) != -1, c.op, p)
				}
				p, ok := clipper.OutputPoint(c.op, 0)
				test.That(t, ok)
				test.That(t, p.Equals(contours[0][0]))
				_, ok = clipper.OutputPoint(c.op, len(c.want))
				test.That(t, !ok)
			}
			test.That(t, 0 < len(clipper.Output(OpIntersection)))
		})
	}
}

func TestSplitContainment(t *testing.T) {
	_, err := Split(square(0, 0, 10, 10), square(2, 2, 4, 4))
	test.That(t, errors.Is(err, ErrClipInsideSubject), err)

	// touching the subject in a single point would leave a hole
	_, err = Split(square(0, 0, 10, 10), Contour{fpt(0, 0), fpt(5, 2), fpt(2, 5)})
	test.That(t, errors.Is(err, ErrClipInsideSubject), err)
	_, err = Split(square(0, 0, 10, 10), Contour{fpt(5, 0), fpt(7, 3), fpt(3, 3)})
	test.That(t, errors.Is(err, ErrClipInsideSubject), err)

	op, err := Split(square(2, 2, 4, 4), square(0, 0, 10, 10))
	test.That(t, errors.Is(err, ErrSubjectInsideClip), err)
	test.That(t, op.Failed())
	test.That(t, op.Err() != "")
	_, err = op.SubjectOutput()
	test.That(t, errors.Is(err, ErrNotFinished))
}

func TestSplitInvalid(t *testing.T) {
	bowtie := Contour{fpt(0, 0), fpt(10, 10), fpt(10, 0), fpt(0, 10)}
	var tts = []struct {
		subject, clip Contour
		err           error
	}{
		{square(0, 0, 10, 10), bowtie, ErrSelfIntersecting},
		{bowtie, square(0, 0, 10, 10), ErrSelfIntersecting},
		{square(0, 0, 10, 10), Contour{fpt(0, 0), fpt(1, 1)}, ErrDegenerateContour},
		{Contour{fpt(0, 0), fpt(0, 0), fpt(1, 1)}, square(0, 0, 10, 10), ErrDegenerateContour},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			op := NewSplitOperation(tt.subject, tt.clip, WithBudget(1))
			var err error
			for k := 0; k < 100 && err == nil; k++ {
				_, err = op.PrepareAndInitAllPolygons()
			}
			test.That(t, errors.Is(err, tt.err), err)
			test.That(t, op.Failed())
			test.T(t, op.DoneStage(), Created)
			test.T(t, op.SubjectOutputLength(), 0)
			test.T(t, op.ResultPolygonsCount(), 0)

			_, err = op.PrepareAndInitAllPolygons()
			test.That(t, errors.Is(err, ErrOperationFailed), err)
			_, err = op.Step()
			test.That(t, errors.Is(err, ErrOperationFailed), err)
		})
	}
}

func TestSplitOrder(t *testing.T) {
	op := NewSplitOperation(square(0, 0, 10, 10), square(5, 5, 15, 15), WithBudget(0))

	_, err := op.ProcessBentleyOttmann()
	test.That(t, errors.Is(err, ErrOutOfOrder), err)
	_, err = op.AddSubjectPolygonSegments()
	test.That(t, errors.Is(err, ErrOutOfOrder), err)
	test.That(t, errors.Is(op.FinishAllPolygons(), ErrOutOfOrder))
	test.T(t, op.DoneStage(), Created)
	test.That(t, !op.Failed())

	done, err := op.PrepareAndInitAllPolygons()
	test.Error(t, err)
	for !done {
		done, err = op.PrepareAndInitAllPolygons()
		test.Error(t, err)
	}
	test.T(t, op.DoneStage(), PolygonsInitialized)
	_, err = op.PrepareAndInitAllPolygons()
	test.That(t, errors.Is(err, ErrStageCompleted), err)

	done, err = op.AddClippingPolygonSegments()
	test.Error(t, err)
	test.That(t, done)
	test.T(t, op.DoneStage(), PolygonsInitialized)
	_, err = op.AddClippingPolygonSegments()
	test.That(t, errors.Is(err, ErrStageCompleted), err)
	done, err = op.AddSubjectPolygonSegments()
	test.Error(t, err)
	test.That(t, done)
	test.T(t, op.DoneStage(), SegmentsAdded)

	_, err = op.ProcessMartinezRueda()
	test.That(t, errors.Is(err, ErrOutOfOrder), err)
	done, err = op.ProcessBentleyOttmann()
	test.Error(t, err)
	test.That(t, done)
	test.T(t, len(op.Intersections()), 2)
	done, err = op.ProcessMartinezRueda()
	test.Error(t, err)
	test.That(t, done)

	_, err = op.BuildResultPolygon()
	test.That(t, errors.Is(err, ErrOutOfOrder), err)
	_, err = op.BuildSubjectPolygonOutput()
	test.That(t, errors.Is(err, ErrOutOfOrder), err)
	done, err = op.AddIntersectedPoints()
	test.Error(t, err)
	test.That(t, done)
	_, err = op.AddIntersectedPoints()
	test.That(t, errors.Is(err, ErrStageCompleted), err)
	done, err = op.BuildResultPolygon()
	test.Error(t, err)
	test.That(t, done)
	done, err = op.BuildSubjectPolygonOutput()
	test.Error(t, err)
	test.That(t, done)
	test.T(t, op.DoneStage(), ResultBuilt)

	_, err = op.ResultPolygons()
	test.That(t, errors.Is(err, ErrNotFinished), err)
	test.Error(t, op.FinishAllPolygons())
	test.That(t, errors.Is(op.FinishAllPolygons(), ErrStageCompleted))
	test.That(t, !op.Failed())
	test.T(t, op.ResultPolygonsCount(), 1)
	test.T(t, op.SubjectOutputLength(), 6)
}

func TestSplitResume(t *testing.T) {
	var tts = []struct {
		subject, clip Contour
	}{
		{geohashContour(fixtureSubject...), geohashContour(fixtureClip...)},
		{square(0, 0, 10, 10), square(4, -5, 6, 15)},
		{square(0, 0, 10, 10), Contour{fpt(20, 20), fpt(30, 20), fpt(30, 30)}},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			want := runSplit(t, tt.subject, tt.clip, WithBudget(0))

			op := NewSplitOperation(tt.subject, tt.clip, WithBudget(1))
			calls := 0
			for {
				done, err := op.Step()
				test.Error(t, err)
				if done {
					break
				}
				calls++
				test.That(t, calls < 10000, "split does not finish")

				b, err := op.MarshalBinary()
				test.Error(t, err)
				op = &SplitOperation{}
				test.Error(t, op.UnmarshalBinary(b))
			}
			test.That(t, 10 < calls, "budget not applied")

			remaining, err := op.SubjectOutput()
			test.Error(t, err)
			wantRemaining, _ := want.SubjectOutput()
			test.String(t, remaining.String(), wantRemaining.String())

			results, err := op.ResultPolygons()
			test.Error(t, err)
			wantResults, _ := want.ResultPolygons()
			test.T(t, len(results), len(wantResults))
			for j := range results {
				test.String(t, results[j].String(), wantResults[j].String())
			}
		})
	}
}

func TestSplitOptions(t *testing.T) {
	op := NewSplitOperation(nil, nil, WithBudget(-5), WithEpsilon(10))
	test.T(t, op.Budget(), 0)
	test.T(t, op.state.Eps, int64(10))
	test.T(t, NewSplitOperation(nil, nil).Budget(), DefaultBudget)

	_, err := NewGeohashSplitOperation(fixtureSubject, fixtureClip)
	test.That(t, err != nil, "no decoder")
	_, err = NewGeohashSplitOperation([]string{"zzzz"}, fixtureClip, WithDecoder(fixtureDecoder{}))
	test.That(t, err != nil, "unknown geohash")
}
