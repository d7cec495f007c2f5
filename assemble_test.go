package parcel

import (
	"fmt"
	"testing"

	"github.com/tdewolff/test"
)

func TestAssemblerTurns(t *testing.T) {
	// arriving at (0,0) from (-1,-1), leaving to (-1,1), (1,-1), or back
	nodes := []Point{fpt(-1, -1), fpt(0, 0), fpt(-1, 1), fpt(1, -1)}
	in, left, right, back := Edge{From: 0, To: 1}, Edge{From: 1, To: 2}, Edge{From: 1, To: 3}, Edge{From: 1, To: 0}

	var tts = []struct {
		orientation int
		cmp         int // of left and right
	}{
		{1, -1},
		{-1, 1},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			a := &Assembler{Orientation: tt.orientation, Nodes: nodes}
			test.T(t, a.compareTurns(in, left, right), tt.cmp)
			test.T(t, a.compareTurns(in, right, left), -tt.cmp)
			test.T(t, a.compareTurns(in, back, left), 1)
			test.T(t, a.compareTurns(in, right, back), -1)
			test.T(t, a.compareTurns(in, left, left), 0)
		})
	}
}

func TestAssemblerResume(t *testing.T) {
	// the pinched remainders come out the same when walked one edge per call
	subject, clip := square(0, 0, 10, 10), Contour{fpt(-5, 5), fpt(10, 0), fpt(5, 15)}
	want := runSplit(t, subject, clip, WithBudget(0))
	op := runSplit(t, subject, clip, WithBudget(1))

	remaining, _ := op.SubjectOutput()
	wantRemaining, _ := want.SubjectOutput()
	test.String(t, remaining.String(), wantRemaining.String())
	test.T(t, op.ResultPolygonsCount(), 2)
	test.T(t, want.ResultPolygonsCount(), 2)
}
