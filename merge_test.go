package parcel

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/tdewolff/test"
)

func TestMerge(t *testing.T) {
	var tts = []struct {
		source, dest Contour
		merged       Contour
	}{
		{
			Contour{fpt(0, 0), fpt(10, 0), fpt(10, 5), fpt(5, 5), fpt(5, 10), fpt(0, 10)},
			Contour{fpt(10, 5), fpt(10, 10), fpt(5, 10), fpt(5, 5)},
			square(0, 0, 10, 10),
		},
		{
			Contour{fpt(10, 5), fpt(10, 10), fpt(5, 10), fpt(5, 5)},
			Contour{fpt(0, 0), fpt(10, 0), fpt(10, 5), fpt(5, 5), fpt(5, 10), fpt(0, 10)},
			Contour{fpt(10, 10), fpt(0, 10), fpt(0, 0), fpt(10, 0)},
		},
		{
			square(0, 0, 4, 10),
			square(4, 0, 6, 10),
			square(0, 0, 6, 10),
		},
		{
			geohashContour(fixtureRemaining...),
			geohashContour(fixtureResult...),
			geohashContour(fixtureSubject...),
		},
	}
	for i, tt := range tts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			merged, err := Merge(tt.source, tt.dest, Epsilon)
			test.Error(t, err)
			test.String(t, merged.String(), tt.merged.String())
			test.Error(t, CheckMerge(tt.source, tt.dest, merged, Epsilon))
		})
	}
}

func TestMergeSplit(t *testing.T) {
	// merging the outputs of a split restores the subject
	subject := geohashContour(fixtureSubject...)
	op := runSplit(t, subject, geohashContour(fixtureClip...))
	remaining, _ := op.SubjectOutput()
	results, _ := op.ResultPolygons()

	merged, err := Merge(remaining, results[0], Epsilon)
	test.Error(t, err)
	test.That(t, merged.Equals(subject), merged, "!=", subject)
}

func TestCheckMerge(t *testing.T) {
	source := square(0, 0, 4, 10)
	dest := square(4, 0, 6, 10)

	err := CheckMerge(source, dest, square(0, 0, 5, 10), Epsilon)
	test.That(t, errors.Is(err, ErrMergeMismatch), err)

	err = CheckMerge(source, dest, Contour{fpt(0, 0), fpt(6, 0), fpt(6, 10), fpt(0, 10), fpt(3, 5)}, Epsilon)
	test.That(t, err != nil)

	err = CheckMerge(source, dest, Contour{fpt(0, 0), fpt(6, 0), fpt(6, 10), fpt(0, 11)}, Epsilon)
	test.That(t, errors.Is(err, ErrMergeMismatch), err)

	_, err = Merge(source, source, Epsilon)
	test.That(t, errors.Is(err, ErrDegenerateContour), err)
}
