package parcel

import "github.com/pkg/errors"

var (
	// ErrSelfIntersecting is returned when a contour crosses itself.
	ErrSelfIntersecting = errors.New("self-intersecting contour")

	// ErrDegenerateContour is returned for contours with fewer than three distinct vertices, repeated vertices, or zero-length edges.
	ErrDegenerateContour = errors.New("degenerate contour")

	ErrOutOfOrder        = errors.New("stage called out of order")
	ErrStageCompleted    = errors.New("stage already completed")
	ErrNotFinished       = errors.New("operation not finished")
	ErrClipInsideSubject = errors.New("clipping polygon lies inside subject polygon")
	ErrSubjectInsideClip = errors.New("subject polygon lies inside clipping polygon")

	// ErrOperationFailed is returned by every call after an operation has failed.
	ErrOperationFailed = errors.New("operation failed")

	ErrIndexOutOfRange = errors.New("index out of range")
	ErrMergeMismatch   = errors.New("merged contour does not match its parts")
)
