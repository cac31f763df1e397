package media

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTimeline means there were no videos and no images to compose.
	ErrEmptyTimeline = errors.New("empty timeline: no video clips or images found")

	// ErrInvalidTarget means the narration has no usable duration.
	ErrInvalidTarget = errors.New("narration duration must be positive")

	// ErrDurationMismatch means a timeline and narration disagree by more than a frame.
	ErrDurationMismatch = errors.New("timeline duration does not match narration")
)

// AssetReadError reports a visual or audio asset that could not be opened or decoded.
type AssetReadError struct {
	Path string
	Err  error
}

func (e *AssetReadError) Error() string {
	return fmt.Sprintf("failed to read asset %s: %v", e.Path, e.Err)
}

func (e *AssetReadError) Unwrap() error { return e.Err }

// EncodeError wraps a failed encoder run together with its diagnostic output.
type EncodeError struct {
	Output string
	Err    error
	Detail string
}

func (e *EncodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("encode %s failed: %v", e.Output, e.Err)
	}
	return fmt.Sprintf("encode %s failed: %v: %s", e.Output, e.Err, e.Detail)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// RelocationError reports that a rendered artifact could not be moved to its
// final location. The artifact is still in working storage.
type RelocationError struct {
	From string
	To   string
	Err  error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("failed to move %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RelocationError) Unwrap() error { return e.Err }

// ErrorCode maps an assembly failure onto the short code stored with a run.
func ErrorCode(err error) string {
	var (
		readErr   *AssetReadError
		encodeErr *EncodeError
		moveErr   *RelocationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyTimeline):
		return "empty_timeline"
	case errors.As(err, &readErr):
		return "asset_read_failed"
	case errors.As(err, &encodeErr):
		return "encode_failed"
	case errors.As(err, &moveErr):
		return "relocation_failed"
	default:
		return "stage_failed"
	}
}
