package media

import "fmt"

// Bind attaches the narration to a composed timeline. Nothing is resampled;
// the timeline must already match the narration to within one frame.
func Bind(tl *Timeline, narration NarrationTrack, settings Settings) (*FinalSequence, error) {
	if tl == nil || len(tl.Segments) == 0 {
		return nil, ErrEmptyTimeline
	}

	diff := tl.Duration - narration.Duration
	if diff < 0 {
		diff = -diff
	}
	if diff > settings.FrameInterval() {
		return nil, fmt.Errorf("%w: timeline %s, narration %s", ErrDurationMismatch, tl.Duration, narration.Duration)
	}

	return &FinalSequence{
		Timeline:  tl,
		Narration: narration,
		Settings:  settings,
	}, nil
}
