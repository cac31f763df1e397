package media

import (
	"fmt"
	"time"
)

// Kind distinguishes moving footage from still images in the visual pool.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Settings is the fixed render configuration consumed by the assembly core.
// Values are constants in practice but exposed so callers (and tests) can
// override them in one place.
type Settings struct {
	Width              int
	Height             int
	ImageDuration      time.Duration // how long each still is shown
	TransitionDuration time.Duration // fade-in applied to stills
	FPS                int
	VideoCodec         string
	AudioCodec         string
	Preset             string
	Threads            int
}

// DefaultSettings returns the 1280x720 @ 24fps landscape configuration.
func DefaultSettings() Settings {
	return Settings{
		Width:              1280,
		Height:             720,
		ImageDuration:      4 * time.Second,
		TransitionDuration: 500 * time.Millisecond,
		FPS:                24,
		VideoCodec:         "libx264",
		AudioCodec:         "aac",
		Preset:             "ultrafast",
		Threads:            4,
	}
}

// FrameInterval is the duration of a single output frame.
func (s Settings) FrameInterval() time.Duration {
	if s.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.FPS)
}

// Validate rejects settings the encoder cannot honour.
func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}
	if s.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", s.FPS)
	}
	if s.ImageDuration <= 0 {
		return fmt.Errorf("image duration must be positive, got %s", s.ImageDuration)
	}
	if s.TransitionDuration < 0 || s.TransitionDuration > s.ImageDuration {
		return fmt.Errorf("transition duration %s out of range for image duration %s", s.TransitionDuration, s.ImageDuration)
	}
	if s.VideoCodec == "" || s.AudioCodec == "" {
		return fmt.Errorf("video and audio codecs are required")
	}
	return nil
}

// VisualAsset is a raw clip or still sitting in working storage.
type VisualAsset struct {
	Kind  Kind
	Path  string
	Order int // numeric suffix from the filename, ascending
}

// Transition is the entry effect of a normalized clip.
type Transition struct {
	FadeIn time.Duration // zero means no transition
}

// None reports whether the clip starts without an effect.
func (t Transition) None() bool { return t.FadeIn <= 0 }

// NormalizedClip is a visual rescaled to the canonical frame with a known duration.
type NormalizedClip struct {
	Kind       Kind
	Source     string
	Order      int
	Width      int
	Height     int
	Duration   time.Duration
	Transition Transition
}

func (c NormalizedClip) String() string {
	prefix := "V"
	if c.Kind == KindImage {
		prefix = "I"
	}
	return fmt.Sprintf("%s%d", prefix, c.Order)
}

// Segment is one occurrence of a clip on the timeline. A clip appears once per
// loop repetition; the final segment may be shortened by the trim.
type Segment struct {
	Clip   NormalizedClip
	Start  time.Duration // position on the timeline
	Length time.Duration // portion of the clip played, from its beginning
	Loop   int           // repetition index, zero-based
}

// End is the timeline position where this segment stops.
func (s Segment) End() time.Duration { return s.Start + s.Length }

// Timeline is the ordered, trimmed visual track.
type Timeline struct {
	Segments []Segment
	// Order is the interleaved clip order of a single repetition, before looping/trimming.
	Order []NormalizedClip
	// Cycle is the duration of one repetition of Order.
	Cycle time.Duration
	// Loops is how many times Order was repeated to cover the target.
	Loops    int
	Duration time.Duration
}

// NarrationTrack is the voice-over that drives the final length.
type NarrationTrack struct {
	Path     string
	Duration time.Duration
}

// FinalSequence is a timeline bound to its narration, ready for encoding.
type FinalSequence struct {
	Timeline  *Timeline
	Narration NarrationTrack
	Settings  Settings
}
