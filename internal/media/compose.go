package media

import (
	"fmt"
	"time"
)

// Interleave merges videos and images as V0,I0,V1,I1,... and drains whichever
// list is longer once the other is exhausted.
func Interleave(videos, images []NormalizedClip) []NormalizedClip {
	out := make([]NormalizedClip, 0, len(videos)+len(images))
	vi, ii := 0, 0
	for vi < len(videos) || ii < len(images) {
		if vi < len(videos) {
			out = append(out, videos[vi])
			vi++
		}
		if ii < len(images) {
			out = append(out, images[ii])
			ii++
		}
	}
	return out
}

// TotalDuration sums clip durations. Fade-ins play inside their own clip, so
// concatenation adds no overlap and the sum is the rendered length.
func TotalDuration(clips []NormalizedClip) time.Duration {
	var d time.Duration
	for _, c := range clips {
		d += c.Duration
	}
	return d
}

// LoopCount is the number of repetitions of a cycle needed to cover target:
// 1 when the cycle is already long enough, ceil(target/cycle) otherwise.
func LoopCount(cycle, target time.Duration) int {
	if cycle <= 0 || target <= cycle {
		return 1
	}
	loops := int((target + cycle - 1) / cycle)
	for time.Duration(loops)*cycle < target {
		loops++
	}
	return loops
}

// Compose builds the visual timeline for a narration of length target: the
// interleaved clips, repeated until they cover target, cut to exactly target.
func Compose(videos, images []NormalizedClip, target time.Duration) (*Timeline, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}

	order := Interleave(videos, images)
	if len(order) == 0 {
		return nil, ErrEmptyTimeline
	}

	cycle := TotalDuration(order)
	if cycle <= 0 {
		return nil, fmt.Errorf("%w: %d clip(s) with no playable duration", ErrEmptyTimeline, len(order))
	}

	loops := LoopCount(cycle, target)
	if covered := time.Duration(loops) * cycle; covered < target {
		return nil, fmt.Errorf("looped timeline covers %s, short of %s", covered, target)
	}

	tl := &Timeline{
		Order: order,
		Cycle: cycle,
		Loops: loops,
	}

	var pos time.Duration
	for loop := 0; loop < loops && pos < target; loop++ {
		for _, clip := range order {
			if pos >= target {
				break
			}
			if clip.Duration <= 0 {
				continue
			}
			length := clip.Duration
			if pos+length > target {
				length = target - pos
			}
			tl.Segments = append(tl.Segments, Segment{
				Clip:   clip,
				Start:  pos,
				Length: length,
				Loop:   loop,
			})
			pos += length
		}
	}
	tl.Duration = pos

	return tl, nil
}
