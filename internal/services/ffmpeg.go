package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	probeTimeout = 30 * time.Second

	// How much of ffmpeg's stderr is kept for error reports
	stderrTailBytes = 2048
)

// ---------------------------------------------------------------------------
// FFmpegService
// Probes media durations with ffprobe and renders a media.FinalSequence in two
// passes: every distinct clip is conformed once to the output frame, rate and
// pixel format, then the timeline is cut from those clips through the concat
// demuxer and muxed with the narration.
// ---------------------------------------------------------------------------

type FFmpegService struct {
	binary string
}

var (
	_ media.Encoder = (*FFmpegService)(nil)
	_ media.Prober  = (*FFmpegService)(nil)
)

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{binary: "ffmpeg"}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration reported by ffprobe.
func (s *FFmpegService) Duration(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := ffmpeg.ProbeWithTimeout(path, probeTimeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out)
}

func parseProbeDuration(probeJSON string) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal([]byte(probeJSON), &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}

	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// Encode renders the sequence to outputPath. Intermediate clips live in a
// scratch directory beside the output and are removed before Encode returns.
// On failure the partial output is removed and an *media.EncodeError carries
// the tail of ffmpeg's diagnostics.
func (s *FFmpegService) Encode(ctx context.Context, seq *media.FinalSequence, outputPath string) error {
	if seq == nil || seq.Timeline == nil || len(seq.Timeline.Segments) == 0 {
		return media.ErrEmptyTimeline
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return &media.EncodeError{Output: outputPath, Err: err}
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), ".render-*")
	if err != nil {
		return &media.EncodeError{Output: outputPath, Err: err}
	}
	defer os.RemoveAll(scratch)

	st := seq.Settings
	rendered := make(map[string]string, len(seq.Timeline.Order))

	// Pass 1: conform each distinct clip once.
	for _, clip := range seq.Timeline.Order {
		clipPath := filepath.Join(scratch, clip.String()+".mp4")
		if err := s.run(ctx, ClipArgs(clip, st, clipPath)); err != nil {
			os.Remove(outputPath)
			return &media.EncodeError{Output: outputPath, Err: fmt.Errorf("conform %s: %w", clip.Source, err.err), Detail: err.detail}
		}
		rendered[clip.String()] = filepath.Base(clipPath)
	}
	log.Printf("[FFmpeg] Conformed %d clip(s) to %dx%d @ %dfps", len(rendered), st.Width, st.Height, st.FPS)

	// Pass 2: cut the timeline and bind the narration.
	listPath := filepath.Join(scratch, "timeline.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(seq.Timeline.Segments, rendered)), 0644); err != nil {
		return &media.EncodeError{Output: outputPath, Err: fmt.Errorf("failed to write concat list: %w", err)}
	}

	log.Printf("[FFmpeg] Encoding %d segment(s), %.2fs (%s/%s, preset=%s)",
		len(seq.Timeline.Segments), seq.Narration.Duration.Seconds(), st.VideoCodec, st.AudioCodec, st.Preset)

	if err := s.run(ctx, FinalArgs(listPath, seq.Narration, st, outputPath)); err != nil {
		os.Remove(outputPath)
		return &media.EncodeError{Output: outputPath, Err: err.err, Detail: err.detail}
	}

	return nil
}

type runError struct {
	err    error
	detail string
}

func (s *FFmpegService) run(ctx context.Context, args []string) *runError {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &runError{err: err, detail: tail(stderr.String(), stderrTailBytes)}
	}
	return nil
}

// ClipArgs conforms one clip: scaled to the output frame, square pixels, the
// output frame rate, and a fade-in from black when the clip carries one.
// Stills are looped for their display time.
func ClipArgs(clip media.NormalizedClip, st media.Settings, outputPath string) []string {
	length := seconds(clip.Duration)

	var in *ffmpeg.Stream
	if clip.Kind == media.KindImage {
		in = ffmpeg.Input(clip.Source, ffmpeg.KwArgs{
			"loop":      "1",
			"framerate": strconv.Itoa(st.FPS),
			"t":         length,
		})
	} else {
		in = ffmpeg.Input(clip.Source, ffmpeg.KwArgs{"t": length})
	}

	v := in.Video().
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", clip.Width, clip.Height)}).
		Filter("setsar", ffmpeg.Args{"1"}).
		Filter("fps", ffmpeg.Args{strconv.Itoa(st.FPS)}).
		Filter("format", ffmpeg.Args{"yuv420p"})

	if !clip.Transition.None() {
		v = v.Filter("fade", nil, ffmpeg.KwArgs{
			"t":  "in",
			"st": "0",
			"d":  seconds(clip.Transition.FadeIn),
		})
	}

	return ffmpeg.Output([]*ffmpeg.Stream{v}, outputPath, ffmpeg.KwArgs{
		"c:v":     st.VideoCodec,
		"preset":  st.Preset,
		"threads": strconv.Itoa(st.Threads),
		"r":       strconv.Itoa(st.FPS),
	}).OverWriteOutput().GetArgs()
}

// ConcatList writes the timeline in ffconcat form. Each segment references its
// conformed clip by file name and is cut at its length, so a clip that repeats
// across loops is listed once per repetition.
func ConcatList(segments []media.Segment, rendered map[string]string) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "file '%s'\n", rendered[seg.Clip.String()])
		fmt.Fprintf(&b, "outpoint %s\n", seconds(seg.Length))
	}
	return b.String()
}

// FinalArgs re-encodes the concatenated timeline with the narration as the
// only audio, cut at the narration's length.
func FinalArgs(listPath string, narration media.NarrationTrack, st media.Settings, outputPath string) []string {
	video := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).Video()
	audio := ffmpeg.Input(narration.Path).Audio()

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outputPath, ffmpeg.KwArgs{
		"c:v":      st.VideoCodec,
		"c:a":      st.AudioCodec,
		"preset":   st.Preset,
		"threads":  strconv.Itoa(st.Threads),
		"r":        strconv.Itoa(st.FPS),
		"pix_fmt":  "yuv420p",
		"t":        seconds(narration.Duration),
		"movflags": "+faststart",
	}).OverWriteOutput().GetArgs()
}

// seconds formats a duration the way ffmpeg expects time arguments.
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
