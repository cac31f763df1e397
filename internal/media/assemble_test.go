package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeHandle records whether it was released.
type fakeHandle struct {
	path    string
	mu      *sync.Mutex
	open    map[string]int
	closeFn func() error
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.open[h.path]--
	h.mu.Unlock()
	if h.closeFn != nil {
		return h.closeFn()
	}
	return nil
}

// fakeOpener hands out tracked handles and fails for configured paths.
type fakeOpener struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	broken    map[string]bool
	open      map[string]int
	opened    int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		durations: make(map[string]time.Duration),
		broken:    make(map[string]bool),
		open:      make(map[string]int),
	}
}

func (o *fakeOpener) Open(ctx context.Context, kind Kind, path string) (io.Closer, time.Duration, error) {
	if o.broken[path] {
		return nil, 0, errors.New("corrupt file")
	}
	o.mu.Lock()
	o.open[path]++
	o.opened++
	o.mu.Unlock()
	return &fakeHandle{path: path, mu: &o.mu, open: o.open}, o.durations[path], nil
}

func (o *fakeOpener) stillOpen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.open {
		n += c
	}
	return n
}

type fakeEncoder struct {
	calls int
	seq   *FinalSequence
	err   error
}

func (e *fakeEncoder) Encode(ctx context.Context, seq *FinalSequence, outputPath string) error {
	e.calls++
	e.seq = seq
	return e.err
}

func scenarioAssets(o *fakeOpener) []VisualAsset {
	o.durations["voice.mp3"] = 20 * time.Second
	o.durations["visual_v0.mp4"] = 5 * time.Second
	o.durations["visual_v1.mp4"] = 6 * time.Second
	o.durations["visual_v2.mp4"] = 4 * time.Second

	// Deliberately out of order: the normalizer sorts by numeric suffix.
	return []VisualAsset{
		{Kind: KindImage, Path: "visual_i1.jpg", Order: 1},
		{Kind: KindVideo, Path: "visual_v2.mp4", Order: 2},
		{Kind: KindVideo, Path: "visual_v0.mp4", Order: 0},
		{Kind: KindImage, Path: "visual_i0.jpg", Order: 0},
		{Kind: KindVideo, Path: "visual_v1.mp4", Order: 1},
	}
}

func TestAssembleEndToEnd(t *testing.T) {
	opener := newFakeOpener()
	assets := scenarioAssets(opener)
	encoder := &fakeEncoder{}

	seq, err := NewAssembler(opener, encoder, DefaultSettings()).Assemble(context.Background(), "voice.mp3", assets, "final_video.mp4")
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	if encoder.calls != 1 {
		t.Errorf("expected 1 encoder call, got %d", encoder.calls)
	}
	if seq.Timeline.Loops != 1 {
		t.Errorf("expected no looping, got %d loops", seq.Timeline.Loops)
	}
	if seq.Timeline.Duration != 20*time.Second {
		t.Errorf("expected 20s timeline, got %s", seq.Timeline.Duration)
	}
	if seq.Narration.Duration != 20*time.Second {
		t.Errorf("expected 20s narration, got %s", seq.Narration.Duration)
	}

	want := []string{"V0", "I0", "V1", "I1", "V2"}
	if got := labels(seq.Timeline.Order); !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}

	for _, clip := range seq.Timeline.Order {
		if clip.Width != 1280 || clip.Height != 720 {
			t.Errorf("clip %s has frame %dx%d", clip, clip.Width, clip.Height)
		}
		switch clip.Kind {
		case KindImage:
			if clip.Duration != 4*time.Second || clip.Transition.FadeIn != 500*time.Millisecond {
				t.Errorf("image %s: expected 4s with 0.5s fade-in, got %s / %s", clip, clip.Duration, clip.Transition.FadeIn)
			}
		case KindVideo:
			if !clip.Transition.None() {
				t.Errorf("video %s should have no transition", clip)
			}
		}
	}

	if opener.opened != 6 {
		t.Errorf("expected 6 opened handles, got %d", opener.opened)
	}
	if n := opener.stillOpen(); n != 0 {
		t.Errorf("expected all handles released, %d still open", n)
	}
}

func TestAssembleEmptyPoolSkipsEncoder(t *testing.T) {
	opener := newFakeOpener()
	opener.durations["voice.mp3"] = 10 * time.Second
	encoder := &fakeEncoder{}

	_, err := NewAssembler(opener, encoder, DefaultSettings()).Assemble(context.Background(), "voice.mp3", nil, "out.mp4")
	if !errors.Is(err, ErrEmptyTimeline) {
		t.Fatalf("expected ErrEmptyTimeline, got %v", err)
	}
	if encoder.calls != 0 {
		t.Errorf("encoder should not run, got %d calls", encoder.calls)
	}
	if n := opener.stillOpen(); n != 0 {
		t.Errorf("expected narration handle released, %d still open", n)
	}
}

func TestAssembleCorruptAssetNamesPath(t *testing.T) {
	opener := newFakeOpener()
	assets := scenarioAssets(opener)
	opener.broken["visual_i1.jpg"] = true
	encoder := &fakeEncoder{}

	_, err := NewAssembler(opener, encoder, DefaultSettings()).Assemble(context.Background(), "voice.mp3", assets, "out.mp4")

	var readErr *AssetReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected AssetReadError, got %v", err)
	}
	if readErr.Path != "visual_i1.jpg" {
		t.Errorf("expected offending path visual_i1.jpg, got %s", readErr.Path)
	}
	if encoder.calls != 0 {
		t.Errorf("encoder should not run, got %d calls", encoder.calls)
	}
	if n := opener.stillOpen(); n != 0 {
		t.Errorf("expected all handles released, %d still open", n)
	}
}

func TestAssembleMissingNarration(t *testing.T) {
	opener := newFakeOpener()
	assets := scenarioAssets(opener)
	opener.broken["voice.mp3"] = true

	_, err := NewAssembler(opener, &fakeEncoder{}, DefaultSettings()).Assemble(context.Background(), "voice.mp3", assets, "out.mp4")

	var readErr *AssetReadError
	if !errors.As(err, &readErr) || readErr.Path != "voice.mp3" {
		t.Fatalf("expected AssetReadError for voice.mp3, got %v", err)
	}
	if ErrorCode(err) != "asset_read_failed" {
		t.Errorf("expected asset_read_failed code, got %s", ErrorCode(err))
	}
}

func TestAssembleEncodeFailureReleasesHandles(t *testing.T) {
	opener := newFakeOpener()
	assets := scenarioAssets(opener)
	encoder := &fakeEncoder{err: errors.New("unknown encoder 'libx999'")}

	_, err := NewAssembler(opener, encoder, DefaultSettings()).Assemble(context.Background(), "voice.mp3", assets, "out.mp4")

	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if encodeErr.Output != "out.mp4" {
		t.Errorf("expected output out.mp4, got %s", encodeErr.Output)
	}
	if ErrorCode(err) != "encode_failed" {
		t.Errorf("expected encode_failed code, got %s", ErrorCode(err))
	}
	if n := opener.stillOpen(); n != 0 {
		t.Errorf("expected all handles released, %d still open", n)
	}
}

func TestTrackerClosesEverythingDespiteErrors(t *testing.T) {
	opener := newFakeOpener()
	tracker := NewTracker()

	for _, p := range []string{"a", "b", "c"} {
		h, _, _ := opener.Open(context.Background(), KindVideo, p)
		if p == "b" {
			h.(*fakeHandle).closeFn = func() error { return errors.New("busy") }
		}
		tracker.Track(p, h)
	}

	err := tracker.CloseAll()
	if err == nil {
		t.Fatal("expected close error to be reported")
	}
	if n := opener.stillOpen(); n != 0 {
		t.Errorf("expected all handles released, %d still open", n)
	}
	if tracker.Open() != 0 {
		t.Errorf("tracker should be empty, has %d", tracker.Open())
	}
}

type fixedProber time.Duration

func (p fixedProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	return time.Duration(p), nil
}

func TestFileOpenerValidatesImages(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "visual_i0.png")
	f, err := os.Create(good)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	f.Close()

	bad := filepath.Join(dir, "visual_i1.jpg")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	opener := NewFileOpener(fixedProber(3 * time.Second))

	h, d, err := opener.Open(context.Background(), KindImage, good)
	if err != nil {
		t.Fatalf("expected valid png to open, got %v", err)
	}
	if d != 0 {
		t.Errorf("expected zero duration for image, got %s", d)
	}
	h.Close()

	if _, _, err := opener.Open(context.Background(), KindImage, bad); err == nil {
		t.Error("expected corrupt image to fail")
	}

	h, d, err = opener.Open(context.Background(), KindVideo, good)
	if err != nil {
		t.Fatalf("expected probe-backed open to succeed, got %v", err)
	}
	if d != 3*time.Second {
		t.Errorf("expected probed duration 3s, got %s", d)
	}
	h.Close()

	if _, _, err := opener.Open(context.Background(), KindVideo, filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("expected missing file to fail")
	}
}
