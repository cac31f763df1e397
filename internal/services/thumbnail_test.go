package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return img
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -2 && d <= 2
}

func TestRenderGradientFallback(t *testing.T) {
	out := filepath.Join(t.TempDir(), "thumbnail.png")

	path, err := NewThumbnailRenderer(nil, "").Render("black holes", "", out)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if path != out {
		t.Errorf("expected %s, got %s", out, path)
	}

	img := decodePNG(t, out)
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("expected 1280x720, got %dx%d", b.Dx(), b.Dy())
	}

	r, g, b, _ := img.At(5, 5).RGBA()
	if !near(uint8(r>>8), 15) || !near(uint8(g>>8), 15) || !near(uint8(b>>8), 35) {
		t.Errorf("expected gradient start color near (15,15,35), got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestRenderDarkensBackground(t *testing.T) {
	dir := t.TempDir()
	bgPath := filepath.Join(dir, "thumb_bg.png")

	bg := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			bg.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	f, err := os.Create(bgPath)
	if err != nil {
		t.Fatalf("failed to create background: %v", err)
	}
	if err := png.Encode(f, bg); err != nil {
		t.Fatalf("failed to encode background: %v", err)
	}
	f.Close()

	out := filepath.Join(dir, "thumbnail.png")
	if _, err := NewThumbnailRenderer(nil, "").Render("volcanoes", bgPath, out); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// A uniform image keeps its mean under contrast, so only brightness shows.
	r, _, _, _ := decodePNG(t, out).At(5, 5).RGBA()
	if !near(uint8(r>>8), 140) {
		t.Errorf("expected darkened channel near 140, got %d", r>>8)
	}
}

func TestRenderUnreadableBackgroundFallsBack(t *testing.T) {
	dir := t.TempDir()
	bgPath := filepath.Join(dir, "thumb_bg.jpg")
	if err := os.WriteFile(bgPath, []byte("<html>rate limited</html>"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if _, err := NewThumbnailRenderer(nil, "").Render("deserts", bgPath, filepath.Join(dir, "thumbnail.png")); err != nil {
		t.Fatalf("expected gradient fallback, got %v", err)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"BLACK HOLES", 28, []string{"BLACK HOLES"}},
		{"THE SURPRISING HISTORY OF THE HUMBLE POTATO", 28, []string{"THE SURPRISING HISTORY OF", "THE HUMBLE POTATO"}},
		{"ABCDEFGHIJ", 4, []string{"ABCD", "EFGH", "IJ"}},
		{"   ", 28, nil},
	}
	for _, tt := range tests {
		if got := wrapText(tt.in, tt.width); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

type fakePhotos struct {
	results    map[string]string
	queries    []string
	downloaded string
	failLink   string
}

func (f *fakePhotos) FirstPhotoURL(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

func (f *fakePhotos) Download(ctx context.Context, link, dest string) error {
	if link == f.failLink {
		return errors.New("connection reset")
	}
	f.downloaded = link
	return os.WriteFile(dest, []byte("jpg"), 0644)
}

func TestFetchBackgroundFallsBackThroughQueries(t *testing.T) {
	photos := &fakePhotos{results: map[string]string{
		"octopus wallpaper": "https://img/1",
		"octopus":           "https://img/2",
	}, failLink: "https://img/1"}
	dest := filepath.Join(t.TempDir(), "thumb_bg.jpg")

	got := NewThumbnailRenderer(photos, "").FetchBackground(context.Background(), "octopus", dest)
	if got != dest {
		t.Fatalf("expected background at %s, got %q", dest, got)
	}

	want := []string{"octopus cinematic background", "octopus wallpaper", "octopus"}
	if !reflect.DeepEqual(photos.queries, want) {
		t.Errorf("expected queries %v, got %v", want, photos.queries)
	}
	if photos.downloaded != "https://img/2" {
		t.Errorf("expected broadest query result, got %s", photos.downloaded)
	}
}

func TestFetchBackgroundNothingFound(t *testing.T) {
	photos := &fakePhotos{results: map[string]string{}}
	if got := NewThumbnailRenderer(photos, "").FetchBackground(context.Background(), "x", filepath.Join(t.TempDir(), "bg.jpg")); got != "" {
		t.Errorf("expected no background, got %q", got)
	}
}
