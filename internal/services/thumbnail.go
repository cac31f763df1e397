package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// ---------------------------------------------------------------------------
// Thumbnail Renderer
// Draws a 1280x720 title card: a darkened stock photo (or a gradient when no
// photo is available), a bottom fade for readability, and the topic in large
// yellow capitals with a black outline.
// ---------------------------------------------------------------------------

const (
	thumbWidth      = 1280
	thumbHeight     = 720
	thumbFontSize   = 60
	thumbLineHeight = 72
	thumbBottomPad  = 80
	thumbWrapWidth  = 28
	thumbBrightness = 0.7
	thumbContrast   = 1.2
	thumbOverlayMax = 180
)

var thumbShadowOffsets = [][2]float64{
	{-2, -2}, {2, -2}, {-2, 2}, {2, 2}, {0, -3}, {0, 3}, {-3, 0}, {3, 0},
}

// PhotoSource finds and downloads a single stock photo.
type PhotoSource interface {
	FirstPhotoURL(ctx context.Context, query string) (string, error)
	Download(ctx context.Context, link, dest string) error
}

type ThumbnailRenderer struct {
	photos   PhotoSource
	fontPath string
}

func NewThumbnailRenderer(photos PhotoSource, fontPath string) *ThumbnailRenderer {
	return &ThumbnailRenderer{photos: photos, fontPath: fontPath}
}

// FetchBackground downloads a background photo for topic to dest, trying
// progressively broader queries. It returns "" when nothing was found; a
// missing background is not an error.
func (r *ThumbnailRenderer) FetchBackground(ctx context.Context, topic, dest string) string {
	if r.photos == nil {
		return ""
	}

	queries := []string{
		topic + " cinematic background",
		topic + " wallpaper",
		topic,
	}
	for _, q := range queries {
		link, err := r.photos.FirstPhotoURL(ctx, q)
		if err != nil {
			log.Printf("[Thumbnail] Background search failed for %q: %v", q, err)
			continue
		}
		if link == "" {
			continue
		}
		if err := r.photos.Download(ctx, link, dest); err != nil {
			log.Printf("[Thumbnail] Background download failed for %q: %v", q, err)
			continue
		}
		log.Printf("[Thumbnail] Background fetched for query %q", q)
		return dest
	}

	log.Printf("[Thumbnail] No background found, using gradient fallback")
	return ""
}

// Render draws the thumbnail for topic to outPath as PNG. backgroundPath may
// be empty or unreadable, in which case a gradient is used.
func (r *ThumbnailRenderer) Render(topic, backgroundPath, outPath string) (string, error) {
	dc := gg.NewContext(thumbWidth, thumbHeight)

	if bg := loadBackground(backgroundPath); bg != nil {
		dc.DrawImage(bg, 0, 0)
	} else {
		drawGradient(dc)
	}

	drawBottomFade(dc)

	if r.fontPath != "" {
		if err := dc.LoadFontFace(r.fontPath, thumbFontSize); err != nil {
			log.Printf("[Thumbnail] Warning: font %s unavailable, using default: %v", r.fontPath, err)
		}
	}

	lines := wrapText(strings.ToUpper(topic), thumbWrapWidth)
	y := float64(thumbHeight - len(lines)*thumbLineHeight - thumbBottomPad)
	for _, line := range lines {
		for _, off := range thumbShadowOffsets {
			dc.SetRGB255(0, 0, 0)
			dc.DrawStringAnchored(line, thumbWidth/2+off[0], y+off[1], 0.5, 1)
		}
		dc.SetRGB255(255, 255, 50)
		dc.DrawStringAnchored(line, thumbWidth/2, y, 0.5, 1)
		y += thumbLineHeight
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail dir: %w", err)
	}
	if err := dc.SavePNG(outPath); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	log.Printf("[Thumbnail] Saved to %s", outPath)
	return outPath, nil
}

// loadBackground returns the photo resized to the thumbnail frame with the
// brightness and contrast adjustment applied, or nil if it cannot be read.
func loadBackground(path string) *image.RGBA {
	if path == "" {
		return nil
	}
	src, err := gg.LoadImage(path)
	if err != nil {
		log.Printf("[Thumbnail] Warning: background %s unreadable: %v", path, err)
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	adjustBrightnessContrast(dst, thumbBrightness, thumbContrast)
	return dst
}

// adjustBrightnessContrast scales every channel by brightness, then pushes
// channels away from the mean luminance by contrast.
func adjustBrightnessContrast(img *image.RGBA, brightness, contrast float64) {
	pix := img.Pix
	var lumSum float64
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			pix[i+c] = clamp8(float64(pix[i+c]) * brightness)
		}
		lumSum += 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
	}

	n := len(pix) / 4
	if n == 0 {
		return
	}
	mean := lumSum / float64(n)
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			pix[i+c] = clamp8(mean + (float64(pix[i+c])-mean)*contrast)
		}
	}
}

func drawGradient(dc *gg.Context) {
	for y := 0; y < thumbHeight; y++ {
		t := float64(y) / thumbHeight
		dc.SetColor(color.RGBA{
			R: uint8(15 + t*40),
			G: uint8(15 + t*20),
			B: uint8(35 + t*60),
			A: 255,
		})
		dc.DrawRectangle(0, float64(y), thumbWidth, 1)
		dc.Fill()
	}
}

// drawBottomFade darkens the lower two thirds, strongest at the bottom edge.
func drawBottomFade(dc *gg.Context) {
	start := thumbHeight / 3
	for y := start; y < thumbHeight; y++ {
		alpha := thumbOverlayMax * (y - start) / (thumbHeight - start)
		dc.SetRGBA255(0, 0, 0, alpha)
		dc.DrawRectangle(0, float64(y), thumbWidth, 1)
		dc.Fill()
	}
}

// wrapText breaks s into lines of at most width characters at word
// boundaries. Words longer than width are split.
func wrapText(s string, width int) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(s) {
		for len(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
