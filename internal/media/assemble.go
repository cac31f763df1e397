package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Encoder renders a bound sequence to a video file.
type Encoder interface {
	Encode(ctx context.Context, seq *FinalSequence, outputPath string) error
}

// Assembler runs normalize → compose → bind → encode over assets already in
// working storage. It performs no network I/O.
type Assembler struct {
	opener   Opener
	encoder  Encoder
	settings Settings
}

func NewAssembler(opener Opener, encoder Encoder, settings Settings) *Assembler {
	return &Assembler{
		opener:   opener,
		encoder:  encoder,
		settings: settings,
	}
}

// Assemble renders narrationPath plus assets into outputPath. Every handle it
// opens is released before it returns, on success and on every error path, so
// callers may delete working storage as soon as Assemble comes back.
func (a *Assembler) Assemble(ctx context.Context, narrationPath string, assets []VisualAsset, outputPath string) (seq *FinalSequence, err error) {
	if err := a.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render settings: %w", err)
	}

	tracker := NewTracker()
	defer func() {
		if cerr := tracker.CloseAll(); cerr != nil {
			log.Printf("[Assembler] Warning: releasing media handles: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	handle, narrationDuration, err := a.opener.Open(ctx, KindAudio, narrationPath)
	if err != nil {
		return nil, &AssetReadError{Path: narrationPath, Err: err}
	}
	tracker.Track(narrationPath, handle)

	narration := NarrationTrack{Path: narrationPath, Duration: narrationDuration}
	log.Printf("[Assembler] Narration duration: %.1fs", narration.Duration.Seconds())

	videos, images, err := NewNormalizer(a.opener, a.settings, tracker).Normalize(ctx, assets)
	if err != nil {
		return nil, err
	}

	tl, err := Compose(videos, images, narration.Duration)
	if err != nil {
		return nil, err
	}
	log.Printf("[Assembler] Combined visuals duration: %.1fs", tl.Cycle.Seconds())
	if tl.Loops > 1 {
		log.Printf("[Assembler] Looped visuals %dx", tl.Loops)
	}

	seq, err = Bind(tl, narration, a.settings)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := a.encoder.Encode(ctx, seq, outputPath); err != nil {
		var encodeErr *EncodeError
		if errors.As(err, &encodeErr) {
			return nil, err
		}
		return nil, &EncodeError{Output: outputPath, Err: err}
	}
	log.Printf("[Assembler] Encoded %d segment(s) into %s in %s", len(tl.Segments), outputPath, time.Since(start).Round(time.Millisecond))

	return seq, nil
}
