package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Opener acquires a media asset for the lifetime of one assembly. The returned
// closer must stay open until encoding has finished. Duration is zero for images.
type Opener interface {
	Open(ctx context.Context, kind Kind, path string) (io.Closer, time.Duration, error)
}

// Prober reports the playable duration of an audio or video file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FileOpener holds an open file per asset and validates it before use:
// images must have a decodable header, audio/video must probe to a positive duration.
type FileOpener struct {
	prober Prober
}

var _ Opener = (*FileOpener)(nil)

func NewFileOpener(prober Prober) *FileOpener {
	return &FileOpener{prober: prober}
}

func (o *FileOpener) Open(ctx context.Context, kind Kind, path string) (io.Closer, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}

	if kind == KindImage {
		if _, _, err := image.DecodeConfig(f); err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("decode image header: %w", err)
		}
		return f, 0, nil
	}

	d, err := o.prober.Duration(ctx, path)
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if d <= 0 {
		f.Close()
		return nil, 0, fmt.Errorf("no playable duration")
	}
	return f, d, nil
}

type trackedHandle struct {
	path   string
	closer io.Closer
}

// Tracker owns every handle opened during an assembly and releases them together.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	handles []trackedHandle
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Track registers a handle for release by CloseAll.
func (t *Tracker) Track(path string, c io.Closer) {
	if c == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles = append(t.handles, trackedHandle{path: path, closer: c})
}

// Open returns the number of handles not yet released.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// CloseAll releases handles in reverse acquisition order. Every handle is
// closed even if some fail; the failures are joined.
func (t *Tracker) CloseAll() error {
	t.mu.Lock()
	handles := t.handles
	t.handles = nil
	t.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", handles[i].path, err))
		}
	}
	return errors.Join(errs...)
}
