package workspace

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	"github.com/google/uuid"
)

// Fixed file names inside a session directory.
const (
	ScriptFile    = "script.txt"
	VoiceFile     = "voice.mp3"
	OutputFile    = "final_video.mp4"
	ThumbnailFile = "thumbnail.png"
	ThumbBgFile   = "thumb_bg.jpg"

	videoPrefix = "visual_v"
	imagePrefix = "visual_i"
)

// Session is the working storage of one run. Each run gets a fresh directory
// under the cache root; it is never reused and is removed only after the
// render has been relocated.
type Session struct {
	ID        uuid.UUID
	Dir       string
	CreatedAt time.Time
}

// NewSession creates a new uuid-named directory under root.
func NewSession(root string) (*Session, error) {
	id := uuid.New()
	dir := filepath.Join(root, id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	log.Printf("[Workspace] Session %s created at %s", id, dir)
	return &Session{ID: id, Dir: dir, CreatedAt: time.Now()}, nil
}

func (s *Session) Path(name string) string { return filepath.Join(s.Dir, name) }
func (s *Session) ScriptPath() string      { return s.Path(ScriptFile) }
func (s *Session) VoicePath() string       { return s.Path(VoiceFile) }
func (s *Session) OutputPath() string      { return s.Path(OutputFile) }
func (s *Session) ThumbnailPath() string   { return s.Path(ThumbnailFile) }

// VideoPath is the working path of the i-th stock video.
func (s *Session) VideoPath(i int) string {
	return s.Path(fmt.Sprintf("%s%d.mp4", videoPrefix, i))
}

// ImagePath is the working path of the i-th stock photo.
func (s *Session) ImagePath(i int) string {
	return s.Path(fmt.Sprintf("%s%d.jpg", imagePrefix, i))
}

// Touch marks the session as active so the reaper leaves it alone.
func (s *Session) Touch() {
	now := time.Now()
	if err := os.Chtimes(s.Dir, now, now); err != nil {
		log.Printf("[Workspace] Warning: failed to touch session %s: %v", s.ID, err)
	}
}

// ClearVisuals removes visual files left over from an earlier attempt.
func (s *Session) ClearVisuals() error {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "visual_*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

// ListVisuals returns the visual pool, ordered by kind then numeric suffix.
// Files without a numeric suffix are ignored.
func (s *Session) ListVisuals() ([]media.VisualAsset, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session dir: %w", err)
	}

	var assets []media.VisualAsset
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if asset, ok := parseVisual(e.Name()); ok {
			asset.Path = s.Path(e.Name())
			assets = append(assets, asset)
		}
	}

	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Kind != assets[j].Kind {
			return assets[i].Kind == media.KindVideo
		}
		return assets[i].Order < assets[j].Order
	})
	return assets, nil
}

func parseVisual(name string) (media.VisualAsset, bool) {
	var kind media.Kind
	var rest string
	switch {
	case strings.HasPrefix(name, videoPrefix):
		kind, rest = media.KindVideo, strings.TrimPrefix(name, videoPrefix)
	case strings.HasPrefix(name, imagePrefix):
		kind, rest = media.KindImage, strings.TrimPrefix(name, imagePrefix)
	default:
		return media.VisualAsset{}, false
	}

	ext := filepath.Ext(rest)
	n, err := strconv.Atoi(strings.TrimSuffix(rest, ext))
	if err != nil || n < 0 || ext == "" {
		return media.VisualAsset{}, false
	}
	return media.VisualAsset{Kind: kind, Order: n}, true
}

// Export copies a session file to dest without touching the session.
func (s *Session) Export(name, dest string) error {
	return copyAtomic(s.Path(name), dest)
}

// Relocate moves the finished render to dest and then deletes the session
// directory. It must only be called after a successful encode. On failure
// the session is left in place and a *media.RelocationError is returned.
func (s *Session) Relocate(dest string) error {
	src := s.OutputPath()
	if err := copyAtomic(src, dest); err != nil {
		return &media.RelocationError{From: src, To: dest, Err: err}
	}
	log.Printf("[Workspace] Render relocated to %s", dest)

	if err := s.Cleanup(); err != nil {
		log.Printf("[Workspace] Warning: %v", err)
	}
	return nil
}

// Cleanup deletes the session directory and everything in it.
func (s *Session) Cleanup() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to remove session %s: %w", s.ID, err)
	}
	return nil
}

// copyAtomic writes src to a temporary sibling of dest and renames it into
// place, so dest is either the previous file or the complete new one.
func copyAtomic(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
