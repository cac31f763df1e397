package media

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentProbes bounds how many assets are opened/probed at once.
const maxConcurrentProbes = 4

// Normalizer turns raw visual assets into clips of the canonical frame size.
type Normalizer struct {
	opener   Opener
	settings Settings
	tracker  *Tracker
}

func NewNormalizer(opener Opener, settings Settings, tracker *Tracker) *Normalizer {
	return &Normalizer{
		opener:   opener,
		settings: settings,
		tracker:  tracker,
	}
}

// Normalize opens every asset and returns videos and images as separate ordered
// lists. Assets are sorted by Order within their kind. Any unreadable asset
// fails the whole call with an *AssetReadError naming it; handles opened before
// the failure are already registered with the tracker.
func (n *Normalizer) Normalize(ctx context.Context, assets []VisualAsset) (videos, images []NormalizedClip, err error) {
	for _, a := range assets {
		if a.Kind != KindVideo && a.Kind != KindImage {
			return nil, nil, &AssetReadError{Path: a.Path, Err: fmt.Errorf("unsupported visual kind %q", a.Kind)}
		}
	}
	videoAssets, imageAssets := SplitByKind(assets)

	videos = make([]NormalizedClip, len(videoAssets))
	images = make([]NormalizedClip, len(imageAssets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, a := range videoAssets {
		g.Go(func() error {
			clip, err := n.normalizeOne(gctx, a)
			if err != nil {
				return err
			}
			videos[i] = clip
			return nil
		})
	}
	for i, a := range imageAssets {
		g.Go(func() error {
			clip, err := n.normalizeOne(gctx, a)
			if err != nil {
				return err
			}
			images[i] = clip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	log.Printf("[Normalizer] %d video clip(s), %d image(s) normalized to %dx%d",
		len(videos), len(images), n.settings.Width, n.settings.Height)
	return videos, images, nil
}

func (n *Normalizer) normalizeOne(ctx context.Context, a VisualAsset) (NormalizedClip, error) {
	handle, duration, err := n.opener.Open(ctx, a.Kind, a.Path)
	if err != nil {
		return NormalizedClip{}, &AssetReadError{Path: a.Path, Err: err}
	}
	n.tracker.Track(a.Path, handle)

	clip := NormalizedClip{
		Kind:   a.Kind,
		Source: a.Path,
		Order:  a.Order,
		Width:  n.settings.Width,
		Height: n.settings.Height,
	}

	switch a.Kind {
	case KindVideo:
		clip.Duration = duration
	case KindImage:
		clip.Duration = n.settings.ImageDuration
		clip.Transition = Transition{FadeIn: n.settings.TransitionDuration}
	default:
		return NormalizedClip{}, &AssetReadError{Path: a.Path, Err: fmt.Errorf("unsupported visual kind %q", a.Kind)}
	}

	return clip, nil
}

// SplitByKind partitions assets into videos and images, each sorted by Order.
// Assets of any other kind are dropped.
func SplitByKind(assets []VisualAsset) (videos, images []VisualAsset) {
	for _, a := range assets {
		switch a.Kind {
		case KindVideo:
			videos = append(videos, a)
		case KindImage:
			images = append(images, a)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].Order < videos[j].Order })
	sort.SliceStable(images, func(i, j int) bool { return images[i].Order < images[j].Order })
	return videos, images
}
