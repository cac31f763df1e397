package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Pexels Stock Media Client
// Searches landscape stock footage and photos for a topic and downloads them
// into working storage under the visual naming scheme.
// ---------------------------------------------------------------------------

const (
	pexelsBaseURL        = "https://api.pexels.com"
	pexelsTargetHeight   = 720
	DefaultVideoCount    = 3
	DefaultPhotoCount    = 5
	maxParallelDownloads = 4
)

// VisualLayout names the working paths for downloaded visuals.
type VisualLayout interface {
	VideoPath(i int) string
	ImagePath(i int) string
}

type PexelsClient struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	videoCount int
	photoCount int
}

func NewPexelsClient(apiKey string) *PexelsClient {
	return &PexelsClient{
		apiKey:     apiKey,
		baseURL:    pexelsBaseURL,
		client:     &http.Client{Timeout: 120 * time.Second},
		videoCount: DefaultVideoCount,
		photoCount: DefaultPhotoCount,
	}
}

type pexelsVideoFile struct {
	Link   string `json:"link"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pexelsVideo struct {
	ID         int               `json:"id"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideoSearch struct {
	Videos []pexelsVideo `json:"videos"`
}

type pexelsPhoto struct {
	ID  int `json:"id"`
	Src struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
	} `json:"src"`
}

type pexelsPhotoSearch struct {
	Photos []pexelsPhoto `json:"photos"`
}

// FetchResult reports how many visuals were saved.
type FetchResult struct {
	Videos int
	Photos int
}

// FetchVisuals downloads landscape clips and photos for topic. Clips are
// saved as layout.VideoPath(i), photos as layout.ImagePath(i), in search
// result order.
func (c *PexelsClient) FetchVisuals(ctx context.Context, topic string, layout VisualLayout) (*FetchResult, error) {
	videos, err := c.searchVideos(ctx, topic, c.videoCount)
	if err != nil {
		return nil, err
	}
	photos, err := c.searchPhotos(ctx, topic, c.photoCount)
	if err != nil {
		return nil, err
	}

	type download struct{ link, dest string }
	var downloads []download

	for i, v := range videos {
		best, ok := closestToHeight(v.VideoFiles, pexelsTargetHeight)
		if !ok {
			return nil, fmt.Errorf("pexels video %d has no files", v.ID)
		}
		log.Printf("[Pexels] Clip %d/%d: %dx%d", i+1, len(videos), best.Width, best.Height)
		downloads = append(downloads, download{best.Link, layout.VideoPath(i)})
	}
	for i, p := range photos {
		downloads = append(downloads, download{p.Src.Large2x, layout.ImagePath(i)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for _, d := range downloads {
		g.Go(func() error {
			return c.Download(gctx, d.link, d.dest)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("visual download failed: %w", err)
	}

	log.Printf("[Pexels] Downloaded %d clips + %d images for %q", len(videos), len(photos), topic)
	return &FetchResult{Videos: len(videos), Photos: len(photos)}, nil
}

// FirstPhotoURL returns the large2x URL of the top landscape photo for query,
// or "" when the search has no results.
func (c *PexelsClient) FirstPhotoURL(ctx context.Context, query string) (string, error) {
	photos, err := c.searchPhotos(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(photos) == 0 {
		return "", nil
	}
	return photos[0].Src.Large2x, nil
}

func (c *PexelsClient) searchVideos(ctx context.Context, query string, perPage int) ([]pexelsVideo, error) {
	var out pexelsVideoSearch
	if err := c.search(ctx, "/videos/search", query, perPage, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

func (c *PexelsClient) searchPhotos(ctx context.Context, query string, perPage int) ([]pexelsPhoto, error) {
	var out pexelsPhotoSearch
	if err := c.search(ctx, "/v1/search", query, perPage, &out); err != nil {
		return nil, err
	}
	return out.Photos, nil
}

func (c *PexelsClient) search(ctx context.Context, path, query string, perPage int, out interface{}) error {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create pexels request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pexels returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pexels response: %w", err)
	}
	return nil
}

// Download streams link into dest.
func (c *PexelsClient) Download(ctx context.Context, link, dest string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s returned status %d", link, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return f.Close()
}

// closestToHeight picks the rendition whose height is nearest target.
// Files with an unknown height sort last.
func closestToHeight(files []pexelsVideoFile, target int) (pexelsVideoFile, bool) {
	if len(files) == 0 {
		return pexelsVideoFile{}, false
	}

	best, bestDiff := files[0], -1
	for _, f := range files {
		h := f.Height
		if h == 0 {
			h = 9999
		}
		diff := h - target
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = f, diff
		}
	}
	return best, true
}
