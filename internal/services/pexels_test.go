package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type dirLayout string

func (d dirLayout) VideoPath(i int) string {
	return filepath.Join(string(d), fmt.Sprintf("visual_v%d.mp4", i))
}

func (d dirLayout) ImagePath(i int) string {
	return filepath.Join(string(d), fmt.Sprintf("visual_i%d.jpg", i))
}

func newPexelsServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/videos/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("orientation") != "landscape" {
			t.Errorf("expected landscape search, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"videos": []map[string]interface{}{
				{"id": 1, "video_files": []map[string]interface{}{
					{"link": srv.URL + "/files/v1-2160.mp4", "width": 3840, "height": 2160},
					{"link": srv.URL + "/files/v1-720.mp4", "width": 1280, "height": 720},
					{"link": srv.URL + "/files/v1-540.mp4", "width": 960, "height": 540},
				}},
				{"id": 2, "video_files": []map[string]interface{}{
					{"link": srv.URL + "/files/v2-unknown.mp4", "width": 0, "height": 0},
					{"link": srv.URL + "/files/v2-1080.mp4", "width": 1920, "height": 1080},
				}},
			},
		})
	})

	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		photos := []map[string]interface{}{}
		if r.URL.Query().Get("query") != "nothing" {
			photos = append(photos, map[string]interface{}{
				"id":  7,
				"src": map[string]string{"original": srv.URL + "/files/p-orig.jpg", "large2x": srv.URL + "/files/p-large.jpg"},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"photos": photos})
	})

	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filepath.Base(r.URL.Path)))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchVisualsPicksClosestRendition(t *testing.T) {
	srv := newPexelsServer(t)
	c := NewPexelsClient("test-key")
	c.baseURL = srv.URL
	dir := t.TempDir()

	res, err := c.FetchVisuals(context.Background(), "octopus", dirLayout(dir))
	if err != nil {
		t.Fatalf("FetchVisuals failed: %v", err)
	}
	if res.Videos != 2 || res.Photos != 1 {
		t.Errorf("expected 2 videos and 1 photo, got %+v", res)
	}

	want := map[string]string{
		"visual_v0.mp4": "v1-720.mp4",
		"visual_v1.mp4": "v2-1080.mp4",
		"visual_i0.jpg": "p-large.jpg",
	}
	for name, content := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s: expected %s, got %s", name, content, data)
		}
	}
}

func TestFetchVisualsRejectsBadKey(t *testing.T) {
	srv := newPexelsServer(t)
	c := NewPexelsClient("wrong")
	c.baseURL = srv.URL

	if _, err := c.FetchVisuals(context.Background(), "octopus", dirLayout(t.TempDir())); err == nil {
		t.Fatal("expected error for unauthorized search")
	}
}

func TestFirstPhotoURL(t *testing.T) {
	srv := newPexelsServer(t)
	c := NewPexelsClient("test-key")
	c.baseURL = srv.URL

	link, err := c.FirstPhotoURL(context.Background(), "octopus wallpaper")
	if err != nil {
		t.Fatalf("FirstPhotoURL failed: %v", err)
	}
	if link != srv.URL+"/files/p-large.jpg" {
		t.Errorf("unexpected link %s", link)
	}

	link, err = c.FirstPhotoURL(context.Background(), "nothing")
	if err != nil || link != "" {
		t.Errorf("expected empty result, got %q, %v", link, err)
	}
}

func TestClosestToHeight(t *testing.T) {
	if _, ok := closestToHeight(nil, 720); ok {
		t.Error("expected no rendition for empty list")
	}
	files := []pexelsVideoFile{{Height: 0}, {Height: 1080}, {Height: 640}}
	if got, _ := closestToHeight(files, 720); got.Height != 640 {
		t.Errorf("expected 640p, got %dp", got.Height)
	}
}

type fakeTTS struct {
	audio []byte
	err   error
	text  string
}

func (f *fakeTTS) GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error) {
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return &TTSResponse{AudioData: f.audio, Format: "mp3"}, nil
}

func TestNarratorWritesVoiceTrack(t *testing.T) {
	tts := &fakeTTS{audio: []byte("ID3")}
	path := filepath.Join(t.TempDir(), "voice.mp3")

	if err := NewNarrator(tts).Narrate(context.Background(), "Hello there.", path); err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "ID3" {
		t.Errorf("unexpected voice track %q", data)
	}
	if tts.text != "Hello there." {
		t.Errorf("expected script passed through, got %q", tts.text)
	}
}

func TestNarratorErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.mp3")

	if err := NewNarrator(&fakeTTS{audio: []byte("x")}).Narrate(context.Background(), "  ", path); err == nil {
		t.Error("expected empty script to fail")
	}
	if err := NewNarrator(&fakeTTS{}).Narrate(context.Background(), "Hi.", path); err == nil {
		t.Error("expected empty audio to fail")
	}
	boom := errors.New("quota exceeded")
	if err := NewNarrator(&fakeTTS{err: boom}).Narrate(context.Background(), "Hi.", path); !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no voice track should be written on failure")
	}
}
