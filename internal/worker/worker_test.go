package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/models"
	"github.com/bobarin/topicreel/internal/pipeline"
	"github.com/bobarin/topicreel/internal/queue"
	"github.com/google/uuid"
)

type fakeStore struct {
	mu        sync.Mutex
	statuses  []models.RunStatus
	progress  []int
	script    string
	errCode   string
	assets    []*models.Asset
	completed bool
	videoID   uuid.UUID
	thumbID   *uuid.UUID
	duration  int
	jobStatus []models.JobStatus
	jobErr    string
	topic     string
	finished  map[uuid.UUID]bool
}

func (s *fakeStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	return &models.Run{ID: id, Topic: s.topic}, nil
}

func (s *fakeStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) UpdateRunProgress(ctx context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progress)
	return nil
}

func (s *fakeStore) SetRunScript(ctx context.Context, id uuid.UUID, script string) error {
	s.script = script
	return nil
}

func (s *fakeStore) UpdateRunError(ctx context.Context, id uuid.UUID, code, msg string) error {
	s.errCode = code
	return nil
}

func (s *fakeStore) CompleteRun(ctx context.Context, id, videoID uuid.UUID, thumbID *uuid.UUID, durationMs, loops, segments int) error {
	s.completed = true
	s.videoID = videoID
	s.thumbID = thumbID
	s.duration = durationMs
	return nil
}

func (s *fakeStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	s.assets = append(s.assets, asset)
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.finished[id] {
		return &models.Job{ID: id, Status: models.JobStatusSucceeded}, nil
	}
	return &models.Job{ID: id, Status: models.JobStatusQueued}, nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = append(s.jobStatus, status)
	return nil
}

func (s *fakeStore) UpdateJobError(ctx context.Context, id uuid.UUID, msg string) error {
	s.jobErr = msg
	return nil
}

// fakeRunner writes a render and thumbnail and reports every stage.
type fakeRunner struct {
	err   error
	topic string
	out   string
}

func (r *fakeRunner) RunTo(ctx context.Context, topic, outputPath string, obs pipeline.Observer) (*pipeline.Result, error) {
	r.topic, r.out = topic, outputPath
	stages := []pipeline.Stage{pipeline.StageScript, pipeline.StageVoice, pipeline.StageVisuals, pipeline.StageRender}
	for i, stage := range stages {
		obs.OnStage(stage, "start")
		obs.OnStage(stage, "end")
		if r.err != nil && i == 1 {
			return nil, r.err
		}
		obs.OnProgress((i + 1) * 25)
	}
	obs.OnStage(pipeline.StageThumbnail, "")
	obs.OnStage(pipeline.StageDone, "")

	thumb := filepath.Join(filepath.Dir(outputPath), "thumbnail.png")
	os.WriteFile(outputPath, []byte("video"), 0644)
	os.WriteFile(thumb, []byte("png"), 0644)
	return &pipeline.Result{
		Topic:         topic,
		Script:        "Octopuses have three hearts.",
		VideoPath:     outputPath,
		ThumbnailPath: thumb,
		Duration:      20 * time.Second,
		Loops:         2,
		Segments:      7,
	}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	uploads map[string]string
}

func (p *fakePublisher) BucketName() string { return "reels" }

func (p *fakePublisher) UploadFile(ctx context.Context, storagePath, localPath, contentType string) (int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploads == nil {
		p.uploads = map[string]string{}
	}
	p.uploads[storagePath] = contentType
	return int64(len(data)), nil
}

func (p *fakePublisher) SignedURL(ctx context.Context, storagePath string, expiresIn time.Duration) (string, error) {
	return "https://example.com/" + storagePath, nil
}

func TestHandleGenerateVideoPublishes(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{}
	pub := &fakePublisher{}
	w := New(store, nil, pub, runner, t.TempDir(), "final_video.mp4")

	runID := uuid.New()
	job := &queue.Job{ID: uuid.New(), Type: queue.JobTypeGenerateVideo, RunID: runID, Topic: "octopus"}
	if err := w.handleGenerateVideo(context.Background(), job); err != nil {
		t.Fatalf("handleGenerateVideo failed: %v", err)
	}

	if runner.out != filepath.Join(w.RunDir(runID), "final_video.mp4") {
		t.Errorf("expected per-run output path, got %s", runner.out)
	}

	wantStatuses := []models.RunStatus{
		models.RunStatusScripting, models.RunStatusVoicing,
		models.RunStatusFetchingVisuals, models.RunStatusRendering,
	}
	if !reflect.DeepEqual(store.statuses, wantStatuses) {
		t.Errorf("expected statuses %v, got %v", wantStatuses, store.statuses)
	}
	if !reflect.DeepEqual(store.progress, []int{25, 50, 75, 100}) {
		t.Errorf("unexpected progress %v", store.progress)
	}

	if len(store.assets) != 2 {
		t.Fatalf("expected video and thumbnail assets, got %d", len(store.assets))
	}
	video := store.assets[0]
	if video.Type != models.AssetTypeFinalVideo || video.StorageBucket != "reels" ||
		video.StoragePath != runID.String()+"/final_video.mp4" || *video.ByteSize != 5 {
		t.Errorf("unexpected video asset %+v", video)
	}
	if pub.uploads[runID.String()+"/thumbnail.png"] != "image/png" {
		t.Errorf("thumbnail not uploaded: %v", pub.uploads)
	}

	if !store.completed || store.videoID != video.ID || store.thumbID == nil || *store.thumbID != store.assets[1].ID {
		t.Error("run not completed with published assets")
	}
	if store.duration != 20000 {
		t.Errorf("expected 20000ms, got %d", store.duration)
	}
	if store.script != "Octopuses have three hearts." {
		t.Errorf("script not stored: %q", store.script)
	}

	if _, err := os.Stat(w.RunDir(runID)); !os.IsNotExist(err) {
		t.Error("published run dir should be removed")
	}
}

func TestHandleGenerateVideoWithoutPublisher(t *testing.T) {
	store := &fakeStore{topic: "volcanoes"}
	runner := &fakeRunner{}
	w := New(store, nil, nil, runner, t.TempDir(), "final_video.mp4")

	runID := uuid.New()
	if err := w.handleGenerateVideo(context.Background(), &queue.Job{ID: uuid.New(), RunID: runID}); err != nil {
		t.Fatalf("handleGenerateVideo failed: %v", err)
	}

	if runner.topic != "volcanoes" {
		t.Errorf("expected topic loaded from run, got %q", runner.topic)
	}
	video := store.assets[0]
	if video.StorageBucket != LocalBucket {
		t.Errorf("expected local bucket, got %s", video.StorageBucket)
	}
	if _, err := os.Stat(video.StoragePath); err != nil {
		t.Errorf("local render should be kept: %v", err)
	}
}

func TestHandleGenerateVideoFailure(t *testing.T) {
	store := &fakeStore{}
	boom := errors.New("tts quota")
	w := New(store, nil, &fakePublisher{}, &fakeRunner{err: &pipeline.StageError{Stage: pipeline.StageVoice, Err: boom}}, t.TempDir(), "final_video.mp4")

	err := w.handleGenerateVideo(context.Background(), &queue.Job{ID: uuid.New(), RunID: uuid.New(), Topic: "octopus"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected voice failure, got %v", err)
	}
	if store.errCode != "voice_failed" {
		t.Errorf("expected voice_failed, got %s", store.errCode)
	}
	if store.completed || len(store.assets) != 0 {
		t.Error("failed run must not be completed")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pipeline.StageError{Stage: pipeline.StageScript, Err: errors.New("x")}, "script_failed"},
		{media.ErrEmptyTimeline, "empty_timeline"},
		{&media.EncodeError{Output: "out.mp4", Err: errors.New("exit status 1")}, "encode_failed"},
		{&media.RelocationError{From: "a", To: "b", Err: errors.New("denied")}, "relocation_failed"},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (q *fakeQueue) Dequeue(ctx context.Context, name string, timeout time.Duration) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil, nil
		}
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func TestProcessMarksJobSucceeded(t *testing.T) {
	store := &fakeStore{}
	w := New(store, nil, nil, &fakeRunner{}, t.TempDir(), "final_video.mp4")

	job := &queue.Job{ID: uuid.New(), RunID: uuid.New()}
	w.process(context.Background(), job, func(ctx context.Context, j *queue.Job) error { return nil })
	if !reflect.DeepEqual(store.jobStatus, []models.JobStatus{models.JobStatusRunning, models.JobStatusSucceeded}) {
		t.Errorf("unexpected job statuses %v", store.jobStatus)
	}

	w.process(context.Background(), job, func(ctx context.Context, j *queue.Job) error { return errors.New("boom") })
	if store.jobErr != "boom" {
		t.Errorf("expected job error recorded, got %q", store.jobErr)
	}
}

func TestProcessSkipsFinishedJob(t *testing.T) {
	job := &queue.Job{ID: uuid.New(), RunID: uuid.New()}
	store := &fakeStore{finished: map[uuid.UUID]bool{job.ID: true}}
	w := New(store, nil, nil, &fakeRunner{}, t.TempDir(), "final_video.mp4")

	called := false
	w.process(context.Background(), job, func(ctx context.Context, j *queue.Job) error {
		called = true
		return nil
	})
	if called || len(store.jobStatus) != 0 {
		t.Errorf("finished job was processed again (statuses %v)", store.jobStatus)
	}
}

func TestStartDrainsQueueAndStops(t *testing.T) {
	store := &fakeStore{}
	q := &fakeQueue{jobs: []*queue.Job{
		{ID: uuid.New(), RunID: uuid.New(), Topic: "a"},
		{ID: uuid.New(), RunID: uuid.New(), Topic: "b"},
	}}
	w := New(store, q, nil, &fakeRunner{}, t.TempDir(), "final_video.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, 1)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.jobStatus)
		store.mu.Unlock()
		if n == 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("jobs not processed, statuses: %v", store.jobStatus)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
