package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/models"
	"github.com/bobarin/topicreel/internal/pipeline"
	"github.com/bobarin/topicreel/internal/queue"
	"github.com/bobarin/topicreel/internal/storage"
	"github.com/google/uuid"
)

// LocalBucket is recorded on assets that were not published and still live on disk.
const LocalBucket = "local"

// Store is the slice of the database the worker writes to.
type Store interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error
	UpdateRunProgress(ctx context.Context, id uuid.UUID, progress int) error
	SetRunScript(ctx context.Context, id uuid.UUID, script string) error
	UpdateRunError(ctx context.Context, id uuid.UUID, errorCode, errorMessage string) error
	CompleteRun(ctx context.Context, id, videoAssetID uuid.UUID, thumbnailAssetID *uuid.UUID, durationMs, loops, segments int) error
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// JobSource yields queued jobs. Dequeue returns nil, nil on timeout.
type JobSource interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
}

// Runner executes one topic-to-video run.
type Runner interface {
	RunTo(ctx context.Context, topic, outputPath string, obs pipeline.Observer) (*pipeline.Result, error)
}

type Worker struct {
	db        Store
	queue     JobSource
	publisher storage.Publisher // nil keeps renders on local disk
	runner    Runner
	outputDir string
	fileName  string
	uploadSem chan struct{} // Limits concurrent uploads to prevent congestion
}

// New creates a worker. Each run renders to outputDir/<run id>/fileName so
// concurrent runs never share an output path.
func New(
	database Store,
	q JobSource,
	publisher storage.Publisher,
	runner Runner,
	outputDir, fileName string,
) *Worker {
	return &Worker{
		db:        database,
		queue:     q,
		publisher: publisher,
		runner:    runner,
		outputDir: outputDir,
		fileName:  fileName,
		uploadSem: make(chan struct{}, 2),
	}
}

// uploadWithLimit wraps an upload call with a semaphore.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	log.Printf("[Upload] %s waiting for upload slot...", label)
	select {
	case w.uploadSem <- struct{}{}:
		// Acquired slot
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start processes generate_video jobs with the given number of concurrent
// runs and blocks until ctx is cancelled and in-flight runs have finished.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processQueue(ctx, queue.QueueGenerateVideo, w.handleGenerateVideo)
		}()
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
	wg.Wait()
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.process(ctx, job, handler)
		}
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job, handler func(context.Context, *queue.Job) error) {
	// Redelivered jobs that already finished are dropped
	if existing, err := w.db.GetJob(ctx, job.ID); err == nil && existing.Status == models.JobStatusSucceeded {
		log.Printf("Skipping job %s: already succeeded", job.ID)
		return
	}

	log.Printf("Processing job %s (type: %s, run: %s)", job.ID, job.Type, job.RunID)

	// Update job status to running
	if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
		log.Printf("Failed to update job status: %v", err)
	}

	// Handle the job
	if err := handler(ctx, job); err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		w.db.UpdateJobError(ctx, job.ID, err.Error())
	} else {
		log.Printf("Job %s completed successfully", job.ID)
		w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusSucceeded)
	}
}

// RunDir is where a run's render and thumbnail are written.
func (w *Worker) RunDir(runID uuid.UUID) string {
	return filepath.Join(w.outputDir, runID.String())
}

// handleGenerateVideo runs the whole pipeline for one run and publishes
// the render and thumbnail.
func (w *Worker) handleGenerateVideo(ctx context.Context, job *queue.Job) error {
	topic := job.Topic
	if topic == "" {
		run, err := w.db.GetRun(ctx, job.RunID)
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		topic = run.Topic
	}
	log.Printf("Generating video for run %s (topic: %q)", job.RunID, topic)

	runDir := w.RunDir(job.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		w.db.UpdateRunError(ctx, job.RunID, "output_unavailable", err.Error())
		return fmt.Errorf("failed to create run output dir: %w", err)
	}

	obs := &runObserver{ctx: ctx, db: w.db, runID: job.RunID}
	res, err := w.runner.RunTo(ctx, topic, filepath.Join(runDir, w.fileName), obs)
	if err != nil {
		w.db.UpdateRunError(ctx, job.RunID, errorCode(err), err.Error())
		return err
	}

	if err := w.db.SetRunScript(ctx, job.RunID, res.Script); err != nil {
		log.Printf("Warning: could not store script for run %s: %v", job.RunID, err)
	}

	videoAsset, err := w.publish(ctx, job.RunID, res.VideoPath, models.AssetTypeFinalVideo)
	if err != nil {
		w.db.UpdateRunError(ctx, job.RunID, "upload_failed", err.Error())
		return fmt.Errorf("failed to publish video: %w", err)
	}

	var thumbID *uuid.UUID
	if res.ThumbnailPath != "" {
		thumbAsset, err := w.publish(ctx, job.RunID, res.ThumbnailPath, models.AssetTypeThumbnail)
		if err != nil {
			log.Printf("Warning: thumbnail publish failed for run %s: %v", job.RunID, err)
		} else {
			thumbID = &thumbAsset.ID
		}
	}

	if w.publisher != nil {
		if err := os.RemoveAll(runDir); err != nil {
			log.Printf("Warning: could not remove %s: %v", runDir, err)
		}
	}

	return w.db.CompleteRun(ctx, job.RunID, videoAsset.ID, thumbID, int(res.Duration.Milliseconds()), res.Loops, res.Segments)
}

// publish uploads a local artifact, or records it in place when no
// publisher is configured, and saves the asset row.
func (w *Worker) publish(ctx context.Context, runID uuid.UUID, localPath string, assetType models.AssetType) (*models.Asset, error) {
	name := filepath.Base(localPath)
	contentType := storage.ContentType(name)
	asset := &models.Asset{
		ID:          uuid.New(),
		RunID:       runID,
		Type:        assetType,
		ContentType: strPtr(contentType),
	}

	if w.publisher == nil {
		info, err := os.Stat(localPath)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(localPath)
		if err != nil {
			return nil, err
		}
		asset.StorageBucket = LocalBucket
		asset.StoragePath = abs
		asset.ByteSize = int64Ptr(info.Size())
	} else {
		asset.StorageBucket = w.publisher.BucketName()
		asset.StoragePath = storage.StoragePath(runID, name)

		var size int64
		if err := w.uploadWithLimit(ctx, fmt.Sprintf("%s_%s", runID.String()[:8], name), func() error {
			var err error
			size, err = w.publisher.UploadFile(ctx, asset.StoragePath, localPath, contentType)
			return err
		}); err != nil {
			return nil, err
		}
		asset.ByteSize = int64Ptr(size)
	}

	if err := w.db.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to save %s asset: %w", assetType, err)
	}
	return asset, nil
}

// errorCode is the short failure code stored on a run.
func errorCode(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Stage) + "_failed"
	}
	return media.ErrorCode(err)
}

// runObserver mirrors pipeline progress onto the run row.
type runObserver struct {
	ctx   context.Context
	db    Store
	runID uuid.UUID
	last  models.RunStatus
}

var stageStatus = map[pipeline.Stage]models.RunStatus{
	pipeline.StageScript:  models.RunStatusScripting,
	pipeline.StageVoice:   models.RunStatusVoicing,
	pipeline.StageVisuals: models.RunStatusFetchingVisuals,
	pipeline.StageRender:  models.RunStatusRendering,
}

func (o *runObserver) OnStage(stage pipeline.Stage, detail string) {
	log.Printf("[Run %s] [%s] %s", o.runID.String()[:8], stage, detail)

	status, ok := stageStatus[stage]
	if !ok || status == o.last {
		return
	}
	o.last = status
	if err := o.db.UpdateRunStatus(o.ctx, o.runID, status); err != nil {
		log.Printf("Warning: failed to update run status: %v", err)
	}
}

func (o *runObserver) OnProgress(percent int) {
	if err := o.db.UpdateRunProgress(o.ctx, o.runID, percent); err != nil {
		log.Printf("Warning: failed to update run progress: %v", err)
	}
}

// Helper functions
func strPtr(s string) *string {
	return &s
}

func int64Ptr(i int64) *int64 {
	return &i
}
