package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/services"
	"github.com/bobarin/topicreel/internal/workspace"
)

// Stage names a step of a run, in execution order.
type Stage string

const (
	StageScript    Stage = "script"
	StageVoice     Stage = "voice"
	StageVisuals   Stage = "visuals"
	StageRender    Stage = "render"
	StageThumbnail Stage = "thumbnail"
	StageDone      Stage = "done"
)

// Observer receives progress while a run executes. Calls happen on the
// goroutine running the pipeline.
type Observer interface {
	OnStage(stage Stage, detail string)
	OnProgress(percent int)
}

// LogObserver reports progress through the standard logger.
type LogObserver struct{}

func (LogObserver) OnStage(stage Stage, detail string) {
	log.Printf("[Pipeline] [%s] %s", stage, detail)
}

func (LogObserver) OnProgress(percent int) {
	log.Printf("[Pipeline] %d%%", percent)
}

// StageError attributes a collaborator failure to the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Collaborators. Implemented by the services package.
type (
	Narrator interface {
		Narrate(ctx context.Context, text, path string) error
	}

	VisualFetcher interface {
		FetchVisuals(ctx context.Context, topic string, layout services.VisualLayout) (*services.FetchResult, error)
	}

	Thumbnailer interface {
		FetchBackground(ctx context.Context, topic, dest string) string
		Render(topic, backgroundPath, outPath string) (string, error)
	}

	Assembler interface {
		Assemble(ctx context.Context, narrationPath string, assets []media.VisualAsset, outputPath string) (*media.FinalSequence, error)
	}
)

// Result describes a finished run.
type Result struct {
	SessionID     string
	Topic         string
	Script        string
	VideoPath     string
	ThumbnailPath string
	Duration      time.Duration
	Loops         int
	Segments      int
}

type Pipeline struct {
	scripts    services.ScriptWriter
	narrator   Narrator
	visuals    VisualFetcher
	thumbnails Thumbnailer
	assembler  Assembler
	cacheDir   string
	outputPath string
}

func New(
	scripts services.ScriptWriter,
	narrator Narrator,
	visuals VisualFetcher,
	thumbnails Thumbnailer,
	assembler Assembler,
	cacheDir, outputPath string,
) *Pipeline {
	return &Pipeline{
		scripts:    scripts,
		narrator:   narrator,
		visuals:    visuals,
		thumbnails: thumbnails,
		assembler:  assembler,
		cacheDir:   cacheDir,
		outputPath: outputPath,
	}
}

// Run produces a video for topic at the configured output path.
func (p *Pipeline) Run(ctx context.Context, topic string, obs Observer) (*Result, error) {
	return p.RunTo(ctx, topic, p.outputPath, obs)
}

// RunTo produces a video for topic at outputPath, with the thumbnail written
// beside it as thumbnail.png. Stages run in order: script, voice, visuals,
// render, thumbnail. A failed run keeps its working storage for inspection;
// a successful one removes it after the render has been relocated.
func (p *Pipeline) RunTo(ctx context.Context, topic, outputPath string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = LogObserver{}
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	session, err := workspace.NewSession(p.cacheDir)
	if err != nil {
		return nil, err
	}
	res := &Result{SessionID: session.ID.String(), Topic: topic}

	// Script
	obs.OnStage(StageScript, "Generating script...")
	script, err := p.scripts.WriteScript(ctx, topic)
	if err != nil {
		return nil, &StageError{Stage: StageScript, Err: err}
	}
	if err := os.WriteFile(session.ScriptPath(), []byte(script), 0644); err != nil {
		return nil, &StageError{Stage: StageScript, Err: err}
	}
	res.Script = script
	session.Touch()
	obs.OnStage(StageScript, fmt.Sprintf("%d words", services.WordCount(script)))
	obs.OnProgress(25)

	// Voice
	obs.OnStage(StageVoice, "Generating voice...")
	if err := p.narrator.Narrate(ctx, script, session.VoicePath()); err != nil {
		return nil, &StageError{Stage: StageVoice, Err: err}
	}
	session.Touch()
	obs.OnStage(StageVoice, workspace.VoiceFile+" ready")
	obs.OnProgress(50)

	// Visuals
	obs.OnStage(StageVisuals, "Downloading images & clips...")
	if err := session.ClearVisuals(); err != nil {
		return nil, &StageError{Stage: StageVisuals, Err: err}
	}
	fetched, err := p.visuals.FetchVisuals(ctx, topic, session)
	if err != nil {
		return nil, &StageError{Stage: StageVisuals, Err: err}
	}
	session.Touch()
	obs.OnStage(StageVisuals, fmt.Sprintf("%d clips + %d images", fetched.Videos, fetched.Photos))
	obs.OnProgress(75)

	// Render
	obs.OnStage(StageRender, "Merging final video...")
	assets, err := session.ListVisuals()
	if err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}
	seq, err := p.assembler.Assemble(ctx, session.VoicePath(), assets, session.OutputPath())
	if err != nil {
		return nil, err
	}
	res.Duration = seq.Narration.Duration
	res.Loops = seq.Timeline.Loops
	res.Segments = len(seq.Timeline.Segments)
	session.Touch()

	// Thumbnail. A thumbnail failure does not fail the run.
	obs.OnStage(StageThumbnail, "Rendering thumbnail...")
	thumbDest := filepath.Join(filepath.Dir(outputPath), workspace.ThumbnailFile)
	if p.thumbnails != nil {
		bg := p.thumbnails.FetchBackground(ctx, topic, session.Path(workspace.ThumbBgFile))
		if _, err := p.thumbnails.Render(topic, bg, session.ThumbnailPath()); err != nil {
			log.Printf("[Pipeline] Warning: thumbnail failed: %v", err)
		} else if err := session.Export(workspace.ThumbnailFile, thumbDest); err != nil {
			log.Printf("[Pipeline] Warning: thumbnail export failed: %v", err)
		} else {
			res.ThumbnailPath = thumbDest
		}
	}

	// Relocate last; this removes the session.
	if err := session.Relocate(outputPath); err != nil {
		return nil, err
	}
	res.VideoPath = outputPath

	obs.OnStage(StageDone, fmt.Sprintf("%s ready (%.1fs)", filepath.Base(outputPath), res.Duration.Seconds()))
	obs.OnProgress(100)
	return res, nil
}
