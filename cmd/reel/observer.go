package main

import (
	"fmt"

	"github.com/bobarin/topicreel/internal/pipeline"
)

// consoleObserver prints stage progress for an interactive run.
type consoleObserver struct{}

var stageIcons = map[pipeline.Stage]string{
	pipeline.StageScript:    "[1/5]",
	pipeline.StageVoice:     "[2/5]",
	pipeline.StageVisuals:   "[3/5]",
	pipeline.StageRender:    "[4/5]",
	pipeline.StageThumbnail: "[5/5]",
	pipeline.StageDone:      "[ok]",
}

func (consoleObserver) OnStage(stage pipeline.Stage, detail string) {
	fmt.Printf("%-6s %s\n", stageIcons[stage], detail)
}

func (consoleObserver) OnProgress(percent int) {
	fmt.Printf("       %d%%\n", percent)
}
