package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type RunStatus string

const (
	RunStatusQueued          RunStatus = "queued"
	RunStatusScripting       RunStatus = "scripting"
	RunStatusVoicing         RunStatus = "voicing"
	RunStatusFetchingVisuals RunStatus = "fetching_visuals"
	RunStatusRendering       RunStatus = "rendering"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

type AssetType string

const (
	AssetTypeScript     AssetType = "script"
	AssetTypeThumbnail  AssetType = "thumbnail"
	AssetTypeFinalVideo AssetType = "final_video"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

type Run struct {
	ID                uuid.UUID  `json:"id"`
	Topic             string     `json:"topic"`
	Status            RunStatus  `json:"status"`
	Progress          int        `json:"progress"` // 0-100
	Script            *string    `json:"script,omitempty"`
	DurationMs        *int       `json:"duration_ms,omitempty"` // narration length = video length
	Loops             *int       `json:"loops,omitempty"`
	SegmentCount      *int       `json:"segment_count,omitempty"`
	FinalVideoAssetID *uuid.UUID `json:"final_video_asset_id,omitempty"`
	ThumbnailAssetID  *uuid.UUID `json:"thumbnail_asset_id,omitempty"`
	Settings          JSONB      `json:"settings,omitempty"` // render settings snapshot
	ErrorCode         *string    `json:"error_code,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Asset struct {
	ID            uuid.UUID `json:"id"`
	RunID         uuid.UUID `json:"run_id"`
	Type          AssetType `json:"type"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	ContentType   *string   `json:"content_type,omitempty"`
	ByteSize      *int64    `json:"byte_size,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	RunID        uuid.UUID  `json:"run_id"`
	Type         string     `json:"type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DTOs for API responses
type RunResponse struct {
	Run
	FinalVideoURL *string `json:"final_video_url,omitempty"`
	ThumbnailURL  *string `json:"thumbnail_url,omitempty"`
}

// AssetResponse is an asset with a link to fetch it.
type AssetResponse struct {
	Asset
	URL *string `json:"url,omitempty"`
}

// RunSummary is the list-endpoint view of a run, without the script body.
type RunSummary struct {
	ID            uuid.UUID `json:"id"`
	Topic         string    `json:"topic"`
	Status        RunStatus `json:"status"`
	Progress      int       `json:"progress"`
	DurationMs    *int      `json:"duration_ms,omitempty"`
	ThumbnailURL  *string   `json:"thumbnail_url,omitempty"`
	FinalVideoURL *string   `json:"final_video_url,omitempty"`
	ErrorCode     *string   `json:"error_code,omitempty"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListRunsResponse struct {
	Runs   []RunSummary `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type CreateRunRequest struct {
	Topic string `json:"topic"`
}

type CreateRunResponse struct {
	RunID  uuid.UUID `json:"run_id"`
	Status RunStatus `json:"status"`
}
