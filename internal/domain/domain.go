package domain

import (
	"errors"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TaskKind string

const (
	// KindPlain produces a silent video.
	KindPlain TaskKind = "plain"
	// KindSoundful additionally runs audio synthesis over the generated video.
	KindSoundful TaskKind = "soundful"
)

// DefaultUserID is the owner assigned to anonymous submissions.
const DefaultUserID = "00000000000000000000000000000000"

const (
	DefaultAspectRatio         = "16:9"
	DefaultAudioNegativePrompt = "music"
)

// GenerationParams is the immutable snapshot of a submission's inputs.
type GenerationParams struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Loop        bool   `json:"loop"`
	ImageURL    string `json:"image_url,omitempty"`
	UserID      string `json:"user_id"`

	// audio synthesis inputs, soundful tasks only
	AudioPrompt         string `json:"audio_prompt,omitempty"`
	AudioNegativePrompt string `json:"audio_negative_prompt,omitempty"`
}

type TaskResult struct {
	VideoURL string `json:"video_url"`
}

type Task struct {
	ID     string           `json:"task_id"`
	Kind   TaskKind         `json:"kind"`
	Params GenerationParams `json:"params"`

	Status TaskStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result is set iff Status is completed, Error iff failed.
	Result *TaskResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Submission is the pending-queue entry for a created task.
type Submission struct {
	TaskID    string           `json:"task_id"`
	Kind      TaskKind         `json:"kind"`
	Params    GenerationParams `json:"params"`
	CreatedAt time.Time        `json:"created_at"`
}

// ExternalJob is the generation backend's own unit of work. It is polled
// until its reported state is terminal and never persisted.
type ExternalJob struct {
	ID            string
	State         string
	VideoURL      string
	FailureReason string
}

const (
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

// SynthesisRequest carries one task's inputs to the audio-synthesis backend.
type SynthesisRequest struct {
	VideoPath      string
	Prompt         string
	NegativePrompt string
	UserID         string
	TaskID         string
}

type SubmitResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

type StatusResponse struct {
	TaskID      string      `json:"task_id"`
	Status      TaskStatus  `json:"status"`
	CreatedAt   string      `json:"created_at"`
	CompletedAt string      `json:"completed_at,omitempty"`
	Result      *TaskResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// VideoObject describes one stored video in an owner's upload prefix.
type VideoObject struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type ListVideosResponse struct {
	Videos []VideoObject `json:"videos"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already exists")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrEmptyPrompt  = errors.New("prompt is required")
)
