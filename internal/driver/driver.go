package driver

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/you-humble/videogen/internal/domain"
)

type GenerationBackend interface {
	Submit(ctx context.Context, p domain.GenerationParams) (string, error)
	Status(ctx context.Context, jobID string) (domain.ExternalJob, error)
}

type AudioSynthesizer interface {
	Synthesize(ctx context.Context, req domain.SynthesisRequest) (string, error)
}

type BlobStore interface {
	Download(ctx context.Context, ref, localPath string) error
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}

// Driver executes one task end to end: submit the generation job, poll it to a
// terminal state and, for soundful tasks, run the audio round-trip. There is no
// upper bound on how long a job may run; polling stops only on a terminal state
// or a canceled context.
type Driver struct {
	gen       GenerationBackend
	audio     AudioSynthesizer
	blobs     BlobStore
	workDir   string
	pollEvery time.Duration
}

func New(
	gen GenerationBackend,
	audio AudioSynthesizer,
	blobs BlobStore,
	workDir string,
	pollEvery time.Duration,
) *Driver {
	return &Driver{
		gen:       gen,
		audio:     audio,
		blobs:     blobs,
		workDir:   workDir,
		pollEvery: pollEvery,
	}
}

// Run returns the final video reference for the task, or the failure of the
// first sub-step that broke.
func (d *Driver) Run(ctx context.Context, task domain.Task) (string, error) {
	videoURL, jobID, err := d.generate(ctx, task.Params)
	if err != nil {
		return "", err
	}

	if task.Kind != domain.KindSoundful {
		return videoURL, nil
	}
	return d.soundful(ctx, task, jobID, videoURL)
}

func (d *Driver) generate(ctx context.Context, p domain.GenerationParams) (videoURL, jobID string, err error) {
	jobID, err = d.gen.Submit(ctx, p)
	if err != nil {
		return "", "", fmt.Errorf("submit generation: %w", err)
	}

	slog.Info("generation job created", slog.String("job_id", jobID))

	for {
		job, err := d.gen.Status(ctx, jobID)
		if err != nil {
			return "", "", fmt.Errorf("generation status: %w", err)
		}

		switch job.State {
		case domain.JobStateCompleted:
			if job.VideoURL == "" {
				return "", "", fmt.Errorf("generation %s completed without a video url", jobID)
			}
			return job.VideoURL, jobID, nil
		case domain.JobStateFailed:
			return "", "", fmt.Errorf("generation failed: %s", job.FailureReason)
		}

		// any other state, known or not, means the job is still running
		slog.Debug("generation in progress",
			slog.String("job_id", jobID),
			slog.String("state", job.State),
		)

		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(d.pollEvery):
		}
	}
}

// soundful downloads the generated video into per-owner working storage, runs
// audio synthesis over it and uploads the result under the owner's prefix.
// Job ids are unique, so concurrent tasks of one owner never collide on paths.
func (d *Driver) soundful(ctx context.Context, task domain.Task, jobID, videoURL string) (string, error) {
	owner := task.Params.UserID
	localPath := filepath.Join(d.workDir, owner, fmt.Sprintf("video_%s.mp4", jobID))

	if err := d.blobs.Download(ctx, videoURL, localPath); err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}

	soundfulPath, err := d.audio.Synthesize(ctx, domain.SynthesisRequest{
		VideoPath:      localPath,
		Prompt:         task.Params.AudioPrompt,
		NegativePrompt: task.Params.AudioNegativePrompt,
		UserID:         owner,
		TaskID:         task.ID,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize audio: %w", err)
	}

	object := path.Join("public/uploads", owner, filepath.Base(soundfulPath))
	ref, err := d.blobs.Upload(ctx, soundfulPath, object)
	if err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}

	return ref, nil
}
