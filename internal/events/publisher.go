package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/nats-io/nats.go"
)

// TaskFinishedEvent is published once per task, on its terminal transition.
type TaskFinishedEvent struct {
	TaskID      string            `json:"task_id"`
	Kind        domain.TaskKind   `json:"kind"`
	Status      domain.TaskStatus `json:"status"`
	VideoURL    string            `json:"video_url,omitempty"`
	Error       string            `json:"error,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

type natsPublisher struct {
	js      nats.JetStreamContext
	subject string
}

func NewNATSPublisher(js nats.JetStreamContext, subject string) *natsPublisher {
	return &natsPublisher{js: js, subject: subject}
}

func (p *natsPublisher) TaskFinished(ctx context.Context, task domain.Task) error {
	ev := TaskFinishedEvent{
		TaskID: task.ID,
		Kind:   task.Kind,
		Status: task.Status,
		Error:  task.Error,
	}
	if task.Result != nil {
		ev.VideoURL = task.Result.VideoURL
	}
	if task.CompletedAt != nil {
		ev.CompletedAt = *task.CompletedAt
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", task.ID, err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}

	ack, err := p.js.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", task.ID, err)
	}

	slog.Debug("task event published",
		slog.String("task_id", task.ID),
		slog.String("subject", p.subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)
	return nil
}

// noopPublisher is used when eventing is disabled in config.
type noopPublisher struct{}

func NewNoopPublisher() *noopPublisher { return &noopPublisher{} }

func (noopPublisher) TaskFinished(context.Context, domain.Task) error { return nil }
