package natsq

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// tasksStream holds the terminal-task events; one file-backed replica is
// enough, consumers replay from it at their own pace.
const tasksStream = "VIDEOGEN_TASKS"

type Config struct {
	Name          string
	MaxReconnects int
}

func NewConnect(url string, cfg Config) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return nc, nil
}

// NewTaskStream ensures the task-event stream covers subject and returns a
// JetStream context to publish on it.
func NewTaskStream(nc *nats.Conn, subject string) (nats.JetStreamContext, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("JetStream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     tasksStream,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("JetStream AddStream %s: %w", tasksStream, err)
	}

	return js, nil
}
