package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ProjectionJobMessage asks a worker to execute a queued projection run.
// It carries only the run id; the worker loads the request from the store.
type ProjectionJobMessage struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewProjectionJobMessage(runID string) *ProjectionJobMessage {
	return &ProjectionJobMessage{
		RunID:     runID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ProjectionJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProjectionJobMessageFromJSON decodes and checks a message body.
func ProjectionJobMessageFromJSON(data []byte) (*ProjectionJobMessage, error) {
	var msg ProjectionJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, errors.New("missing run_id")
	}
	return &msg, nil
}
