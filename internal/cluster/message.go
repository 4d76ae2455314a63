package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/torosent/xrayload/internal/metrics"
)

const (
	// MessageMetricsReport is the message type a worker sends with its batch.
	MessageMetricsReport = "metrics_report"
	// MessageHello is the first frame a worker sends after dialing.
	MessageHello = "client_ready"
	// MessageWelcome answers MessageHello with the worker's index.
	MessageWelcome = "worker_index"
)

// CoordinatorWorkerID keys the coordinator's own samples. Indexes handed to
// workers start at 1.
const CoordinatorWorkerID = 0

// Hello asks for a worker index. A zero WorkerID lets the coordinator pick.
type Hello struct {
	WorkerID int `json:"worker_id,omitempty"`
}

// Welcome carries the index a worker must report under.
type Welcome struct {
	WorkerID int `json:"worker_id"`
}

// Envelope is the wire frame exchanged over the coordinator websocket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Batch is one worker's samples as of its shutdown.
type Batch struct {
	WorkerID int              `json:"worker_id"`
	Metrics  []metrics.Sample `json:"metrics"`
}

// Message is a decoded envelope handed to a registered handler.
type Message struct {
	Type   string
	Data   json.RawMessage
	Remote string
	// WorkerID is the index bound to the connection by a hello, 0 before one.
	WorkerID int
}

func newEnvelope(msgType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Data: data}, nil
}

// encodeFrame renders payload as a complete envelope frame.
func encodeFrame(msgType string, payload interface{}) ([]byte, error) {
	env, err := newEnvelope(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return frame, nil
}
