package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PushStatus is the outcome of a single push attempt.
type PushStatus string

const (
	PushStatusSubmitted PushStatus = "SUBMITTED"
	PushStatusFailed    PushStatus = "FAILED"
)

// PushAttempt records one fetch → encode → submit cycle for a feed.
type PushAttempt struct {
	ID           uuid.UUID     `json:"id"`
	FeedID       string        `json:"feed_id"`
	PriceAccount string        `json:"price_account,omitempty"`
	Path         string        `json:"path"`
	Signature    string        `json:"signature,omitempty"`
	PayloadSize  int           `json:"payload_size"`
	Status       PushStatus    `json:"status"`
	Stage        string        `json:"stage,omitempty"` // failing stage, empty on success
	Error        string        `json:"error,omitempty"`
	Trigger      string        `json:"trigger"` // scheduler | manual | cli
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Succeeded reports whether the attempt reached the ledger.
func (a *PushAttempt) Succeeded() bool {
	return a != nil && a.Status == PushStatusSubmitted
}

// Envelope wraps published events.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Version   string          `json:"version"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewPushEnvelope builds the push.submitted / push.failed event for an attempt.
func NewPushEnvelope(source string, a *PushAttempt) (*Envelope, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	eventType := "push.submitted"
	if !a.Succeeded() {
		eventType = "push.failed"
	}
	return &Envelope{
		ID:        uuid.New(),
		EventType: eventType,
		Version:   "1.0.0",
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}
