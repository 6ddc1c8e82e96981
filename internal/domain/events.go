package domain

import "time"

type EventKind string

const (
	EventSuccess EventKind = "success"
	EventError   EventKind = "error"
	EventUrgent  EventKind = "urgent"
)

// AutomationEvent is emitted for every notable automation outcome. Response is
// set on success, Error on failure; Latency is time from review creation to
// the posted reply.
type AutomationEvent struct {
	Kind     EventKind     `json:"kind"`
	ReviewID string        `json:"reviewId"`
	Rating   int           `json:"rating"`
	Reviewer string        `json:"reviewerName,omitempty"`
	Response string        `json:"responseText,omitempty"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latencyMs,omitempty"`
	At       time.Time     `json:"timestamp"`
}

// AutomationStatus is the host-facing snapshot of the scheduler and ledger.
type AutomationStatus struct {
	IsRunning      bool               `json:"isRunning"`
	ProcessedCount int                `json:"processedCount"`
	LastCheckTime  time.Time          `json:"lastCheckTime"`
	Settings       AutomationSettings `json:"settings"`
}
