// Package notify fans automation events out to connected UI clients over
// server-sent events. The hub is the NotificationSink for the coordinator:
// broadcasting never blocks and never fails the caller.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gbp_responder/internal/adapters/observability"
	"gbp_responder/internal/domain"
)

const clientBuffer = 16

type Stats struct {
	TotalReceived    int       `json:"totalReceived"`
	ReviewsProcessed int       `json:"reviewsProcessed"`
	LastWebhook      time.Time `json:"lastWebhook"`
	Errors           int       `json:"errors"`
	ConnectedClients int       `json:"connectedClients"`
	UptimeSeconds    int       `json:"uptimeSeconds"`
}

type notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type Hub struct {
	mu        sync.Mutex
	clients   map[string]chan []byte
	total     int
	processed int
	lastHook  time.Time
	errors    int
	started   time.Time
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan []byte), started: time.Now()}
}

// Subscribe registers a client and returns its id, payload channel, and an
// unsubscribe func. The first payload is a greeting carrying current stats.
func (h *Hub) Subscribe() (string, <-chan []byte, func()) {
	id := uuid.NewString()
	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	h.clients[id] = ch
	greeting, err := json.Marshal(notification{
		ID:   uuid.NewString(),
		Type: "connection_established",
		Data: map[string]any{
			"message": "Real-time webhook notifications active",
			"stats":   h.statsLocked(),
		},
		Timestamp: time.Now(),
	})
	h.mu.Unlock()

	if err == nil {
		ch <- greeting
	}
	log.Info().Str("client", id).Msg("notification client connected")

	return id, ch, func() {
		h.mu.Lock()
		if c, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(c)
		}
		h.mu.Unlock()
		log.Info().Str("client", id).Msg("notification client disconnected")
	}
}

// Emit broadcasts an automation event to every connected client. Clients that
// cannot keep up are dropped rather than blocking the coordinator.
func (h *Hub) Emit(ev domain.AutomationEvent) {
	observability.ObserveAutomation(string(ev.Kind))

	b, err := json.Marshal(notification{
		ID:        uuid.NewString(),
		Type:      eventType(ev.Kind),
		Data:      ev,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.mu.Lock()
		h.errors++
		h.mu.Unlock()
		log.Error().Err(err).Msg("notification marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- b:
			observability.ObserveNotification("sent")
		default:
			delete(h.clients, id)
			close(ch)
			observability.ObserveNotification("dropped")
			log.Warn().Str("client", id).Msg("slow notification client dropped")
		}
	}
}

func eventType(k domain.EventKind) string {
	switch k {
	case domain.EventSuccess:
		return "automation_success"
	case domain.EventError:
		return "automation_error"
	case domain.EventUrgent:
		return "urgent_review"
	}
	return string(k)
}

// RecordWebhook counts an inbound webhook; isReview marks it as carrying a
// review payload.
func (h *Hub) RecordWebhook(isReview bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.lastHook = time.Now()
	if isReview {
		h.processed++
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statsLocked()
}

func (h *Hub) statsLocked() Stats {
	return Stats{
		TotalReceived:    h.total,
		ReviewsProcessed: h.processed,
		LastWebhook:      h.lastHook,
		Errors:           h.errors,
		ConnectedClients: len(h.clients),
		UptimeSeconds:    int(time.Since(h.started).Seconds()),
	}
}

// Remaining describes how much of the response deadline is left for a review.
type Remaining struct {
	Ms      int64 `json:"remainingMs"`
	Minutes int   `json:"remainingMinutes"`
	Urgent  bool  `json:"isUrgent"`
	Expired bool  `json:"isExpired"`
}

// TimeRemaining computes the countdown payload attached to urgent
// notifications and webhook acknowledgements.
func TimeRemaining(createdAt time.Time, deadline, urgentWindow time.Duration, now time.Time) Remaining {
	left := deadline - now.Sub(createdAt)
	mins := int((left + time.Minute/2) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	return Remaining{
		Ms:      left.Milliseconds(),
		Minutes: mins,
		Urgent:  left < urgentWindow,
		Expired: left <= 0,
	}
}
