package notify_test

import (
	"encoding/json"
	"testing"
	"time"

	"gbp_responder/internal/adapters/notify"
	"gbp_responder/internal/domain"
)

type payload struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func recv(t *testing.T, ch <-chan []byte) payload {
	t.Helper()
	select {
	case b := <-ch:
		var p payload
		if err := json.Unmarshal(b, &p); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		return p
	case <-time.After(time.Second):
		t.Fatalf("no payload within 1s")
		return payload{}
	}
}

func TestSubscribe_GreetsWithStats(t *testing.T) {
	h := notify.NewHub()
	_, ch, cancel := h.Subscribe()
	defer cancel()

	p := recv(t, ch)
	if p.Type != "connection_established" {
		t.Fatalf("expected greeting, got %q", p.Type)
	}
	var data struct {
		Message string       `json:"message"`
		Stats   notify.Stats `json:"stats"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		t.Fatalf("bad greeting data: %v", err)
	}
	if data.Stats.ConnectedClients != 1 {
		t.Fatalf("expected 1 connected client, got %d", data.Stats.ConnectedClients)
	}
}

func TestEmit_BroadcastsTypedEvents(t *testing.T) {
	h := notify.NewHub()
	_, ch, cancel := h.Subscribe()
	defer cancel()
	recv(t, ch) // greeting

	for kind, wantType := range map[domain.EventKind]string{
		domain.EventSuccess: "automation_success",
		domain.EventError:   "automation_error",
		domain.EventUrgent:  "urgent_review",
	} {
		h.Emit(domain.AutomationEvent{Kind: kind, ReviewID: "r1", Rating: 5, At: time.Now()})
		p := recv(t, ch)
		if p.Type != wantType {
			t.Fatalf("kind %s: expected type %q, got %q", kind, wantType, p.Type)
		}
		var ev domain.AutomationEvent
		if err := json.Unmarshal(p.Data, &ev); err != nil {
			t.Fatalf("bad event data: %v", err)
		}
		if ev.ReviewID != "r1" || ev.Kind != kind {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
}

func TestEmit_DropsSlowClient(t *testing.T) {
	h := notify.NewHub()
	_, ch, cancel := h.Subscribe()
	defer cancel()
	recv(t, ch) // greeting

	// Never read again: the buffer fills and the client gets dropped instead
	// of blocking Emit.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			h.Emit(domain.AutomationEvent{Kind: domain.EventSuccess, ReviewID: "r1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked on a slow client")
	}

	if got := h.Stats().ConnectedClients; got != 0 {
		t.Fatalf("slow client should have been dropped, still %d connected", got)
	}
}

func TestRecordWebhook_Stats(t *testing.T) {
	h := notify.NewHub()
	h.RecordWebhook(true)
	h.RecordWebhook(false)
	h.RecordWebhook(true)

	st := h.Stats()
	if st.TotalReceived != 3 || st.ReviewsProcessed != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.LastWebhook.IsZero() {
		t.Fatalf("lastWebhook not recorded")
	}
}

func TestTimeRemaining(t *testing.T) {
	now := time.Now()
	deadline := 10 * time.Minute
	window := 2 * time.Minute

	fresh := notify.TimeRemaining(now.Add(-time.Minute), deadline, window, now)
	if fresh.Urgent || fresh.Expired || fresh.Minutes != 9 {
		t.Fatalf("unexpected fresh countdown: %+v", fresh)
	}

	urgent := notify.TimeRemaining(now.Add(-9*time.Minute), deadline, window, now)
	if !urgent.Urgent || urgent.Expired {
		t.Fatalf("unexpected urgent countdown: %+v", urgent)
	}

	expired := notify.TimeRemaining(now.Add(-15*time.Minute), deadline, window, now)
	if !expired.Expired || !expired.Urgent || expired.Minutes != 0 {
		t.Fatalf("unexpected expired countdown: %+v", expired)
	}
	if expired.Ms >= 0 {
		t.Fatalf("expired countdown should be negative in ms: %+v", expired)
	}
}
