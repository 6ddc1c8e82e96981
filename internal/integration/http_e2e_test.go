//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gbp_responder/internal/adapters/google"
	server "gbp_responder/internal/adapters/http_server"
	"gbp_responder/internal/adapters/notify"
	"gbp_responder/internal/app"
	"gbp_responder/internal/domain"
)

type cannedCompleter struct{}

func (cannedCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	return "Thank you for taking the time to share this with us!", nil
}

// Full wiring minus the live backends: mock gateway, in-memory ledger, canned
// generation. Drives the automation over HTTP the way the UI does.
func TestHTTP_EndToEnd_Automation(t *testing.T) {
	mock := google.NewMock()
	hub := notify.NewHub()
	gen := app.NewGenerator(cannedCompleter{}, time.Second)
	coord := app.NewCoordinator(mock, gen, app.NewMemoryLedger(), hub, nil, app.Options{
		DelayMin: 0,
		DelayMax: 0,
	})
	sched := app.NewScheduler(coord, mock, time.Hour, 4)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Sched: sched, Coord: coord, Hub: hub})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(func() {
		sched.Stop()
		ts.Close()
	})

	// Start with every rating band enabled; the first poll runs immediately.
	startBody := `{"settings":{"autoRespond":true,"respondToFourStar":true,"respondToLowRatings":true}}`
	resp, err := http.Post(ts.URL+"/v1/automation/start", "application/json", bytes.NewBufferString(startBody))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("start: %d", resp.StatusCode)
	}

	// The mock seeds three eligible reviews across the rating bands.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(mock.Posted()) == 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	posted := mock.Posted()
	if len(posted) != 3 {
		t.Fatalf("expected 3 replies, got %d: %v", len(posted), posted)
	}
	for id, text := range posted {
		if text == "" {
			t.Fatalf("empty reply for %s", id)
		}
	}

	// Status reflects the processed reviews.
	resp, err = http.Get(ts.URL + "/v1/automation/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st domain.AutomationStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if !st.IsRunning || st.ProcessedCount != 3 {
		t.Fatalf("unexpected status: %+v", st)
	}

	// A second poll cycle finds nothing new to do.
	resp, err = http.Post(ts.URL+"/v1/automation/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	resp.Body.Close()
	resp, err = http.Post(ts.URL+"/v1/automation/start", "application/json", bytes.NewBufferString(startBody))
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	resp.Body.Close()
	time.Sleep(100 * time.Millisecond)
	if len(mock.Posted()) != 3 {
		t.Fatalf("restart must not double-post: %v", mock.Posted())
	}
}

func TestHTTP_EndToEnd_WebhookUrgent(t *testing.T) {
	mock := google.NewMockEmpty()
	hub := notify.NewHub()
	gen := app.NewGenerator(cannedCompleter{}, time.Second)
	coord := app.NewCoordinator(mock, gen, app.NewMemoryLedger(), hub, nil, app.Options{
		DelayMin: time.Hour, // would hang if the urgent path did not skip it
		DelayMax: time.Hour,
	})
	sched := app.NewScheduler(coord, mock, time.Hour, 4)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Sched: sched, Coord: coord, Hub: hub})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(func() {
		sched.Stop()
		ts.Close()
	})

	startBody := `{"settings":{"autoRespond":true}}`
	resp, err := http.Post(ts.URL+"/v1/automation/start", "application/json", bytes.NewBufferString(startBody))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp.Body.Close()

	const id = "loc-9/reviews/hook-1"
	mock.AddReview(domain.Review{ID: id, LocationID: "loc-9", Rating: 5, CreatedAt: time.Now()})

	hook, _ := json.Marshal(map[string]any{
		"eventType":    "review.create",
		"locationName": "loc-9",
		"review": map[string]any{
			"name":       id,
			"starRating": "FIVE",
			"comment":    "Outstanding!",
			"createTime": time.Now().UTC().Format(time.RFC3339),
			"reviewer":   map[string]any{"displayName": "Ana"},
		},
	})
	resp, err = http.Post(ts.URL+"/v1/webhooks/google", "application/json", bytes.NewReader(hook))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("webhook: %d", resp.StatusCode)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if mock.Posted()[id] != "" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("webhook review was not answered: %v", mock.Posted())
}
