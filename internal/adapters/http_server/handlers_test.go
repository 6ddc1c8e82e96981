package httpserver_test

import (
	"bufio"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gbp_responder/internal/adapters/google"
	server "gbp_responder/internal/adapters/http_server"
	"gbp_responder/internal/adapters/notify"
	"gbp_responder/internal/app"
	"gbp_responder/internal/domain"
)

type scriptedCompleter struct{ out string }

func (s *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	return s.out, nil
}

type env struct {
	ts    *httptest.Server
	mock  *google.Mock
	sched *app.Scheduler
	hub   *notify.Hub
}

func newEnv(t *testing.T, secret string) *env {
	t.Helper()
	mock := google.NewMockEmpty()
	hub := notify.NewHub()
	gen := app.NewGenerator(&scriptedCompleter{out: "Thank you for visiting!"}, time.Second)
	coord := app.NewCoordinator(mock, gen, app.NewMemoryLedger(), hub, nil, app.Options{
		DelayMin: 0,
		DelayMax: 0,
	})
	sched := app.NewScheduler(coord, mock, time.Hour, 2)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{
		Sched:         sched,
		Coord:         coord,
		Hub:           hub,
		WebhookSecret: secret,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(func() {
		sched.Stop()
		ts.Close()
	})
	return &env{ts: ts, mock: mock, sched: sched, hub: hub}
}

func (e *env) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	return e.request(t, http.MethodPost, path, body, nil)
}

func (e *env) request(t *testing.T, method, path, body string, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func startAutomation(t *testing.T, e *env) {
	t.Helper()
	resp, body := e.post(t, "/v1/automation/start",
		`{"settings":{"autoRespond":true,"respondToFourStar":true,"respondToLowRatings":true}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("start failed: %d %s", resp.StatusCode, body)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within 2s")
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t, "")

	resp, body := e.request(t, http.MethodGet, "/v1/automation/status", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var st domain.AutomationStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.IsRunning || st.ProcessedCount != 0 {
		t.Fatalf("unexpected idle status: %+v", st)
	}

	startAutomation(t, e)
	_, body = e.request(t, http.MethodGet, "/v1/automation/status", "", nil)
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.IsRunning || !st.Settings.AutoRespond {
		t.Fatalf("expected running status: %+v", st)
	}
}

func TestStartStop(t *testing.T) {
	e := newEnv(t, "")
	startAutomation(t, e)
	if !e.sched.Running() {
		t.Fatalf("expected scheduler running")
	}

	resp, _ := e.post(t, "/v1/automation/stop", "")
	if resp.StatusCode != 200 {
		t.Fatalf("stop: %d", resp.StatusCode)
	}
	if e.sched.Running() {
		t.Fatalf("expected scheduler stopped")
	}
}

func TestSettingsEndpoint(t *testing.T) {
	e := newEnv(t, "")

	resp, body := e.request(t, http.MethodPut, "/v1/automation/settings",
		`{"settings":{"tone":"friendly","respondToFourStar":true}}`, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("settings: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Settings domain.AutomationSettings `json:"settings"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Settings.Tone != "friendly" || !out.Settings.RespondToFourStar {
		t.Fatalf("patch not applied: %+v", out.Settings)
	}
	if out.Settings.Language != "english" {
		t.Fatalf("untouched fields must keep defaults: %+v", out.Settings)
	}
}

func TestTestEndpoint_DraftsWithoutPosting(t *testing.T) {
	e := newEnv(t, "")

	resp, body := e.post(t, "/v1/automation/test",
		`{"review":{"id":"r1","rating":5,"text":"Wonderful!","reviewerName":"Ana"}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("test: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Response domain.Draft `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Response.Text != "Thank you for visiting!" {
		t.Fatalf("unexpected draft: %+v", out.Response)
	}
	if len(e.mock.Posted()) != 0 {
		t.Fatalf("test endpoint must not post")
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(reviewID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"eventType":    "review.create",
		"locationName": "loc-1",
		"review": map[string]any{
			"name":       reviewID,
			"starRating": "FIVE",
			"comment":    "Fantastic!",
			"createTime": time.Now().UTC().Format(time.RFC3339),
			"reviewer":   map[string]any{"displayName": "Ana"},
		},
	})
	return b
}

func TestWebhook_PostsReplyOnUrgentPath(t *testing.T) {
	e := newEnv(t, "hook-secret")
	startAutomation(t, e)

	const id = "loc-1/reviews/hook-1"
	e.mock.AddReview(domain.Review{ID: id, LocationID: "loc-1", Rating: 5, CreatedAt: time.Now()})

	body := webhookBody(id)
	resp, out := e.request(t, http.MethodPost, "/v1/webhooks/google", string(body),
		map[string]string{"X-Goog-Signature": sign("hook-secret", body)})
	if resp.StatusCode != 200 {
		t.Fatalf("webhook: %d %s", resp.StatusCode, out)
	}
	var ack struct {
		Status        string           `json:"status"`
		TimeRemaining notify.Remaining `json:"timeRemaining"`
	}
	if err := json.Unmarshal(out, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "received" || ack.TimeRemaining.Expired {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	waitFor(t, func() bool { return e.mock.Posted()[id] != "" })
	if st := e.hub.Stats(); st.TotalReceived != 1 || st.ReviewsProcessed != 1 {
		t.Fatalf("unexpected webhook stats: %+v", st)
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	e := newEnv(t, "hook-secret")
	startAutomation(t, e)

	body := webhookBody("loc-1/reviews/hook-2")
	resp, _ := e.request(t, http.MethodPost, "/v1/webhooks/google", string(body),
		map[string]string{"X-Goog-Signature": sign("wrong-secret", body)})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if st := e.hub.Stats(); st.TotalReceived != 0 {
		t.Fatalf("rejected webhook must not count: %+v", st)
	}
}

func TestWebhook_NonReviewEventAcknowledged(t *testing.T) {
	e := newEnv(t, "")
	startAutomation(t, e)

	resp, _ := e.post(t, "/v1/webhooks/google", `{"eventType":"location.update"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("non-review events must still ack 200, got %d", resp.StatusCode)
	}
	if st := e.hub.Stats(); st.TotalReceived != 1 || st.ReviewsProcessed != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestWebhookStatsEndpoint(t *testing.T) {
	e := newEnv(t, "")
	e.hub.RecordWebhook(true)

	resp, body := e.request(t, http.MethodGet, "/v1/webhooks/stats", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("stats: %d", resp.StatusCode)
	}
	var st notify.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalReceived != 1 || st.ReviewsProcessed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestActivityEndpoint_NotConfigured(t *testing.T) {
	e := newEnv(t, "")
	resp, _ := e.request(t, http.MethodGet, "/v1/automation/activity", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without an activity store, got %d", resp.StatusCode)
	}
}

func TestNotificationStream_GreetsAndDelivers(t *testing.T) {
	e := newEnv(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.ts.URL+"/v1/notifications/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	readEvent := func() payloadLine {
		t.Helper()
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				var p payloadLine
				if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &p); err != nil {
					t.Fatalf("bad frame: %v", err)
				}
				return p
			}
		}
	}

	if p := readEvent(); p.Type != "connection_established" {
		t.Fatalf("expected greeting, got %q", p.Type)
	}

	waitFor(t, func() bool { return e.hub.Stats().ConnectedClients == 1 })
	e.hub.Emit(domain.AutomationEvent{Kind: domain.EventSuccess, ReviewID: "r1", At: time.Now()})
	if p := readEvent(); p.Type != "automation_success" {
		t.Fatalf("expected automation_success, got %q", p.Type)
	}
}

type payloadLine struct {
	Type string `json:"type"`
}
