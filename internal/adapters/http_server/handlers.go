package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"gbp_responder/internal/adapters/google"
	"gbp_responder/internal/adapters/notify"
	"gbp_responder/internal/app"
	"gbp_responder/internal/domain"
)

type Handlers struct {
	Sched    *app.Scheduler
	Coord    *app.Coordinator
	Hub      *notify.Hub
	Activity domain.ActivityLog // nil disables the activity route

	WebhookSecret string
	Deadline      time.Duration
	UrgentWindow  time.Duration
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.Deadline <= 0 {
		h.Deadline = 10 * time.Minute
	}
	if h.UrgentWindow <= 0 {
		h.UrgentWindow = 2 * time.Minute
	}

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(15 * time.Second))
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte("ok"))
		})
		r.Post("/v1/automation/start", h.start)
		r.Post("/v1/automation/stop", h.stop)
		r.Get("/v1/automation/status", h.status)
		r.Put("/v1/automation/settings", h.updateSettings)
		r.Post("/v1/automation/test", h.testDraft)
		r.Get("/v1/automation/activity", h.activity)
		r.Post("/v1/webhooks/google", h.googleWebhook)
		r.Get("/v1/webhooks/stats", h.webhookStats)
	})

	// The SSE stream stays outside the timeout wrapper.
	s.mux.Get("/v1/notifications/stream", h.stream)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// ---- automation control ----

type settingsBody struct {
	Settings domain.SettingsPatch `json:"settings"`
}

func (h *Handlers) start(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
			return
		}
	}
	if err := h.Sched.Start(body.Settings); err != nil {
		writeProblem(w, http.StatusConflict, "Start failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": h.Sched.Status(r.Context())})
}

func (h *Handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.Sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"status": h.Sched.Status(r.Context())})
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sched.Status(r.Context()))
}

func (h *Handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	st := h.Sched.UpdateSettings(body.Settings)
	writeJSON(w, http.StatusOK, map[string]any{"settings": st, "status": h.Sched.Status(r.Context())})
}

// ---- manual draft preview ----

type reviewRequest struct {
	ID           string    `json:"id"`
	LocationID   string    `json:"locationId"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	ReviewerName string    `json:"reviewerName"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (rr reviewRequest) domain() domain.Review {
	created := rr.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return domain.Review{
		ID:         rr.ID,
		LocationID: rr.LocationID,
		Rating:     rr.Rating,
		Text:       rr.Text,
		Reviewer:   rr.ReviewerName,
		CreatedAt:  created,
	}
}

func (h *Handlers) testDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Review reviewRequest `json:"review"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	// Generation only: no claim, no posting.
	draft := h.Coord.ProcessManually(r.Context(), body.Review.domain())
	writeJSON(w, http.StatusOK, map[string]any{"response": draft})
}

func (h *Handlers) activity(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "activity store not configured")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}
	events, err := h.Activity.Recent(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

// ---- webhooks ----

type webhookPayload struct {
	EventType    string                 `json:"eventType"`
	LocationName string                 `json:"locationName"`
	Review       *google.ReviewResource `json:"review"`
	Message      *struct {
		Attributes map[string]string `json:"attributes"`
		Data       []byte            `json:"data"` // base64 per pub/sub convention
	} `json:"message"`
}

// googleWebhook ingests push notifications. The body is verified against the
// shared HMAC secret when one is configured, and the endpoint always
// acknowledges with 200 so the sender does not retry.
func (h *Handlers) googleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if h.WebhookSecret != "" && !verifySignature(body, r.Header.Get("X-Goog-Signature"), h.WebhookSecret) {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid webhook signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Hub.RecordWebhook(false)
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "unparseable payload acknowledged"})
		return
	}

	rv, ok := extractReview(payload)
	h.Hub.RecordWebhook(ok)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "received"})
		return
	}

	// Ack immediately; the urgent path runs in the background so the sender
	// never waits on generation. A fresh context keeps the work alive after
	// this request returns.
	go func(rv domain.Review) {
		if _, err := h.Sched.HandleWebhookReview(context.Background(), rv); err != nil {
			log.Warn().Str("review", rv.ID).Err(err).Msg("webhook review handling failed")
		}
	}(rv)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "received",
		"timestamp":     time.Now().UTC(),
		"timeRemaining": notify.TimeRemaining(rv.CreatedAt, h.Deadline, h.UrgentWindow, time.Now()),
	})
}

func extractReview(p webhookPayload) (domain.Review, bool) {
	eventType := p.EventType
	res := p.Review
	locationID := p.LocationName

	if p.Message != nil {
		if eventType == "" {
			eventType = p.Message.Attributes["eventType"]
		}
		if locationID == "" {
			locationID = p.Message.Attributes["locationName"]
		}
		if res == nil && len(p.Message.Data) > 0 {
			var decoded google.ReviewResource
			if err := json.Unmarshal(p.Message.Data, &decoded); err == nil {
				res = &decoded
			}
		}
		if res != nil && res.Name == "" {
			res.Name = p.Message.Attributes["reviewName"]
		}
	}

	switch eventType {
	case "review.create", "review.updated", "":
		// fall through; an empty type with a review body is still a review
	default:
		log.Debug().Str("eventType", eventType).Msg("ignoring non-review webhook")
		return domain.Review{}, false
	}
	if res == nil || google.StarValue(res.StarRating) == 0 || res.ReviewReply != nil {
		return domain.Review{}, false
	}

	rv := res.Domain(locationID)
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now()
	}
	return rv, true
}

func verifySignature(body []byte, header, secret string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)
	provided, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}

func (h *Handlers) webhookStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Hub.Stats())
}

// ---- SSE stream ----

func (h *Handlers) stream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "response writer cannot flush")
		return
	}

	id, ch, cancel := h.Hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case b, open := <-ch:
			if !open {
				return // dropped as a slow consumer
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				log.Debug().Str("client", id).Err(err).Msg("sse write failed")
				return
			}
			fl.Flush()
		}
	}
}
