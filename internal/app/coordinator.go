package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gbp_responder/internal/domain"
)

// Outcome is the terminal state of one Handle call.
type Outcome string

const (
	OutcomeResponded      Outcome = "responded"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeFailed         Outcome = "failed"
	OutcomeDisabled       Outcome = "disabled"
	OutcomeAlreadyReplied Outcome = "already_replied"
)

// Options tunes the coordinator's timing. Zero deadline and urgency window
// take the defaults (10m and 2m); a zero delay range disables the natural
// delay entirely.
type Options struct {
	Deadline     time.Duration
	UrgentWindow time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
	Now          func() time.Time
}

// Coordinator decides, per review, whether and when to generate and post a
// response. The ledger claim is the sole synchronization point between the
// polling and webhook trigger paths; settings are read as a snapshot at the
// start of each Handle call.
type Coordinator struct {
	gateway  domain.ReviewGateway
	gen      *Generator
	ledger   domain.Ledger
	sink     domain.NotificationSink
	activity domain.ActivityLog

	deadline     time.Duration
	urgentWindow time.Duration
	delayMin     time.Duration
	delayMax     time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	settings domain.AutomationSettings
}

func NewCoordinator(gw domain.ReviewGateway, gen *Generator, ledger domain.Ledger,
	sink domain.NotificationSink, activity domain.ActivityLog, opts Options) *Coordinator {

	if opts.Deadline <= 0 {
		opts.Deadline = 10 * time.Minute
	}
	if opts.UrgentWindow <= 0 {
		opts.UrgentWindow = 2 * time.Minute
	}
	if opts.DelayMin < 0 {
		opts.DelayMin = 0
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		gateway:      gw,
		gen:          gen,
		ledger:       ledger,
		sink:         sink,
		activity:     activity,
		deadline:     opts.Deadline,
		urgentWindow: opts.UrgentWindow,
		delayMin:     opts.DelayMin,
		delayMax:     opts.DelayMax,
		now:          opts.Now,
		settings:     domain.DefaultSettings(),
	}
}

// Ready reports whether the coordinator can post replies.
func (c *Coordinator) Ready() error {
	if c.gateway == nil || c.ledger == nil {
		return fmt.Errorf("%w: gateway or ledger missing", domain.ErrNotConfigured)
	}
	if !c.gen.Ready() {
		return fmt.Errorf("%w: generation backend missing", domain.ErrNotConfigured)
	}
	return nil
}

func (c *Coordinator) Settings() domain.AutomationSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings merges p into the live settings and returns the result.
// Changes apply from the next Handle call onward.
func (c *Coordinator) UpdateSettings(p domain.SettingsPatch) domain.AutomationSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = c.settings.Apply(p)
	return c.settings
}

// ShouldRespond applies the eligibility rules: 5-star always, 4-star and
// low ratings behind their settings gates.
func ShouldRespond(rating int, st domain.AutomationSettings) bool {
	switch {
	case rating == 5:
		return true
	case rating == 4:
		return st.RespondToFourStar
	case rating <= 3:
		return st.RespondToLowRatings
	}
	return false
}

// Handle runs the full per-review state machine. Eligible reviews are claimed
// exactly once; a duplicate claim returns immediately with no side effects.
func (c *Coordinator) Handle(ctx context.Context, rv domain.Review) (Outcome, error) {
	return c.handle(ctx, rv, false)
}

// HandleUrgent is the webhook fast path: urgency is pre-flagged and the
// natural delay is skipped.
func (c *Coordinator) HandleUrgent(ctx context.Context, rv domain.Review) (Outcome, error) {
	return c.handle(ctx, rv, true)
}

func (c *Coordinator) handle(ctx context.Context, rv domain.Review, forceUrgent bool) (Outcome, error) {
	st := c.Settings()
	if !st.AutoRespond {
		return OutcomeDisabled, nil
	}

	if rv.Reply != nil {
		// Already answered: claim so the next poll stops revisiting it.
		if _, err := c.ledger.TryClaim(ctx, rv.ID); err != nil {
			return OutcomeFailed, fmt.Errorf("claim %s: %w", rv.ID, err)
		}
		return OutcomeAlreadyReplied, nil
	}

	if !ShouldRespond(rv.Rating, st) {
		if _, err := c.ledger.TryClaim(ctx, rv.ID); err != nil {
			return OutcomeFailed, fmt.Errorf("claim %s: %w", rv.ID, err)
		}
		log.Debug().Str("review", rv.ID).Int("rating", rv.Rating).Msg("review not eligible, skipped")
		return OutcomeSkipped, nil
	}

	ok, err := c.ledger.TryClaim(ctx, rv.ID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("claim %s: %w", rv.ID, err)
	}
	if !ok {
		return OutcomeDuplicate, nil
	}

	elapsed := c.now().Sub(rv.CreatedAt)
	urgent := forceUrgent || elapsed > c.deadline-c.urgentWindow
	if urgent {
		if elapsed > c.deadline {
			log.Warn().Str("review", rv.ID).Dur("elapsed", elapsed).
				Msg("review past response deadline, replying late")
		}
		c.emit(ctx, domain.AutomationEvent{
			Kind:     domain.EventUrgent,
			ReviewID: rv.ID,
			Rating:   rv.Rating,
			Reviewer: rv.DisplayName(),
			At:       c.now(),
		})
	} else if d := c.responseDelay(elapsed); d > 0 {
		if !sleepCtx(ctx, d) {
			return OutcomeFailed, ctx.Err()
		}
	}

	draft := c.gen.Draft(ctx, rv, st)

	if err := c.gateway.PostReply(ctx, rv.ID, draft.Text); err != nil {
		c.emit(ctx, domain.AutomationEvent{
			Kind:     domain.EventError,
			ReviewID: rv.ID,
			Rating:   rv.Rating,
			Reviewer: rv.DisplayName(),
			Error:    err.Error(),
			At:       c.now(),
		})
		return OutcomeFailed, fmt.Errorf("post reply %s: %w", rv.ID, err)
	}

	c.emit(ctx, domain.AutomationEvent{
		Kind:     domain.EventSuccess,
		ReviewID: rv.ID,
		Rating:   rv.Rating,
		Reviewer: rv.DisplayName(),
		Response: draft.Text,
		Latency:  c.now().Sub(rv.CreatedAt),
		At:       c.now(),
	})
	log.Info().Str("review", rv.ID).Int("rating", rv.Rating).Bool("fallback", draft.Fallback).
		Msg("auto-response posted")
	return OutcomeResponded, nil
}

// ProcessManually drafts a reply without claiming the ledger or posting
// anything; the preview path for test UIs.
func (c *Coordinator) ProcessManually(ctx context.Context, rv domain.Review) domain.Draft {
	return c.gen.Draft(ctx, rv, c.Settings())
}

// LedgerSize returns the number of handled reviews this process run.
func (c *Coordinator) LedgerSize(ctx context.Context) int {
	n, err := c.ledger.Size(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ledger size failed")
		return 0
	}
	return n
}

// responseDelay picks a natural-looking delay, clamped so the review never
// drifts into its urgency window while waiting.
func (c *Coordinator) responseDelay(elapsed time.Duration) time.Duration {
	budget := c.deadline - c.urgentWindow - elapsed
	if budget <= 0 {
		return 0
	}
	d := c.delayMin
	if span := c.delayMax - c.delayMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d > budget {
		d = budget
	}
	return d
}

func (c *Coordinator) emit(ctx context.Context, ev domain.AutomationEvent) {
	if c.sink != nil {
		c.sink.Emit(ev)
	}
	if c.activity != nil {
		if err := c.activity.Record(ctx, ev); err != nil {
			log.Warn().Err(err).Str("review", ev.ReviewID).Msg("activity record failed")
		}
	}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
