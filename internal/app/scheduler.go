package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"gbp_responder/internal/domain"
)

// Scheduler periodically walks accounts, locations and reviews and feeds
// unseen reviews into the coordinator. A webhook path bypasses the listing
// step with urgency pre-flagged. Tick failures never cancel the timer.
type Scheduler struct {
	coord    *Coordinator
	gateway  domain.ReviewGateway
	interval time.Duration
	sem      *semaphore.Weighted

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	lastCheck time.Time
}

func NewScheduler(coord *Coordinator, gw domain.ReviewGateway, interval time.Duration, workers int) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if workers <= 0 {
		workers = 8
	}
	return &Scheduler{
		coord:    coord,
		gateway:  gw,
		interval: interval,
		sem:      semaphore.NewWeighted(int64(workers)),
	}
}

// Start applies the settings patch and begins polling. Idempotent: calling
// while already running is a logged no-op. One tick runs synchronously before
// the recurring timer is armed.
func (s *Scheduler) Start(p domain.SettingsPatch) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Info().Msg("automation already running")
		return nil
	}
	if err := s.coord.Ready(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.coord.UpdateSettings(p)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	st := s.coord.Settings()
	log.Info().Dur("interval", s.interval).Bool("autoRespond", st.AutoRespond).
		Str("tone", st.Tone).Str("template", st.ResponseTemplate).
		Msg("automation started")

	s.tick(ctx)
	go s.loop(ctx)
	return nil
}

// Stop cancels the timer. In-flight review processing already dispatched runs
// to completion. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	log.Info().Msg("automation stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Status(ctx context.Context) domain.AutomationStatus {
	s.mu.Lock()
	running, last := s.running, s.lastCheck
	s.mu.Unlock()
	return domain.AutomationStatus{
		IsRunning:      running,
		ProcessedCount: s.coord.LedgerSize(ctx),
		LastCheckTime:  last,
		Settings:       s.coord.Settings(),
	}
}

// UpdateSettings merges the patch and starts or stops polling when
// autoRespond is toggled.
func (s *Scheduler) UpdateSettings(p domain.SettingsPatch) domain.AutomationSettings {
	st := s.coord.UpdateSettings(p)
	if p.AutoRespond != nil {
		if *p.AutoRespond && !s.Running() {
			if err := s.Start(domain.SettingsPatch{}); err != nil {
				log.Error().Err(err).Msg("auto-start after settings update failed")
			}
		} else if !*p.AutoRespond && s.Running() {
			s.Stop()
		}
	}
	return st
}

// HandleWebhookReview is the direct urgent-path entry point; the payload
// already carries createdAt so listing is skipped entirely.
func (s *Scheduler) HandleWebhookReview(ctx context.Context, rv domain.Review) (Outcome, error) {
	return s.coord.HandleUrgent(ctx, rv)
}

func (s *Scheduler) loop(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick lists everything and dispatches unseen reviews. An auth failure
// short-circuits the whole tick; any other failure is scoped to its branch.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.coord.Settings().AutoRespond {
		return
	}
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()

	accounts, err := s.gateway.ListAccounts(ctx)
	if err != nil {
		if domain.IsAuthError(err) {
			log.Warn().Err(err).Msg("gateway not authenticated, skipping review check")
		} else {
			log.Error().Err(err).Msg("list accounts failed")
		}
		return
	}

	for _, acct := range accounts {
		locs, err := s.gateway.ListLocations(ctx, acct.ID)
		if err != nil {
			if domain.IsAuthError(err) {
				log.Warn().Err(err).Msg("gateway not authenticated, aborting tick")
				return
			}
			log.Error().Str("account", acct.ID).Err(err).Msg("list locations failed")
			continue
		}
		for _, loc := range locs {
			revs, err := s.gateway.ListReviews(ctx, loc.ID)
			if err != nil {
				if domain.IsAuthError(err) {
					log.Warn().Err(err).Msg("gateway not authenticated, aborting tick")
					return
				}
				log.Error().Str("location", loc.ID).Err(err).Msg("list reviews failed")
				continue
			}
			for _, rv := range revs {
				s.dispatch(ctx, rv)
			}
		}
	}
}

// dispatch hands a review to the coordinator on its own goroutine, bounded by
// the worker semaphore. The handle itself runs on a background context so
// stopping the scheduler never cancels work already in flight.
func (s *Scheduler) dispatch(ctx context.Context, rv domain.Review) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return // scheduler stopping
	}
	go func(rv domain.Review) {
		defer s.sem.Release(1)
		if _, err := s.coord.Handle(context.Background(), rv); err != nil {
			log.Warn().Str("review", rv.ID).Err(err).Msg("review handling failed")
		}
	}(rv)
}
