package google

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gbp_responder/internal/domain"
)

// Mock is the gateway variant for running without Google credentials. It
// serves a small fixed listing tree and records replies in memory. Reviews
// live in byID; order keeps per-location insertion order for listings, so
// mutations through PostReply and DeleteReply always show up in ListReviews.
type Mock struct {
	mu       sync.Mutex
	accounts []domain.Account
	locs     map[string][]domain.Location // accountID -> locations
	order    map[string][]string          // locationID -> review ids, insertion order
	byID     map[string]*domain.Review
	posted   map[string]string // reviewID -> reply text
}

// NewMock seeds one account with one location and a spread of sample reviews.
func NewMock() *Mock {
	m := NewMockEmpty()
	acct := domain.Account{ID: "accounts/mock-1", Name: "Demo Business"}
	loc := domain.Location{ID: "accounts/mock-1/locations/loc-1", AccountID: acct.ID, Name: "Demo Business - Downtown"}
	m.accounts = append(m.accounts, acct)
	m.locs[acct.ID] = []domain.Location{loc}

	now := time.Now()
	for _, rv := range []domain.Review{
		{
			ID: loc.ID + "/reviews/rev-1", LocationID: loc.ID, Rating: 5,
			Text: "Amazing service and wonderful staff!", Reviewer: "Sarah Johnson",
			CreatedAt: now.Add(-3 * time.Minute),
		},
		{
			ID: loc.ID + "/reviews/rev-2", LocationID: loc.ID, Rating: 4,
			Text: "Great experience overall, will come back.", Reviewer: "Mike Chen",
			CreatedAt: now.Add(-20 * time.Minute),
		},
		{
			ID: loc.ID + "/reviews/rev-3", LocationID: loc.ID, Rating: 2,
			Text: "Waited far too long and my order was wrong.", Reviewer: "Emma Davis",
			CreatedAt: now.Add(-45 * time.Minute),
		},
	} {
		m.AddReview(rv)
	}
	return m
}

func NewMockEmpty() *Mock {
	return &Mock{
		locs:   make(map[string][]domain.Location),
		order:  make(map[string][]string),
		byID:   make(map[string]*domain.Review),
		posted: make(map[string]string),
	}
}

// AddReview inserts (or replaces) a review in the mock listing.
func (m *Mock) AddReview(rv domain.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byID[rv.ID]; ok {
		*old = rv
		return
	}
	m.order[rv.LocationID] = append(m.order[rv.LocationID], rv.ID)
	m.byID[rv.ID] = &rv
}

// Posted returns a copy of the replies recorded so far.
func (m *Mock) Posted() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.posted))
	for k, v := range m.posted {
		out[k] = v
	}
	return out
}

func (m *Mock) ListAccounts(_ context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Account(nil), m.accounts...), nil
}

func (m *Mock) ListLocations(_ context.Context, accountID string) ([]domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Location(nil), m.locs[accountID]...), nil
}

func (m *Mock) ListReviews(_ context.Context, locationID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Review, 0, len(m.order[locationID]))
	for _, id := range m.order[locationID] {
		out = append(out, *m.byID[id])
	}
	return out, nil
}

func (m *Mock) PostReply(_ context.Context, reviewID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.byID[reviewID]
	if !ok {
		return &domain.APIError{Status: http.StatusNotFound, Message: "review not found"}
	}
	m.posted[reviewID] = text
	rv.Reply = &domain.Reply{Text: text, UpdatedAt: time.Now()}
	return nil
}

func (m *Mock) UpdateReply(ctx context.Context, reviewID, text string) error {
	return m.PostReply(ctx, reviewID, text)
}

func (m *Mock) DeleteReply(_ context.Context, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.byID[reviewID]
	if !ok {
		return &domain.APIError{Status: http.StatusNotFound, Message: "review not found"}
	}
	rv.Reply = nil
	delete(m.posted, reviewID)
	return nil
}
