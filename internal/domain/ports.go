package domain

import "context"

// ReviewGateway is the business-listing API surface the automation core
// depends on. Implementations: the live Business Profile client and a mock
// variant selected by configuration.
type ReviewGateway interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListLocations(ctx context.Context, accountID string) ([]Location, error)
	ListReviews(ctx context.Context, locationID string) ([]Review, error)
	PostReply(ctx context.Context, reviewID, text string) error
	UpdateReply(ctx context.Context, reviewID, text string) error
	DeleteReply(ctx context.Context, reviewID string) error
}

// Completer is a generative text backend. A failed or empty completion is
// recovered with fallback text by the generator, never surfaced to callers.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Ledger tracks which reviews have been handled. TryClaim is the sole
// synchronization point between the polling and webhook trigger paths: it
// must atomically record id and report whether this caller won the claim.
// Entries are never removed within a process run.
type Ledger interface {
	TryClaim(ctx context.Context, id string) (bool, error)
	Size(ctx context.Context) (int, error)
}

// NotificationSink broadcasts automation events to subscribers. Emit is
// fire-and-forget: it must not block and swallows its own errors.
type NotificationSink interface {
	Emit(ev AutomationEvent)
}

// ActivityLog persists automation events for later inspection. Recording is
// best-effort; a failed write never fails the review being processed.
type ActivityLog interface {
	Record(ctx context.Context, ev AutomationEvent) error
	Recent(ctx context.Context, limit int) ([]AutomationEvent, error)
}
