package domain

import "time"

// Review is one customer review on a business listing. Instances come from the
// gateway or a webhook payload and are read-only to the core; a reply is posted
// back through the gateway, never written into this struct.
type Review struct {
	ID         string    // opaque stable identifier, dedupe key
	LocationID string    // owning location
	Rating     int       // 1..5
	Text       string    // may be empty
	Reviewer   string    // display name, may be empty
	CreatedAt  time.Time // source of truth for the response deadline
	Reply      *Reply    // non-nil means the review is already answered
}

// DisplayName returns the reviewer name, defaulting when absent.
func (r Review) DisplayName() string {
	if r.Reviewer == "" {
		return "Anonymous"
	}
	return r.Reviewer
}

type Reply struct {
	Text      string
	UpdatedAt time.Time
}

type Account struct {
	ID   string // resource name, e.g. "accounts/123"
	Name string
}

type Location struct {
	ID        string // resource name, e.g. "accounts/123/locations/456"
	AccountID string
	Name      string
}

// Draft is a generated (or fallback) reply candidate. Confidence is
// informational only and never gates posting.
type Draft struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}
