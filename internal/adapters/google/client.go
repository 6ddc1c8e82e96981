// Package google implements the ReviewGateway against the Business Profile
// APIs: account/location listing on the v1 information API, reviews and
// replies on the v4 API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"gbp_responder/internal/adapters/httpx"
	"gbp_responder/internal/adapters/observability"
	"gbp_responder/internal/domain"
)

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

// New builds a live gateway. ts supplies OAuth2 access tokens; the
// authorization-code exchange that produced them lives outside this module.
func New(base string, ts oauth2.TokenSource, rps int) *Client {
	if base == "" {
		base = "https://mybusiness.googleapis.com"
	}
	if rps <= 0 {
		rps = 5
	}
	hc := &http.Client{Timeout: 20 * time.Second}
	if ts != nil {
		hc = oauth2.NewClient(context.Background(), ts)
		hc.Timeout = 20 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   hc,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// ---- wire shapes ----

type accountResource struct {
	Name        string `json:"name"`
	AccountName string `json:"accountName"`
	Type        string `json:"type"`
}

type locationResource struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// ReviewResource is the v4 review payload; also decoded from webhook bodies.
type ReviewResource struct {
	Name       string    `json:"name"`
	StarRating string    `json:"starRating"`
	Comment    string    `json:"comment"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
	Reviewer   struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"reviewer"`
	ReviewReply *struct {
		Comment    string    `json:"comment"`
		UpdateTime time.Time `json:"updateTime"`
	} `json:"reviewReply"`
}

// StarValue maps the wire enum to 1..5; unknown values map to 0.
func StarValue(s string) int {
	switch s {
	case "FIVE":
		return 5
	case "FOUR":
		return 4
	case "THREE":
		return 3
	case "TWO":
		return 2
	case "ONE":
		return 1
	}
	return 0
}

// Domain converts the wire review into the core model.
func (r ReviewResource) Domain(locationID string) domain.Review {
	rv := domain.Review{
		ID:         r.Name,
		LocationID: locationID,
		Rating:     StarValue(r.StarRating),
		Text:       r.Comment,
		Reviewer:   r.Reviewer.DisplayName,
		CreatedAt:  r.CreateTime,
	}
	if r.ReviewReply != nil {
		rv.Reply = &domain.Reply{Text: r.ReviewReply.Comment, UpdatedAt: r.ReviewReply.UpdateTime}
	}
	return rv
}

// ---- gateway surface ----

func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var out struct {
		Accounts []accountResource `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, c.base+"/v1/accounts", "accounts", nil, &out); err != nil {
		return nil, err
	}
	accts := make([]domain.Account, 0, len(out.Accounts))
	for _, a := range out.Accounts {
		name := a.AccountName
		if name == "" {
			name = "Unnamed Business"
		}
		accts = append(accts, domain.Account{ID: a.Name, Name: name})
	}
	return accts, nil
}

func (c *Client) ListLocations(ctx context.Context, accountID string) ([]domain.Location, error) {
	var out struct {
		Locations []locationResource `json:"locations"`
	}
	url := fmt.Sprintf("%s/v1/%s/locations?readMask=name,title", c.base, accountID)
	if err := c.do(ctx, http.MethodGet, url, "locations", nil, &out); err != nil {
		return nil, err
	}
	locs := make([]domain.Location, 0, len(out.Locations))
	for _, l := range out.Locations {
		locs = append(locs, domain.Location{ID: l.Name, AccountID: accountID, Name: l.Title})
	}
	return locs, nil
}

func (c *Client) ListReviews(ctx context.Context, locationID string) ([]domain.Review, error) {
	var out struct {
		Reviews []ReviewResource `json:"reviews"`
	}
	url := fmt.Sprintf("%s/v4/%s/reviews", c.base, locationID)
	if err := c.do(ctx, http.MethodGet, url, "reviews", nil, &out); err != nil {
		return nil, err
	}
	revs := make([]domain.Review, 0, len(out.Reviews))
	for _, r := range out.Reviews {
		revs = append(revs, r.Domain(locationID))
	}
	return revs, nil
}

func (c *Client) PostReply(ctx context.Context, reviewID, text string) error {
	return c.putReply(ctx, reviewID, text)
}

// UpdateReply and PostReply are the same PUT upsert on this API.
func (c *Client) UpdateReply(ctx context.Context, reviewID, text string) error {
	return c.putReply(ctx, reviewID, text)
}

func (c *Client) putReply(ctx context.Context, reviewID, text string) error {
	url := fmt.Sprintf("%s/v4/%s/reply", c.base, reviewID)
	body := map[string]string{"comment": text}
	return c.do(ctx, http.MethodPut, url, "reply", body, nil)
}

func (c *Client) DeleteReply(ctx context.Context, reviewID string) error {
	url := fmt.Sprintf("%s/v4/%s/reply", c.base, reviewID)
	return c.do(ctx, http.MethodDelete, url, "reply", nil, nil)
}

// do performs one API call with client-side rate limiting and retries on 429
// and transient 5xx, honoring Retry-After. Non-retryable rejections surface
// as *domain.APIError.
func (c *Client) do(ctx context.Context, method, url, endpoint string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && httpx.SleepCtx(ctx, httpx.Backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal("google", endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case httpx.Retryable(resp.StatusCode):
			wait := httpx.RetryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = httpx.Backoff(i)
			}
			lastErr = &domain.APIError{Status: resp.StatusCode, Message: "transient failure"}
			if i < 3 && httpx.SleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
		}
	}
	return lastErr
}
