// Package openai is a minimal chat-completions client used as the generation
// backend. Rate-limited and retrying; callers treat any error as a signal to
// fall back to canned text.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gbp_responder/internal/adapters/httpx"
	"gbp_responder/internal/adapters/observability"
)

var (
	ErrUnauthorized    = errors.New("openai: unauthorized")
	ErrRateLimited     = errors.New("openai: rate limited")
	ErrEmptyCompletion = errors.New("openai: empty completion")
)

type Client struct {
	base  string
	key   string
	model string
	hc    *http.Client
	rl    *rate.Limiter
}

func New(base, key, model string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4"
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		key:   key,
		model: model,
		hc:    &http.Client{Timeout: 30 * time.Second},
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the completion text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	url := c.base + "/chat/completions"
	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			if i < 3 && httpx.SleepCtx(ctx, httpx.Backoff(i)) {
				continue
			}
			return "", lastErr
		}
		observability.ObserveExternal("openai", "chat_completions", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusOK:
			var out chatResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return "", err
			}
			if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
				return "", ErrEmptyCompletion
			}
			return strings.TrimSpace(out.Choices[0].Message.Content), nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return "", ErrUnauthorized

		case httpx.Retryable(resp.StatusCode):
			wait := httpx.RetryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = httpx.Backoff(i)
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = ErrRateLimited
			} else {
				lastErr = fmt.Errorf("openai: remote %d", resp.StatusCode)
			}
			if i < 3 && httpx.SleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", fmt.Errorf("openai: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return "", lastErr
}
