// Package httpx holds retry plumbing shared by the outbound HTTP clients.
package httpx

import (
	"context"
	crand "crypto/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SleepCtx waits for d or returns early if ctx is done. Reports whether the
// full wait elapsed.
func SleepCtx(ctx context.Context, d time.Duration) bool {
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

// RetryAfter parses a Retry-After header (seconds or HTTP-date). Returns 0 if
// absent or invalid.
func RetryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Backoff returns an exponential backoff delay with concurrency-safe jitter.
// i is the retry attempt (0,1,2,...): 200ms, 400ms, 800ms... plus up to +50%
// random jitter to avoid thundering herds.
func Backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}

// Retryable reports whether an HTTP status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
