// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
)

// maxBody caps remote responses.
const maxBody = 2 << 20

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("update server unavailable")

// Client fetches JSON documents from release servers.
type Client struct {
	http      *http.Client
	cb        *gobreaker.CircuitBreaker[[]byte]
	userAgent string
}

// NewClient creates a client. The breaker opens after five consecutive
// failures and retries after a minute.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "update-server",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Update circuit breaker state change")
		},
	})
	return &Client{http: &http.Client{Timeout: timeout}, cb: cb, userAgent: userAgent}
}

// State returns the breaker state ("closed", "half-open" or "open").
func (c *Client) State() string {
	return c.cb.State().String()
}

// FetchJSON GETs url and decodes the body into v.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.get(ctx, url)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpdateChecks.WithLabelValues("breaker_open").Inc()
		return ErrUnavailable
	case err != nil:
		metrics.UpdateChecks.WithLabelValues("error").Inc()
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		metrics.UpdateChecks.WithLabelValues("error").Inc()
		return fmt.Errorf("invalid JSON from %s: %w", url, err)
	}
	metrics.UpdateChecks.WithLabelValues("ok").Inc()
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, nil
}
