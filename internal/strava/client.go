// Package strava is the thin HTTP client for the remote fitness API.
//
// Three read-only endpoints are used:
//
//	GET /athlete/activities?page=N&per_page=M   — paginated activity list
//	GET /activities/{id}                        — single activity detail
//	GET /activities/{id}/kudos                  — givers of kudos (names only)
//
// RETRY POLICY (per request):
//   - 401: refresh the access token exactly once and retry once. A second
//     401 means the refreshed token is also bad — fatal, a human must
//     re-authorize.
//   - 429: sleep a fixed cooldown (15 minutes by default) and retry, with
//     no retry cap and no backoff growth. This is a deliberate trade:
//     an offline batch job prefers eventual completion over bounded
//     latency. The sleep is context-aware, so cancellation still works.
//   - 403: the one resource is off limits (typically a private activity).
//     Returned as ErrForbidden so the caller can skip it and move on.
//   - anything else non-2xx: fatal HTTPError with status and body.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/kudoscope/internal/apperror"
	"github.com/sakif/kudoscope/internal/model"
)

// Credentials is the slice of the credential store the client needs.
type Credentials interface {
	Headers() (map[string]string, error)
	Refresh(ctx context.Context) error
}

// Client issues authenticated GET requests against the API.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	baseURL    string
	cooldown   time.Duration
	sleeper    Sleeper
	logger     *slog.Logger
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests use a
// httptest server's client).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleeper overrides the cooldown sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithCooldown overrides the 429 cooldown duration.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) { c.cooldown = d }
}

// NewClient creates an API client rooted at baseURL.
func NewClient(creds Credentials, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		baseURL:    baseURL,
		cooldown:   15 * time.Minute,
		sleeper:    RealSleeper{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activities fetches one page of the athlete's activity list. Derived
// fields are computed before the page is returned.
func (c *Client) Activities(ctx context.Context, page, perPage int) ([]model.Activity, error) {
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	body, err := c.get(ctx, "/athlete/activities", query)
	if err != nil {
		return nil, err
	}

	var activities []model.Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("decoding activities page %d: %w", page, err)
	}
	for i := range activities {
		activities[i].Derive()
	}
	return activities, nil
}

// Activity fetches the detail record for one activity.
func (c *Client) Activity(ctx context.Context, id int64) (*model.Activity, error) {
	body, err := c.get(ctx, fmt.Sprintf("/activities/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var activity model.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("decoding activity %d: %w", id, err)
	}
	activity.Derive()
	return &activity, nil
}

// Kudos fetches the list of givers for one activity. The endpoint exposes
// names only — no athlete ids.
func (c *Client) Kudos(ctx context.Context, id int64) ([]model.Giver, error) {
	body, err := c.get(ctx, fmt.Sprintf("/activities/%d/kudos", id), nil)
	if err != nil {
		return nil, err
	}

	var givers []model.Giver
	if err := json.Unmarshal(body, &givers); err != nil {
		return nil, fmt.Errorf("decoding kudos for activity %d: %w", id, err)
	}
	return givers, nil
}

// get runs the request/retry loop described in the package comment.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	refreshed := false

	for {
		headers, err := c.creds.Headers()
		if err != nil {
			return nil, err
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building request for %s: %w", path, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response for %s: %w", path, readErr)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			apiRequests.WithLabelValues("ok").Inc()
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			apiRequests.WithLabelValues("unauthorized").Inc()
			tokenRefreshes.Inc()
			c.logger.Info("access token expired, refreshing", slog.String("path", path))
			refreshed = true
			if err := c.creds.Refresh(ctx); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			apiRequests.WithLabelValues("unauthorized").Inc()
			return nil, apperror.Auth("request rejected after token refresh")

		case resp.StatusCode == http.StatusTooManyRequests:
			apiRequests.WithLabelValues("rate_limited").Inc()
			rateLimitWaits.Inc()
			c.logger.Warn("rate limited, sleeping before retry",
				slog.String("path", path),
				slog.Duration("cooldown", c.cooldown),
			)
			if err := c.sleeper.Sleep(ctx, c.cooldown); err != nil {
				return nil, fmt.Errorf("%w: cooldown interrupted: %w", apperror.ErrRateLimited, err)
			}
			continue

		case resp.StatusCode == http.StatusForbidden:
			apiRequests.WithLabelValues("forbidden").Inc()
			return nil, apperror.Forbidden(fmt.Sprintf("access forbidden for %s (resource may be private)", path))

		default:
			apiRequests.WithLabelValues("error").Inc()
			return nil, &apperror.HTTPError{Status: resp.StatusCode, Body: string(body)}
		}
	}
}

// IsSkippable reports whether an error is a per-resource condition the
// caller should log and skip rather than abort on.
func IsSkippable(err error) bool {
	var httpErr *apperror.HTTPError
	return errors.Is(err, apperror.ErrForbidden) || errors.As(err, &httpErr)
}
