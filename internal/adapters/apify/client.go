// Package apify fetches LinkedIn profile data through an Apify actor run.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/net/publicsuffix"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

const defaultBaseURL = "https://api.apify.com"

// Client runs a profile-scraper actor synchronously and reads its dataset.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	actorID    string
	logger     *slog.Logger
	attempts   uint
	delay      time.Duration
}

var _ ports.Enricher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client, including its timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) { c.attempts, c.delay = attempts, delay }
}

// New returns a client for actorID. A missing token means enrichment is not
// configured.
func New(token, actorID string, opts ...Option) (*Client, error) {
	if token == "" || actorID == "" {
		return nil, domain.ErrEnrichmentUnavailable
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		actorID:    actorID,
		logger:     slog.Default(),
		attempts:   3,
		delay:      time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apify: status %d: %s", e.StatusCode, e.Body)
}

// FetchProfile scrapes the profile at by.LinkedinURL, or searches by name and
// company when no profile URL is known. It returns nil, nil when the actor
// finds nothing or there is nothing to look up.
func (c *Client) FetchProfile(ctx context.Context, by domain.Lookup) (domain.Record, error) {
	input := map[string]any{}
	switch {
	case IsProfileURL(by.LinkedinURL):
		input["profileUrls"] = []string{by.LinkedinURL}
	case by.Name != "":
		input["searchQuery"] = strings.TrimSpace(by.Name + " " + by.Company)
		input["maxItems"] = 1
	default:
		return nil, nil
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	data, err := c.run(ctx, body)
	if err != nil {
		return nil, err
	}
	var items []profileItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("apify: decode dataset: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0].record(), nil
}

func (c *Client) run(ctx context.Context, body []byte) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?%s",
		c.baseURL, url.PathEscape(strings.ReplaceAll(c.actorID, "/", "~")), url.Values{"token": {c.token}}.Encode())
	jitter := c.delay / 2
	if jitter <= 0 {
		jitter = time.Millisecond
	}

	return retry.DoWithData(
		func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // read-only body

			data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			}
			return data, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxJitter(jitter),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying apify run", "attempt", n+1, "actor", c.actorID, "error", err)
		}),
	)
}

// isRetryableError is true for rate limiting, server errors and network
// failures. Other 4xx responses are permanent.
func isRetryableError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// IsProfileURL reports whether raw is a linkedin.com member profile URL.
func IsProfileURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil || site != "linkedin.com" {
		return false
	}
	return strings.HasPrefix(u.Path, "/in/") && len(strings.Trim(u.Path[len("/in/"):], "/")) > 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
