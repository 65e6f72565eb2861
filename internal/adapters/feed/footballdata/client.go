// Package footballdata implements feed.Client over the football-data.org v4 API.
package footballdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/domain/model"
)

// Default client configuration constants.
const (
	DefaultBaseURL     = "https://api.football-data.org/v4"
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 8 << 20
	authHeader         = "X-Auth-Token"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Client polls GET /matches for the configured competitions.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	competitions []string
	teams        []string
}

// NewClient creates a football-data.org client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:      DefaultBaseURL,
		competitions: []string{"PL", "PD", "CL"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSnapshots performs one request and normalizes every returned match.
// Matches the API cannot describe (unknown status, missing id) come back as
// snapshots that fail validation; dropping them is the reconciler's call.
func (c *Client) FetchSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	const op = "GET /matches"

	q := url.Values{}
	if len(c.competitions) > 0 {
		q.Set("competitions", strings.Join(c.competitions, ","))
	}
	u := c.baseURL + "/matches"
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, feed.NewError(feed.Fatal, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(authHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, feed.NewError(feed.Transient, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &feed.Error{Kind: feed.Transient, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if err := statusError(op, resp, body); err != nil {
		return nil, err
	}

	var env matchesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &feed.Error{Kind: feed.Fatal, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}

	out := make([]model.Snapshot, 0, len(env.Matches))
	for i := range env.Matches {
		m := &env.Matches[i]
		if !c.watched(m) {
			continue
		}
		out = append(out, m.snapshot())
	}
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// watched applies the team filter; an empty filter watches everything.
func (c *Client) watched(m *apiMatch) bool {
	if len(c.teams) == 0 {
		return true
	}
	for _, t := range c.teams {
		if strings.Contains(m.HomeTeam.Name, t) || strings.Contains(m.AwayTeam.Name, t) {
			return true
		}
	}
	return false
}

func statusError(op string, resp *http.Response, body []byte) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return &feed.Error{
			Kind:       feed.RateLimited,
			Op:         op,
			StatusCode: code,
			RetryAfter: retryAfter(resp.Header),
			Err:        errors.New(snippet(body)),
		}
	case code >= 500:
		return &feed.Error{Kind: feed.Transient, Op: op, StatusCode: code, Err: errors.New(snippet(body))}
	default:
		return &feed.Error{Kind: feed.Fatal, Op: op, StatusCode: code, Err: errors.New(snippet(body))}
	}
}

// retryAfter reads the wait hint. football-data.org sends the seconds until
// the request counter resets; standard Retry-After is honoured too.
func retryAfter(h http.Header) time.Duration {
	for _, key := range []string{"Retry-After", "X-RequestCounter-Reset"} {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			continue
		}
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	return 0
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
