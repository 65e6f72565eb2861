package footballdata

import (
	"net/http"
	"strings"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. to point at feedsim.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the X-Auth-Token value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCompetitions sets the competition codes polled in one request.
func WithCompetitions(codes []string) Option {
	return func(c *Client) {
		out := make([]string, 0, len(codes))
		for _, code := range codes {
			if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
				out = append(out, code)
			}
		}
		if len(out) > 0 {
			c.competitions = out
		}
	}
}

// WithTeams limits reported matches to those involving one of the teams.
// Names match as substrings, so "Barcelona" covers "FC Barcelona".
func WithTeams(teams []string) Option {
	return func(c *Client) {
		c.teams = c.teams[:0]
		for _, t := range teams {
			if t = strings.TrimSpace(t); t != "" {
				c.teams = append(c.teams, t)
			}
		}
	}
}
