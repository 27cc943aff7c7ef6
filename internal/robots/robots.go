package robots

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// ErrUnavailable is returned when robots.txt cannot be retrieved.
var ErrUnavailable = errors.New("robots.txt unavailable")

// Rules is a loaded robots ruleset bound to one user agent.
// The zero value and Disabled allow every URL. Rules is read-only after
// loading and safe to share.
type Rules struct {
	data  *robotstxt.RobotsData
	agent string
}

// Disabled returns Rules that allow every URL.
func Disabled() *Rules {
	return &Rules{}
}

// Enabled reports whether a ruleset is loaded.
func (r *Rules) Enabled() bool {
	return r != nil && r.data != nil
}

// Allowed reports whether agent may fetch u.
// The path and query of u are tested together, so rules that target
// query-bearing paths apply when query strings are retained.
// Unparseable URLs are disallowed when a ruleset is loaded.
func (r *Rules) Allowed(u string) bool {
	if !r.Enabled() {
		return true
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return r.data.TestAgent(parsed.RequestURI(), r.agent)
}

// Parse builds Rules from a robots.txt body.
func Parse(body []byte, agent string) (*Rules, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return &Rules{data: data, agent: agent}, nil
}

// URL returns the robots.txt location for the host of root.
func URL(root string) (string, error) {
	u, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("invalid root URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid root URL %q: no host", root)
	}
	return u.Scheme + "://" + u.Host + "/robots.txt", nil
}

// Load fetches and parses robots.txt for the host of root.
// A nil client uses a client with a 10 second timeout.
// Any transport error or a status of 400 or above is reported as
// ErrUnavailable.
func Load(ctx context.Context, client *http.Client, root, agent string) (*Rules, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	robotsURL, err := URL(root)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, robotsURL, resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return &Rules{data: data, agent: agent}, nil
}
