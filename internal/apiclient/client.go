package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client talks to the coordinator backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Do sends a request and returns the raw response body for any status.
// Only transport failures are returned as errors.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	status, body, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// AgentIDs lists the agents known to the backend, sorted
func (c *Client) AgentIDs(ctx context.Context) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := c.getJSON(ctx, "/api/agents", &raw); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AgentProgress fetches and normalizes the progress view of one agent
func (c *Client) AgentProgress(ctx context.Context, id string) (AgentProgress, error) {
	var raw rawAgentProgress
	if err := c.getJSON(ctx, "/api/agents/"+url.PathEscape(id)+"/progress", &raw); err != nil {
		return AgentProgress{}, err
	}
	return raw.normalize(id), nil
}

// Tasks fetches and flattens the task board
func (c *Client) Tasks(ctx context.Context) (TaskBoard, error) {
	var raw rawTaskBoard
	if err := c.getJSON(ctx, "/api/tasks", &raw); err != nil {
		return TaskBoard{}, err
	}
	return raw.normalize(), nil
}

// Graph fetches the pipeline structure
func (c *Client) Graph(ctx context.Context) (Graph, error) {
	var raw rawGraph
	if err := c.getJSON(ctx, "/api/graph/structure", &raw); err != nil {
		return Graph{}, err
	}
	return raw.normalize(), nil
}
