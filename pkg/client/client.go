package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/slipway-sh/slipway/pkg/api"
	"github.com/slipway-sh/slipway/pkg/errdefs"
)

// requestTimeout bounds every API call. The server acknowledges
// assignments before the workspace finishes booting, so nothing the API
// does should take longer than this.
const requestTimeout = 10 * time.Second

// Client talks to a slipway control plane over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the control plane at baseURL,
// e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// WithToken attaches a bearer token to every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Start requests a workspace for the given bucket. The workspace is
// still booting when this returns; the URLs become reachable once the
// proxy picks up the new routes.
func (c *Client) Start(req api.StartRequest) (*api.StartResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp api.StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/containers/start", req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns one page of workspaces. Empty status means all statuses;
// limit 0 means no page cap.
func (c *Client) List(status string, limit, offset int) (*api.ListResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/containers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get fetches one workspace record with its computed health block.
func (c *Client) Get(id string) (*api.ContainerResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp api.ContainerResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/containers/"+url.PathEscape(id), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop shuts a workspace down with reason manual.
func (c *Client) Stop(id string) (*api.StopResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp api.StopResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v1/containers/"+url.PathEscape(id), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportInactivity shuts a workspace down with reason inactivity. The
// in-workspace agent calls this; it needs no token.
func (c *Client) ReportInactivity(id string) (*api.StopResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp api.StopResponse
	path := "/api/v1/containers/" + url.PathEscape(id) + "/inactivity-shutdown"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request and decodes the response into out when the
// status matches. Anything else is translated back into the error
// taxonomy so callers can use errdefs.IsX on client errors too.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, want int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("control plane unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError converts a non-2xx response back into the error taxonomy.
func apiError(resp *http.Response) error {
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if body.Error == "invalid_bucket" {
			return fmt.Errorf("%w: %s", errdefs.ErrInvalidBucket, body.Message)
		}
		return fmt.Errorf("%w: %s", errdefs.ErrInvalidInput, body.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errdefs.ErrNotFound, body.Message)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", errdefs.ErrResourceExhausted, body.Message)
	default:
		return fmt.Errorf("%s: %s", body.Error, body.Message)
	}
}
