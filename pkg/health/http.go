package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single probe round trip.
const DefaultProbeTimeout = 3 * time.Second

// HTTPChecker probes a workspace endpoint over HTTP
type HTTPChecker struct {
	// URL is the full endpoint URL to probe
	URL string

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates an HTTP probe for the given URL. Redirects are
// not followed: the editor answers its own auth flow with 302, and that
// response is the signal, not the page behind it.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:    url,
		Client: NewProbeClient(DefaultProbeTimeout),
	}
}

// NewProbeClient builds the HTTP client probes share: bounded timeout,
// redirects surfaced to the caller instead of followed.
func NewProbeClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Check performs the HTTP probe. Any response below 500 counts as healthy;
// 401 and 404 still prove a process is serving behind the route.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode < http.StatusInternalServerError

	return Result{
		Healthy:    healthy,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

// WithClient sets the HTTP client
func (h *HTTPChecker) WithClient(client *http.Client) *HTTPChecker {
	h.Client = client
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// Readiness classifies a probe result for the pool readiness wait.
type Readiness int

const (
	// Ready means the editor endpoint is serving.
	Ready Readiness = iota
	// RoutingPending means the proxy has not installed the route yet.
	RoutingPending
	// NotReady means a transport failure or a server error.
	NotReady
)

// ClassifyReadiness maps a probe result onto the readiness wait decision.
// 200, 302, and 401 mean the editor answers (302 and 401 are its auth
// flow). 404 means the request reached the proxy but no route exists yet,
// so the caller should keep polling.
func ClassifyReadiness(r Result) Readiness {
	switch r.StatusCode {
	case http.StatusOK, http.StatusFound, http.StatusUnauthorized:
		return Ready
	case http.StatusNotFound:
		return RoutingPending
	default:
		return NotReady
	}
}
