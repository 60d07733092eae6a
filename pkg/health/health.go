package health

import (
	"context"
	"time"
)

// Result represents the outcome of a single endpoint probe
type Result struct {
	// Healthy is true when the endpoint answered with any status below 500
	Healthy bool

	// StatusCode is the HTTP status received, 0 when no response arrived
	StatusCode int

	// Message describes the outcome for logs
	Message string

	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface all endpoint probes implement
type Checker interface {
	// Check performs the probe and returns the result
	Check(ctx context.Context) Result
}
