package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ServiceNamePrefix is prepended to a workspace id to form the runtime
// service name. The derivation is an invariant: it happens here and only here.
const ServiceNamePrefix = "ide-"

const (
	// MinIDLength and MaxIDLength bound workspace ids.
	MinIDLength = 4
	MaxIDLength = 32
)

// idPattern matches DNS-safe tokens: lowercase alphanumerics with interior
// hyphens, never leading or trailing.
var idPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// WorkspaceStatus represents the lifecycle state of a workspace
type WorkspaceStatus string

const (
	StatusStarting WorkspaceStatus = "starting"
	StatusRunning  WorkspaceStatus = "running"
	StatusStopping WorkspaceStatus = "stopping"
	StatusStopped  WorkspaceStatus = "stopped"
	StatusFailed   WorkspaceStatus = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s WorkspaceStatus) Valid() bool {
	switch s {
	case StatusStarting, StatusRunning, StatusStopping, StatusStopped, StatusFailed:
		return true
	}
	return false
}

// Active reports whether the workspace is a candidate for health probing.
func (s WorkspaceStatus) Active() bool {
	return s == StatusStarting || s == StatusRunning
}

// ShutdownReason records why a workspace was stopped
type ShutdownReason string

const (
	ShutdownInactivity    ShutdownReason = "inactivity"
	ShutdownManual        ShutdownReason = "manual"
	ShutdownError         ShutdownReason = "error"
	ShutdownResourceLimit ShutdownReason = "resource_limit"
)

// QueueState represents the pool state of a queued entry
type QueueState string

const (
	QueuePreWarmed QueueState = "pre-warmed"
	QueueAssigned  QueueState = "assigned"
	QueueRunning   QueueState = "running"
)

// ServiceURLs holds the three public endpoints of a workspace behind the
// reverse proxy.
type ServiceURLs struct {
	Editor  string `json:"editor"`
	Desktop string `json:"desktop"`
	Web     string `json:"web"`
}

// Workspace is the durable record of a single developer environment.
type Workspace struct {
	ID             string          `json:"id"`
	ServiceName    string          `json:"service_name"`
	Bucket         string          `json:"bucket,omitempty"`
	Region         string          `json:"region,omitempty"`
	Status         WorkspaceStatus `json:"status"`
	URLs           ServiceURLs     `json:"urls"`
	CPUCores       float64         `json:"cpu_cores,omitempty"`
	MemoryBytes    int64           `json:"memory_bytes,omitempty"`
	IsPreWarmed    bool            `json:"is_pre_warmed"`
	ShutdownReason ShutdownReason  `json:"shutdown_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	StoppedAt      *time.Time      `json:"stopped_at,omitempty"`
	LastActivity   *time.Time      `json:"last_activity,omitempty"`
}

// QueuedEntry is an in-memory pool member. It is never persisted; the
// registry owns all mutations.
type QueuedEntry struct {
	ID          string
	ServiceName string
	State       QueueState
	Bucket      string
	CreatedAt   time.Time
	AssignedAt  *time.Time
}

// ServiceRecord is the runtime's view of a workspace service. It is
// authoritative over the persistent store during reconciliation. CPUCores
// and MemoryBytes are the caps the service was created with; zero means
// uncapped.
type ServiceRecord struct {
	ID          string
	ServiceName string
	Status      string
	Bucket      string
	CPUCores    float64
	MemoryBytes int64
	CreatedAt   time.Time
}

// Credentials carries object-storage access keys for bucket attachment.
type Credentials struct {
	AccessKeyID     string `json:"aws_access_key_id,omitempty" yaml:"aws_access_key_id"`
	SecretAccessKey string `json:"aws_secret_access_key,omitempty" yaml:"aws_secret_access_key"`
}

// Empty reports whether no credentials were supplied.
func (c Credentials) Empty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// CreateConfig enumerates the recognized options for launching a workspace
// service.
type CreateConfig struct {
	SkipBucketAttachment bool
	Bucket               string
	Region               string
	Credentials          Credentials
	VNCPassword          string
	Domain               string
}

// AssignRequest is an incoming client request for a bucket-bound workspace.
type AssignRequest struct {
	Bucket      string
	Region      string
	Credentials Credentials
	VNCPassword string
	UserID      string
}

// PoolStats is a point-in-time summary of the pre-warm pool.
type PoolStats struct {
	PreWarmed int `json:"pre_warmed"`
	Assigned  int `json:"assigned"`
	Running   int `json:"running"`
	Total     int `json:"total"`
	Target    int `json:"target"`
}

// ResourceSnapshot is a point-in-time view of host resources.
type ResourceSnapshot struct {
	CPUUsagePct    float64 `json:"cpu_usage_pct"`
	CPUCores       int     `json:"cpu_cores"`
	MemUsed        uint64  `json:"mem_used"`
	MemTotal       uint64  `json:"mem_total"`
	MemPct         float64 `json:"mem_pct"`
	DiskUsed       uint64  `json:"disk_used"`
	DiskTotal      uint64  `json:"disk_total"`
	DiskPct        float64 `json:"disk_pct"`
	LiveWorkspaces int     `json:"live_workspaces"`
}

// ServiceName derives the runtime service name for a workspace id.
func ServiceName(id string) string {
	return ServiceNamePrefix + id
}

// IDFromServiceName extracts the workspace id from a runtime service name.
// The second return is false when the name does not carry the workspace
// prefix (proxy, control plane, unrelated containers).
func IDFromServiceName(name string) (string, bool) {
	if !strings.HasPrefix(name, ServiceNamePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, ServiceNamePrefix)
	if ValidateID(id) != nil {
		return "", false
	}
	return id, true
}

// ValidateID checks a workspace id against the DNS-safe pattern: 4-32
// lowercase alphanumerics with interior hyphens only.
func ValidateID(id string) error {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return fmt.Errorf("workspace id must be %d-%d characters, got %d", MinIDLength, MaxIDLength, len(id))
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("workspace id %q must be lowercase alphanumerics with interior hyphens", id)
	}
	return nil
}
