package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/manager"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

// StartRequest is the body of POST /api/v1/containers/start. Region,
// credentials, and the VNC password fall back to the server defaults.
type StartRequest struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"aws_access_key_id,omitempty"`
	SecretAccessKey string `json:"aws_secret_access_key,omitempty"`
	VNCPassword     string `json:"vnc_password,omitempty"`
	UserID          string `json:"user_id,omitempty"`
}

// StartResponse acknowledges an assignment. The workspace is still
// starting; clients open the editor URL and let the proxy catch up.
type StartResponse struct {
	ID          string            `json:"id"`
	ServiceName string            `json:"service_name"`
	Status      string            `json:"status"`
	URLs        types.ServiceURLs `json:"urls"`
	Message     string            `json:"message"`
}

// ListResponse is one page of persisted workspaces. Count is the page
// size, Total the number of rows matching the status filter.
type ListResponse struct {
	Containers []*types.Workspace `json:"containers"`
	Count      int                `json:"count"`
	Total      int                `json:"total"`
}

// HealthBlock is the monitor's probe state for one workspace.
type HealthBlock struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheck           time.Time `json:"last_check"`
	RecoveryAttempted   bool      `json:"recovery_attempted"`
	EditorAvailable     bool      `json:"editor_available"`
}

// ContainerResponse is the persisted record plus computed fields.
type ContainerResponse struct {
	*types.Workspace
	Uptime int64        `json:"uptime,omitempty"`
	Health *HealthBlock `json:"health,omitempty"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "malformed JSON body: " + err.Error(),
		})
		return
	}

	ws, err := s.manager.Assign(r.Context(), manager.AssignRequest{
		Bucket: req.Bucket,
		Region: req.Region,
		Credentials: types.Credentials{
			AccessKeyID:     req.AccessKeyID,
			SecretAccessKey: req.SecretAccessKey,
		},
		VNCPassword: req.VNCPassword,
		UserID:      req.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, StartResponse{
		ID:          ws.ID,
		ServiceName: ws.ServiceName,
		Status:      string(ws.Status),
		URLs:        ws.URLs,
		Message:     "Workspace is starting",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter store.Filter
	if raw := q.Get("status"); raw != "" {
		status := types.WorkspaceStatus(raw)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("unknown status %q", raw),
			})
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if filter.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	containers, err := s.manager.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.manager.Count(filter.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	if containers == nil {
		containers = []*types.Workspace{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Containers: containers,
		Count:      len(containers),
		Total:      total,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ws, err := s.manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ContainerResponse{Workspace: ws}
	if ws.Status == types.StatusRunning && ws.StartedAt != nil {
		resp.Uptime = int64(time.Since(*ws.StartedAt).Seconds())
	}
	if s.health != nil {
		if state := s.health.Health(id); state != nil {
			resp.Health = &HealthBlock{
				Healthy:             state.Healthy,
				ConsecutiveFailures: state.ConsecutiveFailures,
				LastCheck:           state.LastCheck,
				RecoveryAttempted:   state.RecoveryAttempted,
				EditorAvailable:     state.EditorAvailable,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.stopWorkspace(w, r, types.ShutdownManual)
}

func (s *Server) handleInactivityShutdown(w http.ResponseWriter, r *http.Request) {
	s.stopWorkspace(w, r, types.ShutdownInactivity)
}

func (s *Server) stopWorkspace(w http.ResponseWriter, r *http.Request, reason types.ShutdownReason) {
	id := chi.URLParam(r, "id")

	if _, err := s.manager.Stop(r.Context(), id, reason); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StopResponse{
		ID:     id,
		Status: string(types.StatusStopped),
	})
}

// parseNonNegative parses an optional non-negative integer query value.
func parseNonNegative(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errdefs.IsInvalidBucket(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_bucket", Message: err.Error()})
	case errdefs.IsInvalidInput(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errdefs.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errdefs.IsResourceExhausted(err):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "resource_exhausted", Message: err.Error()})
	case errdefs.IsLaunchFailed(err) || errdefs.IsAttachFailed(err):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "launch_failed", Message: err.Error()})
	case errdefs.IsStoreUnavailable(err):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "store_unavailable", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: err.Error()})
	}
}
