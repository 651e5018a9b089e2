package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/assistant"
	"github.com/hyperengineering/orbit/internal/snapshot"
	"github.com/hyperengineering/orbit/internal/types"
	"github.com/hyperengineering/orbit/internal/validation"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	maxBodyBytes     = 1 << 20
)

// Assistant is the application service the handlers delegate to.
type Assistant interface {
	Run(ctx context.Context, req types.RunRequest) (*agent.Result, error)
	State(ctx context.Context, userID string) (*agent.Snapshot, error)
	RecentRuns(ctx context.Context, userID string, limit int) ([]types.RunLog, error)
	CompleteTask(ctx context.Context, userID, taskID string) (string, error)
	DailyDigest(ctx context.Context) (types.DigestResult, error)
	SetProfile(ctx context.Context, userID, email string) (*types.Profile, error)
}

// StatsProvider reports row counts for the health endpoint.
type StatsProvider interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
}

// Handler implements the API handlers
type Handler struct {
	assistant   Assistant
	stats       StatsProvider
	uploader    snapshot.Uploader
	oracleModel string
	apiKey      string
	version     string
}

// NewHandler creates a new Handler. A nil uploader is treated as snapshot
// storage not being configured.
func NewHandler(a Assistant, stats StatsProvider, uploader snapshot.Uploader, oracleModel, apiKey, version string) *Handler {
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &Handler{
		assistant:   a,
		stats:       stats,
		uploader:    uploader,
		oracleModel: oracleModel,
		apiKey:      apiKey,
		version:     version,
	}
}

type runResponse struct {
	Success bool          `json:"success"`
	Result  *agent.Result `json:"result"`
}

type stateResponse struct {
	Success bool            `json:"success"`
	State   *agent.Snapshot `json:"state"`
}

type runsResponse struct {
	Success bool           `json:"success"`
	Runs    []types.RunLog `json:"runs"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		slog.Error("health stats failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		OracleModel: h.oracleModel,
		Stats:       *stats,
	})
}

// RunAgent handles POST /api/v1/agent/run
func (h *Handler) RunAgent(w http.ResponseWriter, r *http.Request) {
	var req types.RunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateRunRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	result, err := h.assistant.Run(r.Context(), req)
	if err != nil {
		slog.Error("agent run failed",
			"component", "api",
			"request_id", GetRequestID(r.Context()),
			"user_id", req.UserID,
			"error", err,
		)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, runResponse{Success: true, Result: result})
}

// AgentState handles GET /api/v1/agent/state/{userID}
func (h *Handler) AgentState(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	state, err := h.assistant.State(r.Context(), userID)
	if err != nil {
		slog.Error("agent state failed", "component", "api", "user_id", userID, "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{Success: true, State: state})
}

// AgentRuns handles GET /api/v1/agent/runs/{userID}?limit=N
func (h *Handler) AgentRuns(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
				{Field: "limit", Message: "must be a positive integer"},
			})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.assistant.RecentRuns(r.Context(), userID, limit)
	if err != nil {
		slog.Error("recent runs failed", "component", "api", "user_id", userID, "error", err)
		MapError(w, r, err)
		return
	}
	if runs == nil {
		runs = []types.RunLog{}
	}

	writeJSON(w, http.StatusOK, runsResponse{Success: true, Runs: runs})
}

// CompleteTask handles POST /api/v1/tasks/{taskID}/complete
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req types.CompleteTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateCompleteTaskRequest(taskID, req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	msg, err := h.assistant.CompleteTask(r.Context(), req.UserID, taskID)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.MessageResponse{Success: true, Message: msg})
}

// DailyReminders handles POST /api/v1/notifications/daily-reminders
func (h *Handler) DailyReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.assistant.DailyDigest(r.Context())
	if err != nil {
		slog.Error("daily digest failed", "component", "api", "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.DigestResponse{
		Success:      true,
		Message:      assistant.DigestMessage(result),
		DigestResult: result,
	})
}

// PutProfile handles PUT /api/v1/profiles/{userID}
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req types.ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateProfileRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	profile, err := h.assistant.SetProfile(r.Context(), userID, req.Email)
	if err != nil {
		slog.Error("set profile failed", "component", "api", "user_id", userID, "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Snapshot handles GET /api/v1/snapshot
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	url, expiresAt, err := h.uploader.PresignedURL(r.Context())
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotConfigured) {
			slog.Error("snapshot url failed", "component", "api", "error", err)
		}
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.SnapshotURLResponse{URL: url, ExpiresAt: expiresAt})
}

// decodeJSON decodes the request body into dst. On failure it writes a 400
// problem and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		detail := fmt.Sprintf("Invalid JSON: %s", err.Error())
		if errors.Is(err, io.EOF) {
			detail = "Request body is required"
		}
		WriteProblem(w, r, http.StatusBadRequest, detail)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
