package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	agentdomain "netra-apex/backend/internal/agent/domain"
	agentservice "netra-apex/backend/internal/agent/service"
	"netra-apex/backend/internal/qualitygate"
)

// RunCoordinator is the run service surface the HTTP layer uses.
type RunCoordinator interface {
	StartRun(ctx context.Context, orgID, userID, agentID string, payload json.RawMessage) (*agentdomain.Run, error)
	RecordEvent(ctx context.Context, orgID, userID, runID string, typ agentdomain.EventType, payload json.RawMessage) (*agentdomain.AgentEvent, error)
	CompleteRun(ctx context.Context, orgID, userID, runID string, payload json.RawMessage) (*agentdomain.Run, error)
	FailRun(ctx context.Context, orgID, userID, runID, runErr string) (*agentdomain.Run, error)
	GetRun(ctx context.Context, orgID, runID string) (*agentdomain.Run, error)
	ListRuns(ctx context.Context, orgID string, limit int) ([]*agentdomain.Run, error)
}

// ContentValidator is the quality gate surface the HTTP layer uses.
type ContentValidator interface {
	Validate(ctx context.Context, contentType qualitygate.ContentType, content string) (*qualitygate.ValidationResult, error)
}

type agentHandler struct {
	runs RunCoordinator
	gate ContentValidator
	log  *zap.Logger
}

type startRunRequest struct {
	AgentID string          `json:"agent_id" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type recordEventRequest struct {
	Type    string          `json:"type" validate:"required,oneof=run_progress run_output"`
	Payload json.RawMessage `json:"payload"`
}

type completeRunRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type failRunRequest struct {
	Error string `json:"error" validate:"required"`
}

type validateContentRequest struct {
	ContentType string `json:"content_type" validate:"required,oneof=chat_response code json markdown"`
	Content     string `json:"content" validate:"required"`
}

type runResponse struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	UserID     string     `json:"user_id"`
	AgentID    string     `json:"agent_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (h *agentHandler) startRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	var req startRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	run, err := h.runs.StartRun(r.Context(), identity.OrgID, identity.UserID, req.AgentID, req.Payload)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunResponse(run))
}

func (h *agentHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	runs, err := h.runs.ListRuns(r.Context(), identity.OrgID, 50)
	if err != nil {
		h.log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs", "")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (h *agentHandler) getRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	run, err := h.runs.GetRun(r.Context(), identity.OrgID, chi.URLParam(r, "runID"))
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *agentHandler) recordEvent(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	var req recordEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	event, err := h.runs.RecordEvent(r.Context(), identity.OrgID, identity.UserID, chi.URLParam(r, "runID"),
		agentdomain.EventType(req.Type), req.Payload)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (h *agentHandler) completeRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	var req completeRunRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}
	run, err := h.runs.CompleteRun(r.Context(), identity.OrgID, identity.UserID, chi.URLParam(r, "runID"), req.Payload)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *agentHandler) failRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	var req failRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	run, err := h.runs.FailRun(r.Context(), identity.OrgID, identity.UserID, chi.URLParam(r, "runID"), req.Error)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// validateContent runs the quality gate over a piece of agent output.
func (h *agentHandler) validateContent(w http.ResponseWriter, r *http.Request) {
	var req validateContentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	result, err := h.gate.Validate(r.Context(), qualitygate.ContentType(req.ContentType), req.Content)
	if err != nil {
		if errors.Is(err, qualitygate.ErrUnknownContentType) {
			writeError(w, http.StatusBadRequest, "unknown content type", "")
			return
		}
		h.log.Error("content validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "validation failed", "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *agentHandler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agentservice.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "agent access denied by policy", "")
	case errors.Is(err, agentservice.ErrConcurrencyLimit):
		writeError(w, http.StatusTooManyRequests, "concurrent run limit reached", "")
	case errors.Is(err, agentservice.ErrRunNotFound), errors.Is(err, agentservice.ErrNotRunOwner):
		// Hide other orgs' runs behind the same 404.
		writeError(w, http.StatusNotFound, "run not found", "")
	case errors.Is(err, agentservice.ErrRunFinished):
		writeError(w, http.StatusConflict, "run already finished", "")
	case errors.Is(err, agentservice.ErrOrgNotFound):
		writeError(w, http.StatusForbidden, "organization not found", "")
	default:
		h.log.Error("run operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run operation failed", "")
	}
}

func toRunResponse(run *agentdomain.Run) runResponse {
	return runResponse{
		ID:         run.ID,
		OrgID:      run.OrgID,
		UserID:     run.UserID,
		AgentID:    run.AgentID,
		Status:     string(run.Status),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}
