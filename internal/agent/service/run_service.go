// Package service coordinates agent runs: policy checks, persistence,
// event publication, and usage accounting.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"netra-apex/backend/internal/agent/bus"
	"netra-apex/backend/internal/agent/domain"
	orgdomain "netra-apex/backend/internal/organization/domain"
	"netra-apex/backend/internal/policy/engine"
)

var (
	ErrAccessDenied     = errors.New("agent access denied by policy")
	ErrConcurrencyLimit = errors.New("concurrent run limit reached")
	ErrRunNotFound      = errors.New("run not found")
	ErrNotRunOwner      = errors.New("run belongs to a different org or user")
	ErrRunFinished      = errors.New("run already finished")
	ErrOrgNotFound      = errors.New("organization not found")
)

// RunRepo is the persistence surface the service needs for runs.
type RunRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.Run, error)
	CountRunningByOrg(ctx context.Context, orgID string) (int, error)
	Create(ctx context.Context, run *domain.Run) error
	Finish(ctx context.Context, id string, status domain.RunStatus, runErr string) error
}

// OrgRepo resolves the org whose policy and plan govern the run.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// UsageRecorder receives a copy of every published event for the analytics
// pipeline. Failures are logged, never surfaced to callers.
type UsageRecorder interface {
	RecordAgentEvent(ctx context.Context, event domain.AgentEvent) error
}

// AuditLogger records run lifecycle actions best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// RunService owns the agent run lifecycle.
type RunService struct {
	runs      RunRepo
	orgs      OrgRepo
	policy    engine.Evaluator
	bus       bus.Bus
	usage     UsageRecorder
	audit     AuditLogger
	log       *zap.Logger
	seqMu     sync.Mutex
	sequences map[string]uint64
}

// NewRunService wires the run service. usage and audit may be nil.
func NewRunService(runs RunRepo, orgs OrgRepo, policy engine.Evaluator, b bus.Bus, usage UsageRecorder, audit AuditLogger, log *zap.Logger) *RunService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RunService{
		runs:      runs,
		orgs:      orgs,
		policy:    policy,
		bus:       b,
		usage:     usage,
		audit:     audit,
		log:       log,
		sequences: make(map[string]uint64),
	}
}

// StartRun checks org policy and concurrency, persists a new run, and
// publishes the run_started event.
func (s *RunService) StartRun(ctx context.Context, orgID, userID, agentID string, payload json.RawMessage) (*domain.Run, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load org: %w", err)
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}

	access, err := s.policy.EvaluateAgentAccess(ctx, org, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}
	if !access.Allowed {
		s.auditEvent(ctx, orgID, userID, "run_denied", agentID, access.Reason)
		return nil, ErrAccessDenied
	}

	running, err := s.runs.CountRunningByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("count running: %w", err)
	}
	if running >= access.MaxConcurrentRuns {
		s.auditEvent(ctx, orgID, userID, "run_throttled", agentID, fmt.Sprintf("running=%d limit=%d", running, access.MaxConcurrentRuns))
		return nil, ErrConcurrencyLimit
	}

	run := &domain.Run{
		ID:        ksuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		AgentID:   agentID,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	s.publish(ctx, run, domain.EventRunStarted, payload)
	s.auditEvent(ctx, orgID, userID, "run_started", agentID, run.ID)
	return run, nil
}

// RecordEvent publishes a progress or output event for a running run owned
// by the caller.
func (s *RunService) RecordEvent(ctx context.Context, orgID, userID, runID string, typ domain.EventType, payload json.RawMessage) (*domain.AgentEvent, error) {
	if typ != domain.EventRunProgress && typ != domain.EventRunOutput {
		return nil, fmt.Errorf("event type %q cannot be recorded directly", typ)
	}
	run, err := s.ownedRunningRun(ctx, orgID, userID, runID)
	if err != nil {
		return nil, err
	}
	event := s.publish(ctx, run, typ, payload)
	return &event, nil
}

// CompleteRun moves the run to completed and publishes run_completed.
func (s *RunService) CompleteRun(ctx context.Context, orgID, userID, runID string, payload json.RawMessage) (*domain.Run, error) {
	return s.finish(ctx, orgID, userID, runID, domain.RunStatusCompleted, "", payload)
}

// FailRun moves the run to failed and publishes run_failed with the error.
func (s *RunService) FailRun(ctx context.Context, orgID, userID, runID, runErr string) (*domain.Run, error) {
	payload, _ := json.Marshal(map[string]string{"error": runErr})
	return s.finish(ctx, orgID, userID, runID, domain.RunStatusFailed, runErr, payload)
}

// GetRun returns a run if it belongs to the org.
func (s *RunService) GetRun(ctx context.Context, orgID, runID string) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.OrgID != orgID {
		return nil, ErrNotRunOwner
	}
	return run, nil
}

// ListRuns returns the org's most recent runs.
func (s *RunService) ListRuns(ctx context.Context, orgID string, limit int) ([]*domain.Run, error) {
	return s.runs.ListByOrg(ctx, orgID, limit)
}

func (s *RunService) finish(ctx context.Context, orgID, userID, runID string, status domain.RunStatus, runErr string, payload json.RawMessage) (*domain.Run, error) {
	run, err := s.ownedRunningRun(ctx, orgID, userID, runID)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Finish(ctx, runID, status, runErr); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	now := time.Now().UTC()
	run.Status = status
	run.Error = runErr
	run.FinishedAt = &now

	typ := domain.EventRunCompleted
	action := "run_completed"
	if status == domain.RunStatusFailed {
		typ = domain.EventRunFailed
		action = "run_failed"
	}
	s.publish(ctx, run, typ, payload)
	s.auditEvent(ctx, orgID, userID, action, run.AgentID, run.ID)
	s.dropSequence(runID)
	return run, nil
}

func (s *RunService) ownedRunningRun(ctx context.Context, orgID, userID, runID string) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.OrgID != orgID || run.UserID != userID {
		return nil, ErrNotRunOwner
	}
	if run.Finished() {
		return nil, ErrRunFinished
	}
	return run, nil
}

// publish builds the event, assigns the per-run sequence number, and sends it
// to the bus and the usage recorder. Bus failures are logged, not returned;
// the run state in Postgres is the source of truth.
func (s *RunService) publish(ctx context.Context, run *domain.Run, typ domain.EventType, payload json.RawMessage) domain.AgentEvent {
	event := domain.NewEvent(run.OrgID, run.UserID, run.ID, run.AgentID, typ, payload)
	event.Seq = s.nextSequence(run.ID)

	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Error("agent: event publish failed",
			zap.String("run_id", run.ID), zap.String("type", string(typ)), zap.Error(err))
	}
	if s.usage != nil {
		if err := s.usage.RecordAgentEvent(ctx, event); err != nil {
			s.log.Warn("agent: usage record failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return event
}

func (s *RunService) nextSequence(runID string) uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[runID]++
	return s.sequences[runID]
}

func (s *RunService) dropSequence(runID string) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	delete(s.sequences, runID)
}

func (s *RunService) auditEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, orgID, userID, action, resource, metadata)
}
