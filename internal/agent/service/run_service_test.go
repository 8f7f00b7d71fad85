package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"netra-apex/backend/internal/agent/bus"
	"netra-apex/backend/internal/agent/domain"
	orgdomain "netra-apex/backend/internal/organization/domain"
	"netra-apex/backend/internal/policy/engine"
)

type memRunRepo struct {
	mu   sync.Mutex
	runs map[string]*domain.Run
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]*domain.Run)}
}

func (r *memRunRepo) GetByID(_ context.Context, id string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) ListByOrg(_ context.Context, orgID string, _ int) ([]*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Run
	for _, run := range r.runs {
		if run.OrgID == orgID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRunRepo) CountRunningByOrg(_ context.Context, orgID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run.OrgID == orgID && run.Status == domain.RunStatusRunning {
			n++
		}
	}
	return n, nil
}

func (r *memRunRepo) Create(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *memRunRepo) Finish(_ context.Context, id string, status domain.RunStatus, runErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status != domain.RunStatusRunning {
		return nil
	}
	run.Status = status
	run.Error = runErr
	return nil
}

type memOrgRepo struct {
	orgs map[string]*orgdomain.Org
}

func (r *memOrgRepo) GetByID(_ context.Context, id string) (*orgdomain.Org, error) {
	return r.orgs[id], nil
}

type stubEvaluator struct {
	result engine.AccessResult
	err    error
}

func (e *stubEvaluator) EvaluateAgentAccess(context.Context, *orgdomain.Org, string) (engine.AccessResult, error) {
	return e.result, e.err
}

type recordingUsage struct {
	mu     sync.Mutex
	events []domain.AgentEvent
	err    error
}

func (u *recordingUsage) RecordAgentEvent(_ context.Context, event domain.AgentEvent) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, event)
	return u.err
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) LogEvent(_ context.Context, _, _, action, _, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *recordingAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, got := range a.actions {
		if got == action {
			return true
		}
	}
	return false
}

type runFixture struct {
	svc    *RunService
	runs   *memRunRepo
	bus    *bus.MemoryBus
	usage  *recordingUsage
	audit  *recordingAudit
	events []domain.AgentEvent
	mu     sync.Mutex
}

func newRunFixture(t *testing.T, access engine.AccessResult) *runFixture {
	t.Helper()
	f := &runFixture{
		runs:  newMemRunRepo(),
		bus:   bus.NewMemoryBus(),
		usage: &recordingUsage{},
		audit: &recordingAudit{},
	}
	orgs := &memOrgRepo{orgs: map[string]*orgdomain.Org{
		"org-1": {ID: "org-1", Name: "Acme", Slug: "acme", Plan: orgdomain.PlanPro, Status: orgdomain.OrgStatusActive},
	}}
	f.svc = NewRunService(f.runs, orgs, &stubEvaluator{result: access}, f.bus, f.usage, f.audit, nil)
	if _, err := f.bus.Subscribe("org-1", "*", func(e domain.AgentEvent) {
		f.mu.Lock()
		f.events = append(f.events, e)
		f.mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return f
}

func (f *runFixture) published() []domain.AgentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AgentEvent, len(f.events))
	copy(out, f.events)
	return out
}

func allowAll() engine.AccessResult {
	return engine.AccessResult{Allowed: true, MaxConcurrentRuns: 5}
}

func TestStartRun_PublishesStartedEvent(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", json.RawMessage(`{"task":"report"}`))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != domain.RunStatusRunning {
		t.Fatalf("expected running status, got %s", run.Status)
	}

	events := f.published()
	if len(events) != 1 || events[0].Type != domain.EventRunStarted {
		t.Fatalf("expected one run_started event, got %v", events)
	}
	if events[0].Seq != 1 {
		t.Fatalf("first event should have seq 1, got %d", events[0].Seq)
	}
	if events[0].RunID != run.ID || events[0].OrgID != "org-1" || events[0].UserID != "user-1" {
		t.Fatalf("event not scoped to run: %+v", events[0])
	}
	if len(f.usage.events) != 1 {
		t.Fatalf("usage recorder should see the event, got %d", len(f.usage.events))
	}
	if !f.audit.has("run_started") {
		t.Fatal("expected run_started audit entry")
	}
}

func TestStartRun_DeniedByPolicy(t *testing.T) {
	f := newRunFixture(t, engine.AccessResult{Allowed: false, Reason: "organization is suspended"})
	_, err := f.svc.StartRun(context.Background(), "org-1", "user-1", "agent-sql", nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if !f.audit.has("run_denied") {
		t.Fatal("expected run_denied audit entry")
	}
	if len(f.published()) != 0 {
		t.Fatal("denied run must not publish events")
	}
}

func TestStartRun_ConcurrencyLimit(t *testing.T) {
	f := newRunFixture(t, engine.AccessResult{Allowed: true, MaxConcurrentRuns: 1})
	ctx := context.Background()

	if _, err := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)
	if !errors.Is(err, ErrConcurrencyLimit) {
		t.Fatalf("expected ErrConcurrencyLimit, got %v", err)
	}
	if !f.audit.has("run_throttled") {
		t.Fatal("expected run_throttled audit entry")
	}
}

func TestStartRun_UnknownOrg(t *testing.T) {
	f := newRunFixture(t, allowAll())
	_, err := f.svc.StartRun(context.Background(), "org-missing", "user-1", "agent-sql", nil)
	if !errors.Is(err, ErrOrgNotFound) {
		t.Fatalf("expected ErrOrgNotFound, got %v", err)
	}
}

func TestRecordEvent_SequencesWithinRun(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.svc.RecordEvent(ctx, "org-1", "user-1", run.ID, domain.EventRunOutput, json.RawMessage(`{"chunk":"x"}`)); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}

	events := f.published()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
	}
}

func TestRecordEvent_RejectsLifecycleTypes(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()
	run, _ := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)

	if _, err := f.svc.RecordEvent(ctx, "org-1", "user-1", run.ID, domain.EventRunCompleted, nil); err == nil {
		t.Fatal("run_completed must go through CompleteRun")
	}
}

func TestRecordEvent_WrongOwner(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()
	run, _ := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)

	if _, err := f.svc.RecordEvent(ctx, "org-1", "user-2", run.ID, domain.EventRunOutput, nil); !errors.Is(err, ErrNotRunOwner) {
		t.Fatalf("expected ErrNotRunOwner, got %v", err)
	}
	if _, err := f.svc.RecordEvent(ctx, "org-1", "user-1", "missing", domain.EventRunOutput, nil); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCompleteRun(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()
	run, _ := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)

	done, err := f.svc.CompleteRun(ctx, "org-1", "user-1", run.ID, json.RawMessage(`{"result":"ok"}`))
	if err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	if done.Status != domain.RunStatusCompleted || done.FinishedAt == nil {
		t.Fatalf("run not completed: %+v", done)
	}

	events := f.published()
	last := events[len(events)-1]
	if last.Type != domain.EventRunCompleted {
		t.Fatalf("expected run_completed event, got %s", last.Type)
	}

	if _, err := f.svc.CompleteRun(ctx, "org-1", "user-1", run.ID, nil); !errors.Is(err, ErrRunFinished) {
		t.Fatalf("second completion should fail with ErrRunFinished, got %v", err)
	}
}

func TestFailRun(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()
	run, _ := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)

	failed, err := f.svc.FailRun(ctx, "org-1", "user-1", run.ID, "tool call timed out")
	if err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	if failed.Status != domain.RunStatusFailed || failed.Error != "tool call timed out" {
		t.Fatalf("run not failed: %+v", failed)
	}

	events := f.published()
	last := events[len(events)-1]
	if last.Type != domain.EventRunFailed {
		t.Fatalf("expected run_failed event, got %s", last.Type)
	}
	var payload map[string]string
	if err := json.Unmarshal(last.Payload, &payload); err != nil || payload["error"] != "tool call timed out" {
		t.Fatalf("failure payload missing error: %s", last.Payload)
	}
	if !f.audit.has("run_failed") {
		t.Fatal("expected run_failed audit entry")
	}
}

func TestGetRun_CrossOrgHidden(t *testing.T) {
	f := newRunFixture(t, allowAll())
	ctx := context.Background()
	run, _ := f.svc.StartRun(ctx, "org-1", "user-1", "agent-sql", nil)

	if _, err := f.svc.GetRun(ctx, "org-2", run.ID); !errors.Is(err, ErrNotRunOwner) {
		t.Fatalf("expected ErrNotRunOwner, got %v", err)
	}
	got, err := f.svc.GetRun(ctx, "org-1", run.ID)
	if err != nil || got.ID != run.ID {
		t.Fatalf("GetRun: %v %+v", err, got)
	}
}
