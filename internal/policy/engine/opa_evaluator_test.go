package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	orgdomain "netra-apex/backend/internal/organization/domain"
	"netra-apex/backend/internal/policy/domain"
	"netra-apex/backend/internal/policy/repository"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	// HealthCheck compiles and evaluates the default policy; no repo needed.
	e := NewOPAEvaluator(nil, nil)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

// mockPolicyRepo implements repository.Repository for tests.
type mockPolicyRepo struct {
	policies map[string][]*domain.Policy
	err      error
}

var _ repository.Repository = (*mockPolicyRepo)(nil)

func (m *mockPolicyRepo) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	return nil, nil
}

func (m *mockPolicyRepo) ListByOrg(ctx context.Context, orgID string) ([]*domain.Policy, error) {
	return nil, nil
}

func (m *mockPolicyRepo) GetEnabledPoliciesByOrg(ctx context.Context, orgID string) ([]*domain.Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.policies == nil {
		return nil, nil
	}
	return m.policies[orgID], nil
}

func (m *mockPolicyRepo) Create(ctx context.Context, p *domain.Policy) error { return nil }
func (m *mockPolicyRepo) Update(ctx context.Context, p *domain.Policy) error { return nil }

func activeOrg(plan orgdomain.Plan) *orgdomain.Org {
	return &orgdomain.Org{
		ID:     "org-1",
		Name:   "Acme",
		Slug:   "acme",
		Plan:   plan,
		Status: orgdomain.OrgStatusActive,
	}
}

func TestEvaluateAgentAccess_DefaultPolicy_ActiveOrg(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{policies: map[string][]*domain.Policy{}}, nil)
	ctx := context.Background()

	cases := []struct {
		plan    orgdomain.Plan
		maxRuns int
	}{
		{orgdomain.PlanFree, 1},
		{orgdomain.PlanPro, 5},
		{orgdomain.PlanEnterprise, 25},
	}
	for _, tc := range cases {
		res, err := e.EvaluateAgentAccess(ctx, activeOrg(tc.plan), "user-1")
		if err != nil {
			t.Fatalf("plan %s: %v", tc.plan, err)
		}
		if !res.Allowed {
			t.Fatalf("plan %s: active org should be allowed, reason=%q", tc.plan, res.Reason)
		}
		if res.MaxConcurrentRuns != tc.maxRuns {
			t.Fatalf("plan %s: expected max runs %d, got %d", tc.plan, tc.maxRuns, res.MaxConcurrentRuns)
		}
	}
}

func TestEvaluateAgentAccess_DefaultPolicy_SuspendedOrg(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{}, nil)
	org := activeOrg(orgdomain.PlanPro)
	org.Status = orgdomain.OrgStatusSuspended

	res, err := e.EvaluateAgentAccess(context.Background(), org, "user-1")
	if err != nil {
		t.Fatalf("EvaluateAgentAccess: %v", err)
	}
	if res.Allowed {
		t.Fatal("suspended org should be denied")
	}
	if res.Reason == "" {
		t.Fatal("denial should carry a reason")
	}
}

func TestEvaluateAgentAccess_OrgPolicyOverridesDefault(t *testing.T) {
	override := `package netra.agent_access

default allow = false
default max_concurrent_runs = 1
default reason = "access restricted to approved users"

allow if {
	input.user.id == "user-approved"
}

max_concurrent_runs = 100 if {
	input.user.id == "user-approved"
}
`
	repo := &mockPolicyRepo{policies: map[string][]*domain.Policy{
		"org-1": {{
			ID: "pol-1", OrgID: "org-1", Rules: override, Enabled: true, CreatedAt: time.Now(),
		}},
	}}
	e := NewOPAEvaluator(repo, nil)
	ctx := context.Background()

	res, err := e.EvaluateAgentAccess(ctx, activeOrg(orgdomain.PlanFree), "user-approved")
	if err != nil {
		t.Fatalf("EvaluateAgentAccess: %v", err)
	}
	if !res.Allowed || res.MaxConcurrentRuns != 100 {
		t.Fatalf("override policy not applied: %+v", res)
	}

	res, err = e.EvaluateAgentAccess(ctx, activeOrg(orgdomain.PlanFree), "user-other")
	if err != nil {
		t.Fatalf("EvaluateAgentAccess: %v", err)
	}
	if res.Allowed {
		t.Fatal("non-approved user should be denied by the org policy")
	}
}

func TestEvaluateAgentAccess_RepoErrorFallsBackToDefault(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{err: errors.New("db down")}, nil)
	res, err := e.EvaluateAgentAccess(context.Background(), activeOrg(orgdomain.PlanPro), "user-1")
	if err != nil {
		t.Fatalf("EvaluateAgentAccess: %v", err)
	}
	if !res.Allowed || res.MaxConcurrentRuns != 5 {
		t.Fatalf("expected default policy result for pro plan, got %+v", res)
	}
}

func TestEvaluateAgentAccess_BrokenOrgPolicyUsesSafeDefault(t *testing.T) {
	repo := &mockPolicyRepo{policies: map[string][]*domain.Policy{
		"org-1": {{
			ID: "pol-1", OrgID: "org-1", Rules: "package netra.agent_access\n\nthis is not rego", Enabled: true, CreatedAt: time.Now(),
		}},
	}}
	e := NewOPAEvaluator(repo, nil)
	res, err := e.EvaluateAgentAccess(context.Background(), activeOrg(orgdomain.PlanFree), "user-1")
	if err != nil {
		t.Fatalf("EvaluateAgentAccess: %v", err)
	}
	if !res.Allowed {
		t.Fatal("broken policy should fall back to the permissive default for active orgs")
	}
}
