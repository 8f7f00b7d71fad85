package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	orgdomain "netra-apex/backend/internal/organization/domain"
	"netra-apex/backend/internal/policy/repository"
)

// Default Rego policy applied when an org has no enabled policies of its own.
const defaultRegoPolicy = `package netra.agent_access

default allow = false
default max_concurrent_runs = 1
default reason = ""

allow if {
	input.org.status == "active"
}

reason = "organization is suspended" if {
	input.org.status != "active"
}

max_concurrent_runs = 1 if {
	input.org.plan == "free"
}
max_concurrent_runs = 5 if {
	input.org.plan == "pro"
}
max_concurrent_runs = 25 if {
	input.org.plan == "enterprise"
}
`

// OPAEvaluator evaluates agent-access policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	log        *zap.Logger
}

// NewOPAEvaluator returns an OPA-based policy evaluator.
func NewOPAEvaluator(policyRepo repository.Repository, log *zap.Logger) *OPAEvaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &OPAEvaluator{policyRepo: policyRepo, log: log}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.netra.agent_access.allow"),
		rego.Compiler(compiler),
		rego.Input(e.buildInput(nil, "")),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateAgentAccess evaluates agent-access policy using OPA Rego policies.
// Org policies, when present and enabled, replace the default policy wholesale.
func (e *OPAEvaluator) EvaluateAgentAccess(ctx context.Context, org *orgdomain.Org, userID string) (AccessResult, error) {
	input := e.buildInput(org, userID)

	var policies []string
	if org != nil && e.policyRepo != nil {
		enabled, err := e.policyRepo.GetEnabledPoliciesByOrg(ctx, org.ID)
		if err != nil {
			e.log.Warn("policy: failed to load org policies", zap.String("org_id", org.ID), zap.Error(err))
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		e.log.Warn("policy: evaluation failed, using defaults", zap.Error(err))
		return e.defaultResult(org), nil
	}
	return result, nil
}

func (e *OPAEvaluator) buildInput(org *orgdomain.Org, userID string) map[string]interface{} {
	orgMap := map[string]interface{}{
		"id":     "",
		"status": "active",
		"plan":   string(orgdomain.PlanFree),
	}
	if org != nil {
		orgMap["id"] = org.ID
		orgMap["status"] = string(org.Status)
		orgMap["plan"] = string(org.Plan)
	}
	return map[string]interface{}{
		"org": orgMap,
		"user": map[string]interface{}{
			"id": userID,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (AccessResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return AccessResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := AccessResult{Allowed: false, MaxConcurrentRuns: 1}

	allowQuery := rego.New(
		rego.Query("data.netra.agent_access.allow"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	allowRS, err := allowQuery.Eval(ctx)
	if err == nil && len(allowRS) > 0 && len(allowRS[0].Expressions) > 0 {
		if v, ok := allowRS[0].Expressions[0].Value.(bool); ok {
			out.Allowed = v
		}
	}

	maxQuery := rego.New(
		rego.Query("data.netra.agent_access.max_concurrent_runs"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	maxRS, err := maxQuery.Eval(ctx)
	if err == nil && len(maxRS) > 0 && len(maxRS[0].Expressions) > 0 {
		switch v := maxRS[0].Expressions[0].Value.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil && n > 0 {
				out.MaxConcurrentRuns = int(n)
			}
		case float64:
			if n := int(v); n > 0 {
				out.MaxConcurrentRuns = n
			}
		case int64:
			if v > 0 {
				out.MaxConcurrentRuns = int(v)
			}
		}
	}

	reasonQuery := rego.New(
		rego.Query("data.netra.agent_access.reason"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	reasonRS, err := reasonQuery.Eval(ctx)
	if err == nil && len(reasonRS) > 0 && len(reasonRS[0].Expressions) > 0 {
		if v, ok := reasonRS[0].Expressions[0].Value.(string); ok {
			out.Reason = v
		}
	}

	return out, nil
}

func (e *OPAEvaluator) defaultResult(org *orgdomain.Org) AccessResult {
	res := AccessResult{Allowed: true, MaxConcurrentRuns: 1}
	if org != nil && org.Status != orgdomain.OrgStatusActive {
		res.Allowed = false
		res.Reason = "organization is suspended"
	}
	return res
}
