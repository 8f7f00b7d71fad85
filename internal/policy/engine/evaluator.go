package engine

import (
	"context"

	orgdomain "netra-apex/backend/internal/organization/domain"
)

// AccessResult holds the result of agent-access policy evaluation.
type AccessResult struct {
	Allowed           bool
	MaxConcurrentRuns int
	Reason            string
}

// Evaluator evaluates org agent-access policies using OPA or other engines.
type Evaluator interface {
	// EvaluateAgentAccess evaluates platform and org policy for an agent run
	// request. Returns whether the org may start runs at all and how many may
	// run concurrently; callers enforce the concurrency cap.
	EvaluateAgentAccess(ctx context.Context, org *orgdomain.Org, userID string) (AccessResult, error)
}
