package audit

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"netra-apex/backend/internal/audit/domain"
)

type memAuditRepo struct {
	mu    sync.Mutex
	saved []*domain.AuditLog
	err   error
}

func (r *memAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) Save(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, a)
	return nil
}

func TestLogEvent_PersistsEntry(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, func(ctx context.Context) string { return "203.0.113.9" }, zap.NewNop())

	l.LogEvent(context.Background(), "org-1", "user-1", "login", "auth", "")

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d entries, want 1", len(repo.saved))
	}
	got := repo.saved[0]
	if got.ID == "" {
		t.Error("entry should get an ID")
	}
	if got.OrgID != "org-1" || got.UserID != "user-1" || got.Action != "login" || got.Resource != "auth" {
		t.Errorf("entry = %+v", got)
	}
	if got.IP != "203.0.113.9" {
		t.Errorf("IP = %q", got.IP)
	}
}

func TestLogEvent_SentinelOrgForEmptyOrg(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil, nil)

	l.LogEvent(context.Background(), "", "", "login_failure", "auth", "ghost@x.io")

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d entries, want 1", len(repo.saved))
	}
	if repo.saved[0].OrgID != SentinelOrgID {
		t.Errorf("OrgID = %q, want sentinel", repo.saved[0].OrgID)
	}
	if repo.saved[0].IP != "unknown" {
		t.Errorf("IP = %q, want unknown without extractor", repo.saved[0].IP)
	}
}

func TestLogEvent_NilRepoIsNoop(t *testing.T) {
	l := NewLogger(nil, nil, nil)
	l.LogEvent(context.Background(), "org", "user", "login", "auth", "") // must not panic
}
