package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netra-apex/backend/internal/audit/domain"
	auditrepo "netra-apex/backend/internal/audit/repository"
)

// SentinelOrgID is the org_id used for audit events that have no org (e.g. login_failure, logout with invalid token).
const SentinelOrgID = "_system"

// IPExtractor returns the client IP from the request context (set by the HTTP middleware).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown". log may be nil.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
// An empty orgID is recorded under SentinelOrgID so unauthenticated failures remain queryable.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if got := l.ipExtractor(ctx); got != "" {
			ip = got
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Save(ctx, entry); err != nil {
		l.log.Warn("audit: failed to save audit log", zap.String("action", action), zap.Error(err))
	}
}
