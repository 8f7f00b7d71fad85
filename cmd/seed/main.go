// Seed inserts a development user, organization, and policy so local
// environments can log in immediately. Safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"netra-apex/backend/internal/config"
	"netra-apex/backend/internal/db"
	identitydomain "netra-apex/backend/internal/identity/domain"
	identityrepo "netra-apex/backend/internal/identity/repository"
	membershipdomain "netra-apex/backend/internal/membership/domain"
	membershiprepo "netra-apex/backend/internal/membership/repository"
	orgdomain "netra-apex/backend/internal/organization/domain"
	orgrepo "netra-apex/backend/internal/organization/repository"
	policydomain "netra-apex/backend/internal/policy/domain"
	policyrepo "netra-apex/backend/internal/policy/repository"
	"netra-apex/backend/internal/security"
	userdomain "netra-apex/backend/internal/user/domain"
	userrepo "netra-apex/backend/internal/user/repository"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "devpassword123"
	devOrgSlug  = "netra-dev"
)

// devPolicy raises the dev org's concurrency cap above the plan default so
// local load testing is not throttled. Same package and rules shape as the
// built-in policy in internal/policy/engine.
const devPolicy = `package netra.agent_access

default allow = false
default max_concurrent_runs = 1
default reason = ""

allow if {
	input.org.status == "active"
}

reason = "organization is suspended" if {
	input.org.status != "active"
}

max_concurrent_runs = 50 if {
	input.org.status == "active"
}
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	orgs := orgrepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devEmail)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", devEmail, err)
	}
	if existing != nil {
		fmt.Printf("seed: %s already exists, nothing to do\n", devEmail)
		return nil
	}

	hasher := security.NewHasher(cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()

	user := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     devEmail,
		Name:      "Dev User",
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if err := identities.Create(ctx, &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   devEmail,
		PasswordHash: hash,
		CreatedAt:    now,
	}); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	org := &orgdomain.Org{
		ID:        uuid.New().String(),
		Name:      "Netra Dev",
		Slug:      devOrgSlug,
		Plan:      orgdomain.PlanPro,
		Status:    orgdomain.OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := orgs.Create(ctx, org); err != nil {
		return fmt.Errorf("create org: %w", err)
	}

	if err := memberships.Create(ctx, &membershipdomain.Membership{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		OrgID:     org.ID,
		Role:      membershipdomain.RoleOwner,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}

	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        uuid.New().String(),
		OrgID:     org.ID,
		Rules:     devPolicy,
		Enabled:   true,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("create policy: %w", err)
	}

	fmt.Printf("seed: created %s (password %q) in org %s\n", devEmail, devPassword, devOrgSlug)
	return nil
}
