package repository

import (
	"context"
	"database/sql"
	"errors"

	"netra-apex/backend/internal/agent/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a run repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the run for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, user_id, agent_id, status, error, started_at, finished_at
		 FROM agent_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// ListByOrg returns the most recent runs for the org, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, user_id, agent_id, status, error, started_at, finished_at
		 FROM agent_runs WHERE org_id = $1 ORDER BY started_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CountRunningByOrg returns the number of runs currently in the running state.
func (r *PostgresRepository) CountRunningByOrg(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM agent_runs WHERE org_id = $1 AND status = 'running'`, orgID).Scan(&n)
	return n, err
}

// Create persists the run. The run must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO agent_runs (id, org_id, user_id, agent_id, status, error, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.OrgID, run.UserID, run.AgentID, run.Status, nullString(run.Error), run.StartedAt)
	return err
}

// Finish moves a run to a terminal state. Already-finished runs are left
// untouched so the first terminal transition wins.
func (r *PostgresRepository) Finish(ctx context.Context, id string, status domain.RunStatus, runErr string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE agent_runs SET status = $2, error = $3, finished_at = now()
		 WHERE id = $1 AND status = 'running'`,
		id, status, nullString(runErr))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run      domain.Run
		errText  sql.NullString
		finished sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.OrgID, &run.UserID, &run.AgentID, &run.Status, &errText, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Error = errText.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
