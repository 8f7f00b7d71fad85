// Package store persists analytics rows to ClickHouse.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"netra-apex/backend/internal/analytics/domain"
)

// Store writes analytics rows in batches. All writes are best-effort from the
// caller's perspective: Postgres remains the source of truth for run state.
type Store struct {
	conn driver.Conn
	log  *zap.Logger
}

// Open connects to ClickHouse and verifies the connection.
func Open(ctx context.Context, addr, database string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: database},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Store{conn: conn, log: log}, nil
}

// NewWithConn wraps an existing connection, for tests.
func NewWithConn(conn driver.Conn, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{conn: conn, log: log}
}

// InsertAgentEvents appends the rows to agent_events in one batch.
func (s *Store) InsertAgentEvents(ctx context.Context, rows []domain.AgentEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.insert(ctx, "INSERT INTO agent_events", func(batch driver.Batch) error {
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertThroughputMetrics appends aggregated throughput windows.
func (s *Store) InsertThroughputMetrics(ctx context.Context, rows []domain.ThroughputMetrics) error {
	if len(rows) == 0 {
		return nil
	}
	return s.insert(ctx, "INSERT INTO throughput_metrics", func(batch driver.Batch) error {
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertLoadTestResults appends load test executions.
func (s *Store) InsertLoadTestResults(ctx context.Context, rows []domain.LoadTestResults) error {
	if len(rows) == 0 {
		return nil
	}
	return s.insert(ctx, "INSERT INTO load_test_results", func(batch driver.Batch) error {
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertComplianceChecks appends quality gate outcomes.
func (s *Store) InsertComplianceChecks(ctx context.Context, rows []domain.ComplianceCheck) error {
	if len(rows) == 0 {
		return nil
	}
	return s.insert(ctx, "INSERT INTO compliance_checks", func(batch driver.Batch) error {
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// insert prepares, fills, and sends one batch, retrying transient failures.
func (s *Store) insert(ctx context.Context, query string, fill func(driver.Batch) error) error {
	return retry.Do(
		func() error {
			batch, err := s.conn.PrepareBatch(ctx, query)
			if err != nil {
				return fmt.Errorf("prepare batch: %w", err)
			}
			if err := fill(batch); err != nil {
				_ = batch.Abort()
				return retry.Unrecoverable(fmt.Errorf("append rows: %w", err))
			}
			return batch.Send()
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("analytics: batch insert retry", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// Close shuts down the connection.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
