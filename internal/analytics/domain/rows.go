// Package domain defines the analytics rows stored in ClickHouse.
package domain

import "time"

// AgentEventRow is one agent event as persisted for analytics queries.
type AgentEventRow struct {
	EventID   string    `ch:"event_id"`
	OrgID     string    `ch:"org_id"`
	UserID    string    `ch:"user_id"`
	RunID     string    `ch:"run_id"`
	AgentID   string    `ch:"agent_id"`
	EventType string    `ch:"event_type"`
	Seq       uint64    `ch:"seq"`
	Payload   string    `ch:"payload"`
	CreatedAt time.Time `ch:"created_at"`
}

// ThroughputMetrics aggregates event throughput over a measurement window.
type ThroughputMetrics struct {
	OrgID            string    `ch:"org_id"`
	WindowStart      time.Time `ch:"window_start"`
	WindowSeconds    uint32    `ch:"window_seconds"`
	EventsTotal      uint64    `ch:"events_total"`
	RunsStarted      uint64    `ch:"runs_started"`
	RunsCompleted    uint64    `ch:"runs_completed"`
	RunsFailed       uint64    `ch:"runs_failed"`
	EventsPerSecond  float64   `ch:"events_per_second"`
	AvgRunDurationMS float64   `ch:"avg_run_duration_ms"`
}

// LoadTestResults records one synthetic load test execution.
type LoadTestResults struct {
	TestID          string    `ch:"test_id"`
	OrgID           string    `ch:"org_id"`
	StartedAt       time.Time `ch:"started_at"`
	DurationMS      uint64    `ch:"duration_ms"`
	RequestsTotal   uint64    `ch:"requests_total"`
	RequestsFailed  uint64    `ch:"requests_failed"`
	P50LatencyMS    float64   `ch:"p50_latency_ms"`
	P95LatencyMS    float64   `ch:"p95_latency_ms"`
	P99LatencyMS    float64   `ch:"p99_latency_ms"`
	ThroughputRPS   float64   `ch:"throughput_rps"`
	ErrorRatePct    float64   `ch:"error_rate_pct"`
	ConcurrentUsers uint32    `ch:"concurrent_users"`
}

// ComplianceCheck records the outcome of one quality gate evaluation for
// compliance reporting.
type ComplianceCheck struct {
	CheckID     string    `ch:"check_id"`
	OrgID       string    `ch:"org_id"`
	ContentType string    `ch:"content_type"`
	ContentHash string    `ch:"content_hash"`
	Passed      bool      `ch:"passed"`
	Score       float64   `ch:"score"`
	Issues      []string  `ch:"issues"`
	CheckedAt   time.Time `ch:"checked_at"`
}
