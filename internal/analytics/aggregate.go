// Package analytics turns raw agent events into the rows stored in
// ClickHouse.
package analytics

import (
	"encoding/json"
	"time"

	agentdomain "netra-apex/backend/internal/agent/domain"
	"netra-apex/backend/internal/analytics/domain"
)

// EventToRow converts a bus event into its ClickHouse row.
func EventToRow(event agentdomain.AgentEvent) domain.AgentEventRow {
	return domain.AgentEventRow{
		EventID:   event.ID,
		OrgID:     event.OrgID,
		UserID:    event.UserID,
		RunID:     event.RunID,
		AgentID:   event.AgentID,
		EventType: string(event.Type),
		Seq:       event.Seq,
		Payload:   string(event.Payload),
		CreatedAt: event.CreatedAt,
	}
}

// DecodeEvent parses one Kafka message produced by the usage producer.
func DecodeEvent(data []byte) (agentdomain.AgentEvent, error) {
	var event agentdomain.AgentEvent
	err := json.Unmarshal(data, &event)
	return event, err
}

// Aggregator accumulates per-org throughput windows from a stream of events.
// Not safe for concurrent use; the worker feeds it from a single consume loop.
type Aggregator struct {
	window   time.Duration
	current  time.Time
	windows  map[string]*orgWindow
	runStart map[string]time.Time
}

type orgWindow struct {
	events        uint64
	runsStarted   uint64
	runsCompleted uint64
	runsFailed    uint64
	durationSumMS float64
	durations     uint64
}

// NewAggregator builds an aggregator with the given window size (default 1m).
func NewAggregator(window time.Duration) *Aggregator {
	if window <= 0 {
		window = time.Minute
	}
	return &Aggregator{
		window:   window,
		windows:  make(map[string]*orgWindow),
		runStart: make(map[string]time.Time),
	}
}

// Add records one event. It returns the completed windows when the event's
// timestamp rolls past the current window boundary, otherwise nil.
func (a *Aggregator) Add(event agentdomain.AgentEvent) []domain.ThroughputMetrics {
	ts := event.CreatedAt.UTC()
	start := ts.Truncate(a.window)

	var flushed []domain.ThroughputMetrics
	if a.current.IsZero() {
		a.current = start
	} else if start.After(a.current) {
		flushed = a.Flush()
		a.current = start
	}

	w := a.windows[event.OrgID]
	if w == nil {
		w = &orgWindow{}
		a.windows[event.OrgID] = w
	}
	w.events++

	switch event.Type {
	case agentdomain.EventRunStarted:
		w.runsStarted++
		a.runStart[event.RunID] = ts
	case agentdomain.EventRunCompleted, agentdomain.EventRunFailed:
		if event.Type == agentdomain.EventRunCompleted {
			w.runsCompleted++
		} else {
			w.runsFailed++
		}
		if started, ok := a.runStart[event.RunID]; ok {
			w.durationSumMS += float64(ts.Sub(started).Milliseconds())
			w.durations++
			delete(a.runStart, event.RunID)
		}
	}
	return flushed
}

// Flush drains all open windows as rows stamped with the current window
// start. Call on shutdown to avoid losing the tail.
func (a *Aggregator) Flush() []domain.ThroughputMetrics {
	if len(a.windows) == 0 {
		return nil
	}
	seconds := a.window.Seconds()
	out := make([]domain.ThroughputMetrics, 0, len(a.windows))
	for orgID, w := range a.windows {
		row := domain.ThroughputMetrics{
			OrgID:           orgID,
			WindowStart:     a.current,
			WindowSeconds:   uint32(seconds),
			EventsTotal:     w.events,
			RunsStarted:     w.runsStarted,
			RunsCompleted:   w.runsCompleted,
			RunsFailed:      w.runsFailed,
			EventsPerSecond: float64(w.events) / seconds,
		}
		if w.durations > 0 {
			row.AvgRunDurationMS = w.durationSumMS / float64(w.durations)
		}
		out = append(out, row)
	}
	a.windows = make(map[string]*orgWindow)
	return out
}
