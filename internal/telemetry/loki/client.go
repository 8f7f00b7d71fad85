// Package loki pushes agent event lines to Grafana Loki's HTTP API. The
// analytics worker mirrors the usage stream here when LOKI_URL is set.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const jobLabel = "netra-apex"

// PushRequest is the body of POST /loki/api/v1/push.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream carries label pairs and [timestamp_ns, line] value tuples.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Loki label values tolerate most characters, but keep them boring.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// eventFields picks the agent-event fields used as stream labels.
type eventFields struct {
	OrgID     string `json:"org_id"`
	EventType string `json:"type"`
	AgentID   string `json:"agent_id"`
	CreatedAt string `json:"created_at"`
}

// PushEventJSON pushes a raw agent-event message, labeling the stream from
// the event's org/type/agent fields and timestamping it from created_at.
// A line that does not decode is still pushed, with the current time and
// only the job label, so nothing silently disappears.
func PushEventJSON(ctx context.Context, baseURL string, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()

	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.OrgID != "" {
			labels["org_id"] = fields.OrgID
		}
		if fields.EventType != "" {
			labels["event_type"] = fields.EventType
		}
		if fields.AgentID != "" {
			labels["agent_id"] = fields.AgentID
		}
		if parsed, err := time.Parse(time.RFC3339Nano, fields.CreatedAt); err == nil {
			ts = parsed
		}
	}
	return PushEvent(ctx, baseURL, ts, string(rawJSON), labels)
}

// PushEvent sends one log line to Loki at baseURL (e.g. http://localhost:3100).
// The job label is always set; extra labels are sanitized and empty ones
// dropped. Non-2xx responses are errors.
func PushEvent(ctx context.Context, baseURL string, timestamp time.Time, line string, labels map[string]string) error {
	if baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}

	stream := make(map[string]string, len(labels)+1)
	stream["job"] = jobLabel
	for name, value := range labels {
		if clean := labelSanitize.ReplaceAllString(strings.TrimSpace(value), "_"); clean != "" {
			stream[name] = clean
		}
	}

	payload, err := json.Marshal(PushRequest{
		Streams: []Stream{{
			Stream: stream,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	})
	if err != nil {
		return err
	}

	pushURL := strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
