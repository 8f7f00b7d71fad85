package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestPushEvent_EmptyURL(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "line", nil); err == nil {
		t.Fatal("empty base URL should error")
	}
}

func TestPushEventJSON_SendsLabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw := []byte(`{"id":"evt1","org_id":"org-1","type":"run_started","agent_id":"agent-sql","created_at":"2026-08-26T10:00:00Z"}`)
	if err := PushEventJSON(context.Background(), srv.URL, raw); err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("expected one stream, got %d", len(got.Streams))
	}
	labels := got.Streams[0].Stream
	if labels["job"] != "netra-apex" || labels["org_id"] != "org-1" || labels["event_type"] != "run_started" {
		t.Fatalf("labels wrong: %v", labels)
	}
	want := strconv.FormatInt(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC).UnixNano(), 10)
	if got.Streams[0].Values[0][0] != want {
		t.Fatalf("timestamp wrong: %s, want %s", got.Streams[0].Values[0][0], want)
	}
	if got.Streams[0].Values[0][1] != string(raw) {
		t.Fatal("log line should be the raw event JSON")
	}
}

func TestPushEventJSON_GarbageStillPushes(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := PushEventJSON(context.Background(), srv.URL, []byte("not json")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one push, got %d", calls)
	}
}

func TestPushEvent_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil); err == nil {
		t.Fatal("500 response should be an error")
	}
}
