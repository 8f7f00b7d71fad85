package audit

import "testing"

func TestParseRoute(t *testing.T) {
	tests := []struct {
		method, route string
		action        string
		resource      string
	}{
		{"POST", "/auth/login", "login", "auth"},
		{"POST", "/auth/dev_login", "dev_login", "auth"},
		{"GET", "/auth/verify", "verify", "auth"},
		{"POST", "/auth/logout", "logout", "auth"},
		{"POST", "/agents/runs", "runs", "agents"},
		{"GET", "/agents/runs/{runID}", "runs", "agents"},
		{"GET", "/health", "get", "health"},
		{"GET", "/", "get", "root"},
		{"DELETE", "/sessions/{sessionID}", "delete", "sessions"},
	}
	for _, tt := range tests {
		got := ParseRoute(tt.method, tt.route)
		if got.Action != tt.action || got.Resource != tt.resource {
			t.Errorf("ParseRoute(%s %s) = %+v, want action=%s resource=%s",
				tt.method, tt.route, got, tt.action, tt.resource)
		}
	}
}
