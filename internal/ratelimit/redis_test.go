package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKey_StableAndCaseInsensitive(t *testing.T) {
	k1 := Key("Dev@Netra.AI", "10.0.0.1")
	k2 := Key(" dev@netra.ai ", "10.0.0.1")
	if k1 != k2 {
		t.Errorf("keys should normalize email case/space: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "ratelimit:login:") {
		t.Errorf("key %q missing prefix", k1)
	}
	if strings.Contains(k1, "dev@netra.ai") {
		t.Error("raw email must not appear in the key")
	}
}

func TestKey_VariesByIP(t *testing.T) {
	if Key("dev@netra.ai", "10.0.0.1") == Key("dev@netra.ai", "10.0.0.2") {
		t.Error("different IPs should map to different keys")
	}
}

func TestAllow_NilClientFailsOpen(t *testing.T) {
	var l *RedisLimiter
	ok, err := l.Allow(context.Background(), "dev@netra.ai", "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("nil limiter should allow, got ok=%v err=%v", ok, err)
	}

	l = NewRedisLimiter(nil, 5, time.Minute, nil)
	ok, err = l.Allow(context.Background(), "dev@netra.ai", "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("limiter without client should allow, got ok=%v err=%v", ok, err)
	}
}

func TestAllow_ZeroLimitDisables(t *testing.T) {
	l := NewRedisLimiter(nil, 0, time.Minute, nil)
	ok, err := l.Allow(context.Background(), "dev@netra.ai", "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("zero limit should disable limiting, got ok=%v err=%v", ok, err)
	}
}
