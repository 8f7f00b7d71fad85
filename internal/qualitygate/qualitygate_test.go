package qualitygate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.entries[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

func newTestService(cache Cache) *Service {
	return NewService(cache, time.Minute, 0.7, 1024, nil)
}

func TestValidate_UnknownContentType(t *testing.T) {
	svc := newTestService(nil)
	if _, err := svc.Validate(context.Background(), ContentType("yaml"), "x"); err != ErrUnknownContentType {
		t.Fatalf("expected ErrUnknownContentType, got %v", err)
	}
}

func TestValidate_EmptyContentFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeChatResponse, "   \n\t")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("empty content should not pass")
	}
	if res.Score != 0 {
		t.Fatalf("expected score 0, got %v", res.Score)
	}
}

func TestValidate_CleanChatResponsePasses(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeChatResponse, "Here is a concise summary of the deployment steps you asked about.")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Passed || res.Score != 1.0 {
		t.Fatalf("expected clean pass, got passed=%v score=%v issues=%v", res.Passed, res.Score, res.Issues)
	}
	if res.ContentType != ContentTypeChatResponse {
		t.Fatalf("unexpected content type %q", res.ContentType)
	}
}

func TestValidate_UnresolvedPlaceholderFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeChatResponse, "Hello {{customer_name}}, your order shipped.")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("placeholder content should not pass")
	}
	if len(res.Issues) == 0 || !strings.Contains(res.Issues[0], "{{") {
		t.Fatalf("expected placeholder issue, got %v", res.Issues)
	}
}

func TestValidate_RepetitionFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeChatResponse, strings.Repeat("again ", 40))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("degenerate repetition should not pass")
	}
}

func TestValidate_InvalidJSONFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeJSON, `{"status": "ok",`)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("malformed JSON should not pass")
	}

	res, err = svc.Validate(context.Background(), ContentTypeJSON, `{"status": "ok", "items": [1, 2, 3]}`)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Passed {
		t.Fatalf("well-formed JSON should pass, issues=%v", res.Issues)
	}
}

func TestValidate_UnbalancedCodeFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeCode, "func main() {\n\tif ready {\n\t\trun()\n}")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("unbalanced braces should not pass")
	}
}

func TestValidate_UnterminatedFenceFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeMarkdown, "# Setup\n\n```bash\nmake install\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("open code fence should not pass")
	}
}

func TestValidate_OversizedContentFails(t *testing.T) {
	svc := newTestService(nil)
	res, err := svc.Validate(context.Background(), ContentTypeChatResponse, strings.Repeat("The quick brown fox jumps over a lazy dog. ", 100))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("oversized content should not pass with maxBytes=1024")
	}
}

func TestValidate_CacheHit(t *testing.T) {
	cache := newMemCache()
	svc := newTestService(cache)
	ctx := context.Background()

	first, err := svc.Validate(ctx, ContentTypeChatResponse, "A perfectly normal answer.")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if first.Cached {
		t.Fatal("first validation should not be a cache hit")
	}
	if cache.sets != 1 {
		t.Fatalf("expected 1 cache set, got %d", cache.sets)
	}

	second, err := svc.Validate(ctx, ContentTypeChatResponse, "A perfectly normal answer.")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !second.Cached {
		t.Fatal("second validation should be served from cache")
	}
	if second.Passed != first.Passed || second.Score != first.Score {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
	if cache.sets != 1 {
		t.Fatalf("cache hit should not write again, sets=%d", cache.sets)
	}
}

func TestValidate_CacheKeyVariesByType(t *testing.T) {
	a := cacheKey(ContentTypeJSON, "{}")
	b := cacheKey(ContentTypeChatResponse, "{}")
	if a == b {
		t.Fatal("cache key must include the content type")
	}
}
