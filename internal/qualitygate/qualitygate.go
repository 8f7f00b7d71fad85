// Package qualitygate validates agent-produced content before it reaches users.
package qualitygate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ContentType classifies the content being validated.
type ContentType string

const (
	ContentTypeChatResponse ContentType = "chat_response"
	ContentTypeCode         ContentType = "code"
	ContentTypeJSON         ContentType = "json"
	ContentTypeMarkdown     ContentType = "markdown"
)

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeChatResponse, ContentTypeCode, ContentTypeJSON, ContentTypeMarkdown:
		return true
	}
	return false
}

// ValidationResult is the outcome of validating one piece of content.
// Identical content always produces the same result, so results are cache-safe.
type ValidationResult struct {
	ContentType ContentType `json:"content_type"`
	Passed      bool        `json:"passed"`
	Score       float64     `json:"score"` // 0..1, 1 is clean
	Issues      []string    `json:"issues,omitempty"`
	CheckedAt   time.Time   `json:"checked_at"`
	Cached      bool        `json:"cached,omitempty"`
}

// Cache stores validation results keyed by content hash. Implementations are
// best-effort; errors are swallowed by the service.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service validates content against per-type thresholds, caching results by
// content SHA-256.
type Service struct {
	cache    Cache
	cacheTTL time.Duration
	minScore float64
	maxBytes int
	log      *zap.Logger
}

// NewService returns a quality gate with the given cache (may be nil to
// disable caching). minScore is the pass threshold (default 0.7); maxBytes
// caps content size (default 256 KiB).
func NewService(cache Cache, cacheTTL time.Duration, minScore float64, maxBytes int, log *zap.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	if minScore <= 0 || minScore > 1 {
		minScore = 0.7
	}
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cache: cache, cacheTTL: cacheTTL, minScore: minScore, maxBytes: maxBytes, log: log}
}

// Validate runs the checks for contentType over content. Results for
// identical (type, content) pairs are served from cache when available.
func (s *Service) Validate(ctx context.Context, contentType ContentType, content string) (*ValidationResult, error) {
	if !contentType.Valid() {
		return nil, ErrUnknownContentType
	}
	key := cacheKey(contentType, content)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != nil {
			var cached ValidationResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.Cached = true
				return &cached, nil
			}
		}
	}

	result := s.run(contentType, content)

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.log.Debug("qualitygate: cache set failed", zap.Error(err))
			}
		}
	}
	return result, nil
}

func (s *Service) run(contentType ContentType, content string) *ValidationResult {
	var issues []string
	score := 1.0
	deduct := func(issue string, penalty float64) {
		issues = append(issues, issue)
		score -= penalty
	}

	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		deduct("content is empty", 1.0)
	case len(content) > s.maxBytes:
		deduct("content exceeds maximum size", 0.5)
	}

	if trimmed != "" {
		if hits := unresolvedPlaceholders(content); len(hits) > 0 {
			deduct("unresolved placeholders: "+strings.Join(hits, ", "), 0.4)
		}
		if ratio := repetitionRatio(trimmed); ratio > 0.5 {
			deduct("excessive repetition", 0.3)
		}
		switch contentType {
		case ContentTypeJSON:
			if !json.Valid([]byte(trimmed)) {
				deduct("content is not valid JSON", 0.6)
			}
		case ContentTypeCode:
			if unbalancedDelimiters(trimmed) {
				deduct("unbalanced brackets", 0.3)
			}
		case ContentTypeMarkdown:
			if strings.Count(trimmed, "```")%2 != 0 {
				deduct("unterminated code fence", 0.3)
			}
		}
	}

	if score < 0 {
		score = 0
	}
	return &ValidationResult{
		ContentType: contentType,
		Passed:      score >= s.minScore,
		Score:       score,
		Issues:      issues,
		CheckedAt:   time.Now().UTC(),
	}
}

// unresolvedPlaceholders finds template/token markers that should never ship
// to users, e.g. {{name}}, TODO_REPLACE, <PLACEHOLDER>.
func unresolvedPlaceholders(content string) []string {
	var hits []string
	for _, marker := range []string{"{{", "TODO_REPLACE", "<PLACEHOLDER>", "REMOVED_SYNTAX_ERROR", "XXX_FIXME"} {
		if strings.Contains(content, marker) {
			hits = append(hits, marker)
		}
	}
	return hits
}

// repetitionRatio returns the share of words that repeat the most common word.
// High values catch degenerate generation loops ("the the the ...").
func repetitionRatio(content string) float64 {
	words := strings.Fields(content)
	if len(words) < 10 {
		return 0
	}
	counts := make(map[string]int, len(words))
	max := 0
	for _, w := range words {
		w = strings.ToLower(w)
		counts[w]++
		if counts[w] > max {
			max = counts[w]
		}
	}
	return float64(max) / float64(len(words))
}

func unbalancedDelimiters(content string) bool {
	depth := map[rune]int{}
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	for _, r := range content {
		switch r {
		case '(', '[', '{':
			depth[r]++
		case ')', ']', '}':
			depth[pairs[r]]--
		}
	}
	for _, d := range depth {
		if d != 0 {
			return true
		}
	}
	return false
}

func cacheKey(contentType ContentType, content string) string {
	h := sha256.Sum256([]byte(string(contentType) + "\x00" + content))
	return "qualitygate:" + hex.EncodeToString(h[:])
}
