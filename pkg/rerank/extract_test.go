package rerank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The nine payload shapes different backends and schema versions produce.
func TestExtractTextCoversKnownPayloadShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string // "" means genuinely empty
	}{
		{"empty payload", map[string]any{}, ""},
		{"null content", map[string]any{"content": nil}, ""},
		{"nested empty", map[string]any{"content": map[string]any{}}, ""},
		{"direct text", map[string]any{"text": "direct text value"}, "direct text value"},
		{
			"nested text",
			map[string]any{"content": map[string]any{"text": "nested text value"}},
			"nested text value",
		},
		{"string content", map[string]any{"content": "plain string content"}, "plain string content"},
		{
			"tool-call array",
			map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "first block"},
				map[string]any{"type": "text", "text": "second block"},
			}},
			"first block\nsecond block",
		},
		{
			"doubly-nested mcp style",
			map[string]any{"payload": map[string]any{"content": map[string]any{"text": "deeply nested"}}},
			"deeply nested",
		},
		{"body fallback", map[string]any{"body": "body text here"}, "body text here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractText(tt.payload)
			if tt.expected == "" {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestExtractTextRepairsJSONStringContent(t *testing.T) {
	// Older exporters serialized nested payloads into the content column,
	// sometimes truncating them mid-document.
	payload := map[string]any{"content": `{"text": "recovered from json", "extra": 1`}
	assert.Equal(t, "recovered from json", ExtractText(payload))
}

func TestExtractTextSerializationFallback(t *testing.T) {
	payload := map[string]any{"kind": "decision", "weight": 3.0}
	got := ExtractText(payload)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "decision")
}

func TestExtractTextPrefersDirectTextOverFallbacks(t *testing.T) {
	payload := map[string]any{
		"text": "winner",
		"body": "loser",
		"content": map[string]any{
			"text": "also loser",
		},
	}
	assert.Equal(t, "winner", ExtractText(payload))
}

func TestExtractTextNeverPanics(t *testing.T) {
	payloads := []map[string]any{
		nil,
		{"content": 42},
		{"content": []any{"not-a-map", 7}},
		{"payload": "not-a-map"},
		{"text": 99, "body": []any{}},
		{"content": map[string]any{"text": 5}},
	}
	for _, p := range payloads {
		assert.NotPanics(t, func() { ExtractText(p) })
	}
}

func TestClampForRerankUnderBudgetUnchanged(t *testing.T) {
	text := "short text"
	assert.Equal(t, text, ClampForRerank(text, 512))
}

func TestClampForRerankTruncatesToSentenceBoundary(t *testing.T) {
	sentence := "This is a complete sentence. "
	text := strings.Repeat(sentence, 200)

	clamped := ClampForRerank(text, 512)
	assert.LessOrEqual(t, len(clamped), 512*4)
	assert.True(t, strings.HasSuffix(clamped, "."), "clamp should back off to a sentence boundary")
}

func TestClampForRerankNoBoundaryHardCut(t *testing.T) {
	text := strings.Repeat("x", 5000)
	clamped := ClampForRerank(text, 512)
	assert.Equal(t, 512*4, len(clamped))
}
