package rerank

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

// Strategy attempts to pull usable text out of a raw candidate payload.
// Strategies are tried in priority order; each has an independent contract
// and can be tested on its own.
type Strategy interface {
	Name() string
	TryExtract(payload map[string]any) (string, bool)
}

// Candidate payloads differ by originating backend and by historical schema
// version; the ordered strategy list preserves every known fallback.
var strategies = []Strategy{
	directTextStrategy{},
	contentStringStrategy{},
	contentTextStrategy{},
	nestedPayloadStrategy{},
	toolCallBlocksStrategy{},
	bodyStrategy{},
	serializeStrategy{},
}

// ExtractText attempts every strategy in priority order and returns the
// first non-empty-after-trim result. It returns the empty string only when
// the payload truly contains no text-bearing field, and never fails.
func ExtractText(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	for _, s := range strategies {
		if text, ok := s.TryExtract(payload); ok {
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// directTextStrategy reads a top-level text field.
type directTextStrategy struct{}

func (directTextStrategy) Name() string { return "direct_text" }

func (directTextStrategy) TryExtract(payload map[string]any) (string, bool) {
	return stringField(payload, "text")
}

// contentStringStrategy reads content as a plain string. Strings that look
// like (possibly truncated or malformed) JSON documents are repaired and
// re-extracted, a shape produced by older exporters that serialized nested
// payloads into the content column.
type contentStringStrategy struct{}

func (contentStringStrategy) Name() string { return "content_string" }

func (contentStringStrategy) TryExtract(payload map[string]any) (string, bool) {
	s, ok := stringField(payload, "content")
	if !ok {
		return "", false
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if repaired, err := jsonrepair.JSONRepair(trimmed); err == nil {
			var nested map[string]any
			if json.Unmarshal([]byte(repaired), &nested) == nil {
				if text := ExtractText(nested); text != "" {
					return text, true
				}
			}
		}
	}
	return s, true
}

// contentTextStrategy reads content.text.
type contentTextStrategy struct{}

func (contentTextStrategy) Name() string { return "content_text" }

func (contentTextStrategy) TryExtract(payload map[string]any) (string, bool) {
	content, ok := payload["content"].(map[string]any)
	if !ok {
		return "", false
	}
	return stringField(content, "text")
}

// nestedPayloadStrategy reads payload.content.text, the doubly nested shape
// MCP-style gateways produce.
type nestedPayloadStrategy struct{}

func (nestedPayloadStrategy) Name() string { return "nested_payload" }

func (nestedPayloadStrategy) TryExtract(payload map[string]any) (string, bool) {
	inner, ok := payload["payload"].(map[string]any)
	if !ok {
		return "", false
	}
	if content, ok := inner["content"].(map[string]any); ok {
		if text, ok := stringField(content, "text"); ok {
			return text, true
		}
	}
	return stringField(inner, "text")
}

// toolCallBlocksStrategy reads content as a list of {type, text} blocks and
// concatenates every text field.
type toolCallBlocksStrategy struct{}

func (toolCallBlocksStrategy) Name() string { return "tool_call_blocks" }

func (toolCallBlocksStrategy) TryExtract(payload map[string]any) (string, bool) {
	blocks, ok := payload["content"].([]any)
	if !ok {
		return "", false
	}

	var parts []string
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := stringField(block, "text"); ok && strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// bodyStrategy reads a top-level body field.
type bodyStrategy struct{}

func (bodyStrategy) Name() string { return "body" }

func (bodyStrategy) TryExtract(payload map[string]any) (string, bool) {
	return stringField(payload, "body")
}

// serializeStrategy is the last resort: a canonical JSON serialization of
// the whole payload, skipped when the payload holds no non-empty leaf
// values so genuinely empty payloads still extract to "".
type serializeStrategy struct{}

func (serializeStrategy) Name() string { return "serialize" }

func (serializeStrategy) TryExtract(payload map[string]any) (string, bool) {
	if !hasContentLeaf(payload) {
		return "", false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload), true
	}
	return string(data), true
}

func hasContentLeaf(v any) bool {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case float64, int, int64, bool, json.Number:
		return true
	case map[string]any:
		for _, nested := range val {
			if hasContentLeaf(nested) {
				return true
			}
		}
		return false
	case []any:
		for _, nested := range val {
			if hasContentLeaf(nested) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func stringField(m map[string]any, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
