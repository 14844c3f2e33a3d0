package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// ErrEmptyContent is returned when a store request carries no content.
var ErrEmptyContent = errors.New("store request has no content")

// StoreContext ingests one item. The embedding is generated from the
// item's content; conversational turns additionally run through the Q&A
// detector and land in the item's metadata as side-channel data the
// retrieval pipeline boosts on. An embedding failure does not fail the
// ingest: the item is stored without a vector and found lexically.
func (e *Engine) StoreContext(ctx context.Context, req StoreRequest) (*types.ContextItem, error) {
	content := req.Content
	turns := req.Turns
	if len(turns) == 0 {
		turns = turnsFromContent(content)
	}
	if len(content) == 0 && len(turns) == 0 {
		return nil, ErrEmptyContent
	}
	if len(content) == 0 {
		content = contentFromTurns(turns)
	}

	item := types.ContextItem{
		ID:          req.ID,
		ContentType: req.ContentType,
		Content:     content,
		Metadata:    cloneMap(req.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	if item.ID == "" {
		item.ID = mintID()
	}
	if item.ContentType == "" {
		item.ContentType = types.ContentTypeLog
	}
	if len(turns) > 0 {
		item.ContentType = types.ContentTypeConversation
	}

	if len(turns) > 0 {
		if item.Metadata == nil {
			item.Metadata = make(map[string]any)
		}
		if pairs := e.detector.DetectQARelationships(turns); len(pairs) > 0 {
			item.Metadata["qa_pairs"] = pairs
		}
		if facts := e.detector.ExtractFactualStatements(turns); len(facts) > 0 {
			item.Metadata["facts"] = facts
		}
	}

	if e.embedder != nil {
		vector, err := e.embedder.GenerateEmbedding(ctx, item.Content, true)
		if err != nil {
			e.logger.Warn("embedding failed, storing item without vector",
				"item_id", item.ID, "error", err)
		} else {
			item.Embedding = vector
		}
	}

	if err := e.vector.Upsert(ctx, []types.ContextItem{item}); err != nil {
		return nil, fmt.Errorf("failed to store item %s: %w", item.ID, err)
	}
	if e.graph != nil {
		if err := e.graph.Upsert(ctx, []types.ContextItem{item}); err != nil {
			// Graph is a secondary index; a failed graph write degrades
			// graph recall for this item but the item is stored.
			e.logger.Warn("graph upsert failed", "item_id", item.ID, "error", err)
		}
	}

	e.logger.Debug("stored context item",
		"item_id", item.ID,
		"content_type", item.ContentType,
		"embedded", len(item.Embedding) > 0,
		"qa_pairs", len(turns) > 0,
	)
	return &item, nil
}

// turnsFromContent pulls conversational turns out of a content payload
// carrying a "turns" list, as submitted by agent frameworks.
func turnsFromContent(content map[string]any) []types.Turn {
	raw, ok := content["turns"].([]any)
	if !ok {
		return nil
	}
	var turns []types.Turn
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text, _ := m["content"].(string)
		turns = append(turns, types.Turn{Role: role, Content: text})
	}
	return turns
}

// contentFromTurns builds a text payload from raw turns so turn-only
// requests are still searchable.
func contentFromTurns(turns []types.Turn) map[string]any {
	text := ""
	for _, t := range turns {
		if text != "" {
			text += "\n"
		}
		text += t.Role + ": " + t.Content
	}
	return map[string]any{"text": text}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
