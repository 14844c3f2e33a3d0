package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/recall/pkg/types"
)

const (
	neo4jFulltextIndex = "context_item_content"
	neo4jVectorIndex   = "context_item_embedding"
)

// Neo4jStore implements GraphStore on a Neo4j database. Items are stored
// as ContextItem nodes; search combines the fulltext index with the vector
// index and normalizes scores to [0, 1].
type Neo4jStore struct {
	client     neo4j.DriverWithContext
	database   string
	dimensions int
}

// NewNeo4jStore creates a Neo4j graph store.
func NewNeo4jStore(uri, username, password, database string, dimensions int) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: driver, database: database, dimensions: dimensions}, nil
}

// EnsureIndexes creates the fulltext and vector indexes if missing.
func (n *Neo4jStore) EnsureIndexes(ctx context.Context) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	queries := []string{
		fmt.Sprintf(`CREATE FULLTEXT INDEX %s IF NOT EXISTS
			FOR (c:ContextItem) ON EACH [c.text]`, neo4jFulltextIndex),
		fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (c:ContextItem) ON (c.embedding)
			OPTIONS {indexConfig: {
				` + "`vector.dimensions`" + `: $dimensions,
				` + "`vector.similarity_function`" + `: 'cosine'
			}}`, neo4jVectorIndex),
	}
	for _, query := range queries {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, query, map[string]any{"dimensions": n.dimensions})
		})
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Upsert stores items as ContextItem nodes keyed by id.
func (n *Neo4jStore) Upsert(ctx context.Context, items []types.ContextItem) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (c:ContextItem {id: $id})
			SET c.content_type = $content_type,
				c.text = $text,
				c.payload = $payload,
				c.metadata = $metadata,
				c.embedding = $embedding,
				c.created_at = $created_at,
				c.updated_at = $updated_at
		`
		for _, item := range items {
			if item.ID == "" {
				continue
			}
			payload, err := json.Marshal(item.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to encode item %s: %w", item.ID, err)
			}
			metadata, err := json.Marshal(item.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to encode item %s metadata: %w", item.ID, err)
			}

			createdAt := item.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}

			_, err = tx.Run(ctx, query, map[string]any{
				"id":           item.ID,
				"content_type": string(item.ContentType),
				"text":         flattenText(item.Content),
				"payload":      string(payload),
				"metadata":     string(metadata),
				"embedding":    item.Embedding,
				"created_at":   createdAt.UTC().Format(time.RFC3339),
				"updated_at":   time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}
	return nil
}

// Search runs fulltext and vector index queries and merges them, keeping
// the best score per node.
func (n *Neo4jStore) Search(ctx context.Context, query string, vector []float32, limit int, filter map[string]any) ([]Hit, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	if limit <= 0 {
		limit = 10
	}

	best := make(map[string]Hit)

	if strings.TrimSpace(query) != "" {
		hits, err := n.fulltextSearch(ctx, session, query, limit)
		if err != nil {
			return nil, err
		}
		mergeBest(best, hits)
	}
	if len(vector) > 0 {
		hits, err := n.vectorSearch(ctx, session, vector, limit)
		if err != nil {
			return nil, err
		}
		mergeBest(best, hits)
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		if matchesHitFilter(h, filter) {
			hits = append(hits, h)
		}
	}
	return topHits(hits, limit), nil
}

func (n *Neo4jStore) fulltextSearch(ctx context.Context, session neo4j.SessionWithContext, query string, limit int) ([]Hit, error) {
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query)
			YIELD node, score
			RETURN node.id AS id, node.payload AS payload, node.metadata AS metadata, score
			LIMIT $limit
		`, neo4jFulltextIndex)
		res, err := tx.Run(ctx, cypher, map[string]any{
			"query": sanitizeLucene(query),
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search failed: %w", err)
	}

	records, _ := result.([]*neo4j.Record)
	hits := collectHits(records)
	// Lucene scores are unbounded; squash into [0, 1].
	for i := range hits {
		hits[i].Score = hits[i].Score / (1 + hits[i].Score)
	}
	return hits, nil
}

func (n *Neo4jStore) vectorSearch(ctx context.Context, session neo4j.SessionWithContext, vector []float32, limit int) ([]Hit, error) {
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := fmt.Sprintf(`
			CALL db.index.vector.queryNodes('%s', $limit, $vector)
			YIELD node, score
			RETURN node.id AS id, node.payload AS payload, node.metadata AS metadata, score
		`, neo4jVectorIndex)
		res, err := tx.Run(ctx, cypher, map[string]any{
			"vector": vector,
			"limit":  limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	records, _ := result.([]*neo4j.Record)
	return collectHits(records), nil
}

func (n *Neo4jStore) Close() error {
	return n.client.Close(context.Background())
}

func collectHits(records []*neo4j.Record) []Hit {
	hits := make([]Hit, 0, len(records))
	for _, record := range records {
		idValue, _ := record.Get("id")
		id, ok := idValue.(string)
		if !ok || id == "" {
			continue
		}

		hit := Hit{ID: id, Payload: map[string]any{}}
		if scoreValue, ok := record.Get("score"); ok {
			if score, ok := scoreValue.(float64); ok {
				hit.Score = score
			}
		}
		if payloadValue, ok := record.Get("payload"); ok {
			if payload, ok := payloadValue.(string); ok && payload != "" {
				var decoded map[string]any
				if json.Unmarshal([]byte(payload), &decoded) == nil {
					hit.Payload = decoded
				}
			}
		}
		if metadataValue, ok := record.Get("metadata"); ok {
			if metadata, ok := metadataValue.(string); ok && metadata != "" {
				var decoded map[string]any
				if json.Unmarshal([]byte(metadata), &decoded) == nil {
					hit.Metadata = decoded
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

func mergeBest(best map[string]Hit, hits []Hit) {
	for _, h := range hits {
		if existing, ok := best[h.ID]; !ok || h.Score > existing.Score {
			best[h.ID] = h
		}
	}
}

func matchesHitFilter(h Hit, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	return matchesFilter(h.Metadata, filter)
}

// flattenText builds the indexable text column from a payload.
func flattenText(payload map[string]any) string {
	var parts []string
	for _, key := range []string{"title", "description", "text", "content", "body"} {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// sanitizeLucene escapes characters with special meaning in Lucene query
// syntax so user text cannot break the fulltext call.
func sanitizeLucene(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ GraphStore = (*Neo4jStore)(nil)
