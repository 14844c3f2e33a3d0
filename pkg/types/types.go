package types

import (
	"time"
)

// ContentType classifies a stored context item.
type ContentType string

const (
	ContentTypeDesign       ContentType = "design"
	ContentTypeDecision     ContentType = "decision"
	ContentTypeTrace        ContentType = "trace"
	ContentTypeSprint       ContentType = "sprint"
	ContentTypeLog          ContentType = "log"
	ContentTypeConversation ContentType = "conversation"
)

// ContextItem is a stored unit of agent context. Items are immutable after
// ingestion except for metadata enrichment (Q&A and fact side-channel data).
type ContextItem struct {
	ID          string         `json:"id"`
	ContentType ContentType    `json:"content_type"`
	Content     map[string]any `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Embedding   []float32      `json:"embedding,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Turn is a single message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QARelationship links a question turn to its answer turn within one
// conversation. Derived data, recomputed whenever the source is reprocessed.
type QARelationship struct {
	QuestionContent string  `json:"question_content"`
	AnswerContent   string  `json:"answer_content"`
	QuestionIndex   int     `json:"question_index"`
	AnswerIndex     int     `json:"answer_index"`
	Confidence      float64 `json:"confidence"`
}

// FactType classifies the kind of personal fact a statement carries.
type FactType string

const (
	FactName       FactType = "name"
	FactProfession FactType = "profession"
	FactLocation   FactType = "location"
	FactContact    FactType = "contact"
	FactPreference FactType = "preference"
	FactAge        FactType = "age"
)

// FactualStatement is a standalone sentence from a conversation classified as
// carrying one or more durable personal facts.
type FactualStatement struct {
	Content   string              `json:"content"`
	FactTypes []FactType          `json:"fact_types"`
	Entities  map[string][]string `json:"entities"`
}

// SearchSource identifies which backend produced a candidate.
type SearchSource string

const (
	SourceVector SearchSource = "vector"
	SourceGraph  SearchSource = "graph"
)

// SearchMode selects which retrieval paths a query exercises.
type SearchMode string

const (
	SearchModeDense   SearchMode = "dense"
	SearchModeLexical SearchMode = "lexical"
	SearchModeHybrid  SearchMode = "hybrid"
)

// SearchCandidate is a per-query transient record flowing through the
// scoring, reranking and fusion stages. Never persisted.
type SearchCandidate struct {
	ID           string         `json:"id"`
	RawPayload   map[string]any `json:"raw_payload,omitempty"`
	DenseScore   float64        `json:"dense_score"`
	LexicalScore float64        `json:"lexical_score"`
	HybridScore  float64        `json:"hybrid_score"`
	RerankScore  *float64       `json:"rerank_score,omitempty"`
	FusedScore   float64        `json:"fused_score,omitempty"`
	Source       SearchSource   `json:"source"`

	// Q&A side-channel data matched against the incoming query.
	QABoost          float64          `json:"qa_boost,omitempty"`
	QARelevanceScore float64          `json:"qa_relevance_score,omitempty"`
	RelevantFacts    []string         `json:"relevant_facts,omitempty"`
	RelevantQAPairs  []QARelationship `json:"relevant_qa_pairs,omitempty"`
}

// ScoreBreakdown carries the per-stage scores of one result.
type ScoreBreakdown struct {
	Dense   float64  `json:"dense"`
	Lexical float64  `json:"lexical"`
	Hybrid  float64  `json:"hybrid"`
	Rerank  *float64 `json:"rerank,omitempty"`
}

// SearchResult is one entry of a retrieval response.
type SearchResult struct {
	ID      string         `json:"id"`
	Content map[string]any `json:"content"`
	Score   float64        `json:"score"`
	Source  SearchSource   `json:"source"`
	Scores  ScoreBreakdown `json:"scores"`
}

// RetrieveResponse is the full answer to one retrieval request. Success is
// false only when every backend failed; partial backend outages degrade
// recall, not availability.
type RetrieveResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
	Success bool           `json:"success"`
	Total   int            `json:"total"`
}

// ContextKey is the type used for request-scoped context values.
type ContextKey string

const (
	ContextKeyUserID        ContextKey = "user_id"
	ContextKeySessionID     ContextKey = "session_id"
	ContextKeyRequestSource ContextKey = "request_source"
)
