// Package recall provides a hybrid context-retrieval engine for AI agents.
//
// Recall stores heterogeneous context items (design documents, decisions,
// logs, traces, conversations) with embeddings and serves ranked retrieval
// that combines dense vector search, lexical matching, query expansion,
// Q&A-aware boosting and reranking. Retrieval degrades gracefully: a failed
// backend contributes nothing instead of failing the request.
//
// # Basic Usage
//
// Create an engine from configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := recall.New(ctx, cfg, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
// # Storing Context
//
// Context items are embedded on ingest. Conversational content is mined for
// question/answer pairs and factual statements, which later boost retrieval:
//
//	item, err := engine.StoreContext(ctx, recall.StoreRequest{
//		Turns: []types.Turn{
//			{Role: "user", Content: "What's my name?"},
//			{Role: "assistant", Content: "My name is Matt"},
//		},
//	})
//
// # Retrieving Context
//
// Queries are expanded into related phrasings, run against the vector and
// graph stores in parallel, fused by id, and optionally reranked:
//
//	resp, err := engine.RetrieveContext(ctx, "What's my name?", &recall.RetrieveOptions{
//		Limit: 5,
//	})
//	for _, r := range resp.Results {
//		fmt.Println(r.ID, r.Score)
//	}
//
// The cmd/recall binary exposes the same engine over HTTP (recall server)
// and as a one-shot CLI query (recall search).
package recall
