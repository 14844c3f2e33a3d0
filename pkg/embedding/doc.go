// Package embedding turns text and structured content into fixed-dimension
// vectors.
//
// The Service front-ends a pluggable ModelClient (OpenAI or a local
// in-process model) with a byte- and count-bounded TTL LRU cache, a bounded
// cancellable retry policy, an optional circuit breaker, and silent
// dimension reconciliation: model output shorter than the target dimension
// is zero-padded, longer output is truncated. A dimension mismatch is never
// a request error.
//
// # Usage
//
//	model := embedding.NewOpenAIClient(embedding.OpenAIConfig{APIKey: key})
//	svc, err := embedding.NewService(model, embedding.Config{TargetDimensions: 1536}, nil)
//	if err := svc.Initialize(ctx); err != nil { ... }
//	vector, err := svc.GenerateEmbedding(ctx, "hello world", true)
//
// Health() exposes request counters, cache statistics and a derived alert
// list for the serving layer.
package embedding
