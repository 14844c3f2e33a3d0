// Package types defines the shared data model of the recall engine:
// stored context items, conversation turns, derived Q&A relationships and
// factual statements, and the transient search candidate/result records that
// flow through the retrieval pipeline.
package types
