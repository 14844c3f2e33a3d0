package embedding

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalClient implements ModelClient using go-embedeverything, which runs
// sentence-transformer models in-process without a network dependency.
type LocalClient struct {
	client     *embedeverything.Embedder
	dimensions int
}

// LocalConfig configures the local embedding client.
type LocalConfig struct {
	Model      string
	Dimensions int
}

// NewLocalClient creates a local embedding model client.
func NewLocalClient(config LocalConfig) (*LocalClient, error) {
	if config.Model == "" {
		config.Model = "all-MiniLM-L6-v2"
	}
	if config.Dimensions == 0 {
		config.Dimensions = 384
	}

	client, err := embedeverything.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create local embedder: %w", err)
	}

	return &LocalClient{
		client:     client,
		dimensions: config.Dimensions,
	}, nil
}

// Embed generates embeddings for the given texts.
func (c *LocalClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// go-embedeverything does not support context yet
	embeddings, err := c.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return embeddings, nil
}

// Dimensions returns the model's native output dimension.
func (c *LocalClient) Dimensions() int {
	return c.dimensions
}

// Close cleans up any resources.
func (c *LocalClient) Close() error {
	c.client.Close()
	return nil
}
