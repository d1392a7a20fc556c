//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces for text embedding.
package embedder

import "context"

// Embedder turns text into a fixed-length numeric vector.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the number of dimensions in the embedding vectors.
	GetDimensions() int
}
