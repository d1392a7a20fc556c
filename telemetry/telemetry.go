//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry provides tracing helpers for model and embedding calls.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation constants.
const (
	InstrumentName = "trpc.simeval.go"

	OperationChat       = "chat"
	OperationEmbeddings = "embeddings"
)

// Semantic convention attribute keys used on spans.
const (
	KeyGenAIOperationName            = "gen_ai.operation.name"
	KeyGenAIRequestModel             = "gen_ai.request.model"
	KeyGenAIUsageInputTokens         = "gen_ai.usage.input_tokens"
	KeyGenAIUsageOutputTokens        = "gen_ai.usage.output_tokens"
	KeyGenAIEmbeddingsDimensionCount = "gen_ai.embeddings.dimension.count"
	KeyErrorMessage                  = "error.message"
)

// Tracer is the tracer used for all spans emitted by this module.
// It resolves against the globally registered otel tracer provider, so the
// caller controls exporters and sampling.
var Tracer = otel.Tracer(InstrumentName)

// NewChatSpanName creates a new chat span name.
func NewChatSpanName(requestModel string) string {
	return fmt.Sprintf("%s %s", OperationChat, requestModel)
}

// NewEmbeddingsSpanName creates a new embeddings span name.
func NewEmbeddingsSpanName(requestModel string) string {
	return fmt.Sprintf("%s %s", OperationEmbeddings, requestModel)
}

// ChatAttributes represents the attributes of a chat completion call.
type ChatAttributes struct {
	RequestModel string
	InputTokens  *int64
	OutputTokens *int64
	Error        error
}

// TraceChat records the attributes of a chat completion call on the span.
func TraceChat(span trace.Span, chatAttributes *ChatAttributes) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationChat),
		attribute.String(KeyGenAIRequestModel, chatAttributes.RequestModel),
	}
	if chatAttributes.InputTokens != nil {
		attrs = append(attrs, attribute.Int64(KeyGenAIUsageInputTokens, *chatAttributes.InputTokens))
	}
	if chatAttributes.OutputTokens != nil {
		attrs = append(attrs, attribute.Int64(KeyGenAIUsageOutputTokens, *chatAttributes.OutputTokens))
	}
	if chatAttributes.Error != nil {
		attrs = append(attrs, attribute.String(KeyErrorMessage, chatAttributes.Error.Error()))
	}
	span.SetAttributes(attrs...)
	if chatAttributes.Error != nil {
		span.SetStatus(codes.Error, chatAttributes.Error.Error())
	}
}

// EmbeddingAttributes represents the attributes of an embedding call.
type EmbeddingAttributes struct {
	RequestModel string
	Dimensions   int
	InputTokens  *int64
	Error        error
}

// TraceEmbedding records the attributes of an embedding call on the span.
func TraceEmbedding(span trace.Span, embeddingAttributes *EmbeddingAttributes) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationEmbeddings),
		attribute.String(KeyGenAIRequestModel, embeddingAttributes.RequestModel),
		attribute.Int(KeyGenAIEmbeddingsDimensionCount, embeddingAttributes.Dimensions),
	}
	if embeddingAttributes.InputTokens != nil {
		attrs = append(attrs, attribute.Int64(KeyGenAIUsageInputTokens, *embeddingAttributes.InputTokens))
	}
	if embeddingAttributes.Error != nil {
		attrs = append(attrs, attribute.String(KeyErrorMessage, embeddingAttributes.Error.Error()))
	}
	span.SetAttributes(attrs...)
	if embeddingAttributes.Error != nil {
		span.SetStatus(codes.Error, embeddingAttributes.Error.Error())
	}
}
