//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"testing"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-simeval-go/model"
)

func TestNewDefaults(t *testing.T) {
	m := New("gpt-4.1-mini")
	assert.Equal(t, "gpt-4.1-mini", m.Info().Name)
	assert.Equal(t, DefaultMaxRetries, m.maxRetries)
	assert.Equal(t, defaultRetryBackoff, m.retryBackoff)
}

func TestNewOptions(t *testing.T) {
	backoff := []time.Duration{time.Millisecond}
	m := New("gpt-4.1",
		WithAPIKey("key"),
		WithBaseURL("http://localhost:8080/v1"),
		WithMaxRetries(5),
		WithRetryBackoff(backoff),
	)
	assert.Equal(t, "key", m.apiKey)
	assert.Equal(t, "http://localhost:8080/v1", m.baseURL)
	assert.Equal(t, 5, m.maxRetries)
	assert.Equal(t, backoff, m.retryBackoff)

	m = New("gpt-4.1", WithMaxRetries(-1))
	assert.Equal(t, 0, m.maxRetries)
}

func TestGenerateContentValidatesRequest(t *testing.T) {
	m := New("gpt-4.1-mini")

	_, err := m.GenerateContent(context.Background(), nil)
	assert.Error(t, err)

	_, err = m.GenerateContent(context.Background(), &model.Request{})
	assert.Error(t, err)
}

func TestBuildChatRequestStructuredOutput(t *testing.T) {
	m := New("gpt-4.1-mini")
	maxTokens := 256
	temperature := 0.3
	request := &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
		GenerationConfig: model.GenerationConfig{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Stop:        []string{"END"},
		},
		StructuredOutput: &model.StructuredOutput{
			Type: model.StructuredOutputJSONSchema,
			JSONSchema: &model.JSONSchemaConfig{
				Name:   "payload",
				Strict: true,
				Schema: map[string]any{"type": "object"},
			},
		},
	}

	chatRequest := m.buildChatRequest(request)
	assert.Equal(t, "gpt-4.1-mini", string(chatRequest.Model))
	require.Len(t, chatRequest.Messages, 1)

	require.NotNil(t, chatRequest.ResponseFormat.OfJSONSchema)
	js := chatRequest.ResponseFormat.OfJSONSchema.JSONSchema
	assert.Equal(t, "payload", js.Name)
	assert.True(t, js.Strict.Value)

	assert.Equal(t, int64(256), chatRequest.MaxCompletionTokens.Value)
	assert.Equal(t, 0.3, chatRequest.Temperature.Value)
	assert.Equal(t, "END", chatRequest.Stop.OfString.Value)
}

func TestBuildChatRequestWithoutStructuredOutput(t *testing.T) {
	m := New("gpt-4.1-mini")
	chatRequest := m.buildChatRequest(&model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	assert.Nil(t, chatRequest.ResponseFormat.OfJSONSchema)
}

func TestConvertMessages(t *testing.T) {
	converted := convertMessages([]model.Message{
		model.NewSystemMessage("be nice"),
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("hello"),
	})
	require.Len(t, converted, 3)
	assert.NotNil(t, converted[0].OfSystem)
	assert.NotNil(t, converted[1].OfUser)
	assert.NotNil(t, converted[2].OfAssistant)
}

func TestConvertResponse(t *testing.T) {
	response := convertResponse(&openai.ChatCompletion{
		ID:      "chatcmpl-1",
		Model:   "gpt-4.1-mini",
		Created: 1700000000,
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Content: "hello"},
				FinishReason: "stop",
			},
		},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	assert.Equal(t, "chatcmpl-1", response.ID)
	assert.Equal(t, "hello", response.Text())
	assert.Equal(t, "stop", response.Choices[0].FinishReason)
	require.NotNil(t, response.Usage)
	assert.Equal(t, 15, response.Usage.TotalTokens)
}

func TestGetBackoffDuration(t *testing.T) {
	m := New("gpt-4.1-mini", WithRetryBackoff([]time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
	}))
	assert.Equal(t, 100*time.Millisecond, m.getBackoffDuration(0))
	assert.Equal(t, 200*time.Millisecond, m.getBackoffDuration(1))
	assert.Equal(t, 200*time.Millisecond, m.getBackoffDuration(5))

	m = New("gpt-4.1-mini", WithRetryBackoff(nil))
	assert.Equal(t, time.Duration(0), m.getBackoffDuration(0))
}
