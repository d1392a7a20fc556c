//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI-compatible model implementation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/model"
	"trpc.group/trpc-go/trpc-simeval-go/telemetry"
)

// Verify that Model implements the model.Model interface.
var _ model.Model = (*Model)(nil)

// DefaultMaxRetries is the default maximum number of retries for errors.
const DefaultMaxRetries = 2

// defaultRetryBackoff is the default backoff durations for retry attempts.
var defaultRetryBackoff = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
}

// Model implements the model.Model interface for OpenAI-compatible APIs.
type Model struct {
	client         openai.Client
	name           string
	apiKey         string
	baseURL        string
	requestOptions []openaiopt.RequestOption

	// Retry configuration
	maxRetries   int
	retryBackoff []time.Duration
}

// Option represents a functional option for configuring the Model.
type Option func(*Model)

// WithAPIKey sets the API key.
// If not provided, the SDK falls back to the OPENAI_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(m *Model) {
		m.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) Option {
	return func(m *Model) {
		m.baseURL = baseURL
	}
}

// WithRequestOptions sets additional options for the OpenAI client requests.
func WithRequestOptions(opts ...openaiopt.RequestOption) Option {
	return func(m *Model) {
		m.requestOptions = append(m.requestOptions, opts...)
	}
}

// WithMaxRetries sets the maximum number of retries for errors.
// Default is 2. Negative values are treated as 0.
func WithMaxRetries(maxRetries int) Option {
	return func(m *Model) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		m.maxRetries = maxRetries
	}
}

// WithRetryBackoff sets the backoff durations for each retry attempt.
// If the number of retries exceeds the length of the backoff slice,
// the last backoff duration will be used for remaining retries.
// Default is [100ms, 200ms, 400ms, 800ms].
func WithRetryBackoff(backoff []time.Duration) Option {
	return func(m *Model) {
		m.retryBackoff = backoff
	}
}

// New creates a new OpenAI-compatible model with the given name and options.
func New(name string, opts ...Option) *Model {
	m := &Model{
		name:         name,
		maxRetries:   DefaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}

	var clientOpts []openaiopt.RequestOption
	if m.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(m.apiKey))
	}
	if m.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(m.baseURL))
	}
	// Retries are handled here so the SDK's own retry layer stays off.
	clientOpts = append(clientOpts, openaiopt.WithMaxRetries(0))

	m.client = openai.NewClient(clientOpts...)
	return m
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name: m.name,
	}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (*model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	if len(request.Messages) == 0 {
		return nil, errors.New("request must contain at least one message")
	}

	chatRequest := m.buildChatRequest(request)

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		rsp, err := m.completion(ctx, chatRequest)
		if err == nil {
			return rsp, nil
		}

		lastErr = err

		// No more retries
		if attempt >= m.maxRetries {
			break
		}

		backoff := m.getBackoffDuration(attempt)
		if backoff > 0 {
			log.InfofContext(ctx, "chat request failed, retrying in %v (attempt %d/%d): %v",
				backoff, attempt+1, m.maxRetries, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		} else {
			log.InfofContext(ctx, "chat request failed, retrying immediately (attempt %d/%d): %v",
				attempt+1, m.maxRetries, err)
		}
	}
	return nil, lastErr
}

// completion performs a single chat completion call with tracing.
func (m *Model) completion(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
) (rsp *model.Response, err error) {
	ctx, span := telemetry.Tracer.Start(ctx, telemetry.NewChatSpanName(m.name))
	chatAttributes := &telemetry.ChatAttributes{RequestModel: m.name}
	defer func() {
		chatAttributes.Error = err
		if rsp != nil && rsp.Usage != nil {
			inputTokens := int64(rsp.Usage.PromptTokens)
			outputTokens := int64(rsp.Usage.CompletionTokens)
			chatAttributes.InputTokens = &inputTokens
			chatAttributes.OutputTokens = &outputTokens
		}
		telemetry.TraceChat(span, chatAttributes)
		span.End()
	}()

	requestOpts := make([]openaiopt.RequestOption, len(m.requestOptions))
	copy(requestOpts, m.requestOptions)

	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest, requestOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return convertResponse(chatCompletion), nil
}

// buildChatRequest converts our Request to OpenAI request params.
func (m *Model) buildChatRequest(request *model.Request) openai.ChatCompletionNewParams {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(request.Messages),
	}

	// Set response_format for native structured outputs when requested.
	if request.StructuredOutput != nil &&
		request.StructuredOutput.Type == model.StructuredOutputJSONSchema &&
		request.StructuredOutput.JSONSchema != nil {
		js := request.StructuredOutput.JSONSchema
		chatRequest.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        js.Name,
					Schema:      js.Schema,
					Strict:      openai.Bool(js.Strict),
					Description: openai.String(js.Description),
				},
			},
		}
	}

	// MaxTokens is deprecated and not compatible with o-series models.
	// Use MaxCompletionTokens instead.
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		chatRequest.TopP = openai.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		// Use the first stop string for simplicity.
		chatRequest.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(request.Stop[0]),
		}
	}
	if request.PresencePenalty != nil {
		chatRequest.PresencePenalty = openai.Float(*request.PresencePenalty)
	}
	if request.FrequencyPenalty != nil {
		chatRequest.FrequencyPenalty = openai.Float(*request.FrequencyPenalty)
	}
	return chatRequest
}

// convertMessages converts our messages to OpenAI message params.
func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}

// convertResponse converts an OpenAI chat completion to our Response.
func convertResponse(chatCompletion *openai.ChatCompletion) *model.Response {
	response := &model.Response{
		ID:      chatCompletion.ID,
		Created: chatCompletion.Created,
		Model:   chatCompletion.Model,
	}
	if len(chatCompletion.Choices) > 0 {
		response.Choices = make([]model.Choice, len(chatCompletion.Choices))
		for i, choice := range chatCompletion.Choices {
			response.Choices[i] = model.Choice{
				Index: int(choice.Index),
				Message: model.Message{
					Role:    model.RoleAssistant,
					Content: choice.Message.Content,
				},
				FinishReason: choice.FinishReason,
			}
		}
	}
	if chatCompletion.Usage.PromptTokens > 0 || chatCompletion.Usage.CompletionTokens > 0 {
		response.Usage = &model.Usage{
			PromptTokens:     int(chatCompletion.Usage.PromptTokens),
			CompletionTokens: int(chatCompletion.Usage.CompletionTokens),
			TotalTokens:      int(chatCompletion.Usage.TotalTokens),
		}
	}
	return response
}

// getBackoffDuration returns the backoff duration for the given attempt.
// If attempt index exceeds the backoff slice length, returns the last backoff duration.
func (m *Model) getBackoffDuration(attempt int) time.Duration {
	if len(m.retryBackoff) == 0 {
		return 0
	}
	if attempt < len(m.retryBackoff) {
		return m.retryBackoff[attempt]
	}
	return m.retryBackoff[len(m.retryBackoff)-1]
}
