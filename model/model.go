//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides interfaces and types for working with LLMs.
package model

import "context"

// Model is the interface for all language models.
type Model interface {
	// GenerateContent generates a completion for the request.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info describes a model instance.
type Info struct {
	// Name is the model name, e.g. "gpt-4.1-mini".
	Name string `json:"name"`
}

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the message content.
	Content string `json:"content"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// GenerationConfig contains configuration for text generation.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`

	// Stop sequences where the API will stop generating further tokens.
	Stop []string `json:"stop,omitempty"`

	// PresencePenalty penalizes new tokens based on their existing frequency.
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty penalizes new tokens based on their frequency in the text so far.
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// StructuredOutputType identifies the structured output mechanism.
type StructuredOutputType string

// StructuredOutput type constants.
const (
	// StructuredOutputJSONSchema requests native structured outputs
	// constrained by a JSON schema.
	StructuredOutputJSONSchema StructuredOutputType = "json_schema"
)

// StructuredOutput requests schema-constrained output from the model.
type StructuredOutput struct {
	// Type is the structured output mechanism.
	Type StructuredOutputType `json:"type"`
	// JSONSchema configures schema-constrained output.
	// Required when Type is StructuredOutputJSONSchema.
	JSONSchema *JSONSchemaConfig `json:"json_schema,omitempty"`
}

// JSONSchemaConfig describes the JSON schema for structured outputs.
type JSONSchemaConfig struct {
	// Name is the schema name. Must be a-z, A-Z, 0-9, underscores and dashes.
	Name string `json:"name"`
	// Description of the expected payload, used by the model.
	Description string `json:"description,omitempty"`
	// Strict enables strict schema adherence.
	Strict bool `json:"strict"`
	// Schema is the JSON schema document.
	Schema map[string]any `json:"schema"`
}

// Request is the request to the model.
type Request struct {
	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// GenerationConfig contains the generation parameters.
	GenerationConfig `json:",inline"`

	// StructuredOutput requests schema-constrained output when non-nil.
	StructuredOutput *StructuredOutput `json:"structured_output,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`
	// Message is the completion message.
	Message Message `json:"message"`
	// FinishReason is the reason generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the total number of tokens used.
	TotalTokens int `json:"total_tokens"`
}

// Response is the response from the model.
type Response struct {
	// ID is the unique identifier of the response.
	ID string `json:"id,omitempty"`
	// Model is the name of the model that produced the response.
	Model string `json:"model,omitempty"`
	// Created is the unix timestamp of the response.
	Created int64 `json:"created,omitempty"`
	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`
	// Usage contains token usage information.
	Usage *Usage `json:"usage,omitempty"`
}

// Text returns the content of the first choice, or "" when no choice exists.
func (rsp *Response) Text() string {
	if rsp == nil || len(rsp.Choices) == 0 {
		return ""
	}
	return rsp.Choices[0].Message.Content
}
