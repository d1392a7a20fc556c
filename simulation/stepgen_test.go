//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-simeval-go/model"
)

// cannedModel returns a fixed completion text and records the last request.
type cannedModel struct {
	text        string
	err         error
	lastRequest *model.Request
}

func (m *cannedModel) GenerateContent(_ context.Context, request *model.Request) (*model.Response, error) {
	m.lastRequest = request
	if m.err != nil {
		return nil, m.err
	}
	return &model.Response{Choices: []model.Choice{
		{Message: model.NewAssistantMessage(m.text)},
	}}, nil
}

func (m *cannedModel) Info() model.Info {
	return model.Info{Name: "canned"}
}

func TestStepDecodesPayload(t *testing.T) {
	backend := &cannedModel{text: `{
		"messages": [
			{"role": "user", "content": "I need a refund for order 42."},
			{"role": "assistant", "content": "Sure, processing it now."}
		],
		"updatedSummary": "customer asked for a refund",
		"updatedState": {"isTaskCompleted": true, "notes": ["order 42"]}
	}`}
	generator := NewLLMStepGenerator(backend)

	output, err := generator.Step(context.Background(), &StepInput{
		Scenario:  Scenario{Description: "refund request"},
		Remaining: 10,
	})
	require.NoError(t, err)
	require.Len(t, output.Messages, 2)
	assert.Equal(t, model.RoleUser, output.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, output.Messages[1].Role)
	assert.Equal(t, "customer asked for a refund", output.UpdatedSummary)
	assert.True(t, output.UpdatedState.TaskCompleted)
	assert.Equal(t, []string{"order 42"}, output.UpdatedState.Notes)
}

func TestStepRequestShape(t *testing.T) {
	backend := &cannedModel{text: `{
		"messages": [{"role": "user", "content": "hi"}],
		"updatedSummary": "",
		"updatedState": {"isTaskCompleted": false, "notes": []}
	}`}
	generator := NewLLMStepGenerator(backend, WithTemperature(0.7))

	_, err := generator.Step(context.Background(), &StepInput{
		Scenario:       Scenario{Name: "refund", Description: "user wants a refund", Expected: "refund issued"},
		RollingSummary: "earlier small talk",
		RecentTurns:    []Turn{{Role: model.RoleUser, Content: "hello"}},
		Remaining:      3,
	})
	require.NoError(t, err)

	request := backend.lastRequest
	require.NotNil(t, request)
	require.Len(t, request.Messages, 2)
	assert.Equal(t, model.RoleSystem, request.Messages[0].Role)
	assert.Equal(t, model.RoleUser, request.Messages[1].Role)

	prompt := request.Messages[1].Content
	assert.Contains(t, prompt, "user wants a refund")
	assert.Contains(t, prompt, "refund issued")
	assert.Contains(t, prompt, "earlier small talk")
	assert.Contains(t, prompt, "At most 3 more turns")

	require.NotNil(t, request.StructuredOutput)
	require.NotNil(t, request.StructuredOutput.JSONSchema)
	assert.Equal(t, "dialogue_step", request.StructuredOutput.JSONSchema.Name)
	assert.True(t, request.StructuredOutput.JSONSchema.Strict)

	require.NotNil(t, request.Temperature)
	assert.Equal(t, 0.7, *request.Temperature)
}

func TestStepRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "not json", text: "sorry, I cannot help"},
		{name: "no messages", text: `{"messages": [], "updatedSummary": "", "updatedState": {"isTaskCompleted": false, "notes": []}}`},
		{name: "too many messages", text: `{"messages": [
			{"role": "user", "content": "1"}, {"role": "assistant", "content": "2"},
			{"role": "user", "content": "3"}, {"role": "assistant", "content": "4"},
			{"role": "user", "content": "5"}
		], "updatedSummary": "", "updatedState": {"isTaskCompleted": false, "notes": []}}`},
		{name: "invalid role", text: `{"messages": [{"role": "system", "content": "x"}], "updatedSummary": "", "updatedState": {"isTaskCompleted": false, "notes": []}}`},
		{name: "empty content", text: `{"messages": [{"role": "user", "content": ""}], "updatedSummary": "", "updatedState": {"isTaskCompleted": false, "notes": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := NewLLMStepGenerator(&cannedModel{text: tt.text})
			_, err := generator.Step(context.Background(), &StepInput{Remaining: 5})
			assert.Error(t, err)
		})
	}
}

func TestStepModelError(t *testing.T) {
	generator := NewLLMStepGenerator(&cannedModel{err: errors.New("rate limited")})
	_, err := generator.Step(context.Background(), &StepInput{Remaining: 5})
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")
}

func TestRenderTurns(t *testing.T) {
	turns := []Turn{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}
	assert.Equal(t, "user: hi\nassistant: hello", RenderTurns(turns))
	assert.Equal(t, "", RenderTurns(nil))
}
