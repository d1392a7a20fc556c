//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-simeval-go/model"
	"trpc.group/trpc-go/trpc-simeval-go/simulation"
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

func sampleTranscript() []simulation.Turn {
	return []simulation.Turn{
		{Role: model.RoleUser, Content: "I want a refund for order 42."},
		{Role: model.RoleAssistant, Content: "Refund issued, it will arrive in 3 days."},
	}
}

func TestJudgeDecodesVerdict(t *testing.T) {
	backend := &cannedModel{text: `{
		"succeeded": true,
		"taskCompletionConfidence": 0.9,
		"safetyScore": 1.0,
		"faithfulnessScore": 0.8,
		"reasoning": "refund was issued as requested",
		"failureReasons": []
	}`}
	j := New(backend)

	verdict, err := j.Judge(context.Background(), sampleTranscript(),
		simulation.Scenario{Description: "refund", Expected: "refund issued"})
	require.NoError(t, err)
	assert.True(t, verdict.Succeeded)
	assert.Equal(t, 0.9, verdict.TaskCompletionConfidence)
	assert.Equal(t, 1.0, verdict.SafetyScore)
	require.NotNil(t, verdict.FaithfulnessScore)
	assert.Equal(t, 0.8, *verdict.FaithfulnessScore)
	assert.Empty(t, verdict.FailureReasons)
}

func TestJudgeFailedVerdict(t *testing.T) {
	backend := &cannedModel{text: `{
		"succeeded": false,
		"taskCompletionConfidence": 0.2,
		"safetyScore": 0.9,
		"faithfulnessScore": null,
		"reasoning": "the refund was never confirmed",
		"failureReasons": ["no confirmation", "wrong order referenced"]
	}`}
	j := New(backend)

	verdict, err := j.Judge(context.Background(), sampleTranscript(),
		simulation.Scenario{Description: "refund"})
	require.NoError(t, err)
	assert.False(t, verdict.Succeeded)
	assert.Nil(t, verdict.FaithfulnessScore)
	assert.Len(t, verdict.FailureReasons, 2)
}

func TestJudgeRequestShape(t *testing.T) {
	backend := &cannedModel{text: `{
		"succeeded": true,
		"taskCompletionConfidence": 1,
		"safetyScore": 1,
		"faithfulnessScore": null,
		"reasoning": "",
		"failureReasons": []
	}`}
	j := New(backend)

	_, err := j.Judge(context.Background(), sampleTranscript(),
		simulation.Scenario{Name: "refund", Description: "user wants a refund", Expected: "refund issued"})
	require.NoError(t, err)

	request := backend.lastRequest
	require.NotNil(t, request)
	require.Len(t, request.Messages, 2)
	assert.Equal(t, model.RoleSystem, request.Messages[0].Role)

	prompt := request.Messages[1].Content
	assert.Contains(t, prompt, "user wants a refund")
	assert.Contains(t, prompt, "USER: I want a refund for order 42.")
	assert.Contains(t, prompt, "AGENT: Refund issued, it will arrive in 3 days.")

	require.NotNil(t, request.StructuredOutput)
	require.NotNil(t, request.StructuredOutput.JSONSchema)
	assert.Equal(t, "transcript_verdict", request.StructuredOutput.JSONSchema.Name)
	assert.True(t, request.StructuredOutput.JSONSchema.Strict)
}

func TestJudgeErrors(t *testing.T) {
	j := New(&cannedModel{err: errors.New("rate limited")})
	_, err := j.Judge(context.Background(), sampleTranscript(), simulation.Scenario{Description: "x"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")

	j = New(&cannedModel{text: "not json"})
	_, err = j.Judge(context.Background(), sampleTranscript(), simulation.Scenario{Description: "x"})
	assert.ErrorContains(t, err, "decode verdict")
}

func TestRenderTranscript(t *testing.T) {
	rendered := RenderTranscript(sampleTranscript())
	assert.Equal(t,
		"USER: I want a refund for order 42.\nAGENT: Refund issued, it will arrive in 3 days.",
		rendered)
	assert.Equal(t, "", RenderTranscript(nil))
}
