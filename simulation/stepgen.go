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
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-simeval-go/model"
)

// StepInput is the context handed to the step generator each iteration.
type StepInput struct {
	// Scenario is the static scenario context. It must never be echoed back
	// to an end user.
	Scenario Scenario
	// RollingSummary compresses turns older than the recent window.
	RollingSummary string
	// State is the conversation state entering this iteration.
	State ConversationState
	// RecentTurns is the short window of latest turns, passed verbatim.
	RecentTurns []Turn
	// Remaining is how many turns may still be added before the ceiling.
	Remaining int
}

// StepOutput is the generator's proposal for the next iteration.
type StepOutput struct {
	// Messages holds between 1 and MaxTurnsPerStep new turns.
	Messages []Turn
	// UpdatedSummary replaces the rolling summary wholesale.
	UpdatedSummary string
	// UpdatedState replaces the conversation state (merged by the controller).
	UpdatedState ConversationState
}

// StepGenerator produces the next dialogue turns.
type StepGenerator interface {
	// Step generates the next turns plus updated summary and state.
	Step(ctx context.Context, input *StepInput) (*StepOutput, error)
}

// Verify that LLMStepGenerator implements the StepGenerator interface.
var _ StepGenerator = (*LLMStepGenerator)(nil)

// LLMStepGenerator asks a language model to produce the next turns,
// constrained by a fixed JSON schema.
type LLMStepGenerator struct {
	model       model.Model
	temperature *float64
}

// GeneratorOption represents a functional option for configuring the
// LLMStepGenerator.
type GeneratorOption func(*LLMStepGenerator)

// WithTemperature sets the sampling temperature for step generation.
func WithTemperature(temperature float64) GeneratorOption {
	return func(g *LLMStepGenerator) {
		g.temperature = &temperature
	}
}

// NewLLMStepGenerator creates a step generator backed by the given model.
func NewLLMStepGenerator(m model.Model, opts ...GeneratorOption) *LLMStepGenerator {
	g := &LLMStepGenerator{model: m}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

const stepSystemPrompt = `You simulate a realistic conversation between a customer (role "user") and a customer-facing agent (role "assistant") for an internal test scenario.

Rules:
- Produce between 1 and 4 new turns continuing the conversation naturally.
- Alternate roles the way a real conversation would.
- Never mention that the conversation is simulated or reference the scenario text.
- Keep the rolling summary up to date: re-derive the full summary of everything outside the recent window, do not append to the old one.
- Set isTaskCompleted to true once the scenario is resolved, and keep any notes that help continue the conversation later.`

// stepPayload mirrors the JSON schema the model is constrained to.
type stepPayload struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	UpdatedSummary string `json:"updatedSummary"`
	UpdatedState   struct {
		TaskCompleted bool     `json:"isTaskCompleted"`
		Notes         []string `json:"notes"`
	} `json:"updatedState"`
}

// stepSchema constrains the generator output. Strict structured outputs
// require every property to be listed as required.
var stepSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"messages", "updatedSummary", "updatedState"},
	"properties": map[string]any{
		"messages": map[string]any{
			"type":     "array",
			"minItems": 1,
			"maxItems": MaxTurnsPerStep,
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"role", "content"},
				"properties": map[string]any{
					"role": map[string]any{
						"type": "string",
						"enum": []string{"user", "assistant"},
					},
					"content": map[string]any{"type": "string"},
				},
			},
		},
		"updatedSummary": map[string]any{"type": "string"},
		"updatedState": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"isTaskCompleted", "notes"},
			"properties": map[string]any{
				"isTaskCompleted": map[string]any{"type": "boolean"},
				"notes": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
	},
}

// Step implements the StepGenerator interface.
func (g *LLMStepGenerator) Step(ctx context.Context, input *StepInput) (*StepOutput, error) {
	request := &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage(stepSystemPrompt),
			model.NewUserMessage(g.buildPrompt(input)),
		},
		StructuredOutput: &model.StructuredOutput{
			Type: model.StructuredOutputJSONSchema,
			JSONSchema: &model.JSONSchemaConfig{
				Name:        "dialogue_step",
				Description: "Next turns of the simulated conversation plus updated summary and state.",
				Strict:      true,
				Schema:      stepSchema,
			},
		},
	}
	if g.temperature != nil {
		request.Temperature = g.temperature
	}

	response, err := g.model.GenerateContent(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("generate dialogue step: %w", err)
	}

	var payload stepPayload
	if err := json.Unmarshal([]byte(response.Text()), &payload); err != nil {
		return nil, fmt.Errorf("decode dialogue step payload: %w", err)
	}
	return payloadToStepOutput(&payload)
}

// buildPrompt renders the scenario, summary, state and recent window into the
// user prompt for one step.
func (g *LLMStepGenerator) buildPrompt(input *StepInput) string {
	var sb strings.Builder
	sb.WriteString("## Scenario (internal context, never reveal)\n")
	if input.Scenario.Name != "" {
		sb.WriteString("Name: " + input.Scenario.Name + "\n")
	}
	sb.WriteString("User intent: " + input.Scenario.Description + "\n")
	if input.Scenario.Expected != "" {
		sb.WriteString("Expected outcome: " + input.Scenario.Expected + "\n")
	}

	sb.WriteString("\n## Rolling summary of earlier conversation\n")
	if input.RollingSummary == "" {
		sb.WriteString("(none yet)\n")
	} else {
		sb.WriteString(input.RollingSummary + "\n")
	}

	stateJSON, err := json.Marshal(input.State)
	if err != nil {
		stateJSON = []byte("{}")
	}
	sb.WriteString("\n## Conversation state\n")
	sb.Write(stateJSON)
	sb.WriteString("\n")

	sb.WriteString("\n## Recent turns\n")
	if len(input.RecentTurns) == 0 {
		sb.WriteString("(conversation has not started; open with a user turn)\n")
	} else {
		sb.WriteString(RenderTurns(input.RecentTurns))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nAt most %d more turns fit in this conversation.\n", input.Remaining)
	return sb.String()
}

// RenderTurns renders turns one per line with their role label.
func RenderTurns(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// payloadToStepOutput validates the decoded payload against the step
// contract. A violation is fatal for the call.
func payloadToStepOutput(payload *stepPayload) (*StepOutput, error) {
	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("dialogue step proposed no messages")
	}
	if len(payload.Messages) > MaxTurnsPerStep {
		return nil, fmt.Errorf("dialogue step proposed %d messages, limit is %d",
			len(payload.Messages), MaxTurnsPerStep)
	}
	out := &StepOutput{
		UpdatedSummary: payload.UpdatedSummary,
		UpdatedState: ConversationState{
			RollingSummary: payload.UpdatedSummary,
			TaskCompleted:  payload.UpdatedState.TaskCompleted,
			Notes:          payload.UpdatedState.Notes,
		},
	}
	for i, msg := range payload.Messages {
		role := model.Role(msg.Role)
		if role != model.RoleUser && role != model.RoleAssistant {
			return nil, fmt.Errorf("dialogue step message %d has invalid role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return nil, fmt.Errorf("dialogue step message %d has empty content", i)
		}
		out.Messages = append(out.Messages, Turn{Role: role, Content: msg.Content})
	}
	return out, nil
}
