//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package simulation drives bounded multi-turn dialogue simulations between a
// synthetic user and an agent under test.
package simulation

import (
	"errors"

	"trpc.group/trpc-go/trpc-simeval-go/model"
)

// Simulation limits.
const (
	// ShortWindowSize is the number of recent turns passed verbatim to the
	// step generator; older turns live in the rolling summary.
	ShortWindowSize = 6
	// DefaultMaxMessages is the default transcript ceiling.
	DefaultMaxMessages = 10
	// MaxMessagesLimit caps the transcript ceiling where it is exposed
	// externally.
	MaxMessagesLimit = 50
	// MaxTurnsPerStep is the most turns a single generator step may propose.
	MaxTurnsPerStep = 4

	// FallbackOpening opens the conversation when the scenario has no
	// description to synthesize an opening turn from.
	FallbackOpening = "Hi, I have a question related to the test scenario."
)

// Scenario describes what the simulated user should attempt and what success
// looks like. It is owned by the caller and never mutated during a run.
type Scenario struct {
	// ID identifies the scenario in run records. Optional.
	ID string `json:"scenarioId,omitempty"`
	// Name is an optional label.
	Name string `json:"name,omitempty"`
	// Description is the user intent driving the simulated turns. Required.
	Description string `json:"description"`
	// Expected is an optional natural-language success criterion used by the
	// judge and the similarity scorer.
	Expected string `json:"expected,omitempty"`
}

// Validate checks the scenario for required fields.
func (s *Scenario) Validate() error {
	if s.Description == "" {
		return errors.New("scenario description is required")
	}
	return nil
}

// ConversationState evolves once per loop iteration.
type ConversationState struct {
	// RollingSummary compresses history older than the short window. It is
	// replaced wholesale each iteration by the generator's output.
	RollingSummary string `json:"rollingSummary,omitempty"`
	// TaskCompleted terminates the loop once true. The controller keeps it
	// monotonic: a later update can never reset it to false.
	TaskCompleted bool `json:"isTaskCompleted"`
	// Notes carries free-form bookkeeping across iterations.
	Notes []string `json:"notes,omitempty"`
}

// Turn is one utterance in the transcript.
type Turn struct {
	// Role is the author of the turn: user or assistant.
	Role model.Role `json:"role"`
	// Content is the utterance text.
	Content string `json:"content"`
}

// Result is the outcome of a completed simulation run.
type Result struct {
	// Transcript is the ordered turn sequence. Its length never exceeds the
	// configured ceiling and the first turn is always a user turn.
	Transcript []Turn `json:"transcript"`
	// FinalSummary is the rolling summary after the last iteration.
	FinalSummary string `json:"finalSummary,omitempty"`
	// FinalState is the conversation state after the last iteration.
	FinalState ConversationState `json:"finalState"`
}

// AssistantText joins the content of all assistant turns with newlines.
func AssistantText(transcript []Turn) string {
	var out string
	for _, turn := range transcript {
		if turn.Role != model.RoleAssistant {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += turn.Content
	}
	return out
}

// mergeState merges a generator state update into the previous state.
// The merge is shallow: updated fields win, except TaskCompleted which is
// monotonic so a flaky generator response cannot un-complete a task.
func mergeState(prev, updated ConversationState) ConversationState {
	merged := ConversationState{
		RollingSummary: updated.RollingSummary,
		TaskCompleted:  prev.TaskCompleted || updated.TaskCompleted,
		Notes:          prev.Notes,
	}
	if updated.Notes != nil {
		merged.Notes = updated.Notes
	}
	return merged
}
