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
	"fmt"

	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/model"
)

// defaultEventBufferSize is the buffer size of streaming event channels.
const defaultEventBufferSize = 16

// EventType identifies a streaming run event.
type EventType string

// Streaming event types.
const (
	// EventMessage carries one transcript turn, in order.
	EventMessage EventType = "message"
	// EventComplete carries the final result and closes the stream.
	EventComplete EventType = "complete"
	// EventError carries a fatal run error and closes the stream.
	EventError EventType = "error"
)

// MessageEvent is the payload of an EventMessage.
type MessageEvent struct {
	// Role is the author of the turn.
	Role model.Role `json:"role"`
	// Content is the utterance text.
	Content string `json:"content"`
	// MessageIndex is the zero-based position of the turn in the transcript.
	MessageIndex int `json:"messageIndex"`
	// TotalMessages is the configured transcript ceiling.
	TotalMessages int `json:"totalMessages"`
}

// Event is one streaming run event.
type Event struct {
	// Type identifies the event.
	Type EventType `json:"type"`
	// Message is set for EventMessage.
	Message *MessageEvent `json:"message,omitempty"`
	// Result is set for EventComplete.
	Result *Result `json:"result,omitempty"`
	// Err is set for EventError.
	Err error `json:"-"`
}

// Simulator is the dialogue loop controller. It repeatedly invokes the step
// generator until the message ceiling or the task-completion flag is reached.
type Simulator struct {
	generator StepGenerator
}

// New creates a Simulator around the given step generator.
func New(generator StepGenerator) *Simulator {
	return &Simulator{generator: generator}
}

// Run drives the dialogue loop to completion and returns the result.
// A generator failure aborts the run; the caller decides whether to retry the
// whole run. maxMessages <= 0 selects DefaultMaxMessages and values above
// MaxMessagesLimit are clamped.
func (s *Simulator) Run(ctx context.Context, scenario Scenario, maxMessages int) (*Result, error) {
	return s.run(ctx, scenario, maxMessages, nil)
}

// RunStream drives the dialogue loop and emits one EventMessage per turn, in
// order, followed by a terminal EventComplete or EventError. The returned
// channel is closed after the terminal event.
func (s *Simulator) RunStream(ctx context.Context, scenario Scenario, maxMessages int) <-chan Event {
	ch := make(chan Event, defaultEventBufferSize)
	go func() {
		defer close(ch)
		result, err := s.run(ctx, scenario, maxMessages, func(event Event) {
			select {
			case ch <- event:
			case <-ctx.Done():
			}
		})
		event := Event{Type: EventComplete, Result: result}
		if err != nil {
			event = Event{Type: EventError, Err: err}
		}
		select {
		case ch <- event:
		case <-ctx.Done():
		}
	}()
	return ch
}

// run is the shared loop body. emit, when non-nil, receives one EventMessage
// per appended turn.
func (s *Simulator) run(
	ctx context.Context,
	scenario Scenario,
	maxMessages int,
	emit func(Event),
) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	maxMessages = ClampMaxMessages(maxMessages)

	var transcript []Turn
	var state ConversationState
	firstIteration := true

	for len(transcript) < maxMessages && !state.TaskCompleted {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		remaining := maxMessages - len(transcript)
		output, err := s.generator.Step(ctx, &StepInput{
			Scenario:       scenario,
			RollingSummary: state.RollingSummary,
			State:          state,
			RecentTurns:    shortWindow(transcript),
			Remaining:      remaining,
		})
		if err != nil {
			return nil, fmt.Errorf("dialogue step: %w", err)
		}

		turns := output.Messages
		if firstIteration {
			turns = EnsureUserOpening(turns, scenario)
			firstIteration = false
		}
		turns = truncateTurns(turns, remaining)

		for _, turn := range turns {
			if emit != nil {
				emit(Event{Type: EventMessage, Message: &MessageEvent{
					Role:          turn.Role,
					Content:       turn.Content,
					MessageIndex:  len(transcript),
					TotalMessages: maxMessages,
				}})
			}
			transcript = append(transcript, turn)
		}

		state = mergeState(state, output.UpdatedState)
		state.RollingSummary = output.UpdatedSummary

		log.DebugfContext(ctx, "dialogue step appended %d turns, transcript %d/%d, completed=%v",
			len(turns), len(transcript), maxMessages, state.TaskCompleted)
	}

	return &Result{
		Transcript:   transcript,
		FinalSummary: state.RollingSummary,
		FinalState:   state,
	}, nil
}

// ClampMaxMessages normalizes a transcript ceiling: non-positive values select
// the default, values above the limit are clamped.
func ClampMaxMessages(maxMessages int) int {
	if maxMessages <= 0 {
		return DefaultMaxMessages
	}
	if maxMessages > MaxMessagesLimit {
		return MaxMessagesLimit
	}
	return maxMessages
}

// EnsureUserOpening guarantees the conversation opens with a user turn by
// prepending a synthetic one built from the scenario description when the
// generator's first proposed turn is not a user turn.
func EnsureUserOpening(turns []Turn, scenario Scenario) []Turn {
	if len(turns) > 0 && turns[0].Role == model.RoleUser {
		return turns
	}
	opening := scenario.Description
	if opening == "" {
		opening = FallbackOpening
	}
	patched := make([]Turn, 0, len(turns)+1)
	patched = append(patched, Turn{Role: model.RoleUser, Content: opening})
	return append(patched, turns...)
}

// shortWindow returns the last ShortWindowSize turns.
func shortWindow(transcript []Turn) []Turn {
	if len(transcript) <= ShortWindowSize {
		return transcript
	}
	return transcript[len(transcript)-ShortWindowSize:]
}

// truncateTurns limits turns to at most remaining entries.
func truncateTurns(turns []Turn, remaining int) []Turn {
	if remaining < 0 {
		remaining = 0
	}
	if len(turns) <= remaining {
		return turns
	}
	return turns[:remaining]
}
