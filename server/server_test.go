//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-simeval-go/model"
	"trpc.group/trpc-go/trpc-simeval-go/model/provider"
	"trpc.group/trpc-go/trpc-simeval-go/runrecord"
	runrecordinmemory "trpc.group/trpc-go/trpc-simeval-go/runrecord/inmemory"
)

// fakeTier is registered on the provider allow-list so server tests run
// without a live backend.
const fakeTier = "fake-test-tier"

// scriptedModel completes one full dialogue step that marks the task done.
type scriptedModel struct{}

func (m *scriptedModel) GenerateContent(_ context.Context, _ *model.Request) (*model.Response, error) {
	return &model.Response{Choices: []model.Choice{
		{Message: model.NewAssistantMessage(`{
			"messages": [
				{"role": "user", "content": "I need a refund for order 42."},
				{"role": "assistant", "content": "Refund issued."}
			],
			"updatedSummary": "refund handled",
			"updatedState": {"isTaskCompleted": true, "notes": []}
		}`)},
	}}, nil
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: fakeTier}
}

func init() {
	provider.Register(fakeTier, func(_ *provider.Options) (model.Model, error) {
		return &scriptedModel{}, nil
	})
}

func TestHandleRun(t *testing.T) {
	recorder := runrecordinmemory.NewManager()
	s := New(WithRecorder(recorder))

	body := `{"scenario": {"scenarioId": "refund-42", "description": "user wants a refund"}, "model": "` + fakeTier + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.RunID)
	assert.Equal(t, fakeTier, response.Model)
	require.Len(t, response.Transcript, 2)
	assert.Equal(t, model.RoleUser, response.Transcript[0].Role)
	assert.True(t, response.FinalState.TaskCompleted)
	assert.Nil(t, response.Evaluation)

	// The run was recorded.
	history, err := recorder.History(context.Background(), "refund-42")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, response.RunID, history[0].RunID)
	assert.Equal(t, fakeTier, history[0].Model)
}

func TestHandleRunRejectsUnknownTier(t *testing.T) {
	s := New()

	body := `{"scenario": {"description": "x"}, "model": "made-up-tier"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "allow-list")
}

func TestHandleRunRejectsBadBody(t *testing.T) {
	s := New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRunSSEEventOrder(t *testing.T) {
	recorder := runrecordinmemory.NewManager()
	s := New(WithRecorder(recorder))

	body := `{"scenario": {"scenarioId": "refund-42", "description": "user wants a refund"}, "model": "` + fakeTier + `", "maxMessages": 8}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/stream", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []string
	var payloads []map[string]any
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
		types = append(types, payload["type"].(string))
		payloads = append(payloads, payload)
	}
	require.Equal(t, []string{"start", "message", "message", "evaluation", "complete"}, types)

	start := payloads[0]
	assert.NotEmpty(t, start["runId"])
	assert.Equal(t, fakeTier, start["model"])
	assert.Equal(t, float64(8), start["maxMessages"])

	first := payloads[1]["message"].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, float64(0), first["messageIndex"])
	assert.Equal(t, float64(8), first["totalMessages"])

	// The run was recorded before the terminal event.
	history, err := recorder.History(context.Background(), "refund-42")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHandleHistoryAndSummary(t *testing.T) {
	recorder := runrecordinmemory.NewManager()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, recorder.Append(context.Background(), &runrecord.RunRecord{
		RunID: "r1", ScenarioID: "s1", Model: "tier-a", Timestamp: base,
	}))
	require.NoError(t, recorder.Append(context.Background(), &runrecord.RunRecord{
		RunID: "r2", ScenarioID: "s1", Model: "tier-a", Timestamp: base.Add(time.Hour),
	}))
	s := New(WithRecorder(recorder))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scenarios/s1/history", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var history []*runrecord.RunRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "r2", history[0].RunID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []*runrecord.SummaryRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Runs)
}

func TestHandleListModels(t *testing.T) {
	s := New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tiers []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tiers))
	assert.Contains(t, tiers, provider.DefaultTier)
	assert.Contains(t, tiers, fakeTier)
}
