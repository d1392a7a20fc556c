//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the simulation and evaluation pipeline over HTTP,
// with both synchronous and SSE streaming run endpoints.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-simeval-go/evaluation"
	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/model/provider"
	"trpc.group/trpc-go/trpc-simeval-go/runrecord"
	runrecordinmemory "trpc.group/trpc-go/trpc-simeval-go/runrecord/inmemory"
	"trpc.group/trpc-go/trpc-simeval-go/simulation"
)

// Server wires the dialogue simulator, the evaluator and the run recorder
// behind HTTP endpoints.
type Server struct {
	router *mux.Router

	recorder     runrecord.Manager
	evaluator    *evaluation.Evaluator
	providerOpts []provider.Option
}

// Option configures the Server instance.
type Option func(*Server)

// WithRecorder overrides the default in-memory run recorder.
func WithRecorder(m runrecord.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.recorder = m
		}
	}
}

// WithEvaluator sets the evaluator applied to completed runs. Without it runs
// are recorded unscored.
func WithEvaluator(e *evaluation.Evaluator) Option {
	return func(s *Server) {
		if e != nil {
			s.evaluator = e
		}
	}
}

// WithProviderOptions appends options applied when the server resolves a model
// tier, typically credentials and gateway endpoints.
func WithProviderOptions(opts ...provider.Option) Option {
	return func(s *Server) { s.providerOpts = append(s.providerOpts, opts...) }
}

// New creates a Server with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		recorder: runrecordinmemory.NewManager(),
	}

	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the underlying HTTP handler, useful for embedding the
// server into an existing mux or for testing with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server on the given address, blocking until it stops.
func (s *Server) Start(address string) error {
	log.Infof("simulation server listening on %s", address)
	return http.ListenAndServe(address, s.router)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/v1/runs", s.handleRun).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/runs/stream", s.handleRunSSE).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/scenarios/{scenarioId}/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/summary", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/models", s.handleListModels).Methods(http.MethodGet)

	// OPTIONS handlers to allow CORS pre-flight.
	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/api/v1/runs", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/api/v1/runs/stream", preflight).Methods(http.MethodOptions)
}

// RunRequest is the body of the run endpoints.
type RunRequest struct {
	// Scenario describes the simulated conversation.
	Scenario simulation.Scenario `json:"scenario"`
	// Model is the model tier to drive the dialogue with. Empty selects the
	// default tier.
	Model string `json:"model,omitempty"`
	// MaxMessages is the transcript ceiling. Non-positive selects the
	// default; values above the limit are clamped.
	MaxMessages int `json:"maxMessages,omitempty"`
}

// RunResponse is the body of a successful synchronous run.
type RunResponse struct {
	RunID      string                       `json:"runId"`
	Model      string                       `json:"model"`
	Transcript []simulation.Turn            `json:"transcript"`
	FinalState simulation.ConversationState `json:"finalState"`
	Evaluation *evaluation.Evaluation       `json:"evaluation,omitempty"`
}

// resolveRequest validates the run request and resolves its model tier into a
// ready simulator.
func (s *Server) resolveRequest(req *RunRequest) (*simulation.Simulator, string, error) {
	tier := req.Model
	if tier == "" {
		tier = provider.DefaultTier
	}
	if !provider.Allowed(tier) {
		return nil, "", fmt.Errorf("model tier %q is not on the allow-list", tier)
	}
	m, err := provider.Model(tier, s.providerOpts...)
	if err != nil {
		return nil, "", err
	}
	return simulation.New(simulation.NewLLMStepGenerator(m)), tier, nil
}

// finishRun evaluates and records a completed run. Recording failures are
// logged and do not fail the request: the run already succeeded.
func (s *Server) finishRun(
	r *http.Request,
	runID string,
	tier string,
	scenario simulation.Scenario,
	result *simulation.Result,
) *evaluation.Evaluation {
	var eval *evaluation.Evaluation
	if s.evaluator != nil {
		eval = s.evaluator.Evaluate(r.Context(), result.Transcript, scenario)
	}
	record := &runrecord.RunRecord{
		Timestamp:  time.Now(),
		RunID:      runID,
		ScenarioID: scenario.ID,
		Model:      tier,
		Transcript: result.Transcript,
		FinalState: result.FinalState,
		Evaluation: eval,
	}
	if err := s.recorder.Append(r.Context(), record); err != nil {
		log.ErrorfContext(r.Context(), "recording run %s failed: %v", runID, err)
	}
	return eval
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleRun called: path=%s", r.URL.Path)

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	simulator, tier, err := s.resolveRequest(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runID := uuid.New().String()

	result, err := simulator.Run(r.Context(), req.Scenario, req.MaxMessages)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	eval := s.finishRun(r, runID, tier, req.Scenario, result)

	s.writeJSON(w, &RunResponse{
		RunID:      runID,
		Model:      tier,
		Transcript: result.Transcript,
		FinalState: result.FinalState,
		Evaluation: eval,
	})
}

// sseStartEvent opens an SSE run stream.
type sseStartEvent struct {
	Type        string `json:"type"`
	RunID       string `json:"runId"`
	Model       string `json:"model"`
	MaxMessages int    `json:"maxMessages"`
}

// sseEvaluationEvent carries the run scoring, emitted before the terminal
// complete event.
type sseEvaluationEvent struct {
	Type       string                 `json:"type"`
	RunID      string                 `json:"runId"`
	Evaluation *evaluation.Evaluation `json:"evaluation"`
}

// sseErrorEvent terminates the stream on a fatal run error.
type sseErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleRunSSE called: path=%s", r.URL.Path)

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	simulator, tier, err := s.resolveRequest(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runID := uuid.New().String()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			log.Errorf("Error marshalling SSE event: %v", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	writeEvent(&sseStartEvent{
		Type:        "start",
		RunID:       runID,
		Model:       tier,
		MaxMessages: simulation.ClampMaxMessages(req.MaxMessages),
	})

	for event := range simulator.RunStream(r.Context(), req.Scenario, req.MaxMessages) {
		switch event.Type {
		case simulation.EventMessage:
			writeEvent(event)
		case simulation.EventComplete:
			eval := s.finishRun(r, runID, tier, req.Scenario, event.Result)
			writeEvent(&sseEvaluationEvent{
				Type:       "evaluation",
				RunID:      runID,
				Evaluation: eval,
			})
			writeEvent(event)
		case simulation.EventError:
			writeEvent(&sseErrorEvent{Type: "error", Error: event.Err.Error()})
		}
	}

	log.Infof("handleRunSSE finished for run %s", runID)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scenarioID := vars["scenarioId"]
	records, err := s.recorder.History(r.Context(), scenarioID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := s.recorder.Summary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rows)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, provider.Tiers())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
