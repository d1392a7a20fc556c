//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package runrecord defines run record persistence and aggregation.
package runrecord

import (
	"context"
	"time"

	"trpc.group/trpc-go/trpc-simeval-go/evaluation"
	"trpc.group/trpc-go/trpc-simeval-go/simulation"
)

// HistoryLimit caps the number of records a history query returns.
const HistoryLimit = 20

// RunRecord is one persisted simulation run. Records are append-only: they
// are never mutated or deleted by this module.
type RunRecord struct {
	// Timestamp is when the run completed.
	Timestamp time.Time `json:"timestamp"`
	// RunID uniquely identifies the run.
	RunID string `json:"runId"`
	// ScenarioID identifies the scenario the run exercised.
	ScenarioID string `json:"scenarioId"`
	// Model is the model tier the run used.
	Model string `json:"model"`
	// Transcript is the ordered turn sequence.
	Transcript []simulation.Turn `json:"transcript"`
	// FinalState is the conversation state after the last iteration,
	// including the final rolling summary.
	FinalState simulation.ConversationState `json:"finalState"`
	// Evaluation is the derived scoring, possibly with nil sub-fields.
	Evaluation *evaluation.Evaluation `json:"evaluation,omitempty"`
}

// SummaryRow aggregates the runs of one (scenario, model) pair.
type SummaryRow struct {
	// ScenarioID identifies the scenario.
	ScenarioID string `json:"scenarioId"`
	// Model is the model tier.
	Model string `json:"model"`
	// Runs is the number of recorded runs.
	Runs int `json:"runs"`
	// AvgComposite divides the sum of available composite scores by the
	// total run count when the sum is positive, nil otherwise. This matches
	// the established analytics behavior; it is not a mean of the non-null
	// values.
	AvgComposite *float64 `json:"avgComposite"`
	// AvgSemantic follows the same averaging rule for semantic similarity.
	AvgSemantic *float64 `json:"avgSemantic"`
	// SuccessRate is the share of runs whose judge verdict succeeded.
	SuccessRate float64 `json:"successRate"`
	// LastTimestamp is the newest run timestamp in the group.
	LastTimestamp time.Time `json:"lastTimestamp"`
}

// Manager persists and queries run records.
type Manager interface {
	// Append stores one completed run.
	Append(ctx context.Context, record *RunRecord) error

	// History returns the records for the scenario, newest first, limited to
	// HistoryLimit entries.
	History(ctx context.Context, scenarioID string) ([]*RunRecord, error)

	// Summary aggregates all records grouped by (scenario, model).
	Summary(ctx context.Context) ([]*SummaryRow, error)
}

// Options configures run record managers.
type Options struct {
	// BaseDir is the directory holding the run log.
	BaseDir string
}

// NewOptions applies options over the defaults.
func NewOptions(opt ...Option) *Options {
	opts := &Options{
		BaseDir: "run_records",
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures Options.
type Option func(*Options)

// WithBaseDir overrides the default base directory used to store records.
func WithBaseDir(dir string) Option {
	return func(o *Options) {
		o.BaseDir = dir
	}
}
