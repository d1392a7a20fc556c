//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory storage implementation for run records.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"trpc.group/trpc-go/trpc-simeval-go/runrecord"
)

// Manager implements the runrecord.Manager interface using in-memory storage.
type Manager struct {
	mu      sync.RWMutex
	records []*runrecord.RunRecord
}

// NewManager creates a new in-memory run record manager.
func NewManager() *Manager {
	return &Manager{}
}

// Append stores one run record in memory.
func (m *Manager) Append(ctx context.Context, record *runrecord.RunRecord) error {
	_ = ctx
	if record == nil {
		return errors.New("record is nil")
	}
	if record.RunID == "" {
		return errors.New("record run id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// History returns the records for the scenario, newest first, limited to
// runrecord.HistoryLimit entries.
func (m *Manager) History(ctx context.Context, scenarioID string) ([]*runrecord.RunRecord, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return runrecord.FilterHistory(m.records, scenarioID), nil
}

// Summary aggregates all records grouped by (scenario, model).
func (m *Manager) Summary(ctx context.Context) ([]*runrecord.SummaryRow, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return runrecord.Summarize(m.records), nil
}
