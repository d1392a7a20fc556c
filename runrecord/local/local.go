//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package local provides a local file storage implementation for run records.
package local

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/runrecord"
)

// logFileName is the newline-delimited JSON run log inside the base directory.
const logFileName = "runs.jsonl"

// manager implements the runrecord.Manager interface using an append-only
// newline-delimited JSON file. The mutex serializes appends within one
// process; cross-process writers rely on the platform's atomic-append
// guarantee for small writes.
type manager struct {
	baseDir string
	mu      sync.Mutex
}

// NewManager creates a new local file run record manager.
// Use functional options (see runrecord.Options) to override the default
// directory.
func NewManager(opt ...runrecord.Option) runrecord.Manager {
	opts := runrecord.NewOptions(opt...)
	return &manager{baseDir: opts.BaseDir}
}

// Append stores one run record as a single JSON line.
func (m *manager) Append(ctx context.Context, record *runrecord.RunRecord) error {
	_ = ctx
	if record == nil {
		return errors.New("record is nil")
	}
	if record.RunID == "" {
		return errors.New("record run id is empty")
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(m.logPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// History returns the records for the scenario, newest first, limited to
// runrecord.HistoryLimit entries.
func (m *manager) History(ctx context.Context, scenarioID string) ([]*runrecord.RunRecord, error) {
	records, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return runrecord.FilterHistory(records, scenarioID), nil
}

// Summary aggregates all records grouped by (scenario, model).
func (m *manager) Summary(ctx context.Context) ([]*runrecord.SummaryRow, error) {
	records, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return runrecord.Summarize(records), nil
}

// load reads every record in the log. Malformed lines are skipped: the log is
// best-effort parsed, never fatal.
func (m *manager) load(ctx context.Context) ([]*runrecord.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.Open(m.logPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*runrecord.RunRecord{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []*runrecord.RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record runrecord.RunRecord
		if err := json.Unmarshal(line, &record); err != nil {
			log.WarnfContext(ctx, "skipping malformed run record line: %v", err)
			continue
		}
		records = append(records, &record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *manager) logPath() string {
	return filepath.Join(m.baseDir, logFileName)
}
