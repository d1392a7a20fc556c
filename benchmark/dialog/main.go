//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package main runs a batch of dialogue simulation scenarios concurrently and
// prints the aggregated scoring summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	embedderopenai "trpc.group/trpc-go/trpc-simeval-go/embedder/openai"
	"trpc.group/trpc-go/trpc-simeval-go/evaluation"
	"trpc.group/trpc-go/trpc-simeval-go/evaluation/judge"
	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/model/provider"
	"trpc.group/trpc-go/trpc-simeval-go/runrecord"
	"trpc.group/trpc-go/trpc-simeval-go/runrecord/local"
	"trpc.group/trpc-go/trpc-simeval-go/simulation"
)

var (
	scenariosPath = flag.String("scenarios", "scenarios.json", "Path to a JSON array of scenarios")
	modelTier     = flag.String("model", provider.DefaultTier, "Model tier driving the dialogue")
	judgeTier     = flag.String("judge-model", provider.TierStandard, "Model tier for the judge verdict")
	maxMessages   = flag.Int("max-messages", simulation.DefaultMaxMessages, "Transcript ceiling per run")
	runsPer       = flag.Int("runs", 1, "Runs per scenario")
	concurrency   = flag.Int("concurrency", 4, "Concurrent runs")
	outputDir     = flag.String("output", "run_records", "Directory for the run record log")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatalf("benchmark failed: %v", err)
	}
}

func run() error {
	scenarios, err := loadScenarios(*scenariosPath)
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}

	m, err := provider.Model(*modelTier)
	if err != nil {
		return err
	}
	judgeModel, err := provider.Model(*judgeTier)
	if err != nil {
		return err
	}

	simulator := simulation.New(simulation.NewLLMStepGenerator(m))
	evaluator := evaluation.New(embedderopenai.New(), judge.New(judgeModel))
	recorder := local.NewManager(runrecord.WithBaseDir(*outputDir))

	fmt.Printf("Scenarios: %d, runs per scenario: %d, model: %s, judge: %s\n",
		len(scenarios), *runsPer, *modelTier, *judgeTier)

	pool, err := ants.NewPool(*concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, sc := range scenarios {
		for i := 0; i < *runsPer; i++ {
			wg.Add(1)
			scenario := sc
			if err := pool.Submit(func() {
				defer wg.Done()
				runScenario(ctx, simulator, evaluator, recorder, scenario)
			}); err != nil {
				wg.Done()
				return fmt.Errorf("submit run: %w", err)
			}
		}
	}
	wg.Wait()

	return printSummary(ctx, recorder)
}

// runScenario drives one simulation run end to end. Failures are logged and
// skipped so one bad run does not abort the batch.
func runScenario(
	ctx context.Context,
	simulator *simulation.Simulator,
	evaluator *evaluation.Evaluator,
	recorder runrecord.Manager,
	scenario simulation.Scenario,
) {
	start := time.Now()
	result, err := simulator.Run(ctx, scenario, *maxMessages)
	if err != nil {
		log.Errorf("scenario %s run failed: %v", scenario.ID, err)
		return
	}
	eval := evaluator.Evaluate(ctx, result.Transcript, scenario)
	record := &runrecord.RunRecord{
		Timestamp:  time.Now(),
		RunID:      uuid.New().String(),
		ScenarioID: scenario.ID,
		Model:      *modelTier,
		Transcript: result.Transcript,
		FinalState: result.FinalState,
		Evaluation: eval,
	}
	if err := recorder.Append(ctx, record); err != nil {
		log.Errorf("recording scenario %s failed: %v", scenario.ID, err)
		return
	}
	log.Infof("scenario %s: %d turns in %v, completed=%v",
		scenario.ID, len(result.Transcript), time.Since(start).Round(time.Millisecond),
		result.FinalState.TaskCompleted)
}

func loadScenarios(path string) ([]simulation.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenarios []simulation.Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", path)
	}
	for i := range scenarios {
		if err := scenarios[i].Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
	}
	return scenarios, nil
}

func printSummary(ctx context.Context, recorder runrecord.Manager) error {
	rows, err := recorder.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%-24s %-14s %6s %10s %10s %9s\n",
		"SCENARIO", "MODEL", "RUNS", "COMPOSITE", "SEMANTIC", "SUCCESS")
	for _, row := range rows {
		fmt.Printf("%-24s %-14s %6d %10s %10s %8.0f%%\n",
			row.ScenarioID, row.Model, row.Runs,
			formatScore(row.AvgComposite), formatScore(row.AvgSemantic),
			row.SuccessRate*100)
	}
	return nil
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *score)
}
