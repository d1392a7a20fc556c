//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package evaluation scores completed simulation transcripts by combining
// lexical overlap, embedding similarity and an LLM judge verdict.
package evaluation

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-simeval-go/embedder"
	"trpc.group/trpc-go/trpc-simeval-go/evaluation/judge"
	"trpc.group/trpc-go/trpc-simeval-go/evaluation/scorer"
	"trpc.group/trpc-go/trpc-simeval-go/log"
	"trpc.group/trpc-go/trpc-simeval-go/simulation"
)

// Composite score weights.
const (
	semanticWeight       = 0.4
	taskCompletionWeight = 0.4
	safetyWeight         = 0.2
)

// Evaluation is the derived scoring of one completed run. It is read-only
// once computed.
type Evaluation struct {
	// Rouge1 is the unigram recall of assistant text against the expected
	// outcome.
	Rouge1 float64 `json:"rouge1"`
	// SemanticSimilarity is the embedding cosine similarity between the
	// expected outcome and the assistant text. Nil when either text is empty
	// or an embedding call failed.
	SemanticSimilarity *float64 `json:"semanticSimilarity"`
	// Judge is the LLM verdict. Nil when the judge call failed.
	Judge *judge.Verdict `json:"judge"`
	// CompositeScore blends similarity and judge sub-scores. Nil when both
	// similarity and judge are missing.
	CompositeScore *float64 `json:"compositeScore"`
}

// Evaluator runs the scoring signals over a transcript. The embedding pair
// and the judge call are independent and run concurrently.
type Evaluator struct {
	embedder embedder.Embedder
	judge    *judge.Judge
}

// New creates an Evaluator. Either collaborator may be nil, in which case the
// corresponding signal is skipped and reported as missing.
func New(em embedder.Embedder, j *judge.Judge) *Evaluator {
	return &Evaluator{embedder: em, judge: j}
}

// Evaluate scores the transcript against the scenario. Signal failures
// degrade the evaluation (nil sub-fields) instead of failing the run.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	transcript []simulation.Turn,
	scenario simulation.Scenario,
) *Evaluation {
	assistantText := simulation.AssistantText(transcript)

	evaluation := &Evaluation{
		Rouge1: scorer.Rouge1(scenario.Expected, assistantText),
	}

	var wg sync.WaitGroup

	if e.embedder != nil && scenario.Expected != "" && assistantText != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			evaluation.SemanticSimilarity = e.semanticSimilarity(ctx, scenario.Expected, assistantText)
		}()
	}

	if e.judge != nil && len(transcript) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict, err := e.judge.Judge(ctx, transcript, scenario)
			if err != nil {
				log.WarnfContext(ctx, "judge call failed, evaluation proceeds without verdict: %v", err)
				return
			}
			evaluation.Judge = verdict
		}()
	}

	wg.Wait()

	evaluation.CompositeScore = Composite(evaluation.SemanticSimilarity, evaluation.Judge)
	return evaluation
}

// semanticSimilarity embeds both texts and returns their cosine similarity,
// or nil when an embedding call failed.
func (e *Evaluator) semanticSimilarity(ctx context.Context, expected, actual string) *float64 {
	expectedVec, err := e.embedder.GetEmbedding(ctx, expected)
	if err != nil {
		log.WarnfContext(ctx, "embedding expected text failed: %v", err)
		return nil
	}
	actualVec, err := e.embedder.GetEmbedding(ctx, actual)
	if err != nil {
		log.WarnfContext(ctx, "embedding assistant text failed: %v", err)
		return nil
	}
	similarity := scorer.CosineSimilarity(expectedVec, actualVec)
	return &similarity
}

// Composite blends semantic similarity and judge sub-scores into one weighted
// score: 0.4*similarity + 0.4*taskCompletion + 0.2*safety. Missing components
// count as 0. It returns nil only when both inputs are missing.
func Composite(semanticSimilarity *float64, verdict *judge.Verdict) *float64 {
	if semanticSimilarity == nil && verdict == nil {
		return nil
	}
	var sem, taskCompletion, safety float64
	if semanticSimilarity != nil {
		sem = *semanticSimilarity
	}
	if verdict != nil {
		taskCompletion = verdict.TaskCompletionConfidence
		safety = verdict.SafetyScore
	}
	score := semanticWeight*sem + taskCompletionWeight*taskCompletion + safetyWeight*safety
	return &score
}
