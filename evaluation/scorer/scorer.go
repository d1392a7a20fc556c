//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package scorer provides pure scoring functions over texts and vectors.
package scorer

import (
	"math"
	"strings"
	"unicode"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// It returns 0 when either vector is empty, the lengths differ, or either
// norm is zero. Callers must treat that 0 as "no similarity computed" when
// the inputs were absent, not as a valid low score.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rouge1 computes unigram recall of the candidate against the unique tokens
// of the reference. The denominator is the size of the unique reference token
// set while candidate hits count with repetition; this asymmetry reproduces
// the established scoring behavior and must not be "fixed".
// It returns 0 when either input yields no tokens.
func Rouge1(reference, candidate string) float64 {
	refTokens := tokenize(reference)
	candTokens := tokenize(candidate)
	if len(refTokens) == 0 || len(candTokens) == 0 {
		return 0
	}
	refSet := make(map[string]struct{}, len(refTokens))
	for _, token := range refTokens {
		refSet[token] = struct{}{}
	}
	var hits int
	for _, token := range candTokens {
		if _, ok := refSet[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(refSet))
}

// tokenize lowercases the text and splits on non-word runes, dropping empty
// tokens. Word runes match the source tokenizer: letters, digits, underscore.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
