//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

package runrecord

import "sort"

// FilterHistory returns the records matching the scenario, newest first,
// limited to HistoryLimit entries. It is shared by Manager implementations.
func FilterHistory(records []*RunRecord, scenarioID string) []*RunRecord {
	matched := make([]*RunRecord, 0, len(records))
	for _, record := range records {
		if record.ScenarioID == scenarioID {
			matched = append(matched, record)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > HistoryLimit {
		matched = matched[:HistoryLimit]
	}
	return matched
}

// Summarize groups records by (scenario, model) and aggregates them. Rows are
// sorted by scenario then model for stable output.
func Summarize(records []*RunRecord) []*SummaryRow {
	type aggregate struct {
		row          *SummaryRow
		sumComposite float64
		sumSemantic  float64
		succeeded    int
	}

	groups := make(map[[2]string]*aggregate)
	for _, record := range records {
		key := [2]string{record.ScenarioID, record.Model}
		agg, ok := groups[key]
		if !ok {
			agg = &aggregate{row: &SummaryRow{
				ScenarioID: record.ScenarioID,
				Model:      record.Model,
			}}
			groups[key] = agg
		}
		agg.row.Runs++
		if record.Timestamp.After(agg.row.LastTimestamp) {
			agg.row.LastTimestamp = record.Timestamp
		}
		if record.Evaluation == nil {
			continue
		}
		if record.Evaluation.CompositeScore != nil {
			agg.sumComposite += *record.Evaluation.CompositeScore
		}
		if record.Evaluation.SemanticSimilarity != nil {
			agg.sumSemantic += *record.Evaluation.SemanticSimilarity
		}
		if record.Evaluation.Judge != nil && record.Evaluation.Judge.Succeeded {
			agg.succeeded++
		}
	}

	rows := make([]*SummaryRow, 0, len(groups))
	for _, agg := range groups {
		// The sum of available scores divides by the total run count, not the
		// count of non-null scores. Established behavior, kept as-is.
		if agg.sumComposite > 0 {
			avg := agg.sumComposite / float64(agg.row.Runs)
			agg.row.AvgComposite = &avg
		}
		if agg.sumSemantic > 0 {
			avg := agg.sumSemantic / float64(agg.row.Runs)
			agg.row.AvgSemantic = &avg
		}
		agg.row.SuccessRate = float64(agg.succeeded) / float64(agg.row.Runs)
		rows = append(rows, agg.row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ScenarioID != rows[j].ScenarioID {
			return rows[i].ScenarioID < rows[j].ScenarioID
		}
		return rows[i].Model < rows[j].Model
	})
	return rows
}
