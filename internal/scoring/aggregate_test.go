package scoring

import (
	"testing"

	"rubric-eval-service/internal/domain"
)

func TestAveragesAcrossEvaluations(t *testing.T) {
	evals := []domain.EvaluationRecord{
		{ID: "e1", FinalScores: map[string]float64{"a": 10, "b": 6}},
		{ID: "e2", FinalScores: map[string]float64{"a": 14, "b": 8}},
	}
	averages := Averages(evals, roster())

	if len(averages) != 2 {
		t.Fatalf("expected one row per presenter, got %d", len(averages))
	}
	if averages[0].PresenterID != "a" || averages[1].PresenterID != "b" {
		t.Fatalf("rows must follow roster order: %+v", averages)
	}
	if averages[0].Average != 12.00 {
		t.Fatalf("expected average 12.00 for a, got %v", averages[0].Average)
	}
	if averages[1].Average != 7.00 {
		t.Fatalf("expected average 7.00 for b, got %v", averages[1].Average)
	}
}

func TestAveragesZeroEvaluations(t *testing.T) {
	averages := Averages(nil, roster())
	for _, row := range averages {
		if row.Average != 0 {
			t.Fatalf("zero stored evaluations must average 0, got %v", row.Average)
		}
	}
}

func TestAveragesMissingPresenterScores(t *testing.T) {
	// Evaluation predates a roster change; the missing presenter reads 0.
	evals := []domain.EvaluationRecord{
		{ID: "e1", FinalScores: map[string]float64{"a": 10}},
	}
	averages := Averages(evals, roster())
	if averages[1].Average != 0 {
		t.Fatalf("presenter absent from record must average 0, got %v", averages[1].Average)
	}
}

func TestHistoryProjection(t *testing.T) {
	evals := []domain.EvaluationRecord{
		{
			ID:           "e1",
			ScoreContenu: map[string]float64{"a": 3.5},
			FinalScores:  map[string]float64{"a": 3.5},
		},
	}
	history := History(evals, roster())

	if len(history) != 1 {
		t.Fatalf("expected one entry, got %d", len(history))
	}
	entry := history[0]
	if entry.EvaluationID != "e1" || len(entry.Scores) != 2 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Scores[0].Categories[domain.CategoryContenu] != 3.5 {
		t.Fatalf("stored category score must be reflected exactly")
	}
	// Every missing field defaults to 0.
	if entry.Scores[0].Categories[domain.CategorySupport] != 0 {
		t.Fatalf("missing category map must read 0")
	}
	if entry.Scores[1].Total != 0 {
		t.Fatalf("presenter absent from record must read 0")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(make([]domain.EvaluationRecord, 3), roster())
	if s.Evaluations != 3 || s.Presenters != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
