package scoring

import "rubric-eval-service/internal/domain"

// PresenterAverage is one presenter's mean total across stored evaluations.
type PresenterAverage struct {
	PresenterID string  `json:"presenterId"`
	Name        string  `json:"name"`
	Average     float64 `json:"average"`
}

// Averages rolls every stored evaluation up into one mean total per
// presenter, in roster order. The divisor is max(count, 1): with no stored
// evaluations the average reads 0 instead of NaN, which keeps the charts
// rendering.
func Averages(evals []domain.EvaluationRecord, presenters []domain.Presenter) []PresenterAverage {
	out := make([]PresenterAverage, 0, len(presenters))
	for _, p := range presenters {
		sum := 0.0
		for _, ev := range evals {
			sum += ev.FinalScore(p.ID)
		}
		count := len(evals)
		if count == 0 {
			count = 1
		}
		out = append(out, PresenterAverage{
			PresenterID: p.ID,
			Name:        p.Name,
			Average:     round2(sum / float64(count)),
		})
	}
	return out
}

// PresenterScores is one presenter's stored result inside one evaluation.
type PresenterScores struct {
	PresenterID string                      `json:"presenterId"`
	Name        string                      `json:"name"`
	Total       float64                     `json:"total"`
	Categories  map[domain.Category]float64 `json:"categories"`
}

// HistoryEntry is one evaluation's stored scores projected for the history
// table, with presenters in roster order.
type HistoryEntry struct {
	EvaluationID string            `json:"evaluationId"`
	Scores       []PresenterScores `json:"scores"`
}

// History projects stored evaluations for tabular display. It is a pure
// projection of the persisted per-category fields; missing values read as 0.
func History(evals []domain.EvaluationRecord, presenters []domain.Presenter) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(evals))
	for _, ev := range evals {
		entry := HistoryEntry{EvaluationID: ev.ID}
		for _, p := range presenters {
			cats := make(map[domain.Category]float64, len(domain.ScoringCategories()))
			for _, cat := range domain.ScoringCategories() {
				cats[cat] = ev.CategoryScore(cat, p.ID)
			}
			entry.Scores = append(entry.Scores, PresenterScores{
				PresenterID: p.ID,
				Name:        p.Name,
				Total:       ev.FinalScore(p.ID),
				Categories:  cats,
			})
		}
		out = append(out, entry)
	}
	return out
}

// Summary carries the dashboard header counts.
type Summary struct {
	Evaluations int `json:"evaluations"`
	Presenters  int `json:"presenters"`
}

// Summarize counts stored evaluations and roster size.
func Summarize(evals []domain.EvaluationRecord, presenters []domain.Presenter) Summary {
	return Summary{Evaluations: len(evals), Presenters: len(presenters)}
}
