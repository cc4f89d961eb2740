// Package scoring holds the pure score computations: converting collected
// rating levels and point weights into per-presenter scores, and rolling up
// stored evaluations into statistics. Nothing here touches storage.
package scoring

import (
	"math"

	"rubric-eval-service/internal/domain"
)

// Scorecard is the result of scoring one session: a total per presenter plus
// one subtotal per scoring category, all rounded to 2 decimals.
type Scorecard struct {
	Totals     map[string]float64
	Categories map[domain.Category]map[string]float64
}

// Total returns a presenter's total, 0 when unknown.
func (c Scorecard) Total(presenterID string) float64 {
	return c.Totals[presenterID]
}

// CategoryScore returns a presenter's subtotal for one category, 0 when unknown.
func (c Scorecard) CategoryScore(cat domain.Category, presenterID string) float64 {
	m, ok := c.Categories[cat]
	if !ok {
		return 0
	}
	return m[presenterID]
}

// Compute scores one session from the current sheet. Each criterion with
// weight p contributes level*p/4: a common level is broadcast identically to
// every presenter, an individual level only to its presenter. Missing ratings
// read as level 0 and unparseable weights as 0 points, so partial state never
// errors. The function is pure and cheap enough to re-run on every rating
// change.
func Compute(rubric domain.Rubric, sheet domain.RatingSheet, presenters []domain.Presenter) Scorecard {
	card := Scorecard{
		Totals:     make(map[string]float64, len(presenters)),
		Categories: make(map[domain.Category]map[string]float64, len(domain.ScoringCategories())),
	}
	for _, p := range presenters {
		card.Totals[p.ID] = 0
	}
	for _, cat := range domain.ScoringCategories() {
		perPresenter := make(map[string]float64, len(presenters))
		for _, p := range presenters {
			perPresenter[p.ID] = 0
		}
		card.Categories[cat] = perPresenter
	}

	for _, cat := range domain.ScoringCategories() {
		for _, item := range rubric[cat] {
			for _, crit := range item.Criteria {
				perLevel := crit.Points.Value() / float64(domain.LevelMax)
				rating, ok := sheet[crit.ID]
				if !ok {
					continue
				}
				if item.IsCommon {
					add := float64(rating.Level(domain.EntityGroup)) * perLevel
					for _, p := range presenters {
						card.Categories[cat][p.ID] += add
						card.Totals[p.ID] += add
					}
				} else {
					for _, p := range presenters {
						add := float64(rating.Level(p.ID)) * perLevel
						card.Categories[cat][p.ID] += add
						card.Totals[p.ID] += add
					}
				}
			}
		}
	}

	for id, v := range card.Totals {
		card.Totals[id] = round2(v)
	}
	for _, perPresenter := range card.Categories {
		for id, v := range perPresenter {
			perPresenter[id] = round2(v)
		}
	}
	return card
}

// Scoreboard projects a scorecard into the ordered live view, aligned with
// roster order.
func Scoreboard(card Scorecard, presenters []domain.Presenter) []domain.ScoreboardEntry {
	entries := make([]domain.ScoreboardEntry, 0, len(presenters))
	for _, p := range presenters {
		breakdown := make(map[domain.Category]float64, len(domain.ScoringCategories()))
		for _, cat := range domain.ScoringCategories() {
			breakdown[cat] = card.CategoryScore(cat, p.ID)
		}
		entries = append(entries, domain.ScoreboardEntry{
			PresenterID: p.ID,
			Name:        p.Name,
			Total:       card.Total(p.ID),
			Breakdown:   breakdown,
		})
	}
	return entries
}

// Record derives the write-once evaluation record for a finished session.
func Record(rubric domain.Rubric, sheet domain.RatingSheet, presenters []domain.Presenter) domain.EvaluationRecord {
	card := Compute(rubric, sheet, presenters)
	rec := domain.EvaluationRecord{
		Responses:       sheet.Responses(rubric),
		ScoreContenu:    make(map[string]float64, len(presenters)),
		ScoreParaverbal: make(map[string]float64, len(presenters)),
		ScoreCorporel:   make(map[string]float64, len(presenters)),
		ScoreSupport:    make(map[string]float64, len(presenters)),
		FinalScores:     make(map[string]float64, len(presenters)),
	}
	for _, p := range presenters {
		rec.ScoreContenu[p.ID] = card.CategoryScore(domain.CategoryContenu, p.ID)
		rec.ScoreParaverbal[p.ID] = card.CategoryScore(domain.CategoryParaverbal, p.ID)
		rec.ScoreCorporel[p.ID] = card.CategoryScore(domain.CategoryCorporel, p.ID)
		rec.ScoreSupport[p.ID] = card.CategoryScore(domain.CategorySupport, p.ID)
		rec.FinalScores[p.ID] = card.Total(p.ID)
	}
	return rec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
