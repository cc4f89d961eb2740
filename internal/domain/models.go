package domain

import (
	"bytes"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Category identifies one rubric column. The set is fixed; rows carrying any
// other value are dropped when the rubric is assembled.
type Category string

const (
	CategoryContenu    Category = "contenu"
	CategoryParaverbal Category = "paraverbal"
	CategoryCorporel   Category = "corporel"
	CategorySupport    Category = "support"
	CategoryCreativite Category = "creativite"
)

// Categories returns every rubric column in display order, as shown on the
// admin and settings surfaces.
func Categories() []Category {
	return []Category{
		CategoryContenu,
		CategoryParaverbal,
		CategoryCorporel,
		CategorySupport,
		CategoryCreativite,
	}
}

// ScoringCategories returns the columns that feed live scoring and the
// per-category score maps of an evaluation record.
func ScoringCategories() []Category {
	return []Category{
		CategoryContenu,
		CategoryParaverbal,
		CategoryCorporel,
		CategorySupport,
	}
}

// ParseCategory reports whether s names a known rubric column.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	switch c {
	case CategoryContenu, CategoryParaverbal, CategoryCorporel, CategorySupport, CategoryCreativite:
		return c, true
	}
	return "", false
}

// Level is a discrete rating value. 0 means unrated; 4 is the maximum.
type Level int

// LevelMax is the highest rating level; a criterion rated LevelMax earns its
// full point weight.
const LevelMax Level = 4

// Valid reports whether l lies in the accepted 0..4 range.
func (l Level) Valid() bool {
	return l >= 0 && l <= LevelMax
}

// Points is a criterion's weight. Legacy rows stored weights as free text, so
// unmarshalling coerces anything non-numeric (strings, null, garbage) to 0
// instead of failing the whole rubric load.
type Points float64

func (p *Points) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	raw := string(data)
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			*p = 0
			return nil
		}
		raw = unquoted
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		*p = 0
		return nil
	}
	*p = Points(v)
	return nil
}

// Value returns the weight as a float, clamping negatives to 0.
func (p Points) Value() float64 {
	if p < 0 {
		return 0
	}
	return float64(p)
}

// Criterion is a single scoreable line item inside a rubric item. The ID is
// stable across edits; operations address criteria by it, never by position.
type Criterion struct {
	ID          string `json:"id"`
	Subtitle    string `json:"subtitle"`
	Explication string `json:"explication"`
	Points      Points `json:"points"`
}

// NewCriterion returns a default criterion with a fresh ID and zero weight.
func NewCriterion() Criterion {
	return Criterion{
		ID:          uuid.NewString(),
		Subtitle:    "Nouveau sous-titre",
		Explication: "Nouvelle explication",
	}
}

// RubricItem is one card on the rubric board: a titled group of criteria in a
// single category. When IsCommon is true the whole group is rated once for the
// group instead of once per presenter.
type RubricItem struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Category  Category    `json:"column_id"`
	IsCommon  bool        `json:"is_common"`
	Criteria  []Criterion `json:"criteria_list"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// NewRubricItem returns a fresh item with one default criterion.
func NewRubricItem(category Category) RubricItem {
	return RubricItem{
		ID:       uuid.NewString(),
		Title:    "Nouveau Critère",
		Category: category,
		Criteria: []Criterion{NewCriterion()},
	}
}

// Criterion returns the criterion with the given ID, if present.
func (it *RubricItem) Criterion(critID string) (*Criterion, bool) {
	for i := range it.Criteria {
		if it.Criteria[i].ID == critID {
			return &it.Criteria[i], true
		}
	}
	return nil, false
}

// Rubric maps each category to its ordered items. Item order within a
// category follows storage insertion order and matters for display only.
type Rubric map[Category][]RubricItem

// BuildRubric partitions flat storage rows into a rubric. Rows with an
// unknown category are silently dropped; criteria missing a stable ID (legacy
// rows) are assigned one.
func BuildRubric(rows []RubricItem) Rubric {
	rubric := make(Rubric, len(Categories()))
	for _, c := range Categories() {
		rubric[c] = nil
	}
	for _, row := range rows {
		if _, ok := ParseCategory(string(row.Category)); !ok {
			continue
		}
		for i := range row.Criteria {
			if row.Criteria[i].ID == "" {
				row.Criteria[i].ID = uuid.NewString()
			}
		}
		rubric[row.Category] = append(rubric[row.Category], row)
	}
	return rubric
}

// Items flattens the rubric back into rows, in category display order.
func (r Rubric) Items() []RubricItem {
	var items []RubricItem
	for _, c := range Categories() {
		items = append(items, r[c]...)
	}
	return items
}

// Item returns a pointer to the item with the given ID, if present.
func (r Rubric) Item(itemID string) (*RubricItem, bool) {
	for _, c := range Categories() {
		items := r[c]
		for i := range items {
			if items[i].ID == itemID {
				return &items[i], true
			}
		}
	}
	return nil, false
}

// FindCriterion locates a criterion and its owning item anywhere in the rubric.
func (r Rubric) FindCriterion(critID string) (*RubricItem, *Criterion, bool) {
	for _, c := range Categories() {
		items := r[c]
		for i := range items {
			if crit, ok := items[i].Criterion(critID); ok {
				return &items[i], crit, true
			}
		}
	}
	return nil, nil, false
}

// Clone deep-copies the rubric so sessions can hold a snapshot that later
// editor mutations cannot reach into.
func (r Rubric) Clone() Rubric {
	out := make(Rubric, len(r))
	for cat, items := range r {
		copied := make([]RubricItem, len(items))
		copy(copied, items)
		for i := range copied {
			criteria := make([]Criterion, len(items[i].Criteria))
			copy(criteria, items[i].Criteria)
			copied[i].Criteria = criteria
		}
		out[cat] = copied
	}
	return out
}

// TotalWeight sums every criterion's point weight across all categories, the
// figure shown in the settings footer.
func (r Rubric) TotalWeight() float64 {
	total := 0.0
	for _, items := range r {
		for _, it := range items {
			for _, crit := range it.Criteria {
				total += crit.Points.Value()
			}
		}
	}
	return total
}

// Presenter is one student being evaluated. Roster order follows storage
// insertion order.
type Presenter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EvaluationRecord is one completed scoring session. Records are written once
// and never mutated; the raw responses are kept for audit, keyed by criterion
// subtitle as the original forms were.
type EvaluationRecord struct {
	ID              string                      `json:"id,omitempty"`
	Responses       map[string]map[string]Level `json:"responses"`
	ScoreContenu    map[string]float64          `json:"score_contenu"`
	ScoreParaverbal map[string]float64          `json:"score_paraverbal"`
	ScoreCorporel   map[string]float64          `json:"score_corporel"`
	ScoreSupport    map[string]float64          `json:"score_support"`
	FinalScores     map[string]float64          `json:"final_scores_per_student"`
	CreatedAt       time.Time                   `json:"created_at,omitempty"`
}

// CategoryScore returns a presenter's stored score for one category, with
// missing maps or keys defaulting to 0.
func (e EvaluationRecord) CategoryScore(c Category, presenterID string) float64 {
	var m map[string]float64
	switch c {
	case CategoryContenu:
		m = e.ScoreContenu
	case CategoryParaverbal:
		m = e.ScoreParaverbal
	case CategoryCorporel:
		m = e.ScoreCorporel
	case CategorySupport:
		m = e.ScoreSupport
	}
	if m == nil {
		return 0
	}
	return m[presenterID]
}

// FinalScore returns a presenter's stored total, 0 when absent.
func (e EvaluationRecord) FinalScore(presenterID string) float64 {
	if e.FinalScores == nil {
		return 0
	}
	return e.FinalScores[presenterID]
}

// ScoreboardEntry is one presenter's live running score.
type ScoreboardEntry struct {
	PresenterID string               `json:"presenterId"`
	Name        string               `json:"name"`
	Total       float64              `json:"total"`
	Breakdown   map[Category]float64 `json:"breakdown"`
}

// Scoreboard is the live view broadcast to evaluators after every rating
// change. Entries are aligned with roster order.
type Scoreboard struct {
	SessionID string            `json:"sessionId"`
	Entries   []ScoreboardEntry `json:"entries"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
