package domain

import (
	"encoding/json"
	"testing"
)

func TestPointsCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`8`, 8},
		{`2.5`, 2.5},
		{`"3.25"`, 3.25},
		{`"abc"`, 0},
		{`null`, 0},
		{`""`, 0},
		{`-4`, 0},
	}
	for _, tc := range cases {
		var p Points
		if err := json.Unmarshal([]byte(tc.raw), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if p.Value() != tc.want {
			t.Fatalf("points %s: expected %v, got %v", tc.raw, tc.want, p.Value())
		}
	}
}

func TestLevelValid(t *testing.T) {
	for l := Level(0); l <= LevelMax; l++ {
		if !l.Valid() {
			t.Fatalf("level %d should be valid", l)
		}
	}
	if Level(-1).Valid() || Level(5).Valid() {
		t.Fatalf("out-of-range levels must be invalid")
	}
}

func TestBuildRubricDropsUnknownCategories(t *testing.T) {
	rows := []RubricItem{
		{ID: "a", Category: CategoryContenu, Criteria: []Criterion{{ID: "c1", Subtitle: "Intro"}}},
		{ID: "b", Category: Category("bogus"), Criteria: []Criterion{{ID: "c2"}}},
		{ID: "c", Category: CategoryContenu, Criteria: []Criterion{{Subtitle: "Plan"}}},
	}
	rubric := BuildRubric(rows)

	if len(rubric[CategoryContenu]) != 2 {
		t.Fatalf("expected 2 contenu items, got %d", len(rubric[CategoryContenu]))
	}
	total := len(rubric.Items())
	if total != 2 {
		t.Fatalf("unknown category row should be dropped, got %d items", total)
	}
	// Insertion order preserved.
	if rubric[CategoryContenu][0].ID != "a" || rubric[CategoryContenu][1].ID != "c" {
		t.Fatalf("insertion order not preserved: %+v", rubric[CategoryContenu])
	}
	// Legacy criterion without ID gets one assigned.
	if rubric[CategoryContenu][1].Criteria[0].ID == "" {
		t.Fatalf("expected generated criterion ID")
	}
}

func TestRubricTotalWeight(t *testing.T) {
	rubric := BuildRubric([]RubricItem{
		{ID: "a", Category: CategoryContenu, Criteria: []Criterion{{ID: "c1", Points: 4}, {ID: "c2", Points: 2.5}}},
		{ID: "b", Category: CategoryCreativite, Criteria: []Criterion{{ID: "c3", Points: 1.25}}},
	})
	if got := rubric.TotalWeight(); got != 7.75 {
		t.Fatalf("expected total 7.75, got %v", got)
	}
}

func TestRubricCloneIsIndependent(t *testing.T) {
	rubric := BuildRubric([]RubricItem{
		{ID: "a", Category: CategoryContenu, Criteria: []Criterion{{ID: "c1", Points: 4}}},
	})
	clone := rubric.Clone()
	item, _ := clone.Item("a")
	item.Criteria[0].Points = 99

	orig, _ := rubric.Item("a")
	if orig.Criteria[0].Points != 4 {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestEvaluationRecordDefaults(t *testing.T) {
	rec := EvaluationRecord{}
	if rec.FinalScore("p1") != 0 {
		t.Fatalf("missing final map should read 0")
	}
	if rec.CategoryScore(CategorySupport, "p1") != 0 {
		t.Fatalf("missing category map should read 0")
	}
}
