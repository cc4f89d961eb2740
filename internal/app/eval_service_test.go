package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rubric-eval-service/internal/app"
	"rubric-eval-service/internal/domain"
	"rubric-eval-service/internal/infra/memory"
)

func testRubricRows() []domain.RubricItem {
	return []domain.RubricItem{
		{
			ID:       "item-1",
			Title:    "Structure",
			Category: domain.CategoryContenu,
			Criteria: []domain.Criterion{{ID: "crit-1", Subtitle: "Introduction", Points: 8}},
		},
		{
			ID:       "item-2",
			Title:    "Diaporama",
			Category: domain.CategorySupport,
			IsCommon: true,
			Criteria: []domain.Criterion{{ID: "crit-2", Subtitle: "Lisibilité", Points: 4}},
		},
	}
}

func testPresenters() []domain.Presenter {
	return []domain.Presenter{
		{ID: "pa", Name: "Alice"},
		{ID: "pb", Name: "Bob"},
	}
}

func newTestService() (*app.EvalService, *memory.Store) {
	store := memory.NewStore()
	store.Seed(testRubricRows(), testPresenters())
	cache := memory.NewRubricCache(store, 5*time.Minute)
	return app.NewEvalService(memory.NewSessionStore(), cache, store, store), store
}

func TestJoinAndLiveScoring(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	board, err := service.Join(ctx, "s1", "u1", "Mme Petit")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 scoreboard entries, got %d", len(board.Entries))
	}

	board, err = service.SetRating(ctx, "s1", "crit-1", "pa", 2)
	if err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if board.Entries[0].Total != 4.0 {
		t.Fatalf("expected Alice at 4.0, got %v", board.Entries[0].Total)
	}
	if board.Entries[1].Total != 0 {
		t.Fatalf("expected Bob untouched, got %v", board.Entries[1].Total)
	}

	// Group rating is broadcast to both presenters.
	board, err = service.SetRating(ctx, "s1", "crit-2", domain.EntityGroup, 1)
	if err != nil {
		t.Fatalf("group rate failed: %v", err)
	}
	if board.Entries[0].Total != 5.0 || board.Entries[1].Total != 1.0 {
		t.Fatalf("expected totals 5.0/1.0, got %v/%v", board.Entries[0].Total, board.Entries[1].Total)
	}
	if board.Entries[1].Breakdown[domain.CategorySupport] != 1.0 {
		t.Fatalf("expected support subtotal 1.0 for Bob, got %v", board.Entries[1].Breakdown)
	}
}

func TestSetRatingValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.SetRating(ctx, "nope", "crit-1", "pa", 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	if _, err := service.Join(ctx, "s1", "u1", "Mme Petit"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.SetRating(ctx, "s1", "crit-1", "pa", 9); !errors.Is(err, domain.ErrInvalidLevel) {
		t.Fatalf("expected level rejection, got %v", err)
	}
	if _, err := service.SetRating(ctx, "s1", "missing", "pa", 1); !errors.Is(err, domain.ErrCriterionNotFound) {
		t.Fatalf("expected criterion error, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.Join(ctx, "s1", "u1", "Mme Petit"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.SetRating(ctx, "s1", "crit-1", "pa", 4); err != nil {
		t.Fatalf("rate failed: %v", err)
	}

	update := <-ch
	if update.Entries[0].Total != 8.0 {
		t.Fatalf("expected broadcast total 8.0, got %v", update.Entries[0].Total)
	}
}

func TestSubmitPersistsAndResets(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	if _, err := service.Join(ctx, "s1", "u1", "Mme Petit"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.SetRating(ctx, "s1", "crit-1", "pa", 2); err != nil {
		t.Fatalf("rate: %v", err)
	}

	rec, board, err := service.Submit(ctx, "s1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("expected persisted record ID")
	}
	if rec.FinalScores["pa"] != 4.0 || rec.ScoreContenu["pa"] != 4.0 {
		t.Fatalf("unexpected record scores %+v", rec)
	}
	if levels := rec.Responses["Introduction"]; levels["pa"] != 2 {
		t.Fatalf("expected raw responses in record, got %v", rec.Responses)
	}
	// Sheet reset after submit.
	if board.Entries[0].Total != 0 {
		t.Fatalf("expected zeroed scoreboard after submit, got %v", board.Entries[0].Total)
	}

	evals, err := store.ListEvaluations(ctx)
	if err != nil || len(evals) != 1 {
		t.Fatalf("expected 1 stored evaluation, got %d (%v)", len(evals), err)
	}
}

func TestStatsAggregation(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	_ = store.InsertEvaluation(ctx, &domain.EvaluationRecord{FinalScores: map[string]float64{"pa": 10, "pb": 2}})
	_ = store.InsertEvaluation(ctx, &domain.EvaluationRecord{FinalScores: map[string]float64{"pa": 14, "pb": 4}})

	averages, history, summary, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if averages[0].Average != 12.00 || averages[1].Average != 3.00 {
		t.Fatalf("unexpected averages %+v", averages)
	}
	if len(history) != 2 || summary.Evaluations != 2 || summary.Presenters != 2 {
		t.Fatalf("unexpected history/summary %d %+v", len(history), summary)
	}
}

func TestLeaveDropsEmptySession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.Join(ctx, "s1", "u1", "Mme Petit"); err != nil {
		t.Fatalf("join: %v", err)
	}
	service.Leave(ctx, "s1", "u1")

	if _, err := service.SetRating(ctx, "s1", "crit-1", "pa", 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone after last leave, got %v", err)
	}
}
