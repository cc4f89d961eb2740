// Package memory provides in-process implementations of the storage
// interfaces, used for tests and redis/postgres-less deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rubric-eval-service/internal/domain"
)

// Store keeps rubric items, the presenter roster, and evaluation records in
// plain slices, preserving insertion order the way the backing database
// orders by created_at.
type Store struct {
	mu          sync.RWMutex
	items       []domain.RubricItem
	presenters  []domain.Presenter
	evaluations []domain.EvaluationRecord
	clock       func() time.Time
}

func NewStore() *Store {
	return &Store{clock: time.Now}
}

// Seed replaces the rubric rows and roster, for demos and tests.
func (s *Store) Seed(items []domain.RubricItem, presenters []domain.Presenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]domain.RubricItem(nil), items...)
	s.presenters = append([]domain.Presenter(nil), presenters...)
}

// ListItems returns the flat rubric rows in insertion order.
func (s *Store) ListItems(_ context.Context) ([]domain.RubricItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items), nil
}

// LoadRubricItems satisfies the cache loader interface.
func (s *Store) LoadRubricItems(ctx context.Context) ([]domain.RubricItem, error) {
	return s.ListItems(ctx)
}

func (s *Store) InsertItem(_ context.Context, item domain.RubricItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.clock()
	}
	s.items = append(s.items, item)
	return nil
}

func (s *Store) UpdateItemTitle(_ context.Context, itemID, title string) error {
	return s.updateItem(itemID, func(it *domain.RubricItem) {
		it.Title = title
	})
}

func (s *Store) UpdateItemCommon(_ context.Context, itemID string, common bool) error {
	return s.updateItem(itemID, func(it *domain.RubricItem) {
		it.IsCommon = common
	})
}

func (s *Store) UpdateItemCriteria(_ context.Context, itemID string, criteria []domain.Criterion) error {
	copied := append([]domain.Criterion(nil), criteria...)
	return s.updateItem(itemID, func(it *domain.RubricItem) {
		it.Criteria = copied
	})
}

func (s *Store) DeleteItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	found := false
	for _, it := range s.items {
		if it.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	if !found {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *Store) updateItem(itemID string, apply func(*domain.RubricItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == itemID {
			apply(&s.items[i])
			return nil
		}
	}
	return domain.ErrItemNotFound
}

// ListPresenters returns the roster in insertion order.
func (s *Store) ListPresenters(_ context.Context) ([]domain.Presenter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Presenter(nil), s.presenters...), nil
}

// ReplacePresenters rebuilds the roster from a name list (delete-then-insert).
func (s *Store) ReplacePresenters(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]domain.Presenter, 0, len(names))
	for _, name := range names {
		roster = append(roster, domain.Presenter{ID: uuid.NewString(), Name: name})
	}
	s.presenters = roster
	return nil
}

// InsertEvaluation appends a write-once record, assigning its ID and
// timestamp.
func (s *Store) InsertEvaluation(_ context.Context, rec *domain.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock()
	}
	s.evaluations = append(s.evaluations, *rec)
	return nil
}

// ListEvaluations returns stored records in creation order.
func (s *Store) ListEvaluations(_ context.Context) ([]domain.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EvaluationRecord(nil), s.evaluations...), nil
}

func cloneItems(items []domain.RubricItem) []domain.RubricItem {
	out := make([]domain.RubricItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Criteria = append([]domain.Criterion(nil), items[i].Criteria...)
	}
	return out
}
