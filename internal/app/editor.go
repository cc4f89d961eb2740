package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rubric-eval-service/internal/domain"
)

// RubricStore is the authoritative read/write surface for rubric rows.
type RubricStore interface {
	ListItems(ctx context.Context) ([]domain.RubricItem, error)
	InsertItem(ctx context.Context, item domain.RubricItem) error
	UpdateItemTitle(ctx context.Context, itemID, title string) error
	UpdateItemCommon(ctx context.Context, itemID string, common bool) error
	UpdateItemCriteria(ctx context.Context, itemID string, criteria []domain.Criterion) error
	DeleteItem(ctx context.Context, itemID string) error
}

// RubricInvalidator lets the editor drop cached rubric snapshots after a
// write so new sessions see the edit.
type RubricInvalidator interface {
	InvalidateRubric(ctx context.Context) error
}

// EditorService applies structural rubric mutations. Every operation updates
// the in-memory structure first and then issues the equivalent persisted
// write; a failed write surfaces as the returned error without rolling the
// local change back (the user retries, or reloads).
type EditorService struct {
	store       RubricStore
	presenters  PresenterRepository
	invalidator RubricInvalidator

	mu     sync.Mutex
	rubric domain.Rubric
	dirty  map[string]struct{}
}

func NewEditorService(store RubricStore, presenters PresenterRepository, invalidator RubricInvalidator) *EditorService {
	return &EditorService{
		store:       store,
		presenters:  presenters,
		invalidator: invalidator,
		dirty:       make(map[string]struct{}),
	}
}

// Rubric returns the current editing state, loading it from the store on
// first use.
func (e *EditorService) Rubric(ctx context.Context) (domain.Rubric, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return e.rubric.Clone(), nil
}

// Reload discards the editing state and re-reads it from the store.
func (e *EditorService) Reload(ctx context.Context) error {
	rows, err := e.store.ListItems(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.rubric = domain.BuildRubric(rows)
	e.dirty = make(map[string]struct{})
	e.mu.Unlock()
	return nil
}

// AddItem appends a fresh item with one default criterion to a category.
func (e *EditorService) AddItem(ctx context.Context, category domain.Category) (domain.RubricItem, error) {
	if _, ok := domain.ParseCategory(string(category)); !ok {
		return domain.RubricItem{}, domain.ErrUnknownCategory
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return domain.RubricItem{}, err
	}

	item := domain.NewRubricItem(category)
	e.rubric[category] = append(e.rubric[category], item)
	if err := e.store.InsertItem(ctx, item); err != nil {
		return item, fmt.Errorf("insert rubric item: %w", err)
	}
	return item, e.invalidate(ctx)
}

// DeleteItem removes a whole card.
func (e *EditorService) DeleteItem(ctx context.Context, itemID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	items := e.rubric[item.Category]
	kept := items[:0]
	for _, it := range items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	e.rubric[item.Category] = kept
	delete(e.dirty, itemID)
	if err := e.store.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete rubric item: %w", err)
	}
	return e.invalidate(ctx)
}

// RenameItem replaces an item's title.
func (e *EditorService) RenameItem(ctx context.Context, itemID, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	item.Title = title
	if err := e.store.UpdateItemTitle(ctx, itemID, title); err != nil {
		return fmt.Errorf("update item title: %w", err)
	}
	return e.invalidate(ctx)
}

// ToggleCommon flips the common/individual mode of an item. Already-running
// sessions keep their rating shape; the tagged rating variant makes the
// reshaping explicit when a session chooses to convert.
func (e *EditorService) ToggleCommon(ctx context.Context, itemID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return false, err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return false, domain.ErrItemNotFound
	}
	item.IsCommon = !item.IsCommon
	if err := e.store.UpdateItemCommon(ctx, itemID, item.IsCommon); err != nil {
		return item.IsCommon, fmt.Errorf("update item mode: %w", err)
	}
	return item.IsCommon, e.invalidate(ctx)
}

// AddCriterion appends a default criterion to an item and persists the whole
// criteria list.
func (e *EditorService) AddCriterion(ctx context.Context, itemID string) (domain.Criterion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return domain.Criterion{}, err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.Criterion{}, domain.ErrItemNotFound
	}
	crit := domain.NewCriterion()
	item.Criteria = append(item.Criteria, crit)
	if err := e.store.UpdateItemCriteria(ctx, itemID, item.Criteria); err != nil {
		return crit, fmt.Errorf("update criteria list: %w", err)
	}
	return crit, e.invalidate(ctx)
}

// UpdateCriterion replaces one field of one criterion, addressed by its
// stable ID. Every other criterion is left untouched.
func (e *EditorService) UpdateCriterion(ctx context.Context, itemID, critID, field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	crit, ok := item.Criterion(critID)
	if !ok {
		return domain.ErrCriterionNotFound
	}
	switch field {
	case "subtitle":
		crit.Subtitle = value
	case "explication":
		crit.Explication = value
	case "points":
		crit.Points = parsePoints(value)
	default:
		return domain.ErrInvalidField
	}
	if err := e.store.UpdateItemCriteria(ctx, itemID, item.Criteria); err != nil {
		return fmt.Errorf("update criteria list: %w", err)
	}
	return e.invalidate(ctx)
}

// DeleteCriterion removes one criterion by stable ID and persists the
// shortened list. Remaining criteria keep their IDs and fields.
func (e *EditorService) DeleteCriterion(ctx context.Context, itemID, critID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	if _, ok := item.Criterion(critID); !ok {
		return domain.ErrCriterionNotFound
	}
	kept := item.Criteria[:0]
	for _, c := range item.Criteria {
		if c.ID != critID {
			kept = append(kept, c)
		}
	}
	item.Criteria = kept
	if err := e.store.UpdateItemCriteria(ctx, itemID, item.Criteria); err != nil {
		return fmt.Errorf("update criteria list: %w", err)
	}
	return e.invalidate(ctx)
}

// SetPoints stages a new weight for one criterion; the change is only
// persisted by SaveWeights, matching the settings page's explicit save.
func (e *EditorService) SetPoints(ctx context.Context, itemID, critID string, raw string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	item, ok := e.rubric.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	crit, ok := item.Criterion(critID)
	if !ok {
		return domain.ErrCriterionNotFound
	}
	crit.Points = parsePoints(raw)
	e.dirty[itemID] = struct{}{}
	return nil
}

// TotalWeight returns the sum of all staged point weights.
func (e *EditorService) TotalWeight(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return 0, err
	}
	return e.rubric.TotalWeight(), nil
}

// SaveWeights persists the criteria list of every item touched by SetPoints,
// one independent update per item. There is no atomicity across items: a
// partial failure leaves the succeeded items written and reports the rest as
// one aggregated error.
func (e *EditorService) SaveWeights(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	var errs []error
	for itemID := range e.dirty {
		item, ok := e.rubric.Item(itemID)
		if !ok {
			delete(e.dirty, itemID)
			continue
		}
		if err := e.store.UpdateItemCriteria(ctx, itemID, item.Criteria); err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", itemID, err))
			continue
		}
		delete(e.dirty, itemID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("save weights: %w", errors.Join(errs...))
	}
	return e.invalidate(ctx)
}

// SaveRoster replaces the presenter roster from an edited name list. Empty
// names are filtered before insert.
func (e *EditorService) SaveRoster(ctx context.Context, names []string) error {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			kept = append(kept, n)
		}
	}
	if err := e.presenters.ReplacePresenters(ctx, kept); err != nil {
		return fmt.Errorf("replace presenters: %w", err)
	}
	return nil
}

func (e *EditorService) ensureLoadedLocked(ctx context.Context) error {
	if e.rubric != nil {
		return nil
	}
	rows, err := e.store.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("load rubric: %w", err)
	}
	e.rubric = domain.BuildRubric(rows)
	return nil
}

// invalidate drops cached rubric snapshots, best effort from the editor's
// point of view but surfaced so callers can report it.
func (e *EditorService) invalidate(ctx context.Context) error {
	if e.invalidator == nil {
		return nil
	}
	return e.invalidator.InvalidateRubric(ctx)
}

// parsePoints mirrors the settings input: empty means 0, anything
// unparseable or negative is coerced to 0.
func parsePoints(raw string) domain.Points {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	var p domain.Points
	// Reuse the lenient JSON coercion rules.
	_ = p.UnmarshalJSON([]byte(raw))
	return p
}
