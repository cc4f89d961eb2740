// Package postgres is the authoritative store: rubric items as rows with a
// JSONB criteria list, the presenter roster, and write-once evaluation rows.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rubric-eval-service/internal/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListItems reads the flat rubric rows in creation order.
func (s *Store) ListItems(ctx context.Context) ([]domain.RubricItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, category, is_common, criteria, created_at
		FROM rubric_items
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rubric items: %w", err)
	}
	defer rows.Close()

	var items []domain.RubricItem
	for rows.Next() {
		var (
			item domain.RubricItem
			raw  []byte
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.Category, &item.IsCommon, &raw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rubric item: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &item.Criteria); err != nil {
				return nil, fmt.Errorf("unmarshal criteria: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// LoadRubricItems satisfies the cache loader interface.
func (s *Store) LoadRubricItems(ctx context.Context) ([]domain.RubricItem, error) {
	return s.ListItems(ctx)
}

func (s *Store) InsertItem(ctx context.Context, item domain.RubricItem) error {
	raw, err := json.Marshal(item.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rubric_items (id, title, category, is_common, criteria)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.Title, string(item.Category), item.IsCommon, raw)
	if err != nil {
		return fmt.Errorf("insert rubric item: %w", err)
	}
	return nil
}

func (s *Store) UpdateItemTitle(ctx context.Context, itemID, title string) error {
	return s.updateItem(ctx, itemID, `UPDATE rubric_items SET title=$2 WHERE id=$1`, title)
}

func (s *Store) UpdateItemCommon(ctx context.Context, itemID string, common bool) error {
	return s.updateItem(ctx, itemID, `UPDATE rubric_items SET is_common=$2 WHERE id=$1`, common)
}

func (s *Store) UpdateItemCriteria(ctx context.Context, itemID string, criteria []domain.Criterion) error {
	raw, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	return s.updateItem(ctx, itemID, `UPDATE rubric_items SET criteria=$2 WHERE id=$1`, raw)
}

func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rubric_items WHERE id=$1`, itemID)
	if err != nil {
		return fmt.Errorf("delete rubric item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *Store) updateItem(ctx context.Context, itemID, query string, arg interface{}) error {
	tag, err := s.pool.Exec(ctx, query, itemID, arg)
	if err != nil {
		return fmt.Errorf("update rubric item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ListPresenters reads the roster in creation order.
func (s *Store) ListPresenters(ctx context.Context) ([]domain.Presenter, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM presenters ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list presenters: %w", err)
	}
	defer rows.Close()

	var presenters []domain.Presenter
	for rows.Next() {
		var p domain.Presenter
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan presenter: %w", err)
		}
		presenters = append(presenters, p)
	}
	return presenters, rows.Err()
}

// ReplacePresenters rebuilds the roster in one transaction: delete all rows,
// insert one per non-empty name.
func (s *Store) ReplacePresenters(ctx context.Context, names []string) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM presenters`); err != nil {
			return fmt.Errorf("clear presenters: %w", err)
		}
		for _, name := range names {
			if _, err := tx.Exec(ctx,
				`INSERT INTO presenters (id, name) VALUES ($1, $2)`,
				uuid.NewString(), name); err != nil {
				return fmt.Errorf("insert presenter: %w", err)
			}
		}
		return nil
	})
}

// InsertEvaluation persists one write-once record.
func (s *Store) InsertEvaluation(ctx context.Context, rec *domain.EvaluationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	responses, err := json.Marshal(rec.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	contenu, _ := json.Marshal(rec.ScoreContenu)
	paraverbal, _ := json.Marshal(rec.ScoreParaverbal)
	corporel, _ := json.Marshal(rec.ScoreCorporel)
	support, _ := json.Marshal(rec.ScoreSupport)
	finals, _ := json.Marshal(rec.FinalScores)

	err = s.pool.QueryRow(ctx, `
		INSERT INTO evaluations (id, responses, score_contenu, score_paraverbal, score_corporel, score_support, final_scores)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		rec.ID, responses, contenu, paraverbal, corporel, support, finals).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// ListEvaluations reads every stored record in creation order.
func (s *Store) ListEvaluations(ctx context.Context) ([]domain.EvaluationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, responses, score_contenu, score_paraverbal, score_corporel, score_support, final_scores, created_at
		FROM evaluations
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []domain.EvaluationRecord
	for rows.Next() {
		var (
			rec                                               domain.EvaluationRecord
			responses, contenu, paraverbal, corporel, support []byte
			finals                                            []byte
		)
		if err := rows.Scan(&rec.ID, &responses, &contenu, &paraverbal, &corporel, &support, &finals, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if err := json.Unmarshal(responses, &rec.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		_ = json.Unmarshal(contenu, &rec.ScoreContenu)
		_ = json.Unmarshal(paraverbal, &rec.ScoreParaverbal)
		_ = json.Unmarshal(corporel, &rec.ScoreCorporel)
		_ = json.Unmarshal(support, &rec.ScoreSupport)
		_ = json.Unmarshal(finals, &rec.FinalScores)
		evals = append(evals, rec)
	}
	return evals, rows.Err()
}
