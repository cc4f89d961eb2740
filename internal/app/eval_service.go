package app

import (
	"context"
	"sync"
	"time"

	"rubric-eval-service/internal/domain"
	"rubric-eval-service/internal/scoring"
)

// SessionRepository abstracts how evaluation sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string, init func() *Session) *Session
	Get(sessionID string) (*Session, bool)
	DeleteIfEmpty(sessionID string)
}

// RubricRepository serves the rubric snapshot sessions score against
// (typically a cache in front of the backing store).
type RubricRepository interface {
	GetRubric(ctx context.Context) (domain.Rubric, error)
}

// PresenterRepository reads and replaces the presenter roster.
type PresenterRepository interface {
	ListPresenters(ctx context.Context) ([]domain.Presenter, error)
	ReplacePresenters(ctx context.Context, names []string) error
}

// EvaluationRepository persists and lists write-once evaluation records.
type EvaluationRepository interface {
	InsertEvaluation(ctx context.Context, rec *domain.EvaluationRecord) error
	ListEvaluations(ctx context.Context) ([]domain.EvaluationRecord, error)
}

// EvalService contains the live evaluation use cases.
type EvalService struct {
	sessions    SessionRepository
	rubrics     RubricRepository
	presenters  PresenterRepository
	evaluations EvaluationRepository
}

func NewEvalService(sessions SessionRepository, rubrics RubricRepository, presenters PresenterRepository, evaluations EvaluationRepository) *EvalService {
	return &EvalService{
		sessions:    sessions,
		rubrics:     rubrics,
		presenters:  presenters,
		evaluations: evaluations,
	}
}

// Join registers or refreshes an evaluator in a session, creating the session
// from the current rubric and roster if it does not exist yet. The rubric is
// snapshotted once per session; admin edits apply to later sessions only.
func (s *EvalService) Join(ctx context.Context, sessionID, evaluatorID, displayName string) (domain.Scoreboard, error) {
	rubric, err := s.rubrics.GetRubric(ctx)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	presenters, err := s.presenters.ListPresenters(ctx)
	if err != nil {
		return domain.Scoreboard{}, err
	}

	session := s.sessions.GetOrCreate(sessionID, func() *Session {
		return NewSession(sessionID, rubric, presenters)
	})
	return session.join(evaluatorID, displayName), nil
}

// SetRating replaces exactly one level in the addressed criterion's rating
// and returns the recomputed scoreboard. Levels outside 0..4 are rejected
// before anything is touched.
func (s *EvalService) SetRating(_ context.Context, sessionID, critID, entity string, level domain.Level) (domain.Scoreboard, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Scoreboard{}, domain.ErrSessionNotFound
	}
	return session.setRating(critID, entity, level)
}

// Submit derives the evaluation record from the session's current sheet and
// persists it. Local state is only reset after a successful insert; a failed
// write surfaces the error and leaves the sheet intact so the evaluator can
// retry.
func (s *EvalService) Submit(ctx context.Context, sessionID string) (domain.EvaluationRecord, domain.Scoreboard, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.EvaluationRecord{}, domain.Scoreboard{}, domain.ErrSessionNotFound
	}

	rec := session.buildRecord()
	if err := s.evaluations.InsertEvaluation(ctx, &rec); err != nil {
		return domain.EvaluationRecord{}, domain.Scoreboard{}, err
	}
	board := session.resetSheet()
	return rec, board, nil
}

// Subscribe returns a channel that receives scoreboard updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *EvalService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Scoreboard, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Stats aggregates every stored evaluation for the dashboard.
func (s *EvalService) Stats(ctx context.Context) ([]scoring.PresenterAverage, []scoring.HistoryEntry, scoring.Summary, error) {
	evals, err := s.evaluations.ListEvaluations(ctx)
	if err != nil {
		return nil, nil, scoring.Summary{}, err
	}
	presenters, err := s.presenters.ListPresenters(ctx)
	if err != nil {
		return nil, nil, scoring.Summary{}, err
	}
	return scoring.Averages(evals, presenters), scoring.History(evals, presenters), scoring.Summarize(evals, presenters), nil
}

// Leave removes an evaluator from the session and drops the session if empty.
func (s *EvalService) Leave(_ context.Context, sessionID, evaluatorID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.leave(evaluatorID)
	if session.IsEmpty() {
		s.sessions.DeleteIfEmpty(sessionID)
	}
}

// Session is the in-memory state of one live evaluation: a rubric snapshot,
// the roster, and the rating sheet being filled in. The sheet is created
// fresh at session start and discarded once a record has been derived.
type Session struct {
	id         string
	rubric     domain.Rubric
	presenters []domain.Presenter
	now        func() time.Time

	mu          sync.RWMutex
	sheet       domain.RatingSheet
	evaluators  map[string]string
	subscribers map[chan domain.Scoreboard]struct{}
}

func NewSession(id string, rubric domain.Rubric, presenters []domain.Presenter) *Session {
	return NewSessionWithClock(id, rubric, presenters, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, rubric domain.Rubric, presenters []domain.Presenter, now func() time.Time) *Session {
	snapshot := rubric.Clone()
	return &Session{
		id:          id,
		rubric:      snapshot,
		presenters:  presenters,
		now:         now,
		sheet:       domain.NewRatingSheet(snapshot, presenters),
		evaluators:  make(map[string]string),
		subscribers: make(map[chan domain.Scoreboard]struct{}),
	}
}

func (s *Session) join(evaluatorID, displayName string) domain.Scoreboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluators[evaluatorID] = displayName
	return s.snapshotLocked()
}

func (s *Session) setRating(critID, entity string, level domain.Level) (domain.Scoreboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sheet.Set(critID, entity, level); err != nil {
		return domain.Scoreboard{}, err
	}
	return s.broadcastLocked(), nil
}

func (s *Session) buildRecord() domain.EvaluationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scoring.Record(s.rubric, s.sheet, s.presenters)
}

// resetSheet discards the collected ratings after a submit and broadcasts the
// zeroed scoreboard.
func (s *Session) resetSheet() domain.Scoreboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheet = domain.NewRatingSheet(s.rubric, s.presenters)
	return s.broadcastLocked()
}

func (s *Session) leave(evaluatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.evaluators, evaluatorID)
}

// IsEmpty reports whether the session has no evaluators.
func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.evaluators) == 0
}

func (s *Session) subscribe() (<-chan domain.Scoreboard, func()) {
	ch := make(chan domain.Scoreboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Scoreboard {
	board := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- board:
		default:
			// Drop the stale frame so a slow client never blocks the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
	return board
}

func (s *Session) snapshotLocked() domain.Scoreboard {
	card := scoring.Compute(s.rubric, s.sheet, s.presenters)
	return domain.Scoreboard{
		SessionID: s.id,
		Entries:   scoring.Scoreboard(card, s.presenters),
		UpdatedAt: s.now(),
	}
}
