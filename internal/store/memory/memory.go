// Package memory provides in-process store implementations, used when
// Postgres is not configured and in unit tests.
package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
)

type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	order     []string
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		questions: make(map[string]domain.Question),
	}
}

func (s *QuestionStore) InsertQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[q.QuestionID]; !ok {
		s.order = append(s.order, q.QuestionID)
	}
	s.questions[q.QuestionID] = q
	return nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: %s", id))
	}

	delete(s.questions, id)
	for i, qid := range s.order {
		if qid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *QuestionStore) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qs := make([]domain.Question, 0, len(s.order))
	for _, id := range s.order {
		qs = append(qs, s.questions[id])
	}
	return qs, nil
}

func (s *QuestionStore) SampleQuestions(_ context.Context, n int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.questions) < n {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("question bank has %d questions, need %d", len(s.questions), n))
	}

	perm := rand.Perm(len(s.order))
	qs := make([]domain.Question, 0, n)
	for _, i := range perm[:n] {
		qs = append(qs, s.questions[s.order[i]])
	}
	return qs, nil
}

func (s *QuestionStore) QuestionsByID(_ context.Context, ids []string) (map[string]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qs := make(map[string]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			qs[id] = q
		}
	}
	return qs, nil
}

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *SessionStore) InsertSession(_ context.Context, ss *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ss
	s.sessions[ss.SessionID] = &cp
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", id))
	}

	cp := *ss
	return &cp, nil
}

// MarkSubmitted is the single mutation path for a session: an atomic
// check-and-set on the submitted flag. Losers of a concurrent race get
// errors.CodeAlreadyExists, never a second scoring.
func (s *SessionStore) MarkSubmitted(_ context.Context, id string, score int, timeTakenMs int64, submittedAt time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", id))
	}
	if ss.Submitted {
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("session already submitted: %s", id))
	}

	ss.Submitted = true
	ss.SubmittedAt = submittedAt
	ss.Score = score
	ss.TimeTakenMs = timeTakenMs

	cp := *ss
	return &cp, nil
}
