package bank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
)

const optionsPerQuestion = 4

// Store abstracts where question records live (memory, Postgres).
type Store interface {
	InsertQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	// SampleQuestions returns n distinct questions chosen uniformly at
	// random, or errors.CodeFailedPrecondition when fewer than n exist.
	SampleQuestions(ctx context.Context, n int) ([]domain.Question, error)
	// QuestionsByID returns the canonical records for the given ids.
	// Missing ids are simply absent from the result.
	QuestionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

type Config struct {
	Store Store
	// Initial quiz configuration, replaced at runtime via SetConfig.
	Quiz domain.QuizConfig
}

// Service owns the question bank and the process-wide quiz configuration.
type Service struct {
	store Store

	mu   sync.RWMutex
	quiz domain.QuizConfig
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		quiz:  c.Quiz,
	}
}

type CreateQuestionRequest struct {
	Prompt       string
	Options      []string
	CorrectIndex int
	Category     string
	Difficulty   string
}

// CreateQuestion validates and stores a new question, returning the
// stored record with its generated id.
func (s *Service) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*domain.Question, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("prompt must not be empty"))
	}
	if len(req.Options) != optionsPerQuestion {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("expected %d options, got %d", optionsPerQuestion, len(req.Options)))
	}
	for i, o := range req.Options {
		if strings.TrimSpace(o) == "" {
			return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("option %d must not be empty", i+1))
		}
	}
	if req.CorrectIndex < 0 || req.CorrectIndex >= optionsPerQuestion {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correctIndex must be in [0, %d]", optionsPerQuestion-1))
	}

	q := domain.Question{
		QuestionID:   uuid.NewString(),
		Prompt:       strings.TrimSpace(req.Prompt),
		Options:      req.Options,
		CorrectIndex: req.CorrectIndex,
		Category:     strings.TrimSpace(req.Category),
		Difficulty:   strings.TrimSpace(req.Difficulty),
		CreatedAt:    time.Now(),
	}

	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	return &q, nil
}

// DeleteQuestion removes a question by id. Sessions started earlier keep
// their snapshots, so deletion never dangles.
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	return s.store.DeleteQuestion(ctx, id)
}

// ListQuestions returns all questions including answer keys. Admin view only.
func (s *Service) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx)
}

// SampleQuestions draws n distinct questions and strips the answer key
// from each, producing the snapshots a session is built from.
func (s *Service) SampleQuestions(ctx context.Context, n int) ([]domain.QuestionSnapshot, error) {
	qs, err := s.store.SampleQuestions(ctx, n)
	if err != nil {
		return nil, err
	}

	snaps := make([]domain.QuestionSnapshot, 0, len(qs))
	for _, q := range qs {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		snaps = append(snaps, domain.QuestionSnapshot{
			QuestionID: q.QuestionID,
			Prompt:     q.Prompt,
			Options:    opts,
			Category:   q.Category,
		})
	}

	return snaps, nil
}

// AnswerKey returns questionID -> correctIndex for the given ids, looked
// up from the canonical records. Ids no longer in the bank are absent.
func (s *Service) AnswerKey(ctx context.Context, ids []string) (map[string]int, error) {
	qs, err := s.store.QuestionsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	key := make(map[string]int, len(qs))
	for id, q := range qs {
		key[id] = q.CorrectIndex
	}

	return key, nil
}

// GetConfig returns the current quiz configuration.
func (s *Service) GetConfig() domain.QuizConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quiz
}

// SetConfig replaces the process-wide quiz configuration. Running
// sessions are unaffected: the config was copied into them at start.
func (s *Service) SetConfig(cfg domain.QuizConfig) error {
	if cfg.QuestionCount <= 0 {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("questionCount must be positive"))
	}
	if cfg.DurationMs <= 0 {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("durationMs must be positive"))
	}

	s.mu.Lock()
	s.quiz = cfg
	s.mu.Unlock()
	return nil
}
