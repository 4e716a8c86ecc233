package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finivesta/quizd/internal/bank"
	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
	"github.com/finivesta/quizd/internal/leaderboard"
	"github.com/finivesta/quizd/internal/telemetry"
)

// LatePolicy decides what happens to a submission arriving after the
// session deadline.
type LatePolicy string

const (
	// LateClamp accepts late submissions but clamps timeTakenMs to the
	// full duration, so a slow final round trip cannot cost the player
	// their only submission while lateness is never rewarded.
	LateClamp LatePolicy = "clamp"
	// LateReject turns late submissions away outright.
	LateReject LatePolicy = "reject"
)

// Store abstracts where session records live (memory, Postgres).
type Store interface {
	InsertSession(ctx context.Context, ss *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// MarkSubmitted atomically flips the submitted flag and records the
	// result. It returns errors.CodeAlreadyExists when the flag was
	// already set, which is how concurrent duplicate submissions lose.
	MarkSubmitted(ctx context.Context, id string, score int, timeTakenMs int64, submittedAt time.Time) (*domain.Session, error)
}

type Config struct {
	Bank        *bank.Service
	Store       Store
	Leaderboard *leaderboard.Service
	LatePolicy  LatePolicy
	// NowFunc is test-only, defaults to time.Now.
	NowFunc func() time.Time
}

// Service is the quiz engine: it issues sessions, freezes question
// snapshots and deadlines, and enforces exactly-once submission.
type Service struct {
	bank  *bank.Service
	store Store
	lb    *leaderboard.Service
	late  LatePolicy
	now   func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		bank:  c.Bank,
		store: c.Store,
		lb:    c.Leaderboard,
		late:  c.LatePolicy,
		now:   c.NowFunc,
	}
	if s.late == "" {
		s.late = LateClamp
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Now is the engine's clock. The API layer reports it as serverTime so
// clients can correct for their own clock offset.
func (s *Service) Now() time.Time {
	return s.now()
}

type StartSessionRequest struct {
	Name         string
	Email        string
	Organization string
}

// StartSession draws a fresh question set under the current quiz config
// and opens a new session with a fixed deadline.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*domain.Session, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("name must not be empty"))
	}

	cfg := s.bank.GetConfig()
	questions, err := s.bank.SampleQuestions(ctx, cfg.QuestionCount)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := s.now()
	ss := &domain.Session{
		SessionID: id.String(),
		Player: domain.Player{
			PlayerID:     uuid.NewString(),
			Name:         name,
			Email:        strings.TrimSpace(req.Email),
			Organization: strings.TrimSpace(req.Organization),
		},
		Questions:  questions,
		StartedAt:  now,
		ExpiresAt:  now.Add(time.Duration(cfg.DurationMs) * time.Millisecond),
		DurationMs: cfg.DurationMs,
	}

	if err := s.store.InsertSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	telemetry.SessionsStarted.Inc()
	return ss, nil
}

// GetSession returns a running session unchanged. A submitted session is
// reported as errors.CodeAlreadyExists so the caller can redirect to the
// results instead of replaying the quiz.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	ss, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if ss.Submitted {
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("session already submitted: %s", id))
	}

	return ss, nil
}

type SubmitSessionRequest struct {
	SessionID string
	Answers   []domain.Answer
}

// SubmitSession scores the answers against the canonical answer key,
// transitions the session to submitted exactly once, and records the
// result on the leaderboard before returning.
func (s *Service) SubmitSession(ctx context.Context, req SubmitSessionRequest) (*domain.SubmitResult, error) {
	ss, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if ss.Submitted {
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("session already submitted: %s", req.SessionID))
	}

	now := s.now()
	if s.late == LateReject && now.After(ss.ExpiresAt) {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session expired at %d", ss.ExpiresAt.UnixMilli()))
	}

	score, err := s.scoreAnswers(ctx, ss, req.Answers)
	if err != nil {
		return nil, err
	}

	timeTaken := now.Sub(ss.StartedAt).Milliseconds()
	if timeTaken > ss.DurationMs {
		timeTaken = ss.DurationMs
	}
	if timeTaken < 0 {
		timeTaken = 0
	}

	ss, err = s.store.MarkSubmitted(ctx, req.SessionID, score, timeTaken, now)
	if err != nil {
		return nil, err
	}

	// The entry must be on the board before the caller gets its result,
	// so a client polling right after submitting sees itself ranked.
	if err := s.lb.RecordSubmission(ctx, ss); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	telemetry.SessionsSubmitted.Inc()
	telemetry.SubmissionScores.Observe(float64(score))

	return &domain.SubmitResult{
		Score:          score,
		TotalQuestions: len(ss.Questions),
		TimeTakenMs:    timeTaken,
	}, nil
}

// scoreAnswers counts answers matching the canonical correct index.
// Answers are matched to the frozen snapshot by question id; unknown ids
// are ignored and missing ones count as unanswered.
func (s *Service) scoreAnswers(ctx context.Context, ss *domain.Session, answers []domain.Answer) (int, error) {
	ids := make([]string, 0, len(ss.Questions))
	for _, q := range ss.Questions {
		ids = append(ids, q.QuestionID)
	}

	key, err := s.bank.AnswerKey(ctx, ids)
	if err != nil {
		return 0, err
	}

	chosen := make(map[string]int, len(answers))
	for _, a := range answers {
		chosen[a.QuestionID] = a.OptionIndex
	}

	score := 0
	for _, q := range ss.Questions {
		correct, ok := key[q.QuestionID]
		if !ok {
			// The canonical record is gone; nothing to score against.
			continue
		}
		if idx, ok := chosen[q.QuestionID]; ok && idx == correct {
			score++
		}
	}

	return score, nil
}
