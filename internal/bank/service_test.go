package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finivesta/quizd/internal/bank"
	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
	"github.com/finivesta/quizd/internal/store/memory"
)

func makeService(t *testing.T) *bank.Service {
	t.Helper()

	return bank.NewService(bank.Config{
		Store: memory.NewQuestionStore(),
		Quiz: domain.QuizConfig{
			QuestionCount: 8,
			DurationMs:    240000,
		},
	})
}

func validQuestion() bank.CreateQuestionRequest {
	return bank.CreateQuestionRequest{
		Prompt:       "What is the risk-free rate proxy?",
		Options:      []string{"T-bills", "Corporate bonds", "Equities", "Gold"},
		CorrectIndex: 0,
		Category:     "Finance",
		Difficulty:   "Medium",
	}
}

func TestService_CreateQuestion(t *testing.T) {
	tests := map[string]struct {
		arrange func() bank.CreateQuestionRequest
		assert  func(t *testing.T, q *domain.Question, err error)
	}{
		"should store a valid question and generate an id": {
			arrange: validQuestion,
			assert: func(t *testing.T, q *domain.Question, err error) {
				require.NoError(t, err)
				require.NotEmpty(t, q.QuestionID)
				require.Equal(t, "What is the risk-free rate proxy?", q.Prompt)
				require.Equal(t, 0, q.CorrectIndex)
			},
		},

		"should reject an empty prompt": {
			arrange: func() bank.CreateQuestionRequest {
				req := validQuestion()
				req.Prompt = "   "
				return req
			},
			assert: func(t *testing.T, _ *domain.Question, err error) {
				require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
			},
		},

		"should reject fewer than 4 options": {
			arrange: func() bank.CreateQuestionRequest {
				req := validQuestion()
				req.Options = req.Options[:3]
				return req
			},
			assert: func(t *testing.T, _ *domain.Question, err error) {
				require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
			},
		},

		"should reject an empty option": {
			arrange: func() bank.CreateQuestionRequest {
				req := validQuestion()
				req.Options[2] = ""
				return req
			},
			assert: func(t *testing.T, _ *domain.Question, err error) {
				require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
			},
		},

		"should reject a correct index out of range": {
			arrange: func() bank.CreateQuestionRequest {
				req := validQuestion()
				req.CorrectIndex = 4
				return req
			},
			assert: func(t *testing.T, _ *domain.Question, err error) {
				require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := makeService(t)
			q, err := s.CreateQuestion(context.Background(), tt.arrange())
			tt.assert(t, q, err)
		})
	}
}

func TestService_SampleQuestions(t *testing.T) {
	s := makeService(t)

	created := make(map[string]bool)
	for i := 0; i < 10; i++ {
		q, err := s.CreateQuestion(context.Background(), validQuestion())
		require.NoError(t, err)
		created[q.QuestionID] = true
	}

	snaps, err := s.SampleQuestions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, snaps, 5)

	seen := make(map[string]bool)
	for _, snap := range snaps {
		require.True(t, created[snap.QuestionID], "sampled question must come from the bank")
		require.False(t, seen[snap.QuestionID], "sampled questions must be distinct")
		seen[snap.QuestionID] = true
		require.Len(t, snap.Options, 4)
	}
}

func TestService_SampleQuestions_InsufficientData(t *testing.T) {
	s := makeService(t)

	_, err := s.CreateQuestion(context.Background(), validQuestion())
	require.NoError(t, err)

	_, err = s.SampleQuestions(context.Background(), 2)
	require.True(t, errors.IsCode(err, errors.CodeFailedPrecondition))
}

func TestService_DeleteQuestion(t *testing.T) {
	s := makeService(t)

	q, err := s.CreateQuestion(context.Background(), validQuestion())
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuestion(context.Background(), q.QuestionID))

	err = s.DeleteQuestion(context.Background(), q.QuestionID)
	require.True(t, errors.IsCode(err, errors.CodeNotFound))

	key, err := s.AnswerKey(context.Background(), []string{q.QuestionID})
	require.NoError(t, err)
	require.Empty(t, key, "deleted question must drop out of the answer key")
}

func TestService_Config(t *testing.T) {
	s := makeService(t)

	require.Equal(t, domain.QuizConfig{QuestionCount: 8, DurationMs: 240000}, s.GetConfig())

	err := s.SetConfig(domain.QuizConfig{QuestionCount: 0, DurationMs: 60000})
	require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	err = s.SetConfig(domain.QuizConfig{QuestionCount: 5, DurationMs: -1})
	require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	require.NoError(t, s.SetConfig(domain.QuizConfig{QuestionCount: 5, DurationMs: 60000}))
	require.Equal(t, domain.QuizConfig{QuestionCount: 5, DurationMs: 60000}, s.GetConfig())
}
