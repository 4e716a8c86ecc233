// Package postgres implements the question and session stores on
// Postgres via pgx.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	question_id   uuid PRIMARY KEY,
	prompt        text NOT NULL,
	options       jsonb NOT NULL,
	correct_index int NOT NULL,
	category      text NOT NULL DEFAULT '',
	difficulty    text NOT NULL DEFAULT '',
	created_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id    uuid PRIMARY KEY,
	player        jsonb NOT NULL,
	questions     jsonb NOT NULL,
	started_at    timestamptz NOT NULL,
	expires_at    timestamptz NOT NULL,
	duration_ms   bigint NOT NULL,
	submitted     boolean NOT NULL DEFAULT FALSE,
	submitted_at  timestamptz,
	score         int NOT NULL DEFAULT 0,
	time_taken_ms bigint NOT NULL DEFAULT 0
);`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type QuestionStore struct {
	db *pgxpool.Pool
}

func NewQuestionStore(db *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) InsertQuestion(ctx context.Context, q domain.Question) error {
	const stmt = `
INSERT INTO questions (question_id, prompt, options, correct_index, category, difficulty, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = s.db.Exec(ctx, stmt, q.QuestionID, q.Prompt, opts, q.CorrectIndex, q.Category, q.Difficulty, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	return nil
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	const stmt = `DELETE FROM questions WHERE question_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: %s", id))
	}

	return nil
}

func (s *QuestionStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, prompt, options, correct_index, category, difficulty, created_at
FROM questions
ORDER BY created_at;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return pgx.CollectRows(rows, scanQuestion)
}

func (s *QuestionStore) SampleQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, prompt, options, correct_index, category, difficulty, created_at
FROM questions
ORDER BY random()
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, err
	}

	if len(qs) < n {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("question bank has %d questions, need %d", len(qs), n))
	}

	return qs, nil
}

func (s *QuestionStore) QuestionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	const stmt = `
SELECT question_id, prompt, options, correct_index, category, difficulty, created_at
FROM questions
WHERE question_id = ANY($1::uuid[]);`

	rows, err := s.db.Query(ctx, stmt, ids)
	if err != nil {
		return nil, fmt.Errorf("questions by id: %w", err)
	}

	qs, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, err
	}

	m := make(map[string]domain.Question, len(qs))
	for _, q := range qs {
		m[q.QuestionID] = q
	}

	return m, nil
}

func scanQuestion(r pgx.CollectableRow) (domain.Question, error) {
	var (
		q    domain.Question
		opts []byte
	)
	if err := r.Scan(&q.QuestionID, &q.Prompt, &opts, &q.CorrectIndex, &q.Category, &q.Difficulty, &q.CreatedAt); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(opts, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return q, nil
}

type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) InsertSession(ctx context.Context, ss *domain.Session) error {
	const stmt = `
INSERT INTO sessions (session_id, player, questions, started_at, expires_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6);`

	player, err := json.Marshal(ss.Player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	questions, err := json.Marshal(ss.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = s.db.Exec(ctx, stmt, ss.SessionID, player, questions, ss.StartedAt, ss.ExpiresAt, ss.DurationMs)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const stmt = `
SELECT session_id, player, questions, started_at, expires_at, duration_ms, submitted, submitted_at, score, time_taken_ms
FROM sessions
WHERE session_id = $1;`

	ss, err := scanSession(s.db.QueryRow(ctx, stmt, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return ss, nil
}

// MarkSubmitted transitions a session to submitted with a conditional
// UPDATE, so exactly one concurrent submission can win.
func (s *SessionStore) MarkSubmitted(ctx context.Context, id string, score int, timeTakenMs int64, submittedAt time.Time) (*domain.Session, error) {
	const stmt = `
UPDATE sessions
SET submitted = TRUE, submitted_at = $2, score = $3, time_taken_ms = $4
WHERE session_id = $1 AND submitted = FALSE
RETURNING session_id, player, questions, started_at, expires_at, duration_ms, submitted, submitted_at, score, time_taken_ms;`

	ss, err := scanSession(s.db.QueryRow(ctx, stmt, id, submittedAt, score, timeTakenMs))
	if stderrors.Is(err, pgx.ErrNoRows) {
		// Either unknown or already submitted; look again to tell the two apart.
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("session already submitted: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}

	return ss, nil
}

func scanSession(r pgx.Row) (*domain.Session, error) {
	var (
		ss          domain.Session
		player      []byte
		questions   []byte
		submittedAt *time.Time
	)
	err := r.Scan(&ss.SessionID, &player, &questions, &ss.StartedAt, &ss.ExpiresAt, &ss.DurationMs,
		&ss.Submitted, &submittedAt, &ss.Score, &ss.TimeTakenMs)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(player, &ss.Player); err != nil {
		return nil, fmt.Errorf("unmarshal player: %w", err)
	}
	if err := json.Unmarshal(questions, &ss.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if submittedAt != nil {
		ss.SubmittedAt = *submittedAt
	}

	return &ss, nil
}
