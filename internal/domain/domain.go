package domain

import (
	"time"
)

// Question is the canonical question record, including the answer key.
// Only the admin surface ever sees the full record.
type Question struct {
	QuestionID   string
	Prompt       string
	Options      []string
	CorrectIndex int
	Category     string
	Difficulty   string
	CreatedAt    time.Time
}

// QuestionSnapshot is the client-visible copy of a question bound to a
// session at start time. The correct index is stripped.
type QuestionSnapshot struct {
	QuestionID string
	Prompt     string
	Options    []string
	Category   string
}

// QuizConfig controls how a new session is built. It is read once at
// session start and copied into the session; later changes never affect
// sessions already running.
type QuizConfig struct {
	QuestionCount int
	DurationMs    int64
}

// Player identifies one quiz participant. Name is required, the rest is
// optional contact info.
type Player struct {
	PlayerID     string
	Name         string
	Email        string
	Organization string
}

// Session is one participant's single attempt at the quiz.
type Session struct {
	SessionID   string
	Player      Player
	Questions   []QuestionSnapshot
	StartedAt   time.Time
	ExpiresAt   time.Time
	DurationMs  int64
	Submitted   bool
	SubmittedAt time.Time
	Score       int
	TimeTakenMs int64
}

// Answer is one (question, chosen option) pair in a submission.
// OptionIndex -1 means the question was left unanswered.
type Answer struct {
	QuestionID  string
	OptionIndex int
}

// SubmitResult is what a participant gets back after submitting.
type SubmitResult struct {
	Score          int
	TotalQuestions int
	TimeTakenMs    int64
}

// LeaderboardEntry is the ranking projection of one submitted session.
// Seq is the submission order, used as the final tie-breaker.
type LeaderboardEntry struct {
	SessionID      string
	PlayerName     string
	Score          int
	TotalQuestions int
	TimeTakenMs    int64
	Seq            int64
}

// Leaderboard is the ordered scoreboard: score descending, then
// timeTakenMs ascending, then submission order.
type Leaderboard struct {
	Entries   []LeaderboardEntry
	UpdatedAt time.Time
}
