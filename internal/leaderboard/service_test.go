package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/event"
	"github.com/finivesta/quizd/internal/leaderboard"
)

func makeService(t *testing.T, limit int) (*leaderboard.Service, *event.Bus) {
	t.Helper()

	mr := miniredis.RunT(t)
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	s := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    r,
		Prefix:   "test",
		Limit:    limit,
	})

	return s, eb
}

func submittedSession(id, player string, score int, timeTakenMs int64) *domain.Session {
	return &domain.Session{
		SessionID: id,
		Player: domain.Player{
			PlayerID: "p-" + id,
			Name:     player,
		},
		Questions: []domain.QuestionSnapshot{
			{QuestionID: "q1"}, {QuestionID: "q2"}, {QuestionID: "q3"},
			{QuestionID: "q4"}, {QuestionID: "q5"}, {QuestionID: "q6"},
			{QuestionID: "q7"}, {QuestionID: "q8"},
		},
		Submitted:   true,
		SubmittedAt: time.Now(),
		Score:       score,
		TimeTakenMs: timeTakenMs,
	}
}

func TestService_GetLeaderboard_Empty(t *testing.T) {
	s, _ := makeService(t, 0)

	board, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)
	require.Empty(t, board.Entries)
}

func TestService_GetLeaderboard_Ordering(t *testing.T) {
	s, _ := makeService(t, 0)

	// Score dominates time: [5/10000, 5/8000, 3/1000] must rank as
	// [5/8000, 5/10000, 3/1000].
	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s1", "slow-ace", 5, 10000)))
	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s2", "fast-ace", 5, 8000)))
	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s3", "sprinter", 3, 1000)))

	board, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)

	require.Len(t, board.Entries, 3)
	require.Equal(t, "s2", board.Entries[0].SessionID)
	require.Equal(t, "s1", board.Entries[1].SessionID)
	require.Equal(t, "s3", board.Entries[2].SessionID)
}

func TestService_GetLeaderboard_TieBrokenBySubmissionOrder(t *testing.T) {
	s, _ := makeService(t, 0)

	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("first", "a", 4, 5000)))
	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("second", "b", 4, 5000)))

	board, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)

	require.Equal(t, "first", board.Entries[0].SessionID, "earlier submission wins an exact tie")
	require.Equal(t, "second", board.Entries[1].SessionID)
}

func TestService_GetLeaderboard_Limit(t *testing.T) {
	s, _ := makeService(t, 0)

	for i, id := range []string{"s1", "s2", "s3", "s4"} {
		require.NoError(t, s.RecordSubmission(context.Background(), submittedSession(id, "p", i, 1000)))
	}

	board, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	require.Equal(t, 3, board.Entries[0].Score)
	require.Equal(t, 2, board.Entries[1].Score)
}

func TestService_RecordSubmission_Idempotent(t *testing.T) {
	s, _ := makeService(t, 0)

	ss := submittedSession("s1", "alice", 5, 8000)
	require.NoError(t, s.RecordSubmission(context.Background(), ss))
	require.NoError(t, s.RecordSubmission(context.Background(), ss))

	board, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{})
	require.NoError(t, err)

	require.Len(t, board.Entries, 1)
	require.Equal(t, domain.LeaderboardEntry{
		SessionID:      "s1",
		PlayerName:     "alice",
		Score:          5,
		TotalQuestions: 8,
		TimeTakenMs:    8000,
		Seq:            1,
	}, board.Entries[0])
}

func TestService_Subscribe(t *testing.T) {
	s, _ := makeService(t, 0)

	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s1", "alice", 5, 8000)))

	ch, cancel, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	initial := <-ch
	require.Len(t, initial.Entries, 1, "subscriber gets the current board on connect")

	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s2", "bob", 7, 9000)))

	select {
	case update := <-ch:
		require.Len(t, update.Entries, 2)
		require.Equal(t, "s2", update.Entries[0].SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected a push after a ranking change")
	}

	cancel()
	_, open := <-ch
	require.False(t, open, "cancel closes the subscription")
}

func TestService_RecordSubmission_PublishesEvent(t *testing.T) {
	s, eb := makeService(t, 0)

	received := make(chan domain.EventLeaderboardUpdated, 1)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(_ context.Context, e event.Event) error {
		received <- e.(domain.EventLeaderboardUpdated)
		return nil
	})

	require.NoError(t, s.RecordSubmission(context.Background(), submittedSession("s1", "alice", 5, 8000)))

	select {
	case e := <-received:
		require.Len(t, e.Leaderboard.Entries, 1)
		require.Equal(t, "s1", e.Leaderboard.Entries[0].SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected leaderboard.updated on the bus")
	}
}
