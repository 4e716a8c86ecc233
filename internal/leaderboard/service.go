package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/event"
)

const defaultLimit = 20

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Limit is the top-N size pushed to subscribers and served when the
	// caller does not ask for a specific limit.
	Limit int
}

// Service maintains the ranking of submitted sessions in Redis and
// pushes the recomputed top-N to subscribers on every change.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	limit  int

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewService(c Config) *Service {
	limit := c.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	return &Service{
		eb:          c.EventBus,
		redis:       c.Redis,
		prefix:      c.Prefix,
		limit:       limit,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// entry is the stored projection of one submitted session.
type entry struct {
	SessionID      string `json:"sessionId"`
	PlayerName     string `json:"playerName"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeTakenMs    int64  `json:"timeTakenMs"`
	Seq            int64  `json:"seq"`
}

// RecordSubmission upserts the session's leaderboard entry keyed by
// sessionId. Re-recording the same session is a no-op, so a defensive
// re-invocation never moves or duplicates the entry.
func (s *Service) RecordSubmission(ctx context.Context, ss *domain.Session) error {
	exists, err := s.redis.HExists(ctx, s.entriesKey(), ss.SessionID).Result()
	if err != nil {
		return fmt.Errorf("check entry: %w", err)
	}
	if exists {
		return nil
	}

	seq, err := s.redis.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next submission seq: %w", err)
	}

	b, err := json.Marshal(entry{
		SessionID:      ss.SessionID,
		PlayerName:     ss.Player.Name,
		Score:          ss.Score,
		TotalQuestions: len(ss.Questions),
		TimeTakenMs:    ss.TimeTakenMs,
		Seq:            seq,
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := s.redis.HSet(ctx, s.entriesKey(), ss.SessionID, b).Err(); err != nil {
		return fmt.Errorf("store entry: %w", err)
	}

	return s.publish(ctx)
}

type GetLeaderboardRequest struct {
	Limit int
}

// GetLeaderboard returns the top entries sorted by score descending,
// ties broken by timeTakenMs ascending, then by submission order. An
// empty board yields an empty list, not an error.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.limit
	}

	raw, err := s.redis.HGetAll(ctx, s.entriesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raw))
	for _, v := range raw {
		var e entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, domain.LeaderboardEntry{
			SessionID:      e.SessionID,
			PlayerName:     e.PlayerName,
			Score:          e.Score,
			TotalQuestions: e.TotalQuestions,
			TimeTakenMs:    e.TimeTakenMs,
			Seq:            e.Seq,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TimeTakenMs != entries[j].TimeTakenMs {
			return entries[i].TimeTakenMs < entries[j].TimeTakenMs
		}
		return entries[i].Seq < entries[j].Seq
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return &domain.Leaderboard{
		Entries:   entries,
		UpdatedAt: time.Now(),
	}, nil
}

// Subscribe registers a listener that receives the full recomputed
// top-N on every ranking change, starting with the current board. The
// cancel func must be called to stop delivery.
func (s *Service) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	board, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	ch <- *board

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}

	return ch, cancel, nil
}

func (s *Service) publish(ctx context.Context) error {
	board, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return fmt.Errorf("recompute board: %w", err)
	}

	s.mu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- *board:
		default:
			// Slow subscriber: drop its stale update, keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- *board
		}
	}
	s.mu.Unlock()

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *board,
	})

	return nil
}

func (s *Service) entriesKey() string {
	return fmt.Sprintf("%s:leaderboard:entries", s.prefix)
}

func (s *Service) seqKey() string {
	return fmt.Sprintf("%s:leaderboard:seq", s.prefix)
}
