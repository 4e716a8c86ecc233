package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finivesta/quizd/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated mirrors each ranking change onto a Redis
// channel, so instances other than the one that scored the submission
// can feed their own stream subscribers.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	n := Notification{
		Event: e.Name(),
		Data:  toLeaderboardPayload(e.Leaderboard),
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:leaderboard", a.prefix), b).Err()
}
