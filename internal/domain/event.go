package domain

const (
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
