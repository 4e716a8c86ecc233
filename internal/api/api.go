// Package api exposes the quiz engine over HTTP: the player-facing quiz
// contract, the leaderboard with its SSE stream, and the admin surface.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/finivesta/quizd/internal/bank"
	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
	"github.com/finivesta/quizd/internal/event"
	"github.com/finivesta/quizd/internal/leaderboard"
	"github.com/finivesta/quizd/internal/session"
)

const maxLeaderboardLimit = 100

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Bank         *bank.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qs *session.Service
	qb *bank.Service
	ls *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		qs:     c.Session,
		qb:     c.Bank,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	r := c.Router
	r.POST("/quiz/start", a.startQuiz)
	r.GET("/quiz/session/:id", a.getSession)
	r.POST("/quiz/submit", a.submitQuiz)
	r.GET("/leaderboard", a.getLeaderboard)
	r.GET("/leaderboard/stream", a.streamLeaderboard)

	// Access control for this surface is a deployment concern.
	admin := r.Group("/admin")
	admin.GET("/questions", a.listQuestions)
	admin.POST("/questions", a.createQuestion)
	admin.DELETE("/questions/:id", a.deleteQuestion)
	admin.GET("/config", a.getConfig)
	admin.PUT("/config", a.setConfig)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

type (
	startRequest struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Organization string `json:"organization"`
	}

	questionPayload struct {
		ID       string   `json:"id"`
		Prompt   string   `json:"prompt"`
		Options  []string `json:"options"`
		Category string   `json:"category"`
	}

	playerPayload struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	sessionPayload struct {
		SessionID  string            `json:"sessionId"`
		Questions  []questionPayload `json:"questions"`
		StartedAt  int64             `json:"startedAt"`
		ExpiresAt  int64             `json:"expiresAt"`
		DurationMs int64             `json:"durationMs"`
		ServerTime int64             `json:"serverTime"`
		Player     playerPayload     `json:"player"`
	}

	answerRequest struct {
		QuestionID string `json:"questionId"`
		// Pointer so an omitted index reads as unanswered, not option 0.
		OptionIndex *int `json:"optionIndex"`
	}

	submitRequest struct {
		SessionID string          `json:"sessionId"`
		Answers   []answerRequest `json:"answers"`
	}

	submitResponse struct {
		Score          int   `json:"score"`
		TotalQuestions int   `json:"totalQuestions"`
		TimeTakenMs    int64 `json:"timeTakenMs"`
	}
)

func (a *API) startQuiz(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	ss, err := a.qs.StartSession(c.Request.Context(), session.StartSessionRequest{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
	})
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, a.toSessionPayload(ss))
}

func (a *API) getSession(c *gin.Context) {
	ss, err := a.qs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, a.toSessionPayload(ss))
}

func (a *API) submitQuiz(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		idx := -1
		if ans.OptionIndex != nil {
			idx = *ans.OptionIndex
		}
		answers = append(answers, domain.Answer{
			QuestionID:  ans.QuestionID,
			OptionIndex: idx,
		})
	}

	res, err := a.qs.SubmitSession(c.Request.Context(), session.SubmitSessionRequest{
		SessionID: req.SessionID,
		Answers:   answers,
	})
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, submitResponse{
		Score:          res.Score,
		TotalQuestions: res.TotalQuestions,
		TimeTakenMs:    res.TimeTakenMs,
	})
}

type (
	leaderboardEntryPayload struct {
		SessionID      string `json:"sessionId"`
		PlayerName     string `json:"playerName"`
		Score          int    `json:"score"`
		TotalQuestions int    `json:"totalQuestions"`
		TimeTakenMs    int64  `json:"timeTakenMs"`
	}

	leaderboardPayload struct {
		Entries   []leaderboardEntryPayload `json:"entries"`
		UpdatedAt int64                     `json:"updatedAt"`
	}
)

func (a *API) getLeaderboard(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		a.abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid limit"), errors.WithCause(err)))
		return
	}
	if q.Limit > maxLeaderboardLimit {
		q.Limit = maxLeaderboardLimit
	}

	board, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Limit: q.Limit,
	})
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboardPayload(*board))
}

func (a *API) toSessionPayload(ss *domain.Session) sessionPayload {
	questions := make([]questionPayload, 0, len(ss.Questions))
	for _, q := range ss.Questions {
		questions = append(questions, questionPayload{
			ID:       q.QuestionID,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Category: q.Category,
		})
	}

	return sessionPayload{
		SessionID:  ss.SessionID,
		Questions:  questions,
		StartedAt:  ss.StartedAt.UnixMilli(),
		ExpiresAt:  ss.ExpiresAt.UnixMilli(),
		DurationMs: ss.DurationMs,
		ServerTime: a.qs.Now().UnixMilli(),
		Player: playerPayload{
			ID:   ss.Player.PlayerID,
			Name: ss.Player.Name,
		},
	}
}

func toLeaderboardPayload(board domain.Leaderboard) leaderboardPayload {
	entries := make([]leaderboardEntryPayload, 0, len(board.Entries))
	for _, e := range board.Entries {
		entries = append(entries, leaderboardEntryPayload{
			SessionID:      e.SessionID,
			PlayerName:     e.PlayerName,
			Score:          e.Score,
			TotalQuestions: e.TotalQuestions,
			TimeTakenMs:    e.TimeTakenMs,
		})
	}

	return leaderboardPayload{
		Entries:   entries,
		UpdatedAt: board.UpdatedAt.UnixMilli(),
	}
}

func (a *API) abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
