package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finivesta/quizd/internal/bank"
	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/errors"
)

type (
	adminQuestionPayload struct {
		ID           string   `json:"id"`
		Prompt       string   `json:"prompt"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correctIndex"`
		Category     string   `json:"category"`
		Difficulty   string   `json:"difficulty,omitempty"`
		CreatedAt    int64    `json:"createdAt"`
	}

	configPayload struct {
		QuestionCount int   `json:"questionCount"`
		DurationMs    int64 `json:"durationMs"`
	}

	createQuestionRequest struct {
		Prompt       string   `json:"prompt"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correctIndex"`
		Category     string   `json:"category"`
		Difficulty   string   `json:"difficulty"`
	}
)

// listQuestions returns every question with its answer key, plus the
// current quiz config, matching what the admin panel renders.
func (a *API) listQuestions(c *gin.Context) {
	qs, err := a.qb.ListQuestions(c.Request.Context())
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	questions := make([]adminQuestionPayload, 0, len(qs))
	for _, q := range qs {
		questions = append(questions, toAdminQuestionPayload(q))
	}

	cfg := a.qb.GetConfig()
	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"config":    toConfigPayload(cfg),
	})
}

func (a *API) createQuestion(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	q, err := a.qb.CreateQuestion(c.Request.Context(), bank.CreateQuestionRequest{
		Prompt:       req.Prompt,
		Options:      req.Options,
		CorrectIndex: req.CorrectIndex,
		Category:     req.Category,
		Difficulty:   req.Difficulty,
	})
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAdminQuestionPayload(*q))
}

func (a *API) deleteQuestion(c *gin.Context) {
	if err := a.qb.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		a.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, toConfigPayload(a.qb.GetConfig()))
}

func (a *API) setConfig(c *gin.Context) {
	var req configPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	if err := a.qb.SetConfig(domain.QuizConfig{
		QuestionCount: req.QuestionCount,
		DurationMs:    req.DurationMs,
	}); err != nil {
		a.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConfigPayload(a.qb.GetConfig()))
}

func toAdminQuestionPayload(q domain.Question) adminQuestionPayload {
	return adminQuestionPayload{
		ID:           q.QuestionID,
		Prompt:       q.Prompt,
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		Category:     q.Category,
		Difficulty:   q.Difficulty,
		CreatedAt:    q.CreatedAt.UnixMilli(),
	}
}

func toConfigPayload(cfg domain.QuizConfig) configPayload {
	return configPayload{
		QuestionCount: cfg.QuestionCount,
		DurationMs:    cfg.DurationMs,
	}
}
