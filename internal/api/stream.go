package api

import (
	"github.com/gin-gonic/gin"
)

// streamLeaderboard pushes the full top-N board over SSE: the current
// board immediately on connect, then again on every ranking change.
// Delivery is best-effort; a disconnected client just ends the stream.
func (a *API) streamLeaderboard(c *gin.Context) {
	ch, cancel, err := a.ls.Subscribe(c.Request.Context())
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case board, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("message", toLeaderboardPayload(board))
			c.Writer.Flush()
		}
	}
}
