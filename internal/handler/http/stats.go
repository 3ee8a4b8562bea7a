package http

import (
	"net/http"

	"collab-whiteboard/internal/hub"

	"github.com/gin-gonic/gin"
)

// StatsProvider 提供实时核心的运行统计
type StatsProvider interface {
	Stats() hub.Stats
}

// StatsHandler 返回当前房间数和连接数
type StatsHandler struct {
	provider StatsProvider
}

func NewStatsHandler(provider StatsProvider) *StatsHandler {
	if provider == nil {
		panic("StatsProvider cannot be nil for StatsHandler")
	}
	return &StatsHandler{provider: provider}
}

func (h *StatsHandler) Get(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, h.provider.Stats())
}
