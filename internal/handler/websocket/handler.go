package websocket

import (
	"net/http"

	"collab-whiteboard/internal/hub"
	"collab-whiteboard/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigins 为空或包含 "*" 时允许所有来源。
func NewWebSocketHandler(hub *hub.Hub, allowedOrigins []string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
		},
	}

	return &WebSocketHandler{upgrader: upgrader, hub: hub}
}

// HandleConnection 处理 WebSocket 连接请求，URL 预期格式: /ws?ticket=...
// 票据由 RoomTicket 中间件校验，授权的房间号作为连接的 grant。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	grant := c.GetString(middleware.TicketRoomKey)
	logCtx := logrus.WithFields(logrus.Fields{"room_grant": grant, "client_ip": c.ClientIP()})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 会自动写入 HTTP 错误响应
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, grant)
	if err := client.Run(); err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to register client")
		return
	}
	logCtx.WithField("conn_id", client.ID()).Info("WS Handler: Connection upgraded and client started")
}
