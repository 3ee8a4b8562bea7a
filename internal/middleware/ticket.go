package middleware

import (
	"errors"
	"net/http"
	"strings"

	"collab-whiteboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// TicketRoomKey 是票据校验通过后房间号在 gin.Context 中的 key
const TicketRoomKey = "room_id"

// RoomTicket 返回一个 Gin 中间件，用于校验房间票据。
// 票据从 ?ticket= 或 Authorization: Bearer 头读取；required 为 false 时允许没有票据的请求通过。
func RoomTicket(secret string, required bool) gin.HandlerFunc {
	if secret == "" {
		panic("ticket secret cannot be empty for RoomTicket middleware")
	}
	key := []byte(secret)

	return func(c *gin.Context) {
		ticket := extractTicket(c)
		if ticket == "" {
			if required {
				logrus.Warn("RoomTicket middleware: Missing room ticket")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "room ticket is required"})
				return
			}
			c.Next()
			return
		}

		roomID, err := service.ParseTicket(ticket, key)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("RoomTicket middleware: Invalid ticket")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Ticket is expired")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidTicket.Error()})
			return
		}

		c.Set(TicketRoomKey, roomID)
		logrus.WithField("room_id", roomID).Debug("RoomTicket middleware: Ticket accepted")
		c.Next()
	}
}

// extractTicket 优先读取查询参数，浏览器的 WebSocket API 无法设置请求头
func extractTicket(c *gin.Context) string {
	if t := c.Query("ticket"); t != "" {
		return t
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
