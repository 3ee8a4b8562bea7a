package http

import (
	"net/http"

	"collab-whiteboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装了房间凭证相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// RoomCredentials 是创建和加入房间的请求体
type RoomCredentials struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体
type CreateRoomResponse struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
	Ticket  string `json:"ticket"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req RoomCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidInput.Error())
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.RoomID, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{
		Message: "Room created successfully",
		RoomID:  room.RoomID,
	})
}

// JoinRoom 校验房间密码并返回房间票据，票据用于建立 WebSocket 连接
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req RoomCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidInput.Error())
		return
	}

	room, ticket, err := h.roomService.JoinRoom(c.Request.Context(), req.RoomID, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Message: "Joined room successfully",
		RoomID:  room.RoomID,
		Ticket:  ticket,
	})
}
