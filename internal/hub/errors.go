package hub

import "errors"

// 连接生命周期错误
var (
	ErrDuplicateConnection = errors.New("hub: duplicate connection id")
	ErrUnknownConnection   = errors.New("hub: unknown connection")
)

// 路由错误，Reason 会原样发给发送者
var (
	ErrNotInRoom        = errors.New("join a room first")
	ErrRoomMismatch     = errors.New("event targets a room this connection has not joined")
	ErrRoomGone         = errors.New("room is no longer active")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMissingRoomID    = errors.New("roomId is required")
	ErrNotAuthorized    = errors.New("not authorized for this room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomCheckFailed  = errors.New("unable to verify room")
	ErrPersistFailed    = errors.New("failed to save canvas")
)
