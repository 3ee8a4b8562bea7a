package hub

import (
	"encoding/json"
	"fmt"
	"strings"

	"collab-whiteboard/internal/domain"
)

// 客户端 -> 服务端
const (
	EventJoinRoom     = "join-room"
	EventDrawing      = "drawing"
	EventUpdateCanvas = "update-canvas"
	EventClearCanvas  = "clear-canvas"
	EventCursorMove   = "cursor-move"
	EventUndo         = "undo"
	EventRedo         = "redo"
)

// 服务端 -> 客户端
const (
	EventUserJoined    = "user-joined"
	EventUsersList     = "users-list"
	EventCanvasState   = "canvas-state"
	EventUserCount     = "user-count"
	EventCanvasUpdated = "canvas-updated"
	EventUserLeft      = "user-left"
	EventError         = "error"
)

// drawing 数据中的 type 标记
const (
	drawingTypeClear    = "clear"
	drawingTypeCanvas   = "canvas"
	drawingTypeSnapshot = "snapshot"
)

// Envelope 是 WebSocket 上传输的 JSON 帧。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound 是解码后的入站事件，按 Event 区分使用哪些字段。
type Inbound struct {
	Event    string
	RoomID   string
	Username string          // join-room
	Data     json.RawMessage // drawing
	Canvas   json.RawMessage // update-canvas
	X, Y     float64         // cursor-move
}

// Outbound 是一条扇出记录：发给哪个连接、什么事件、什么内容。
type Outbound struct {
	Target  string
	Event   string
	Payload any
}

type UserJoinedPayload struct {
	Username  string `json:"username"`
	UserID    string `json:"userId"`
	UserCount int    `json:"userCount"`
}

type UserLeftPayload struct {
	Username  string `json:"username"`
	UserID    string `json:"userId"`
	UserCount int    `json:"userCount"`
}

type UserCountPayload struct {
	Count int `json:"count"`
}

type CanvasStatePayload struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

type CanvasUpdatedPayload struct {
	CanvasData json.RawMessage `json:"canvasData"`
}

type ClearCanvasPayload struct {
	RoomID string `json:"roomId"`
}

type CursorMovePayload struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// SignalPayload 用于 undo/redo 这类不带内容的信号。
type SignalPayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// UsersListPayload 序列化为成员数组。
type UsersListPayload []domain.Presence

// Encode 把出站记录编码为 WebSocket 帧。
func (o Outbound) Encode() ([]byte, error) {
	data, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", o.Event, err)
	}
	return json.Marshal(Envelope{Event: o.Event, Data: data})
}

func errorTo(target string, err error) Outbound {
	return Outbound{Target: target, Event: EventError, Payload: ErrorPayload{Reason: err.Error()}}
}

// DecodeInbound 解析客户端发来的帧。
// clear-canvas/undo/redo 兼容直接发送房间号字符串的旧客户端。
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	in := Inbound{Event: env.Event}

	switch env.Event {
	case EventJoinRoom:
		var p struct {
			RoomID   string `json:"roomId"`
			Username string `json:"username"`
		}
		if err := unmarshalData(env.Data, &p); err != nil {
			return in, err
		}
		in.RoomID, in.Username = strings.TrimSpace(p.RoomID), strings.TrimSpace(p.Username)

	case EventDrawing:
		var p struct {
			RoomID string          `json:"roomId"`
			Data   json.RawMessage `json:"data"`
		}
		if err := unmarshalData(env.Data, &p); err != nil {
			return in, err
		}
		if len(p.Data) == 0 {
			return in, fmt.Errorf("%w: drawing data is required", ErrMalformedPayload)
		}
		in.RoomID, in.Data = p.RoomID, p.Data

	case EventUpdateCanvas:
		var p struct {
			RoomID     string          `json:"roomId"`
			CanvasData json.RawMessage `json:"canvasData"`
			Data       json.RawMessage `json:"data"`
		}
		if err := unmarshalData(env.Data, &p); err != nil {
			return in, err
		}
		in.RoomID, in.Canvas = p.RoomID, p.CanvasData
		if len(in.Canvas) == 0 {
			in.Canvas = p.Data
		}
		if len(in.Canvas) == 0 {
			return in, fmt.Errorf("%w: canvasData is required", ErrMalformedPayload)
		}

	case EventCursorMove:
		var p struct {
			RoomID string  `json:"roomId"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
		}
		if err := unmarshalData(env.Data, &p); err != nil {
			return in, err
		}
		in.RoomID, in.X, in.Y = p.RoomID, p.X, p.Y

	case EventClearCanvas, EventUndo, EventRedo:
		roomID, err := decodeRoomRef(env.Data)
		if err != nil {
			return in, err
		}
		in.RoomID = roomID

	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return in, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// decodeRoomRef 接受 {"roomId": "..."}、"..." 或空。
func decodeRoomRef(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p.RoomID, nil
}

// drawingKind 读取 drawing 数据的 type 标记；数据不是对象时按普通图元处理。
func drawingKind(data json.RawMessage) (kind string, canvas json.RawMessage) {
	var tag struct {
		Type   string          `json:"type"`
		Canvas json.RawMessage `json:"canvas"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return "", nil
	}
	return tag.Type, tag.Canvas
}
