package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	id    string // 服务端分配的连接 ID，也是房间内的 userId
	grant string // 房间票据授权的房间，空表示没有票据

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient 创建一个新的 Client 实例，grant 为票据中的房间号（可为空）。
func NewClient(hub *Hub, conn *websocket.Conn, grant string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		id:    uuid.NewString(),
		grant: grant,
		send:  make(chan []byte, hub.cfg.SendBuffer),
	}
}

// Run 注册客户端并启动读写 goroutine。注册失败时关闭连接。
func (c *Client) Run() error {
	if err := c.hub.attach(c); err != nil {
		logrus.WithField("conn_id", c.id).WithError(err).Warn("Client rejected by Hub")
		c.conn.Close()
		return err
	}
	go c.WritePump()
	go c.ReadPump()
	return nil
}

// enqueue 非阻塞地放入发送队列，队列满或已关闭时返回 false。
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送队列，WritePump 随后发送关闭帧并退出。可重复调用。
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 按顺序把帧交给 Router，保证同一连接的事件先后有序。
func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	logCtx := logrus.WithField("conn_id", c.id)
	defer func() {
		cancel()
		c.hub.detach(c)
		c.conn.Close()
		logCtx.Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}

		in, err := DecodeInbound(message)
		if err != nil {
			logCtx.WithError(err).Debug("Failed to decode client frame")
			c.hub.router.Fail(c.id, err)
			continue
		}
		c.hub.router.Handle(ctx, c.id, in)
	}
}

// WritePump 将发送队列中的帧写入 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	logCtx := logrus.WithField("conn_id", c.id)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) ID() string    { return c.id }
func (c *Client) Grant() string { return c.grant }
func (c *Client) CloseConn()    { c.conn.Close() }
