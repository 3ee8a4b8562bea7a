package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 整张画布的快照可能很大
	maxMessageSize = 8 << 20

	defaultSendBuffer = 256
)

// Config 控制 Hub 的准入策略。
type Config struct {
	// RequireTicket 为 true 时，没有房间票据的连接不能加入任何房间
	RequireTicket bool
	// VerifyRooms 为 true 时，加入前通过 Bridge 确认房间已创建
	VerifyRooms bool
	// SendBuffer 是每个客户端的发送队列长度
	SendBuffer int
}

// Stats 是 Hub 的运行时统计。
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Hub 持有所有客户端的传输端，并把 Router 算出的扇出写入对应客户端的发送队列。
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	registry *Registry
	store    *Store
	router   *Router
	bridge   Bridge
	cfg      Config
}

// NewHub 创建 Hub。bridge 可以为 nil（纯内存模式）。
func NewHub(bridge Bridge, cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.VerifyRooms && bridge == nil {
		panic("Bridge cannot be nil for Hub when VerifyRooms is set")
	}
	h := &Hub{
		clients:  make(map[string]*Client),
		registry: NewRegistry(),
		store:    NewStore(),
		bridge:   bridge,
		cfg:      cfg,
	}
	h.router = NewRouter(h.registry, h.store, bridge, h, h)
	return h
}

// attach 注册客户端，连接 ID 重复时返回错误。
func (h *Hub) attach(c *Client) error {
	h.clientsMu.Lock()
	if _, exists := h.clients[c.id]; exists {
		h.clientsMu.Unlock()
		return ErrDuplicateConnection
	}
	h.clients[c.id] = c
	h.clientsMu.Unlock()

	if err := h.router.Connect(c.id); err != nil {
		h.clientsMu.Lock()
		delete(h.clients, c.id)
		h.clientsMu.Unlock()
		return err
	}
	logrus.WithFields(logrus.Fields{"conn_id": c.id, "room_grant": c.grant}).Info("Client registered to Hub")
	return nil
}

// detach 执行断开清理：先让 Router 通知房间，再关闭发送队列。
func (h *Hub) detach(c *Client) {
	h.router.Disconnect(c.id)

	h.clientsMu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.clientsMu.Unlock()

	c.closeSend()
	logrus.WithField("conn_id", c.id).Info("Client unregistered from Hub")
}

func (h *Hub) client(id string) *Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[id]
}

// Deliver 实现 Sink：编码并放入目标客户端的发送队列，从不阻塞。
func (h *Hub) Deliver(out []Outbound) {
	for _, o := range out {
		c := h.client(o.Target)
		if c == nil {
			continue
		}
		frame, err := o.Encode()
		if err != nil {
			logrus.WithFields(logrus.Fields{"conn_id": o.Target, "event": o.Event}).WithError(err).Error("Hub: Failed to encode outbound event")
			continue
		}
		if !c.enqueue(frame) {
			// 队列满：关闭连接，由它自己的断开流程清理
			logrus.WithFields(logrus.Fields{"conn_id": o.Target, "event": o.Event}).Warn("Client send channel full, closing slow client")
			c.CloseConn()
		}
	}
}

// Admit 实现 Gate。
func (h *Hub) Admit(ctx context.Context, connID, roomID string) error {
	c := h.client(connID)
	if c == nil {
		return ErrUnknownConnection
	}
	if c.grant != "" && c.grant != roomID {
		return ErrNotAuthorized
	}
	if c.grant == "" && h.cfg.RequireTicket {
		return ErrNotAuthorized
	}
	if !h.cfg.VerifyRooms {
		return nil
	}
	exists, err := h.bridge.RoomExists(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Hub: Room existence check failed")
		return ErrRoomCheckFailed
	}
	if !exists {
		return ErrRoomNotFound
	}
	return nil
}

// ActiveRoomIDs 返回当前内存中的房间。
func (h *Hub) ActiveRoomIDs() []string {
	return h.store.RoomIDs()
}

// Stats 返回房间数和连接数。
func (h *Hub) Stats() Stats {
	return Stats{Rooms: h.store.Len(), Connections: h.registry.Len()}
}

// Store 暴露房间状态，供后台检查点任务读取。
func (h *Hub) Store() *Store {
	return h.store
}

// Shutdown 关闭所有客户端连接并等待进行中的保存完成。
func (h *Hub) Shutdown(ctx context.Context) error {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		c.CloseConn()
	}

	done := make(chan struct{})
	go func() {
		h.router.Wait()
		close(done)
	}()
	select {
	case <-done:
		logrus.WithField("closed_clients", len(clients)).Info("Hub shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
