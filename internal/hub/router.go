package hub

import (
	"context"
	"sync"
	"time"

	"collab-whiteboard/internal/domain"

	"github.com/sirupsen/logrus"
)

const (
	defaultUsername = "Anonymous"
	hydrateTimeout  = 5 * time.Second
)

// Router 是协议状态机：处理单个连接的入站事件，修改 Registry/Store，
// 并把扇出列表交给 Sink。同一个连接的事件必须顺序调用 Handle。
type Router struct {
	registry *Registry
	store    *Store
	presence PresenceNotifier
	bridge   Bridge
	gate     Gate
	sink     Sink

	// 正在进行的异步保存，Wait 用于关闭和测试
	saves sync.WaitGroup
}

// NewRouter 创建 Router。bridge 为 nil 时不做持久化，gate 为 nil 时允许加入任何房间。
func NewRouter(registry *Registry, store *Store, bridge Bridge, gate Gate, sink Sink) *Router {
	if registry == nil || store == nil {
		panic("Registry and Store cannot be nil for Router")
	}
	if sink == nil {
		panic("Sink cannot be nil for Router")
	}
	if gate == nil {
		gate = allowAll{}
	}
	return &Router{
		registry: registry,
		store:    store,
		bridge:   bridge,
		gate:     gate,
		sink:     sink,
	}
}

// Connect 登记新连接。
func (r *Router) Connect(connID string) error {
	_, err := r.registry.Register(connID)
	return err
}

// Handle 处理一个入站事件，返回本次产生的扇出（已交给 Sink）。
// 任何路由错误都只以 error 事件回给发送者。
func (r *Router) Handle(ctx context.Context, connID string, in Inbound) []Outbound {
	conn, ok := r.registry.Get(connID)
	if !ok {
		logrus.WithFields(logrus.Fields{"conn_id": connID, "event": in.Event}).Warn("Router: Event from unregistered connection ignored")
		return nil
	}

	var out []Outbound
	var err error
	switch in.Event {
	case EventJoinRoom:
		out, err = r.join(ctx, conn, in)
	case EventDrawing:
		out, err = r.drawing(conn, in)
	case EventUpdateCanvas:
		out, err = r.updateCanvas(conn, in)
	case EventClearCanvas:
		out, err = r.clearCanvas(conn, in)
	case EventCursorMove:
		out, err = r.relay(conn, in, EventCursorMove, CursorMovePayload{UserID: conn.ID, X: in.X, Y: in.Y})
	case EventUndo, EventRedo:
		out, err = r.relay(conn, in, in.Event, SignalPayload{UserID: conn.ID})
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"conn_id": connID,
			"room_id": conn.RoomID,
			"event":   in.Event,
		}).WithError(err).Debug("Router: Event rejected")
		return r.Fail(connID, err)
	}
	return out
}

// Fail 把错误作为 error 事件发给 connID。
func (r *Router) Fail(connID string, err error) []Outbound {
	out := []Outbound{errorTo(connID, err)}
	r.sink.Deliver(out)
	return out
}

// Disconnect 清理连接：注销，并通知原房间剩余成员。
func (r *Router) Disconnect(connID string) []Outbound {
	conn, ok := r.registry.Unregister(connID)
	if !ok || conn.RoomID == "" {
		return nil
	}
	return r.leave(conn)
}

// Wait 等待所有已发起的异步保存结束。
func (r *Router) Wait() {
	r.saves.Wait()
}

func (r *Router) join(ctx context.Context, conn Connection, in Inbound) ([]Outbound, error) {
	if in.RoomID == "" {
		return nil, ErrMissingRoomID
	}
	if err := r.gate.Admit(ctx, conn.ID, in.RoomID); err != nil {
		return nil, err
	}
	username := in.Username
	if username == "" {
		username = defaultUsername
	}

	var out []Outbound
	rejoin := conn.RoomID == in.RoomID
	// 已在其他房间的连接先完整离开原房间；同一房间只刷新展示信息，房间不会被删除
	if conn.RoomID != "" && !rejoin {
		out = append(out, r.leave(conn)...)
	}

	conn, err := r.registry.AssignRoom(conn.ID, in.RoomID, username)
	if err != nil {
		return out, err
	}
	joiner := conn.Presence()

	// 只有新房间或从未成功加载过的房间才读取持久化快照
	var seed []byte
	loaded := false
	if r.store.needsHydration(in.RoomID) {
		seed, loaded = r.hydrate(ctx, in.RoomID)
	}

	r.store.withRoom(in.RoomID, true, func(rs *RoomState) {
		if loaded {
			rs.seed(seed, r.store.now())
		}
		rs.add(joiner)
		var fan []Outbound
		if rejoin {
			fan = r.presence.Refreshed(rs.list(), joiner)
		} else {
			fan = r.presence.Joined(rs.list(), joiner)
		}
		fan = append(fan, Outbound{
			Target:  joiner.ID,
			Event:   EventCanvasState,
			Payload: CanvasStatePayload{Snapshot: domain.RawJSON(rs.snapshot)},
		})
		r.sink.Deliver(fan)
		out = append(out, fan...)
	})

	logrus.WithFields(logrus.Fields{
		"conn_id":  conn.ID,
		"room_id":  in.RoomID,
		"username": username,
		"rejoin":   rejoin,
	}).Info("Connection joined room")
	return out, nil
}

// hydrate 从持久化层读取快照，失败只记录日志并返回 false，下一次加入会重试。
func (r *Router) hydrate(ctx context.Context, roomID string) ([]byte, bool) {
	if r.bridge == nil {
		return nil, true
	}
	ctx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	defer cancel()
	blob, err := r.bridge.LoadSnapshot(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Router: Failed to hydrate room snapshot, starting empty")
		return nil, false
	}
	return blob, true
}

func (r *Router) leave(conn Connection) []Outbound {
	var out []Outbound
	var remaining int
	var left bool
	r.store.withRoom(conn.RoomID, false, func(rs *RoomState) {
		removed, ok := rs.remove(conn.ID)
		if !ok {
			return
		}
		left = true
		remaining = len(rs.members)
		out = r.presence.Left(rs.list(), removed)
		r.sink.Deliver(out)
	})

	logCtx := logrus.WithFields(logrus.Fields{"conn_id": conn.ID, "room_id": conn.RoomID})
	switch {
	case !left:
		logCtx.Warn("Router: Connection not found in room during leave")
	case remaining == 0:
		logCtx.Info("Room empty, removed")
	default:
		logCtx.WithField("remaining", remaining).Info("Connection left room")
	}
	return out
}

// roomOf 校验连接所在房间，事件里带的 roomId 必须与之相同。
func roomOf(conn Connection, in Inbound) (string, error) {
	if conn.RoomID == "" {
		return "", ErrNotInRoom
	}
	if in.RoomID != "" && in.RoomID != conn.RoomID {
		return "", ErrRoomMismatch
	}
	return conn.RoomID, nil
}

func (r *Router) drawing(conn Connection, in Inbound) ([]Outbound, error) {
	roomID, err := roomOf(conn, in)
	if err != nil {
		return nil, err
	}

	kind, canvas := drawingKind(in.Data)
	mutates := true
	var blob []byte
	switch kind {
	case drawingTypeClear:
	case drawingTypeCanvas, drawingTypeSnapshot:
		blob = canvas
		if len(blob) == 0 {
			blob = in.Data
		}
	default:
		// 增量图元只转发，不修改快照
		mutates = false
	}

	var out []Outbound
	var rev int64
	ok := r.store.withRoom(roomID, false, func(rs *RoomState) {
		if mutates {
			rev = rs.setSnapshot(blob, r.store.now())
		}
		out = others(rs, conn.ID, EventDrawing, in.Data)
		r.sink.Deliver(out)
	})
	if !ok {
		return nil, ErrRoomGone
	}
	if mutates {
		r.persist(conn.ID, roomID, blob, rev, false)
	}
	return out, nil
}

func (r *Router) updateCanvas(conn Connection, in Inbound) ([]Outbound, error) {
	roomID, err := roomOf(conn, in)
	if err != nil {
		return nil, err
	}

	var out []Outbound
	var rev int64
	ok := r.store.withRoom(roomID, false, func(rs *RoomState) {
		rev = rs.setSnapshot(in.Canvas, r.store.now())
		out = others(rs, conn.ID, EventCanvasUpdated, CanvasUpdatedPayload{CanvasData: in.Canvas})
		r.sink.Deliver(out)
	})
	if !ok {
		return nil, ErrRoomGone
	}
	r.persist(conn.ID, roomID, in.Canvas, rev, true)
	return out, nil
}

func (r *Router) clearCanvas(conn Connection, in Inbound) ([]Outbound, error) {
	roomID, err := roomOf(conn, in)
	if err != nil {
		return nil, err
	}

	var out []Outbound
	var rev int64
	ok := r.store.withRoom(roomID, false, func(rs *RoomState) {
		rev = rs.setSnapshot(nil, r.store.now())
		// 清屏也发给发送者自己
		for _, id := range rs.order {
			out = append(out, Outbound{Target: id, Event: EventClearCanvas, Payload: ClearCanvasPayload{RoomID: roomID}})
		}
		r.sink.Deliver(out)
	})
	if !ok {
		return nil, ErrRoomGone
	}
	r.persist(conn.ID, roomID, nil, rev, false)
	return out, nil
}

// relay 把不改变状态的事件转发给其他成员。
func (r *Router) relay(conn Connection, in Inbound, event string, payload any) ([]Outbound, error) {
	roomID, err := roomOf(conn, in)
	if err != nil {
		return nil, err
	}
	var out []Outbound
	ok := r.store.withRoom(roomID, false, func(rs *RoomState) {
		out = others(rs, conn.ID, event, payload)
		r.sink.Deliver(out)
	})
	if !ok {
		return nil, ErrRoomGone
	}
	return out, nil
}

// others 为除 sender 外的所有成员生成同一条事件，调用方必须持有 rs.mu。
func others(rs *RoomState, sender, event string, payload any) []Outbound {
	out := make([]Outbound, 0, len(rs.order))
	for _, id := range rs.order {
		if id == sender {
			continue
		}
		out = append(out, Outbound{Target: id, Event: event, Payload: payload})
	}
	return out
}

// persist 异步保存快照，不阻塞路由。report 为 true 时失败会通知发送者。
// SaveSnapshot 成功只代表已交给后台任务，房间在写库成功后才由 worker 标记为已保存。
func (r *Router) persist(connID, roomID string, blob []byte, rev int64, report bool) {
	if r.bridge == nil {
		return
	}
	snapshot := &domain.Snapshot{RoomID: roomID, Data: blob, Revision: rev}
	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "revision": rev})
		if err := r.bridge.SaveSnapshot(context.Background(), snapshot); err != nil {
			logCtx.WithError(err).Error("Router: Failed to save snapshot")
			if report {
				r.sink.Deliver([]Outbound{errorTo(connID, ErrPersistFailed)})
			}
			return
		}
		logCtx.Debug("Snapshot handed to persistence")
	}()
}
