package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rlaxodn322/social-chatting-study/internal/metrics"
)

// Registry 是会话登记表：连接 token → 活跃连接，以及各房间的成员关系。
// 所有读写都在同一把锁下完成，是连接 goroutine 之间唯一的共享可变状态；
// 持锁期间不做任何 I/O。
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Client
	rooms map[RoomID]map[uuid.UUID]*Client

	// openDirectRooms 放开"任意连接可加入任意私信房间"的旧行为，默认关闭。
	openDirectRooms bool
}

func NewRegistry(openDirectRooms bool) *Registry {
	return &Registry{
		conns:           make(map[uuid.UUID]*Client),
		rooms:           make(map[RoomID]map[uuid.UUID]*Client),
		openDirectRooms: openDirectRooms,
	}
}

// Register 登记一条新连接并隐式加入公共房间。
// token 已被占用时保留原登记并返回 ErrDuplicateConnection。
func (r *Registry) Register(token uuid.UUID, identity *Identity, conn *websocket.Conn) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[token]; ok {
		return nil, ErrDuplicateConnection
	}
	c := newClient(token, identity, conn)
	r.conns[token] = c
	r.join(c, GlobalRoom)
	metrics.WsConnections.Inc()
	return c, nil
}

// join 把连接加入房间；调用方必须持有写锁。
func (r *Registry) join(c *Client, room RoomID) {
	m, ok := r.rooms[room]
	if !ok {
		m = make(map[uuid.UUID]*Client)
		r.rooms[room] = m
	}
	m[c.token] = c
}

// JoinRoom 把连接加入指定房间。私信房间默认只允许对应身份的连接加入。
func (r *Registry) JoinRoom(token uuid.UUID, room RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[token]
	if !ok {
		return ErrUnknownConnection
	}
	if room != GlobalRoom && !r.openDirectRooms {
		if c.identity == nil || DirectRoom(c.identity.ID) != room {
			return ErrRoomForbidden
		}
	}
	r.join(c, room)
	return nil
}

// ConnectionsIn 返回当前加入 room 的活跃连接快照；断开的连接立即不可见。
func (r *Registry) ConnectionsIn(room RoomID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.rooms[room]
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// Online 返回房间在线连接数，供 REST 接口与指标复用。
func (r *Registry) Online(room RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Deregister 原子移除连接及其全部房间成员关系；幂等。
// 断开是终态：重连的客户端拿到新 token，算一条新连接。
func (r *Registry) Deregister(token uuid.UUID) {
	r.mu.Lock()
	c, ok := r.conns[token]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, token)
	for room, m := range r.rooms {
		delete(m, token)
		if len(m) == 0 {
			delete(r.rooms, room)
		}
	}
	metrics.WsConnections.Dec()
	r.mu.Unlock()

	// 关闭发送通道要在释放注册表锁之后，避免与 writePump 的退出互相等待
	c.close()
}
