package ws

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rlaxodn322/social-chatting-study/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Report 汇总一次投递的逐连接结果。
type Report struct {
	Delivered int
	Dropped   int // 快照后已注销的连接，静默跳过
	Failed    []uuid.UUID
}

// roomLock 是房间级顺序锁，refs 记录正在排队或持有它的发布方数量。
type roomLock struct {
	sync.Mutex
	refs int
}

// Router 负责房间级扇出：把一个事件投递给房间当前的全部活跃连接。
type Router struct {
	registry *Registry

	mu    sync.Mutex
	order map[RoomID]*roomLock
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry, order: make(map[RoomID]*roomLock)}
}

func (rt *Router) acquire(room RoomID) *roomLock {
	rt.mu.Lock()
	l, ok := rt.order[room]
	if !ok {
		l = &roomLock{}
		rt.order[room] = l
	}
	l.refs++
	rt.mu.Unlock()
	l.Lock()
	return l
}

// release 归还房间顺序锁；房间已空且没有其他发布方排队时回收表项，
// 避免私信房间随用户数无限累积。
func (rt *Router) release(room RoomID, l *roomLock, empty bool) {
	l.Unlock()
	rt.mu.Lock()
	l.refs--
	if l.refs == 0 && empty {
		delete(rt.order, room)
	}
	rt.mu.Unlock()
}

// Publish 在房间顺序锁内先执行 prepare（持久化并编码载荷），再把载荷
// 入队给房间当前的全部活跃连接。同一房间的发布方从持久化到入队整体
// 串行，接收方观察到的顺序因此与存储分配的 id 顺序一致。
// prepare 返回错误时不投递；返回 errSkipDelivery 表示事件已处理完毕、
// 只跳过本次投递。单个连接投递失败按断线清理，不影响其他目标。
func (rt *Router) Publish(room RoomID, prepare func() ([]byte, error)) (Report, error) {
	l := rt.acquire(room)

	payload, err := prepare()
	if err != nil {
		rt.release(room, l, false)
		if errors.Is(err, errSkipDelivery) {
			err = nil
		}
		return Report{}, err
	}

	targets := rt.registry.ConnectionsIn(room)
	var rep Report
	var failed []*Client
	for _, c := range targets {
		switch err := c.deliver(payload); {
		case err == nil:
			rep.Delivered++
		case errors.Is(err, errClientClosed):
			rep.Dropped++
		default:
			rep.Failed = append(rep.Failed, c.token)
			failed = append(failed, c)
		}
	}
	rt.release(room, l, len(targets) == 0)

	// 写不进去的慢连接按断线处理，清理动作在顺序锁外执行
	for _, c := range failed {
		metrics.DeliveryFailuresTotal.Inc()
		log.Warn().Str("room", string(room)).Str("conn", c.token.String()).Msg("delivery failed, dropping connection")
		rt.registry.Deregister(c.token)
	}
	return rep, nil
}

// Route 把已编码的 payload 投递给 room 的全部活跃连接。
// 目标集合在顺序锁内快照，之后加入的连接不在本次投递范围内。
func (rt *Router) Route(room RoomID, payload []byte) Report {
	rep, _ := rt.Publish(room, func() ([]byte, error) { return payload, nil })
	return rep
}
