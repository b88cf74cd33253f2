package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 256

// Client 代表一条活跃的 websocket 连接，由 Registry 独占管理。
type Client struct {
	token    uuid.UUID
	identity *Identity
	conn     *websocket.Conn
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(token uuid.UUID, identity *Identity, conn *websocket.Conn) *Client {
	return &Client{
		token:    token,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) Token() uuid.UUID { return c.token }

func (c *Client) Identity() *Identity { return c.identity }

// deliver 尝试把 payload 入队给写泵。
// 连接已注销时静默丢弃（返回 errClientClosed），缓冲打满按投递失败处理。
func (c *Client) deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errDeliveryFailed
	}
}

// close 标记连接关闭并关闭发送通道，只生效一次。
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump 逐帧读取客户端事件并分发给注册表与消息管道。
// 读取出错即视为断开，退出前注销连接。
func (c *Client) readPump(reg *Registry, pl *Pipeline) {
	defer func() {
		reg.Deregister(c.token)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.dispatch(reg, pl, f)
	}
}

func (c *Client) dispatch(reg *Registry, pl *Pipeline, f Frame) {
	ctx := context.Background()
	switch f.Event {
	case EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID == 0 {
			return
		}
		if err := reg.JoinRoom(c.token, DirectRoom(uint(p.UserID))); err != nil {
			log.Warn().Err(err).Str("conn", c.token.String()).Uint("user_id", uint(p.UserID)).Msg("join room")
		}
	case EventSendGlobal:
		var p globalMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		if _, err := pl.HandleGlobal(ctx, GlobalEvent{SenderID: uint(p.SenderID), Username: p.Username, Content: p.Content}); err != nil {
			log.Warn().Err(err).Str("conn", c.token.String()).Msg("global message dropped")
		}
	case EventSendDirect:
		var p directMessagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		ev := DirectEvent{SenderID: uint(p.SenderID), ReceiverID: uint(p.ReceiverID), Username: p.Username, Content: p.Content}
		if _, err := pl.HandleDirect(ctx, ev); err != nil {
			log.Warn().Err(err).Str("conn", c.token.String()).Msg("direct message dropped")
		}
	default:
		// 未知事件直接忽略，和原系统一致
	}
}

// writePump 把发送通道里的帧写到 socket，并定期发 ping 维持连接。
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
