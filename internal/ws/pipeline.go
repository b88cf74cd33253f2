package ws

import (
	"context"

	"github.com/rlaxodn322/social-chatting-study/internal/metrics"
	"github.com/rlaxodn322/social-chatting-study/internal/models"
	"github.com/rs/zerolog/log"
)

// Gateway 是消息管道依赖的持久化子集。
type Gateway interface {
	AppendGlobal(ctx context.Context, m *models.GlobalMessage) (uint, error)
	AppendDirect(ctx context.Context, m *models.DirectMessage) (uint, error)
}

// GlobalEvent 是一条入站的公共频道消息事件。
type GlobalEvent struct {
	SenderID uint
	Username string
	Content  string
}

// DirectEvent 是一条入站的一对一消息事件。
type DirectEvent struct {
	SenderID   uint
	ReceiverID uint
	Username   string
	Content    string
}

// Pipeline 按 received → validated → persisted → routed 处理入站事件：
// 校验失败的事件在持久化之前丢弃，持久化失败的事件不会被路由，
// 投递永远发生在存储确认之后。入站事件没有去重键，重复提交会产生
// 第二条持久化消息和第二次投递。
type Pipeline struct {
	store  Gateway
	router *Router
}

func NewPipeline(store Gateway, router *Router) *Pipeline {
	return &Pipeline{store: store, router: router}
}

// HandleGlobal 处理公共频道消息：持久化成功后扇出到公共房间。
// 持久化和入队在公共房间的顺序锁内完成，并发发送方的投递顺序
// 因此始终跟随存储分配的 id。
func (p *Pipeline) HandleGlobal(ctx context.Context, ev GlobalEvent) (*models.GlobalMessage, error) {
	if ev.SenderID == 0 || ev.Content == "" {
		return nil, ErrInvalidPayload
	}
	msg := &models.GlobalMessage{SenderID: ev.SenderID, Username: ev.Username, Content: ev.Content}
	_, err := p.router.Publish(GlobalRoom, func() ([]byte, error) {
		if _, err := p.store.AppendGlobal(ctx, msg); err != nil {
			log.Error().Err(err).Uint("sender_id", ev.SenderID).Msg("persist global message")
			return nil, err
		}
		metrics.MessagesTotal.WithLabelValues("global").Inc()
		payload, err := encodeFrame(EventReceiveGlobal, MessageOut{
			ID: msg.ID, SenderID: msg.SenderID, Username: msg.Username,
			Content: msg.Content, CreatedAt: msg.CreatedAt,
		})
		if err != nil {
			// 行已写入，只是这一轮投递被跳过
			log.Warn().Err(err).Uint("message_id", msg.ID).Msg("global message persisted but not routed")
			return nil, errSkipDelivery
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// HandleDirect 处理一对一消息：持久化成功后只投递到接收方的私信房间。
// 发送方不会收到回显，本地回显由客户端乐观追加。
func (p *Pipeline) HandleDirect(ctx context.Context, ev DirectEvent) (*models.DirectMessage, error) {
	if ev.SenderID == 0 || ev.ReceiverID == 0 || ev.Content == "" {
		return nil, ErrInvalidPayload
	}
	msg := &models.DirectMessage{SenderID: ev.SenderID, ReceiverID: ev.ReceiverID, Username: ev.Username, Content: ev.Content}
	_, err := p.router.Publish(DirectRoom(ev.ReceiverID), func() ([]byte, error) {
		if _, err := p.store.AppendDirect(ctx, msg); err != nil {
			log.Error().Err(err).Uint("sender_id", ev.SenderID).Uint("receiver_id", ev.ReceiverID).Msg("persist direct message")
			return nil, err
		}
		metrics.MessagesTotal.WithLabelValues("direct").Inc()
		payload, err := encodeFrame(EventReceiveDirect, MessageOut{
			ID: msg.ID, SenderID: msg.SenderID, Username: msg.Username,
			Content: msg.Content, CreatedAt: msg.CreatedAt,
		})
		if err != nil {
			log.Warn().Err(err).Uint("message_id", msg.ID).Msg("direct message persisted but not routed")
			return nil, errSkipDelivery
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
