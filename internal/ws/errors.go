package ws

import "errors"

// 核心错误分类：校验/持久化错误对单个事件是终态，
// 连接级错误只隔离到出问题的那条连接。
var (
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrRoomForbidden       = errors.New("room forbidden")
)

var (
	errClientClosed   = errors.New("client closed")
	errDeliveryFailed = errors.New("delivery failed")
	errSkipDelivery   = errors.New("skip delivery")
)
