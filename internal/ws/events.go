package ws

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RoomID 是一个投递范围的名字。公共频道是固定房间，
// 每个用户的私信房间直接用其用户 id 命名（沿用原系统的约定）。
type RoomID string

const GlobalRoom RoomID = "global"

func DirectRoom(userID uint) RoomID {
	return RoomID(strconv.FormatUint(uint64(userID), 10))
}

// Identity 是连接当前登录的用户身份；连接在鉴权前可以没有身份。
type Identity struct {
	ID       uint
	Username string
}

// 客户端与服务端之间的事件名，沿用原系统的 socket 事件。
const (
	EventJoinRoom      = "join_room"
	EventSendGlobal    = "send_global_message"
	EventSendDirect    = "send_message"
	EventReceiveGlobal = "receive_global_message"
	EventReceiveDirect = "receive_message"
)

// Frame 是 websocket 上一条 JSON 帧：{"event": ..., "data": ...}。
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// flexID 兼容前端把用户 id 作为数字或字符串发送的两种写法。
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(v)
	return nil
}

type joinRoomPayload struct {
	UserID flexID `json:"userId"`
}

type globalMessagePayload struct {
	SenderID flexID `json:"senderId"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

type directMessagePayload struct {
	SenderID   flexID `json:"senderId"`
	ReceiverID flexID `json:"receiverId"`
	Username   string `json:"username"`
	Content    string `json:"content"`
}

// MessageOut 是投递给客户端的消息载荷。
type MessageOut struct {
	ID        uint      `json:"id"`
	SenderID  uint      `json:"senderId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
