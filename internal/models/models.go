package models

import "time"

// 表结构沿用原 chat_app 库：users / messages / global_messages，
// 消息 id 由 AUTO_INCREMENT 分配，作为房间内投递顺序的依据。

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"column:password;size:255;not null"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "users" }

// GlobalMessage 是公共频道的一条消息，持久化后不可变。
type GlobalMessage struct {
	ID        uint   `gorm:"primaryKey"`
	SenderID  uint   `gorm:"column:sender_id;index;not null"`
	Username  string `gorm:"size:255;not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (GlobalMessage) TableName() string { return "global_messages" }

// DirectMessage 是一对一私聊消息，投递房间为接收方的私信房间。
type DirectMessage struct {
	ID         uint      `gorm:"primaryKey"`
	SenderID   uint      `gorm:"column:sender_id;index;not null"`
	ReceiverID uint      `gorm:"column:receiver_id;index;not null"`
	Content    string    `gorm:"type:text"`
	Username   string    `gorm:"size:255;not null"`
	CreatedAt  time.Time `gorm:"column:timestamp"`
}

func (DirectMessage) TableName() string { return "messages" }

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
