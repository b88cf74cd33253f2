package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rlaxodn322/social-chatting-study/internal/models"
	"gorm.io/gorm"
)

// ErrStoreUnavailable 表示持久层写入或读取失败；触发方的事件直接丢弃，不重试。
var ErrStoreUnavailable = errors.New("store unavailable")

// Store 是消息与用户数据的持久化网关：只做数据访问，不含业务规则，也不做缓存。
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AppendGlobal 追加一条公共频道消息，返回数据库分配的自增 id。
func (s *Store) AppendGlobal(ctx context.Context, m *models.GlobalMessage) (uint, error) {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return 0, fmt.Errorf("%w: append global: %v", ErrStoreUnavailable, err)
	}
	return m.ID, nil
}

// AppendDirect 追加一条私聊消息，返回数据库分配的自增 id。
func (s *Store) AppendDirect(ctx context.Context, m *models.DirectMessage) (uint, error) {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return 0, fmt.Errorf("%w: append direct: %v", ErrStoreUnavailable, err)
	}
	return m.ID, nil
}

// ListGlobalHistory 按 id 升序返回全部公共频道消息。
func (s *Store) ListGlobalHistory(ctx context.Context) ([]models.GlobalMessage, error) {
	var msgs []models.GlobalMessage
	if err := s.db.WithContext(ctx).Order("id asc").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: list global history: %v", ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// ListDirectHistory 按 id 升序返回 userID 作为发送方或接收方的全部私聊消息。
func (s *Store) ListDirectHistory(ctx context.Context, userID uint) ([]models.DirectMessage, error) {
	var msgs []models.DirectMessage
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list direct history: %v", ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// ListUsers 返回全部用户的公开信息。
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username", "created_at").Order("id asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrStoreUnavailable, err)
	}
	return users, nil
}
