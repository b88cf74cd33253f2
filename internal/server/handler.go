package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rlaxodn322/social-chatting-study/internal/auth"
	"github.com/rlaxodn322/social-chatting-study/internal/service"
	"github.com/rlaxodn322/social-chatting-study/internal/store"
	"github.com/rlaxodn322/social-chatting-study/internal/ws"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler；实时通道之外的接口都是持久层的只读投影，
// 外加复用消息管道的 HTTP 发信入口。
type Handler struct {
	userSvc  *service.UserService
	store    *store.Store
	pipeline *ws.Pipeline
}

func NewHandler(userSvc *service.UserService, st *store.Store, pl *ws.Pipeline) *Handler {
	return &Handler{userSvc: userSvc, store: st, pipeline: pl}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": result.ID, "username": result.Username})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

// Logout 吊销提交的 refresh token。
func (h *Handler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.userSvc.Logout(req.RefreshToken); err != nil {
		log.Error().Err(err).Msg("logout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ChangePassword 校验当前密码后改密。
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.NewPassword) < 4 || len(req.NewPassword) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	err := h.userSvc.ChangePassword(auth.GetUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid current password"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("change password")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// DeleteUser 删除账号，只允许本人操作。
func (h *Handler) DeleteUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if uint(userID) != auth.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete another user"})
		return
	}
	if err := h.userSvc.DeleteUser(uint(userID)); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Int("user_id", userID).Msg("delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

type userDTO struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsers 返回全部用户的公开信息。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type globalMessageDTO struct {
	ID        uint      `json:"id"`
	SenderID  uint      `json:"senderId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// GlobalHistory 返回公共频道的完整历史，按 id 升序。
func (h *Handler) GlobalHistory(c *gin.Context) {
	msgs, err := h.store.ListGlobalHistory(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("list global history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch global messages"})
		return
	}
	out := make([]globalMessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, globalMessageDTO{ID: m.ID, SenderID: m.SenderID, Username: m.Username, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type directMessageDTO struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"senderId"`
	ReceiverID uint      `json:"receiverId"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DirectHistory 返回某个用户参与（发送或接收）的全部私聊消息，按 id 升序。
func (h *Handler) DirectHistory(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	msgs, err := h.store.ListDirectHistory(c.Request.Context(), uint(userID))
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("list direct history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chat history"})
		return
	}
	out := make([]directMessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, directMessageDTO{ID: m.ID, SenderID: m.SenderID, ReceiverID: m.ReceiverID, Username: m.Username, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// SendDirectMessage 走 HTTP 发一条私聊消息，复用实时通道的消息管道；
// 发送方身份取自登录态而不是请求体。
func (h *Handler) SendDirectMessage(c *gin.Context) {
	var req struct {
		ReceiverID uint   `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ev := ws.DirectEvent{
		SenderID:   auth.GetUserID(c),
		ReceiverID: req.ReceiverID,
		Username:   auth.GetUsername(c),
		Content:    req.Content,
	}
	msg, err := h.pipeline.HandleDirect(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, ws.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		log.Error().Err(err).Uint("sender_id", ev.SenderID).Uint("receiver_id", ev.ReceiverID).Msg("send direct message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": msg.ID, "message": "message sent"})
}
