package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rlaxodn322/social-chatting-study/internal/config"
	"github.com/rlaxodn322/social-chatting-study/internal/models"
	"github.com/rlaxodn322/social-chatting-study/internal/store"
	"github.com/rlaxodn322/social-chatting-study/internal/ws"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.GlobalMessage{}, &models.DirectMessage{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Config{Port: "0", JWTSecret: "test-secret", Env: "dev", AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7}
	st := store.New(gdb)
	reg := ws.NewRegistry(cfg.AllowOpenDirectRooms)
	pl := ws.NewPipeline(st, ws.NewRouter(reg))
	return SetupRouter(cfg, gdb, st, reg, pl)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// signup registers a user and returns its id and an access token.
func signup(t *testing.T, engine *gin.Engine, username string) (uint, string) {
	t.Helper()
	w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username, "password": "password123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", username, w.Code, w.Body)
	}
	w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", username, w.Code, w.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.User.ID, resp.AccessToken
}

func TestHealthz(t *testing.T) {
	engine := newTestRouter(t)
	w := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestChatEndpoints_RequireAuth(t *testing.T) {
	engine := newTestRouter(t)
	for _, path := range []string{"/api/v1/users", "/api/v1/chat/global", "/api/v1/chat/history/1"} {
		w := doJSON(t, engine, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status %d, want 401", path, w.Code)
		}
	}
}

func TestListUsers(t *testing.T) {
	engine := newTestRouter(t)
	signup(t, engine, "alice")
	_, token := signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodGet, "/api/v1/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: status %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Users []struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(resp.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(resp.Users))
	}
	if resp.Users[0].Username != "alice" || resp.Users[1].Username != "bob" {
		t.Errorf("users = %+v, want alice then bob", resp.Users)
	}
}

func TestSendDirectMessage_AppearsInHistory(t *testing.T) {
	engine := newTestRouter(t)
	aliceID, aliceToken := signup(t, engine, "alice")
	bobID, bobToken := signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/chat/message", aliceToken, gin.H{"receiverId": bobID, "content": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("send message: status %d, body %s", w.Code, w.Body)
	}

	// History is visible from both sides
	for _, tc := range []struct {
		userID uint
		token  string
	}{{aliceID, aliceToken}, {bobID, bobToken}} {
		w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/chat/history/%d", tc.userID), tc.token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("history: status %d, body %s", w.Code, w.Body)
		}
		var resp struct {
			Messages []struct {
				SenderID   uint   `json:"senderId"`
				ReceiverID uint   `json:"receiverId"`
				Username   string `json:"username"`
				Content    string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode history: %v", err)
		}
		if len(resp.Messages) != 1 {
			t.Fatalf("history for user %d = %d messages, want 1", tc.userID, len(resp.Messages))
		}
		m := resp.Messages[0]
		if m.SenderID != aliceID || m.ReceiverID != bobID || m.Content != "hi" || m.Username != "alice" {
			t.Errorf("history message = %+v", m)
		}
	}
}

func TestSendDirectMessage_MissingContent(t *testing.T) {
	engine := newTestRouter(t)
	_, aliceToken := signup(t, engine, "alice")
	bobID, bobToken := signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/chat/message", aliceToken, gin.H{"receiverId": bobID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("send without content: status %d, want 400", w.Code)
	}

	// Nothing was persisted
	w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/chat/history/%d", bobID), bobToken, nil)
	var resp struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("history = %d messages, want 0", len(resp.Messages))
	}
}

func TestGlobalHistory_EmptyThenOrdered(t *testing.T) {
	engine := newTestRouter(t)
	_, token := signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodGet, "/api/v1/chat/global", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("global history: status %d", w.Code)
	}
	var resp struct {
		Messages []struct {
			ID      uint   `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Fatalf("fresh global history = %d messages, want 0", len(resp.Messages))
	}
}

func TestDeleteUser_SelfOnly(t *testing.T) {
	engine := newTestRouter(t)
	aliceID, aliceToken := signup(t, engine, "alice")
	bobID, _ := signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", bobID), aliceToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete other user: status %d, want 403", w.Code)
	}
	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", aliceID), aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete self: status %d, body %s", w.Code, w.Body)
	}
}

func TestChangePassword_Flow(t *testing.T) {
	engine := newTestRouter(t)
	_, token := signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/password", token, gin.H{"current_password": "wrong", "new_password": "newpass"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("change with wrong current: status %d, want 400", w.Code)
	}
	w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/password", token, gin.H{"current_password": "password123", "new_password": "newpass"})
	if w.Code != http.StatusOK {
		t.Fatalf("change password: status %d, body %s", w.Code, w.Body)
	}
	w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "newpass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password: status %d", w.Code)
	}
}

func TestWs_MissingToken(t *testing.T) {
	engine := newTestRouter(t)
	w := doJSON(t, engine, http.MethodGet, "/ws", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("ws without token: status %d, want 401", w.Code)
	}
}
