package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rlaxodn322/social-chatting-study/internal/auth"
	"github.com/rlaxodn322/social-chatting-study/internal/config"
	"github.com/rlaxodn322/social-chatting-study/internal/metrics"
	"github.com/rlaxodn322/social-chatting-study/internal/mw"
	"github.com/rlaxodn322/social-chatting-study/internal/service"
	"github.com/rlaxodn322/social-chatting-study/internal/store"
	"github.com/rlaxodn322/social-chatting-study/internal/ws"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, gdb *gorm.DB, st *store.Store, reg *ws.Registry, pl *ws.Pipeline) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	userSvc := service.NewUserService(gdb, cfg)
	h := NewHandler(userSvc, st, pl)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)
	api.POST("/auth/logout", h.Logout)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, gdb))
	authed.POST("/auth/password", h.ChangePassword)
	authed.GET("/users", h.ListUsers)
	authed.DELETE("/users/:id", h.DeleteUser)
	authed.GET("/chat/global", h.GlobalHistory)
	authed.GET("/chat/history/:userId", h.DirectHistory)
	authed.POST("/chat/message", h.SendDirectMessage)
	authed.GET("/chat/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"online": reg.Online(ws.GlobalRoom)})
	})

	// websocket 握手凭证换身份：JWT 校验 + 用户存在性检查
	authn := ws.AuthenticatorFunc(func(credential string) (*ws.Identity, error) {
		user, err := auth.FetchIdentity(gdb, credential, cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return &ws.Identity{ID: user.ID, Username: user.Username}, nil
	})
	r.GET("/ws", ws.Serve(reg, pl, authn))

	return r
}
