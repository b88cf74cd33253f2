package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Authenticator 把传输层拿到的凭证换成用户身份；凭证的存储与校验方式对本包不可见。
type Authenticator interface {
	Authenticate(credential string) (*Identity, error)
}

// AuthenticatorFunc 方便用闭包实现 Authenticator。
type AuthenticatorFunc func(credential string) (*Identity, error)

func (f AuthenticatorFunc) Authenticate(credential string) (*Identity, error) {
	return f(credential)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理 websocket 握手：鉴权 → 分配连接 token → 登记 → 启动读写泵。
// Token 来自 Authorization 头或 token query 参数。
func Serve(reg *Registry, pl *Pipeline, authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		credential := c.Query("token")
		if credential == "" && len(authz) > 7 && (authz[:7] == "Bearer " || authz[:7] == "bearer ") {
			credential = authz[7:]
		}
		if credential == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		identity, err := authn.Authenticate(credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client, err := reg.Register(uuid.New(), identity, conn)
		if err != nil {
			// uuid 冲突实际不会发生，保留原登记即可
			log.Warn().Err(err).Uint("user_id", identity.ID).Msg("register connection")
			_ = conn.Close()
			return
		}
		log.Info().Str("conn", client.token.String()).Uint("user_id", identity.ID).Msg("connected")

		go client.writePump()
		client.readPump(reg, pl)
		log.Info().Str("conn", client.token.String()).Uint("user_id", identity.ID).Msg("disconnected")
	}
}
