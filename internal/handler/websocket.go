package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"item_recovery/internal/middleware"
	"item_recovery/internal/ws"
	"item_recovery/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	dispatcher *ws.Dispatcher
	auth       *middleware.AuthMiddleware
	log        logger.Logger
}

func NewWebSocketHandler(dispatcher *ws.Dispatcher, auth *middleware.AuthMiddleware, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		dispatcher: dispatcher,
		auth:       auth,
		log:        log,
	}
}

// Handle аутентифицирует рукопожатие и запускает соединение.
// Неаутентифицированные рукопожатия отклоняются до обработки событий.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	principal, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	h.log.Info("WebSocket connected", "principal_id", principal.ID)

	client := ws.NewClient(conn, principal.ID, principal.DisplayName, h.dispatcher, h.log)
	client.Run()

	h.log.Info("WebSocket disconnected", "principal_id", principal.ID)
}
