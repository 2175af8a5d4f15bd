package handler

import (
	"item_recovery/internal/config"
	"item_recovery/internal/middleware"
	"item_recovery/internal/service"
	"item_recovery/internal/ws"
	"item_recovery/pkg/logger"
)

type Handlers struct {
	Health       *HealthHandler
	Conversation *ConversationHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, dispatcher *ws.Dispatcher, auth *middleware.AuthMiddleware, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(cfg),
		Conversation: NewConversationHandler(services.Conversation, services.Message, log),
		WebSocket:    NewWebSocketHandler(dispatcher, auth, log),
	}
}
