package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"item_recovery/internal/domain"
	"item_recovery/internal/repository"
	"item_recovery/pkg/jwt"
	"item_recovery/pkg/logger"
)

// AuthMiddleware валидирует JWT токены внешнего Identity-сервиса.
// Ядро доверяет Identity-сервису и не управляет учётными данными само.
type AuthMiddleware struct {
	jwtSecret string
	userRepo  repository.UserRepository
	log       logger.Logger
}

func NewAuthMiddleware(jwtSecret string, userRepo repository.UserRepository, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		userRepo:  userRepo,
		log:       log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		principal, err := m.Authenticate(c.Request.Context(), token)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("principal_id", principal.ID)
		c.Set("principal_display_name", principal.DisplayName)
		c.Next()
	}
}

// Authenticate проверяет токен и возвращает локальную проекцию принципала.
// Используется и HTTP middleware, и websocket-рукопожатием.
func (m *AuthMiddleware) Authenticate(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(tokenString, m.jwtSecret)
	if err != nil {
		return nil, err
	}

	principalID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, err
	}

	return m.ensurePrincipal(ctx, principalID, claims)
}

// ensurePrincipal создаёт проекцию принципала при первом валидном токене
// (auto-provisioning), дальше просто читает её.
func (m *AuthMiddleware) ensurePrincipal(ctx context.Context, principalID uuid.UUID, claims *jwt.IdentityClaims) (*domain.User, error) {
	existing, err := m.userRepo.GetByID(ctx, principalID)
	if err == nil {
		return existing, nil
	}

	m.log.Info("Auto-provisioning principal from identity service", "principal_id", principalID)

	now := time.Now()
	user := &domain.User{
		ID:              principalID,
		Email:           claims.Email,
		DisplayName:     claims.DisplayName,
		AvatarURL:       claims.AvatarURL,
		ReputationScore: claims.Reputation,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// bearerToken достаёт токен из заголовка или query-параметра token
// (браузерный WebSocket API не умеет ставить заголовки).
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return c.Query("token")
}
