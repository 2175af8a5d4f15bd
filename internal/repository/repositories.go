package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"item_recovery/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Message      MessageRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}
}
