package domain

import (
	"time"

	"github.com/google/uuid"
)

// User - локальная проекция принципала из Identity-сервиса.
// Учётные данные здесь не хранятся, запись создаётся автоматически
// при первом валидном токене.
type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	AvatarURL       *string   `json:"avatar_url,omitempty"`
	ReputationScore float64   `json:"reputation_score"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
