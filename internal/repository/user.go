package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, display_name, avatar_url, reputation_score, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.AvatarURL,
		user.ReputationScore, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create user", "error", err, "user_id", user.ID)
		return apperrors.ErrTransientStore
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, display_name, avatar_url, reputation_score, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL,
		&user.ReputationScore, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get user", "error", err, "user_id", id)
		return nil, apperrors.ErrTransientStore
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, display_name = $3, avatar_url = $4, reputation_score = $5,
		    is_active = $6, updated_at = $7
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.AvatarURL,
		user.ReputationScore, user.IsActive, time.Now(),
	)
	if err != nil {
		r.log.Error("Failed to update user", "error", err, "user_id", user.ID)
		return apperrors.ErrTransientStore
	}

	return nil
}
