package service

import (
	"context"
	"time"

	"item_recovery/internal/repository"
	"item_recovery/pkg/logger"
)

// RateLimitService - инжектируемый счётчик событий с окном.
// Ключ формирует вызывающая сторона (ip или principal id).
type RateLimitService interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	if _, err := s.rateLimitRepo.Increment(ctx, key, window); err != nil {
		s.log.Error("Rate limit increment failed", "error", err, "key", key)
	}

	return true, nil
}
