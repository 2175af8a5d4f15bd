package service

import (
	"context"
	"time"

	"item_recovery/internal/repository"
	"item_recovery/pkg/logger"
)

// Sweeper периодически закрывает разговоры с истёкшим auto_close_deadline.
// Это advisory-уборка: разговор может пережить дедлайн до следующего прохода,
// инварианты при этом не нарушаются.
type Sweeper struct {
	conversationRepo repository.ConversationRepository
	conversations    ConversationService
	interval         time.Duration
	log              logger.Logger
}

func NewSweeper(conversationRepo repository.ConversationRepository, conversations ConversationService, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		conversationRepo: conversationRepo,
		conversations:    conversations,
		interval:         interval,
		log:              log,
	}
}

// Run блокирует до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Lifecycle sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Lifecycle sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход. Ошибка по одному разговору логируется
// и не прерывает обработку остальных.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.conversationRepo.ListExpired(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to list expired conversations", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	closed := 0
	for _, conversation := range expired {
		if _, err := s.conversations.Close(ctx, conversation.ID, nil); err != nil {
			s.log.Error("Failed to auto-close conversation", "error", err, "conversation_id", conversation.ID)
			continue
		}
		closed++
	}

	s.log.Info("Sweep finished", "expired", len(expired), "closed", closed)
}
