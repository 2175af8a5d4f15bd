package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"item_recovery/internal/domain"
	"item_recovery/internal/repository"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

type ConversationService interface {
	Create(ctx context.Context, itemRef string, creatorID, counterpartyID uuid.UUID) (*domain.Conversation, bool, error)
	GetForPrincipal(ctx context.Context, conversationID, principalID uuid.UUID) (*domain.Conversation, error)
	List(ctx context.Context, principalID uuid.UUID, status string) ([]*domain.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error
	RemoveParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error
	Close(ctx context.Context, conversationID uuid.UUID, closedBy *uuid.UUID) (*domain.Conversation, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	listing          ListingService
	reputation       ReputationService
	autoCloseWindow  time.Duration
	log              logger.Logger
}

func NewConversationService(conversationRepo repository.ConversationRepository, listing ListingService, reputation ReputationService, autoCloseWindow time.Duration, log logger.Logger) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		listing:          listing,
		reputation:       reputation,
		autoCloseWindow:  autoCloseWindow,
		log:              log,
	}
}

// Create идемпотентен по паре (item_ref, неупорядоченная пара участников):
// существующий неархивированный разговор возвращается вместо создания нового.
func (s *conversationService) Create(ctx context.Context, itemRef string, creatorID, counterpartyID uuid.UUID) (*domain.Conversation, bool, error) {
	itemRef = strings.TrimSpace(itemRef)
	if itemRef == "" || creatorID == counterpartyID {
		return nil, false, apperrors.ErrValidationFailed
	}

	exists, err := s.listing.Exists(ctx, itemRef)
	if err != nil {
		s.log.Error("Failed to check listing", "error", err, "item_ref", itemRef)
		return nil, false, apperrors.ErrTransientStore
	}
	if !exists {
		return nil, false, apperrors.ErrNotFound
	}

	existing, err := s.conversationRepo.FindByItemAndPair(ctx, itemRef, creatorID, counterpartyID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrConversationNotFound) {
		return nil, false, err
	}

	now := time.Now()
	conversation := &domain.Conversation{
		ID:                uuid.New(),
		ItemRef:           itemRef,
		Status:            domain.ConversationStatusActive,
		LastActivityAt:    now,
		AutoCloseDeadline: now.Add(s.autoCloseWindow),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, principalID := range []uuid.UUID{creatorID, counterpartyID} {
		conversation.Participants = append(conversation.Participants, &domain.Participant{
			ConversationID: conversation.ID,
			PrincipalID:    principalID,
			JoinedAt:       now,
			IsActive:       true,
		})
	}

	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, false, err
	}

	s.log.Info("Conversation created", "conversation_id", conversation.ID, "item_ref", itemRef)
	return conversation, true, nil
}

// GetForPrincipal отдаёт разговор только активному участнику. Неучастник
// получает общий отказ, не раскрывающий существование ресурса.
func (s *conversationService) GetForPrincipal(ctx context.Context, conversationID, principalID uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConversationNotFound) {
			return nil, apperrors.ErrNotAuthorized
		}
		return nil, err
	}
	if conversation.ActiveParticipant(principalID) == nil {
		return nil, apperrors.ErrNotAuthorized
	}

	return conversation, nil
}

func (s *conversationService) List(ctx context.Context, principalID uuid.UUID, status string) ([]*domain.Conversation, error) {
	if status != "" && status != domain.ConversationStatusActive &&
		status != domain.ConversationStatusClosed && status != domain.ConversationStatusArchived {
		return nil, apperrors.ErrValidationFailed
	}
	return s.conversationRepo.ListForPrincipal(ctx, principalID, status)
}

func (s *conversationService) AddParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	return s.conversationRepo.AddParticipant(ctx, conversationID, principalID)
}

func (s *conversationService) RemoveParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	return s.conversationRepo.RemoveParticipant(ctx, conversationID, principalID)
}

// Close идемпотентен: повторное закрытие возвращает разговор как есть.
func (s *conversationService) Close(ctx context.Context, conversationID uuid.UUID, closedBy *uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.Status != domain.ConversationStatusActive {
		return conversation, nil
	}

	if err := s.conversationRepo.Close(ctx, conversationID, closedBy, time.Now()); err != nil {
		return nil, err
	}

	conversation, err = s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.reputation.NotifyResolved(conversation.ID, conversation.ItemRef, conversation.ResolvedBy)
	s.log.Info("Conversation closed", "conversation_id", conversationID)

	return conversation, nil
}
