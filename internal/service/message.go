package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"item_recovery/internal/config"
	"item_recovery/internal/domain"
	"item_recovery/internal/repository"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

type MessageService interface {
	Send(ctx context.Context, conversationID, senderID uuid.UUID, content, messageType string, attachmentURL *string) (*domain.Message, error)
	Edit(ctx context.Context, conversationID, messageID, requesterID uuid.UUID, newContent string) (*domain.Message, error)
	Delete(ctx context.Context, conversationID, messageID, requesterID uuid.UUID) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error)
	UnreadCount(ctx context.Context, conversationID, principalID uuid.UUID) (int, error)
	History(ctx context.Context, conversationID, requesterID uuid.UUID, limit, offset int) ([]*domain.Message, error)
}

type messageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	chatCfg          config.ChatConfig
	locks            *conversationLocks
	log              logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, conversationRepo repository.ConversationRepository, chatCfg config.ChatConfig, log logger.Logger) MessageService {
	return &messageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		chatCfg:          chatCfg,
		locks:            newConversationLocks(),
		log:              log,
	}
}

// conversationLocks линеаризует мутации в пределах одного разговора.
// Разные разговоры не конкурируют между собой за один глобальный лок.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *conversationLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}

func (s *messageService) Send(ctx context.Context, conversationID, senderID uuid.UUID, content, messageType string, attachmentURL *string) (*domain.Message, error) {
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	if !domain.ValidMessageType(messageType) {
		return nil, apperrors.ErrValidationFailed
	}
	content = strings.TrimSpace(content)
	if content == "" && attachmentURL == nil {
		return nil, apperrors.ErrValidationFailed
	}
	if len(content) > s.chatCfg.MaxMessageLength {
		return nil, apperrors.ErrValidationFailed
	}

	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsActive() {
		return nil, apperrors.ErrConversationNotActive
	}
	if conversation.ActiveParticipant(senderID) == nil {
		return nil, apperrors.ErrNotAuthorized
	}

	now := time.Now()
	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           messageType,
		AttachmentURL:  attachmentURL,
		CreatedAt:      now,
	}

	// Любое принятое сообщение сдвигает единственный таймер жизненного цикла
	deadline := now.Add(s.chatCfg.AutoCloseWindow)
	if err := s.messageRepo.Append(ctx, message, deadline); err != nil {
		return nil, err
	}

	return message, nil
}

func (s *messageService) Edit(ctx context.Context, conversationID, messageID, requesterID uuid.UUID, newContent string) (*domain.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" || len(newContent) > s.chatCfg.MaxMessageLength {
		return nil, apperrors.ErrValidationFailed
	}

	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	message, err := s.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != requesterID {
		return nil, apperrors.ErrNotAuthorized
	}
	if message.IsDeleted {
		return nil, apperrors.ErrMessageDeleted
	}

	// Оригинальное содержимое фиксируется только первой правкой
	if !message.IsEdited {
		original := message.Content
		message.OriginalContent = &original
	}

	now := time.Now()
	message.Content = newContent
	message.IsEdited = true
	message.EditedAt = &now

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return message, nil
}

// Delete идемпотентен: повторное удаление - no-op с тем же итоговым состоянием.
func (s *messageService) Delete(ctx context.Context, conversationID, messageID, requesterID uuid.UUID) (*domain.Message, error) {
	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	message, err := s.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != requesterID {
		return nil, apperrors.ErrNotAuthorized
	}
	if message.IsDeleted {
		return message, nil
	}

	now := time.Now()
	message.Content = domain.DeletedContent
	message.IsDeleted = true
	message.DeletedAt = &now

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return message, nil
}

func (s *messageService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error) {
	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.ActiveParticipant(readerID) == nil {
		return nil, apperrors.ErrNotAuthorized
	}

	now := time.Now()
	affected, err := s.messageRepo.MarkRead(ctx, conversationID, readerID, messageIDs, now)
	if err != nil {
		return nil, err
	}

	if err := s.conversationRepo.UpdateLastSeen(ctx, conversationID, readerID, now); err != nil {
		s.log.Warn("Failed to update last seen", "error", err, "conversation_id", conversationID)
	}

	return affected, nil
}

func (s *messageService) UnreadCount(ctx context.Context, conversationID, principalID uuid.UUID) (int, error) {
	return s.messageRepo.UnreadCount(ctx, conversationID, principalID)
}

func (s *messageService) History(ctx context.Context, conversationID, requesterID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.ActiveParticipant(requesterID) == nil {
		return nil, apperrors.ErrNotAuthorized
	}

	if limit <= 0 || limit > s.chatCfg.HistoryPageLimit {
		limit = s.chatCfg.HistoryPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, offset)
}
