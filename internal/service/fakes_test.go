package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

var testLogger = logger.New("error")

// fakeConversationRepo - потокобезопасное in-memory хранилище для тестов сервисов.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
	closeErr      map[uuid.UUID]error
	closedIDs     []uuid.UUID
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		closeErr:      make(map[uuid.UUID]error),
	}
}

func (r *fakeConversationRepo) put(c *domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[c.ID] = c
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *domain.Conversation) error {
	r.put(conversation)
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) FindByItemAndPair(ctx context.Context, itemRef string, first, second uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conversations {
		if c.ItemRef != itemRef || c.Status == domain.ConversationStatusArchived {
			continue
		}
		if hasParticipant(c, first) && hasParticipant(c, second) {
			return c, nil
		}
	}
	return nil, apperrors.ErrConversationNotFound
}

func hasParticipant(c *domain.Conversation, principalID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.PrincipalID == principalID {
			return true
		}
	}
	return false
}

func (r *fakeConversationRepo) ListForPrincipal(ctx context.Context, principalID uuid.UUID, status string) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Conversation
	for _, c := range r.conversations {
		if status != "" && c.Status != status {
			continue
		}
		if c.ActiveParticipant(principalID) != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) AddParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	for _, p := range c.Participants {
		if p.PrincipalID == principalID {
			p.IsActive = true
			return nil
		}
	}
	c.Participants = append(c.Participants, &domain.Participant{
		ConversationID: conversationID,
		PrincipalID:    principalID,
		JoinedAt:       time.Now(),
		IsActive:       true,
	})
	return nil
}

func (r *fakeConversationRepo) RemoveParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	for _, p := range c.Participants {
		if p.PrincipalID == principalID && p.IsActive {
			p.IsActive = false
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *fakeConversationRepo) UpdateLastSeen(ctx context.Context, conversationID, principalID uuid.UUID, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	if p := c.ActiveParticipant(principalID); p != nil {
		p.LastSeenAt = &seenAt
	}
	return nil
}

func (r *fakeConversationRepo) Close(ctx context.Context, conversationID uuid.UUID, closedBy *uuid.UUID, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.closeErr[conversationID]; err != nil {
		return err
	}

	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	if c.Status != domain.ConversationStatusActive {
		return nil
	}
	c.Status = domain.ConversationStatusClosed
	c.IsResolved = true
	c.ResolvedAt = &closedAt
	c.ResolvedBy = closedBy
	r.closedIDs = append(r.closedIDs, conversationID)
	return nil
}

func (r *fakeConversationRepo) ListExpired(ctx context.Context, now time.Time) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Conversation
	for _, c := range r.conversations {
		if c.Status == domain.ConversationStatusActive && c.AutoCloseDeadline.Before(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeMessageRepo хранит сообщения в порядке добавления и запоминает
// последний переданный дедлайн автозакрытия.
type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.Message
	order     []uuid.UUID
	deadlines map[uuid.UUID]time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[uuid.UUID]*domain.Message),
		deadlines: make(map[uuid.UUID]time.Time),
	}
}

func (r *fakeMessageRepo) Append(ctx context.Context, message *domain.Message, autoCloseDeadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *message
	r.messages[message.ID] = &copied
	r.order = append(r.order, message.ID)
	r.deadlines[message.ConversationID] = autoCloseDeadline
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, conversationID, messageID uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok || m.ConversationID != conversationID {
		return nil, apperrors.ErrMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Message
	for _, id := range r.order {
		m := r.messages[id]
		if m.ConversationID != conversationID {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[message.ID]; !ok {
		return apperrors.ErrMessageNotFound
	}
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filter := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		filter[id] = true
	}

	var affected []uuid.UUID
	for _, id := range r.order {
		m := r.messages[id]
		if m.ConversationID != conversationID || m.SenderID == readerID {
			continue
		}
		if m.IsRead || m.IsDeleted {
			continue
		}
		if len(filter) > 0 && !filter[id] {
			continue
		}
		m.IsRead = true
		m.ReadAt = &readAt
		affected = append(affected, id)
	}
	return affected, nil
}

func (r *fakeMessageRepo) UnreadCount(ctx context.Context, conversationID, principalID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.SenderID != principalID && !m.IsRead && !m.IsDeleted {
			count++
		}
	}
	return count, nil
}

type fakeListing struct {
	known map[string]bool
	err   error
}

func (l *fakeListing) Exists(ctx context.Context, itemRef string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.known[itemRef], nil
}

type fakeReputation struct {
	mu       sync.Mutex
	notified []uuid.UUID
}

func (r *fakeReputation) NotifyResolved(conversationID uuid.UUID, itemRef string, resolvedBy *uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, conversationID)
}

func (r *fakeReputation) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notified)
}

func activeConversation(participants ...uuid.UUID) *domain.Conversation {
	now := time.Now()
	c := &domain.Conversation{
		ID:                uuid.New(),
		ItemRef:           "item-123",
		Status:            domain.ConversationStatusActive,
		LastActivityAt:    now,
		AutoCloseDeadline: now.Add(7 * 24 * time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, id := range participants {
		c.Participants = append(c.Participants, &domain.Participant{
			ConversationID: c.ID,
			PrincipalID:    id,
			JoinedAt:       now,
			IsActive:       true,
		})
	}
	return c
}
