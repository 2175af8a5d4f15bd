package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	FindByItemAndPair(ctx context.Context, itemRef string, first, second uuid.UUID) (*domain.Conversation, error)
	ListForPrincipal(ctx context.Context, principalID uuid.UUID, status string) ([]*domain.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error
	RemoveParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error
	UpdateLastSeen(ctx context.Context, conversationID, principalID uuid.UUID, seenAt time.Time) error
	Close(ctx context.Context, conversationID uuid.UUID, closedBy *uuid.UUID, closedAt time.Time) error
	ListExpired(ctx context.Context, now time.Time) ([]*domain.Conversation, error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

const conversationColumns = `
	id, item_ref, status,
	last_message_content, last_message_sender_id, last_message_at, last_message_type,
	last_activity_at, auto_close_deadline,
	is_resolved, resolved_at, resolved_by,
	created_at, updated_at
`

func (r *conversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return apperrors.ErrTransientStore
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO conversations (id, item_ref, status, last_activity_at, auto_close_deadline,
		                           is_resolved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.Exec(ctx, query,
		conversation.ID, conversation.ItemRef, conversation.Status,
		conversation.LastActivityAt, conversation.AutoCloseDeadline,
		conversation.IsResolved, conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create conversation", "error", err)
		return apperrors.ErrTransientStore
	}

	for _, p := range conversation.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, principal_id, joined_at, is_active)
			VALUES ($1, $2, $3, $4)
		`, p.ConversationID, p.PrincipalID, p.JoinedAt, p.IsActive)
		if err != nil {
			r.log.Error("Failed to create participant", "error", err, "principal_id", p.PrincipalID)
			return apperrors.ErrTransientStore
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit conversation", "error", err)
		return apperrors.ErrTransientStore
	}

	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conversation, err := r.scanConversation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, apperrors.ErrTransientStore
	}

	if err := r.loadParticipants(ctx, conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}

// FindByItemAndPair ищет неархивированный разговор по ссылке на вещь и
// неупорядоченной паре участников. Дубликаты предотвращаются этим поиском
// перед созданием, а не ограничением схемы.
func (r *conversationRepository) FindByItemAndPair(ctx context.Context, itemRef string, first, second uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.item_ref = $1
		  AND c.status <> $2
		  AND EXISTS (SELECT 1 FROM conversation_participants p
		              WHERE p.conversation_id = c.id AND p.principal_id = $3)
		  AND EXISTS (SELECT 1 FROM conversation_participants p
		              WHERE p.conversation_id = c.id AND p.principal_id = $4)
		ORDER BY c.created_at DESC
		LIMIT 1
	`

	conversation, err := r.scanConversation(r.db.QueryRow(ctx, query, itemRef, domain.ConversationStatusArchived, first, second))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to find conversation by pair", "error", err, "item_ref", itemRef)
		return nil, apperrors.ErrTransientStore
	}

	if err := r.loadParticipants(ctx, conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}

func (r *conversationRepository) ListForPrincipal(ctx context.Context, principalID uuid.UUID, status string) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.principal_id = $1 AND p.is_active = true
	`
	args := []interface{}{principalID}
	if status != "" {
		query += ` AND c.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "principal_id", principalID)
		return nil, apperrors.ErrTransientStore
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conversation, err := r.scanConversation(rows)
		if err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, apperrors.ErrTransientStore
		}
		conversations = append(conversations, conversation)
	}

	for _, conversation := range conversations {
		if err := r.loadParticipants(ctx, conversation); err != nil {
			return nil, err
		}
	}

	return conversations, nil
}

// AddParticipant идемпотентен: повторное добавление реактивирует мягко
// удалённую запись, не создавая дубликата.
func (r *conversationRepository) AddParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, principal_id, joined_at, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (conversation_id, principal_id)
		DO UPDATE SET is_active = true
	`

	_, err := r.db.Exec(ctx, query, conversationID, principalID, time.Now())
	if err != nil {
		r.log.Error("Failed to add participant", "error", err, "conversation_id", conversationID)
		return apperrors.ErrTransientStore
	}

	return nil
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, principalID uuid.UUID) error {
	query := `
		UPDATE conversation_participants
		SET is_active = false
		WHERE conversation_id = $1 AND principal_id = $2
	`

	tag, err := r.db.Exec(ctx, query, conversationID, principalID)
	if err != nil {
		r.log.Error("Failed to remove participant", "error", err, "conversation_id", conversationID)
		return apperrors.ErrTransientStore
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *conversationRepository) UpdateLastSeen(ctx context.Context, conversationID, principalID uuid.UUID, seenAt time.Time) error {
	query := `
		UPDATE conversation_participants
		SET last_seen_at = $3
		WHERE conversation_id = $1 AND principal_id = $2
	`

	_, err := r.db.Exec(ctx, query, conversationID, principalID, seenAt)
	if err != nil {
		r.log.Error("Failed to update last seen", "error", err, "conversation_id", conversationID)
		return apperrors.ErrTransientStore
	}

	return nil
}

// Close идемпотентен: уже закрытый разговор не трогается, resolved-метаданные
// выставляются не более одного раза.
func (r *conversationRepository) Close(ctx context.Context, conversationID uuid.UUID, closedBy *uuid.UUID, closedAt time.Time) error {
	// resolved_by у автозакрытия остаётся пустым
	query := `
		UPDATE conversations
		SET status = $2, is_resolved = true, resolved_at = $3, resolved_by = $4, updated_at = $3
		WHERE id = $1 AND status = $5
	`

	_, err := r.db.Exec(ctx, query,
		conversationID, domain.ConversationStatusClosed, closedAt, closedBy,
		domain.ConversationStatusActive,
	)
	if err != nil {
		r.log.Error("Failed to close conversation", "error", err, "conversation_id", conversationID)
		return apperrors.ErrTransientStore
	}

	return nil
}

func (r *conversationRepository) ListExpired(ctx context.Context, now time.Time) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE status = $1 AND auto_close_deadline < $2
	`

	rows, err := r.db.Query(ctx, query, domain.ConversationStatusActive, now)
	if err != nil {
		r.log.Error("Failed to list expired conversations", "error", err)
		return nil, apperrors.ErrTransientStore
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conversation, err := r.scanConversation(rows)
		if err != nil {
			r.log.Error("Failed to scan expired conversation", "error", err)
			return nil, apperrors.ErrTransientStore
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (r *conversationRepository) loadParticipants(ctx context.Context, conversation *domain.Conversation) error {
	query := `
		SELECT conversation_id, principal_id, joined_at, last_seen_at, is_active
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, conversation.ID)
	if err != nil {
		r.log.Error("Failed to load participants", "error", err, "conversation_id", conversation.ID)
		return apperrors.ErrTransientStore
	}
	defer rows.Close()

	for rows.Next() {
		p := &domain.Participant{}
		var lastSeen sql.NullTime
		if err := rows.Scan(&p.ConversationID, &p.PrincipalID, &p.JoinedAt, &lastSeen, &p.IsActive); err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return apperrors.ErrTransientStore
		}
		if lastSeen.Valid {
			p.LastSeenAt = &lastSeen.Time
		}
		conversation.Participants = append(conversation.Participants, p)
	}

	return nil
}

func (r *conversationRepository) scanConversation(row pgx.Row) (*domain.Conversation, error) {
	conversation := &domain.Conversation{}
	var (
		lastMessageContent  sql.NullString
		lastMessageSenderID *uuid.UUID
		lastMessageAt       sql.NullTime
		lastMessageType     sql.NullString
		resolvedAt          sql.NullTime
	)

	err := row.Scan(
		&conversation.ID, &conversation.ItemRef, &conversation.Status,
		&lastMessageContent, &lastMessageSenderID, &lastMessageAt, &lastMessageType,
		&conversation.LastActivityAt, &conversation.AutoCloseDeadline,
		&conversation.IsResolved, &resolvedAt, &conversation.ResolvedBy,
		&conversation.CreatedAt, &conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastMessageContent.Valid && lastMessageSenderID != nil && lastMessageAt.Valid {
		conversation.LastMessage = &domain.MessageSnapshot{
			Content:  lastMessageContent.String,
			SenderID: *lastMessageSenderID,
			SentAt:   lastMessageAt.Time,
			Type:     lastMessageType.String,
		}
	}
	if resolvedAt.Valid {
		conversation.ResolvedAt = &resolvedAt.Time
	}

	return conversation, nil
}
