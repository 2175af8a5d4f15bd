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

type MessageRepository interface {
	Append(ctx context.Context, message *domain.Message, autoCloseDeadline time.Time) error
	GetByID(ctx context.Context, conversationID, messageID uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) ([]uuid.UUID, error)
	UnreadCount(ctx context.Context, conversationID, principalID uuid.UUID) (int, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `
	id, conversation_id, sender_id, content, type, attachment_url,
	is_read, read_at, is_edited, edited_at, original_content,
	is_deleted, deleted_at, created_at
`

// Append пишет сообщение и снимок последнего сообщения одной транзакцией:
// при откате не остаётся ни записи, ни сдвинутых last_activity/дедлайна.
func (r *messageRepository) Append(ctx context.Context, message *domain.Message, autoCloseDeadline time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return apperrors.ErrTransientStore
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, attachment_url,
		                      is_read, is_edited, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, false, false, $7)
	`
	_, err = tx.Exec(ctx, insert,
		message.ID, message.ConversationID, message.SenderID,
		message.Content, message.Type, message.AttachmentURL, message.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "conversation_id", message.ConversationID)
		return apperrors.ErrTransientStore
	}

	update := `
		UPDATE conversations
		SET last_message_content = $2, last_message_sender_id = $3,
		    last_message_at = $4, last_message_type = $5,
		    last_activity_at = $4, auto_close_deadline = $6, updated_at = $4
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, update,
		message.ConversationID, message.Content, message.SenderID,
		message.CreatedAt, message.Type, autoCloseDeadline,
	)
	if err != nil {
		r.log.Error("Failed to update last message snapshot", "error", err, "conversation_id", message.ConversationID)
		return apperrors.ErrTransientStore
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit message", "error", err)
		return apperrors.ErrTransientStore
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, conversationID, messageID uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 AND id = $2`

	message, err := scanMessage(r.db.QueryRow(ctx, query, conversationID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", messageID)
		return nil, apperrors.ErrTransientStore
	}

	return message, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "conversation_id", conversationID)
		return nil, apperrors.ErrTransientStore
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, apperrors.ErrTransientStore
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $3, is_edited = $4, edited_at = $5, original_content = $6,
		    is_deleted = $7, deleted_at = $8
		WHERE conversation_id = $1 AND id = $2
	`

	tag, err := r.db.Exec(ctx, query,
		message.ConversationID, message.ID,
		message.Content, message.IsEdited, message.EditedAt, message.OriginalContent,
		message.IsDeleted, message.DeletedAt,
	)
	if err != nil {
		r.log.Error("Failed to update message", "error", err, "message_id", message.ID)
		return apperrors.ErrTransientStore
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

// MarkRead помечает чужие непрочитанные сообщения и возвращает id затронутых.
// При пустом messageIDs применяется ко всем непрочитанным.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE messages
		SET is_read = true, read_at = $3
		WHERE conversation_id = $1 AND sender_id <> $2
		  AND is_read = false AND is_deleted = false
	`
	args := []interface{}{conversationID, readerID, readAt}
	if len(messageIDs) > 0 {
		query += ` AND id = ANY($4)`
		args = append(args, messageIDs)
	}
	query += ` RETURNING id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "conversation_id", conversationID)
		return nil, apperrors.ErrTransientStore
	}
	defer rows.Close()

	var affected []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			r.log.Error("Failed to scan read message id", "error", err)
			return nil, apperrors.ErrTransientStore
		}
		affected = append(affected, id)
	}

	return affected, nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, conversationID, principalID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2
		  AND is_read = false AND is_deleted = false
	`

	var count int
	if err := r.db.QueryRow(ctx, query, conversationID, principalID).Scan(&count); err != nil {
		r.log.Error("Failed to count unread messages", "error", err, "conversation_id", conversationID)
		return 0, apperrors.ErrTransientStore
	}

	return count, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	message := &domain.Message{}
	var (
		readAt    sql.NullTime
		editedAt  sql.NullTime
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&message.ID, &message.ConversationID, &message.SenderID,
		&message.Content, &message.Type, &message.AttachmentURL,
		&message.IsRead, &readAt, &message.IsEdited, &editedAt, &message.OriginalContent,
		&message.IsDeleted, &deletedAt, &message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if readAt.Valid {
		message.ReadAt = &readAt.Time
	}
	if editedAt.Valid {
		message.EditedAt = &editedAt.Time
	}
	if deletedAt.Valid {
		message.DeletedAt = &deletedAt.Time
	}

	return message, nil
}
