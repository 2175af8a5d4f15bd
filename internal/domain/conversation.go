package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID                uuid.UUID        `json:"id"`
	ItemRef           string           `json:"item_ref"`
	Status            string           `json:"status"`
	Participants      []*Participant   `json:"participants,omitempty"`
	LastMessage       *MessageSnapshot `json:"last_message,omitempty"`
	LastActivityAt    time.Time        `json:"last_activity_at"`
	AutoCloseDeadline time.Time        `json:"auto_close_deadline"`
	IsResolved        bool             `json:"is_resolved"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy        *uuid.UUID       `json:"resolved_by,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Participant - запись об участии принципала в разговоре.
// Удаление участника мягкое: is_active=false, история сохраняется.
type Participant struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	PrincipalID    uuid.UUID  `json:"principal_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// MessageSnapshot - денормализованная копия последнего сообщения,
// обновляется атомарно с записью сообщения.
type MessageSnapshot struct {
	Content  string    `json:"content"`
	SenderID uuid.UUID `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
	Type     string    `json:"type"`
}

const (
	ConversationStatusActive   = "active"
	ConversationStatusClosed   = "closed"
	ConversationStatusArchived = "archived"
)

// IsActive сообщает, принимает ли разговор новые сообщения.
func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusActive
}

// ActiveParticipant возвращает активную запись участника или nil.
func (c *Conversation) ActiveParticipant(principalID uuid.UUID) *Participant {
	for _, p := range c.Participants {
		if p.PrincipalID == principalID && p.IsActive {
			return p
		}
	}
	return nil
}
