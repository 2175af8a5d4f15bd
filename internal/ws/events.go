package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
)

// Входящие события - закрытый набор вариантов: одно имя, один payload.
// Валидация полей идёт при декодировании конкретного варианта.
const (
	EventJoin               = "join"
	EventLeave              = "leave"
	EventSend               = "send"
	EventEdit               = "edit"
	EventDelete             = "delete"
	EventTyping             = "typing"
	EventMarkRead           = "markRead"
	EventCreateConversation = "createConversation"
)

// Исходящие события
const (
	EventPresenceOnline  = "presence:online"
	EventPresenceOffline = "presence:offline"
	EventPresenceTyping  = "presence:typing"
	EventMessageNew      = "message:new"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventMessagesRead    = "messages:read"
	EventConversationNew = "conversation:new"
	EventJoined          = "conversation:joined"
	EventError           = "error"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type JoinPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type LeavePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type SendPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"content"`
	Type           string    `json:"type,omitempty"`
	AttachmentURL  *string   `json:"attachment,omitempty"`
}

type EditPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	NewContent     string    `json:"newContent"`
}

type DeletePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	IsTyping       bool      `json:"isTyping"`
}

type MarkReadPayload struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	MessageIDs     []uuid.UUID `json:"messageIds,omitempty"`
}

type CreateConversationPayload struct {
	ItemRef        string    `json:"itemRef"`
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	InitialMessage *string   `json:"initialMessage,omitempty"`
}

type OutboundEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type presenceData struct {
	ConversationID uuid.UUID `json:"conversationId"`
	PrincipalID    uuid.UUID `json:"principalId"`
	IsTyping       *bool     `json:"isTyping,omitempty"`
}

type messageNewData struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *domain.Message `json:"message"`
}

type messageEditedData struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	MessageID      uuid.UUID  `json:"messageId"`
	NewContent     string     `json:"newContent"`
	EditedAt       *time.Time `json:"editedAt"`
}

type messageDeletedData struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	MessageID      uuid.UUID  `json:"messageId"`
	DeletedAt      *time.Time `json:"deletedAt"`
}

type messagesReadData struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	PrincipalID    uuid.UUID   `json:"principalId"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
}

type conversationData struct {
	Conversation *domain.Conversation `json:"conversation"`
}

type joinedData struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []*domain.Message    `json:"messages"`
}

type errorData struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func presenceOnlineEvent(conversationID, principalID uuid.UUID) OutboundEvent {
	return OutboundEvent{Type: EventPresenceOnline, Data: presenceData{ConversationID: conversationID, PrincipalID: principalID}}
}

func presenceOfflineEvent(conversationID, principalID uuid.UUID) OutboundEvent {
	return OutboundEvent{Type: EventPresenceOffline, Data: presenceData{ConversationID: conversationID, PrincipalID: principalID}}
}

func presenceTypingEvent(conversationID, principalID uuid.UUID, isTyping bool) OutboundEvent {
	return OutboundEvent{Type: EventPresenceTyping, Data: presenceData{ConversationID: conversationID, PrincipalID: principalID, IsTyping: &isTyping}}
}

func messageNewEvent(message *domain.Message) OutboundEvent {
	return OutboundEvent{Type: EventMessageNew, Data: messageNewData{ConversationID: message.ConversationID, Message: message}}
}

func messageEditedEvent(message *domain.Message) OutboundEvent {
	return OutboundEvent{Type: EventMessageEdited, Data: messageEditedData{
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		NewContent:     message.Content,
		EditedAt:       message.EditedAt,
	}}
}

func messageDeletedEvent(message *domain.Message) OutboundEvent {
	return OutboundEvent{Type: EventMessageDeleted, Data: messageDeletedData{
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		DeletedAt:      message.DeletedAt,
	}}
}

func messagesReadEvent(conversationID, principalID uuid.UUID, messageIDs []uuid.UUID) OutboundEvent {
	return OutboundEvent{Type: EventMessagesRead, Data: messagesReadData{
		ConversationID: conversationID,
		PrincipalID:    principalID,
		MessageIDs:     messageIDs,
	}}
}

func conversationNewEvent(conversation *domain.Conversation) OutboundEvent {
	return OutboundEvent{Type: EventConversationNew, Data: conversationData{Conversation: conversation}}
}

func joinedEvent(conversation *domain.Conversation, messages []*domain.Message) OutboundEvent {
	return OutboundEvent{Type: EventJoined, Data: joinedData{Conversation: conversation, Messages: messages}}
}

func errorEvent(err error) OutboundEvent {
	return OutboundEvent{Type: EventError, Data: errorData{
		Code:      apperrors.WireCode(err),
		Message:   publicMessage(err),
		Retryable: apperrors.Retryable(err),
	}}
}

// publicMessage отдаёт наружу только категорийные формулировки
func publicMessage(err error) string {
	switch apperrors.WireCode(err) {
	case "not_authenticated":
		return "authentication required"
	case "not_authorized":
		return "access denied"
	case "not_found":
		return "resource not found"
	case "conversation_not_active":
		return "conversation is not active"
	case "message_deleted":
		return "message has been deleted"
	case "duplicate_conversation":
		return "conversation already exists"
	case "validation_failed":
		return "invalid request"
	case "rate_limited":
		return "too many events, slow down"
	case "transient_store_failure":
		return "temporary failure, retry"
	default:
		return "internal error"
	}
}
