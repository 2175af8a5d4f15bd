package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"item_recovery/internal/config"
	"item_recovery/internal/service"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

// Dispatcher маршрутизирует входящие события в сервисы и рассылает
// результаты по соединениям комнаты. Рассылка идёт только после
// подтверждённой durable-записи; ошибки уходят только инициатору.
type Dispatcher struct {
	registry      *Registry
	conversations service.ConversationService
	messages      service.MessageService
	rateLimit     service.RateLimitService
	chatCfg       config.ChatConfig
	log           logger.Logger
}

func NewDispatcher(registry *Registry, conversations service.ConversationService, messages service.MessageService, rateLimit service.RateLimitService, chatCfg config.ChatConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		rateLimit:     rateLimit,
		chatCfg:       chatCfg,
		log:           log,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		eventsTotal.WithLabelValues("unknown", "rejected").Inc()
		c.enqueue(errorEvent(apperrors.ErrValidationFailed))
		return
	}

	if err := d.dispatch(ctx, c, envelope); err != nil {
		eventsTotal.WithLabelValues(envelope.Type, "rejected").Inc()
		c.enqueue(errorEvent(err))
		return
	}

	eventsTotal.WithLabelValues(envelope.Type, "ok").Inc()
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Client, envelope Envelope) error {
	switch envelope.Type {
	case EventJoin:
		var p JoinPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleJoin(ctx, c, p)
	case EventLeave:
		var p LeavePayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleLeave(c, p)
	case EventSend:
		var p SendPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleSend(ctx, c, p)
	case EventEdit:
		var p EditPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleEdit(ctx, c, p)
	case EventDelete:
		var p DeletePayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleDelete(ctx, c, p)
	case EventTyping:
		var p TypingPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleTyping(c, p)
	case EventMarkRead:
		var p MarkReadPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleMarkRead(ctx, c, p)
	case EventCreateConversation:
		var p CreateConversationPayload
		if err := decode(envelope.Data, &p); err != nil {
			return err
		}
		return d.handleCreateConversation(ctx, c, p)
	default:
		return apperrors.ErrValidationFailed
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, c *Client, p JoinPayload) error {
	if p.ConversationID == uuid.Nil {
		return apperrors.ErrValidationFailed
	}

	// Членство проверяется в момент входа в комнату, не на каждом событии
	conversation, err := d.conversations.GetForPrincipal(ctx, p.ConversationID, c.principalID)
	if err != nil {
		return err
	}

	first := d.registry.Join(p.ConversationID, c)
	c.rooms[p.ConversationID] = true

	readIDs, err := d.messages.MarkRead(ctx, p.ConversationID, c.principalID, nil)
	if err != nil {
		d.log.Warn("Failed to mark messages read on join", "error", err, "conversation_id", p.ConversationID)
	}

	if first {
		d.broadcast(p.ConversationID, presenceOnlineEvent(p.ConversationID, c.principalID), c)
	}
	if len(readIDs) > 0 {
		d.broadcast(p.ConversationID, messagesReadEvent(p.ConversationID, c.principalID, readIDs), c)
	}

	history, err := d.messages.History(ctx, p.ConversationID, c.principalID, d.chatCfg.HistoryPageLimit, 0)
	if err != nil {
		d.log.Warn("Failed to load history on join", "error", err, "conversation_id", p.ConversationID)
	}

	c.enqueue(joinedEvent(conversation, history))
	return nil
}

func (d *Dispatcher) handleLeave(c *Client, p LeavePayload) error {
	if !c.rooms[p.ConversationID] {
		return apperrors.ErrNotFound
	}

	delete(c.rooms, p.ConversationID)
	last := d.registry.Leave(p.ConversationID, c)
	if last {
		d.broadcast(p.ConversationID, presenceOfflineEvent(p.ConversationID, c.principalID), c)
	}

	return nil
}

func (d *Dispatcher) handleSend(ctx context.Context, c *Client, p SendPayload) error {
	if err := d.allowMutation(ctx, c); err != nil {
		return err
	}

	message, err := d.messages.Send(ctx, p.ConversationID, c.principalID, p.Content, p.Type, p.AttachmentURL)
	if err != nil {
		return err
	}
	messagesAppended.Inc()

	// Все соединения комнаты, включая другие устройства отправителя
	d.broadcast(p.ConversationID, messageNewEvent(message), nil)
	return nil
}

func (d *Dispatcher) handleEdit(ctx context.Context, c *Client, p EditPayload) error {
	if err := d.allowMutation(ctx, c); err != nil {
		return err
	}

	message, err := d.messages.Edit(ctx, p.ConversationID, p.MessageID, c.principalID, p.NewContent)
	if err != nil {
		return err
	}

	d.broadcast(p.ConversationID, messageEditedEvent(message), nil)
	return nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, c *Client, p DeletePayload) error {
	if err := d.allowMutation(ctx, c); err != nil {
		return err
	}

	message, err := d.messages.Delete(ctx, p.ConversationID, p.MessageID, c.principalID)
	if err != nil {
		return err
	}

	d.broadcast(p.ConversationID, messageDeletedEvent(message), nil)
	return nil
}

func (d *Dispatcher) handleTyping(c *Client, p TypingPayload) error {
	if !c.rooms[p.ConversationID] {
		return apperrors.ErrNotAuthorized
	}

	// Без персистентности, отправителю не эхуется
	d.broadcast(p.ConversationID, presenceTypingEvent(p.ConversationID, c.principalID, p.IsTyping), c)
	return nil
}

func (d *Dispatcher) handleMarkRead(ctx context.Context, c *Client, p MarkReadPayload) error {
	readIDs, err := d.messages.MarkRead(ctx, p.ConversationID, c.principalID, p.MessageIDs)
	if err != nil {
		return err
	}

	if len(readIDs) > 0 {
		d.broadcast(p.ConversationID, messagesReadEvent(p.ConversationID, c.principalID, readIDs), c)
	}
	return nil
}

func (d *Dispatcher) handleCreateConversation(ctx context.Context, c *Client, p CreateConversationPayload) error {
	if err := d.allowMutation(ctx, c); err != nil {
		return err
	}

	conversation, created, err := d.conversations.Create(ctx, p.ItemRef, c.principalID, p.CounterpartyID)
	if err != nil {
		return err
	}

	if created && p.InitialMessage != nil {
		if _, err := d.messages.Send(ctx, conversation.ID, c.principalID, *p.InitialMessage, "", nil); err != nil {
			d.log.Warn("Failed to append initial message", "error", err, "conversation_id", conversation.ID)
		} else {
			messagesAppended.Inc()
		}
	}

	d.registry.Join(conversation.ID, c)
	c.rooms[conversation.ID] = true

	// Персональный канал: доставляется только при открытом соединении,
	// очереди отложенных уведомлений здесь нет
	if created {
		for _, peer := range d.registry.PrincipalConnections(p.CounterpartyID) {
			peer.enqueue(conversationNewEvent(conversation))
		}
	}

	c.enqueue(conversationNewEvent(conversation))
	return nil
}

// disconnect снимает соединение со всех комнат. Начатые durable-записи
// уже завершились к этому моменту, их рассылка просто пропустит этот handle.
func (d *Dispatcher) disconnect(c *Client) {
	for conversationID := range c.rooms {
		last := d.registry.Leave(conversationID, c)
		if last {
			d.broadcast(conversationID, presenceOfflineEvent(conversationID, c.principalID), c)
		}
	}
	c.rooms = make(map[uuid.UUID]bool)
	d.registry.Unregister(c)
}

// broadcast шлёт событие всем соединениям комнаты, кроме except.
func (d *Dispatcher) broadcast(conversationID uuid.UUID, event OutboundEvent, except *Client) {
	clients := d.registry.ConnectionsFor(conversationID)
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error("Failed to marshal broadcast", "error", err, "type", event.Type)
		return
	}

	for _, client := range clients {
		if client == except {
			continue
		}
		client.enqueueRaw(payload)
	}
}

func (d *Dispatcher) allowMutation(ctx context.Context, c *Client) error {
	if d.rateLimit == nil {
		return nil
	}

	key := "chat:events:" + c.principalID.String()
	allowed, err := d.rateLimit.Allow(ctx, key, d.chatCfg.EventRateLimit, d.chatCfg.EventRateWindow)
	if err != nil {
		// Недоступный лимитер не должен валить трафик
		d.log.Warn("Rate limit check failed", "error", err, "principal_id", c.principalID)
		return nil
	}
	if !allowed {
		return apperrors.ErrRateLimited
	}
	return nil
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return apperrors.ErrValidationFailed
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.ErrValidationFailed
	}
	return nil
}
