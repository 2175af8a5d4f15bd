package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"item_recovery/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Client - одно websocket-соединение аутентифицированного принципала.
// События одного соединения обрабатываются строго по очереди в readPump;
// события разных соединений идут параллельно.
type Client struct {
	conn        *websocket.Conn
	send        chan []byte
	principalID uuid.UUID
	displayName string

	// rooms трогает только горутина readPump, синхронизация не нужна
	rooms map[uuid.UUID]bool

	closeMu sync.Mutex
	closed  bool

	dispatcher *Dispatcher
	log        logger.Logger
}

func NewClient(conn *websocket.Conn, principalID uuid.UUID, displayName string, dispatcher *Dispatcher, log logger.Logger) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		principalID: principalID,
		displayName: displayName,
		rooms:       make(map[uuid.UUID]bool),
		dispatcher:  dispatcher,
		log:         log,
	}
}

// Run блокирует до закрытия соединения.
func (c *Client) Run() {
	c.dispatcher.registry.Register(c)
	connectionsActive.Inc()

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.dispatcher.disconnect(c)
		connectionsActive.Dec()
		c.conn.Close()

		c.closeMu.Lock()
		c.closed = true
		close(c.send)
		c.closeMu.Unlock()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err, "principal_id", c.principalID)
			}
			return
		}

		// Следующее событие этого соединения не читается, пока текущее
		// не обработано до конца
		c.dispatcher.Dispatch(context.Background(), c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue кладёт событие в буфер соединения. Медленный клиент события
// теряет, а не блокирует рассылку остальным.
func (c *Client) enqueue(event OutboundEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Failed to marshal outbound event", "error", err, "type", event.Type)
		return
	}
	c.enqueueRaw(payload)
}

func (c *Client) enqueueRaw(payload []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	// Отключившийся адресат молча пропускается
	if c.closed {
		return
	}

	select {
	case c.send <- payload:
	default:
		droppedSends.Inc()
	}
}
