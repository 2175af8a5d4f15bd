package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Registry - процессная таблица маршрутизации: разговор -> открытые
// соединения, принципал -> его соединения (персональный канал).
// Чисто производное состояние: при рестарте процесса теряется без
// последствий и не является источником истины для персистентных полей.
// Авторизацию членства делает Dispatcher, не Registry.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[uuid.UUID]map[*Client]struct{}
	principals map[uuid.UUID]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		principals: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

// Register учитывает соединение в персональном канале принципала.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.principals[c.principalID]
	if !ok {
		conns = make(map[*Client]struct{})
		r.principals[c.principalID] = conns
	}
	conns[c] = struct{}{}
}

// Unregister снимает соединение с персонального канала.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.principals[c.principalID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.principals, c.principalID)
	}
}

// Join регистрирует соединение в комнате. Возвращает true, если это
// первое соединение данного принципала в комнате (переход offline->online).
func (r *Registry) Join(conversationID uuid.UUID, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[conversationID] = room
	}

	first := !r.principalInRoomLocked(room, c.principalID)
	room[c] = struct{}{}
	return first
}

// Leave убирает одно соединение из комнаты. Возвращает true, если у
// принципала в комнате не осталось соединений (переход online->offline).
func (r *Registry) Leave(conversationID uuid.UUID, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}

	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, conversationID)
		return true
	}
	return !r.principalInRoomLocked(room, c.principalID)
}

func (r *Registry) ConnectionsFor(conversationID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) PrincipalConnections(principalID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.principals[principalID]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) IsOnline(conversationID, principalID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		return false
	}
	return r.principalInRoomLocked(room, principalID)
}

func (r *Registry) principalInRoomLocked(room map[*Client]struct{}, principalID uuid.UUID) bool {
	for c := range room {
		if c.principalID == principalID {
			return true
		}
	}
	return false
}
