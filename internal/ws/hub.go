package ws

import (
	"context"
	"sync"
	"time"

	"tush00nka/bbbab_chatsync/internal/metrics"
	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Константы
const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4 * 1024
	maxSendChannelSize = 256
	defaultRoomSize    = 500
)

// Типы событий
const (
	EventTypeTyping         = "typing"
	EventTypeMessageNew     = "message.new"
	EventTypeMessageUpdated = "message.updated"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeRoomInfo       = "room_info"
	EventTypeError          = "error"
)

// OutEvent исходящее событие
type OutEvent struct {
	Type        string    `json:"type"`
	Message     any       `json:"message,omitempty"`
	UserID      uint      `json:"user_id,omitempty"`
	ChatID      uint      `json:"chat_id,omitempty"`
	MessageID   uint      `json:"message_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	IsTyping    *bool     `json:"is_typing,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// InEvent входящее событие
type InEvent struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// HubOptions опции хаба
type HubOptions struct {
	MaxRoomSize     int
	CleanupInterval time.Duration
	IdleRoomTTL     time.Duration
}

// Hub управляет комнатами чатов и их соединениями
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uint]*Room
	options  HubOptions
	shutdown chan struct{}
	once     sync.Once
	metrics  Metrics
}

// Metrics счетчики хаба
type Metrics struct {
	EventsSent  atomic.Int64
	Connections atomic.Int64
	Dropped     atomic.Int64
}

// NewHub создает новый хаб
func NewHub(options ...HubOptions) *Hub {
	opts := HubOptions{
		MaxRoomSize:     defaultRoomSize,
		CleanupInterval: 5 * time.Minute,
		IdleRoomTTL:     time.Hour,
	}

	if len(options) > 0 {
		opts = options[0]
	}

	hub := &Hub{
		rooms:    make(map[uint]*Room),
		options:  opts,
		shutdown: make(chan struct{}),
	}

	go hub.cleanupLoop()

	return hub
}

// GetRoom возвращает комнату чата, создавая ее при необходимости
func (h *Hub) GetRoom(chatID uint) *Room {
	h.mu.RLock()
	room, exists := h.rooms[chatID]
	h.mu.RUnlock()

	if exists {
		return room
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Двойная проверка
	if room, exists := h.rooms[chatID]; exists {
		return room
	}

	room = NewRoom(chatID, h.options.MaxRoomSize, &h.metrics)
	h.rooms[chatID] = room

	return room
}

// GetRoomSafe возвращает комнату, если она существует
func (h *Hub) GetRoomSafe(chatID uint) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, exists := h.rooms[chatID]
	return room, exists
}

// MessageCreated рассылает новое сообщение всем подключенным к чату
func (h *Hub) MessageCreated(msg *model.Message) {
	h.broadcast(msg.ChatID, OutEvent{Type: EventTypeMessageNew, Message: msg, MessageID: msg.ID})
}

// MessageUpdated рассылает отредактированное сообщение
func (h *Hub) MessageUpdated(msg *model.Message) {
	h.broadcast(msg.ChatID, OutEvent{Type: EventTypeMessageUpdated, Message: msg, MessageID: msg.ID})
}

// MessageDeleted сообщает об удалении сообщения для всех
func (h *Hub) MessageDeleted(chatID, messageID uint) {
	h.broadcast(chatID, OutEvent{Type: EventTypeMessageDeleted, MessageID: messageID})
}

func (h *Hub) broadcast(chatID uint, ev OutEvent) {
	room, exists := h.GetRoomSafe(chatID)
	if !exists {
		return
	}

	ev.ChatID = chatID
	ev.Timestamp = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to marshal hub event")
		return
	}

	room.Broadcast(data)
}

// DeliverTyping отправляет индикатор набора всем в комнате, кроме автора
func (h *Hub) DeliverTyping(ev model.TypingEvent) {
	room, exists := h.GetRoomSafe(ev.ChatID)
	if !exists {
		return
	}

	isTyping := ev.IsTyping
	data, err := json.Marshal(OutEvent{
		Type:        EventTypeTyping,
		UserID:      ev.UserID,
		ChatID:      ev.ChatID,
		DisplayName: ev.DisplayName,
		IsTyping:    &isTyping,
		Timestamp:   time.Now(),
	})
	if err != nil {
		return
	}
	room.BroadcastToOthers(ev.UserID, data)
}

// Stats возвращает число комнат и соединений
func (h *Hub) Stats() (rooms int, connections int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), h.metrics.Connections.Load()
}

// Shutdown останавливает хаб
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		close(h.shutdown)

		h.mu.Lock()
		defer h.mu.Unlock()

		for _, room := range h.rooms {
			room.Shutdown()
		}
		h.rooms = make(map[uint]*Room)
	})
}

// cleanupLoop периодически очищает неактивные комнаты
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(h.options.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.cleanupInactiveRooms()
		}
	}
}

func (h *Hub) cleanupInactiveRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID, room := range h.rooms {
		if room.IsEmpty() && room.IdleFor() > h.options.IdleRoomTTL {
			room.Shutdown()
			delete(h.rooms, chatID)
		}
	}
}

// RoomInfo информация о комнате
type RoomInfo struct {
	ChatID        uint      `json:"chat_id"`
	ActiveClients int       `json:"active_clients"`
	CreatedAt     time.Time `json:"created_at"`
}

// Room управляет клиентами одного чата
type Room struct {
	chatID      uint
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	broadcast   chan []byte
	register    chan *Client
	unregister  chan *Client
	shutdown    chan struct{}
	closeOnce   sync.Once
	createdAt   time.Time
	lastActive  atomic.Time
	maxSize     int
	activeCount atomic.Int32
	metrics     *Metrics
}

// NewRoom создает новую комнату
func NewRoom(chatID uint, maxSize int, metrics *Metrics) *Room {
	room := &Room{
		chatID:     chatID,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, maxSendChannelSize),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		shutdown:   make(chan struct{}),
		createdAt:  time.Now(),
		maxSize:    maxSize,
		metrics:    metrics,
	}

	room.lastActive.Store(time.Now())

	go room.run()

	return room
}

func (r *Room) run() {
	defer func() {
		r.mu.Lock()
		for client := range r.clients {
			client.Close()
		}
		r.mu.Unlock()
	}()

	for {
		select {
		case <-r.shutdown:
			return
		case client := <-r.register:
			r.handleRegister(client)
		case client := <-r.unregister:
			r.handleUnregister(client)
		case message := <-r.broadcast:
			r.handleBroadcast(message)
		}
	}
}

func (r *Room) handleRegister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.maxSize {
		client.SendJSON(OutEvent{Type: EventTypeError, Message: "room is full", Timestamp: time.Now()})
		client.Close()
		return
	}

	// пользователь может быть подключен с нескольких устройств
	r.clients[client] = struct{}{}
	r.activeCount.Inc()
	r.metrics.Connections.Inc()
	metrics.HubConnections.Inc()
	r.lastActive.Store(time.Now())

	client.SendJSON(OutEvent{
		Type: EventTypeRoomInfo,
		Message: RoomInfo{
			ChatID:        r.chatID,
			ActiveClients: int(r.activeCount.Load()),
			CreatedAt:     r.createdAt,
		},
		ChatID:    r.chatID,
		Timestamp: time.Now(),
	})
}

func (r *Room) handleUnregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client]; exists {
		delete(r.clients, client)
		r.activeCount.Dec()
		r.metrics.Connections.Dec()
		metrics.HubConnections.Dec()
		client.Close()
		r.lastActive.Store(time.Now())
	}
}

func (r *Room) handleBroadcast(message []byte) {
	r.BroadcastToOthers(0, message)
}

// RegisterClient регистрирует клиента в комнате
func (r *Room) RegisterClient(client *Client) bool {
	select {
	case r.register <- client:
		return true
	case <-r.shutdown:
		return false
	default:
		return false // комната перегружена
	}
}

// UnregisterClient отключает клиента от комнаты
func (r *Room) UnregisterClient(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.shutdown:
	}
}

// Broadcast отправляет сообщение всем клиентам комнаты
func (r *Room) Broadcast(message []byte) {
	select {
	case r.broadcast <- message:
	case <-r.shutdown:
	}
}

// BroadcastToOthers отправляет сообщение всем, кроме указанного пользователя
func (r *Room) BroadcastToOthers(excludeUserID uint, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if excludeUserID != 0 && client.UserID == excludeUserID {
			continue
		}
		if client.SendRaw(message) {
			r.metrics.EventsSent.Inc()
		} else {
			r.metrics.Dropped.Inc()
		}
	}

	r.lastActive.Store(time.Now())
}

// ActiveClients возвращает число подключенных клиентов
func (r *Room) ActiveClients() int {
	return int(r.activeCount.Load())
}

// IsEmpty проверяет, пуста ли комната
func (r *Room) IsEmpty() bool {
	return r.activeCount.Load() == 0
}

// IdleFor время с последней активности
func (r *Room) IdleFor() time.Duration {
	return time.Since(r.lastActive.Load())
}

// Shutdown останавливает комнату
func (r *Room) Shutdown() {
	r.closeOnce.Do(func() { close(r.shutdown) })
}

// Client представляет WebSocket соединение
type Client struct {
	UserID      uint
	ChatID      uint
	DisplayName string
	ctx         context.Context
	cancel      context.CancelFunc
	conn        *websocket.Conn
	send        chan []byte
	mu          sync.RWMutex
	isClosed    bool
	rateLimit   *RateLimiter
}

// RateLimiter ограничитель частоты входящих событий
type RateLimiter struct {
	mu       sync.Mutex
	lastSent time.Time
	interval time.Duration
}

// NewRateLimiter создает новый ограничитель
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		lastSent: time.Now().Add(-interval),
	}
}

// Allow проверяет, можно ли отправить событие
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSent) >= rl.interval {
		rl.lastSent = now
		return true
	}

	return false
}

// NewClient создает нового клиента
func NewClient(ctx context.Context, conn *websocket.Conn, userID, chatID uint, displayName string) *Client {
	ctx, cancel := context.WithCancel(ctx)

	return &Client{
		UserID:      userID,
		ChatID:      chatID,
		DisplayName: displayName,
		ctx:         ctx,
		cancel:      cancel,
		conn:        conn,
		send:        make(chan []byte, maxSendChannelSize),
		rateLimit:   NewRateLimiter(200 * time.Millisecond), // 5 событий набора в секунду
	}
}

// CheckRateLimit проверяет лимит частоты
func (c *Client) CheckRateLimit() bool {
	return c.rateLimit.Allow()
}

// Done закрывается вместе с соединением
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ReadPump читает события клиента, пока соединение открыто
func (c *Client) ReadPump(handleIncoming func(*Client, InEvent)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev InEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				log.Debug().Err(err).Uint("user_id", c.UserID).Msg("Websocket read error")
			}
			return
		}

		handleIncoming(c, ev)
	}
}

// WritePump отправляет события клиенту
func (c *Client) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return err
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// SendJSON отправляет JSON сообщение
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Client marshal error")
		return false
	}

	return c.SendRaw(data)
}

// SendRaw отправляет сырые данные
func (c *Client) SendRaw(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		// перегруз: событие пропускается
		return false
	}
}

// Close закрывает соединение
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return
	}

	c.isClosed = true
	c.cancel()
	close(c.send)
	c.conn.Close()
}
