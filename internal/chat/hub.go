package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/realtime"
)

const (
	// historyLimit is how many messages a client receives on join.
	historyLimit = 100

	maxContentLength = 2000
)

// ErrEmptyMessage is returned when a posted message has no content.
var ErrEmptyMessage = errors.New("chat: message content is empty")

// ErrMessageTooLong is returned when a posted message exceeds the length cap.
var ErrMessageTooLong = errors.New("chat: message content too long")

// MessageStore captures the persistence operations the hub needs.
type MessageStore interface {
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	CreateMessage(ctx context.Context, message models.ChatMessage) error
	FindMessage(ctx context.Context, id string) (models.ChatMessage, error)
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)
}

// Frame is the envelope delivered to connected clients.
type Frame struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Present []string            `json:"present,omitempty"`
}

// Hub tracks the clients connected to each chat room and fans messages out to
// them. Messages are persisted before broadcast so the last-N history a joining
// client receives always includes everything already delivered live. Rooms
// with local clients also subscribe to the realtime feed, so messages posted
// on other server instances reach the clients connected here.
type Hub struct {
	store  MessageStore
	feed   realtime.Feed
	logger *slog.Logger

	// instanceID tags published feed events so the hub can tell its own
	// events apart from those of other instances.
	instanceID string

	// NowFunc and NewID are overridable for tests.
	NowFunc func() time.Time
	NewID   func() string

	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	watchers map[string]func()
	closed   bool
}

// NewHub constructs a chat hub. The feed may be nil, in which case message
// events are only fanned out to clients of this process.
func NewHub(store MessageStore, feed realtime.Feed, logger *slog.Logger) *Hub {
	if store == nil {
		panic("chat: message store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:      store,
		feed:       feed,
		logger:     logger,
		instanceID: uuid.NewString(),
		NowFunc:    func() time.Time { return time.Now().UTC() },
		NewID:      uuid.NewString,
		rooms:      make(map[string]map[*Client]struct{}),
		watchers:   make(map[string]func()),
	}
}

// Rooms lists the rooms clients may join.
func (h *Hub) Rooms(ctx context.Context) ([]models.ChatRoom, error) {
	return h.store.ListRooms(ctx)
}

// History returns the most recent messages for a room in chronological order.
func (h *Hub) History(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	return h.store.RecentMessages(ctx, roomID, historyLimit)
}

// Join registers the client with its room and announces the updated roster.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.close()
		return
	}
	room, ok := h.rooms[client.roomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.roomID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	if !ok {
		h.watchRoom(client.roomID)
	}

	h.logger.Info("chat client joined", "roomId", client.roomID, "userId", client.userID)
	h.broadcastPresence(client.roomID)
}

// watchRoom subscribes to the room's feed channel and relays messages posted
// by other server instances to the clients connected here. The subscription
// lives as long as the room has local clients.
func (h *Hub) watchRoom(roomID string) {
	if h.feed == nil {
		return
	}

	events, cancel, err := h.feed.Subscribe(context.Background(), realtime.ChatChannel(roomID))
	if err != nil {
		h.logger.Error("subscribe chat channel", "roomId", roomID, "error", err)
		return
	}

	h.mu.Lock()
	_, live := h.rooms[roomID]
	if h.closed || !live || h.watchers[roomID] != nil {
		// The room emptied or the hub shut down while we subscribed.
		h.mu.Unlock()
		cancel()
		return
	}
	h.watchers[roomID] = cancel
	h.mu.Unlock()

	go h.relayRoomEvents(roomID, events)
}

// relayRoomEvents rebroadcasts messages persisted by other instances. Events
// this instance published are skipped; the poster's hub already delivered them.
func (h *Hub) relayRoomEvents(roomID string, events <-chan realtime.Event) {
	for event := range events {
		if event.Origin == h.instanceID || event.Table != "chat_messages" || event.Op != realtime.OpInsert {
			continue
		}
		message, err := h.store.FindMessage(context.Background(), event.RowID)
		if err != nil {
			h.logger.Warn("load relayed chat message", "roomId", roomID, "messageId", event.RowID, "error", err)
			continue
		}
		h.broadcast(roomID, Frame{Type: "message", Message: &message})
	}
}

// Leave removes the client from its room and announces the updated roster.
// Calling Leave for a client that already left is a no-op.
func (h *Hub) Leave(client *Client) {
	var stopWatch func()

	h.mu.Lock()
	room, ok := h.rooms[client.roomID]
	if ok {
		if _, member := room[client]; member {
			delete(room, client)
			client.close()
			if len(room) == 0 {
				delete(h.rooms, client.roomID)
				stopWatch = h.watchers[client.roomID]
				delete(h.watchers, client.roomID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if !ok {
		return
	}

	h.logger.Info("chat client left", "roomId", client.roomID, "userId", client.userID)
	h.broadcastPresence(client.roomID)
}

// Post validates, persists, and fans out a message to everyone in the room.
func (h *Hub) Post(ctx context.Context, roomID, userID, username, content string) (models.ChatMessage, error) {
	if content == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if len(content) > maxContentLength {
		return models.ChatMessage{}, ErrMessageTooLong
	}

	message := models.ChatMessage{
		ID:        h.NewID(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: h.NowFunc(),
		Sender:    &models.Profile{ID: userID, Username: username},
	}

	if err := h.store.CreateMessage(ctx, message); err != nil {
		return models.ChatMessage{}, fmt.Errorf("persist chat message: %w", err)
	}

	if h.feed != nil {
		event := realtime.Event{Table: "chat_messages", Op: realtime.OpInsert, RowID: message.ID, Origin: h.instanceID}
		if err := h.feed.Publish(ctx, realtime.ChatChannel(roomID), event); err != nil {
			h.logger.Error("publish chat event", "roomId", roomID, "error", err)
		}
	}

	h.broadcast(roomID, Frame{Type: "message", Message: &message})
	return message, nil
}

// Presence returns the usernames currently connected to the room, sorted.
func (h *Hub) Presence(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presenceLocked(roomID)
}

func (h *Hub) presenceLocked(roomID string) []string {
	seen := make(map[string]struct{})
	var names []string
	for client := range h.rooms[roomID] {
		if _, ok := seen[client.username]; ok {
			continue
		}
		seen[client.username] = struct{}{}
		names = append(names, client.username)
	}
	sort.Strings(names)
	return names
}

func (h *Hub) broadcastPresence(roomID string) {
	h.mu.RLock()
	frame := Frame{Type: "presence", Present: h.presenceLocked(roomID)}
	clients := h.roomClientsLocked(roomID)
	h.mu.RUnlock()

	h.deliver(clients, frame)
}

func (h *Hub) broadcast(roomID string, frame Frame) {
	h.mu.RLock()
	clients := h.roomClientsLocked(roomID)
	h.mu.RUnlock()

	h.deliver(clients, frame)
}

func (h *Hub) roomClientsLocked(roomID string) []*Client {
	room := h.rooms[roomID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) deliver(clients []*Client, frame Frame) {
	for _, client := range clients {
		if !client.enqueue(frame) {
			// Slow consumer; the write pump will notice the closed channel
			// and tear the connection down.
			h.logger.Warn("chat client send buffer full", "roomId", client.roomID, "userId", client.userID)
		}
	}
}

// Shutdown disconnects every client. New joins are rejected afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	rooms := h.rooms
	watchers := h.watchers
	h.rooms = make(map[string]map[*Client]struct{})
	h.watchers = make(map[string]func())
	h.mu.Unlock()

	for _, cancel := range watchers {
		cancel()
	}
	for _, room := range rooms {
		for client := range room {
			client.close()
		}
	}
}
